package balances

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
	"github.com/asgardex/asgardex-mobile-sub001/internal/stream"
	"github.com/asgardex/asgardex-mobile-sub001/internal/wallet"
	"github.com/asgardex/asgardex-mobile-sub001/pkg/logging"
)

// DefaultConcurrency bounds parallel chain reads in RefreshAll.
const DefaultConcurrency = 4

// State is the last known balances of one chain. Balances are kept while a
// refresh runs and after a failed one; Err reports the last failure.
type State struct {
	Balances []WalletBalance
	Err      error
	Loading  bool
}

func (s State) MarshalJSON() ([]byte, error) {
	var msg string
	if s.Err != nil {
		msg = s.Err.Error()
	}
	return json.Marshal(struct {
		Balances []WalletBalance `json:"balances"`
		Error    string          `json:"error,omitempty"`
		Loading  bool            `json:"loading"`
	}{s.Balances, msg, s.Loading})
}

// ChangeFunc is called after the state of a chain changed.
type ChangeFunc func(c chain.Chain, s State)

// Registry holds one aggregator per chain and a snapshot of the last read of
// each.
type Registry struct {
	concurrency int
	log         *logging.Logger

	mu       sync.RWMutex
	aggs     map[chain.Chain]*Aggregator
	states   map[chain.Chain]State
	live     map[liveKey]stream.Result[[]WalletBalance]
	onChange ChangeFunc
}

// liveKey names one watched pipeline.
type liveKey struct {
	chain chain.Chain
	wt    wallet.WalletType
}

// NewRegistry creates a registry. A concurrency of zero means
// DefaultConcurrency.
func NewRegistry(concurrency int) *Registry {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Registry{
		concurrency: concurrency,
		log:         logging.GetDefault().Component("balances"),
		aggs:        make(map[chain.Chain]*Aggregator),
		states:      make(map[chain.Chain]State),
		live:        make(map[liveKey]stream.Result[[]WalletBalance]),
	}
}

// Register adds the aggregator of a chain.
func (r *Registry) Register(a *Aggregator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aggs[a.Chain()] = a
}

// Get returns the aggregator of a chain.
func (r *Registry) Get(c chain.Chain) (*Aggregator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.aggs[c]
	return a, ok
}

// Chains returns the registered chains, sorted.
func (r *Registry) Chains() []chain.Chain {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chains := make([]chain.Chain, 0, len(r.aggs))
	for c := range r.aggs {
		chains = append(chains, c)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })
	return chains
}

// OnChange sets the change callback. It runs without the registry lock held.
func (r *Registry) OnChange(fn ChangeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// State returns the last known state of a chain.
func (r *Registry) State(c chain.Chain) State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.states[c]
}

// Snapshot returns the last known state of every chain.
func (r *Registry) Snapshot() map[chain.Chain]State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[chain.Chain]State, len(r.states))
	for c, s := range r.states {
		out[c] = s
	}
	return out
}

// Refresh reads one chain and records the result. Without a client or
// address the chain's balances are cleared.
func (r *Registry) Refresh(ctx context.Context, c chain.Chain, p Params) (State, error) {
	a, ok := r.Get(c)
	if !ok {
		return State{}, ErrNoClient
	}

	r.update(c, func(s State) State {
		s.Loading = true
		return s
	})

	bals, err := a.Load(ctx, p)
	switch {
	case err == nil:
		return r.update(c, func(State) State {
			return State{Balances: bals}
		}), nil
	case errors.Is(err, ErrNoClient), errors.Is(err, ErrNoAddress):
		return r.update(c, func(State) State {
			return State{}
		}), nil
	}

	r.log.Debug("Keeping stale balances", "chain", c, "error", err)
	return r.update(c, func(s State) State {
		s.Loading = false
		s.Err = err
		return s
	}), err
}

// RefreshAll reads every registered chain, at most concurrency at a time.
// Chains fail independently; the joined errors are returned.
func (r *Registry) RefreshAll(ctx context.Context, p Params) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, c := range r.Chains() {
		g.Go(func() error {
			if _, err := r.Refresh(gctx, c, p); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			// Only the caller's ctx stops the other chains.
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// Reload forwards a reload request to every aggregator.
func (r *Registry) Reload(wt wallet.WalletType) {
	r.mu.RLock()
	aggs := make([]*Aggregator, 0, len(r.aggs))
	for _, a := range r.aggs {
		aggs = append(aggs, a)
	}
	r.mu.RUnlock()
	for _, a := range aggs {
		a.Reload(wt)
	}
}

// Watch runs a live Balances pipeline of wallet type p.WalletType for every
// registered chain until ctx ends and mirrors its results into the snapshot.
// Each result fires the change callback, so reloads and session changes reach
// State and Snapshot without a Refresh. While a chain's ledger pipeline has an
// address it takes precedence over the keystore one.
func (r *Registry) Watch(ctx context.Context, p Params) {
	if p.WalletType == "" {
		p.WalletType = wallet.TypeKeystore
	}
	for _, c := range r.Chains() {
		a, ok := r.Get(c)
		if !ok {
			continue
		}
		key := liveKey{chain: c, wt: p.WalletType}
		unsubscribe := a.Balances(ctx, p).Subscribe(func(res stream.Result[[]WalletBalance]) {
			r.mirror(key, res)
		})
		context.AfterFunc(ctx, unsubscribe)
	}
	r.log.Debug("Watching balances", "walletType", p.WalletType)
}

// mirror records a pipeline result and applies the chain's leading result to
// its state.
func (r *Registry) mirror(key liveKey, res stream.Result[[]WalletBalance]) {
	r.mu.Lock()
	r.live[key] = res
	lead := r.live[liveKey{chain: key.chain, wt: wallet.TypeLedger}]
	if lead.Status == stream.StatusNotStarted {
		lead = r.live[liveKey{chain: key.chain, wt: wallet.TypeKeystore}]
	}
	prev := r.states[key.chain]
	s := applyResult(prev, lead)
	r.states[key.chain] = s
	onChange := r.onChange
	r.mu.Unlock()

	if onChange != nil {
		onChange(key.chain, s)
	}
}

// applyResult folds a pipeline result into s. Balances survive a pending or
// failed read.
func applyResult(s State, res stream.Result[[]WalletBalance]) State {
	switch res.Status {
	case stream.StatusPending:
		s.Loading = true
		return s
	case stream.StatusSuccess:
		return State{Balances: res.Value}
	case stream.StatusFailure:
		s.Loading = false
		s.Err = res.Err
		return s
	default:
		return State{}
	}
}

func (r *Registry) update(c chain.Chain, fn func(State) State) State {
	r.mu.Lock()
	s := fn(r.states[c])
	r.states[c] = s
	onChange := r.onChange
	r.mu.Unlock()

	if onChange != nil {
		onChange(c, s)
	}
	return s
}
