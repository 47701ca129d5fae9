// Package balances reads wallet balances per chain through the active client,
// falling back to a reduced asset list when the full read fails.
package balances

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/asgardex/asgardex-mobile-sub001/internal/backend"
	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
	"github.com/asgardex/asgardex-mobile-sub001/internal/client"
	"github.com/asgardex/asgardex-mobile-sub001/internal/metrics"
	"github.com/asgardex/asgardex-mobile-sub001/internal/session"
	"github.com/asgardex/asgardex-mobile-sub001/internal/storage"
	"github.com/asgardex/asgardex-mobile-sub001/internal/stream"
	"github.com/asgardex/asgardex-mobile-sub001/internal/wallet"
	"github.com/asgardex/asgardex-mobile-sub001/pkg/helpers"
	"github.com/asgardex/asgardex-mobile-sub001/pkg/logging"
)

var (
	ErrNoClient  = errors.New("no client available")
	ErrNoAddress = errors.New("no wallet address available")
)

// FetchError is a balance read that failed for the primary and the fallback
// asset list.
type FetchError struct {
	Chain chain.Chain
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s balances: %v", e.Chain, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// WalletBalance is the balance of one asset at one wallet address.
type WalletBalance struct {
	Asset         chain.Asset       `json:"asset"`
	Amount        *big.Int          `json:"amount"`
	Formatted     string            `json:"formatted"`
	WalletAddress string            `json:"walletAddress"`
	WalletType    wallet.WalletType `json:"walletType"`
	WalletAccount uint32            `json:"walletAccount"`
	WalletIndex   uint32            `json:"walletIndex"`
	HDMode        chain.HDMode      `json:"hdMode"`
}

// Params selects the wallet whose balances are read.
type Params struct {
	WalletAccount uint32
	WalletIndex   uint32
	HDMode        chain.HDMode
	WalletType    wallet.WalletType
	BalanceType   backend.BalanceType
}

// TokenSource lists the user-added tokens of a chain.
type TokenSource interface {
	UserTokens(chain, network string) ([]*storage.UserToken, error)
}

var _ TokenSource = (*storage.Storage)(nil)

// Config configures an Aggregator.
type Config struct {
	Chain   chain.Chain
	Network chain.Network

	// Active is the chain's resolved client.
	Active stream.Observable[client.Active[*client.Chain]]

	// Session is the application wallet state, read for the ledger address.
	Session stream.Observable[session.State]

	// Tokens adds user tokens to the primary asset list. Optional.
	Tokens TokenSource

	Metrics *metrics.Metrics
}

// reloads counts reload requests per wallet type.
type reloads struct {
	keystore uint64
	ledger   uint64
}

func (r reloads) of(wt wallet.WalletType) uint64 {
	if wt == wallet.TypeLedger {
		return r.ledger
	}
	return r.keystore
}

// Aggregator reads the balances of one chain.
type Aggregator struct {
	chain   chain.Chain
	network chain.Network
	active  stream.Observable[client.Active[*client.Chain]]
	session stream.Observable[session.State]
	tokens  TokenSource
	metrics *metrics.Metrics
	log     *logging.Logger

	reloads *stream.Cell[reloads]
	wg      sync.WaitGroup
}

// NewAggregator creates the aggregator of one chain.
func NewAggregator(cfg Config) *Aggregator {
	return &Aggregator{
		chain:   cfg.Chain,
		network: cfg.Network,
		active:  cfg.Active,
		session: cfg.Session,
		tokens:  cfg.Tokens,
		metrics: cfg.Metrics,
		log:     logging.GetDefault().Component("balances").With("chain", cfg.Chain),
		reloads: stream.NewCell(reloads{}),
	}
}

// Chain returns the aggregator's chain.
func (a *Aggregator) Chain() chain.Chain {
	return a.chain
}

// Reload asks every running pipeline of wallet type wt to read again.
func (a *Aggregator) Reload(wt wallet.WalletType) {
	a.reloads.Update(func(r reloads) reloads {
		if wt == wallet.TypeLedger {
			r.ledger++
		} else {
			r.keystore++
		}
		return r
	})
}

// Wait blocks until every in-flight fetch has returned.
func (a *Aggregator) Wait() {
	a.wg.Wait()
}

// trigger is one pipeline input. A pipeline fetches whenever its trigger
// changes; ok is false when nothing can be fetched.
type trigger struct {
	client  *client.Chain
	address wallet.WalletAddress
	seq     uint64
	ok      bool
}

// Balances keeps the balances of the wallet selected by p current until ctx
// ends. The read reruns when the active client or the wallet address changes
// and on Reload(p.WalletType). A newer read supersedes an older one.
//
// Keystore wallets need the authenticated client; their address is derived
// from p. Ledger wallets use the connected standalone ledger address.
func (a *Aggregator) Balances(ctx context.Context, p Params) stream.Observable[stream.Result[[]WalletBalance]] {
	wt := p.WalletType
	if wt == "" {
		wt = wallet.TypeKeystore
	}
	resolve := func(act client.Active[*client.Chain], st session.State, r reloads) trigger {
		if !act.Valid {
			return trigger{}
		}
		t := trigger{client: act.Client, seq: r.of(wt), ok: true}
		if wt == wallet.TypeLedger {
			addr, ok := session.LedgerAddress(st)
			if !ok || addr.Chain != a.chain {
				return trigger{}
			}
			t.address = addr
		} else if act.Flavor != client.FlavorAuthenticated {
			return trigger{}
		}
		return t
	}
	fetch := func(ctx context.Context, t trigger) ([]WalletBalance, error) {
		addr := t.address
		if wt == wallet.TypeKeystore {
			var err error
			addr, err = t.client.Address(p.HDMode, p.WalletAccount, p.WalletIndex)
			if err != nil {
				return nil, &FetchError{Chain: a.chain, Err: err}
			}
		}
		return a.Fetch(ctx, t.client, addr, p.BalanceType)
	}
	return a.pipeline(ctx, resolve, fetch)
}

// BalancesByAddress keeps the balances of a known address current until ctx
// ends. It reads the fallback asset list only and reruns when the active
// client changes and on Reload(addr.Type).
func (a *Aggregator) BalancesByAddress(ctx context.Context, addr wallet.WalletAddress, bt backend.BalanceType) stream.Observable[stream.Result[[]WalletBalance]] {
	resolve := func(act client.Active[*client.Chain], _ session.State, r reloads) trigger {
		if !act.Valid {
			return trigger{}
		}
		return trigger{client: act.Client, address: addr, seq: r.of(addr.Type), ok: true}
	}
	fetch := func(ctx context.Context, t trigger) ([]WalletBalance, error) {
		return a.fetchAssets(ctx, t.client, t.address, chain.FallbackAssets(a.chain, a.network), bt, metrics.FetchFallback)
	}
	return a.pipeline(ctx, resolve, fetch)
}

// pipeline runs fetch for every new trigger, cancelling the previous one.
// Only the latest fetch may publish its result.
func (a *Aggregator) pipeline(
	ctx context.Context,
	resolve func(client.Active[*client.Chain], session.State, reloads) trigger,
	fetch func(context.Context, trigger) ([]WalletBalance, error),
) stream.Observable[stream.Result[[]WalletBalance]] {
	out := stream.NewCell(stream.NotStarted[[]WalletBalance]())
	if ctx.Err() != nil {
		return out
	}

	var (
		mu     sync.Mutex
		gen    uint64
		cancel context.CancelFunc
		closed bool
	)
	// publish sets the result of generation g unless a newer one started.
	publish := func(g uint64, r stream.Result[[]WalletBalance]) {
		out.Update(func(cur stream.Result[[]WalletBalance]) stream.Result[[]WalletBalance] {
			mu.Lock()
			defer mu.Unlock()
			if g != gen {
				return cur
			}
			return r
		})
	}

	triggers, stopTriggers := stream.Combine3(a.active, a.session, a.reloads, resolve, stream.Distinct[trigger]())
	stopSub := triggers.Subscribe(func(t trigger) {
		mu.Lock()
		if closed {
			mu.Unlock()
			return
		}
		if cancel != nil {
			cancel()
			cancel = nil
		}
		gen++
		g := gen
		if !t.ok {
			mu.Unlock()
			publish(g, stream.NotStarted[[]WalletBalance]())
			return
		}
		fetchCtx, fetchCancel := context.WithCancel(ctx)
		cancel = fetchCancel
		a.wg.Add(1)
		mu.Unlock()

		publish(g, stream.Pending[[]WalletBalance]())
		go func() {
			defer a.wg.Done()
			defer fetchCancel()
			bals, err := fetch(fetchCtx, t)
			if fetchCtx.Err() != nil {
				// Superseded or shut down.
				return
			}
			if err != nil {
				publish(g, stream.Fail[[]WalletBalance](err))
				return
			}
			publish(g, stream.Ok(bals))
		}()
	})

	context.AfterFunc(ctx, func() {
		stopSub()
		stopTriggers()
		mu.Lock()
		closed = true
		if cancel != nil {
			cancel()
			cancel = nil
		}
		mu.Unlock()
	})
	return out
}

// Load reads the balances selected by p once, using the current client and
// session state.
func (a *Aggregator) Load(ctx context.Context, p Params) ([]WalletBalance, error) {
	act := a.active.Get()
	if !act.Valid {
		return nil, ErrNoClient
	}
	var addr wallet.WalletAddress
	if p.WalletType == wallet.TypeLedger {
		la, ok := session.LedgerAddress(a.session.Get())
		if !ok || la.Chain != a.chain {
			return nil, ErrNoAddress
		}
		addr = la
	} else {
		if act.Flavor != client.FlavorAuthenticated {
			return nil, ErrNoClient
		}
		var err error
		addr, err = act.Client.Address(p.HDMode, p.WalletAccount, p.WalletIndex)
		if err != nil {
			return nil, &FetchError{Chain: a.chain, Err: err}
		}
	}
	return a.Fetch(ctx, act.Client, addr, p.BalanceType)
}

// Fetch reads the primary asset list of addr and, if that fails, retries
// exactly once with the chain's fallback list. A failure of both is returned
// as *FetchError.
func (a *Aggregator) Fetch(ctx context.Context, c *client.Chain, addr wallet.WalletAddress, bt backend.BalanceType) ([]WalletBalance, error) {
	start := time.Now()
	bals, err := c.Balances(ctx, addr.Address, a.PrimaryAssets(), bt)
	if err == nil {
		a.metrics.BalanceFetch(string(a.chain), metrics.FetchPrimary, time.Since(start))
		return toWalletBalances(bals, addr), nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	a.log.Warn("Balance read failed, retrying with fallback assets", "address", addr.Address, "error", err)
	return a.fetchAssets(ctx, c, addr, chain.FallbackAssets(a.chain, a.network), bt, metrics.FetchFallback)
}

func (a *Aggregator) fetchAssets(ctx context.Context, c *client.Chain, addr wallet.WalletAddress, assets []chain.Asset, bt backend.BalanceType, outcome string) ([]WalletBalance, error) {
	start := time.Now()
	bals, err := c.Balances(ctx, addr.Address, assets, bt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.metrics.BalanceFetch(string(a.chain), metrics.FetchFailed, time.Since(start))
		a.log.Error("Balance read failed", "address", addr.Address, "error", err)
		return nil, &FetchError{Chain: a.chain, Err: err}
	}
	a.metrics.BalanceFetch(string(a.chain), outcome, time.Since(start))
	return toWalletBalances(bals, addr), nil
}

// PrimaryAssets is the chain's default asset list followed by the user's
// tokens that are not already in it.
func (a *Aggregator) PrimaryAssets() []chain.Asset {
	assets := chain.DefaultAssets(a.chain, a.network)
	if a.tokens == nil {
		return assets
	}
	tokens, err := a.tokens.UserTokens(string(a.chain), string(a.network))
	if err != nil {
		a.log.Warn("Cannot load user tokens", "error", err)
		return assets
	}

	seen := make(map[string]bool, len(assets))
	for _, asset := range assets {
		seen[strings.ToLower(asset.Contract)] = true
	}
	for _, t := range tokens {
		key := strings.ToLower(t.Contract)
		if seen[key] {
			continue
		}
		seen[key] = true
		assets = append(assets, chain.Asset{
			Chain:    a.chain,
			Symbol:   t.Symbol,
			Contract: t.Contract,
			Decimals: t.Decimals,
		})
	}
	return assets
}

func toWalletBalances(bals []backend.Balance, addr wallet.WalletAddress) []WalletBalance {
	out := make([]WalletBalance, len(bals))
	for i, b := range bals {
		out[i] = WalletBalance{
			Asset:         b.Asset,
			Amount:        b.Amount,
			Formatted:     helpers.FormatBaseUnits(b.Amount, b.Asset.Decimals),
			WalletAddress: addr.Address,
			WalletType:    addr.Type,
			WalletAccount: addr.WalletAccount,
			WalletIndex:   addr.WalletIndex,
			HDMode:        addr.HDMode,
		}
	}
	return out
}
