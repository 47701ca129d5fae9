package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
	"github.com/asgardex/asgardex-mobile-sub001/internal/metrics"
	"github.com/asgardex/asgardex-mobile-sub001/internal/stream"
	"github.com/asgardex/asgardex-mobile-sub001/internal/wallet"
	"github.com/asgardex/asgardex-mobile-sub001/pkg/logging"
)

// Mode is the mode tag carried by every standalone state.
const Mode = "standalone-ledger"

// Default detection budget: about 30 seconds for the user to open the app.
const (
	DefaultMaxAttempts   = 30
	DefaultRetryInterval = time.Second
)

// Phase is the detection phase of the standalone session.
type Phase string

const (
	PhaseChainSelection Phase = "chain-selection"
	PhaseDetecting      Phase = "detecting"
	PhaseCompleted      Phase = "completed"
)

// DetectionProgress describes a running detection.
type DetectionProgress struct {
	CurrentChain chain.Chain `json:"currentChain"`
}

// State is the standalone ledger session. An empty chain or HD mode means
// "not set". ConnectedChain and Address are always set and cleared together.
type State struct {
	Mode                      string                `json:"mode"`
	Phase                     Phase                 `json:"detectionPhase"`
	AvailableChains           []chain.Chain         `json:"availableChains"`
	SelectedChainForDetection chain.Chain           `json:"selectedChainForDetection,omitempty"`
	ConnectedChain            chain.Chain           `json:"connectedChain,omitempty"`
	Address                   *wallet.WalletAddress `json:"address,omitempty"`
	SelectedHDMode            chain.HDMode          `json:"selectedHDMode,omitempty"`
	SelectedWalletAccount     uint32                `json:"selectedWalletAccount"`
	SelectedWalletIndex       uint32                `json:"selectedWalletIndex"`
	DetectionProgress         *DetectionProgress    `json:"detectionProgress,omitempty"`
}

// InitialState is the state on entering standalone mode.
func InitialState() State {
	return State{
		Mode:            Mode,
		Phase:           PhaseChainSelection,
		AvailableChains: chain.Supported(),
	}
}

// IsConnected reports whether c is the connected chain.
func (s State) IsConnected(c chain.Chain) bool {
	return s.ConnectedChain != "" && s.ConnectedChain == c
}

// Equal compares two states by value.
func (s State) Equal(o State) bool {
	if s.Mode != o.Mode ||
		s.Phase != o.Phase ||
		s.SelectedChainForDetection != o.SelectedChainForDetection ||
		s.ConnectedChain != o.ConnectedChain ||
		s.SelectedHDMode != o.SelectedHDMode ||
		s.SelectedWalletAccount != o.SelectedWalletAccount ||
		s.SelectedWalletIndex != o.SelectedWalletIndex ||
		!slices.Equal(s.AvailableChains, o.AvailableChains) {
		return false
	}
	if (s.Address == nil) != (o.Address == nil) || (s.Address != nil && *s.Address != *o.Address) {
		return false
	}
	if (s.DetectionProgress == nil) != (o.DetectionProgress == nil) ||
		(s.DetectionProgress != nil && *s.DetectionProgress != *o.DetectionProgress) {
		return false
	}
	return true
}

// Config configures a Standalone session.
type Config struct {
	Bridge  Bridge
	Network chain.Network

	// MaxAttempts is the detection budget. Zero means DefaultMaxAttempts.
	MaxAttempts int

	// RetryInterval is the wait between detection attempts. Zero means
	// DefaultRetryInterval.
	RetryInterval time.Duration

	// Timeout bounds a whole detection run, bridge calls included. Zero
	// means MaxAttempts × RetryInterval.
	Timeout time.Duration

	Metrics *metrics.Metrics
}

// Standalone is the standalone ledger session: a hardware wallet used
// without any keystore. It owns its state cell; only its methods write it.
//
// One device operation runs at a time. Detection runs are numbered; a run
// that is superseded by a reset, exit or re-entry stops at its next check
// and never writes state again.
type Standalone struct {
	bridge        Bridge
	network       chain.Network
	maxAttempts   int
	retryInterval time.Duration
	timeout       time.Duration
	metrics       *metrics.Metrics
	log           *logging.Logger

	state  *stream.Cell[State]
	device sync.Mutex

	mu     sync.Mutex
	run    uint64
	cancel context.CancelFunc

	// scope is cancelled, and replaced, whenever the session is reset.
	// One-shot device calls run under it.
	scope       context.Context
	cancelScope context.CancelFunc
}

// NewStandalone creates a standalone session in its initial state.
func NewStandalone(cfg Config) (*Standalone, error) {
	if cfg.Bridge == nil {
		return nil, fmt.Errorf("standalone ledger session requires a bridge")
	}
	network := cfg.Network
	if network == "" {
		network = chain.Mainnet
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	retryInterval := cfg.RetryInterval
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Duration(maxAttempts) * retryInterval
	}

	scope, cancelScope := context.WithCancel(context.Background())
	return &Standalone{
		bridge:        cfg.Bridge,
		network:       network,
		maxAttempts:   maxAttempts,
		retryInterval: retryInterval,
		timeout:       timeout,
		metrics:       cfg.Metrics,
		log:           logging.GetDefault().Component("ledger"),
		state:         stream.NewCell(InitialState(), stream.WithEqual(State.Equal)),
		scope:         scope,
		cancelScope:   cancelScope,
	}, nil
}

// State returns the current standalone state.
func (s *Standalone) State() State {
	return s.state.Get()
}

// Subscribe observes standalone state changes, starting with the current state.
func (s *Standalone) Subscribe(fn func(State)) func() {
	return s.state.Subscribe(fn)
}

// Observable exposes the state as a stream.
func (s *Standalone) Observable() stream.Observable[State] {
	return s.state
}

// Network returns the network device addresses are requested for.
func (s *Standalone) Network() chain.Network {
	return s.network
}

// EnterStandaloneMode resets the session to its initial state.
func (s *Standalone) EnterStandaloneMode() {
	s.cancelRun()
	s.state.Set(InitialState())
	s.log.Info("Entered standalone ledger mode")
}

// ExitStandaloneMode clears all standalone data.
func (s *Standalone) ExitStandaloneMode() {
	s.cancelRun()
	s.state.Set(InitialState())
	s.log.Info("Exited standalone ledger mode")
}

// ResetToChainSelection returns to chain selection, dropping the selected and
// connected chain. HD mode and wallet params are kept.
func (s *Standalone) ResetToChainSelection() {
	s.cancelRun()
	s.state.Update(func(cur State) State {
		cur.Phase = PhaseChainSelection
		cur.SelectedChainForDetection = ""
		cur.ConnectedChain = ""
		cur.Address = nil
		cur.DetectionProgress = nil
		return cur
	})
}

// SetSelectedChainForDetection records the chain to detect. An empty chain
// clears the selection.
func (s *Standalone) SetSelectedChainForDetection(c chain.Chain) error {
	if c != "" && !slices.Contains(s.state.Get().AvailableChains, c) {
		return fmt.Errorf("%w: %s", ErrUnsupportedChain, c)
	}
	s.state.Update(func(cur State) State {
		cur.SelectedChainForDetection = c
		return cur
	})
	return nil
}

// SetDetectionHDMode sets the HD mode used by detection. An empty mode
// selects the chain default.
func (s *Standalone) SetDetectionHDMode(hd chain.HDMode) {
	s.state.Update(func(cur State) State {
		cur.SelectedHDMode = hd
		return cur
	})
}

// SetDetectionWalletParams sets the account and index used by detection.
func (s *Standalone) SetDetectionWalletParams(account, index uint32) error {
	if err := wallet.ValidateAccountIndex(account); err != nil {
		return err
	}
	if err := wallet.ValidateAddressIndex(index); err != nil {
		return err
	}
	s.state.Update(func(cur State) State {
		cur.SelectedWalletAccount = account
		cur.SelectedWalletIndex = index
		return cur
	})
	return nil
}

// StartDetection polls the device for the selected chain until it answers
// with an address or the attempt budget runs out.
//
// On success the session is Completed with the chain connected. After the
// last failed attempt, or once the run timeout elapses, it is Completed with
// no chain and ErrDetectionExhausted is returned. If the run is superseded or
// ctx ends, ErrDetectionCancelled is returned and the state is left to
// whoever superseded it.
func (s *Standalone) StartDetection(ctx context.Context) (chain.Chain, error) {
	if s.state.Get().SelectedChainForDetection == "" {
		s.log.Warn("Cannot start detection: no chain selected")
		return "", ErrNoChainSelected
	}
	if !s.device.TryLock() {
		return "", ErrDeviceBusy
	}
	defer s.device.Unlock()

	runCtx, run := s.beginRun(ctx)
	defer s.endRun(run)

	var target chain.Chain
	s.state.Update(func(cur State) State {
		if !s.isCurrent(run) || cur.SelectedChainForDetection == "" {
			return cur
		}
		target = cur.SelectedChainForDetection
		cur.Phase = PhaseDetecting
		cur.DetectionProgress = &DetectionProgress{CurrentChain: target}
		return cur
	})
	if target == "" {
		return "", ErrDetectionCancelled
	}

	log := s.log.With("chain", target)
	log.Info("Detecting ledger", "attempts", s.maxAttempts, "timeout", s.timeout)

	// budgetCtx ending on its own means the run is out of time; runCtx
	// ending means it was superseded or the caller gave up.
	budgetCtx, cancelBudget := context.WithTimeout(runCtx, s.timeout)
	defer cancelBudget()

attempts:
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if runCtx.Err() != nil || !s.isCurrent(run) {
			return s.cancelled(target, log)
		}
		if budgetCtx.Err() != nil {
			break
		}

		// Params are read per attempt so the user can adjust them mid-run.
		req := s.detectionRequest(target)
		addr, err := s.callBridge(budgetCtx, req)
		s.metrics.DetectionAttempt(string(target), err == nil)

		if err == nil {
			committed := false
			s.state.Update(func(cur State) State {
				if !s.isCurrent(run) || cur.Phase != PhaseDetecting {
					return cur
				}
				cur.Phase = PhaseCompleted
				cur.ConnectedChain = target
				cur.Address = &addr
				cur.DetectionProgress = nil
				committed = true
				return cur
			})
			if !committed {
				return s.cancelled(target, log)
			}
			log.Info("Ledger detected", "address", addr.Address, "attempt", attempt)
			s.metrics.DetectionRun(string(target), metrics.DetectionFound)
			return target, nil
		}

		log.Debug("Detection attempt failed", "attempt", attempt, "error", err)
		if attempt == s.maxAttempts {
			break
		}

		timer := time.NewTimer(s.retryInterval)
		select {
		case <-budgetCtx.Done():
			timer.Stop()
			if runCtx.Err() != nil {
				return s.cancelled(target, log)
			}
			break attempts
		case <-timer.C:
		}
	}
	if runCtx.Err() != nil || !s.isCurrent(run) {
		return s.cancelled(target, log)
	}

	exhausted := false
	s.state.Update(func(cur State) State {
		if !s.isCurrent(run) || cur.Phase != PhaseDetecting {
			return cur
		}
		cur.Phase = PhaseCompleted
		cur.ConnectedChain = ""
		cur.Address = nil
		cur.DetectionProgress = nil
		exhausted = true
		return cur
	})
	if !exhausted {
		return s.cancelled(target, log)
	}
	log.Warn("Ledger not detected", "attempts", s.maxAttempts)
	s.metrics.DetectionRun(string(target), metrics.DetectionExhausted)
	return "", ErrDetectionExhausted
}

func (s *Standalone) cancelled(c chain.Chain, log *logging.Logger) (chain.Chain, error) {
	log.Debug("Detection cancelled")
	s.metrics.DetectionRun(string(c), metrics.DetectionCancelled)
	return "", ErrDetectionCancelled
}

func (s *Standalone) detectionRequest(c chain.Chain) AddressRequest {
	st := s.state.Get()
	hd := st.SelectedHDMode
	if hd == "" {
		hd = chain.DefaultHDMode(c)
	}
	return AddressRequest{
		Chain:         c,
		Network:       s.network,
		WalletAccount: st.SelectedWalletAccount,
		WalletIndex:   st.SelectedWalletIndex,
		HDMode:        hd,
	}
}

// ConnectLedgerChain makes a single device call and, on success, connects c.
// Failures are returned as *Error.
//
// An exit, enter or reset while the call is in flight cancels it and
// ErrSuperseded is returned; the answer is never applied.
func (s *Standalone) ConnectLedgerChain(ctx context.Context, c chain.Chain, hd chain.HDMode, account, index uint32) (wallet.WalletAddress, error) {
	callCtx, epoch, release := s.join(ctx)
	defer release()

	addr, err := s.deviceAddress(callCtx, c, hd, account, index)
	if !s.isCurrent(epoch) {
		s.log.Debug("Ledger connect superseded", "chain", c)
		return wallet.WalletAddress{}, ErrSuperseded
	}
	if err != nil {
		return wallet.WalletAddress{}, err
	}

	applied := false
	s.state.Update(func(cur State) State {
		if !s.isCurrent(epoch) {
			return cur
		}
		cur.ConnectedChain = c
		cur.Address = &addr
		applied = true
		return cur
	})
	if !applied {
		return wallet.WalletAddress{}, ErrSuperseded
	}
	s.log.Info("Ledger chain connected", "chain", c, "address", addr.Address)
	return addr, nil
}

// GetAddressWithoutStateChange reads a device address and leaves the session untouched.
func (s *Standalone) GetAddressWithoutStateChange(ctx context.Context, c chain.Chain, hd chain.HDMode, account, index uint32) (wallet.WalletAddress, error) {
	return s.deviceAddress(ctx, c, hd, account, index)
}

func (s *Standalone) deviceAddress(ctx context.Context, c chain.Chain, hd chain.HDMode, account, index uint32) (wallet.WalletAddress, error) {
	if _, ok := chain.Get(c, s.network); !ok {
		return wallet.WalletAddress{}, &Error{ID: ErrorGetAddressFailed, Msg: fmt.Sprintf("unsupported chain: %s", c)}
	}
	if hd == "" {
		hd = chain.DefaultHDMode(c)
	}
	if !s.device.TryLock() {
		return wallet.WalletAddress{}, ErrDeviceBusy
	}
	defer s.device.Unlock()

	addr, err := s.callBridge(ctx, AddressRequest{
		Chain:         c,
		Network:       s.network,
		WalletAccount: account,
		WalletIndex:   index,
		HDMode:        hd,
	})
	if err != nil {
		s.log.Warn("Ledger address request failed", "chain", c, "error", err)
		return wallet.WalletAddress{}, toError(err)
	}
	return addr, nil
}

// DisconnectLedgerChain clears the connected chain if it is c.
func (s *Standalone) DisconnectLedgerChain(c chain.Chain) {
	s.state.Update(func(cur State) State {
		if cur.ConnectedChain != c {
			return cur
		}
		cur.ConnectedChain = ""
		cur.Address = nil
		return cur
	})
}

type deviceReply struct {
	addr wallet.WalletAddress
	err  error
}

// callBridge performs one bridge call. A panic or an empty answer counts as
// a failed call. It returns when ctx ends even if the bridge does not.
func (s *Standalone) callBridge(ctx context.Context, req AddressRequest) (wallet.WalletAddress, error) {
	start := time.Now()
	answer := make(chan deviceReply, 1)
	go func() {
		var a deviceReply
		defer func() {
			if r := recover(); r != nil {
				a = deviceReply{err: fmt.Errorf("bridge panic: %v", r)}
			}
			answer <- a
		}()
		a.addr, a.err = s.bridge.GetAddress(ctx, req)
	}()

	var a deviceReply
	select {
	case a = <-answer:
	case <-ctx.Done():
		a.err = ctx.Err()
	}
	s.metrics.BridgeCall(methodGetAddress, a.err == nil && a.addr.Address != "", time.Since(start))

	addr, err := a.addr, a.err
	if err != nil {
		return wallet.WalletAddress{}, err
	}
	if addr.Address == "" {
		return wallet.WalletAddress{}, errEmptyAddress
	}
	addr.Chain = req.Chain
	addr.Type = wallet.TypeLedger
	if addr.HDMode == "" {
		addr.HDMode = req.HDMode
	}
	return addr, nil
}

// beginRun supersedes any running detection and starts a new run.
func (s *Standalone) beginRun(parent context.Context) (context.Context, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.run++
	s.cancel = cancel
	return ctx, s.run
}

func (s *Standalone) endRun(run uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == run && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// cancelRun stops the running detection and any one-shot device call.
func (s *Standalone) cancelRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.cancelScope()
	s.scope, s.cancelScope = context.WithCancel(context.Background())
	s.run++
}

// join ties a one-shot device call to the current session epoch: the
// returned context also ends on the next cancelRun.
func (s *Standalone) join(parent context.Context) (context.Context, uint64, func()) {
	s.mu.Lock()
	scope, epoch := s.scope, s.run
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(scope, cancel)
	return ctx, epoch, func() {
		stop()
		cancel()
	}
}

func (s *Standalone) isCurrent(run uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run == run
}
