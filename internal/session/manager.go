package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/asgardex/asgardex-mobile-sub001/internal/ledger"
	"github.com/asgardex/asgardex-mobile-sub001/internal/metrics"
	"github.com/asgardex/asgardex-mobile-sub001/internal/stream"
	"github.com/asgardex/asgardex-mobile-sub001/internal/wallet"
	"github.com/asgardex/asgardex-mobile-sub001/pkg/logging"
)

// ErrKeystoreUnlocked is returned when standalone mode is requested while the
// keystore is unlocked and auto-lock was not asked for.
var ErrKeystoreUnlocked = errors.New("keystore is unlocked")

// TransitionError is a refused mode switch. The state is unchanged.
type TransitionError struct {
	From Mode
	To   Mode
	Err  error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot switch from %s to %s: %v", e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// KeystoreSession is what the manager needs from the keystore.
type KeystoreSession interface {
	State() wallet.State
	Subscribe(fn func(wallet.State)) func()
	Lock()
}

// LedgerSession is what the manager needs from the standalone ledger session.
type LedgerSession interface {
	State() ledger.State
	Subscribe(fn func(ledger.State)) func()
	EnterStandaloneMode()
	ExitStandaloneMode()
}

var (
	_ KeystoreSession = (*wallet.Service)(nil)
	_ LedgerSession   = (*ledger.Standalone)(nil)
)

// Manager produces the application wallet state. While keystore mode is
// active it mirrors the keystore; while standalone mode is active it mirrors
// the standalone ledger session. Unlocking the keystore always ends
// standalone mode.
type Manager struct {
	keystore KeystoreSession
	ledger   LedgerSession
	metrics  *metrics.Metrics
	log      *logging.Logger

	state *stream.Cell[State]

	mu         sync.Mutex
	standalone bool

	unsubs []func()
}

// NewManager wires the manager to both sessions. The state starts Empty and
// immediately adopts the keystore state.
func NewManager(keystore KeystoreSession, ledgerSession LedgerSession, m *metrics.Metrics) *Manager {
	mgr := &Manager{
		keystore: keystore,
		ledger:   ledgerSession,
		metrics:  m,
		log:      logging.GetDefault().Component("session"),
		state:    stream.NewCell[State](Empty{}, stream.WithEqual(Equal)),
	}
	mgr.unsubs = append(mgr.unsubs,
		keystore.Subscribe(mgr.onKeystore),
		ledgerSession.Subscribe(mgr.onStandalone),
	)
	mgr.recordMode()
	return mgr
}

// State returns the current application wallet state.
func (m *Manager) State() State {
	return m.state.Get()
}

// Subscribe observes state changes, starting with the current state.
func (m *Manager) Subscribe(fn func(State)) func() {
	return m.state.Subscribe(fn)
}

// Observable exposes the state as a stream.
func (m *Manager) Observable() stream.Observable[State] {
	return m.state
}

// Keystore returns the keystore session.
func (m *Manager) Keystore() KeystoreSession {
	return m.keystore
}

// Ledger returns the standalone ledger session.
func (m *Manager) Ledger() LedgerSession {
	return m.ledger
}

// IsStandalone reports whether standalone mode is active.
func (m *Manager) IsStandalone() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.standalone
}

// SwitchToKeystoreMode leaves standalone mode and adopts the keystore state.
func (m *Manager) SwitchToKeystoreMode() {
	m.mu.Lock()
	m.standalone = false
	m.mu.Unlock()

	m.ledger.ExitStandaloneMode()
	m.adoptKeystore(m.keystore.State())
	m.metrics.ModeTransition(string(ModeKeystore), true)
	m.log.Info("Switched to keystore mode")
}

// SwitchToStandaloneLedgerMode enters standalone mode. If the keystore is
// unlocked the switch is refused with ErrKeystoreUnlocked, unless autoLock is
// set, in which case the keystore is locked first. Entering again resets the
// standalone session.
func (m *Manager) SwitchToStandaloneLedgerMode(autoLock bool) error {
	if m.keystore.State().IsUnlocked() {
		if !autoLock {
			m.log.Warn("Refusing standalone ledger mode while keystore is unlocked")
			m.metrics.ModeTransition(string(ModeStandaloneLedger), false)
			return &TransitionError{From: m.State().Mode(), To: ModeStandaloneLedger, Err: ErrKeystoreUnlocked}
		}
		m.log.Info("Locking keystore before entering standalone ledger mode")
		m.keystore.Lock()
	}

	m.mu.Lock()
	m.standalone = true
	m.mu.Unlock()

	m.ledger.EnterStandaloneMode()
	m.adoptStandalone(m.ledger.State())
	m.metrics.ModeTransition(string(ModeStandaloneLedger), true)
	m.log.Info("Switched to standalone ledger mode")
	return nil
}

// Close detaches the manager from both sessions.
func (m *Manager) Close() {
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil
}

func (m *Manager) onKeystore(ks wallet.State) {
	m.mu.Lock()
	exit := m.standalone && ks.IsUnlocked()
	if exit {
		m.standalone = false
	}
	ignore := m.standalone
	m.mu.Unlock()

	if ignore {
		return
	}
	if exit {
		m.log.Info("Keystore unlocked, leaving standalone ledger mode")
		m.ledger.ExitStandaloneMode()
		m.metrics.ModeTransition(string(ModeKeystore), true)
	}
	m.adoptKeystore(ks)
}

func (m *Manager) onStandalone(ls ledger.State) {
	m.adoptStandalone(ls)
}

// adoptKeystore publishes ks unless standalone mode is active by the time
// the state cell is locked.
func (m *Manager) adoptKeystore(ks wallet.State) {
	m.state.Update(func(cur State) State {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.standalone {
			return cur
		}
		return FromKeystore(ks)
	})
	m.recordMode()
}

// adoptStandalone publishes ls only while standalone mode is active.
func (m *Manager) adoptStandalone(ls ledger.State) {
	m.state.Update(func(cur State) State {
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.standalone {
			return cur
		}
		return StandaloneLedger{Ledger: ls}
	})
	m.recordMode()
}

func (m *Manager) recordMode() {
	modes := make([]string, len(Modes))
	for i, mode := range Modes {
		modes[i] = string(mode)
	}
	m.metrics.SetSessionMode(string(m.State().Mode()), modes...)
}
