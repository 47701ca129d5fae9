package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
	"github.com/asgardex/asgardex-mobile-sub001/internal/ledger"
	"github.com/asgardex/asgardex-mobile-sub001/internal/metrics"
	"github.com/asgardex/asgardex-mobile-sub001/internal/stream"
	"github.com/asgardex/asgardex-mobile-sub001/internal/wallet"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testWallet = wallet.Info{ID: "w1", Name: "main"}

type fakeKeystore struct {
	cell  *stream.Cell[wallet.State]
	locks int
}

func newFakeKeystore(status wallet.Status) *fakeKeystore {
	st := wallet.State{Status: status}
	if status != wallet.StatusEmpty {
		info := testWallet
		st.Selected = &info
		st.Wallets = []wallet.Info{testWallet}
	}
	return &fakeKeystore{cell: stream.NewCell(st, stream.WithEqual(wallet.State.Equal))}
}

func (f *fakeKeystore) State() wallet.State { return f.cell.Get() }

func (f *fakeKeystore) Subscribe(fn func(wallet.State)) func() { return f.cell.Subscribe(fn) }

func (f *fakeKeystore) setStatus(s wallet.Status) {
	f.cell.Update(func(cur wallet.State) wallet.State {
		cur.Status = s
		return cur
	})
}

func (f *fakeKeystore) Lock() {
	f.locks++
	if f.State().IsUnlocked() {
		f.setStatus(wallet.StatusLocked)
	}
}

func newStandalone(t *testing.T) *ledger.Standalone {
	t.Helper()
	s, err := ledger.NewStandalone(ledger.Config{
		Bridge: ledger.BridgeFunc(func(ctx context.Context, req ledger.AddressRequest) (wallet.WalletAddress, error) {
			return wallet.WalletAddress{Address: "bc1qledger"}, nil
		}),
		Network: chain.Mainnet,
	})
	require.NoError(t, err)
	return s
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) add(s State) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
}

func (l *stateLog) all() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func TestNewManagerAdoptsKeystore(t *testing.T) {
	tests := []struct {
		name   string
		status wallet.Status
		mode   Mode
	}{
		{"no keystore", wallet.StatusEmpty, ModeEmpty},
		{"locked keystore", wallet.StatusLocked, ModeKeystore},
		{"unlocked keystore", wallet.StatusUnlocked, ModeKeystore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ks := newFakeKeystore(tt.status)
			mgr := NewManager(ks, newStandalone(t), nil)
			defer mgr.Close()

			assert.Equal(t, tt.mode, mgr.State().Mode())
			assert.False(t, mgr.IsStandalone())
		})
	}
}

func TestKeystoreChangesAdoptedInKeystoreMode(t *testing.T) {
	ks := newFakeKeystore(wallet.StatusLocked)
	mgr := NewManager(ks, newStandalone(t), nil)
	defer mgr.Close()

	ks.setStatus(wallet.StatusUnlocked)
	assert.True(t, IsKeystoreUnlocked(mgr.State()))

	ks.setStatus(wallet.StatusLocked)
	st, ok := mgr.State().(Keystore)
	require.True(t, ok)
	assert.Equal(t, wallet.StatusLocked, st.Wallet.Status)
}

func TestSwitchToStandaloneRefusedWhileUnlocked(t *testing.T) {
	ks := newFakeKeystore(wallet.StatusUnlocked)
	standalone := newStandalone(t)
	m := metrics.New()
	mgr := NewManager(ks, standalone, m)
	defer mgr.Close()
	before := mgr.State()

	err := mgr.SwitchToStandaloneLedgerMode(false)
	require.ErrorIs(t, err, ErrKeystoreUnlocked)

	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ModeKeystore, te.From)
	assert.Equal(t, ModeStandaloneLedger, te.To)

	assert.True(t, Equal(before, mgr.State()))
	assert.True(t, ks.State().IsUnlocked())
	assert.Zero(t, ks.locks)
	assert.False(t, mgr.IsStandalone())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ModeTransitions.WithLabelValues("standalone-ledger", "false")))
}

func TestSwitchToStandaloneWithAutoLock(t *testing.T) {
	ks := newFakeKeystore(wallet.StatusUnlocked)
	m := metrics.New()
	mgr := NewManager(ks, newStandalone(t), m)
	defer mgr.Close()

	require.NoError(t, mgr.SwitchToStandaloneLedgerMode(true))

	assert.Equal(t, wallet.StatusLocked, ks.State().Status)
	assert.Equal(t, 1, ks.locks)

	sl, ok := mgr.State().(StandaloneLedger)
	require.True(t, ok)
	assert.Equal(t, ledger.PhaseChainSelection, sl.Ledger.Phase)
	assert.Equal(t, chain.Supported(), sl.Ledger.AvailableChains)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionMode.WithLabelValues("standalone-ledger")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.SessionMode.WithLabelValues("keystore")))
}

func TestSwitchToStandaloneFromLockedKeystore(t *testing.T) {
	ks := newFakeKeystore(wallet.StatusLocked)
	mgr := NewManager(ks, newStandalone(t), nil)
	defer mgr.Close()

	require.NoError(t, mgr.SwitchToStandaloneLedgerMode(false))
	assert.True(t, IsStandaloneLedger(mgr.State()))
	assert.Zero(t, ks.locks)
}

func TestStandaloneChangesAdoptedOnlyInStandaloneMode(t *testing.T) {
	ks := newFakeKeystore(wallet.StatusLocked)
	standalone := newStandalone(t)
	mgr := NewManager(ks, standalone, nil)
	defer mgr.Close()

	// Keystore mode ignores standalone internals.
	require.NoError(t, standalone.SetSelectedChainForDetection(chain.BTC))
	assert.Equal(t, ModeKeystore, mgr.State().Mode())

	require.NoError(t, mgr.SwitchToStandaloneLedgerMode(false))
	_, err := standalone.ConnectLedgerChain(context.Background(), chain.BTC, "", 0, 0)
	require.NoError(t, err)

	addr, ok := LedgerAddress(mgr.State())
	require.True(t, ok)
	assert.Equal(t, "bc1qledger", addr.Address)
	assert.Equal(t, wallet.TypeLedger, addr.Type)
}

func TestLockedKeystoreChangesIgnoredInStandaloneMode(t *testing.T) {
	ks := newFakeKeystore(wallet.StatusLocked)
	mgr := NewManager(ks, newStandalone(t), nil)
	defer mgr.Close()
	require.NoError(t, mgr.SwitchToStandaloneLedgerMode(false))

	ks.cell.Update(func(cur wallet.State) wallet.State {
		cur.Wallets = append(cur.Wallets, wallet.Info{ID: "w2", Name: "second"})
		return cur
	})
	assert.True(t, IsStandaloneLedger(mgr.State()))
	assert.True(t, mgr.IsStandalone())
}

func TestUnlockForcesExitFromStandalone(t *testing.T) {
	ks := newFakeKeystore(wallet.StatusLocked)
	standalone := newStandalone(t)
	mgr := NewManager(ks, standalone, nil)
	defer mgr.Close()

	require.NoError(t, mgr.SwitchToStandaloneLedgerMode(false))
	_, err := standalone.ConnectLedgerChain(context.Background(), chain.BTC, "", 0, 0)
	require.NoError(t, err)

	ks.setStatus(wallet.StatusUnlocked)

	assert.True(t, IsKeystoreUnlocked(mgr.State()))
	assert.False(t, mgr.IsStandalone())
	assert.True(t, standalone.State().Equal(ledger.InitialState()), "standalone data must be cleared")

	// Standalone updates no longer leak into the app state.
	require.NoError(t, standalone.SetSelectedChainForDetection(chain.ETH))
	assert.True(t, IsKeystoreUnlocked(mgr.State()))
}

func TestSwitchToKeystoreMode(t *testing.T) {
	ks := newFakeKeystore(wallet.StatusLocked)
	standalone := newStandalone(t)
	mgr := NewManager(ks, standalone, nil)
	defer mgr.Close()

	require.NoError(t, mgr.SwitchToStandaloneLedgerMode(false))
	_, err := standalone.ConnectLedgerChain(context.Background(), chain.BTC, "", 0, 0)
	require.NoError(t, err)

	mgr.SwitchToKeystoreMode()
	st, ok := mgr.State().(Keystore)
	require.True(t, ok)
	assert.Equal(t, wallet.StatusLocked, st.Wallet.Status)
	assert.Empty(t, standalone.State().ConnectedChain)
}

func TestSwitchToKeystoreModeWithoutKeystore(t *testing.T) {
	ks := newFakeKeystore(wallet.StatusEmpty)
	mgr := NewManager(ks, newStandalone(t), nil)
	defer mgr.Close()

	require.NoError(t, mgr.SwitchToStandaloneLedgerMode(false))
	mgr.SwitchToKeystoreMode()
	assert.Equal(t, ModeEmpty, mgr.State().Mode())
}

func TestReenterStandaloneResets(t *testing.T) {
	ks := newFakeKeystore(wallet.StatusEmpty)
	standalone := newStandalone(t)
	mgr := NewManager(ks, standalone, nil)
	defer mgr.Close()

	require.NoError(t, mgr.SwitchToStandaloneLedgerMode(false))
	_, err := standalone.ConnectLedgerChain(context.Background(), chain.BTC, "", 0, 0)
	require.NoError(t, err)

	require.NoError(t, mgr.SwitchToStandaloneLedgerMode(false))
	_, ok := LedgerAddress(mgr.State())
	assert.False(t, ok)
}

func TestStateIsAlwaysOneVariant(t *testing.T) {
	ks := newFakeKeystore(wallet.StatusLocked)
	standalone := newStandalone(t)
	mgr := NewManager(ks, standalone, nil)
	defer mgr.Close()

	var log stateLog
	defer mgr.Subscribe(log.add)()

	require.NoError(t, mgr.SwitchToStandaloneLedgerMode(false))
	require.NoError(t, standalone.SetSelectedChainForDetection(chain.LTC))
	ks.setStatus(wallet.StatusUnlocked)
	require.Error(t, mgr.SwitchToStandaloneLedgerMode(false))
	require.NoError(t, mgr.SwitchToStandaloneLedgerMode(true))
	mgr.SwitchToKeystoreMode()

	var modes []Mode
	for _, st := range log.all() {
		switch v := st.(type) {
		case Empty:
		case Keystore:
			assert.NotEqual(t, wallet.StatusEmpty, v.Wallet.Status)
		case StandaloneLedger:
			assert.Equal(t, ledger.Mode, v.Ledger.Mode)
		default:
			t.Fatalf("unexpected state %T", st)
		}
		modes = append(modes, st.Mode())
	}
	assert.Equal(t, []Mode{
		ModeKeystore,         // initial
		ModeStandaloneLedger, // entered
		ModeStandaloneLedger, // chain selected
		ModeKeystore,         // unlock forced exit
		ModeKeystore,         // auto-lock
		ModeStandaloneLedger, // entered again
		ModeKeystore,         // switched back
	}, modes)
}

func TestCloseDetaches(t *testing.T) {
	ks := newFakeKeystore(wallet.StatusLocked)
	mgr := NewManager(ks, newStandalone(t), nil)
	mgr.Close()

	ks.setStatus(wallet.StatusUnlocked)
	assert.False(t, IsKeystoreUnlocked(mgr.State()))
}

func TestStateJSON(t *testing.T) {
	data, err := json.Marshal(Empty{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"empty"}`, string(data))

	info := testWallet
	data, err = json.Marshal(Keystore{Wallet: wallet.State{
		Status:   wallet.StatusLocked,
		Selected: &info,
		Wallets:  []wallet.Info{testWallet},
	}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"keystore","status":"locked","selected":{"id":"w1","name":"main"},"wallets":[{"id":"w1","name":"main"}]}`, string(data))

	var st State = StandaloneLedger{Ledger: ledger.InitialState()}
	data, err = json.Marshal(st)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "standalone-ledger", decoded["mode"])
	assert.Equal(t, "chain-selection", decoded["detectionPhase"])
}

func TestEqual(t *testing.T) {
	locked := Keystore{Wallet: wallet.State{Status: wallet.StatusLocked}}
	unlocked := Keystore{Wallet: wallet.State{Status: wallet.StatusUnlocked}}
	standalone := StandaloneLedger{Ledger: ledger.InitialState()}

	assert.True(t, Equal(Empty{}, Empty{}))
	assert.True(t, Equal(locked, Keystore{Wallet: wallet.State{Status: wallet.StatusLocked}}))
	assert.False(t, Equal(locked, unlocked))
	assert.False(t, Equal(Empty{}, locked))
	assert.True(t, Equal(standalone, StandaloneLedger{Ledger: ledger.InitialState()}))
	assert.False(t, Equal(standalone, locked))
}

func TestTransitionErrorMessage(t *testing.T) {
	err := &TransitionError{From: ModeKeystore, To: ModeStandaloneLedger, Err: ErrKeystoreUnlocked}
	assert.Equal(t, "cannot switch from keystore to standalone-ledger: keystore is unlocked", err.Error())
	assert.True(t, errors.Is(err, ErrKeystoreUnlocked))
}
