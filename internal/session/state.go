// Package session arbitrates between the keystore and the standalone ledger
// session and publishes the one wallet state the rest of the daemon reads.
package session

import (
	"encoding/json"

	"github.com/asgardex/asgardex-mobile-sub001/internal/ledger"
	"github.com/asgardex/asgardex-mobile-sub001/internal/wallet"
)

// Mode names a State variant.
type Mode string

const (
	ModeEmpty            Mode = "empty"
	ModeKeystore         Mode = "keystore"
	ModeStandaloneLedger Mode = ledger.Mode
)

// Modes lists every mode.
var Modes = []Mode{ModeEmpty, ModeKeystore, ModeStandaloneLedger}

// State is the application wallet state: exactly one of Empty, Keystore or
// StandaloneLedger. Values are replaced whole, never mutated.
type State interface {
	Mode() Mode
	isState()
}

// Empty means no keystore exists and standalone mode is not active.
type Empty struct{}

// Keystore carries the keystore state while keystore mode is active.
type Keystore struct {
	Wallet wallet.State
}

// StandaloneLedger carries the standalone ledger state while standalone mode
// is active.
type StandaloneLedger struct {
	Ledger ledger.State
}

func (Empty) Mode() Mode            { return ModeEmpty }
func (Keystore) Mode() Mode         { return ModeKeystore }
func (StandaloneLedger) Mode() Mode { return ModeStandaloneLedger }

func (Empty) isState()            {}
func (Keystore) isState()         {}
func (StandaloneLedger) isState() {}

func (Empty) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Mode Mode `json:"mode"`
	}{ModeEmpty})
}

func (k Keystore) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Mode Mode `json:"mode"`
		wallet.State
	}{ModeKeystore, k.Wallet})
}

func (s StandaloneLedger) MarshalJSON() ([]byte, error) {
	// ledger.State carries its own mode tag.
	return json.Marshal(s.Ledger)
}

// FromKeystore maps a keystore state to the variant that represents it.
func FromKeystore(ks wallet.State) State {
	if ks.Status == wallet.StatusEmpty {
		return Empty{}
	}
	return Keystore{Wallet: ks}
}

// Equal compares two states by variant and value.
func Equal(a, b State) bool {
	switch av := a.(type) {
	case Empty:
		_, ok := b.(Empty)
		return ok
	case Keystore:
		bv, ok := b.(Keystore)
		return ok && av.Wallet.Equal(bv.Wallet)
	case StandaloneLedger:
		bv, ok := b.(StandaloneLedger)
		return ok && av.Ledger.Equal(bv.Ledger)
	}
	return a == nil && b == nil
}

// IsStandaloneLedger reports whether s is a standalone ledger state.
func IsStandaloneLedger(s State) bool {
	_, ok := s.(StandaloneLedger)
	return ok
}

// IsKeystoreUnlocked reports whether s is an unlocked keystore, the only
// state in which the daemon can sign without a device.
func IsKeystoreUnlocked(s State) bool {
	k, ok := s.(Keystore)
	return ok && k.Wallet.IsUnlocked()
}

// LedgerAddress returns the connected standalone ledger address, if any.
func LedgerAddress(s State) (wallet.WalletAddress, bool) {
	sl, ok := s.(StandaloneLedger)
	if !ok || sl.Ledger.Address == nil {
		return wallet.WalletAddress{}, false
	}
	return *sl.Ledger.Address, true
}
