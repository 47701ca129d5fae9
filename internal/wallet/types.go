package wallet

import (
	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
)

// WalletType says which authentication mode produced an address.
type WalletType string

const (
	TypeKeystore WalletType = "keystore"
	TypeLedger   WalletType = "ledger"
)

// ParseWalletType validates a wallet type string.
func ParseWalletType(s string) (WalletType, bool) {
	switch WalletType(s) {
	case TypeKeystore, TypeLedger:
		return WalletType(s), true
	}
	return "", false
}

// WalletAddress is an address together with the derivation that produced it.
type WalletAddress struct {
	Address       string       `json:"address"`
	Chain         chain.Chain  `json:"chain"`
	WalletAccount uint32       `json:"walletAccount"`
	WalletIndex   uint32       `json:"walletIndex"`
	HDMode        chain.HDMode `json:"hdMode"`
	Type          WalletType   `json:"type"`
}

// Status is the lifecycle state of the keystore.
type Status string

const (
	StatusEmpty    Status = "empty"    // no keystore has ever been created
	StatusLocked   Status = "locked"   // keystore exists, secret not in memory
	StatusUnlocked Status = "unlocked" // secret in memory, signing possible
)

// Info describes one stored keystore.
type Info struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// State is the observable keystore state. It never contains key material.
type State struct {
	Status   Status `json:"status"`
	Selected *Info  `json:"selected,omitempty"`
	Wallets  []Info `json:"wallets"`
}

// IsUnlocked reports whether the keystore is unlocked.
func (s State) IsUnlocked() bool {
	return s.Status == StatusUnlocked
}

// Equal compares two states by value.
func (s State) Equal(o State) bool {
	if s.Status != o.Status || len(s.Wallets) != len(o.Wallets) {
		return false
	}
	if (s.Selected == nil) != (o.Selected == nil) {
		return false
	}
	if s.Selected != nil && *s.Selected != *o.Selected {
		return false
	}
	for i := range s.Wallets {
		if s.Wallets[i] != o.Wallets[i] {
			return false
		}
	}
	return true
}
