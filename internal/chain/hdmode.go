package chain

import (
	"fmt"
	"strconv"
)

// HDMode selects a derivation scheme. Only EVM chains offer more than one.
type HDMode string

const (
	HDModeDefault    HDMode = "default"
	HDModeLedgerLive HDMode = "ledgerlive"
	HDModeLegacy     HDMode = "legacy"
	HDModeMetamask   HDMode = "metamask"
)

// DefaultEVMHDMode is the HD mode used for EVM chains unless the user picks another.
const DefaultEVMHDMode = HDModeLedgerLive

// ParseHDMode validates an HD mode string. Empty input yields HDModeDefault.
func ParseHDMode(s string) (HDMode, error) {
	switch HDMode(s) {
	case "", HDModeDefault:
		return HDModeDefault, nil
	case HDModeLedgerLive, HDModeLegacy, HDModeMetamask:
		return HDMode(s), nil
	}
	return "", fmt.Errorf("unknown hd mode: %s", s)
}

// DefaultHDMode returns the HD mode to use for c when none was chosen.
func DefaultHDMode(c Chain) HDMode {
	if IsEVM(c) {
		return DefaultEVMHDMode
	}
	return HDModeDefault
}

const hardened = 0x80000000

// DerivationPath returns the BIP32 path for an address of this chain.
//
//	default     m/purpose'/coin'/account'/0/index
//	ledgerlive  m/44'/60'/(account+index)'/0/0
//	legacy      m/44'/60'/account'/index
//	metamask    m/44'/60'/account'/0/index
func (p *Params) DerivationPath(hd HDMode, account, index uint32) []uint32 {
	if p.IsEVM() {
		switch hd {
		case HDModeLedgerLive, HDModeDefault, "":
			return []uint32{44 + hardened, p.CoinType + hardened, account + index + hardened, 0, 0}
		case HDModeLegacy:
			return []uint32{44 + hardened, p.CoinType + hardened, account + hardened, index}
		case HDModeMetamask:
			return []uint32{44 + hardened, p.CoinType + hardened, account + hardened, 0, index}
		}
	}
	return []uint32{
		p.DefaultPurpose + hardened,
		p.CoinType + hardened,
		account + hardened,
		0,
		index,
	}
}

// DerivationPathString returns the derivation path as a string.
func (p *Params) DerivationPathString(hd HDMode, account, index uint32) string {
	return FormatPath(p.DerivationPath(hd, account, index))
}

// FormatPath renders a numeric BIP32 path as m/44'/60'/0'/0/0.
func FormatPath(path []uint32) string {
	buf := []byte{'m'}
	for _, n := range path {
		buf = append(buf, '/')
		if n >= hardened {
			buf = strconv.AppendUint(buf, uint64(n-hardened), 10)
			buf = append(buf, '\'')
			continue
		}
		buf = strconv.AppendUint(buf, uint64(n), 10)
	}
	return string(buf)
}
