// Package ledger implements the hardware wallet side of the session core: the
// bridge to the out-of-process device service and the standalone ledger
// session with its chain detection protocol.
package ledger

import (
	"context"

	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
	"github.com/asgardex/asgardex-mobile-sub001/internal/wallet"
)

// AddressRequest asks the device for the address at a derivation position.
type AddressRequest struct {
	Chain         chain.Chain   `json:"chain"`
	Network       chain.Network `json:"network"`
	WalletAccount uint32        `json:"walletAccount"`
	WalletIndex   uint32        `json:"walletIndex"`
	HDMode        chain.HDMode  `json:"hdMode"`
}

// Bridge reads addresses from a connected hardware wallet. A call blocks
// until the device answers, fails, or ctx ends.
type Bridge interface {
	GetAddress(ctx context.Context, req AddressRequest) (wallet.WalletAddress, error)
}

// BridgeFunc adapts a function to Bridge.
type BridgeFunc func(ctx context.Context, req AddressRequest) (wallet.WalletAddress, error)

// GetAddress calls f.
func (f BridgeFunc) GetAddress(ctx context.Context, req AddressRequest) (wallet.WalletAddress, error) {
	return f(ctx, req)
}
