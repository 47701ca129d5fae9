package backend

import (
	"context"
	"net/url"

	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
)

// BlockbookBackend implements Backend using Trezor's Blockbook API.
// API docs: https://github.com/trezor/blockbook/blob/master/docs/api.md
type BlockbookBackend struct {
	*restClient
}

// NewBlockbookBackend creates a new Blockbook backend.
// baseURL should be like "https://bch1.trezor.io/api/v2" or "https://doge1.trezor.io/api/v2"
func NewBlockbookBackend(baseURL string, opts Options) *BlockbookBackend {
	return &BlockbookBackend{restClient: newRESTClient(baseURL, opts)}
}

// Type returns TypeBlockbook.
func (b *BlockbookBackend) Type() Type {
	return TypeBlockbook
}

// Connect tests the connection with the status endpoint.
func (b *BlockbookBackend) Connect(ctx context.Context) error {
	return b.ping(ctx, "")
}

// Close closes the connection.
func (b *BlockbookBackend) Close() error {
	b.close()
	return nil
}

// IsConnected returns true if connected.
func (b *BlockbookBackend) IsConnected() bool {
	return b.isConnected()
}

// Balances returns the native balance of address.
func (b *BlockbookBackend) Balances(ctx context.Context, address string, assets []chain.Asset, bt BalanceType) ([]Balance, error) {
	if err := requireNativeOnly(assets); err != nil {
		return nil, err
	}

	var result struct {
		Address            string `json:"address"`
		Balance            string `json:"balance"`
		UnconfirmedBalance string `json:"unconfirmedBalance"`
	}
	if err := b.get(ctx, "/address/"+url.PathEscape(address)+"?details=basic", &result); err != nil {
		return nil, err
	}

	amount, err := parseAmount(result.Balance)
	if err != nil {
		return nil, err
	}
	if bt != BalanceConfirmed {
		unconfirmed, err := parseAmount(result.UnconfirmedBalance)
		if err != nil {
			return nil, err
		}
		amount.Add(amount, unconfirmed)
		if amount.Sign() < 0 {
			amount.SetInt64(0)
		}
	}

	out := zeroBalances(assets)
	for i := range out {
		out[i].Amount.Set(amount)
	}
	return out, nil
}

// Ensure BlockbookBackend implements Backend
var _ Backend = (*BlockbookBackend)(nil)
