package backend

import (
	"context"
	"math/big"
	"net/url"

	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
)

// TronGridBackend implements Backend using the TronGrid v1 accounts API.
type TronGridBackend struct {
	*restClient
}

// NewTronGridBackend creates a new TronGrid backend.
func NewTronGridBackend(baseURL string, opts Options) *TronGridBackend {
	return &TronGridBackend{restClient: newRESTClient(baseURL, opts)}
}

// Type returns TypeTronGrid.
func (t *TronGridBackend) Type() Type {
	return TypeTronGrid
}

// Connect tests the connection with the latest block endpoint.
func (t *TronGridBackend) Connect(ctx context.Context) error {
	return t.ping(ctx, "/walletsolidity/getnowblock")
}

// Close closes the connection.
func (t *TronGridBackend) Close() error {
	t.close()
	return nil
}

// IsConnected returns true if connected.
func (t *TronGridBackend) IsConnected() bool {
	return t.isConnected()
}

// Balances returns the TRX balance and TRC-20 balances of address. An account
// that was never activated has no data and reports zero everywhere.
func (t *TronGridBackend) Balances(ctx context.Context, address string, assets []chain.Asset, bt BalanceType) ([]Balance, error) {
	path := "/v1/accounts/" + url.PathEscape(address)
	if bt == BalanceConfirmed {
		path += "?only_confirmed=true"
	}

	var result struct {
		Success bool `json:"success"`
		Data    []struct {
			Balance int64               `json:"balance"`
			TRC20   []map[string]string `json:"trc20"`
		} `json:"data"`
	}
	if err := t.get(ctx, path, &result); err != nil {
		return nil, err
	}

	out := zeroBalances(assets)
	if len(result.Data) == 0 {
		return out, nil
	}
	account := result.Data[0]

	tokens := make(map[string]string)
	for _, entry := range account.TRC20 {
		for contract, amount := range entry {
			tokens[contract] = amount
		}
	}

	for i, a := range assets {
		if a.IsNative() {
			out[i].Amount = big.NewInt(account.Balance)
			continue
		}
		raw, ok := tokens[a.Contract]
		if !ok {
			continue
		}
		amount, err := parseAmount(raw)
		if err != nil {
			return nil, err
		}
		out[i].Amount = amount
	}
	return out, nil
}

// Ensure TronGridBackend implements Backend
var _ Backend = (*TronGridBackend)(nil)
