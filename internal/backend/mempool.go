package backend

import (
	"context"
	"fmt"
	"math/big"
	"net/url"

	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
)

// MempoolBackend implements Backend using the mempool.space API.
// Compatible with mempool.space, litecoinspace.org, and self-hosted instances.
type MempoolBackend struct {
	*restClient
}

// NewMempoolBackend creates a new mempool.space backend.
func NewMempoolBackend(baseURL string, opts Options) *MempoolBackend {
	return &MempoolBackend{restClient: newRESTClient(baseURL, opts)}
}

// Type returns TypeMempool.
func (m *MempoolBackend) Type() Type {
	return TypeMempool
}

// Connect tests the connection by fetching the tip height.
func (m *MempoolBackend) Connect(ctx context.Context) error {
	return m.ping(ctx, "/blocks/tip/height")
}

// Close closes the connection.
func (m *MempoolBackend) Close() error {
	m.close()
	return nil
}

// IsConnected returns true if connected.
func (m *MempoolBackend) IsConnected() bool {
	return m.isConnected()
}

type mempoolStats struct {
	FundedTxoSum int64 `json:"funded_txo_sum"`
	SpentTxoSum  int64 `json:"spent_txo_sum"`
	TxCount      int64 `json:"tx_count"`
}

// Balances returns the native balance. UTXO chains carry no tokens.
func (m *MempoolBackend) Balances(ctx context.Context, address string, assets []chain.Asset, bt BalanceType) ([]Balance, error) {
	if err := requireNativeOnly(assets); err != nil {
		return nil, err
	}

	var result struct {
		Address      string       `json:"address"`
		ChainStats   mempoolStats `json:"chain_stats"`
		MempoolStats mempoolStats `json:"mempool_stats"`
	}
	if err := m.get(ctx, "/address/"+url.PathEscape(address), &result); err != nil {
		return nil, err
	}

	amount := result.ChainStats.FundedTxoSum - result.ChainStats.SpentTxoSum
	if bt != BalanceConfirmed {
		amount += result.MempoolStats.FundedTxoSum - result.MempoolStats.SpentTxoSum
	}
	if amount < 0 {
		amount = 0
	}

	out := zeroBalances(assets)
	for i := range out {
		out[i].Amount = big.NewInt(amount)
	}
	return out, nil
}

// requireNativeOnly rejects token assets on backends that only see the gas asset.
func requireNativeOnly(assets []chain.Asset) error {
	for _, a := range assets {
		if !a.IsNative() {
			return fmt.Errorf("%w: %s", ErrUnsupportedAsset, a)
		}
	}
	return nil
}

// Ensure MempoolBackend implements Backend
var _ Backend = (*MempoolBackend)(nil)
