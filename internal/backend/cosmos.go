package backend

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
)

// nativeDenoms maps a cosmos-sdk chain to the bank denom of its gas asset.
var nativeDenoms = map[chain.Chain]string{
	chain.THOR: "rune",
	chain.GAIA: "uatom",
}

// CosmosBackend implements Backend over the cosmos-sdk LCD bank module.
// Token assets are matched by denom, carried in Asset.Contract.
type CosmosBackend struct {
	*restClient
	chain       chain.Chain
	nativeDenom string
}

// NewCosmosBackend creates a new LCD backend for a cosmos-sdk chain.
func NewCosmosBackend(baseURL string, c chain.Chain, network chain.Network, opts Options) (*CosmosBackend, error) {
	denom, ok := nativeDenoms[c]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a cosmos chain", ErrUnsupportedBackend, c)
	}
	if _, ok := chain.Get(c, network); !ok {
		return nil, fmt.Errorf("unsupported chain: %s", c)
	}
	return &CosmosBackend{
		restClient:  newRESTClient(baseURL, opts),
		chain:       c,
		nativeDenom: denom,
	}, nil
}

// Type returns TypeCosmos.
func (cb *CosmosBackend) Type() Type {
	return TypeCosmos
}

// Connect tests the connection with the node info endpoint.
func (cb *CosmosBackend) Connect(ctx context.Context) error {
	return cb.ping(ctx, "/cosmos/base/tendermint/v1beta1/node_info")
}

// Close closes the connection.
func (cb *CosmosBackend) Close() error {
	cb.close()
	return nil
}

// IsConnected returns true if connected.
func (cb *CosmosBackend) IsConnected() bool {
	return cb.isConnected()
}

// Balances reads all bank balances of address and picks the requested denoms.
// Cosmos balances have no pending part, so bt is ignored.
func (cb *CosmosBackend) Balances(ctx context.Context, address string, assets []chain.Asset, _ BalanceType) ([]Balance, error) {
	var result struct {
		Balances []struct {
			Denom  string `json:"denom"`
			Amount string `json:"amount"`
		} `json:"balances"`
	}
	if err := cb.get(ctx, "/cosmos/bank/v1beta1/balances/"+url.PathEscape(address)+"?pagination.limit=1000", &result); err != nil {
		return nil, err
	}

	byDenom := make(map[string]string, len(result.Balances))
	for _, b := range result.Balances {
		byDenom[b.Denom] = b.Amount
	}

	out := zeroBalances(assets)
	for i, a := range assets {
		denom := cb.nativeDenom
		if !a.IsNative() {
			denom = strings.ToLower(a.Contract)
		}
		raw, ok := byDenom[denom]
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

// Ensure CosmosBackend implements Backend
var _ Backend = (*CosmosBackend)(nil)
