package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/asgardex/asgardex-mobile-sub001/internal/backend"
	"github.com/asgardex/asgardex-mobile-sub001/internal/balances"
	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
	"github.com/asgardex/asgardex-mobile-sub001/internal/client"
	"github.com/asgardex/asgardex-mobile-sub001/internal/storage"
	"github.com/asgardex/asgardex-mobile-sub001/internal/stream"
	"github.com/asgardex/asgardex-mobile-sub001/internal/wallet"
)

// byAddressTimeout bounds a balances_byAddress read.
const byAddressTimeout = time.Minute

// ========================================
// Address handlers
// ========================================

// AddressResult is the resolved wallet address of a chain. Address is nil
// when no address is known.
type AddressResult struct {
	Chain   chain.Chain           `json:"chain"`
	Address *wallet.WalletAddress `json:"address"`
}

func toAddressResult(c chain.Chain, ra client.ResolvedAddress) AddressResult {
	res := AddressResult{Chain: c}
	if ra.Valid {
		addr := ra.Address
		res.Address = &addr
	}
	return res
}

func (s *Server) chainClients(name string) (*client.ChainClients, error) {
	if name == "" {
		return nil, invalidParams("chain is required")
	}
	c, err := chain.Parse(name)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	cc, ok := s.clients[c]
	if !ok {
		return nil, fmt.Errorf("%s: %w", c, balances.ErrNoClient)
	}
	return cc, nil
}

func (s *Server) addressGet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p LedgerChainParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	cc, err := s.chainClients(p.Chain)
	if err != nil {
		return nil, err
	}
	return toAddressResult(cc.Chain, cc.Address.Get()), nil
}

func (s *Server) addressList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	out := make([]AddressResult, 0, len(s.clients))
	for _, c := range chain.Supported() {
		cc, ok := s.clients[c]
		if !ok {
			continue
		}
		out = append(out, toAddressResult(c, cc.Address.Get()))
	}
	return map[string]interface{}{
		"addresses": out,
	}, nil
}

// ========================================
// Balance handlers
// ========================================

// BalancesParams selects the wallet whose balances are read. WalletType
// defaults to keystore, BalanceType to all and HDMode to the chain default.
type BalancesParams struct {
	Chain       string `json:"chain,omitempty"`
	WalletType  string `json:"walletType,omitempty"`
	HDMode      string `json:"hdMode,omitempty"`
	Account     uint32 `json:"account,omitempty"`
	Index       uint32 `json:"index,omitempty"`
	BalanceType string `json:"balanceType,omitempty"`
}

func (p BalancesParams) toParams() (balances.Params, error) {
	out := balances.Params{
		WalletAccount: p.Account,
		WalletIndex:   p.Index,
		WalletType:    wallet.TypeKeystore,
	}
	if p.WalletType != "" {
		wt, ok := wallet.ParseWalletType(p.WalletType)
		if !ok {
			return out, invalidParams("unknown wallet type: %s", p.WalletType)
		}
		out.WalletType = wt
	}
	if p.HDMode != "" {
		hd, err := chain.ParseHDMode(p.HDMode)
		if err != nil {
			return out, invalidParams("%v", err)
		}
		out.HDMode = hd
	}
	bt, err := backend.ParseBalanceType(p.BalanceType)
	if err != nil {
		return out, invalidParams("%v", err)
	}
	out.BalanceType = bt
	return out, nil
}

func (s *Server) balancesGet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.balances == nil {
		return nil, fmt.Errorf("balances %w", errServiceMissing)
	}

	var p BalancesParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Chain == "" {
		return nil, invalidParams("chain is required")
	}
	c, err := chain.Parse(p.Chain)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	bp, err := p.toParams()
	if err != nil {
		return nil, err
	}

	st, err := s.balances.Refresh(ctx, c, bp)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// BalancesRefreshAllResult is the response for balances_refreshAll.
type BalancesRefreshAllResult struct {
	Chains map[chain.Chain]balances.State `json:"chains"`
	Error  string                         `json:"error,omitempty"`
}

// balancesRefreshAll reads every chain. Per-chain failures are reported in
// the result, not as a call error.
func (s *Server) balancesRefreshAll(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.balances == nil {
		return nil, fmt.Errorf("balances %w", errServiceMissing)
	}

	var p BalancesParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	bp, err := p.toParams()
	if err != nil {
		return nil, err
	}

	result := &BalancesRefreshAllResult{}
	if err := s.balances.RefreshAll(ctx, bp); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		result.Error = err.Error()
	}
	result.Chains = s.balances.Snapshot()
	return result, nil
}

func (s *Server) balancesSnapshot(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.balances == nil {
		return nil, fmt.Errorf("balances %w", errServiceMissing)
	}
	return map[string]interface{}{
		"chains": s.balances.Snapshot(),
	}, nil
}

// BalancesReloadParams is the parameters for balances_reload.
type BalancesReloadParams struct {
	WalletType string `json:"walletType"`
}

func (s *Server) balancesReload(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.balances == nil {
		return nil, fmt.Errorf("balances %w", errServiceMissing)
	}

	var p BalancesReloadParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	wt, ok := wallet.ParseWalletType(p.WalletType)
	if !ok {
		return nil, invalidParams("unknown wallet type: %q", p.WalletType)
	}

	s.balances.Reload(wt)
	return map[string]interface{}{
		"success":    true,
		"walletType": wt,
	}, nil
}

// BalancesByAddressParams is the parameters for balances_byAddress.
type BalancesByAddressParams struct {
	Chain       string `json:"chain"`
	Address     string `json:"address"`
	WalletType  string `json:"walletType,omitempty"`
	HDMode      string `json:"hdMode,omitempty"`
	Account     uint32 `json:"account,omitempty"`
	Index       uint32 `json:"index,omitempty"`
	BalanceType string `json:"balanceType,omitempty"`
}

// balancesByAddress reads the fallback assets of a given address once.
func (s *Server) balancesByAddress(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.balances == nil {
		return nil, fmt.Errorf("balances %w", errServiceMissing)
	}

	var p BalancesByAddressParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Chain == "" || p.Address == "" {
		return nil, invalidParams("chain and address are required")
	}
	c, err := chain.Parse(p.Chain)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	bp, err := BalancesParams{
		WalletType:  p.WalletType,
		HDMode:      p.HDMode,
		BalanceType: p.BalanceType,
	}.toParams()
	if err != nil {
		return nil, err
	}

	agg, ok := s.balances.Get(c)
	if !ok {
		return nil, fmt.Errorf("%s: %w", c, balances.ErrNoClient)
	}
	cc, ok := s.clients[c]
	if !ok || !cc.Active.Get().Valid {
		return nil, fmt.Errorf("%s: %w", c, balances.ErrNoClient)
	}

	hd := bp.HDMode
	if hd == "" {
		hd = chain.DefaultHDMode(c)
	}
	addr := wallet.WalletAddress{
		Address:       p.Address,
		Chain:         c,
		WalletAccount: p.Account,
		WalletIndex:   p.Index,
		HDMode:        hd,
		Type:          bp.WalletType,
	}

	readCtx, cancel := context.WithTimeout(ctx, byAddressTimeout)
	defer cancel()
	bals, err := awaitResult(readCtx, agg.BalancesByAddress(readCtx, addr, bp.BalanceType))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"balances": bals,
	}, nil
}

// awaitResult waits for obs to settle on a success or failure.
func awaitResult[T any](ctx context.Context, obs stream.Observable[stream.Result[T]]) (T, error) {
	settled := make(chan stream.Result[T], 1)
	unsubscribe := obs.Subscribe(func(r stream.Result[T]) {
		if !r.IsSuccess() && !r.IsFailure() {
			return
		}
		select {
		case settled <- r:
		default:
		}
	})
	defer unsubscribe()

	var zero T
	select {
	case r := <-settled:
		if r.IsFailure() {
			return zero, r.Err
		}
		return r.Value, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// ========================================
// User token handlers
// ========================================

// TokenParams is the parameters for tokens_add and tokens_remove.
type TokenParams struct {
	Chain    string `json:"chain"`
	Symbol   string `json:"symbol,omitempty"`
	Contract string `json:"contract"`
	Decimals uint8  `json:"decimals,omitempty"`
}

// tokenChain validates that c can hold tokens.
func tokenChain(name string) (chain.Chain, error) {
	if name == "" {
		return "", invalidParams("chain is required")
	}
	c, err := chain.Parse(name)
	if err != nil {
		return "", invalidParams("%v", err)
	}
	if p, ok := chain.Get(c, chain.Mainnet); ok && p.Family == chain.FamilyUTXO {
		return "", invalidParams("%s has no tokens", c)
	}
	return c, nil
}

func (s *Server) tokensList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.store == nil {
		return nil, fmt.Errorf("storage %w", errServiceMissing)
	}

	var p LedgerChainParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	c, err := tokenChain(p.Chain)
	if err != nil {
		return nil, err
	}

	tokens, err := s.store.UserTokens(string(c), string(s.network))
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		tokens = []*storage.UserToken{}
	}
	return map[string]interface{}{
		"chain":  c,
		"tokens": tokens,
	}, nil
}

func (s *Server) tokensAdd(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.store == nil {
		return nil, fmt.Errorf("storage %w", errServiceMissing)
	}

	var p TokenParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	c, err := tokenChain(p.Chain)
	if err != nil {
		return nil, err
	}
	if p.Contract == "" || p.Symbol == "" {
		return nil, invalidParams("symbol and contract are required")
	}

	token := &storage.UserToken{
		Chain:    string(c),
		Network:  string(s.network),
		Symbol:   strings.ToUpper(p.Symbol),
		Contract: p.Contract,
		Decimals: p.Decimals,
	}
	if err := s.store.AddUserToken(token); err != nil {
		return nil, err
	}
	s.reloadAll()
	return token, nil
}

func (s *Server) tokensRemove(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.store == nil {
		return nil, fmt.Errorf("storage %w", errServiceMissing)
	}

	var p TokenParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	c, err := tokenChain(p.Chain)
	if err != nil {
		return nil, err
	}
	if p.Contract == "" {
		return nil, invalidParams("contract is required")
	}

	if err := s.store.RemoveUserToken(string(c), string(s.network), p.Contract); err != nil {
		return nil, err
	}
	s.reloadAll()
	return map[string]interface{}{
		"success": true,
	}, nil
}

// reloadAll makes every live balance pipeline re-read its asset list.
func (s *Server) reloadAll() {
	if s.balances == nil {
		return
	}
	s.balances.Reload(wallet.TypeKeystore)
	s.balances.Reload(wallet.TypeLedger)
}
