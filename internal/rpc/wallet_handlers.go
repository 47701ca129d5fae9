package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
	"github.com/asgardex/asgardex-mobile-sub001/internal/wallet"
)

// ========================================
// Keystore handlers
// ========================================

// WalletStatusResult is the response for wallet_status.
type WalletStatusResult struct {
	HasWallet bool          `json:"has_wallet"`
	Unlocked  bool          `json:"unlocked"`
	Status    wallet.Status `json:"status"`
	Selected  *wallet.Info  `json:"selected,omitempty"`
	Network   string        `json:"network"`
}

func (s *Server) walletStatus(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, fmt.Errorf("wallet %w", errServiceMissing)
	}

	st := s.wallet.State()
	return &WalletStatusResult{
		HasWallet: st.Status != wallet.StatusEmpty,
		Unlocked:  st.IsUnlocked(),
		Status:    st.Status,
		Selected:  st.Selected,
		Network:   string(s.wallet.Network()),
	}, nil
}

// WalletGenerateResult is the response for wallet_generate.
type WalletGenerateResult struct {
	Mnemonic string `json:"mnemonic"`
}

func (s *Server) walletGenerate(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, fmt.Errorf("wallet %w", errServiceMissing)
	}

	mnemonic, err := s.wallet.GenerateMnemonic()
	if err != nil {
		return nil, fmt.Errorf("failed to generate mnemonic: %w", err)
	}

	return &WalletGenerateResult{
		Mnemonic: mnemonic,
	}, nil
}

// WalletValidateMnemonicParams is the parameters for wallet_validateMnemonic.
type WalletValidateMnemonicParams struct {
	Mnemonic string `json:"mnemonic"`
}

func (s *Server) walletValidateMnemonic(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p WalletValidateMnemonicParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"valid": wallet.ValidateMnemonic(p.Mnemonic),
	}, nil
}

// WalletCreateParams is the parameters for wallet_create.
type WalletCreateParams struct {
	Name     string `json:"name"`
	Mnemonic string `json:"mnemonic"`
	Password string `json:"password"` // Encryption password (required)
}

func (s *Server) walletCreate(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, fmt.Errorf("wallet %w", errServiceMissing)
	}

	var p WalletCreateParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	if p.Mnemonic == "" {
		return nil, invalidParams("mnemonic is required")
	}
	if p.Password == "" {
		return nil, invalidParams("password is required")
	}

	info, err := s.wallet.CreateWallet(p.Name, p.Mnemonic, p.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	return info, nil
}

// WalletUnlockParams is the parameters for wallet_unlock.
type WalletUnlockParams struct {
	Password string `json:"password"`
}

func (s *Server) walletUnlock(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, fmt.Errorf("wallet %w", errServiceMissing)
	}

	var p WalletUnlockParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	if p.Password == "" {
		return nil, invalidParams("password is required")
	}

	if err := s.wallet.Unlock(p.Password); err != nil {
		return nil, fmt.Errorf("failed to unlock wallet: %w", err)
	}

	return map[string]interface{}{
		"success": true,
		"message": "Wallet unlocked successfully",
	}, nil
}

func (s *Server) walletLock(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, fmt.Errorf("wallet %w", errServiceMissing)
	}

	s.wallet.Lock()

	return map[string]interface{}{
		"success": true,
		"message": "Wallet locked successfully",
	}, nil
}

// WalletListResult is the response for wallet_list.
type WalletListResult struct {
	Wallets  []wallet.Info `json:"wallets"`
	Selected *wallet.Info  `json:"selected,omitempty"`
}

func (s *Server) walletList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, fmt.Errorf("wallet %w", errServiceMissing)
	}

	st := s.wallet.State()
	wallets := st.Wallets
	if wallets == nil {
		wallets = []wallet.Info{}
	}
	return &WalletListResult{
		Wallets:  wallets,
		Selected: st.Selected,
	}, nil
}

// WalletIDParams is the parameters for wallet_select and wallet_remove.
type WalletIDParams struct {
	ID string `json:"id"`
}

func (s *Server) walletSelect(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, fmt.Errorf("wallet %w", errServiceMissing)
	}

	var p WalletIDParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, invalidParams("id is required")
	}

	if err := s.wallet.SelectWallet(p.ID); err != nil {
		return nil, fmt.Errorf("failed to select wallet: %w", err)
	}

	return map[string]interface{}{
		"success": true,
		"id":      p.ID,
	}, nil
}

// WalletRenameParams is the parameters for wallet_rename.
type WalletRenameParams struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) walletRename(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, fmt.Errorf("wallet %w", errServiceMissing)
	}

	var p WalletRenameParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, invalidParams("id is required")
	}

	if err := s.wallet.RenameWallet(p.ID, p.Name); err != nil {
		return nil, fmt.Errorf("failed to rename wallet: %w", err)
	}

	return map[string]interface{}{
		"success": true,
		"id":      p.ID,
	}, nil
}

func (s *Server) walletRemove(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, fmt.Errorf("wallet %w", errServiceMissing)
	}

	var p WalletIDParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, invalidParams("id is required")
	}

	if err := s.wallet.RemoveWallet(p.ID); err != nil {
		return nil, fmt.Errorf("failed to remove wallet: %w", err)
	}

	return map[string]interface{}{
		"success": true,
		"id":      p.ID,
	}, nil
}

// AddressParams selects one derived address. Empty HDMode means the chain's
// default.
type AddressParams struct {
	Chain   string `json:"chain"`
	HDMode  string `json:"hdMode,omitempty"`
	Account uint32 `json:"account,omitempty"`
	Index   uint32 `json:"index,omitempty"`
}

// parse validates the chain and HD mode.
func (p AddressParams) parse() (chain.Chain, chain.HDMode, error) {
	if p.Chain == "" {
		return "", "", invalidParams("chain is required")
	}
	c, err := chain.Parse(p.Chain)
	if err != nil {
		return "", "", invalidParams("%v", err)
	}
	if p.HDMode == "" {
		return c, chain.DefaultHDMode(c), nil
	}
	hd, err := chain.ParseHDMode(p.HDMode)
	if err != nil {
		return "", "", invalidParams("%v", err)
	}
	return c, hd, nil
}

// WalletGetAddressResult is the response for wallet_getAddress.
type WalletGetAddressResult struct {
	wallet.WalletAddress
	Path string `json:"path"`
}

func (s *Server) walletGetAddress(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.wallet == nil {
		return nil, fmt.Errorf("wallet %w", errServiceMissing)
	}

	var p AddressParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	c, hd, err := p.parse()
	if err != nil {
		return nil, err
	}

	addr, err := s.wallet.DeriveAddress(c, hd, p.Account, p.Index)
	if err != nil {
		return nil, fmt.Errorf("failed to get address: %w", err)
	}

	return &WalletGetAddressResult{
		WalletAddress: addr,
		Path:          chain.MustGet(c, s.network).DerivationPathString(hd, p.Account, p.Index),
	}, nil
}

// ChainInfo describes a supported chain.
type ChainInfo struct {
	Symbol        chain.Chain  `json:"symbol"`
	Name          string       `json:"name"`
	Family        chain.Family `json:"family"`
	NativeAsset   string       `json:"native_asset"`
	Decimals      uint8        `json:"decimals"`
	DefaultHDMode chain.HDMode `json:"default_hd_mode"`
	ChainID       uint64       `json:"chain_id,omitempty"`
}

// WalletSupportedChainsResult is the response for wallet_supportedChains.
type WalletSupportedChainsResult struct {
	Chains []ChainInfo `json:"chains"`
}

func (s *Server) walletSupportedChains(ctx context.Context, params json.RawMessage) (interface{}, error) {
	chains := make([]ChainInfo, 0)
	for _, c := range chain.Supported() {
		p, ok := chain.Get(c, s.network)
		if !ok {
			continue
		}
		chains = append(chains, ChainInfo{
			Symbol:        c,
			Name:          p.Name,
			Family:        p.Family,
			NativeAsset:   p.NativeAsset,
			Decimals:      p.Decimals,
			DefaultHDMode: chain.DefaultHDMode(c),
			ChainID:       p.ChainID,
		})
	}

	return &WalletSupportedChainsResult{
		Chains: chains,
	}, nil
}
