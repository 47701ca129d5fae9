// Package wallet implements the software keystore: BIP39 seeds encrypted at
// rest, HD derivation for every supported chain and the observable keystore
// session that the rest of the daemon reads.
package wallet

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"

	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
)

// Wallet manages HD keys derived from a BIP39 seed.
type Wallet struct {
	masterKey *hdkeychain.ExtendedKey
	network   chain.Network
	mu        sync.Mutex

	// Cached derived keys by formatted path.
	cache map[string]*hdkeychain.ExtendedKey
}

// GenerateMnemonic generates a new 24-word BIP39 mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256) // 256 bits = 24 words
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}

	return mnemonic, nil
}

// ValidateMnemonic checks if a mnemonic is valid.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// NewFromMnemonic creates a wallet from a BIP39 mnemonic.
func NewFromMnemonic(mnemonic string, network chain.Network) (*Wallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}

	seed := bip39.NewSeed(mnemonic, "")
	defer SecureClear(seed)

	return NewFromSeed(seed, network)
}

// NewFromSeed creates a wallet from a raw 64-byte seed.
func NewFromSeed(seed []byte, network chain.Network) (*Wallet, error) {
	// The master key version bytes only matter for xprv serialization, which
	// is never exposed.
	params := &chaincfg.MainNetParams
	if network == chain.Testnet {
		params = &chaincfg.TestNet3Params
	}

	masterKey, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}

	return &Wallet{
		masterKey: masterKey,
		network:   network,
		cache:     make(map[string]*hdkeychain.ExtendedKey),
	}, nil
}

// Network returns the wallet's network (mainnet/testnet).
func (w *Wallet) Network() chain.Network {
	return w.network
}

// DeriveKey derives the key at a numeric BIP32 path.
func (w *Wallet) DeriveKey(path []uint32) (*hdkeychain.ExtendedKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.masterKey == nil {
		return nil, ErrWalletLocked
	}

	cacheKey := chain.FormatPath(path)
	if key, ok := w.cache[cacheKey]; ok {
		return key, nil
	}

	key := w.masterKey
	for depth, child := range path {
		next, err := key.Derive(child)
		if err != nil {
			return nil, fmt.Errorf("failed to derive %s at depth %d: %w", cacheKey, depth, err)
		}
		key = next
	}

	w.cache[cacheKey] = key
	return key, nil
}

// DerivePublicKey derives the public key of a chain address.
func (w *Wallet) DerivePublicKey(c chain.Chain, hd chain.HDMode, account, index uint32) (*btcec.PublicKey, error) {
	params, ok := chain.Get(c, w.network)
	if !ok {
		return nil, fmt.Errorf("unsupported chain: %s", c)
	}

	key, err := w.DeriveKey(params.DerivationPath(hd, account, index))
	if err != nil {
		return nil, err
	}

	pubKey, err := key.ECPubKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}
	return pubKey, nil
}

// DeriveAddress derives the receive address of a chain at account/index.
func (w *Wallet) DeriveAddress(c chain.Chain, hd chain.HDMode, account, index uint32) (string, error) {
	if err := ValidateAccountIndex(account); err != nil {
		return "", err
	}
	if err := ValidateAddressIndex(index); err != nil {
		return "", err
	}

	params, ok := chain.Get(c, w.network)
	if !ok {
		return "", fmt.Errorf("unsupported chain: %s", c)
	}

	pubKey, err := w.DerivePublicKey(c, hd, account, index)
	if err != nil {
		return "", err
	}

	return EncodeAddress(pubKey, params)
}

// Close wipes cached keys and drops the master key.
func (w *Wallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, key := range w.cache {
		key.Zero()
	}
	w.cache = make(map[string]*hdkeychain.ExtendedKey)
	if w.masterKey != nil {
		w.masterKey.Zero()
		w.masterKey = nil
	}
}
