package wallet

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
)

// EncodeAddress renders a public key in the chain's default address format.
func EncodeAddress(pubKey *btcec.PublicKey, params *chain.Params) (string, error) {
	switch params.DefaultAddressType {
	case chain.AddressP2PKH:
		return deriveP2PKH(pubKey, toChainCfgParams(params))
	case chain.AddressP2WPKH:
		return deriveP2WPKH(pubKey, toChainCfgParams(params))
	case chain.AddressEVM:
		return PublicKeyToEVMAddress(pubKey), nil
	case chain.AddressBech32:
		return deriveBech32(pubKey, params.Bech32HRP)
	case chain.AddressTron:
		return deriveTron(pubKey), nil
	}
	return "", fmt.Errorf("unsupported address type %s for %s", params.DefaultAddressType, params.Chain)
}

// deriveP2PKH derives a legacy P2PKH address (1... for BTC, D... for DOGE, etc.)
func deriveP2PKH(pubKey *btcec.PublicKey, params *chaincfg.Params) (string, error) {
	pubKeyHash := btcutil.Hash160(pubKey.SerializeCompressed())
	addr, err := btcutil.NewAddressPubKeyHash(pubKeyHash, params)
	if err != nil {
		return "", fmt.Errorf("failed to create P2PKH address: %w", err)
	}
	return addr.EncodeAddress(), nil
}

// deriveP2WPKH derives a native SegWit address (bc1q... for BTC, ltc1q... for LTC)
func deriveP2WPKH(pubKey *btcec.PublicKey, params *chaincfg.Params) (string, error) {
	pubKeyHash := btcutil.Hash160(pubKey.SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, params)
	if err != nil {
		return "", fmt.Errorf("failed to create P2WPKH address: %w", err)
	}
	return addr.EncodeAddress(), nil
}

// deriveBech32 derives a cosmos-sdk account address (thor1..., cosmos1...).
func deriveBech32(pubKey *btcec.PublicKey, hrp string) (string, error) {
	conv, err := bech32.ConvertBits(btcutil.Hash160(pubKey.SerializeCompressed()), 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert bits: %w", err)
	}
	addr, err := bech32.Encode(hrp, conv)
	if err != nil {
		return "", fmt.Errorf("failed to encode bech32 address: %w", err)
	}
	return addr, nil
}

// deriveTron derives a base58check TRON address (T...).
func deriveTron(pubKey *btcec.PublicKey) string {
	hash := crypto.Keccak256(pubKey.SerializeUncompressed()[1:])
	return base58.CheckEncode(hash[12:], chain.TronAddressPrefix)
}

// PublicKeyToEVMAddress converts a secp256k1 public key to an EIP-55 EVM address.
func PublicKeyToEVMAddress(pubKey *btcec.PublicKey) string {
	return crypto.PubkeyToAddress(*pubKey.ToECDSA()).Hex()
}

// ValidateAddress checks if an address is valid for a chain/network.
func ValidateAddress(address string, params *chain.Params) bool {
	switch params.Family {
	case chain.FamilyUTXO:
		// btcutil only recognises segwit prefixes of registered networks, so
		// witness addresses are checked directly.
		if params.Bech32HRP != "" && strings.HasPrefix(strings.ToLower(address), params.Bech32HRP+"1") {
			hrp, data, err := bech32.Decode(address)
			if err != nil || hrp != params.Bech32HRP || len(data) < 1 || data[0] != 0 {
				return false
			}
			prog, err := bech32.ConvertBits(data[1:], 5, 8, false)
			return err == nil && (len(prog) == 20 || len(prog) == 32)
		}
		chainParams := toChainCfgParams(params)
		decoded, err := btcutil.DecodeAddress(address, chainParams)
		return err == nil && decoded.IsForNet(chainParams)
	case chain.FamilyEVM:
		return common.IsHexAddress(address)
	case chain.FamilyCosmos:
		hrp, data, err := bech32.Decode(address)
		if err != nil || hrp != params.Bech32HRP {
			return false
		}
		raw, err := bech32.ConvertBits(data, 5, 8, false)
		return err == nil && len(raw) == 20
	case chain.FamilyTron:
		raw, version, err := base58.CheckDecode(address)
		return err == nil && version == chain.TronAddressPrefix && len(raw) == 20
	}
	return false
}

// toChainCfgParams converts our chain.Params to btcd's chaincfg.Params.
func toChainCfgParams(params *chain.Params) *chaincfg.Params {
	hdPrivateKeyID := params.HDPrivateKeyID
	hdPublicKeyID := params.HDPublicKeyID
	if hdPrivateKeyID == [4]byte{} {
		hdPrivateKeyID = [4]byte{0x04, 0x88, 0xad, 0xe4} // xprv
	}
	if hdPublicKeyID == [4]byte{} {
		hdPublicKeyID = [4]byte{0x04, 0x88, 0xb2, 0x1e} // xpub
	}

	return &chaincfg.Params{
		Name: params.Name,

		PubKeyHashAddrID: params.PubKeyHashAddrID,
		ScriptHashAddrID: params.ScriptHashAddrID,
		Bech32HRPSegwit:  params.Bech32HRP,

		HDPrivateKeyID: hdPrivateKeyID,
		HDPublicKeyID:  hdPublicKeyID,
	}
}
