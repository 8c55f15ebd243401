package ethereum

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/base/go-bip39"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
)

// deriveKey returns the key at path in the BIP-32 tree seeded by a BIP-39
// mnemonic. An empty path selects the first Ethereum account.
func deriveKey(mnemonic, path string) (*ecdsa.PrivateKey, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}

	derivation := accounts.DefaultBaseDerivationPath
	if path != "" {
		derivation, err = accounts.ParseDerivationPath(path)
		if err != nil {
			return nil, fmt.Errorf("invalid derivation path %q: %w", path, err)
		}
	}

	// the network params only affect serialization, not the derived keys
	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("derive master key: %w", err)
	}
	for _, n := range derivation {
		key, err = key.Derive(n)
		if err != nil {
			return nil, fmt.Errorf("derive %s: %w", derivation, err)
		}
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("derive %s: %w", derivation, err)
	}
	return crypto.ToECDSA(priv.Serialize())
}
