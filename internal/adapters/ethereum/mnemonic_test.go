package ethereum

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-migrate/internal/domain"
)

// the well-known development phrase used by anvil, hardhat and ganache
const testMnemonic = "test test test test test test test test test test test junk"

func TestDeriveKey(t *testing.T) {
	tests := []struct {
		name    string
		phrase  string
		path    string
		address string
		wantErr string
	}{
		{
			name:    "default path is the first account",
			phrase:  testMnemonic,
			address: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		},
		{
			name:    "explicit first account",
			phrase:  testMnemonic,
			path:    "m/44'/60'/0'/0/0",
			address: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		},
		{
			name:    "second account",
			phrase:  testMnemonic,
			path:    "m/44'/60'/0'/0/1",
			address: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		},
		{
			name:    "extra whitespace is ignored",
			phrase:  "  test test test test test test\ntest test test test test   junk ",
			address: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		},
		{
			name:    "unknown word",
			phrase:  "test test test test test test test test test test test zzzz",
			wantErr: "invalid mnemonic",
		},
		{
			name:    "bad path",
			phrase:  testMnemonic,
			path:    "m/44'/sixty'",
			wantErr: "invalid derivation path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := deriveKey(tt.phrase, tt.path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.NotContains(t, err.Error(), "test test")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, common.HexToAddress(tt.address), crypto.PubkeyToAddress(key.PublicKey))
		})
	}
}

func TestConnect_Mnemonic(t *testing.T) {
	ctx := context.Background()

	t.Run("signs with the derived account", func(t *testing.T) {
		_, server := newFakeChain(t, 1666700000)
		network := testNetwork(server.URL)
		network.PrivateKey = ""
		network.Mnemonic = testMnemonic
		network.DerivationPath = "m/44'/60'/0'/0/1"
		network.KeySource = "HARMONY_TESTNET_MNEMONIC"

		conn, err := testProvider().Connect(ctx, network)
		require.NoError(t, err)
		defer conn.Close()
		assert.Equal(t, common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"), conn.Account())
	})

	t.Run("invalid phrase names the variable only", func(t *testing.T) {
		network := testNetwork("http://127.0.0.1:1")
		network.PrivateKey = ""
		network.Mnemonic = "correct horse battery staple"
		network.KeySource = "HARMONY_TESTNET_MNEMONIC"

		_, err := testProvider().Connect(ctx, network)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConnection)
		assert.Contains(t, err.Error(), "HARMONY_TESTNET_MNEMONIC")
		assert.NotContains(t, err.Error(), "horse")
	})
}
