package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/trebuchet-org/treb-migrate/internal/domain"
	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

const defaultPollInterval = 2 * time.Second

// Provider implements usecase.NetworkProvider on top of ethclient
type Provider struct {
	log          *slog.Logger
	pollInterval time.Duration
}

// NewProvider creates a new network provider
func NewProvider(log *slog.Logger) *Provider {
	return &Provider{
		log:          log.With("component", "ethereum"),
		pollInterval: defaultPollInterval,
	}
}

// Connect dials the endpoint, verifies the chain id and loads the signing key.
// Every failure is reported as domain.ErrConnection.
func (p *Provider) Connect(ctx context.Context, network *config.NetworkConfig) (usecase.Connection, error) {
	key, err := signingKey(network)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}

	client, chainID, err := p.dial(ctx, network)
	if err != nil {
		return nil, err
	}

	conn := &Connection{
		client:       client,
		network:      network,
		key:          key,
		account:      crypto.PubkeyToAddress(key.PublicKey),
		chainID:      chainID,
		pollInterval: p.pollInterval,
		log:          p.log.With("network", network.Name),
	}
	conn.log.Debug("connected", "chain_id", chainID, "account", conn.account.Hex())
	return conn, nil
}

// ChainID queries the endpoint without loading a signer
func (p *Provider) ChainID(ctx context.Context, network *config.NetworkConfig) (uint64, error) {
	client, chainID, err := p.dial(ctx, network)
	if err != nil {
		return 0, err
	}
	client.Close()
	return chainID, nil
}

// dial connects within the network check timeout and compares the reported
// chain id with the configured network id
func (p *Provider) dial(ctx context.Context, network *config.NetworkConfig) (*ethclient.Client, uint64, error) {
	timeout := network.NetworkCheckTimeout
	if timeout <= 0 {
		timeout = config.DefaultNetworkCheckTimeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := ethclient.DialContext(checkCtx, network.RPCURL)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to connect to RPC %s: %v", domain.ErrConnection, network.RPCURL, err)
	}

	id, err := client.ChainID(checkCtx)
	if err != nil {
		client.Close()
		return nil, 0, fmt.Errorf("%w: failed to get chain ID from %s: %v", domain.ErrConnection, network.RPCURL, err)
	}

	chainID := id.Uint64()
	if network.NetworkID != 0 && chainID != network.NetworkID {
		client.Close()
		return nil, 0, fmt.Errorf("%w: chain ID mismatch: expected %d, got %d", domain.ErrConnection, network.NetworkID, chainID)
	}

	return client, chainID, nil
}

// signingKey parses the network's private key, or derives it from the
// mnemonic. Secrets never appear in errors.
func signingKey(network *config.NetworkConfig) (*ecdsa.PrivateKey, error) {
	if strings.TrimSpace(network.Mnemonic) != "" {
		key, err := deriveKey(network.Mnemonic, network.DerivationPath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", network.KeySource, err)
		}
		return key, nil
	}

	raw := strings.TrimPrefix(strings.TrimSpace(network.PrivateKey), "0x")
	if raw == "" {
		if network.KeySource != "" {
			return nil, fmt.Errorf("environment variable %s is not set", network.KeySource)
		}
		return nil, fmt.Errorf("network %s has no private_key configured", network.Name)
	}

	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		source := network.KeySource
		if source == "" {
			source = "private_key"
		}
		return nil, fmt.Errorf("invalid private key in %s", source)
	}
	return key, nil
}

var _ usecase.NetworkProvider = (*Provider)(nil)
