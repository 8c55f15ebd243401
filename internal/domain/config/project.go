package config

import (
	"math/big"
	"strings"
	"time"
)

const (
	DefaultArtifactsDir        = "build/contracts"
	DefaultMigrationsDir       = "migrations"
	DefaultContractsDir        = "contracts"
	DefaultNetworkCheckTimeout = 30 * time.Second
	DefaultTimeoutBlocks       = 50
	DefaultConfirmations       = 1
)

// ProjectConfig is the resolved migrate.toml
type ProjectConfig struct {
	Artifacts  string
	Migrations string
	Contracts  string
	Compiler   CompilerConfig
	Networks   map[string]*NetworkConfig
}

// NetworkNames returns the configured network names
func (p *ProjectConfig) NetworkNames() []string {
	names := make([]string, 0, len(p.Networks))
	for name := range p.Networks {
		names = append(names, name)
	}
	return names
}

// NetworkConfig is a named network profile. It is read-only for the
// lifetime of a run.
type NetworkConfig struct {
	Name       string `json:"name"`
	RPCURL     string `json:"rpcUrl"`
	NetworkID  uint64 `json:"networkId"` // 0 accepts whatever the node reports
	PrivateKey string `json:"-"`         //nolint:gosec // resolved from env, never serialized
	KeySource  string `json:"keySource,omitempty"`

	// Mnemonic replaces PrivateKey with a BIP-39 phrase; the signer is the
	// account at DerivationPath (m/44'/60'/0'/0/0 when empty)
	Mnemonic       string `json:"-"` //nolint:gosec // resolved from env, never serialized
	DerivationPath string `json:"derivationPath,omitempty"`

	NetworkCheckTimeout time.Duration `json:"networkCheckTimeout"`
	TimeoutBlocks       uint64        `json:"timeoutBlocks"`
	Confirmations       uint64        `json:"confirmations"`

	Gas      uint64   `json:"gas,omitempty"`      // static gas limit, 0 = estimate
	GasPrice *big.Int `json:"gasPrice,omitempty"` // nil = node suggestion
}

// IsLocal reports whether the network points at a development node
func (n *NetworkConfig) IsLocal() bool {
	switch n.NetworkID {
	case 1337, 31337:
		return true
	}
	for _, host := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		if strings.Contains(n.RPCURL, host) {
			return true
		}
	}
	return false
}

// CompilerConfig holds the solc settings. Only the compiler consumes it.
type CompilerConfig struct {
	Version    string          `json:"version"`
	Optimizer  OptimizerConfig `json:"optimizer"`
	EVMVersion string          `json:"evmVersion,omitempty"`
}

// OptimizerConfig mirrors solc's optimizer settings
type OptimizerConfig struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs"`
}
