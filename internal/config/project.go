package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/trebuchet-org/treb-migrate/internal/domain"
	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
)

// ProjectFileName is the project config file looked up from the working directory
const ProjectFileName = "migrate.toml"

// ProjectTOML represents the raw migrate.toml structure
type ProjectTOML struct {
	Artifacts  string                 `toml:"artifacts"`
	Migrations string                 `toml:"migrations"`
	Contracts  string                 `toml:"contracts"`
	Compiler   CompilerTOML           `toml:"compiler"`
	Networks   map[string]NetworkTOML `toml:"networks"`
}

// CompilerTOML is the [compiler] table
type CompilerTOML struct {
	Version    string `toml:"version"`
	EVMVersion string `toml:"evm_version"`
	Optimizer  struct {
		Enabled bool `toml:"enabled"`
		Runs    int  `toml:"runs"`
	} `toml:"optimizer"`
}

// NetworkTOML is one [networks.<name>] table
type NetworkTOML struct {
	RPCURL              string  `toml:"rpc_url"`
	NetworkID           uint64  `toml:"network_id"`
	PrivateKey          string  `toml:"private_key"`
	Mnemonic            string  `toml:"mnemonic"`
	DerivationPath      string  `toml:"derivation_path"`
	NetworkCheckTimeout int64   `toml:"network_check_timeout"` // milliseconds
	TimeoutBlocks       uint64  `toml:"timeout_blocks"`
	Confirmations       *uint64 `toml:"confirmations"`
	Gas                 uint64  `toml:"gas"`
	GasPrice            string  `toml:"gas_price"` // wei, or a number with a "gwei" suffix
}

// loadEnvFiles loads .env files first for variable expansion
func loadEnvFiles(projectRoot string) {
	envFiles := []string{
		filepath.Join(projectRoot, ".env"),
		filepath.Join(projectRoot, ".env.local"),
	}

	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				// Log warning but don't fail
				fmt.Fprintf(os.Stderr, "Warning: Failed to load %s: %v\n", envFile, err)
			}
		}
	}
}

// loadProjectConfig loads and parses migrate.toml
func loadProjectConfig(projectRoot, configPath string) (*config.ProjectConfig, error) {
	loadEnvFiles(projectRoot)

	if configPath == "" {
		configPath = filepath.Join(projectRoot, ProjectFileName)
	} else if !filepath.IsAbs(configPath) {
		configPath = filepath.Join(projectRoot, configPath)
	}

	var raw ProjectTOML
	if _, err := toml.DecodeFile(configPath, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(configPath), err)
	}

	return convertProject(&raw)
}

// convertProject applies defaults, expands env references and resolves secrets
func convertProject(raw *ProjectTOML) (*config.ProjectConfig, error) {
	cfg := &config.ProjectConfig{
		Artifacts:  withDefault(raw.Artifacts, config.DefaultArtifactsDir),
		Migrations: withDefault(raw.Migrations, config.DefaultMigrationsDir),
		Contracts:  withDefault(raw.Contracts, config.DefaultContractsDir),
		Compiler: config.CompilerConfig{
			Version:    raw.Compiler.Version,
			EVMVersion: raw.Compiler.EVMVersion,
			Optimizer: config.OptimizerConfig{
				Enabled: raw.Compiler.Optimizer.Enabled,
				Runs:    raw.Compiler.Optimizer.Runs,
			},
		},
		Networks: make(map[string]*config.NetworkConfig, len(raw.Networks)),
	}
	if cfg.Compiler.Optimizer.Enabled && cfg.Compiler.Optimizer.Runs == 0 {
		cfg.Compiler.Optimizer.Runs = 200
	}

	for name, n := range raw.Networks {
		network, err := convertNetwork(name, n)
		if err != nil {
			return nil, err
		}
		cfg.Networks[name] = network
	}

	return cfg, nil
}

func convertNetwork(name string, n NetworkTOML) (*config.NetworkConfig, error) {
	rpcURL := strings.TrimSpace(os.ExpandEnv(n.RPCURL))
	if rpcURL == "" {
		return nil, fmt.Errorf("%w: network %s has no rpc_url", domain.ErrConfig, name)
	}

	key, source, err := resolvePrivateKey(name, n.PrivateKey)
	if err != nil {
		return nil, err
	}
	mnemonic, mnemonicSource, err := resolveMnemonic(name, n.Mnemonic)
	if err != nil {
		return nil, err
	}
	switch {
	case source != "" && mnemonicSource != "":
		return nil, fmt.Errorf("%w: network %s sets both private_key and mnemonic, keep one", domain.ErrConfig, name)
	case mnemonicSource != "":
		source = mnemonicSource
	case n.DerivationPath != "":
		return nil, fmt.Errorf("%w: network %s sets derivation_path without a mnemonic", domain.ErrConfig, name)
	}

	network := &config.NetworkConfig{
		Name:                name,
		RPCURL:              rpcURL,
		NetworkID:           n.NetworkID,
		PrivateKey:          key,
		Mnemonic:            mnemonic,
		DerivationPath:      strings.TrimSpace(n.DerivationPath),
		KeySource:           source,
		NetworkCheckTimeout: config.DefaultNetworkCheckTimeout,
		TimeoutBlocks:       config.DefaultTimeoutBlocks,
		Confirmations:       config.DefaultConfirmations,
		Gas:                 n.Gas,
	}
	if n.NetworkCheckTimeout > 0 {
		network.NetworkCheckTimeout = time.Duration(n.NetworkCheckTimeout) * time.Millisecond
	}
	if n.TimeoutBlocks > 0 {
		network.TimeoutBlocks = n.TimeoutBlocks
	}
	if n.Confirmations != nil {
		network.Confirmations = *n.Confirmations
	}

	if n.GasPrice != "" {
		price, err := ParseGasPrice(n.GasPrice)
		if err != nil {
			return nil, fmt.Errorf("%w: network %s: %v", domain.ErrConfig, name, err)
		}
		network.GasPrice = price
	}

	return network, nil
}

// ParseGasPrice parses a wei amount, optionally suffixed with "gwei"
func ParseGasPrice(raw string) (*big.Int, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	multiplier := big.NewInt(1)
	if trimmed, ok := strings.CutSuffix(s, "gwei"); ok {
		s = strings.TrimSpace(trimmed)
		multiplier = big.NewInt(1_000_000_000)
	} else if trimmed, ok := strings.CutSuffix(s, "wei"); ok {
		s = strings.TrimSpace(trimmed)
	}

	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid gas_price %q", raw)
	}
	return v.Mul(v, multiplier), nil
}

func withDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
