package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/trebuchet-org/treb-migrate/internal/domain"
)

// envVarPattern matches ${VAR_NAME} patterns in TOML values
var envVarPattern = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// DetectEnvVar checks if a raw TOML value is a simple ${VAR_NAME} reference.
// Returns the variable name and true if the value is a pure env var reference.
func DetectEnvVar(rawValue string) (string, bool) {
	matches := envVarPattern.FindStringSubmatch(strings.TrimSpace(rawValue))
	if len(matches) == 2 {
		return matches[1], true
	}
	return "", false
}

// GenerateEnvVarName generates a conventional env var name for a network's signing key.
// Convention: uppercase, dashes/dots to underscores, append _PRIVATE_KEY.
// Examples: harmony_testnet -> HARMONY_TESTNET_PRIVATE_KEY, celo-sepolia -> CELO_SEPOLIA_PRIVATE_KEY
func GenerateEnvVarName(networkName string) string {
	name := strings.ToUpper(networkName)
	name = strings.NewReplacer("-", "_", ".", "_").Replace(name)
	return name + "_PRIVATE_KEY"
}

// resolvePrivateKey turns a private_key setting into the key material and
// the name of the variable it came from. Literal keys are rejected so that
// secrets never live in the config file.
func resolvePrivateKey(networkName, raw string) (key string, source string, err error) {
	return resolveSecret(networkName, "private_key", raw, GenerateEnvVarName(networkName))
}

// resolveMnemonic is resolvePrivateKey for a BIP-39 seed phrase
func resolveMnemonic(networkName, raw string) (mnemonic string, source string, err error) {
	suggested := strings.TrimSuffix(GenerateEnvVarName(networkName), "_PRIVATE_KEY") + "_MNEMONIC"
	return resolveSecret(networkName, "mnemonic", raw, suggested)
}

func resolveSecret(networkName, setting, raw, suggested string) (string, string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", "", nil
	}

	varName, ok := DetectEnvVar(raw)
	if !ok {
		return "", "", fmt.Errorf(
			"%w: %s for network %s must reference an environment variable, e.g. %s = \"${%s}\"",
			domain.ErrConfig, setting, networkName, setting, suggested,
		)
	}

	return strings.TrimSpace(os.Getenv(varName)), varName, nil
}
