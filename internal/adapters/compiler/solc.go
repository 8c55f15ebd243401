package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
	"github.com/trebuchet-org/treb-migrate/internal/domain/models"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

// BinaryEnv overrides the solc executable looked up on PATH
const BinaryEnv = "TREB_SOLC"

var versionPattern = regexp.MustCompile(`Version:\s*([0-9]+\.[0-9]+\.[0-9]+[^\s]*)`)

// Solc compiles sources with a locally installed solc
type Solc struct {
	binary string
	log    *slog.Logger
}

// NewSolc creates a compiler using $TREB_SOLC or "solc"
func NewSolc(log *slog.Logger) *Solc {
	binary := os.Getenv(BinaryEnv)
	if binary == "" {
		binary = "solc"
	}
	return &Solc{binary: binary, log: log.With("component", "solc")}
}

// Version returns the installed solc version, e.g. "0.7.6+commit.7338295f"
func (s *Solc) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, s.binary, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("failed to run %s --version: %w", s.binary, err)
	}
	return parseVersion(string(out))
}

// Compile checks the installed version against cfg and compiles every .sol
// file below sourcesDir
func (s *Solc) Compile(ctx context.Context, sourcesDir string, cfg config.CompilerConfig) ([]*models.Contract, error) {
	installed, err := s.Version(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := Satisfies(cfg.Version, installed)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("solc %s does not satisfy compiler version %s", installed, cfg.Version)
	}

	sources, err := findSources(sourcesDir)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no Solidity sources in %s", sourcesDir)
	}

	args := buildArgs(cfg, sources)
	s.log.Debug("running solc", "args", args, "dir", sourcesDir)

	start := time.Now()
	cmd := exec.CommandContext(ctx, s.binary, args...)
	cmd.Dir = sourcesDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("solc failed: %w\nOutput: %s", err, stderr.String())
	}
	if stderr.Len() > 0 {
		s.log.Warn("solc reported warnings", "output", strings.TrimSpace(stderr.String()))
	}
	s.log.Debug("solc completed", "duration", time.Since(start))

	return parseCombinedJSON(stdout.Bytes())
}

func buildArgs(cfg config.CompilerConfig, sources []string) []string {
	args := []string{"--combined-json", "abi,bin,bin-runtime,metadata", "--allow-paths", "."}
	if cfg.Optimizer.Enabled {
		args = append(args, "--optimize", "--optimize-runs", strconv.Itoa(cfg.Optimizer.Runs))
	}
	if cfg.EVMVersion != "" {
		args = append(args, "--evm-version", cfg.EVMVersion)
	}
	return append(args, sources...)
}

func parseVersion(output string) (string, error) {
	m := versionPattern.FindStringSubmatch(output)
	if m == nil {
		return "", fmt.Errorf("unrecognised solc --version output: %q", strings.TrimSpace(output))
	}
	// Drop the platform suffix: 0.7.6+commit.7338295f.Linux.g++
	v := m[1]
	if i := strings.Index(v, "+commit."); i >= 0 {
		rest := v[i+len("+commit."):]
		if j := strings.IndexByte(rest, '.'); j >= 0 {
			v = v[:i+len("+commit.")+j]
		}
	}
	return v, nil
}

// findSources returns .sol files relative to dir
func findSources(dir string) ([]string, error) {
	var sources []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == "node_modules" {
			return filepath.SkipDir
		}
		if !d.IsDir() && filepath.Ext(path) == ".sol" {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			sources = append(sources, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan sources: %w", err)
	}
	sort.Strings(sources)
	return sources, nil
}

// combinedOutput is the --combined-json document. Before 0.8.10 solc encodes
// abi as a JSON string, later versions inline it.
type combinedOutput struct {
	Contracts map[string]struct {
		ABI        json.RawMessage `json:"abi"`
		Bin        string          `json:"bin"`
		BinRuntime string          `json:"bin-runtime"`
		Metadata   json.RawMessage `json:"metadata"`
	} `json:"contracts"`
	Version string `json:"version"`
}

func parseCombinedJSON(data []byte) ([]*models.Contract, error) {
	var out combinedOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse solc output: %w", err)
	}

	contracts := make([]*models.Contract, 0, len(out.Contracts))
	for key, c := range out.Contracts {
		i := strings.LastIndex(key, ":")
		if i < 0 {
			return nil, fmt.Errorf("unexpected contract key %q in solc output", key)
		}
		source, name := key[:i], key[i+1:]

		abiJSON, err := unquoteJSON(c.ABI)
		if err != nil {
			return nil, fmt.Errorf("invalid abi for %s: %w", key, err)
		}

		contracts = append(contracts, &models.Contract{
			Name:       name,
			SourcePath: source,
			Artifact: &models.Artifact{
				ContractName:     name,
				SourceName:       source,
				ABI:              abiJSON,
				Bytecode:         models.BytecodeObject{Object: c.Bin},
				DeployedBytecode: models.BytecodeObject{Object: c.BinRuntime},
				Metadata:         c.Metadata,
			},
		})
	}
	sort.Slice(contracts, func(i, j int) bool {
		return contracts[i].FullyQualifiedName() < contracts[j].FullyQualifiedName()
	})
	return contracts, nil
}

// unquoteJSON turns a JSON string holding JSON into the raw document
func unquoteJSON(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return raw, nil
	}
	var inner string
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, err
	}
	return json.RawMessage(inner), nil
}

var _ usecase.Compiler = (*Solc)(nil)
