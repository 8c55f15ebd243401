package contracts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-migrate/internal/domain"
	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
	"github.com/trebuchet-org/treb-migrate/internal/domain/models"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

// Repository indexes compiled artifacts. It reads the Truffle layout
// (<dir>/<Name>.json) and the Foundry layout (<dir>/<File>.sol/<Name>.json).
type Repository struct {
	artifactsDir  string
	contracts     map[string]*models.Contract   // key: "path:contractName"
	contractNames map[string][]*models.Contract // key: contract name, value: all contracts with that name
	log           *slog.Logger
	mu            sync.RWMutex
	indexed       bool
}

// NewRepository creates a new artifact repository for the project's artifacts directory
func NewRepository(cfg *config.RuntimeConfig, log *slog.Logger) *Repository {
	return &Repository{
		artifactsDir:  cfg.ArtifactsDir(),
		log:           log.With("component", "contracts"),
		contracts:     make(map[string]*models.Contract),
		contractNames: make(map[string][]*models.Contract),
	}
}

// Index discovers all artifacts. It is a no-op after the first successful run
// until the directory is written to.
func (r *Repository) Index() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexed {
		return nil
	}

	r.contracts = make(map[string]*models.Contract)
	r.contractNames = make(map[string][]*models.Contract)

	if _, err := os.Stat(r.artifactsDir); os.IsNotExist(err) {
		return fmt.Errorf("artifacts directory %s not found, run compile first", r.artifactsDir)
	}

	err := filepath.Walk(r.artifactsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".json" || strings.HasSuffix(path, ".dbg.json") {
			return nil
		}
		return r.processArtifact(path)
	})
	if err != nil {
		return err
	}

	for _, list := range r.contractNames {
		sort.Slice(list, func(i, j int) bool { return list[i].SourcePath < list[j].SourcePath })
	}
	r.indexed = true
	return nil
}

// processArtifact adds a single artifact file to the index
func (r *Repository) processArtifact(artifactPath string) error {
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return err
	}

	var artifact models.Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		r.log.Debug("skipping unreadable artifact", "path", artifactPath, "error", err)
		return nil
	}
	if len(artifact.ABI) == 0 {
		return nil
	}

	name := artifact.ContractName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(artifactPath), ".json")
	}
	source := artifact.Source()
	if source == "" && filepath.Ext(filepath.Dir(artifactPath)) == ".sol" {
		source = filepath.Base(filepath.Dir(artifactPath))
	}

	relPath, err := filepath.Rel(r.artifactsDir, artifactPath)
	if err != nil {
		relPath = artifactPath
	}

	contract := &models.Contract{
		Name:         name,
		SourcePath:   source,
		ArtifactPath: relPath,
		Artifact:     &artifact,
	}
	r.log.Debug("indexed artifact", "contract", contract.FullyQualifiedName(), "path", relPath)

	key := contract.FullyQualifiedName()
	if _, exists := r.contracts[key]; exists {
		return nil
	}
	r.contracts[key] = contract
	r.contractNames[name] = append(r.contractNames[name], contract)
	return nil
}

// GetContract retrieves a contract by name or "path:Name"
func (r *Repository) GetContract(ctx context.Context, key string) (*models.Contract, error) {
	if err := r.Index(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if contract, ok := r.contracts[key]; ok {
		return contract, nil
	}

	matches := r.contractNames[key]
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s (looked in %s)", domain.ErrContractNotFound, key, r.artifactsDir)
	case 1:
		return matches[0], nil
	default:
		names := lo.Map(matches, func(c *models.Contract, _ int) string { return c.FullyQualifiedName() })
		return nil, fmt.Errorf("multiple contracts named %s, use one of: %s", key, strings.Join(names, ", "))
	}
}

// ListContracts returns every indexed contract ordered by name
func (r *Repository) ListContracts(ctx context.Context) ([]*models.Contract, error) {
	if err := r.Index(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	contracts := lo.Values(r.contracts)
	sort.Slice(contracts, func(i, j int) bool {
		if contracts[i].Name != contracts[j].Name {
			return contracts[i].Name < contracts[j].Name
		}
		return contracts[i].SourcePath < contracts[j].SourcePath
	})
	return contracts, nil
}

// truffleArtifact is the on-disk layout written by WriteContract
type truffleArtifact struct {
	ContractName     string          `json:"contractName"`
	SourceName       string          `json:"sourceName,omitempty"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         string          `json:"bytecode"`
	DeployedBytecode string          `json:"deployedBytecode"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	Compiler         *compilerInfo   `json:"compiler,omitempty"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

type compilerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// WriteContract writes a contract as <artifacts>/<Name>.json and returns the path
func (r *Repository) WriteContract(ctx context.Context, contract *models.Contract) (string, error) {
	if contract.Artifact == nil {
		return "", fmt.Errorf("contract %s has no artifact", contract.Name)
	}
	a := contract.Artifact

	out := truffleArtifact{
		ContractName:     contract.Name,
		SourceName:       contract.SourcePath,
		ABI:              a.ABI,
		Bytecode:         "0x" + a.Bytecode.Hex(),
		DeployedBytecode: "0x" + a.DeployedBytecode.Hex(),
		Metadata:         a.Metadata,
		UpdatedAt:        time.Now().UTC(),
	}
	if version := a.CompilerVersion(); version != "" {
		out.Compiler = &compilerInfo{Name: "solc", Version: version}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal artifact: %w", err)
	}

	if err := os.MkdirAll(r.artifactsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifacts directory: %w", err)
	}
	path := filepath.Join(r.artifactsDir, contract.Name+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	r.mu.Lock()
	r.indexed = false
	r.mu.Unlock()
	return path, nil
}

var (
	_ usecase.ArtifactSource = (*Repository)(nil)
	_ usecase.ArtifactWriter = (*Repository)(nil)
)
