package deployments

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trebuchet-org/treb-migrate/internal/domain"
	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
	"github.com/trebuchet-org/treb-migrate/internal/domain/models"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

// DeploymentsFile is the registry file inside the data directory
const DeploymentsFile = "deployments.json"

// FileRepository stores deployment records in a JSON file
type FileRepository struct {
	dataDir     string
	mu          sync.RWMutex
	deployments map[string]*models.Deployment
	// byAddress maps chainID/lowercase address to deployment id
	byAddress map[string]string
}

// NewFileRepository loads the registry from the data directory
func NewFileRepository(cfg *config.RuntimeConfig) (*FileRepository, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", cfg.DataDir, err)
	}

	m := &FileRepository{
		dataDir:     cfg.DataDir,
		deployments: make(map[string]*models.Deployment),
		byAddress:   make(map[string]string),
	}
	if err := m.load(); err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	return m, nil
}

func (m *FileRepository) path() string {
	return filepath.Join(m.dataDir, DeploymentsFile)
}

func (m *FileRepository) load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(data, &m.deployments); err != nil {
		return fmt.Errorf("failed to parse %s: %w", DeploymentsFile, err)
	}
	if m.deployments == nil {
		m.deployments = make(map[string]*models.Deployment)
	}
	m.rebuildLookups()
	return nil
}

// save writes the registry atomically. Caller holds the lock.
func (m *FileRepository) save() error {
	data, err := json.MarshalIndent(m.deployments, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal deployments: %w", err)
	}

	path := m.path()
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write deployments: %w", err)
	}
	return os.Rename(tmpPath, path)
}

func addressKey(chainID uint64, address string) string {
	return fmt.Sprintf("%d/%s", chainID, strings.ToLower(address))
}

func (m *FileRepository) rebuildLookups() {
	m.byAddress = make(map[string]string, len(m.deployments))
	for id, d := range m.deployments {
		m.byAddress[addressKey(d.ChainID, d.Address)] = id
	}
}

// GetDeployment returns the deployment with the given id
func (m *FileRepository) GetDeployment(ctx context.Context, id string) (*models.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.deployments[id]
	if !ok {
		return nil, fmt.Errorf("deployment %s: %w", id, domain.ErrNotFound)
	}
	clone := *d
	return &clone, nil
}

// GetDeploymentByAddress looks a deployment up by chain and address
func (m *FileRepository) GetDeploymentByAddress(ctx context.Context, chainID uint64, address string) (*models.Deployment, error) {
	m.mu.RLock()
	id, ok := m.byAddress[addressKey(chainID, address)]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("deployment at %s on chain %d: %w", address, chainID, domain.ErrNotFound)
	}
	return m.GetDeployment(ctx, id)
}

// ListDeployments returns matching deployments ordered by network, then
// creation time
func (m *FileRepository) ListDeployments(ctx context.Context, filter models.DeploymentFilter) ([]*models.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Deployment
	for _, d := range m.deployments {
		if filter.Matches(d) {
			clone := *d
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Network != out[j].Network {
			return out[i].Network < out[j].Network
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SaveDeployment inserts or replaces a deployment and persists the registry
func (m *FileRepository) SaveDeployment(ctx context.Context, deployment *models.Deployment) error {
	if deployment.ID == "" {
		return fmt.Errorf("deployment has no id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if deployment.CreatedAt.IsZero() {
		deployment.CreatedAt = time.Now()
	}
	if prev, ok := m.deployments[deployment.ID]; ok {
		delete(m.byAddress, addressKey(prev.ChainID, prev.Address))
	}
	clone := *deployment
	m.deployments[deployment.ID] = &clone
	m.byAddress[addressKey(deployment.ChainID, deployment.Address)] = deployment.ID

	return m.save()
}

var _ usecase.DeploymentRepository = (*FileRepository)(nil)
