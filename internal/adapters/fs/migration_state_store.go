package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/trebuchet-org/treb-migrate/internal/domain"
	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// MigrationStateStore keeps one JSON file per migration and network under
// <data dir>/runs
type MigrationStateStore struct {
	dir string
}

// NewMigrationStateStore creates a store rooted at the runtime data directory
func NewMigrationStateStore(cfg *config.RuntimeConfig) *MigrationStateStore {
	return &MigrationStateStore{dir: filepath.Join(cfg.DataDir, "runs")}
}

// Path returns the state file for a migration on a network
func (s *MigrationStateStore) Path(migration, network string) string {
	name := unsafeChars.ReplaceAllString(migration, "_") + "-" + unsafeChars.ReplaceAllString(network, "_") + ".json"
	return filepath.Join(s.dir, name)
}

// Load reads the last recorded run. Returns domain.ErrNotFound when the
// migration never ran on the network.
func (s *MigrationStateStore) Load(_ context.Context, migration, network string) (*domain.MigrationState, error) {
	path := s.Path(migration, network)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run state for %s on %s: %w", migration, network, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read run state file: %w", err)
	}

	var state domain.MigrationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse run state file %s: %w", path, err)
	}
	if state.Deployed == nil {
		state.Deployed = make(map[string]*domain.DeployedContract)
	}
	return &state, nil
}

// Save writes the run state, creating the directory if needed
func (s *MigrationStateStore) Save(_ context.Context, state *domain.MigrationState) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create run state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	path := s.Path(state.Migration, state.Network)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write run state file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

var _ usecase.MigrationStateStore = (*MigrationStateStore)(nil)
