package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a migration run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCompleted RunStatus = "completed"
)

// MigrationState records how far a migration got on a network so that an
// operator can resume it explicitly.
type MigrationState struct {
	// RunID identifies the run across resumes
	RunID     string    `json:"runId"`
	Migration string    `json:"migration"`
	Source    string    `json:"source"`
	Network   string    `json:"network"`
	ChainID   uint64    `json:"chainId"`
	StartedAt time.Time `json:"startedAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Steps is the number of steps in the migration file
	Steps     int   `json:"steps"`
	// Completed holds the indexes of completed steps, in file order
	Completed []int `json:"completed"`

	Status   RunStatus                    `json:"status"`
	Error    string                       `json:"error,omitempty"`
	FailedAt int                          `json:"failedAt"` // -1 when nothing failed
	TxHash   string                       `json:"txHash,omitempty"`
	Deployed map[string]*DeployedContract `json:"deployed"`
}

// NewMigrationState starts a fresh run record
func NewMigrationState(m *Migration, network string, chainID uint64) *MigrationState {
	now := time.Now()
	return &MigrationState{
		RunID:     uuid.NewString(),
		Migration: m.Name,
		Source:    m.Source,
		Network:   network,
		ChainID:   chainID,
		StartedAt: now,
		UpdatedAt: now,
		Steps:     len(m.Steps),
		Status:    RunStatusRunning,
		FailedAt:  -1,
		Deployed:  make(map[string]*DeployedContract),
	}
}

// IsCompleted reports whether the step at index already ran
func (s *MigrationState) IsCompleted(index int) bool {
	for _, i := range s.Completed {
		if i == index {
			return true
		}
	}
	return false
}

// MarkCompleted records a finished step
func (s *MigrationState) MarkCompleted(index int) {
	if !s.IsCompleted(index) {
		s.Completed = append(s.Completed, index)
	}
}

// Remaining returns the file indexes still to run. Link steps are
// in-memory only, so a completed link is replayed when its target contract
// has not been deployed yet.
func (s *MigrationState) Remaining(m *Migration) []int {
	var out []int
	for i, step := range m.Steps {
		if !s.IsCompleted(i) {
			out = append(out, i)
			continue
		}
		if step.Kind == StepLink {
			if _, deployed := s.Deployed[step.Contract]; !deployed {
				out = append(out, i)
			}
		}
	}
	return out
}

// DeployedIDs returns the set of contracts deployed by earlier runs
func (s *MigrationState) DeployedIDs() map[string]bool {
	ids := make(map[string]bool, len(s.Deployed))
	for id := range s.Deployed {
		ids[id] = true
	}
	return ids
}
