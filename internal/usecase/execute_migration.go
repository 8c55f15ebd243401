package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/treb-migrate/internal/domain"
	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
	"github.com/trebuchet-org/treb-migrate/internal/domain/models"
)

// ExecuteMigration drives a migration file from load to persisted result
type ExecuteMigration struct {
	config      *config.RuntimeConfig
	runner      *RunMigration
	loader      MigrationLoader
	states      MigrationStateStore
	deployments DeploymentRepository
	confirmer   Confirmer
	selector    MigrationSelector
	progress    ProgressSink
	log         *slog.Logger
}

// NewExecuteMigration creates a new execute migration use case
func NewExecuteMigration(
	cfg *config.RuntimeConfig,
	runner *RunMigration,
	loader MigrationLoader,
	states MigrationStateStore,
	deployments DeploymentRepository,
	confirmer Confirmer,
	selector MigrationSelector,
	progress ProgressSink,
	log *slog.Logger,
) *ExecuteMigration {
	return &ExecuteMigration{
		config:      cfg,
		runner:      runner,
		loader:      loader,
		states:      states,
		deployments: deployments,
		confirmer:   confirmer,
		selector:    selector,
		progress:    progress,
		log:         log.With("component", "ExecuteMigration"),
	}
}

// ExecuteMigrationParams contains parameters for a migration run
type ExecuteMigrationParams struct {
	Path   string // empty discovers files in the migrations directory
	DryRun bool
	Resume bool
	Yes    bool // skip the broadcast confirmation
}

// PlannedStep is a step as it will be executed
type PlannedStep struct {
	Index   int          `json:"index"`
	Step    *domain.Step `json:"step"`
	Skipped bool         `json:"skipped"`        // completed by a previous run
	Size    int          `json:"size,omitempty"` // deployed bytecode size of deploy steps
}

// Oversized reports whether the step deploys code above the EIP-170 limit
func (p PlannedStep) Oversized() bool {
	return p.Size > models.MaxContractSize
}

// ExecuteMigrationResult contains the result of a migration run
type ExecuteMigrationResult struct {
	Migration *domain.Migration
	Network   *config.NetworkConfig
	Plan      []PlannedStep
	Run       *MigrationResult // nil for dry runs and cancelled runs
	State     *domain.MigrationState
	DryRun    bool
	Resumed   bool
	Cancelled bool
}

// Run executes the migration
func (uc *ExecuteMigration) Run(ctx context.Context, params ExecuteMigrationParams) (*ExecuteMigrationResult, error) {
	network := uc.config.Network
	if network == nil {
		return nil, fmt.Errorf("%w: no network selected, use --network", domain.ErrConfig)
	}

	path, err := uc.resolvePath(ctx, params.Path)
	if err != nil {
		return nil, err
	}

	migration, err := uc.loader.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load migration: %w", err)
	}

	result := &ExecuteMigrationResult{
		Migration: migration,
		Network:   network,
		DryRun:    params.DryRun,
	}

	var state *domain.MigrationState
	var prior map[string]*domain.DeployedContract
	indexes := make([]int, len(migration.Steps))
	for i := range indexes {
		indexes[i] = i
	}

	if params.Resume {
		state, err = uc.loadResumableState(ctx, migration, network)
		if err != nil {
			return nil, err
		}
		prior = state.Deployed
		indexes = state.Remaining(migration)
		result.Resumed = true

		uc.progress.OnProgress(ctx, ProgressEvent{
			Stage:   StageMigrationResumed,
			Current: len(state.Completed),
			Total:   len(migration.Steps),
			Message: fmt.Sprintf("Resuming %s on %s with %d contract(s) already deployed", migration.Name, network.Name, len(prior)),
		})
	} else if prev, err := uc.states.Load(ctx, migration.Name, network.Name); err == nil && prev.Status != domain.RunStatusCompleted {
		uc.progress.Info(fmt.Sprintf("A previous %s run of %s on %s stopped at step %d, use --resume to continue it", prev.Status, migration.Name, network.Name, prev.FailedAt))
	}

	steps := make([]*domain.Step, len(indexes))
	for i, idx := range indexes {
		steps[i] = migration.Steps[idx]
	}
	result.Plan = uc.buildPlan(ctx, migration, indexes)

	var deployed map[string]bool
	if state != nil {
		deployed = state.DeployedIDs()
	}
	if err := uc.validate(steps, indexes, deployed); err != nil {
		return result, err
	}
	uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:    StagePlanReady,
		Total:    len(steps),
		Metadata: result,
	})

	if params.DryRun {
		return result, nil
	}

	if len(steps) == 0 {
		uc.progress.Info("Nothing to do, every step has already run")
		return result, nil
	}

	if !network.IsLocal() && !uc.config.NonInteractive && !params.Yes {
		prompt := fmt.Sprintf("Broadcast %d step(s) of %s to %s", len(steps), migration.Name, network.Name)
		ok, err := uc.confirmer.Confirm(ctx, prompt)
		if err != nil {
			return result, fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			result.Cancelled = true
			return result, nil
		}
	}

	if state == nil {
		state = domain.NewMigrationState(migration, network.Name, 0)
	} else {
		state.Status = domain.RunStatusRunning
		state.Error = ""
		state.FailedAt = -1
		state.TxHash = ""
	}
	result.State = state

	var account common.Address
	run, runErr := uc.runner.Execute(ctx, RunRequest{
		Steps:   steps,
		Network: network,
		Prior:   prior,
		Indexes: indexes,
		OnConnected: func(chainID uint64, acct common.Address) {
			account = acct
			if state.ChainID != 0 && state.ChainID != chainID {
				uc.log.Warn("chain id differs from the previous run", "previous", state.ChainID, "current", chainID)
			}
			state.ChainID = chainID
			uc.saveState(ctx, state)
		},
		OnStep: func(outcome *StepOutcome) {
			uc.recordOutcome(ctx, migration, state, account, outcome)
		},
	})
	result.Run = run

	if runErr != nil {
		// step failures are already persisted by recordOutcome, a failed
		// connection leaves nothing to record
		return result, runErr
	}

	state.Status = domain.RunStatusCompleted
	uc.saveState(ctx, state)
	return result, nil
}

// resolvePath picks the migration file to run
func (uc *ExecuteMigration) resolvePath(ctx context.Context, path string) (string, error) {
	if path != "" {
		return path, nil
	}

	dir := uc.config.MigrationsDir()
	paths, err := uc.loader.Discover(ctx, dir)
	if err != nil {
		return "", fmt.Errorf("failed to discover migrations: %w", err)
	}

	switch len(paths) {
	case 0:
		return "", fmt.Errorf("%w: no migration files in %s", domain.ErrNotFound, dir)
	case 1:
		return paths[0], nil
	}

	if uc.config.NonInteractive {
		names := make([]string, len(paths))
		for i, p := range paths {
			names[i] = filepath.Base(p)
		}
		return "", fmt.Errorf("multiple migrations found, pass one of %v", names)
	}
	return uc.selector.SelectMigration(ctx, paths, "Select migration")
}

func (uc *ExecuteMigration) loadResumableState(ctx context.Context, migration *domain.Migration, network *config.NetworkConfig) (*domain.MigrationState, error) {
	state, err := uc.states.Load(ctx, migration.Name, network.Name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("cannot resume: no previous run of %s on %s", migration.Name, network.Name)
		}
		return nil, fmt.Errorf("failed to resume: %w", err)
	}
	if state.Status == domain.RunStatusCompleted {
		return nil, fmt.Errorf("cannot resume: previous run of %s on %s already completed", migration.Name, network.Name)
	}
	if state.Steps != len(migration.Steps) {
		return nil, fmt.Errorf("cannot resume: migration changed since the previous run (was %d steps, now %d)", state.Steps, len(migration.Steps))
	}
	if state.Deployed == nil {
		state.Deployed = make(map[string]*domain.DeployedContract)
	}
	return state, nil
}

// validate checks ordering before anything touches the network. Problem
// indexes are reported as positions in the migration file.
func (uc *ExecuteMigration) validate(steps []*domain.Step, indexes []int, deployed map[string]bool) error {
	err := (&domain.Migration{Steps: steps}).Validate(deployed)
	var problems domain.ValidationErrors
	if errors.As(err, &problems) {
		for _, p := range problems {
			if p.Index >= 0 && p.Index < len(indexes) {
				p.Index = indexes[p.Index]
			}
		}
		return problems
	}
	return err
}

func (uc *ExecuteMigration) recordOutcome(ctx context.Context, migration *domain.Migration, state *domain.MigrationState, account common.Address, outcome *StepOutcome) {
	if outcome.Err != nil {
		state.Status = domain.RunStatusFailed
		state.Error = outcome.Err.Error()
		state.FailedAt = outcome.Index
		if outcome.Err.HasTx() {
			state.TxHash = outcome.Err.TxHash.Hex()
		}
		uc.saveState(ctx, state)
		return
	}

	state.MarkCompleted(outcome.Index)
	if d := outcome.Deployed; d != nil {
		state.Deployed[d.ID] = d
		if err := uc.deployments.SaveDeployment(ctx, uc.deploymentRecord(migration, state, account, outcome)); err != nil {
			uc.log.Warn("failed to save deployment", "contract", d.ID, "error", err)
			uc.progress.Error(fmt.Sprintf("Warning: failed to record %s in the registry: %v", d.ID, err))
		}
	}
	uc.saveState(ctx, state)
}

func (uc *ExecuteMigration) deploymentRecord(migration *domain.Migration, state *domain.MigrationState, account common.Address, outcome *StepOutcome) *models.Deployment {
	d := outcome.Deployed
	record := &models.Deployment{
		ID:           models.DeploymentID(state.Network, state.ChainID, d.ID),
		Network:      state.Network,
		ChainID:      state.ChainID,
		ContractName: d.ID,
		Address:      d.Address.Hex(),
		Type:         models.SingletonDeployment,
		TxHash:       d.TxHash.Hex(),
		BlockNumber:  d.BlockNumber,
		GasUsed:      d.GasUsed,
		Deployer:     account.Hex(),
		Migration:    migration.Name,
		RunID:        state.RunID,
		StepIndex:    d.StepIndex,
		CreatedAt:    time.Now(),
	}
	if c := outcome.Contract; c != nil {
		record.ArtifactPath = c.ArtifactPath
		if c.Artifact != nil {
			record.CompilerVersion = c.Artifact.CompilerVersion()
		}
	}

	for _, step := range migration.Steps {
		if step.Kind != domain.StepLink {
			continue
		}
		if step.Library == d.ID {
			record.Type = models.LibraryDeployment
		}
		if step.Contract == d.ID {
			if lib, ok := state.Deployed[step.Library]; ok {
				if record.Libraries == nil {
					record.Libraries = make(map[string]string)
				}
				record.Libraries[step.Library] = lib.Address.Hex()
			}
		}
	}
	return record
}

// saveState persists progress. A failed write is reported but never stops a
// run that already has transactions on chain.
func (uc *ExecuteMigration) saveState(ctx context.Context, state *domain.MigrationState) {
	state.UpdatedAt = time.Now()
	if err := uc.states.Save(ctx, state); err != nil {
		uc.log.Warn("failed to save migration state", "error", err)
		uc.progress.Error(fmt.Sprintf("Warning: failed to save migration state: %v", err))
	}
}

// buildPlan lists every step, marking those outside indexes as skipped.
// Missing artifacts leave Size at zero and surface when the step runs.
func (uc *ExecuteMigration) buildPlan(ctx context.Context, migration *domain.Migration, indexes []int) []PlannedStep {
	pending := make(map[int]bool, len(indexes))
	for _, i := range indexes {
		pending[i] = true
	}
	plan := make([]PlannedStep, len(migration.Steps))
	for i, step := range migration.Steps {
		plan[i] = PlannedStep{Index: i, Step: step, Skipped: !pending[i]}
		if step.Kind != domain.StepDeploy {
			continue
		}
		contract, err := uc.runner.artifacts.GetContract(ctx, step.Contract)
		if err != nil || contract.Artifact == nil {
			continue
		}
		plan[i].Size = contract.Artifact.DeployedSize()
		if contract.Artifact.Oversized() && pending[i] {
			uc.log.Warn("contract exceeds the deployable size limit", "contract", step.Contract, "size", plan[i].Size, "limit", models.MaxContractSize)
		}
	}
	return plan
}
