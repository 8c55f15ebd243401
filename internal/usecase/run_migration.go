package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-migrate/internal/domain"
	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
	"github.com/trebuchet-org/treb-migrate/internal/domain/models"
)

// RunMigration executes migration steps in order against one network
type RunMigration struct {
	provider  NetworkProvider
	artifacts ArtifactSource
	encoder   ArgsEncoder
	progress  ProgressSink
	log       *slog.Logger
}

// NewRunMigration creates a new run migration use case
func NewRunMigration(
	provider NetworkProvider,
	artifacts ArtifactSource,
	encoder ArgsEncoder,
	progress ProgressSink,
	log *slog.Logger,
) *RunMigration {
	return &RunMigration{
		provider:  provider,
		artifacts: artifacts,
		encoder:   encoder,
		progress:  progress,
		log:       log.With("component", "RunMigration"),
	}
}

// RunRequest describes one orchestrator invocation
type RunRequest struct {
	Steps   []*domain.Step
	Network *config.NetworkConfig
	// Prior seeds the mapping with contracts deployed by an earlier run
	Prior map[string]*domain.DeployedContract
	// Indexes maps each step to its position in the migration file.
	// When nil the position in Steps is used.
	Indexes []int

	OnConnected func(chainID uint64, account common.Address)
	OnStep      func(outcome *StepOutcome)
}

// StepOutcome is the result of one processed step
type StepOutcome struct {
	Index    int
	Step     *domain.Step
	Deployed *domain.DeployedContract // deploy steps only
	Contract *models.Contract         // artifact used by a deploy step
	Receipt  *TxReceipt               // nil for link steps
	Linked   int                      // placeholders replaced by a link step
	Err      *domain.StepError
}

// MigrationResult is the mapping from contract id to deployed contract plus
// the per-step log. On failure it holds exactly the deploys that succeeded.
type MigrationResult struct {
	Network  string
	ChainID  uint64
	Account  common.Address
	Deployed map[string]*domain.DeployedContract
	// Order lists deploy ids in the order they were recorded, prior ones first
	Order  []string
	Steps  []*StepOutcome
	Failed *domain.StepError
}

// Success reports whether every step ran
func (r *MigrationResult) Success() bool {
	return r.Failed == nil
}

// Addresses returns contract id -> address
func (r *MigrationResult) Addresses() map[string]common.Address {
	out := make(map[string]common.Address, len(r.Deployed))
	for id, d := range r.Deployed {
		out[id] = d.Address
	}
	return out
}

func (r *MigrationResult) record(d *domain.DeployedContract) {
	r.Deployed[d.ID] = d
	r.Order = append(r.Order, d.ID)
}

// Run executes steps from an empty mapping
func (uc *RunMigration) Run(ctx context.Context, steps []*domain.Step, network *config.NetworkConfig) (*MigrationResult, error) {
	return uc.Execute(ctx, RunRequest{Steps: steps, Network: network})
}

// Resume executes steps with the mapping seeded from an earlier run
func (uc *RunMigration) Resume(ctx context.Context, steps []*domain.Step, network *config.NetworkConfig, prior map[string]*domain.DeployedContract) (*MigrationResult, error) {
	return uc.Execute(ctx, RunRequest{Steps: steps, Network: network, Prior: prior})
}

// Execute runs the request. The returned result is never nil; when err is
// non-nil it is a *domain.StepError and the result holds the partial mapping.
func (uc *RunMigration) Execute(ctx context.Context, req RunRequest) (*MigrationResult, error) {
	if req.Network == nil {
		return nil, fmt.Errorf("%w: no network selected", domain.ErrConfig)
	}
	if req.Indexes != nil && len(req.Indexes) != len(req.Steps) {
		return nil, fmt.Errorf("step indexes do not match steps: %d != %d", len(req.Indexes), len(req.Steps))
	}

	result := &MigrationResult{
		Network:  req.Network.Name,
		Deployed: make(map[string]*domain.DeployedContract, len(req.Prior)),
	}
	prior := lo.Filter(lo.Values(req.Prior), func(d *domain.DeployedContract, _ int) bool { return d != nil })
	sort.SliceStable(prior, func(i, j int) bool {
		if prior[i].StepIndex != prior[j].StepIndex {
			return prior[i].StepIndex < prior[j].StepIndex
		}
		return prior[i].ID < prior[j].ID
	})
	for _, d := range prior {
		result.record(d)
	}

	uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:    StagePlanCreated,
		Total:    len(req.Steps),
		Metadata: req.Steps,
	})

	uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:   StageConnecting,
		Message: fmt.Sprintf("Connecting to %s...", req.Network.Name),
		Spinner: true,
	})
	conn, err := uc.provider.Connect(ctx, req.Network)
	if err != nil {
		stepErr := domain.NewStepError(domain.ConnectionError, -1, nil, err)
		result.Failed = stepErr
		uc.progress.OnProgress(ctx, ProgressEvent{
			Stage:    StageStepFailed,
			Metadata: &StepOutcome{Index: -1, Err: stepErr},
		})
		return result, stepErr
	}
	defer conn.Close()

	result.ChainID = conn.ChainID()
	result.Account = conn.Account()
	uc.log.Debug("connected", "network", req.Network.Name, "chainId", result.ChainID, "account", result.Account.Hex())
	uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:    StageConnected,
		Message:  fmt.Sprintf("Connected to %s (chain %d) as %s", req.Network.Name, result.ChainID, result.Account.Hex()),
		Metadata: result,
	})
	if req.OnConnected != nil {
		req.OnConnected(result.ChainID, result.Account)
	}

	// Working bytecode per contract, created by the first link step and
	// consumed by the deploy step.
	working := make(map[string]*models.LinkableBytecode)

	for i, step := range req.Steps {
		index := i
		if req.Indexes != nil {
			index = req.Indexes[i]
		}

		uc.progress.OnProgress(ctx, ProgressEvent{
			Stage:    StageStepStarting,
			Current:  i + 1,
			Total:    len(req.Steps),
			Message:  step.String(),
			Spinner:  step.Kind != domain.StepLink,
			Metadata: step,
		})

		outcome := &StepOutcome{Index: index, Step: step}
		var stepErr *domain.StepError
		switch step.Kind {
		case domain.StepDeploy:
			stepErr = uc.deploy(ctx, conn, outcome, result, working)
		case domain.StepLink:
			stepErr = uc.link(ctx, outcome, result, working)
		case domain.StepCall:
			stepErr = uc.call(ctx, conn, outcome, result)
		default:
			stepErr = domain.NewStepError(domain.ConfigError, index, step, fmt.Errorf("unknown step kind %q", step.Kind))
		}

		outcome.Err = stepErr
		result.Steps = append(result.Steps, outcome)
		if req.OnStep != nil {
			req.OnStep(outcome)
		}

		if stepErr != nil {
			result.Failed = stepErr
			uc.log.Debug("step failed", "index", index, "step", step.String(), "error", stepErr.Err)
			uc.progress.OnProgress(ctx, ProgressEvent{
				Stage:    StageStepFailed,
				Current:  i + 1,
				Total:    len(req.Steps),
				Metadata: outcome,
			})
			return result, stepErr
		}

		uc.progress.OnProgress(ctx, ProgressEvent{
			Stage:    StageStepCompleted,
			Current:  i + 1,
			Total:    len(req.Steps),
			Metadata: outcome,
		})
	}

	uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:    StageMigrationFinished,
		Metadata: result,
	})
	return result, nil
}

func (uc *RunMigration) deploy(ctx context.Context, conn Connection, out *StepOutcome, result *MigrationResult, working map[string]*models.LinkableBytecode) *domain.StepError {
	step := out.Step
	fail := func(err error) *domain.StepError {
		return domain.NewStepError(domain.DeployError, out.Index, step, err)
	}

	if _, exists := result.Deployed[step.Contract]; exists {
		return fail(fmt.Errorf("%s is already deployed in this run", step.Contract))
	}

	contract, err := uc.artifacts.GetContract(ctx, step.Contract)
	if err != nil {
		return fail(err)
	}
	out.Contract = contract

	code, ok := working[step.Contract]
	if !ok {
		code = models.NewLinkableBytecode(step.Contract, contract.Artifact)
	}
	bytecode, err := code.Bytes()
	if err != nil {
		return fail(err)
	}

	args, err := resolveArgs(step.Args, result.Deployed)
	if err != nil {
		return fail(err)
	}
	ctorData, err := uc.encoder.EncodeConstructor(contract.Artifact.ABI, args)
	if err != nil {
		return fail(fmt.Errorf("failed to encode constructor arguments: %w", err))
	}

	data := make([]byte, 0, len(bytecode)+len(ctorData))
	data = append(data, bytecode...)
	data = append(data, ctorData...)

	uc.log.Debug("deploying", "contract", step.Contract, "size", len(data), "gas", step.Gas)
	receipt, err := conn.Deploy(ctx, &TxRequest{Data: data, Gas: step.Gas, Value: step.Value})
	out.Receipt = receipt
	if err != nil {
		stepErr := fail(err)
		if receipt != nil {
			stepErr.TxHash = receipt.TxHash
		}
		return stepErr
	}

	deployed := &domain.DeployedContract{
		ID:          step.Contract,
		Address:     receipt.ContractAddress,
		ABI:         contract.Artifact.ABI,
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
		GasUsed:     receipt.GasUsed,
		StepIndex:   out.Index,
	}
	result.record(deployed)
	delete(working, step.Contract)
	out.Deployed = deployed
	return nil
}

func (uc *RunMigration) link(ctx context.Context, out *StepOutcome, result *MigrationResult, working map[string]*models.LinkableBytecode) *domain.StepError {
	step := out.Step
	fail := func(err error) *domain.StepError {
		return domain.NewStepError(domain.LinkError, out.Index, step, err)
	}

	library, ok := result.Deployed[step.Library]
	if !ok {
		return fail(fmt.Errorf("library %s has not been deployed", step.Library))
	}
	if _, deployed := result.Deployed[step.Contract]; deployed {
		return fail(fmt.Errorf("%s is already deployed, linking has no effect", step.Contract))
	}

	code, ok := working[step.Contract]
	if !ok {
		contract, err := uc.artifacts.GetContract(ctx, step.Contract)
		if err != nil {
			return fail(err)
		}
		code = models.NewLinkableBytecode(step.Contract, contract.Artifact)
	}

	var sources []string
	if lib, err := uc.artifacts.GetContract(ctx, step.Library); err == nil {
		sources = append(sources, lib.FullyQualifiedName())
		if src := lib.Artifact.Source(); src != "" && src != lib.SourcePath {
			sources = append(sources, src+":"+step.Library)
		}
	}

	n, err := code.Link(step.Library, sources, library.Address)
	if err != nil {
		return fail(err)
	}
	working[step.Contract] = code
	out.Linked = n
	uc.log.Debug("linked", "library", step.Library, "contract", step.Contract, "placeholders", n)
	return nil
}

func (uc *RunMigration) call(ctx context.Context, conn Connection, out *StepOutcome, result *MigrationResult) *domain.StepError {
	step := out.Step
	fail := func(err error) *domain.StepError {
		return domain.NewStepError(domain.CallError, out.Index, step, err)
	}

	target, ok := result.Deployed[step.Contract]
	if !ok {
		return fail(fmt.Errorf("%s has not been deployed", step.Contract))
	}

	args, err := resolveArgs(step.Args, result.Deployed)
	if err != nil {
		return fail(err)
	}
	data, err := uc.encoder.EncodeCall(target.ABI, step.Method, args)
	if err != nil {
		return fail(err)
	}

	uc.log.Debug("calling", "contract", step.Contract, "method", step.Method, "to", target.Address.Hex())
	receipt, err := conn.Transact(ctx, target.Address, &TxRequest{Data: data, Gas: step.Gas, Value: step.Value})
	out.Receipt = receipt
	if err != nil {
		stepErr := fail(err)
		if receipt != nil {
			stepErr.TxHash = receipt.TxHash
		}
		return stepErr
	}
	return nil
}

// resolveArgs replaces "@Name" strings with the address of a deployed contract
func resolveArgs(args []any, deployed map[string]*domain.DeployedContract) ([]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make([]any, len(args))
	for i, arg := range args {
		v, err := resolveArg(arg, deployed)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func resolveArg(arg any, deployed map[string]*domain.DeployedContract) (any, error) {
	switch v := arg.(type) {
	case string:
		if !strings.HasPrefix(v, "@") || len(v) == 1 {
			return v, nil
		}
		d, ok := deployed[v[1:]]
		if !ok {
			return nil, fmt.Errorf("%w: %s is not deployed", domain.ErrNotFound, v[1:])
		}
		return d.Address, nil
	case []any:
		if len(v) == 0 {
			return v, nil
		}
		return resolveArgs(v, deployed)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, field := range v {
			resolved, err := resolveArg(field, deployed)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", key, err)
			}
			out[key] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}
