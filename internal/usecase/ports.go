package usecase

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/treb-migrate/internal/domain"
	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
	"github.com/trebuchet-org/treb-migrate/internal/domain/models"
)

// NetworkProvider opens signing connections to a network
type NetworkProvider interface {
	// Connect dials the RPC endpoint, checks the chain id and loads the signer
	Connect(ctx context.Context, network *config.NetworkConfig) (Connection, error)
	// ChainID queries an endpoint without a signer
	ChainID(ctx context.Context, network *config.NetworkConfig) (uint64, error)
}

// Connection is a live, authenticated handle to one network. Only one
// transaction is in flight at a time.
type Connection interface {
	ChainID() uint64
	Account() common.Address
	// Deploy submits a contract creation and waits for confirmation. When a
	// transaction was sent the receipt is returned even if err != nil.
	Deploy(ctx context.Context, tx *TxRequest) (*TxReceipt, error)
	// Transact submits a call to an existing contract and waits for confirmation
	Transact(ctx context.Context, to common.Address, tx *TxRequest) (*TxReceipt, error)
	Close()
}

// TxRequest is an unsigned transaction payload
type TxRequest struct {
	Data  []byte
	Gas   uint64   // 0 uses the network default or node estimate
	Value *big.Int // nil sends nothing
}

// TxReceipt is the confirmed outcome of a submitted transaction
type TxReceipt struct {
	TxHash          common.Hash
	ContractAddress common.Address
	BlockNumber     uint64
	GasUsed         uint64
}

// ArtifactSource provides compiled contracts
type ArtifactSource interface {
	GetContract(ctx context.Context, name string) (*models.Contract, error)
	ListContracts(ctx context.Context) ([]*models.Contract, error)
}

// ArtifactWriter persists compiled contracts
type ArtifactWriter interface {
	WriteContract(ctx context.Context, contract *models.Contract) (string, error)
}

// ArgsEncoder packs literal step arguments against a contract ABI
type ArgsEncoder interface {
	EncodeConstructor(abiJSON json.RawMessage, args []any) ([]byte, error)
	EncodeCall(abiJSON json.RawMessage, method string, args []any) ([]byte, error)
}

// DeploymentRepository handles persistence of deployment records
type DeploymentRepository interface {
	GetDeployment(ctx context.Context, id string) (*models.Deployment, error)
	GetDeploymentByAddress(ctx context.Context, chainID uint64, address string) (*models.Deployment, error)
	ListDeployments(ctx context.Context, filter models.DeploymentFilter) ([]*models.Deployment, error)
	SaveDeployment(ctx context.Context, deployment *models.Deployment) error
}

// MigrationStateStore persists run progress between invocations
type MigrationStateStore interface {
	Load(ctx context.Context, migration, network string) (*domain.MigrationState, error)
	Save(ctx context.Context, state *domain.MigrationState) error
}

// MigrationLoader reads migration files
type MigrationLoader interface {
	Load(ctx context.Context, path string) (*domain.Migration, error)
	// Discover lists migration files in a directory, in execution order
	Discover(ctx context.Context, dir string) ([]string, error)
}

// Compiler builds contracts from source
type Compiler interface {
	Version(ctx context.Context) (string, error)
	Compile(ctx context.Context, sourcesDir string, cfg config.CompilerConfig) ([]*models.Contract, error)
}

// Confirmer asks the operator before irreversible actions
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// MigrationSelector lets the operator pick one of several migration files
type MigrationSelector interface {
	SelectMigration(ctx context.Context, paths []string, prompt string) (string, error)
}

// Progress tracking interfaces

// ProgressEvent represents a progress update
type ProgressEvent struct {
	Stage    string
	Current  int
	Total    int
	Message  string
	Spinner  bool
	Metadata interface{}
}

// ProgressSink receives progress events
type ProgressSink interface {
	OnProgress(ctx context.Context, event ProgressEvent)
	Info(message string)
	Error(message string)
}

// NopProgress is a no-op implementation of ProgressSink
type NopProgress struct{}

func (NopProgress) OnProgress(context.Context, ProgressEvent) {}
func (NopProgress) Info(string)                               {}
func (NopProgress) Error(string)                              {}

// Progress stages emitted by the orchestrator
const (
	StagePlanReady         = "plan_ready"
	StagePlanCreated       = "plan_created"
	StageConnecting        = "connecting"
	StageConnected         = "connected"
	StageStepStarting      = "step_starting"
	StageStepCompleted     = "step_completed"
	StageStepFailed        = "step_failed"
	StageMigrationResumed  = "migration_resumed"
	StageMigrationFinished = "migration_completed"
)
