package usecase_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
	"github.com/trebuchet-org/treb-migrate/internal/domain"
	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
	"github.com/trebuchet-org/treb-migrate/internal/domain/models"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

// MockNetworkProvider is a mock implementation of NetworkProvider
type MockNetworkProvider struct {
	mock.Mock
}

func (m *MockNetworkProvider) Connect(ctx context.Context, network *config.NetworkConfig) (usecase.Connection, error) {
	args := m.Called(ctx, network)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(usecase.Connection), args.Error(1)
}

func (m *MockNetworkProvider) ChainID(ctx context.Context, network *config.NetworkConfig) (uint64, error) {
	args := m.Called(ctx, network)
	return args.Get(0).(uint64), args.Error(1)
}

// MockConnection is a mock implementation of Connection
type MockConnection struct {
	mock.Mock
}

func (m *MockConnection) ChainID() uint64 {
	return m.Called().Get(0).(uint64)
}

func (m *MockConnection) Account() common.Address {
	return m.Called().Get(0).(common.Address)
}

func (m *MockConnection) Deploy(ctx context.Context, tx *usecase.TxRequest) (*usecase.TxReceipt, error) {
	args := m.Called(ctx, tx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.TxReceipt), args.Error(1)
}

func (m *MockConnection) Transact(ctx context.Context, to common.Address, tx *usecase.TxRequest) (*usecase.TxReceipt, error) {
	args := m.Called(ctx, to, tx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.TxReceipt), args.Error(1)
}

func (m *MockConnection) Close() {
	m.Called()
}

// submissions returns the Deploy and Transact calls in the order they happened
func (m *MockConnection) submissions() []mock.Call {
	var out []mock.Call
	for _, c := range m.Calls {
		if c.Method == "Deploy" || c.Method == "Transact" {
			out = append(out, c)
		}
	}
	return out
}

func newMockConnection() *MockConnection {
	conn := &MockConnection{}
	conn.On("ChainID").Return(uint64(31337)).Maybe()
	conn.On("Account").Return(common.HexToAddress("0x00000000000000000000000000000000000000de")).Maybe()
	conn.On("Close").Return().Maybe()
	return conn
}

// MockArgsEncoder is a mock implementation of ArgsEncoder
type MockArgsEncoder struct {
	mock.Mock
}

func (m *MockArgsEncoder) EncodeConstructor(abiJSON json.RawMessage, args []any) ([]byte, error) {
	a := m.Called(abiJSON, args)
	if a.Get(0) == nil {
		return nil, a.Error(1)
	}
	return a.Get(0).([]byte), a.Error(1)
}

func (m *MockArgsEncoder) EncodeCall(abiJSON json.RawMessage, method string, args []any) ([]byte, error) {
	a := m.Called(abiJSON, method, args)
	if a.Get(0) == nil {
		return nil, a.Error(1)
	}
	return a.Get(0).([]byte), a.Error(1)
}

// MockDeploymentRepository is a mock implementation of DeploymentRepository
type MockDeploymentRepository struct {
	mock.Mock
}

func (m *MockDeploymentRepository) GetDeployment(ctx context.Context, id string) (*models.Deployment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Deployment), args.Error(1)
}

func (m *MockDeploymentRepository) GetDeploymentByAddress(ctx context.Context, chainID uint64, address string) (*models.Deployment, error) {
	args := m.Called(ctx, chainID, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Deployment), args.Error(1)
}

func (m *MockDeploymentRepository) ListDeployments(ctx context.Context, filter models.DeploymentFilter) ([]*models.Deployment, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Deployment), args.Error(1)
}

func (m *MockDeploymentRepository) SaveDeployment(ctx context.Context, deployment *models.Deployment) error {
	args := m.Called(ctx, deployment)
	return args.Error(0)
}

// MockConfirmer is a mock implementation of Confirmer
type MockConfirmer struct {
	mock.Mock
}

func (m *MockConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	args := m.Called(ctx, prompt)
	return args.Bool(0), args.Error(1)
}

// MockProgressSink records progress events
type MockProgressSink struct {
	events []usecase.ProgressEvent
	infos  []string
	errors []string
}

func (m *MockProgressSink) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	m.events = append(m.events, event)
}

func (m *MockProgressSink) Info(message string) {
	m.infos = append(m.infos, message)
}

func (m *MockProgressSink) Error(message string) {
	m.errors = append(m.errors, message)
}

func (m *MockProgressSink) stages() []string {
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Stage
	}
	return out
}

// memoryArtifacts is an in-memory ArtifactSource
type memoryArtifacts map[string]*models.Contract

func (a memoryArtifacts) GetContract(ctx context.Context, name string) (*models.Contract, error) {
	c, ok := a[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrContractNotFound, name)
	}
	return c, nil
}

func (a memoryArtifacts) ListContracts(ctx context.Context) ([]*models.Contract, error) {
	out := make([]*models.Contract, 0, len(a))
	for _, c := range a {
		out = append(out, c)
	}
	return out, nil
}

func (a memoryArtifacts) add(name, code string) {
	a[name] = &models.Contract{
		Name:       name,
		SourcePath: "contracts/" + name + ".sol",
		Artifact: &models.Artifact{
			ContractName: name,
			ABI:          json.RawMessage(`[]`),
			Bytecode:     models.BytecodeObject{Object: "0x" + code},
		},
	}
}

// memoryStateStore is an in-memory MigrationStateStore
type memoryStateStore struct {
	states map[string]*domain.MigrationState
	saves  int
}

func newMemoryStateStore() *memoryStateStore {
	return &memoryStateStore{states: make(map[string]*domain.MigrationState)}
}

func (s *memoryStateStore) Load(ctx context.Context, migration, network string) (*domain.MigrationState, error) {
	st, ok := s.states[migration+"@"+network]
	if !ok {
		return nil, domain.ErrNotFound
	}
	data, _ := json.Marshal(st)
	var cp domain.MigrationState
	_ = json.Unmarshal(data, &cp)
	return &cp, nil
}

func (s *memoryStateStore) Save(ctx context.Context, state *domain.MigrationState) error {
	s.saves++
	data, _ := json.Marshal(state)
	var cp domain.MigrationState
	_ = json.Unmarshal(data, &cp)
	s.states[state.Migration+"@"+state.Network] = &cp
	return nil
}

// staticLoader returns a fixed migration
type staticLoader struct {
	migration *domain.Migration
	paths     []string
}

func (l *staticLoader) Load(ctx context.Context, path string) (*domain.Migration, error) {
	m := *l.migration
	m.Source = path
	return &m, nil
}

func (l *staticLoader) Discover(ctx context.Context, dir string) ([]string, error) {
	return l.paths, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func addr(last byte) common.Address {
	var a common.Address
	a[19] = last
	return a
}

func receipt(last byte) *usecase.TxReceipt {
	return &usecase.TxReceipt{
		TxHash:          common.BytesToHash([]byte{0xf0, last}),
		ContractAddress: addr(last),
		BlockNumber:     uint64(100 + int(last)),
		GasUsed:         21000,
	}
}

func deploy(c string, args ...any) *domain.Step {
	return &domain.Step{Kind: domain.StepDeploy, Contract: c, Args: args}
}

func link(c, l string) *domain.Step {
	return &domain.Step{Kind: domain.StepLink, Contract: c, Library: l}
}

func call(c, m string, args ...any) *domain.Step {
	return &domain.Step{Kind: domain.StepCall, Contract: c, Method: m, Args: args}
}
