package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-migrate/internal/domain"
	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
	"github.com/trebuchet-org/treb-migrate/internal/domain/models"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

type executeFixture struct {
	*runFixture
	states    *memoryStateStore
	repo      *MockDeploymentRepository
	confirmer *MockConfirmer
	loader    *staticLoader
	cfg       *config.RuntimeConfig
	uc        *usecase.ExecuteMigration
}

func luvMigration() *domain.Migration {
	return &domain.Migration{
		Name: "luv-nft",
		Steps: []*domain.Step{
			deploy("IterableMapping"),
			link("LuvNFT", "IterableMapping"),
			deploy("NFTDescriptor"),
			link("LuvNFT", "NFTDescriptor"),
			deploy("LuvNFT"),
			call("LuvNFT", "mint", "New York", "<svg/>"),
		},
	}
}

func newExecuteFixture(network *config.NetworkConfig) *executeFixture {
	rf := newRunFixture()
	if network != nil {
		rf.network = network
	}
	rf.artifacts.add("IterableMapping", "6001")
	rf.artifacts.add("NFTDescriptor", "6002")
	rf.artifacts.add("LuvNFT", "60"+models.LegacyPlaceholder("IterableMapping")+"61"+models.LegacyPlaceholder("NFTDescriptor"))

	f := &executeFixture{
		runFixture: rf,
		states:     newMemoryStateStore(),
		repo:       &MockDeploymentRepository{},
		confirmer:  &MockConfirmer{},
		loader:     &staticLoader{migration: luvMigration(), paths: []string{"migrations/2_deploy.yaml"}},
		cfg: &config.RuntimeConfig{
			ProjectRoot: "/project",
			Network:     rf.network,
			Project:     &config.ProjectConfig{Migrations: "migrations"},
		},
	}
	f.uc = usecase.NewExecuteMigration(f.cfg, rf.uc, f.loader, f.states, f.repo, f.confirmer, nil, rf.progress, discardLogger())
	return f
}

func TestExecuteMigration_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("runs the migration and records deployments", func(t *testing.T) {
		f := newExecuteFixture(nil)
		f.conn.On("Deploy", mock.Anything, mock.Anything).Return(receipt(1), nil).Once()
		f.conn.On("Deploy", mock.Anything, mock.Anything).Return(receipt(2), nil).Once()
		f.conn.On("Deploy", mock.Anything, mock.Anything).Return(receipt(3), nil).Once()
		f.encoder.On("EncodeCall", mock.Anything, "mint", []any{"New York", "<svg/>"}).Return([]byte{0x01}, nil)
		f.conn.On("Transact", mock.Anything, addr(3), mock.Anything).Return(receipt(4), nil)

		var saved []*models.Deployment
		f.repo.On("SaveDeployment", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			saved = append(saved, args.Get(1).(*models.Deployment))
		}).Return(nil)

		result, err := f.uc.Run(ctx, usecase.ExecuteMigrationParams{})
		require.NoError(t, err)
		require.NotNil(t, result.Run)
		assert.Equal(t, "migrations/2_deploy.yaml", result.Migration.Source)
		assert.Len(t, result.Run.Deployed, 3)
		assert.Equal(t, domain.RunStatusCompleted, result.State.Status)
		assert.Len(t, result.State.Completed, 6)

		require.Len(t, saved, 3)
		assert.Equal(t, models.LibraryDeployment, saved[0].Type)
		assert.Equal(t, "local/31337/IterableMapping", saved[0].ID)
		assert.Equal(t, models.SingletonDeployment, saved[2].Type)
		assert.Equal(t, map[string]string{
			"IterableMapping": addr(1).Hex(),
			"NFTDescriptor":   addr(2).Hex(),
		}, saved[2].Libraries)
		assert.NotEmpty(t, saved[0].RunID)
		assert.Equal(t, result.State.RunID, saved[2].RunID)

		// local networks never prompt
		f.confirmer.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)

		persisted, err := f.states.Load(ctx, "luv-nft", "local")
		require.NoError(t, err)
		assert.Equal(t, domain.RunStatusCompleted, persisted.Status)
		assert.Equal(t, uint64(31337), persisted.ChainID)
	})

	t.Run("validation fails before connecting", func(t *testing.T) {
		f := newExecuteFixture(nil)
		f.loader.migration = &domain.Migration{Name: "bad", Steps: []*domain.Step{call("A", "mint"), deploy("A")}}

		result, err := f.uc.Run(ctx, usecase.ExecuteMigrationParams{Path: "bad.yaml"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConfig)
		assert.Nil(t, result.Run)
		f.provider.AssertNotCalled(t, "Connect", mock.Anything, mock.Anything)
	})

	t.Run("dry run stops after planning", func(t *testing.T) {
		f := newExecuteFixture(nil)
		result, err := f.uc.Run(ctx, usecase.ExecuteMigrationParams{DryRun: true})
		require.NoError(t, err)
		assert.True(t, result.DryRun)
		assert.Len(t, result.Plan, 6)
		assert.Nil(t, result.Run)
		f.provider.AssertNotCalled(t, "Connect", mock.Anything, mock.Anything)
	})

	t.Run("plan carries deployed sizes", func(t *testing.T) {
		f := newExecuteFixture(nil)
		f.artifacts["LuvNFT"].Artifact.DeployedBytecode = models.BytecodeObject{Object: "0x" + strings.Repeat("00", models.MaxContractSize+10)}
		f.artifacts["NFTDescriptor"].Artifact.DeployedBytecode = models.BytecodeObject{Object: "0x600160"}

		result, err := f.uc.Run(ctx, usecase.ExecuteMigrationParams{DryRun: true})
		require.NoError(t, err)
		require.Len(t, result.Plan, 6)
		assert.Equal(t, 0, result.Plan[0].Size)
		assert.Equal(t, 3, result.Plan[2].Size)
		assert.False(t, result.Plan[2].Oversized())
		assert.Equal(t, models.MaxContractSize+10, result.Plan[4].Size)
		assert.True(t, result.Plan[4].Oversized())
		assert.Zero(t, result.Plan[5].Size, "calls have no size")
	})

	t.Run("remote network asks for confirmation", func(t *testing.T) {
		remote := &config.NetworkConfig{Name: "harmony_testnet", RPCURL: "https://api.s0.b.hmny.io", NetworkID: 1666700000}
		f := newExecuteFixture(remote)
		f.confirmer.On("Confirm", mock.Anything, mock.Anything).Return(false, nil)

		result, err := f.uc.Run(ctx, usecase.ExecuteMigrationParams{})
		require.NoError(t, err)
		assert.True(t, result.Cancelled)
		f.provider.AssertNotCalled(t, "Connect", mock.Anything, mock.Anything)
	})

	t.Run("yes skips confirmation", func(t *testing.T) {
		remote := &config.NetworkConfig{Name: "harmony_testnet", RPCURL: "https://api.s0.b.hmny.io", NetworkID: 1666700000}
		f := newExecuteFixture(remote)
		f.provider.On("Connect", mock.Anything, remote).Return(nil, errors.New("unreachable"))

		_, err := f.uc.Run(ctx, usecase.ExecuteMigrationParams{Yes: true})
		assert.ErrorIs(t, err, domain.ErrConnection)
		f.confirmer.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
	})

	t.Run("no network selected", func(t *testing.T) {
		f := newExecuteFixture(nil)
		f.cfg.Network = nil
		_, err := f.uc.Run(ctx, usecase.ExecuteMigrationParams{})
		assert.ErrorIs(t, err, domain.ErrConfig)
	})
}

func TestExecuteMigration_Resume(t *testing.T) {
	ctx := context.Background()
	f := newExecuteFixture(nil)
	f.repo.On("SaveDeployment", mock.Anything, mock.Anything).Return(nil)

	// first run: LuvNFT deploy reverts after both libraries are on chain
	f.conn.On("Deploy", mock.Anything, mock.Anything).Return(receipt(1), nil).Once()
	f.conn.On("Deploy", mock.Anything, mock.Anything).Return(receipt(2), nil).Once()
	f.conn.On("Deploy", mock.Anything, mock.Anything).
		Return(&usecase.TxReceipt{TxHash: receipt(7).TxHash}, fmt.Errorf("%w: out of gas", domain.ErrReverted)).Once()

	result, err := f.uc.Run(ctx, usecase.ExecuteMigrationParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDeploy)
	assert.Len(t, result.Run.Deployed, 2)

	state, err := f.states.Load(ctx, "luv-nft", "local")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, state.Status)
	assert.Equal(t, 4, state.FailedAt)
	assert.Equal(t, receipt(7).TxHash.Hex(), state.TxHash)
	assert.Equal(t, []int{0, 1, 2, 3}, state.Completed)

	// a fresh run points at --resume
	f.progress.infos = nil
	_, _ = f.uc.Run(ctx, usecase.ExecuteMigrationParams{DryRun: true})
	require.Len(t, f.progress.infos, 1)
	assert.Contains(t, f.progress.infos[0], "--resume")

	// resume replays the links and finishes
	f.conn.On("Deploy", mock.Anything, mock.Anything).Return(receipt(3), nil).Once()
	f.encoder.On("EncodeCall", mock.Anything, "mint", mock.Anything).Return([]byte{0x01}, nil)
	f.conn.On("Transact", mock.Anything, addr(3), mock.Anything).Return(receipt(4), nil)

	result, err = f.uc.Run(ctx, usecase.ExecuteMigrationParams{Resume: true})
	require.NoError(t, err)
	assert.True(t, result.Resumed)
	assert.Equal(t, []string{"IterableMapping", "NFTDescriptor", "LuvNFT"}, result.Run.Order)

	var skipped []int
	for _, p := range result.Plan {
		if p.Skipped {
			skipped = append(skipped, p.Index)
		}
	}
	assert.Equal(t, []int{0, 2}, skipped)

	state, err = f.states.Load(ctx, "luv-nft", "local")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, state.Status)

	t.Run("completed run cannot be resumed", func(t *testing.T) {
		_, err := f.uc.Run(ctx, usecase.ExecuteMigrationParams{Resume: true})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already completed")
	})

	t.Run("resume without state", func(t *testing.T) {
		g := newExecuteFixture(nil)
		_, err := g.uc.Run(ctx, usecase.ExecuteMigrationParams{Resume: true})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no previous run")
	})

	t.Run("contracts from the previous run cannot be deployed again", func(t *testing.T) {
		g := newExecuteFixture(nil)
		prev := domain.NewMigrationState(luvMigration(), "local", 31337)
		prev.Status = domain.RunStatusFailed
		prev.Completed = []int{0, 1}
		prev.Deployed["IterableMapping"] = &domain.DeployedContract{ID: "IterableMapping", Address: addr(1)}
		prev.Deployed["NFTDescriptor"] = &domain.DeployedContract{ID: "NFTDescriptor", Address: addr(2)}
		require.NoError(t, g.states.Save(ctx, prev))

		_, err := g.uc.Run(ctx, usecase.ExecuteMigrationParams{Resume: true})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConfig)

		var problems domain.ValidationErrors
		require.True(t, errors.As(err, &problems))
		first := problems.First()
		require.NotNil(t, first)
		assert.Equal(t, 2, first.Index)
		assert.Equal(t, "NFTDescriptor", first.Contract)
		assert.Contains(t, first.Error(), "already deployed by a previous run")
		assert.Empty(t, g.conn.submissions())
	})
}
