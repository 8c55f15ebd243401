package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-migrate/internal/domain"
	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
	"github.com/trebuchet-org/treb-migrate/internal/domain/models"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

func TestShowDeployment(t *testing.T) {
	ctx := context.Background()
	luv := &models.Deployment{
		ID:           "harmony_testnet/1666700000/LuvNFT",
		Network:      "harmony_testnet",
		ChainID:      1666700000,
		ContractName: "LuvNFT",
		Address:      "0x1234567890123456789012345678901234567890",
	}
	cfg := &config.RuntimeConfig{Network: &config.NetworkConfig{Name: "harmony_testnet"}}

	t.Run("by id", func(t *testing.T) {
		repo := new(MockDeploymentRepository)
		repo.On("GetDeployment", ctx, luv.ID).Return(luv, nil)

		got, err := usecase.NewShowDeployment(&config.RuntimeConfig{}, repo, usecase.NopProgress{}).
			Run(ctx, usecase.ShowDeploymentParams{Query: luv.ID})
		require.NoError(t, err)
		assert.Equal(t, luv, got)
	})

	t.Run("by contract name on the selected network", func(t *testing.T) {
		repo := new(MockDeploymentRepository)
		repo.On("ListDeployments", ctx, models.DeploymentFilter{Network: "harmony_testnet", ContractName: "LuvNFT"}).
			Return([]*models.Deployment{luv}, nil)

		got, err := usecase.NewShowDeployment(cfg, repo, usecase.NopProgress{}).
			Run(ctx, usecase.ShowDeploymentParams{Query: "LuvNFT"})
		require.NoError(t, err)
		assert.Equal(t, luv.Address, got.Address)
	})

	t.Run("by address", func(t *testing.T) {
		repo := new(MockDeploymentRepository)
		repo.On("ListDeployments", ctx, models.DeploymentFilter{Network: "harmony_testnet"}).
			Return([]*models.Deployment{luv}, nil)
		repo.On("GetDeploymentByAddress", ctx, uint64(1666700000), luv.Address).Return(luv, nil)

		got, err := usecase.NewShowDeployment(cfg, repo, usecase.NopProgress{}).
			Run(ctx, usecase.ShowDeploymentParams{Query: luv.Address})
		require.NoError(t, err)
		assert.Equal(t, luv.ID, got.ID)
		repo.AssertExpectations(t)
	})

	t.Run("unknown name", func(t *testing.T) {
		repo := new(MockDeploymentRepository)
		repo.On("ListDeployments", ctx, mock.Anything).Return([]*models.Deployment{}, nil)

		_, err := usecase.NewShowDeployment(cfg, repo, usecase.NopProgress{}).
			Run(ctx, usecase.ShowDeploymentParams{Query: "Missing"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("name needs a network", func(t *testing.T) {
		repo := new(MockDeploymentRepository)

		_, err := usecase.NewShowDeployment(&config.RuntimeConfig{}, repo, usecase.NopProgress{}).
			Run(ctx, usecase.ShowDeploymentParams{Query: "LuvNFT"})
		assert.ErrorIs(t, err, domain.ErrConfig)
		repo.AssertNotCalled(t, "ListDeployments", mock.Anything, mock.Anything)
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := usecase.NewShowDeployment(cfg, new(MockDeploymentRepository), usecase.NopProgress{}).
			Run(ctx, usecase.ShowDeploymentParams{})
		assert.Error(t, err)
	})
}
