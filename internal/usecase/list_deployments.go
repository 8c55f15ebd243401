package usecase

import (
	"context"
	"sort"

	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
	"github.com/trebuchet-org/treb-migrate/internal/domain/models"
)

// AllNetworks lists deployments regardless of the selected network
const AllNetworks = "*"

// ListDeploymentsParams contains parameters for listing deployments
type ListDeploymentsParams struct {
	// Network defaults to the --network flag; empty with no flag lists every network
	Network      string
	ContractName string
	Type         models.DeploymentType
}

// DeploymentListResult contains the result of listing deployments
type DeploymentListResult struct {
	Deployments []*models.Deployment
	Summary     DeploymentSummary
}

// DeploymentSummary provides summary statistics
type DeploymentSummary struct {
	Total     int
	ByNetwork map[string]int
	ByType    map[models.DeploymentType]int
}

// ListDeployments is the use case for listing deployments
type ListDeployments struct {
	config *config.RuntimeConfig
	repo   DeploymentRepository
	sink   ProgressSink
}

// NewListDeployments creates a new ListDeployments use case
func NewListDeployments(cfg *config.RuntimeConfig, repo DeploymentRepository, sink ProgressSink) *ListDeployments {
	return &ListDeployments{
		config: cfg,
		repo:   repo,
		sink:   sink,
	}
}

// Run executes the list deployments use case
func (uc *ListDeployments) Run(ctx context.Context, params ListDeploymentsParams) (*DeploymentListResult, error) {
	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "loading",
		Message: "Loading deployments from registry",
		Spinner: true,
	})

	filter := models.DeploymentFilter{
		Network:      params.Network,
		ContractName: params.ContractName,
		Type:         params.Type,
	}
	switch {
	case filter.Network == AllNetworks:
		filter.Network = ""
	case filter.Network == "" && uc.config.Network != nil:
		filter.Network = uc.config.Network.Name
	}

	deployments, err := uc.repo.ListDeployments(ctx, filter)
	if err != nil {
		return nil, err
	}

	sortDeployments(deployments)
	summary := calculateSummary(deployments)

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "complete",
		Current: len(deployments),
		Total:   len(deployments),
		Message: "Deployments loaded",
	})

	return &DeploymentListResult{
		Deployments: deployments,
		Summary:     summary,
	}, nil
}

// sortDeployments sorts deployments by network, chain, then deployment order
func sortDeployments(deployments []*models.Deployment) {
	sort.Slice(deployments, func(i, j int) bool {
		if deployments[i].Network != deployments[j].Network {
			return deployments[i].Network < deployments[j].Network
		}
		if deployments[i].ChainID != deployments[j].ChainID {
			return deployments[i].ChainID < deployments[j].ChainID
		}
		if deployments[i].BlockNumber != deployments[j].BlockNumber {
			return deployments[i].BlockNumber < deployments[j].BlockNumber
		}
		return deployments[i].ContractName < deployments[j].ContractName
	})
}

// calculateSummary calculates summary statistics for deployments
func calculateSummary(deployments []*models.Deployment) DeploymentSummary {
	summary := DeploymentSummary{
		Total:     len(deployments),
		ByNetwork: make(map[string]int),
		ByType:    make(map[models.DeploymentType]int),
	}

	for _, dep := range deployments {
		summary.ByNetwork[dep.Network]++
		summary.ByType[dep.Type]++
	}

	return summary
}
