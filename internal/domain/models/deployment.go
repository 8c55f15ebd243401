package models

import (
	"fmt"
	"time"
)

// DeploymentType represents the type of deployment
type DeploymentType string

const (
	SingletonDeployment DeploymentType = "SINGLETON"
	LibraryDeployment   DeploymentType = "LIBRARY"
)

// Deployment represents a contract deployment record in the registry
type Deployment struct {
	// Core identification
	ID           string         `json:"id"` // e.g., "harmony_testnet/1666700000/LuvNFT"
	Network      string         `json:"network"`
	ChainID      uint64         `json:"chainId"`
	ContractName string         `json:"contractName"`
	Address      string         `json:"address"`
	Type         DeploymentType `json:"type"`

	// Transaction information
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
	Deployer    string `json:"deployer"`

	// Libraries linked into the bytecode before deployment, name -> address
	Libraries map[string]string `json:"libraries,omitempty"`

	// Migration that produced the deployment
	Migration string `json:"migration"`
	RunID     string `json:"runId,omitempty"`
	StepIndex int    `json:"stepIndex"`

	// Artifact information
	ArtifactPath    string `json:"artifactPath,omitempty"`
	CompilerVersion string `json:"compilerVersion,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// DeploymentID returns the registry key for a contract on a network
func DeploymentID(network string, chainID uint64, contract string) string {
	return fmt.Sprintf("%s/%d/%s", network, chainID, contract)
}

// DeploymentFilter defines filtering options for deployments
type DeploymentFilter struct {
	Network      string
	ChainID      uint64
	ContractName string
	Type         DeploymentType
}

// Matches reports whether the deployment passes the filter
func (f DeploymentFilter) Matches(d *Deployment) bool {
	if f.Network != "" && d.Network != f.Network {
		return false
	}
	if f.ChainID != 0 && d.ChainID != f.ChainID {
		return false
	}
	if f.ContractName != "" && d.ContractName != f.ContractName {
		return false
	}
	if f.Type != "" && d.Type != f.Type {
		return false
	}
	return true
}
