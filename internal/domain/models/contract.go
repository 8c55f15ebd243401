package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Contract represents a compiled contract discovered in the artifacts directory
type Contract struct {
	Name         string    `json:"name"`
	SourcePath   string    `json:"sourcePath,omitempty"`
	ArtifactPath string    `json:"artifactPath,omitempty"`
	Artifact     *Artifact `json:"artifact,omitempty"`
}

// FullyQualifiedName returns "<source>:<name>" when the source is known
func (c *Contract) FullyQualifiedName() string {
	if c.SourcePath == "" {
		return c.Name
	}
	return c.SourcePath + ":" + c.Name
}

// LinkReference is a byte range inside bytecode reserved for a library address
type LinkReference struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// BytecodeObject holds creation or runtime bytecode. Truffle artifacts store
// it as a bare hex string, Foundry artifacts as {"object": ..., "linkReferences": ...}.
type BytecodeObject struct {
	Object         string                                `json:"object"`
	SourceMap      string                                `json:"sourceMap,omitempty"`
	LinkReferences map[string]map[string][]LinkReference `json:"linkReferences,omitempty"`
}

// UnmarshalJSON accepts both the string and the object form
func (b *BytecodeObject) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &b.Object)
	}

	type bytecodeAlias BytecodeObject
	var alias bytecodeAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return fmt.Errorf("failed to decode bytecode object: %w", err)
	}
	*b = BytecodeObject(alias)
	return nil
}

// Hex returns the bytecode without 0x prefix
func (b *BytecodeObject) Hex() string {
	return strings.TrimPrefix(strings.TrimPrefix(b.Object, "0x"), "0X")
}

// IsEmpty reports whether there is no code (interfaces and abstract contracts)
func (b *BytecodeObject) IsEmpty() bool {
	return b.Hex() == ""
}

// Artifact represents a compilation artifact in either Truffle or Foundry layout
type Artifact struct {
	ContractName     string          `json:"contractName,omitempty"`
	SourceName       string          `json:"sourceName,omitempty"`
	SourcePath       string          `json:"sourcePath,omitempty"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         BytecodeObject  `json:"bytecode"`
	DeployedBytecode BytecodeObject  `json:"deployedBytecode"`
	// Truffle stores metadata as an encoded string, Foundry as an object
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// MaxContractSize is the EIP-170 limit on deployed code, in bytes
const MaxContractSize = 24576

// DeployedSize returns the length of the runtime code in bytes. Unlinked
// placeholders count at the width of the address they stand for.
func (a *Artifact) DeployedSize() int {
	return len(a.DeployedBytecode.Hex()) / 2
}

// Oversized reports whether the runtime code exceeds MaxContractSize
func (a *Artifact) Oversized() bool {
	return a.DeployedSize() > MaxContractSize
}

// artifactMetadata is the part of solc metadata the tool reads
type artifactMetadata struct {
	Compiler struct {
		Version string `json:"version"`
	} `json:"compiler"`
	Settings struct {
		CompilationTarget map[string]string `json:"compilationTarget"`
	} `json:"settings"`
}

func (a *Artifact) metadata() *artifactMetadata {
	raw := bytes.TrimSpace(a.Metadata)
	if len(raw) == 0 {
		return nil
	}
	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil
		}
		raw = []byte(encoded)
	}
	var md artifactMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil
	}
	return &md
}

// Source returns the source path the contract was compiled from, if known
func (a *Artifact) Source() string {
	if a.SourceName != "" {
		return a.SourceName
	}
	if md := a.metadata(); md != nil {
		for path := range md.Settings.CompilationTarget {
			return path
		}
	}
	return a.SourcePath
}

// CompilerVersion returns the solc version recorded in the metadata
func (a *Artifact) CompilerVersion() string {
	if md := a.metadata(); md != nil {
		return md.Compiler.Version
	}
	return ""
}
