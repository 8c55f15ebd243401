package contracts

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-migrate/internal/domain"
	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
	"github.com/trebuchet-org/treb-migrate/internal/domain/models"
)

const truffleLuvNFT = `{
  "contractName": "LuvNFT",
  "abi": [{"type":"constructor","inputs":[]}],
  "metadata": "{\"compiler\":{\"version\":\"0.7.6+commit.7338295f\"},\"settings\":{\"compilationTarget\":{\"project:/contracts/LuvNFT.sol\":\"LuvNFT\"}}}",
  "bytecode": "0x6080__IterableMapping_______________________6000",
  "deployedBytecode": "0x6080"
}`

const foundryMapping = `{
  "abi": [],
  "bytecode": {"object": "0x6080", "linkReferences": {}},
  "deployedBytecode": {"object": "0x6080"},
  "metadata": {"compiler": {"version": "0.7.6"}, "settings": {"compilationTarget": {"src/IterableMapping.sol": "IterableMapping"}}}
}`

func newTestRepository(t *testing.T) (*Repository, string) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.RuntimeConfig{
		ProjectRoot: root,
		Project:     &config.ProjectConfig{Artifacts: "build/contracts"},
	}
	return NewRepository(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))), cfg.ArtifactsDir()
}

func writeArtifact(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestRepository_GetContract(t *testing.T) {
	ctx := context.Background()

	t.Run("reads truffle and foundry layouts", func(t *testing.T) {
		repo, dir := newTestRepository(t)
		writeArtifact(t, dir, "LuvNFT.json", truffleLuvNFT)
		writeArtifact(t, dir, "IterableMapping.sol/IterableMapping.json", foundryMapping)
		writeArtifact(t, dir, "build-info/abc.json", `{"id":"abc"}`)

		luv, err := repo.GetContract(ctx, "LuvNFT")
		require.NoError(t, err)
		assert.Equal(t, "project:/contracts/LuvNFT.sol", luv.SourcePath)
		assert.Equal(t, "LuvNFT.json", luv.ArtifactPath)
		assert.Equal(t, "0.7.6+commit.7338295f", luv.Artifact.CompilerVersion())

		lib, err := repo.GetContract(ctx, "IterableMapping")
		require.NoError(t, err)
		assert.Equal(t, "src/IterableMapping.sol", lib.SourcePath)
		assert.Equal(t, "6080", lib.Artifact.Bytecode.Hex())

		byPath, err := repo.GetContract(ctx, "src/IterableMapping.sol:IterableMapping")
		require.NoError(t, err)
		assert.Same(t, lib, byPath)

		all, err := repo.ListContracts(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "IterableMapping", all[0].Name)
		assert.Equal(t, "LuvNFT", all[1].Name)
	})

	t.Run("unknown contract", func(t *testing.T) {
		repo, dir := newTestRepository(t)
		writeArtifact(t, dir, "LuvNFT.json", truffleLuvNFT)

		_, err := repo.GetContract(ctx, "NFTDescriptor")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrContractNotFound)
	})

	t.Run("ambiguous name lists candidates", func(t *testing.T) {
		repo, dir := newTestRepository(t)
		writeArtifact(t, dir, "a/Lib.sol/Lib.json", `{"abi":[],"bytecode":"0x01","sourceName":"a/Lib.sol"}`)
		writeArtifact(t, dir, "b/Lib.sol/Lib.json", `{"abi":[],"bytecode":"0x02","sourceName":"b/Lib.sol"}`)

		_, err := repo.GetContract(ctx, "Lib")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "a/Lib.sol:Lib, b/Lib.sol:Lib")

		c, err := repo.GetContract(ctx, "b/Lib.sol:Lib")
		require.NoError(t, err)
		assert.Equal(t, "02", c.Artifact.Bytecode.Hex())
	})

	t.Run("missing artifacts directory", func(t *testing.T) {
		repo, _ := newTestRepository(t)

		_, err := repo.GetContract(ctx, "LuvNFT")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "run compile first")
	})
}

func TestRepository_WriteContract(t *testing.T) {
	ctx := context.Background()
	repo, dir := newTestRepository(t)
	writeArtifact(t, dir, "Old.json", `{"contractName":"Old","abi":[],"bytecode":"0x00"}`)

	// Index before writing so the write has to invalidate it
	_, err := repo.GetContract(ctx, "Old")
	require.NoError(t, err)

	contract := &models.Contract{
		Name:       "NFTDescriptor",
		SourcePath: "contracts/NFTDescriptor.sol",
		Artifact: &models.Artifact{
			ABI:              json.RawMessage(`[{"type":"function","name":"tokenURI","inputs":[],"outputs":[]}]`),
			Bytecode:         models.BytecodeObject{Object: "6080"},
			DeployedBytecode: models.BytecodeObject{Object: "0x60"},
			Metadata:         json.RawMessage(`{"compiler":{"version":"0.7.6+commit.7338295f"}}`),
		},
	}

	path, err := repo.WriteContract(ctx, contract)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "NFTDescriptor.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, "0x6080", onDisk["bytecode"])
	assert.Equal(t, "0x60", onDisk["deployedBytecode"])
	assert.Equal(t, map[string]any{"name": "solc", "version": "0.7.6+commit.7338295f"}, onDisk["compiler"])

	read, err := repo.GetContract(ctx, "NFTDescriptor")
	require.NoError(t, err)
	assert.Equal(t, "contracts/NFTDescriptor.sol", read.SourcePath)
	assert.Equal(t, "6080", read.Artifact.Bytecode.Hex())
}
