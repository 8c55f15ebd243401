package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
	"github.com/trebuchet-org/treb-migrate/internal/domain/models"
)

// CompileContracts builds contract sources into artifacts
type CompileContracts struct {
	config   *config.RuntimeConfig
	compiler Compiler
	writer   ArtifactWriter
	progress ProgressSink
	log      *slog.Logger
}

// NewCompileContracts creates a new compile use case
func NewCompileContracts(
	cfg *config.RuntimeConfig,
	compiler Compiler,
	writer ArtifactWriter,
	progress ProgressSink,
	log *slog.Logger,
) *CompileContracts {
	return &CompileContracts{
		config:   cfg,
		compiler: compiler,
		writer:   writer,
		progress: progress,
		log:      log.With("component", "CompileContracts"),
	}
}

// CompiledArtifact is one artifact written by a compile run
type CompiledArtifact struct {
	Name string
	Path string
	Size int // deployed bytecode size in bytes
}

// CompileResult contains the result of a compile run
type CompileResult struct {
	CompilerVersion string
	Artifacts       []CompiledArtifact
}

// Run compiles every source in the contracts directory
func (uc *CompileContracts) Run(ctx context.Context) (*CompileResult, error) {
	uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:   "compiling",
		Message: fmt.Sprintf("Compiling %s", uc.config.SourcesDir()),
		Spinner: true,
	})

	version, err := uc.compiler.Version(ctx)
	if err != nil {
		return nil, err
	}

	contracts, err := uc.compiler.Compile(ctx, uc.config.SourcesDir(), uc.config.Project.Compiler)
	if err != nil {
		return nil, err
	}

	result := &CompileResult{CompilerVersion: version}
	for _, contract := range contracts {
		path, err := uc.writer.WriteContract(ctx, contract)
		if err != nil {
			return nil, fmt.Errorf("failed to write artifact for %s: %w", contract.Name, err)
		}
		uc.log.Debug("wrote artifact", "contract", contract.Name, "path", path)
		compiled := CompiledArtifact{Name: contract.Name, Path: path}
		if contract.Artifact != nil {
			compiled.Size = contract.Artifact.DeployedSize()
			if contract.Artifact.Oversized() {
				uc.log.Warn("contract exceeds the deployable size limit", "contract", contract.Name, "size", compiled.Size, "limit", models.MaxContractSize)
			}
		}
		result.Artifacts = append(result.Artifacts, compiled)
	}
	sort.Slice(result.Artifacts, func(i, j int) bool {
		return result.Artifacts[i].Name < result.Artifacts[j].Name
	})

	uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:   "complete",
		Current: len(result.Artifacts),
		Total:   len(result.Artifacts),
		Message: "Compilation finished",
	})
	return result, nil
}
