package render

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/trebuchet-org/treb-migrate/internal/domain/models"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

// CompileRenderer renders compile results
type CompileRenderer struct {
	out  io.Writer
	root string
}

// NewCompileRenderer creates a renderer that prints paths relative to root
func NewCompileRenderer(out io.Writer, root string) *CompileRenderer {
	return &CompileRenderer{out: out, root: root}
}

// RenderCompileResult lists the written artifacts
func (r *CompileRenderer) RenderCompileResult(result *usecase.CompileResult) error {
	fmt.Fprintf(r.out, "🔨 Compiled with solc %s\n\n", color.New(color.FgCyan).Sprint(result.CompilerVersion))
	oversized := 0
	for _, a := range result.Artifacts {
		path := a.Path
		if rel, err := filepath.Rel(r.root, a.Path); err == nil {
			path = rel
		}
		fmt.Fprintf(r.out, "  %s %s  %s\n", deployStyle.Sprint(a.Name), labelStyle.Sprint(path), FormatSize(a.Size))
		if a.Size > models.MaxContractSize {
			oversized++
		}
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("%d artifact(s) written", len(result.Artifacts))))
	if oversized > 0 {
		fmt.Fprintln(r.out, FormatWarning(fmt.Sprintf("%d contract(s) exceed the %d byte deployable size limit", oversized, models.MaxContractSize)))
	}
	return nil
}
