package progress

import (
	"context"
	"fmt"

	"github.com/trebuchet-org/treb-migrate/internal/cli/render"
	"github.com/trebuchet-org/treb-migrate/internal/domain"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

// MigrateProgress renders migration steps as they run
type MigrateProgress struct {
	renderer *render.MigrationRenderer
	spinner  *SpinnerProgressReporter
}

// NewMigrateProgress creates a progress sink that prints through renderer
func NewMigrateProgress(renderer *render.MigrationRenderer) *MigrateProgress {
	return &MigrateProgress{
		renderer: renderer,
		spinner:  NewSpinnerProgressReporter(),
	}
}

// OnProgress handles orchestrator events
func (p *MigrateProgress) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	switch event.Stage {
	case usecase.StagePlanReady:
		if result, ok := event.Metadata.(*usecase.ExecuteMigrationResult); ok {
			p.renderer.RenderPlan(result)
		}

	case usecase.StagePlanCreated:
		// the executor already rendered the plan with skipped steps

	case usecase.StageConnecting:
		p.spinner.Start(event.Message)

	case usecase.StageConnected, usecase.StageMigrationResumed:
		p.spinner.Stop()
		p.spinner.Info(event.Message)
		fmt.Fprintln(p.renderer.GetWriter())

	case usecase.StageStepStarting:
		p.spinner.Stop()
		if step, ok := event.Metadata.(*domain.Step); ok {
			p.renderer.RenderStepStart(event.Current, event.Total, step)
			if event.Spinner {
				p.spinner.Start("Waiting for confirmation...")
			}
		}

	case usecase.StageStepCompleted, usecase.StageStepFailed:
		p.spinner.Stop()
		if outcome, ok := event.Metadata.(*usecase.StepOutcome); ok {
			if outcome.Index < 0 {
				p.spinner.Error(fmt.Sprintf("❌ %v", outcome.Err))
				return
			}
			p.renderer.RenderStepResult(outcome)
		}

	case usecase.StageMigrationFinished:
		p.spinner.Stop()

	default:
		p.spinner.OnProgress(ctx, event)
	}
}

// Info forwards info messages to the spinner
func (p *MigrateProgress) Info(message string) {
	p.spinner.Info(message)
}

// Error forwards error messages to the spinner
func (p *MigrateProgress) Error(message string) {
	p.spinner.Error(message)
}

var _ usecase.ProgressSink = (*MigrateProgress)(nil)
