package interactive

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/sahilm/fuzzy"
	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

// ErrNonInteractive is returned when a prompt is needed but prompts are disabled
var ErrNonInteractive = errors.New("interactive prompt not available in non-interactive mode")

// SelectorAdapter handles interactive confirmation and selection
type SelectorAdapter struct {
	config *config.RuntimeConfig
}

// NewSelectorAdapter creates a new selector adapter
func NewSelectorAdapter(cfg *config.RuntimeConfig) *SelectorAdapter {
	return &SelectorAdapter{config: cfg}
}

// Confirm asks a yes/no question. Declining is not an error.
func (s *SelectorAdapter) Confirm(ctx context.Context, label string) (bool, error) {
	if s.config.NonInteractive {
		return false, ErrNonInteractive
	}

	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := prompt.Run()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, promptui.ErrAbort):
		return false, nil
	default:
		return false, fmt.Errorf("prompt failed: %w", err)
	}
}

// SelectMigration lets the operator pick one migration file
func (s *SelectorAdapter) SelectMigration(ctx context.Context, paths []string, label string) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("no migrations provided for selection")
	}
	if len(paths) == 1 {
		return paths[0], nil
	}
	if s.config.NonInteractive {
		return "", fmt.Errorf("%w: %d migrations found, pass one explicitly", ErrNonInteractive, len(paths))
	}

	options := s.formatMigrationOptions(paths)
	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "▸ {{ . | cyan }}",
		Inactive: "  {{ . | faint }}",
		Selected: "✓ {{ . | green }}",
		Help:     color.New(color.FgYellow).Sprint("Use arrow keys to navigate, Enter to select"),
	}

	promptSelect := promptui.Select{
		Label:             label,
		Items:             options,
		Templates:         templates,
		Size:              10,
		StartInSearchMode: true,
		Searcher:          createFuzzySearchFunc(options),
	}

	index, _, err := promptSelect.Run()
	if err != nil {
		return "", fmt.Errorf("selection cancelled: %w", err)
	}
	return paths[index], nil
}

// formatMigrationOptions shows each file relative to the migrations directory
func (s *SelectorAdapter) formatMigrationOptions(paths []string) []string {
	base := s.config.MigrationsDir()
	options := make([]string, len(paths))
	for i, path := range paths {
		name := filepath.Base(path)
		dir := filepath.Dir(path)
		if rel, err := filepath.Rel(s.config.ProjectRoot, dir); err == nil && s.config.ProjectRoot != "" {
			dir = rel
		}
		if filepath.Clean(filepath.Dir(path)) == filepath.Clean(base) {
			options[i] = color.New(color.FgWhite, color.Bold).Sprint(name)
			continue
		}
		options[i] = fmt.Sprintf("%s (%s)", color.New(color.FgWhite, color.Bold).Sprint(name), color.New(color.FgBlue).Sprint(dir))
	}
	return options
}

// createFuzzySearchFunc creates a fuzzy search function for promptui
func createFuzzySearchFunc(items []string) func(input string, index int) bool {
	return func(input string, index int) bool {
		if input == "" {
			return true
		}

		input = strings.ToLower(input)
		item := strings.ToLower(items[index])
		if strings.Contains(item, input) {
			return true
		}
		return len(fuzzy.Find(input, []string{item})) > 0
	}
}

var (
	_ usecase.Confirmer         = (*SelectorAdapter)(nil)
	_ usecase.MigrationSelector = (*SelectorAdapter)(nil)
)
