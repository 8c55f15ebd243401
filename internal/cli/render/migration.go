package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/trebuchet-org/treb-migrate/internal/domain"
	"github.com/trebuchet-org/treb-migrate/internal/domain/models"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	deployStyle  = color.New(color.FgGreen, color.Bold)
	linkStyle    = color.New(color.FgBlue, color.Bold)
	callStyle    = color.New(color.FgMagenta, color.Bold)
	skippedStyle = color.New(color.Faint)
	labelStyle   = color.New(color.FgHiBlack)
	titleCaser   = cases.Title(language.English)
)

// MigrationRenderer renders migration plans, step progress and results
type MigrationRenderer struct {
	out io.Writer
}

// NewMigrationRenderer creates a new migration renderer
func NewMigrationRenderer(out io.Writer) *MigrationRenderer {
	return &MigrationRenderer{out: out}
}

// GetWriter returns the io.Writer used by this renderer
func (r *MigrationRenderer) GetWriter() io.Writer {
	return r.out
}

// RenderPlan lists every step of the migration, marking those a previous
// run completed
func (r *MigrationRenderer) RenderPlan(result *usecase.ExecuteMigrationResult) {
	fmt.Fprintf(r.out, "\n🚚 Migration %s", color.New(color.FgCyan, color.Bold).Sprint(result.Migration.Name))
	if result.Migration.Source != "" {
		labelStyle.Fprintf(r.out, " (%s)", result.Migration.Source)
	}
	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "🌐 Network %s", color.New(color.FgYellow).Sprint(result.Network.Name))
	if result.Network.NetworkID != 0 {
		labelStyle.Fprintf(r.out, " (chain %d)", result.Network.NetworkID)
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out)

	color.New(color.Bold).Fprintln(r.out, "📋 Execution Plan:")
	fmt.Fprintln(r.out, strings.Repeat("─", 50))
	for _, planned := range result.Plan {
		line := fmt.Sprintf("%2d. %s", planned.Index, r.describeStep(planned.Step))
		if planned.Size > 0 {
			line += "  " + FormatSize(planned.Size)
		}
		if planned.Skipped {
			fmt.Fprintln(r.out, skippedStyle.Sprint(stripAnsiCodes(line)+"  (done)"))
			continue
		}
		fmt.Fprintln(r.out, line)
	}
	fmt.Fprintln(r.out)

	for _, planned := range result.Plan {
		if planned.Oversized() && !planned.Skipped {
			fmt.Fprintln(r.out, FormatWarning(fmt.Sprintf("%s is %d bytes, above the %d byte limit, and will fail to deploy on most chains",
				planned.Step.Contract, planned.Size, models.MaxContractSize)))
		}
	}
}

// RenderStepStart prints the header of a step about to run
func (r *MigrationRenderer) RenderStepStart(current, total int, step *domain.Step) {
	fmt.Fprintf(r.out, "[%d/%d] %s\n", current, total, r.describeStep(step))
}

// RenderStepResult prints the outcome of one step
func (r *MigrationRenderer) RenderStepResult(outcome *usecase.StepOutcome) {
	if outcome.Err != nil {
		color.New(color.FgRed).Fprintf(r.out, "  ❌ %s\n", outcome.Err.Kind)
		fmt.Fprintf(r.out, "     %v\n", outcome.Err.Err)
		if outcome.Err.HasTx() {
			fmt.Fprintf(r.out, "     %s %s\n", labelStyle.Sprint("tx:"), outcome.Err.TxHash.Hex())
		}
		return
	}

	switch outcome.Step.Kind {
	case domain.StepDeploy:
		d := outcome.Deployed
		color.New(color.FgGreen).Fprintf(r.out, "  ✓ %s at %s\n", d.ID, d.Address.Hex())
		fmt.Fprintf(r.out, "     %s %s  %s %d  %s %d\n",
			labelStyle.Sprint("tx:"), d.TxHash.Hex(),
			labelStyle.Sprint("block:"), d.BlockNumber,
			labelStyle.Sprint("gas:"), d.GasUsed)
	case domain.StepLink:
		color.New(color.FgGreen).Fprintf(r.out, "  ✓ linked %s into %s (%d placeholder(s))\n",
			outcome.Step.Library, outcome.Step.Contract, outcome.Linked)
	case domain.StepCall:
		color.New(color.FgGreen).Fprintf(r.out, "  ✓ %s.%s\n", outcome.Step.Contract, outcome.Step.Method)
		if outcome.Receipt != nil {
			fmt.Fprintf(r.out, "     %s %s  %s %d  %s %d\n",
				labelStyle.Sprint("tx:"), outcome.Receipt.TxHash.Hex(),
				labelStyle.Sprint("block:"), outcome.Receipt.BlockNumber,
				labelStyle.Sprint("gas:"), outcome.Receipt.GasUsed)
		}
	}
}

// RenderResult prints the final summary with the contract address table
func (r *MigrationRenderer) RenderResult(result *usecase.ExecuteMigrationResult) {
	switch {
	case result.Cancelled:
		color.New(color.FgYellow).Fprintln(r.out, "Migration cancelled, nothing was broadcast")
		return
	case result.DryRun:
		fmt.Fprintln(r.out, FormatSuccess("Dry run, nothing was broadcast"))
		return
	case result.Run == nil:
		return
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, strings.Repeat("═", 70))
	run := result.Run
	if run.Success() {
		color.New(color.FgGreen, color.Bold).Fprintf(r.out, "🎉 Migration %s completed on %s\n", result.Migration.Name, run.Network)
	} else {
		color.New(color.FgRed, color.Bold).Fprintf(r.out, "❌ Migration %s failed on %s\n", result.Migration.Name, run.Network)
	}

	if len(run.Deployed) > 0 {
		fmt.Fprintln(r.out)
		fmt.Fprint(r.out, r.addressTable(run))
		fmt.Fprintln(r.out)
	}

	if run.Failed != nil {
		fmt.Fprintln(r.out)
		fmt.Fprintf(r.out, "📊 Failed at step %d", run.Failed.Index)
		if run.Failed.Step != nil {
			fmt.Fprintf(r.out, " (%s)", run.Failed.Step)
		}
		fmt.Fprintln(r.out)
		if run.Failed.HasTx() {
			fmt.Fprintf(r.out, "   A transaction was submitted: %s\n", run.Failed.TxHash.Hex())
		}
		if run.Failed.Kind != domain.ConnectionError {
			fmt.Fprintln(r.out, "   Run again with --resume to continue from the failed step")
		}
	}
}

func (r *MigrationRenderer) addressTable(run *usecase.MigrationResult) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateColumns = false
	t.AppendHeader(table.Row{"CONTRACT", "ADDRESS", "TX", "BLOCK"})
	for _, id := range run.Order {
		d := run.Deployed[id]
		t.AppendRow(table.Row{
			deployStyle.Sprint(d.ID),
			d.Address.Hex(),
			shortHash(d.TxHash),
			d.BlockNumber,
		})
	}
	return t.Render()
}

func (r *MigrationRenderer) describeStep(step *domain.Step) string {
	kind := titleCaser.String(string(step.Kind))
	switch step.Kind {
	case domain.StepDeploy:
		s := deployStyle.Sprint(kind) + " " + step.Contract
		if len(step.Args) > 0 {
			s += labelStyle.Sprintf("(%s)", formatArgs(step.Args))
		}
		return s + gasSuffix(step)
	case domain.StepLink:
		return linkStyle.Sprint(kind) + " " + step.Library + " → " + step.Contract
	case domain.StepCall:
		return callStyle.Sprint(kind) + fmt.Sprintf(" %s.%s", step.Contract, step.Method) +
			labelStyle.Sprintf("(%s)", formatArgs(step.Args)) + gasSuffix(step)
	default:
		return step.String()
	}
}

// RenderJSON writes the result as indented JSON
func (r *MigrationRenderer) RenderJSON(result *usecase.ExecuteMigrationResult, runErr error) error {
	out := migrationJSON{
		Migration: result.Migration.Name,
		Network:   result.Network.Name,
		DryRun:    result.DryRun,
		Resumed:   result.Resumed,
		Cancelled: result.Cancelled,
		Plan:      result.Plan,
	}
	if run := result.Run; run != nil {
		out.ChainID = run.ChainID
		out.Deployed = make(map[string]common.Address, len(run.Deployed))
		for id, d := range run.Deployed {
			out.Deployed[id] = d.Address
		}
		if run.Failed != nil {
			out.Error = &stepErrorJSON{
				Kind:     string(run.Failed.Kind),
				Index:    run.Failed.Index,
				Contract: run.Failed.Contract,
				Message:  fmt.Sprint(run.Failed.Err),
			}
			if run.Failed.HasTx() {
				out.Error.TxHash = run.Failed.TxHash.Hex()
			}
		}
	}
	if out.Error == nil && runErr != nil {
		out.Error = &stepErrorJSON{Kind: string(domain.ConfigError), Index: -1, Message: runErr.Error()}
		var problems domain.ValidationErrors
		if errors.As(runErr, &problems) {
			if first := problems.First(); first != nil {
				out.Error.Kind = string(first.Kind)
				out.Error.Index = first.Index
				out.Error.Contract = first.Contract
			}
		}
	}

	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

type migrationJSON struct {
	Migration string                    `json:"migration"`
	Network   string                    `json:"network"`
	ChainID   uint64                    `json:"chainId,omitempty"`
	DryRun    bool                      `json:"dryRun"`
	Resumed   bool                      `json:"resumed"`
	Cancelled bool                      `json:"cancelled"`
	Plan      []usecase.PlannedStep     `json:"plan"`
	Deployed  map[string]common.Address `json:"deployed,omitempty"`
	Error     *stepErrorJSON            `json:"error,omitempty"`
}

type stepErrorJSON struct {
	Kind     string `json:"kind"`
	Index    int    `json:"index"`
	Contract string `json:"contract,omitempty"`
	TxHash   string `json:"txHash,omitempty"`
	Message  string `json:"message"`
}

func formatArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case string:
			if len(v) > 24 {
				v = v[:21] + "..."
			}
			parts[i] = fmt.Sprintf("%q", v)
		case []any:
			parts[i] = "[" + formatArgs(v) + "]"
		case map[string]any:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fields := make([]string, len(keys))
			for j, k := range keys {
				fields[j] = k + ": " + formatArgs([]any{v[k]})
			}
			parts[i] = "{" + strings.Join(fields, ", ") + "}"
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(parts, ", ")
}

func gasSuffix(step *domain.Step) string {
	var extra []string
	if step.Gas > 0 {
		extra = append(extra, fmt.Sprintf("gas %d", step.Gas))
	}
	if step.Value != nil && step.Value.Sign() > 0 {
		extra = append(extra, "value "+formatWei(step.Value))
	}
	if len(extra) == 0 {
		return ""
	}
	return labelStyle.Sprintf(" [%s]", strings.Join(extra, ", "))
}

func formatWei(v *big.Int) string {
	ether := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	if new(big.Int).Mod(v, ether).Sign() == 0 {
		return new(big.Int).Div(v, ether).String() + " ether"
	}
	return v.String() + " wei"
}

func shortHash(h common.Hash) string {
	s := h.Hex()
	return s[:10] + "…" + s[len(s)-4:]
}
