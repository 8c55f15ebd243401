package render

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/trebuchet-org/treb-migrate/internal/domain/models"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

// Color styles for table format
var (
	nsBg               = color.BgYellow
	chainBg            = color.BgCyan
	nsHeader           = color.New(nsBg, color.FgBlack)
	nsHeaderBold       = color.New(nsBg, color.FgBlack, color.Bold)
	chainHeader        = color.New(chainBg, color.FgBlack)
	chainHeaderBold    = color.New(chainBg, color.FgBlack, color.Bold)
	addressStyle       = color.New(color.FgWhite)
	timestampStyle     = color.New(color.Faint)
	migrationStyle     = color.New(color.FgCyan)
	sectionHeaderStyle = color.New(color.Bold, color.FgHiWhite)
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[mGKHF]`)

type TableData [][]string

// DeploymentsRenderer renders deployment lists as formatted tables with tree-style layout
type DeploymentsRenderer struct {
	out io.Writer
}

// NewDeploymentsRenderer creates a new deployments renderer
func NewDeploymentsRenderer(out io.Writer) *DeploymentsRenderer {
	return &DeploymentsRenderer{out: out}
}

// RenderDeploymentList renders deployments grouped by network and chain
func (r *DeploymentsRenderer) RenderDeploymentList(result *usecase.DeploymentListResult) error {
	if len(result.Deployments) == 0 {
		fmt.Fprintln(r.out, "No deployments found")
		return nil
	}

	r.displayTableFormat(result.Deployments)
	return nil
}

func (r *DeploymentsRenderer) displayTableFormat(deployments []*models.Deployment) {
	groups := make(map[string]map[uint64][]*models.Deployment)
	for _, dep := range deployments {
		if groups[dep.Network] == nil {
			groups[dep.Network] = make(map[uint64][]*models.Deployment)
		}
		groups[dep.Network][dep.ChainID] = append(groups[dep.Network][dep.ChainID], dep)
	}

	networks := make([]string, 0, len(groups))
	for network := range groups {
		networks = append(networks, network)
	}
	sort.Strings(networks)

	// Build all tables first so every section shares column widths
	var allTables []TableData
	for _, network := range networks {
		for _, deps := range groups[network] {
			singletons, libraries := splitByType(deps)
			if len(singletons) > 0 {
				allTables = append(allTables, r.buildDeploymentTable(singletons))
			}
			if len(libraries) > 0 {
				allTables = append(allTables, r.buildDeploymentTable(libraries))
			}
		}
	}
	widths := calculateTableColumnWidths(allTables)

	for _, network := range networks {
		nsLabel := fmt.Sprintf("%-12s", "network:")
		nsValue := fmt.Sprintf("%-30s", network)
		fmt.Fprintln(r.out, nsHeader.Sprintf("   ◎ %s %s", nsLabel, nsHeaderBold.Sprint(nsValue)))

		chains := groups[network]
		chainIDs := make([]uint64, 0, len(chains))
		for chainID := range chains {
			chainIDs = append(chainIDs, chainID)
		}
		sort.Slice(chainIDs, func(i, j int) bool { return chainIDs[i] < chainIDs[j] })

		for netIdx, chainID := range chainIDs {
			isLast := netIdx == len(chainIDs)-1
			treePrefix := "├─"
			continuationPrefix := "│ "
			if isLast {
				treePrefix = "└─"
				continuationPrefix = "  "
			}

			chainLabel := fmt.Sprintf("%-12s", "chain:")
			chainValue := fmt.Sprintf("%-30s", fmt.Sprintf("%d", chainID))
			fmt.Fprintf(r.out, "%s%s%s\n", treePrefix, chainHeader.Sprintf(" ⛓ %s ", chainLabel), chainHeaderBold.Sprint(chainValue))
			fmt.Fprintln(r.out, continuationPrefix)

			singletons, libraries := splitByType(chains[chainID])
			sections := 0
			for _, section := range []struct {
				title string
				deps  []*models.Deployment
			}{
				{"CONTRACTS", singletons},
				{"LIBRARIES", libraries},
			} {
				if len(section.deps) == 0 {
					continue
				}
				if sections > 0 {
					fmt.Fprintln(r.out, continuationPrefix)
				}
				fmt.Fprintf(r.out, "%s%s\n", continuationPrefix, sectionHeaderStyle.Sprint(section.title))
				fmt.Fprint(r.out, renderTableWithWidths(r.buildDeploymentTable(section.deps), widths, continuationPrefix))
				fmt.Fprintln(r.out)
				sections++
			}

			if !isLast {
				fmt.Fprintln(r.out, continuationPrefix)
			} else {
				fmt.Fprintln(r.out)
			}
		}
	}

	fmt.Fprintf(r.out, "Total deployments: %d\n", len(deployments))
}

func splitByType(deps []*models.Deployment) (singletons, libraries []*models.Deployment) {
	for _, dep := range deps {
		if dep.Type == models.LibraryDeployment {
			libraries = append(libraries, dep)
		} else {
			singletons = append(singletons, dep)
		}
	}
	return singletons, libraries
}

// buildDeploymentTable creates a TableData for a list of deployments
func (r *DeploymentsRenderer) buildDeploymentTable(deployments []*models.Deployment) TableData {
	sorted := append([]*models.Deployment(nil), deployments...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ContractName == sorted[j].ContractName {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ContractName < sorted[j].ContractName
	})

	tableData := make(TableData, 0, len(sorted))
	for _, dep := range sorted {
		tableData = append(tableData, []string{
			r.getColoredDisplayName(dep),
			addressStyle.Sprint(dep.Address),
			migrationStyle.Sprintf("%s#%d", dep.Migration, dep.StepIndex),
			timestampStyle.Sprint(dep.CreatedAt.Format("2006-01-02 15:04:05")),
		})
		if len(dep.Libraries) > 0 {
			names := make([]string, 0, len(dep.Libraries))
			for name := range dep.Libraries {
				names = append(names, name)
			}
			sort.Strings(names)
			tableData = append(tableData, []string{
				timestampStyle.Sprintf("└─ links %s", strings.Join(names, ", ")),
				"", "", "",
			})
		}
	}
	return tableData
}

func (r *DeploymentsRenderer) getColoredDisplayName(dep *models.Deployment) string {
	if dep.Type == models.LibraryDeployment {
		return color.New(color.FgBlue, color.Bold).Sprint(dep.ContractName)
	}
	return color.New(color.FgGreen, color.Bold).Sprint(dep.ContractName)
}

// renderTableWithWidths renders a table with specific column widths
func renderTableWithWidths(tableData TableData, columnWidths []int, continuationPrefix string) string {
	if len(tableData) == 0 {
		return ""
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateRows = false
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateHeader = false
	t.Style().Options.SeparateColumns = false
	t.Style().Box = table.BoxStyle{
		PaddingRight: "   ",
	}

	colConfigs := make([]table.ColumnConfig, len(columnWidths))
	for i, width := range columnWidths {
		if i == 0 {
			width += 2 + len([]rune(continuationPrefix))
		}
		colConfigs[i] = table.ColumnConfig{
			Number:   i + 1,
			Align:    text.AlignLeft,
			WidthMin: width,
			WidthMax: width,
		}
	}
	t.SetColumnConfigs(colConfigs)

	for _, row := range tableData {
		tableRow := make(table.Row, len(row))
		for i, cell := range row {
			if i == 0 {
				tableRow[i] = continuationPrefix + cell
			} else {
				tableRow[i] = cell
			}
		}
		t.AppendRow(tableRow)
	}

	return t.Render()
}

func stripAnsiCodes(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// calculateTableColumnWidths calculates column widths for multiple tables
func calculateTableColumnWidths(tables []TableData) []int {
	maxCols := 0
	for _, t := range tables {
		for _, row := range t {
			if len(row) > maxCols {
				maxCols = len(row)
			}
		}
	}

	widths := make([]int, maxCols)
	for _, t := range tables {
		for _, row := range t {
			for colIdx, cell := range row {
				if w := len([]rune(stripAnsiCodes(cell))); w > widths[colIdx] {
					widths[colIdx] = w
				}
			}
		}
	}
	return widths
}
