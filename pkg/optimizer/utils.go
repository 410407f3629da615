package optimizer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/raykavin/calibrator/pkg/core"
)

var metricColumns = []string{
	"total_trades", "win_rate", "profit_factor", "total_return",
	"avg_trade_return", "max_drawdown", "avg_duration",
}

// SaveResultsToCSV saves ranked candidates to a CSV file
func SaveResultsToCSV(candidates []core.CandidateConfig, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return WriteResultsCSV(file, candidates)
}

// WriteResultsCSV writes one row per candidate, in the given order
func WriteResultsCSV(w io.Writer, candidates []core.CandidateConfig) error {
	writer := csv.NewWriter(w)

	header := append([]string{"rank", "score"}, core.ParameterNames...)
	header = append(header, metricColumns...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, candidate := range candidates {
		row := []string{strconv.Itoa(i + 1), formatFloat(candidate.Score)}

		params := candidate.Parameters.Map()
		for _, name := range core.ParameterNames {
			row = append(row, formatFloat(params[name]))
		}

		flat := candidate.Metrics.Flatten()
		for _, name := range metricColumns {
			row = append(row, formatFloat(flat[name]))
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// PrintResults renders the top candidates of an iteration as a table
func PrintResults(w io.Writer, report IterationReport, topN int) {
	fmt.Fprintf(w, "\nIteration %d: %s\n", report.Number, report.Description)
	fmt.Fprintf(w, "Targets: win rate >= %.0f%%, profit factor >= %.2f, trades >= %d, return >= %.0f%%\n",
		report.Targets.MinWinRate, report.Targets.MinProfitFactor, report.Targets.MinTrades, report.Targets.MinReturn)

	for _, param := range report.Grid {
		values := make([]string, 0, len(param.Values))
		for _, v := range param.Values {
			values = append(values, strconv.FormatFloat(v, 'f', -1, 64))
		}
		fmt.Fprintf(w, "  %s: [%s]\n", param.Name, strings.Join(values, ", "))
	}

	if report.Qualified == 0 {
		fmt.Fprintf(w, "No configuration met the targets (%d tested)\n", report.Tested)
		return
	}

	top := report.Top
	if topN > 0 && topN < len(top) {
		top = top[:topN]
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Score", "Win %", "PF", "Return %", "Trades", "DD %", "Parameters"})
	table.SetAutoWrapText(false)
	for i, candidate := range top {
		m := candidate.Metrics
		table.Append([]string{
			strconv.Itoa(i + 1),
			fmt.Sprintf("%.1f", candidate.Score),
			fmt.Sprintf("%.1f", m.WinRate),
			fmt.Sprintf("%.2f", m.ProfitFactor),
			fmt.Sprintf("%.1f", m.TotalReturn),
			strconv.Itoa(m.TotalTrades),
			fmt.Sprintf("%.1f", m.MaxDrawdown),
			candidate.Parameters.String(),
		})
	}
	table.SetFooter([]string{"", "", "", "", "", "", "Qualified", fmt.Sprintf("%d/%d", report.Qualified, report.Tested)})
	table.Render()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
