package calibrator

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/raykavin/calibrator/pkg/core"
	"github.com/raykavin/calibrator/pkg/metric"
	"github.com/raykavin/calibrator/pkg/optimizer"
)

// Calendar span covered by the default periods, used for projections
const (
	calibratedMonths = 9
	calibratedDays   = 270

	bootstrapSamples    = 10000
	bootstrapConfidence = 0.95
	histogramBins       = 15
)

// Rating is the qualitative grade of a calibrated configuration
type Rating string

const (
	RatingExcellent    Rating = "EXCELLENT"
	RatingGood         Rating = "GOOD"
	RatingAcceptable   Rating = "ACCEPTABLE"
	RatingInsufficient Rating = "INSUFFICIENT"
)

// Rate grades metrics by win rate and profit factor
func Rate(m core.Metrics) Rating {
	switch {
	case m.WinRate >= 55 && m.ProfitFactor >= 2.0:
		return RatingExcellent
	case m.WinRate >= 50 && m.ProfitFactor >= 1.5:
		return RatingGood
	case m.WinRate >= 45 && m.ProfitFactor >= 1.2:
		return RatingAcceptable
	default:
		return RatingInsufficient
	}
}

// Recommendation is the follow-up suggested for a rating
func (r Rating) Recommendation() string {
	switch r {
	case RatingExcellent:
		return "highly reliable, ready for paper trading"
	case RatingGood:
		return "reliable, recommended for paper trading"
	case RatingAcceptable:
		return "functional, paper trade under close monitoring"
	default:
		return "needs further optimization"
	}
}

// Projection extrapolates the calibrated return linearly
type Projection struct {
	MonthlyReturn  float64
	AnnualReturn   float64
	TradesPerMonth float64
}

func Project(m core.Metrics) Projection {
	return Projection{
		MonthlyReturn:  m.TotalReturn / calibratedMonths,
		AnnualReturn:   m.TotalReturn * 365 / calibratedDays,
		TradesPerMonth: float64(m.TotalTrades) / calibratedMonths,
	}
}

// Summary writes the final report of a calibration run
func Summary(w io.Writer, outcome *optimizer.Outcome) {
	fmt.Fprintln(w, "------ CALIBRATION -------")
	writePeriods(w, outcome.Periods)
	writeIterations(w, outcome)

	if outcome.Best == nil {
		fmt.Fprintln(w, "No optimal configuration found")
		fmt.Fprintln(w, "Recommendations:")
		fmt.Fprintln(w, "  - widen the parameter ranges")
		fmt.Fprintln(w, "  - lower the iteration targets")
		fmt.Fprintln(w, "  - review the signal scoring")
		return
	}

	best := outcome.Best
	fmt.Fprintf(w, "Optimal configuration found (score %.2f)\n\n", best.Score)

	fmt.Fprintln(w, "------ METRICS -------")
	writeMetrics(w, best.Metrics)

	fmt.Fprintln(w, "------ REGIMES -------")
	writeRegimes(w, best.Metrics)

	fmt.Fprintln(w, "------ PARAMETERS -------")
	writeParameters(w, best.Parameters)

	projection := Project(best.Metrics)
	fmt.Fprintln(w, "------ PROJECTIONS -------")
	fmt.Fprintf(w, "MONTHLY RETURN:   %.1f%%\n", projection.MonthlyReturn)
	fmt.Fprintf(w, "ANNUAL RETURN:    %.1f%%\n", projection.AnnualReturn)
	fmt.Fprintf(w, "TRADES PER MONTH: %.1f\n\n", projection.TradesPerMonth)

	rating := Rate(best.Metrics)
	fmt.Fprintf(w, "RATING: %s - %s\n\n", rating, rating.Recommendation())

	returns := lo.Map(best.Trades, func(t core.Trade, _ int) float64 { return t.ReturnPct })
	if len(returns) == 0 {
		return
	}

	fmt.Fprintln(w, "------ RETURN -------")
	hist := histogram.Hist(histogramBins, returns)
	_ = histogram.Fprint(w, hist, histogram.Linear(10))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "------ CONFIDENCE INTERVAL (95%) -------")
	returnInterval := metric.Bootstrap(returns, metric.Mean, bootstrapSamples, bootstrapConfidence)
	winRateInterval := metric.Bootstrap(returns, metric.WinRate, bootstrapSamples, bootstrapConfidence)
	fmt.Fprintf(w, "RETURN:   %.2f%% (%.2f%% ~ %.2f%%)\n",
		returnInterval.Mean, returnInterval.Lower, returnInterval.Upper)
	fmt.Fprintf(w, "WIN RATE: %.1f%% (%.1f%% ~ %.1f%%)\n",
		winRateInterval.Mean, winRateInterval.Lower, winRateInterval.Upper)
	fmt.Fprintln(w)
}

func writePeriods(w io.Writer, periods []core.Period) {
	if len(periods) == 0 {
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Period", "Regime", "Start", "End", "Days"})
	for _, period := range periods {
		table.Append([]string{
			period.Name,
			string(period.Regime),
			period.Start.Format(time.DateOnly),
			period.End.Format(time.DateOnly),
			fmt.Sprintf("%.0f", period.Days()),
		})
	}
	table.Render()
	fmt.Fprintln(w)
}

func writeIterations(w io.Writer, outcome *optimizer.Outcome) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Description", "Tested", "Qualified", "Best score", "Duration"})
	table.SetAutoWrapText(false)

	for _, report := range outcome.Iterations {
		best := "-"
		if len(report.Top) > 0 {
			best = fmt.Sprintf("%.2f", report.Top[0].Score)
		}
		table.Append([]string{
			strconv.Itoa(report.Number),
			report.Description,
			strconv.Itoa(report.Tested),
			strconv.Itoa(report.Qualified),
			best,
			report.Duration.Round(time.Millisecond).String(),
		})
	}

	status := "completed"
	if outcome.EarlyStop {
		status = "early stop"
	}
	table.SetFooter([]string{"", status, "", "", "", fmt.Sprintf("%d performed", outcome.Performed)})
	table.Render()
	fmt.Fprintln(w)
}

func writeMetrics(w io.Writer, m core.Metrics) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Trades", "Win", "Loss", "% Win", "Pr Fact.", "Return", "Avg Return", "Max DD", "Avg Days"})
	table.Append([]string{
		strconv.Itoa(m.TotalTrades),
		strconv.Itoa(m.WinningTrades),
		strconv.Itoa(m.LosingTrades),
		fmt.Sprintf("%.1f %%", m.WinRate),
		formatProfitFactor(m.ProfitFactor),
		fmt.Sprintf("%.2f %%", m.TotalReturn),
		fmt.Sprintf("%.2f %%", m.AvgTradeReturn),
		fmt.Sprintf("%.2f %%", m.MaxDrawdown),
		fmt.Sprintf("%.1f", m.AvgDuration),
	})
	table.Render()
	fmt.Fprintln(w)
}

func writeRegimes(w io.Writer, m core.Metrics) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Regime", "Trades", "% Win", "Return"})

	for _, regime := range []core.Regime{core.RegimeBull, core.RegimeBear, core.RegimeRecovery} {
		rm, ok := m.Regime(regime)
		if !ok {
			continue
		}
		table.Append([]string{
			string(regime),
			strconv.Itoa(rm.Trades),
			fmt.Sprintf("%.1f %%", rm.WinRate),
			fmt.Sprintf("%.2f %%", rm.Return),
		})
	}

	table.Render()
	fmt.Fprintln(w)
}

func writeParameters(w io.Writer, params core.ParameterSet) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Parameter", "Value"})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})

	for _, name := range core.ParameterNames {
		value, err := params.Value(name)
		if err != nil {
			continue
		}

		formatted := strconv.FormatFloat(value, 'f', -1, 64)
		if core.IsPercent(name) {
			formatted = fmt.Sprintf("%.1f %%", value*100)
		}
		table.Append([]string{strings.ToUpper(name), formatted})
	}

	table.Render()
	fmt.Fprintln(w)
}

func formatProfitFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", pf)
}

// SummaryText renders a compact plain text summary for notifications
func SummaryText(outcome *optimizer.Outcome) string {
	if outcome.Best == nil {
		return fmt.Sprintf("No optimal configuration found after %d iterations", outcome.Performed)
	}

	best := outcome.Best
	m := best.Metrics
	projection := Project(m)
	rating := Rate(m)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Subject: Calibration %s (score %.2f)\n", rating, best.Score)
	fmt.Fprintf(&sb, "Iterations: %d (early stop: %t)\n", outcome.Performed, outcome.EarlyStop)
	fmt.Fprintf(&sb, "Trades: %d | Win rate: %.1f%% | Profit factor: %s\n", m.TotalTrades, m.WinRate, formatProfitFactor(m.ProfitFactor))
	fmt.Fprintf(&sb, "Return: %.2f%% | Max drawdown: %.2f%%\n", m.TotalReturn, m.MaxDrawdown)
	fmt.Fprintf(&sb, "Projected monthly: %.1f%% | annual: %.1f%%\n", projection.MonthlyReturn, projection.AnnualReturn)
	fmt.Fprintf(&sb, "Parameters: %s\n", best.Parameters)
	fmt.Fprintf(&sb, "Rating: %s - %s", rating, rating.Recommendation())

	return sb.String()
}
