package analytics

import (
	"time"

	"spendhelm/internal/core"
)

// Report bundles every projection for one period.
type Report struct {
	Period    Period                  `json:"period"`
	Label     string                  `json:"label"`
	Range     DateRange               `json:"range"`
	Total     core.Money              `json:"total"`
	Count     int                     `json:"count"`
	Daily     []ChartDataPoint        `json:"daily"`
	Pie       []PieChartData          `json:"pie"`
	Line      []ChartDataPoint        `json:"line"`
	Breakdown []CategoryBreakdownItem `json:"breakdown"`
}

// Summarize filters expenses to period and computes all projections from
// the filtered set. The daily and line series still span their fixed
// windows ending on now, so days outside the period show as zero or absent.
func Summarize(expenses []core.Expense, categories []core.Category, period Period, now time.Time) Report {
	period = ParsePeriod(string(period))
	r := DateRangeFor(period, now)
	filtered := FilterByRange(expenses, r)
	total := Total(filtered)

	return Report{
		Period:    period,
		Label:     period.Label(),
		Range:     r,
		Total:     total,
		Count:     len(filtered),
		Daily:     DailyTotals(filtered, now),
		Pie:       PieChart(filtered, categories),
		Line:      LineChart(filtered, now),
		Breakdown: CategoryBreakdown(filtered, categories, total),
	}
}
