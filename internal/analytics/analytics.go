// Package analytics turns a snapshot of expenses into chart-ready
// projections for a selected period.
//
// Every function is pure. Callers own fetching and must call again with a
// fresh snapshot after data changes; nothing here is cached.
package analytics

import (
	"math"
	"sort"
	"time"

	"spendhelm/internal/core"
)

const (
	dailyPoints     = 7
	lineWindowDays  = 30
	dayLabelLayout  = "Mon"
	lineLabelLayout = "Jan 02"
)

type ChartDataPoint struct {
	Day    string  `json:"day"`
	Amount float64 `json:"amount"`
}

type PieChartData struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

type CategoryBreakdownItem struct {
	Category   string  `json:"category"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
	Count      int     `json:"count"`
	Color      string  `json:"color"`
}

// FilterByRange keeps expenses whose date, taken as local midnight in the
// location of r.Start, lies inside r (both bounds inclusive).
func FilterByRange(expenses []core.Expense, r DateRange) []core.Expense {
	loc := r.Start.Location()
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if r.Contains(e.Date.In(loc)) {
			out = append(out, e)
		}
	}
	return out
}

// Total sums the amounts of expenses.
func Total(expenses []core.Expense) core.Money {
	var total core.Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// DailyTotals returns exactly seven points for the calendar days ending on
// now, oldest first. It ignores any period selection.
func DailyTotals(expenses []core.Expense, now time.Time) []ChartDataPoint {
	byDay := sumByDay(expenses)

	today := core.DateOf(now)
	points := make([]ChartDataPoint, dailyPoints)
	for i := range points {
		back := dailyPoints - 1 - i
		points[i] = ChartDataPoint{
			Day:    now.AddDate(0, 0, -back).Format(dayLabelLayout),
			Amount: centsToFloat(byDay[dayKey(today.AddDays(-back))]),
		}
	}
	return points
}

// PieChart groups by exact category name and sorts by value, largest first.
func PieChart(expenses []core.Expense, categories []core.Category) []PieChartData {
	colors := colorIndex(categories)
	groups := groupByCategory(expenses)

	out := make([]PieChartData, 0, len(groups))
	for _, g := range groups {
		out = append(out, PieChartData{Name: g.name, Value: centsToFloat(g.cents), Color: colors.lookup(g.name)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// LineChart sums expenses per day over the 30 calendar days ending on now
// and returns only days with data, in chronological order.
func LineChart(expenses []core.Expense, now time.Time) []ChartDataPoint {
	last := core.DateOf(now)
	first := last.AddDays(-(lineWindowDays - 1))

	byDay := sumByDay(expenses)

	var out []ChartDataPoint
	for d := first; !d.After(last.Time); d = d.AddDays(1) {
		if cents, ok := byDay[dayKey(d)]; ok {
			out = append(out, ChartDataPoint{Day: d.Format(lineLabelLayout), Amount: centsToFloat(cents)})
		}
	}
	if out == nil {
		out = []ChartDataPoint{}
	}
	return out
}

// sumByDay totals cents per calendar date.
func sumByDay(expenses []core.Expense) map[string]int64 {
	byDay := make(map[string]int64, len(expenses))
	for _, e := range expenses {
		byDay[dayKey(e.Date)] += e.Amount.Cents
	}
	return byDay
}

func dayKey(d core.Date) string {
	return d.String()
}

// CategoryBreakdown reports amount, count and share of total per category,
// largest amount first. A zero total yields zero percentages.
func CategoryBreakdown(expenses []core.Expense, categories []core.Category, total core.Money) []CategoryBreakdownItem {
	colors := colorIndex(categories)
	groups := groupByCategory(expenses)

	out := make([]CategoryBreakdownItem, 0, len(groups))
	for _, g := range groups {
		out = append(out, CategoryBreakdownItem{
			Category:   g.name,
			Amount:     centsToFloat(g.cents),
			Percentage: percentage(g.cents, total.Cents),
			Count:      g.count,
			Color:      colors.lookup(g.name),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Category < out[j].Category
	})
	return out
}

type categoryGroup struct {
	name  string
	cents int64
	count int
}

// groupByCategory keeps first-seen order so that sorting ties stay stable.
func groupByCategory(expenses []core.Expense) []*categoryGroup {
	index := make(map[string]*categoryGroup)
	var groups []*categoryGroup
	for _, e := range expenses {
		g, ok := index[e.Category]
		if !ok {
			g = &categoryGroup{name: e.Category}
			index[e.Category] = g
			groups = append(groups, g)
		}
		g.cents += e.Amount.Cents
		g.count++
	}
	return groups
}

type colors map[string]string

func colorIndex(categories []core.Category) colors {
	c := make(colors, len(categories))
	for _, cat := range categories {
		if _, seen := c[cat.Name]; !seen {
			c[cat.Name] = cat.Color
		}
	}
	return c
}

func (c colors) lookup(name string) string {
	if color := c[name]; color != "" {
		return color
	}
	return core.DefaultCategoryColor
}

func percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*100*100) / 100
}

func centsToFloat(cents int64) float64 {
	return core.Money{Cents: cents}.Float()
}
