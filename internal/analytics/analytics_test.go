package analytics

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendhelm/internal/core"
)

func expense(amount float64, category, date string) core.Expense {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.Expense{Amount: core.MoneyFromFloat(amount), Currency: "USD", Category: category, Date: d}
}

func at(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func TestDateRangeFor(t *testing.T) {
	lastNano := 23*time.Hour + 59*time.Minute + 59*time.Second + 999999999

	tests := []struct {
		name      string
		period    Period
		now       time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"week from wednesday", PeriodWeek, at(2024, time.January, 10, 15), at(2024, time.January, 8, 0), at(2024, time.January, 14, 0).Add(lastNano)},
		{"week from sunday", PeriodWeek, at(2024, time.January, 14, 9), at(2024, time.January, 8, 0), at(2024, time.January, 14, 0).Add(lastNano)},
		{"week from monday", PeriodWeek, at(2024, time.January, 8, 0), at(2024, time.January, 8, 0), at(2024, time.January, 14, 0).Add(lastNano)},
		{"leap february", PeriodMonth, at(2024, time.February, 10, 12), at(2024, time.February, 1, 0), at(2024, time.February, 29, 0).Add(lastNano)},
		{"december", PeriodMonth, at(2023, time.December, 31, 23), at(2023, time.December, 1, 0), at(2023, time.December, 31, 0).Add(lastNano)},
		{"all", PeriodAll, at(2024, time.January, 10, 0), time.Unix(0, 0).UTC(), at(2024, time.January, 10, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DateRangeFor(tt.period, tt.now)
			assert.True(t, tt.wantStart.Equal(r.Start), "start = %v", r.Start)
			assert.True(t, tt.wantEnd.Equal(r.End), "end = %v", r.End)
		})
	}
}

func TestDateRangeFor_UsesNowLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// 2024-01-07 20:00 UTC is already Monday in Tokyo.
	now := time.Date(2024, time.January, 7, 20, 0, 0, 0, time.UTC).In(tokyo)
	r := DateRangeFor(PeriodWeek, now)
	assert.Equal(t, time.Date(2024, time.January, 8, 0, 0, 0, 0, tokyo), r.Start)
}

func TestParsePeriodAndLabel(t *testing.T) {
	tests := []struct {
		in    string
		want  Period
		label string
	}{
		{"week", PeriodWeek, "This Week"},
		{" Month ", PeriodMonth, "This Month"},
		{"all", PeriodAll, "All Time"},
		{"yearly", PeriodAll, "All Time"},
		{"", PeriodAll, "All Time"},
	}
	for _, tt := range tests {
		p := ParsePeriod(tt.in)
		assert.Equal(t, tt.want, p, tt.in)
		assert.Equal(t, tt.label, p.Label(), tt.in)
	}
	assert.Equal(t, "All Time", Period("quarter").Label())
}

func TestFilterByRange_InclusiveBounds(t *testing.T) {
	expenses := []core.Expense{
		expense(1, "A", "2024-01-07"),
		expense(2, "A", "2024-01-08"),
		expense(3, "A", "2024-01-14"),
		expense(4, "A", "2024-01-15"),
	}
	r := DateRangeFor(PeriodWeek, at(2024, time.January, 10, 12))

	got := FilterByRange(expenses, r)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-01-08", got[0].Date.String())
	assert.Equal(t, "2024-01-14", got[1].Date.String())

	assert.Empty(t, FilterByRange(nil, r))
	assert.NotNil(t, FilterByRange(nil, r))
}

func TestSummarize_WorkedExample(t *testing.T) {
	expenses := []core.Expense{
		expense(10, "Food", "2024-01-01"),
		expense(20, "Food", "2024-01-02"),
		expense(5, "Transport", "2024-01-03"),
	}
	categories := []core.Category{{Name: "Food", Color: "#ff0000"}}

	report := Summarize(expenses, categories, PeriodAll, at(2024, time.January, 10, 0))

	assert.Equal(t, int64(3500), report.Total.Cents)
	assert.Equal(t, 3, report.Count)
	assert.Equal(t, "All Time", report.Label)
	assert.Equal(t, []CategoryBreakdownItem{
		{Category: "Food", Amount: 30, Percentage: 85.71, Count: 2, Color: "#ff0000"},
		{Category: "Transport", Amount: 5, Percentage: 14.29, Count: 1, Color: core.DefaultCategoryColor},
	}, report.Breakdown)
	assert.Equal(t, []PieChartData{
		{Name: "Food", Value: 30, Color: "#ff0000"},
		{Name: "Transport", Value: 5, Color: core.DefaultCategoryColor},
	}, report.Pie)
	assert.Equal(t, []ChartDataPoint{
		{Day: "Jan 01", Amount: 10},
		{Day: "Jan 02", Amount: 20},
		{Day: "Jan 03", Amount: 5},
	}, report.Line)
}

func TestSummarize_EmptyInput(t *testing.T) {
	for _, p := range []Period{PeriodWeek, PeriodMonth, PeriodAll} {
		t.Run(string(p), func(t *testing.T) {
			report := Summarize(nil, nil, p, at(2024, time.January, 10, 0))
			assert.Zero(t, report.Total.Cents)
			assert.Zero(t, report.Count)
			assert.Len(t, report.Daily, 7)
			for _, point := range report.Daily {
				assert.Zero(t, point.Amount)
			}
			assert.Empty(t, report.Pie)
			assert.Empty(t, report.Line)
			assert.Empty(t, report.Breakdown)
		})
	}
}

func TestDailyTotals(t *testing.T) {
	now := at(2024, time.January, 10, 18) // Wednesday
	expenses := []core.Expense{
		expense(4, "A", "2024-01-04"), // Thursday, first point
		expense(1.5, "A", "2024-01-10"),
		expense(2.25, "B", "2024-01-10"),
		expense(7, "A", "2024-01-03"), // outside the seven days
		expense(9, "A", "2024-01-11"), // tomorrow
	}

	got := DailyTotals(expenses, now)
	require.Len(t, got, 7)
	assert.Equal(t, []string{"Thu", "Fri", "Sat", "Sun", "Mon", "Tue", "Wed"}, labels(got))
	assert.Equal(t, 4.0, got[0].Amount)
	assert.Equal(t, 3.75, got[6].Amount)
	for _, p := range got[1:6] {
		assert.Zero(t, p.Amount)
	}
}

func TestPieChart(t *testing.T) {
	expenses := []core.Expense{
		expense(5, "food", "2024-01-01"),
		expense(5, "Food", "2024-01-01"),
		expense(12, "Rent", "2024-01-02"),
		expense(5, "Fun", "2024-01-03"),
	}
	categories := []core.Category{
		{Name: "Food", Color: "#00ff00"},
		{Name: "Rent"},
		{Name: "Food", Color: "#0000ff"},
	}

	got := PieChart(expenses, categories)
	assert.Equal(t, []PieChartData{
		{Name: "Rent", Value: 12, Color: core.DefaultCategoryColor},
		{Name: "Food", Value: 5, Color: "#00ff00"},
		{Name: "Fun", Value: 5, Color: core.DefaultCategoryColor},
		{Name: "food", Value: 5, Color: core.DefaultCategoryColor},
	}, got)
}

func TestLineChart_RollingWindow(t *testing.T) {
	now := at(2024, time.January, 10, 8)
	expenses := []core.Expense{
		expense(3, "A", "2024-01-10"),
		expense(100, "A", "2023-12-11"), // 31st day back, outside
		expense(2, "A", "2023-12-12"),   // 30th day back, inside
		expense(1, "B", "2024-01-10"),
		expense(50, "A", "2024-01-11"), // future
		expense(8, "A", "2023-06-01"),
	}

	got := LineChart(expenses, now)
	assert.Equal(t, []ChartDataPoint{
		{Day: "Dec 12", Amount: 2},
		{Day: "Jan 10", Amount: 4},
	}, got)
}

func TestLineChart_NeverExceedsThirtyPoints(t *testing.T) {
	now := at(2024, time.March, 31, 12)
	var expenses []core.Expense
	for d := core.NewDate(2024, time.January, 1); !d.After(now); d = d.AddDays(1) {
		expenses = append(expenses, core.Expense{Amount: core.Money{Cents: 100}, Category: "A", Date: d})
	}
	got := LineChart(expenses, now)
	require.Len(t, got, 30)
	assert.Equal(t, "Mar 02", got[0].Day)
	assert.Equal(t, "Mar 31", got[29].Day)
}

func TestCategoryBreakdown_ZeroTotal(t *testing.T) {
	expenses := []core.Expense{
		{Amount: core.Money{}, Category: "Free", Date: core.NewDate(2024, time.January, 1)},
	}
	got := CategoryBreakdown(expenses, nil, core.Money{})
	require.Len(t, got, 1)
	assert.Zero(t, got[0].Percentage)
	assert.Equal(t, 1, got[0].Count)
}

func TestAggregationProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	names := []string{"Food", "Rent", "Travel", "Fun", "Health", "food"}
	now := at(2024, time.June, 15, 12)

	var expenses []core.Expense
	for i := 0; i < 500; i++ {
		d := core.NewDate(2024, time.January, 1).AddDays(rng.Intn(200))
		expenses = append(expenses, core.Expense{
			Amount:   core.Money{Cents: int64(rng.Intn(50000))},
			Category: names[rng.Intn(len(names))],
			Date:     d,
		})
	}

	for _, p := range []Period{PeriodWeek, PeriodMonth, PeriodAll} {
		t.Run(string(p), func(t *testing.T) {
			filtered := FilterByRange(expenses, DateRangeFor(p, now))
			report := Summarize(expenses, nil, p, now)

			var sum int64
			distinct := map[string]bool{}
			for _, e := range filtered {
				sum += e.Amount.Cents
				distinct[e.Category] = true
			}
			assert.Equal(t, sum, report.Total.Cents)

			var pieSum, breakdownSum, pctSum float64
			for _, slice := range report.Pie {
				pieSum += slice.Value
			}
			for _, item := range report.Breakdown {
				breakdownSum += item.Amount
				pctSum += item.Percentage
			}
			assert.InDelta(t, report.Total.Float(), pieSum, 0.001)
			assert.InDelta(t, report.Total.Float(), breakdownSum, 0.001)
			assert.Len(t, report.Pie, len(distinct))
			assert.Len(t, report.Breakdown, len(distinct))
			if sum > 0 {
				assert.InDelta(t, 100, pctSum, 0.01*float64(len(distinct)))
			}

			for i := 1; i < len(report.Breakdown); i++ {
				assert.GreaterOrEqual(t, report.Breakdown[i-1].Amount, report.Breakdown[i].Amount)
			}

			again := Summarize(expenses, nil, p, now)
			assert.Equal(t, report, again)
		})
	}
}

func labels(points []ChartDataPoint) []string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = p.Day
	}
	return out
}
