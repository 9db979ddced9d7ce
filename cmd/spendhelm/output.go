package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"spendhelm/internal/analytics"
	"spendhelm/internal/client"
	"spendhelm/internal/core"
)

const barWidth = 30

func (a *app) jsonOutput() bool { return a.v.GetBool("json") }

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
}

func (a *app) printProfile(p client.Profile) error {
	w := a.table()
	fmt.Fprintf(w, "Email:\t%s\n", p.Email)
	if p.FullName != "" {
		fmt.Fprintf(w, "Name:\t%s\n", p.FullName)
	}
	fmt.Fprintf(w, "Currency:\t%s\n", p.PreferredCurrency)
	fmt.Fprintf(w, "Timezone:\t%s\n", p.Timezone)
	return w.Flush()
}

func (a *app) printExpenses(items []core.Expense) error {
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No expenses found.")
		return nil
	}
	w := a.table()
	fmt.Fprintln(w, "DATE\tAMOUNT\tCATEGORY\tNOTE\tID")
	for _, e := range items {
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\t%s\n", e.Date, e.Amount, e.Currency, e.Category, e.Note, e.ID)
	}
	return w.Flush()
}

func (a *app) printCategories(cats []core.Category) error {
	w := a.table()
	fmt.Fprintln(w, "NAME\tCOLOR\tKIND\tID")
	for _, c := range cats {
		kind := "custom"
		if c.IsDefault {
			kind = "default"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, c.Color, kind, c.ID)
	}
	return w.Flush()
}

func (a *app) printReport(r analytics.Report) error {
	fmt.Fprintf(a.out, "%s: %s across %d expenses\n\n", r.Label, r.Total, r.Count)
	if r.Count == 0 {
		return nil
	}

	w := a.table()
	fmt.Fprintln(w, "CATEGORY\tAMOUNT\tSHARE\tCOUNT")
	for _, b := range r.Breakdown {
		fmt.Fprintf(w, "%s\t%s\t%.1f%%\t%d\n", b.Category, core.MoneyFromFloat(b.Amount), b.Percentage, b.Count)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	var peak float64
	for _, d := range r.Daily {
		peak = max(peak, d.Amount)
	}
	if peak == 0 {
		return nil
	}
	fmt.Fprintln(a.out)
	w = a.table()
	for _, d := range r.Daily {
		n := int(d.Amount / peak * barWidth)
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Day, strings.Repeat("#", n), core.MoneyFromFloat(d.Amount))
	}
	return w.Flush()
}
