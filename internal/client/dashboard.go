package client

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"spendhelm/internal/analytics"
	"spendhelm/internal/core"
)

// Dashboard fetches expenses, categories and the profile concurrently and
// computes the report locally in the user's timezone. Callers wanting fresh
// numbers after a change simply call it again.
func (c *Client) Dashboard(ctx context.Context, period string) (analytics.Report, error) {
	var (
		expenses   []core.Expense
		categories []core.Category
		profile    Profile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = c.ListExpenses(gctx, ExpenseQuery{})
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = c.ListCategories(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		profile, err = c.Me(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return analytics.Report{}, err
	}

	loc, err := time.LoadLocation(profile.Timezone)
	if err != nil || profile.Timezone == "" {
		loc = time.UTC
	}
	return analytics.Summarize(expenses, categories, analytics.ParsePeriod(period), c.now().In(loc)), nil
}
