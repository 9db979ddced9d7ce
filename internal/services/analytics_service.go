package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"spendhelm/internal/analytics"
	"spendhelm/internal/auth"
	"spendhelm/internal/core"
	"spendhelm/internal/log"
)

// AnalyticsService runs the aggregator over a user's cached expense snapshot.
type AnalyticsService struct {
	expenses   *ExpenseService
	categories CategoryStore
	prefs      *PreferenceService
	logger     *log.Logger
	now        func() time.Time
}

func NewAnalyticsService(expenses *ExpenseService, categories CategoryStore, prefs *PreferenceService, logger *log.Logger) *AnalyticsService {
	if logger == nil {
		logger = log.Discard()
	}
	return &AnalyticsService{
		expenses:   expenses,
		categories: categories,
		prefs:      prefs,
		logger:     logger.WithComponent(log.ComponentAnalytics),
		now:        time.Now,
	}
}

// Report summarizes the user's spending for period, evaluated at the current
// time in the user's timezone.
func (s *AnalyticsService) Report(ctx context.Context, session auth.Session, period string) (analytics.Report, error) {
	var (
		expenses   []core.Expense
		categories []core.Category
		prefs      core.Preferences
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		expenses, err = s.expenses.Snapshot(gctx, session.UserID)
		return err
	})
	g.Go(func() (err error) {
		categories, err = s.categories.ListCategories(gctx, session.UserID)
		return err
	})
	g.Go(func() (err error) {
		prefs, err = s.prefs.Get(gctx, session.UserID)
		return err
	})
	if err := g.Wait(); err != nil {
		return analytics.Report{}, err
	}

	p := analytics.ParsePeriod(period)
	report := analytics.Summarize(expenses, categories, p, s.now().In(prefs.Location()))

	s.logger.DebugContext(ctx, "Analytics report built",
		log.FieldUserID, session.UserID,
		log.FieldPeriod, string(p),
		"expenses", report.Count)
	return report, nil
}
