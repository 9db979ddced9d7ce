// Package aggregates maintains the stored daily, weekly and monthly spending
// totals and serves them to callers with the self-or-admin access rule.
package aggregates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"spendhelm/internal/core"
	"spendhelm/internal/log"
	"spendhelm/internal/storage"
)

// RebuildWindowDays bounds how far back RebuildUser looks for expense dates.
const RebuildWindowDays = 400

// Store is the persistence the aggregates package needs.
type Store interface {
	SumExpenses(ctx context.Context, userID string, from, to core.Date) (core.Money, error)
	UpsertAggregate(ctx context.Context, a core.Aggregate) (core.Aggregate, error)
	GetAggregate(ctx context.Context, userID string, p core.PeriodType, start core.Date) (core.Aggregate, error)
	ListAggregates(ctx context.Context, f storage.AggregateFilter) ([]core.Aggregate, error)
	GetPreferences(ctx context.Context, userID string) (core.Preferences, error)
	ExpenseDates(ctx context.Context, userID string, since core.Date) ([]core.Date, error)
	ExpenseUsers(ctx context.Context) ([]string, error)
}

// Manager recomputes stored aggregates from expense rows.
type Manager struct {
	store       Store
	logger      *log.Logger
	now         func() time.Time
	concurrency int
}

func NewManager(store Store, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{
		store:       store,
		logger:      logger.WithComponent(log.ComponentAggregate),
		now:         time.Now,
		concurrency: 4,
	}
}

// RecomputeForDate refreshes the daily, weekly and monthly rows covering
// date for userID. Deleted expenses are excluded, so a period that lost its
// last expense is stored with a zero total.
func (m *Manager) RecomputeForDate(ctx context.Context, userID string, date core.Date) ([]core.Aggregate, error) {
	currency, err := m.currency(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]core.Aggregate, 0, len(core.PeriodTypes))
	for _, p := range core.PeriodTypes {
		a, err := m.recomputePeriod(ctx, userID, p, p.Start(date), currency)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	m.logger.DebugContext(ctx, "Recomputed aggregates",
		log.FieldUserID, userID,
		log.FieldDate, date.String())
	return out, nil
}

func (m *Manager) recomputePeriod(ctx context.Context, userID string, p core.PeriodType, start core.Date, currency string) (core.Aggregate, error) {
	end := p.End(start)
	total, err := m.store.SumExpenses(ctx, userID, start, end)
	if err != nil {
		return core.Aggregate{}, fmt.Errorf("sum %s period %s: %w", p, start, err)
	}
	a, err := m.store.UpsertAggregate(ctx, core.Aggregate{
		UserID:      userID,
		PeriodType:  p,
		PeriodStart: start,
		PeriodEnd:   end,
		Total:       total,
		Currency:    currency,
	})
	if err != nil {
		return core.Aggregate{}, fmt.Errorf("store %s aggregate: %w", p, err)
	}
	return a, nil
}

func (m *Manager) currency(ctx context.Context, userID string) (string, error) {
	prefs, err := m.store.GetPreferences(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return core.DefaultCurrency, nil
	}
	if err != nil {
		return "", fmt.Errorf("load preferences: %w", err)
	}
	if prefs.Currency == "" {
		return core.DefaultCurrency, nil
	}
	return prefs.Currency, nil
}

// RebuildUser recomputes every period touched by the user's expenses within
// the rebuild window. Each period is written once.
func (m *Manager) RebuildUser(ctx context.Context, userID string) (int, error) {
	since := core.DateOf(m.now()).AddDays(-RebuildWindowDays)
	dates, err := m.store.ExpenseDates(ctx, userID, since)
	if err != nil {
		return 0, err
	}
	currency, err := m.currency(ctx, userID)
	if err != nil {
		return 0, err
	}

	type key struct {
		p     core.PeriodType
		start string
	}
	seen := make(map[key]bool)
	written := 0
	for _, d := range dates {
		for _, p := range core.PeriodTypes {
			start := p.Start(d)
			k := key{p, start.String()}
			if seen[k] {
				continue
			}
			seen[k] = true
			if err := ctx.Err(); err != nil {
				return written, err
			}
			if _, err := m.recomputePeriod(ctx, userID, p, start, currency); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

// RebuildAll runs RebuildUser for every user with expenses, a few at a time.
// Failures for one user do not stop the others; they are joined in the result.
func (m *Manager) RebuildAll(ctx context.Context) error {
	users, err := m.store.ExpenseUsers(ctx)
	if err != nil {
		return err
	}

	started := m.now()
	errs := make([]error, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, userID := range users {
		g.Go(func() error {
			if _, err := m.RebuildUser(gctx, userID); err != nil {
				errs[i] = fmt.Errorf("user %s: %w", userID, err)
				m.logger.ErrorContext(gctx, "Aggregate rebuild failed",
					log.FieldUserID, userID,
					log.FieldError, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	m.logger.InfoContext(ctx, "Aggregate rebuild finished",
		"users", len(users),
		log.FieldDuration, m.now().Sub(started).Milliseconds())
	return errors.Join(errs...)
}
