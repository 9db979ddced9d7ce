package aggregates

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendhelm/internal/auth"
	"spendhelm/internal/core"
	"spendhelm/internal/storage"
)

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "agg.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func addUser(t *testing.T, repo *storage.SQLiteRepository, email string) core.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), core.User{Email: email, PasswordHash: "x", IsActive: true})
	require.NoError(t, err)
	return u
}

func addExpense(t *testing.T, repo *storage.SQLiteRepository, userID string, cents int64, d core.Date) core.Expense {
	t.Helper()
	e, _, err := repo.CreateExpense(context.Background(), core.Expense{
		UserID:   userID,
		Amount:   core.Money{Cents: cents},
		Currency: "USD",
		Category: "Food",
		Date:     d,
	})
	require.NoError(t, err)
	return e
}

func TestRecomputeForDate(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	u := addUser(t, repo, "a@example.com")
	m := NewManager(repo, nil)

	// 2024-03-06 is a Wednesday; its week starts Monday 2024-03-04.
	addExpense(t, repo, u.ID, 1000, core.NewDate(2024, time.March, 6))
	addExpense(t, repo, u.ID, 250, core.NewDate(2024, time.March, 4))
	addExpense(t, repo, u.ID, 500, core.NewDate(2024, time.March, 11))
	addExpense(t, repo, u.ID, 700, core.NewDate(2024, time.February, 29))

	got, err := m.RecomputeForDate(ctx, u.ID, core.NewDate(2024, time.March, 6))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, core.PeriodDaily, got[0].PeriodType)
	assert.Equal(t, "2024-03-06", got[0].PeriodStart.String())
	assert.Equal(t, int64(1000), got[0].Total.Cents)

	assert.Equal(t, core.PeriodWeekly, got[1].PeriodType)
	assert.Equal(t, "2024-03-04", got[1].PeriodStart.String())
	assert.Equal(t, "2024-03-10", got[1].PeriodEnd.String())
	assert.Equal(t, int64(1250), got[1].Total.Cents)

	assert.Equal(t, core.PeriodMonthly, got[2].PeriodType)
	assert.Equal(t, "2024-03-01", got[2].PeriodStart.String())
	assert.Equal(t, "2024-03-31", got[2].PeriodEnd.String())
	assert.Equal(t, int64(1750), got[2].Total.Cents)
	assert.Equal(t, "USD", got[2].Currency)

	sum, err := repo.SumExpenses(ctx, u.ID, got[2].PeriodStart, got[2].PeriodEnd)
	require.NoError(t, err)
	assert.Equal(t, sum, got[2].Total)
}

func TestRecomputeAfterDeleteZeroesTotals(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	u := addUser(t, repo, "a@example.com")
	m := NewManager(repo, nil)

	d := core.NewDate(2024, time.May, 15)
	e := addExpense(t, repo, u.ID, 900, d)
	_, err := m.RecomputeForDate(ctx, u.ID, d)
	require.NoError(t, err)

	require.NoError(t, repo.SoftDeleteExpense(ctx, u.ID, e.ID))
	got, err := m.RecomputeForDate(ctx, u.ID, d)
	require.NoError(t, err)
	for _, a := range got {
		assert.Zero(t, a.Total.Cents, "%s total", a.PeriodType)
	}
}

func TestRecomputeUsesPreferredCurrency(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	u := addUser(t, repo, "eur@example.com")
	_, err := repo.UpsertPreferences(ctx, core.Preferences{UserID: u.ID, Currency: "EUR", Timezone: "Europe/Rome"})
	require.NoError(t, err)

	d := core.NewDate(2024, time.June, 1)
	addExpense(t, repo, u.ID, 100, d)
	got, err := NewManager(repo, nil).RecomputeForDate(ctx, u.ID, d)
	require.NoError(t, err)
	assert.Equal(t, "EUR", got[0].Currency)
}

func TestRebuildAll(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	a := addUser(t, repo, "a@example.com")
	b := addUser(t, repo, "b@example.com")

	today := core.DateOf(time.Now())
	addExpense(t, repo, a.ID, 100, today)
	addExpense(t, repo, a.ID, 200, today)
	addExpense(t, repo, b.ID, 300, today.AddDays(-1))
	addExpense(t, repo, b.ID, 400, today.AddDays(-RebuildWindowDays-10))

	m := NewManager(repo, nil)
	require.NoError(t, m.RebuildAll(ctx))

	daily, err := repo.GetAggregate(ctx, a.ID, core.PeriodDaily, today)
	require.NoError(t, err)
	assert.Equal(t, int64(300), daily.Total.Cents)

	daily, err = repo.GetAggregate(ctx, b.ID, core.PeriodDaily, today.AddDays(-1))
	require.NoError(t, err)
	assert.Equal(t, int64(300), daily.Total.Cents)

	_, err = repo.GetAggregate(ctx, b.ID, core.PeriodDaily, today.AddDays(-RebuildWindowDays-10))
	assert.ErrorIs(t, err, core.ErrNotFound, "dates outside the window are not rebuilt")

	written, err := m.RebuildUser(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, written, "one row per period type for a single date")
}

func TestServiceAccessRules(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	owner := addUser(t, repo, "owner@example.com")
	other := addUser(t, repo, "other@example.com")

	d := core.NewDate(2024, time.January, 10)
	addExpense(t, repo, owner.ID, 1234, d)
	_, err := NewManager(repo, nil).RecomputeForDate(ctx, owner.ID, d)
	require.NoError(t, err)

	svc := NewService(repo)
	self := auth.Session{UserID: owner.ID}
	stranger := auth.Session{UserID: other.ID}
	admin := auth.Session{UserID: other.ID, IsAdmin: true}

	list, err := svc.List(ctx, self, ListFilter{PeriodType: core.PeriodMonthly})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1234), list[0].Total.Cents)

	_, err = svc.List(ctx, stranger, ListFilter{UserID: owner.ID})
	assert.True(t, errors.Is(err, core.ErrForbidden))

	list, err = svc.List(ctx, admin, ListFilter{UserID: owner.ID})
	require.NoError(t, err)
	assert.Len(t, list, 3)

	_, err = svc.List(ctx, self, ListFilter{PeriodType: "yearly"})
	assert.ErrorIs(t, err, core.ErrInvalidPeriod)

	// A mid-week start snaps to Monday.
	got, err := svc.Get(ctx, self, "", core.PeriodWeekly, d)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-08", got.PeriodStart.String())

	_, err = svc.Get(ctx, stranger, owner.ID, core.PeriodDaily, d)
	assert.ErrorIs(t, err, core.ErrForbidden)

	_, err = svc.Get(ctx, self, "", core.PeriodDaily, d.AddDays(1))
	assert.ErrorIs(t, err, core.ErrNotFound)
}
