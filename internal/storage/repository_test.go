package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"spendhelm/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func createUser(t *testing.T, repo *SQLiteRepository, email string) core.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), core.User{Email: email, PasswordHash: "hash", IsActive: true})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return u
}

func TestMigrationsApplied(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()

	version, dirty, err := SchemaVersion(path)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("SchemaVersion() = %d dirty=%v, want 2 clean", version, dirty)
	}

	// A second open must be a no-op migration.
	again, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	again.Close()
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	u := createUser(t, repo, "alice@example.com")
	if u.ID == "" || u.CreatedAt.IsZero() {
		t.Fatalf("CreateUser() returned %+v", u)
	}

	if _, err := repo.CreateUser(ctx, core.User{Email: "alice@example.com", PasswordHash: "x"}); !errors.Is(err, core.ErrConflict) {
		t.Errorf("duplicate email error = %v, want ErrConflict", err)
	}

	got, err := repo.GetUserByEmail(ctx, "alice@example.com")
	if err != nil || got.ID != u.ID || !got.IsActive {
		t.Errorf("GetUserByEmail() = %+v, %v", got, err)
	}
	if _, err := repo.GetUserByID(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetUserByID(missing) error = %v", err)
	}

	if err := repo.UpdatePassword(ctx, u.ID, "new-hash"); err != nil {
		t.Fatal(err)
	}
	got, _ = repo.GetUserByID(ctx, u.ID)
	if got.PasswordHash != "new-hash" {
		t.Errorf("password hash = %q", got.PasswordHash)
	}
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := createUser(t, repo, "bob@example.com")

	if _, err := repo.GetPreferences(ctx, u.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("GetPreferences() before upsert error = %v", err)
	}
	p, err := repo.UpsertPreferences(ctx, core.DefaultPreferences(u.ID))
	if err != nil || p.Currency != "USD" || p.Timezone != "UTC" {
		t.Fatalf("UpsertPreferences() = %+v, %v", p, err)
	}
	p, err = repo.UpsertPreferences(ctx, core.Preferences{UserID: u.ID, Currency: "EUR", Timezone: "Europe/Rome"})
	if err != nil || p.Currency != "EUR" || p.Timezone != "Europe/Rome" {
		t.Fatalf("UpsertPreferences() update = %+v, %v", p, err)
	}
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	alice := createUser(t, repo, "alice@example.com")
	bob := createUser(t, repo, "bob@example.com")

	defaults, err := repo.ListCategories(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(defaults) != 9 {
		t.Fatalf("expected 9 seeded defaults, got %d", len(defaults))
	}
	for _, c := range defaults {
		if !c.IsDefault {
			t.Errorf("seeded category %q should be default", c.Name)
		}
	}

	own, err := repo.CreateCategory(ctx, core.Category{UserID: alice.ID, Name: "Coffee", Color: "#6f4e37"})
	if err != nil {
		t.Fatal(err)
	}
	if own.IsDefault {
		t.Error("user category marked default")
	}
	if _, err := repo.CreateCategory(ctx, core.Category{UserID: alice.ID, Name: "Coffee"}); !errors.Is(err, core.ErrConflict) {
		t.Errorf("duplicate name error = %v", err)
	}
	if _, err := repo.CreateCategory(ctx, core.Category{UserID: bob.ID, Name: "Coffee"}); err != nil {
		t.Errorf("same name for another user error = %v", err)
	}

	list, _ := repo.ListCategories(ctx, alice.ID)
	if len(list) != 10 || list[9].Name != "Coffee" {
		t.Errorf("ListCategories() = %d items, last %q", len(list), list[len(list)-1].Name)
	}

	found, err := repo.FindCategoryByName(ctx, alice.ID, "Travel")
	if err != nil || !found.IsDefault {
		t.Errorf("FindCategoryByName(Travel) = %+v, %v", found, err)
	}
	if _, err := repo.FindCategoryByName(ctx, alice.ID, "travel"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("lookup must be case sensitive, got %v", err)
	}

	if err := repo.DeleteCategory(ctx, own.ID); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteCategory(ctx, own.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete error = %v", err)
	}
}

func TestExpenses(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := createUser(t, repo, "carol@example.com")
	other := createUser(t, repo, "dave@example.com")

	add := func(cents int64, category, date, requestID string) core.Expense {
		t.Helper()
		d, _ := core.ParseDate(date)
		e, created, err := repo.CreateExpense(ctx, core.Expense{
			UserID: u.ID, Amount: core.Money{Cents: cents}, Currency: "USD", Category: category, Date: d, RequestID: requestID,
		})
		if err != nil {
			t.Fatalf("CreateExpense() error = %v", err)
		}
		if requestID == "" && !created {
			t.Fatal("expected created")
		}
		return e
	}

	first := add(1000, "Food", "2024-01-01", "req-1")
	add(2000, "Food", "2024-01-02", "")
	third := add(500, "Transport", "2024-01-03", "")

	dup := add(9999, "Other", "2024-01-05", "req-1")
	if dup.ID != first.ID || dup.Amount.Cents != 1000 {
		t.Errorf("idempotent create returned %+v, want original %s", dup, first.ID)
	}

	all, err := repo.ListExpenses(ctx, u.ID, ExpenseFilter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("ListExpenses() = %d, %v", len(all), err)
	}
	if all[0].Date.String() != "2024-01-03" {
		t.Errorf("expected newest first, got %s", all[0].Date)
	}

	from, _ := core.ParseDate("2024-01-02")
	filtered, _ := repo.ListExpenses(ctx, u.ID, ExpenseFilter{From: from, Category: "Food"})
	if len(filtered) != 1 || filtered[0].Amount.Cents != 2000 {
		t.Errorf("filtered list = %+v", filtered)
	}

	if _, err := repo.GetExpense(ctx, other.ID, first.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign user GetExpense error = %v", err)
	}

	third.Amount = core.Money{Cents: 750}
	third.Note = "taxi"
	updated, err := repo.UpdateExpense(ctx, third)
	if err != nil || updated.Amount.Cents != 750 || updated.Note != "taxi" {
		t.Errorf("UpdateExpense() = %+v, %v", updated, err)
	}

	jan1, _ := core.ParseDate("2024-01-01")
	jan31, _ := core.ParseDate("2024-01-31")
	sum, _ := repo.SumExpenses(ctx, u.ID, jan1, jan31)
	if sum.Cents != 3750 {
		t.Errorf("SumExpenses() = %d, want 3750", sum.Cents)
	}

	if err := repo.SoftDeleteExpense(ctx, u.ID, first.ID); err != nil {
		t.Fatal(err)
	}
	if err := repo.SoftDeleteExpense(ctx, u.ID, first.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete error = %v", err)
	}
	sum, _ = repo.SumExpenses(ctx, u.ID, jan1, jan31)
	if sum.Cents != 2750 {
		t.Errorf("SumExpenses() after delete = %d, want 2750", sum.Cents)
	}

	dates, _ := repo.ExpenseDates(ctx, u.ID, jan1)
	if len(dates) != 3 {
		t.Errorf("ExpenseDates() = %v, deleted dates must still be listed", dates)
	}
	users, _ := repo.ExpenseUsers(ctx)
	if len(users) != 1 || users[0] != u.ID {
		t.Errorf("ExpenseUsers() = %v", users)
	}
}

func TestCreateExpense_ConcurrentRequestID(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := createUser(t, repo, "erin@example.com")
	d, _ := core.ParseDate("2024-02-01")

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, _, err := repo.CreateExpense(ctx, core.Expense{
				UserID: u.ID, Amount: core.Money{Cents: 100}, Currency: "USD", Category: "Food", Date: d, RequestID: "same",
			})
			if err != nil {
				t.Errorf("CreateExpense() error = %v", err)
				return
			}
			ids[i] = e.ID
		}(i)
	}
	wg.Wait()
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("expected a single expense, got ids %v", ids)
		}
	}
}

func TestMirrorBookkeeping(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	clock := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	u := createUser(t, repo, "frank@example.com")
	d, _ := core.ParseDate("2024-03-01")

	e, _, err := repo.CreateExpense(ctx, core.Expense{UserID: u.ID, Amount: core.Money{Cents: 100}, Currency: "EUR", Category: "Food", Date: d})
	if err != nil {
		t.Fatal(err)
	}
	pending, _ := repo.PendingMirror(ctx, 10)
	if len(pending) != 1 || pending[0].UserEmail != "frank@example.com" || pending[0].Ref != "" {
		t.Fatalf("PendingMirror() = %+v", pending)
	}
	if err := repo.MarkMirrored(ctx, pending[0], "Expenses!A2"); err != nil {
		t.Fatal(err)
	}
	pending, _ = repo.PendingMirror(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("expected nothing pending, got %d", len(pending))
	}

	e.Note = "edited"
	if _, err := repo.UpdateExpense(ctx, e); err != nil {
		t.Fatal(err)
	}
	pending, _ = repo.PendingMirror(ctx, 10)
	if len(pending) != 1 || pending[0].Ref != "Expenses!A2" || pending[0].Deleted {
		t.Fatalf("update should requeue the existing row, got %+v", pending)
	}

	// An edit landing between the read and the mark keeps the row pending.
	stale := pending[0]
	e.Note = "edited twice"
	if _, err := repo.UpdateExpense(ctx, e); err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkMirrored(ctx, stale, "Expenses!A2"); err != nil {
		t.Fatal(err)
	}
	pending, _ = repo.PendingMirror(ctx, 10)
	if len(pending) != 1 || pending[0].Expense.Note != "edited twice" {
		t.Fatalf("newer edit must stay pending, got %+v", pending)
	}
	if err := repo.MarkMirrored(ctx, pending[0], "Expenses!A2"); err != nil {
		t.Fatal(err)
	}

	if err := repo.SoftDeleteExpense(ctx, u.ID, e.ID); err != nil {
		t.Fatal(err)
	}
	pending, _ = repo.PendingMirror(ctx, 10)
	if len(pending) != 1 || !pending[0].Deleted || pending[0].Ref != "Expenses!A2" {
		t.Fatalf("delete of a mirrored row should be pending, got %+v", pending)
	}
	if err := repo.MarkMirrored(ctx, pending[0], ""); err != nil {
		t.Fatal(err)
	}
	if pending, _ = repo.PendingMirror(ctx, 10); len(pending) != 0 {
		t.Errorf("cleared row still pending: %+v", pending)
	}

	never, _, err := repo.CreateExpense(ctx, core.Expense{UserID: u.ID, Amount: core.Money{Cents: 5}, Currency: "EUR", Category: "Food", Date: d})
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.SoftDeleteExpense(ctx, u.ID, never.ID); err != nil {
		t.Fatal(err)
	}
	if pending, _ = repo.PendingMirror(ctx, 10); len(pending) != 0 {
		t.Errorf("deleted row that was never mirrored should not be pending: %+v", pending)
	}
}

func TestCreateExpense_RequestIDOfDeletedExpense(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := createUser(t, repo, "gina@example.com")
	d, _ := core.ParseDate("2024-03-01")
	in := core.Expense{UserID: u.ID, Amount: core.Money{Cents: 100}, Currency: "EUR", Category: "Food", Date: d, RequestID: "req-9"}

	e, created, err := repo.CreateExpense(ctx, in)
	if err != nil || !created {
		t.Fatalf("CreateExpense() = %v, %v", created, err)
	}
	if err := repo.SoftDeleteExpense(ctx, u.ID, e.ID); err != nil {
		t.Fatal(err)
	}

	_, created, err = repo.CreateExpense(ctx, in)
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("replay of a deleted expense: created=%v err=%v, want conflict", created, err)
	}
}

func TestAggregates(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u := createUser(t, repo, "gina@example.com")
	repo.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	start := core.NewDate(2024, time.January, 8)
	a, err := repo.UpsertAggregate(ctx, core.Aggregate{UserID: u.ID, PeriodType: core.PeriodWeekly, PeriodStart: start, Total: core.Money{Cents: 1200}, Currency: "USD"})
	if err != nil {
		t.Fatal(err)
	}
	if a.PeriodEnd.String() != "2024-01-14" {
		t.Errorf("PeriodEnd = %s", a.PeriodEnd)
	}

	a2, err := repo.UpsertAggregate(ctx, core.Aggregate{UserID: u.ID, PeriodType: core.PeriodWeekly, PeriodStart: start, Total: core.Money{Cents: 300}, Currency: "EUR"})
	if err != nil {
		t.Fatal(err)
	}
	if a2.ID != a.ID || a2.Total.Cents != 300 || a2.Currency != "EUR" {
		t.Errorf("upsert should update in place: %+v vs %+v", a2, a)
	}

	if _, err := repo.UpsertAggregate(ctx, core.Aggregate{UserID: u.ID, PeriodType: core.PeriodDaily, PeriodStart: start, Total: core.Money{Cents: 300}, Currency: "EUR"}); err != nil {
		t.Fatal(err)
	}

	list, err := repo.ListAggregates(ctx, AggregateFilter{UserID: u.ID, PeriodType: core.PeriodWeekly})
	if err != nil || len(list) != 1 {
		t.Errorf("ListAggregates(weekly) = %v, %v", list, err)
	}
	list, _ = repo.ListAggregates(ctx, AggregateFilter{UserID: u.ID, Limit: 1})
	if len(list) != 1 {
		t.Errorf("limit not applied: %d", len(list))
	}
	if _, err := repo.GetAggregate(ctx, u.ID, core.PeriodMonthly, start); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetAggregate(missing) error = %v", err)
	}
}
