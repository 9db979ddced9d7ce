package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"spendhelm/internal/core"
)

const expenseColumns = `id, user_id, amount_cents, currency, category, expense_date, note, request_id, created_at, updated_at`

// ExpenseFilter narrows ListExpenses. Zero values mean no constraint.
type ExpenseFilter struct {
	From     core.Date
	To       core.Date
	Category string
	Limit    int
	Offset   int
}

// MirrorCandidate is an expense waiting to be copied to the spreadsheet.
type MirrorCandidate struct {
	Expense   core.Expense
	UserEmail string
	// Ref is the spreadsheet range of the row written earlier, empty when
	// the expense has never been mirrored.
	Ref     string
	Deleted bool

	version string
}

func scanExpense(s rowScanner) (core.Expense, error) {
	var (
		e                    core.Expense
		date                 string
		requestID            sql.NullString
		createdAt, updatedAt string
	)
	if err := s.Scan(&e.ID, &e.UserID, &e.Amount.Cents, &e.Currency, &e.Category, &date, &e.Note, &requestID, &createdAt, &updatedAt); err != nil {
		return core.Expense{}, err
	}
	e.Date = parseDate(date)
	e.RequestID = requestID.String
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

// CreateExpense inserts e. When e.RequestID matches an earlier live expense
// of the same user, that expense is returned instead and created is false.
// A request id that belongs to a deleted expense is a conflict.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (saved core.Expense, created bool, err error) {
	if e.RequestID != "" {
		existing, err := r.expenseByRequestID(ctx, e.UserID, e.RequestID)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return core.Expense{}, false, err
		}
	}

	e.ID = uuid.NewString()
	ts := r.timestamp()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Amount.Cents, e.Currency, e.Category, e.Date.String(), e.Note, nullString(e.RequestID), ts, ts)
	if err != nil {
		err = translateError(err)
		// Lost a race against a concurrent request with the same key.
		if errors.Is(err, core.ErrConflict) && e.RequestID != "" {
			existing, lookupErr := r.expenseByRequestID(ctx, e.UserID, e.RequestID)
			if lookupErr == nil {
				return existing, false, nil
			}
			if errors.Is(lookupErr, core.ErrNotFound) {
				return core.Expense{}, false, fmt.Errorf("create expense: request id %q belongs to a deleted expense: %w", e.RequestID, core.ErrConflict)
			}
		}
		return core.Expense{}, false, fmt.Errorf("create expense: %w", err)
	}
	e.CreatedAt = parseTime(ts)
	e.UpdatedAt = e.CreatedAt
	return e, true, nil
}

func (r *SQLiteRepository) expenseByRequestID(ctx context.Context, userID, requestID string) (core.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = ? AND request_id = ? AND is_deleted = 0`, userID, requestID))
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by request id: %w", translateError(err))
	}
	return e, nil
}

// GetExpense returns a non-deleted expense owned by userID.
func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ? AND user_id = ? AND is_deleted = 0`, id, userID))
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", translateError(err))
	}
	return e, nil
}

// ListExpenses returns non-deleted expenses, newest date first.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string, f ExpenseFilter) ([]core.Expense, error) {
	var (
		where = []string{"user_id = ?", "is_deleted = 0"}
		args  = []any{userID}
	)
	if !f.From.IsZero() {
		where = append(where, "expense_date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "expense_date <= ?")
		args = append(args, f.To.String())
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY expense_date DESC, created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateExpense overwrites the mutable fields and queues the row for
// mirroring again.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	ts := r.timestamp()
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses
		SET amount_cents = ?, currency = ?, category = ?, expense_date = ?, note = ?, updated_at = ?, mirrored_at = NULL
		WHERE id = ? AND user_id = ? AND is_deleted = 0`,
		e.Amount.Cents, e.Currency, e.Category, e.Date.String(), e.Note, ts, e.ID, e.UserID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	if err := requireAffected(res, "update expense"); err != nil {
		return core.Expense{}, err
	}
	return r.GetExpense(ctx, e.UserID, e.ID)
}

// SoftDeleteExpense hides the expense. A row already mirrored is queued so
// the sweep can clear it from the spreadsheet.
func (r *SQLiteRepository) SoftDeleteExpense(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses
		SET is_deleted = 1, updated_at = ?,
		    mirrored_at = CASE WHEN sheets_ref = '' THEN mirrored_at ELSE NULL END
		WHERE id = ? AND user_id = ? AND is_deleted = 0`,
		r.timestamp(), id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return requireAffected(res, "delete expense")
}

// SumExpenses totals non-deleted expenses dated within [from, to].
func (r *SQLiteRepository) SumExpenses(ctx context.Context, userID string, from, to core.Date) (core.Money, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM expenses
		WHERE user_id = ? AND is_deleted = 0 AND expense_date BETWEEN ? AND ?`,
		userID, from.String(), to.String()).Scan(&total)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum expenses: %w", err)
	}
	return core.Money{Cents: total}, nil
}

// ExpenseDates lists the distinct dates on or after since that carry
// expenses for userID, including deleted ones so their totals get zeroed.
func (r *SQLiteRepository) ExpenseDates(ctx context.Context, userID string, since core.Date) ([]core.Date, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT expense_date FROM expenses WHERE user_id = ? AND expense_date >= ? ORDER BY expense_date`,
		userID, since.String())
	if err != nil {
		return nil, fmt.Errorf("list expense dates: %w", err)
	}
	defer rows.Close()

	var out []core.Date
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan expense date: %w", err)
		}
		out = append(out, parseDate(s))
	}
	return out, rows.Err()
}

// ExpenseUsers lists every user that has recorded at least one expense.
func (r *SQLiteRepository) ExpenseUsers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM expenses ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list expense users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// PendingMirror returns up to limit expenses whose spreadsheet row is
// missing or out of date, oldest first. Deleted expenses are included only
// when they were mirrored before.
func (r *SQLiteRepository) PendingMirror(ctx context.Context, limit int) ([]MirrorCandidate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.user_id, e.amount_cents, e.currency, e.category, e.expense_date, e.note, e.request_id,
		       e.created_at, e.updated_at, u.email, e.sheets_ref, e.is_deleted
		FROM expenses e JOIN users u ON u.id = e.user_id
		WHERE e.mirrored_at IS NULL AND (e.is_deleted = 0 OR e.sheets_ref <> '')
		ORDER BY e.created_at
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending mirror: %w", err)
	}
	defer rows.Close()

	var out []MirrorCandidate
	for rows.Next() {
		var (
			c         MirrorCandidate
			date      string
			requestID sql.NullString
			createdAt string
		)
		e := &c.Expense
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount.Cents, &e.Currency, &e.Category, &date, &e.Note, &requestID,
			&createdAt, &c.version, &c.UserEmail, &c.Ref, &c.Deleted); err != nil {
			return nil, fmt.Errorf("scan pending mirror: %w", err)
		}
		e.Date = parseDate(date)
		e.RequestID = requestID.String
		e.CreatedAt = parseTime(createdAt)
		e.UpdatedAt = parseTime(c.version)
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkMirrored stores the spreadsheet reference written for c. When the
// expense changed after c was read, the row stays pending so the sweep
// picks up the newer values.
func (r *SQLiteRepository) MarkMirrored(ctx context.Context, c MirrorCandidate, ref string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses
		SET sheets_ref = ?, mirrored_at = CASE WHEN updated_at = ? THEN ? ELSE NULL END
		WHERE id = ?`,
		ref, c.version, r.timestamp(), c.Expense.ID)
	if err != nil {
		return fmt.Errorf("mark mirrored: %w", err)
	}
	return requireAffected(res, "mark mirrored")
}
