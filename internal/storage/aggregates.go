package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"spendhelm/internal/core"
)

const aggregateColumns = `id, user_id, period_type, period_start, total_cents, currency, created_at, updated_at`

// AggregateFilter narrows ListAggregates. Zero values mean no constraint.
type AggregateFilter struct {
	UserID     string
	PeriodType core.PeriodType
	From       core.Date
	To         core.Date
	Limit      int
	Offset     int
}

func scanAggregate(s rowScanner) (core.Aggregate, error) {
	var (
		a                    core.Aggregate
		periodType, start    string
		createdAt, updatedAt string
	)
	if err := s.Scan(&a.ID, &a.UserID, &periodType, &start, &a.Total.Cents, &a.Currency, &createdAt, &updatedAt); err != nil {
		return core.Aggregate{}, err
	}
	a.PeriodType = core.PeriodType(periodType)
	a.PeriodStart = parseDate(start)
	a.PeriodEnd = a.PeriodType.End(a.PeriodStart)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return a, nil
}

// UpsertAggregate inserts or replaces the total for (user, type, start).
func (r *SQLiteRepository) UpsertAggregate(ctx context.Context, a core.Aggregate) (core.Aggregate, error) {
	ts := r.timestamp()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO aggregates (`+aggregateColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, period_type, period_start) DO UPDATE SET
			total_cents = excluded.total_cents,
			currency = excluded.currency,
			updated_at = excluded.updated_at`,
		uuid.NewString(), a.UserID, string(a.PeriodType), a.PeriodStart.String(), a.Total.Cents, a.Currency, ts, ts)
	if err != nil {
		return core.Aggregate{}, fmt.Errorf("upsert aggregate: %w", translateError(err))
	}
	return r.GetAggregate(ctx, a.UserID, a.PeriodType, a.PeriodStart)
}

func (r *SQLiteRepository) GetAggregate(ctx context.Context, userID string, p core.PeriodType, start core.Date) (core.Aggregate, error) {
	a, err := scanAggregate(r.db.QueryRowContext(ctx,
		`SELECT `+aggregateColumns+` FROM aggregates WHERE user_id = ? AND period_type = ? AND period_start = ?`,
		userID, string(p), start.String()))
	if err != nil {
		return core.Aggregate{}, fmt.Errorf("get aggregate: %w", translateError(err))
	}
	return a, nil
}

// ListAggregates returns matching aggregates, most recent period first.
func (r *SQLiteRepository) ListAggregates(ctx context.Context, f AggregateFilter) ([]core.Aggregate, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.PeriodType != "" {
		where = append(where, "period_type = ?")
		args = append(args, string(f.PeriodType))
	}
	if !f.From.IsZero() {
		where = append(where, "period_start >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "period_start <= ?")
		args = append(args, f.To.String())
	}

	query := `SELECT ` + aggregateColumns + ` FROM aggregates`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY period_start DESC, period_type`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list aggregates: %w", err)
	}
	defer rows.Close()

	out := []core.Aggregate{}
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
