package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"spendhelm/internal/core"
)

const categoryColumns = `id, user_id, name, color, icon, created_at`

func scanCategory(s rowScanner) (core.Category, error) {
	var (
		c         core.Category
		userID    sql.NullString
		createdAt string
	)
	if err := s.Scan(&c.ID, &userID, &c.Name, &c.Color, &c.Icon, &createdAt); err != nil {
		return core.Category{}, err
	}
	c.UserID = userID.String
	c.IsDefault = !userID.Valid
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

// ListCategories returns the shared defaults followed by the user's own
// categories, each group ordered by name.
func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories
		 WHERE user_id IS NULL OR user_id = ?
		 ORDER BY user_id IS NOT NULL, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", translateError(err))
	}
	return c, nil
}

// FindCategoryByName looks up a category visible to userID by exact name,
// preferring the user's own over a default of the same name.
func (r *SQLiteRepository) FindCategoryByName(ctx context.Context, userID, name string) (core.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories
		 WHERE name = ? AND (user_id IS NULL OR user_id = ?)
		 ORDER BY user_id IS NULL
		 LIMIT 1`, name, userID))
	if err != nil {
		return core.Category{}, fmt.Errorf("find category: %w", translateError(err))
	}
	return c, nil
}

// CreateCategory stores c. An empty UserID creates a shared default.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.ID = uuid.NewString()
	ts := r.timestamp()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, nullString(c.UserID), c.Name, c.Color, c.Icon, ts)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", translateError(err))
	}
	c.IsDefault = c.UserID == ""
	c.CreatedAt = parseTime(ts)
	return c, nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return requireAffected(res, "delete category")
}
