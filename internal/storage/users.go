package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"spendhelm/internal/core"
)

const userColumns = `id, email, full_name, password_hash, is_active, is_admin, created_at, updated_at`

func scanUser(s rowScanner) (core.User, error) {
	var (
		u                    core.User
		active, admin        int
		createdAt, updatedAt string
	)
	if err := s.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &active, &admin, &createdAt, &updatedAt); err != nil {
		return core.User{}, err
	}
	u.IsActive = active == 1
	u.IsAdmin = admin == 1
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return u, nil
}

// CreateUser inserts u with a fresh ID. A taken email yields core.ErrConflict.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.ID = uuid.NewString()
	ts := r.timestamp()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FullName, u.PasswordHash, boolToInt(u.IsActive), boolToInt(u.IsAdmin), ts, ts)
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", translateError(err))
	}
	u.CreatedAt = parseTime(ts)
	u.UpdatedAt = u.CreatedAt
	return u, nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", translateError(err))
	}
	return u, nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", translateError(err))
	}
	return u, nil
}

func (r *SQLiteRepository) UpdatePassword(ctx context.Context, userID, hash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, hash, r.timestamp(), userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireAffected(res, "update password")
}

// GetPreferences returns core.ErrNotFound when the user has none yet.
func (r *SQLiteRepository) GetPreferences(ctx context.Context, userID string) (core.Preferences, error) {
	var (
		p                    core.Preferences
		createdAt, updatedAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, preferred_currency, timezone, created_at, updated_at FROM user_preferences WHERE user_id = ?`, userID).
		Scan(&p.UserID, &p.Currency, &p.Timezone, &createdAt, &updatedAt)
	if err != nil {
		return core.Preferences{}, fmt.Errorf("get preferences: %w", translateError(err))
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

func (r *SQLiteRepository) UpsertPreferences(ctx context.Context, p core.Preferences) (core.Preferences, error) {
	ts := r.timestamp()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, preferred_currency, timezone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			preferred_currency = excluded.preferred_currency,
			timezone = excluded.timezone,
			updated_at = excluded.updated_at`,
		p.UserID, p.Currency, p.Timezone, ts, ts)
	if err != nil {
		return core.Preferences{}, fmt.Errorf("upsert preferences: %w", translateError(err))
	}
	return r.GetPreferences(ctx, p.UserID)
}
