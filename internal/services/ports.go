package services

import (
	"context"

	"spendhelm/internal/amqp"
	"spendhelm/internal/core"
	"spendhelm/internal/storage"
)

// UserStore persists accounts and their preferences.
type UserStore interface {
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	GetUserByID(ctx context.Context, id string) (core.User, error)
	UpdatePassword(ctx context.Context, userID, hash string) error
	PreferenceStore
}

type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID string) (core.Preferences, error)
	UpsertPreferences(ctx context.Context, p core.Preferences) (core.Preferences, error)
}

type CategoryStore interface {
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
	GetCategory(ctx context.Context, id string) (core.Category, error)
	FindCategoryByName(ctx context.Context, userID, name string) (core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, bool, error)
	GetExpense(ctx context.Context, userID, id string) (core.Expense, error)
	ListExpenses(ctx context.Context, userID string, f storage.ExpenseFilter) ([]core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	SoftDeleteExpense(ctx context.Context, userID, id string) error
	FindCategoryByName(ctx context.Context, userID, name string) (core.Category, error)
	GetPreferences(ctx context.Context, userID string) (core.Preferences, error)
}

// EventPublisher announces expense changes to the aggregate worker.
type EventPublisher interface {
	PublishExpenseChanged(ctx context.Context, msg *amqp.ExpenseChangedMessage) error
}

// Recomputer refreshes stored aggregates synchronously.
type Recomputer interface {
	RecomputeForDate(ctx context.Context, userID string, date core.Date) ([]core.Aggregate, error)
}
