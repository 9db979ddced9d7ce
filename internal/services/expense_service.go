package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"spendhelm/internal/amqp"
	"spendhelm/internal/auth"
	"spendhelm/internal/cache"
	"spendhelm/internal/core"
	"spendhelm/internal/log"
	"spendhelm/internal/storage"
)

type ExpenseInput struct {
	Amount    core.Money `json:"amount"`
	Currency  string     `json:"currency"`
	Category  string     `json:"category"`
	Date      core.Date  `json:"date"`
	Note      string     `json:"note"`
	RequestID string     `json:"request_id"`
}

// ExpenseUpdate carries the fields to change; nil leaves a field as is.
type ExpenseUpdate struct {
	Amount   *core.Money `json:"amount"`
	Currency *string     `json:"currency"`
	Category *string     `json:"category"`
	Date     *core.Date  `json:"date"`
	Note     *string     `json:"note"`
}

// ExpenseService validates and stores expenses, keeps the per-user snapshot
// cache fresh, and triggers aggregate recomputation after every change.
type ExpenseService struct {
	store      ExpenseStore
	publisher  EventPublisher
	recomputer Recomputer
	snapshots  *cache.LRUCache[[]core.Expense]
	logger     *log.Logger
	now        func() time.Time
}

// NewExpenseService wires the service. publisher, recomputer and snapshots
// may be nil. Without a publisher, aggregates are recomputed inline.
func NewExpenseService(store ExpenseStore, publisher EventPublisher, recomputer Recomputer, snapshots *cache.LRUCache[[]core.Expense], logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExpenseService{
		store:      store,
		publisher:  publisher,
		recomputer: recomputer,
		snapshots:  snapshots,
		logger:     logger.WithComponent(log.ComponentExpense),
		now:        time.Now,
	}
}

func (s *ExpenseService) Create(ctx context.Context, session auth.Session, in ExpenseInput) (core.Expense, bool, error) {
	prefs, err := s.preferences(ctx, session.UserID)
	if err != nil {
		return core.Expense{}, false, err
	}

	currency := in.Currency
	if strings.TrimSpace(currency) == "" {
		currency = prefs.Currency
	}
	currency, err = core.NormalizeCurrency(currency)
	if err != nil {
		return core.Expense{}, false, err
	}

	e := core.Expense{
		UserID:    session.UserID,
		Amount:    in.Amount,
		Currency:  currency,
		Category:  strings.TrimSpace(in.Category),
		Date:      in.Date,
		Note:      strings.TrimSpace(in.Note),
		RequestID: strings.TrimSpace(in.RequestID),
	}
	if err := s.validate(ctx, e, prefs); err != nil {
		return core.Expense{}, false, err
	}

	saved, created, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, false, fmt.Errorf("save expense: %w", err)
	}
	if created {
		s.logger.InfoContext(ctx, "Expense created", log.NewFields().
			WithUser(session.UserID).
			WithExpense(saved.ID, saved.Amount.Cents, saved.Currency, saved.Category).
			ToSlice()...)
		s.changed(ctx, saved.UserID, saved.ID, amqp.ActionCreated, saved.Date)
	}
	return saved, created, nil
}

func (s *ExpenseService) validate(ctx context.Context, e core.Expense, prefs core.Preferences) error {
	if err := e.Validate(core.Today(s.now(), prefs.Location())); err != nil {
		return err
	}
	if _, err := s.store.FindCategoryByName(ctx, e.UserID, e.Category); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("%w: %q", core.ErrUnknownCategory, e.Category)
		}
		return err
	}
	return nil
}

func (s *ExpenseService) Get(ctx context.Context, session auth.Session, id string) (core.Expense, error) {
	return s.store.GetExpense(ctx, session.UserID, id)
}

func (s *ExpenseService) List(ctx context.Context, session auth.Session, f storage.ExpenseFilter) ([]core.Expense, error) {
	return s.store.ListExpenses(ctx, session.UserID, f)
}

func (s *ExpenseService) Update(ctx context.Context, session auth.Session, id string, u ExpenseUpdate) (core.Expense, error) {
	current, err := s.store.GetExpense(ctx, session.UserID, id)
	if err != nil {
		return core.Expense{}, err
	}
	prefs, err := s.preferences(ctx, session.UserID)
	if err != nil {
		return core.Expense{}, err
	}

	next := current
	if u.Amount != nil {
		next.Amount = *u.Amount
	}
	if u.Currency != nil {
		if next.Currency, err = core.NormalizeCurrency(*u.Currency); err != nil {
			return core.Expense{}, err
		}
	}
	if u.Category != nil {
		next.Category = strings.TrimSpace(*u.Category)
	}
	if u.Date != nil {
		next.Date = *u.Date
	}
	if u.Note != nil {
		next.Note = strings.TrimSpace(*u.Note)
	}
	if err := s.validate(ctx, next, prefs); err != nil {
		return core.Expense{}, err
	}

	saved, err := s.store.UpdateExpense(ctx, next)
	if err != nil {
		return core.Expense{}, err
	}
	s.logger.InfoContext(ctx, "Expense updated", log.NewFields().
		WithUser(session.UserID).
		WithExpense(saved.ID, saved.Amount.Cents, saved.Currency, saved.Category).
		ToSlice()...)
	s.changed(ctx, saved.UserID, saved.ID, amqp.ActionUpdated, current.Date, saved.Date)
	return saved, nil
}

func (s *ExpenseService) Delete(ctx context.Context, session auth.Session, id string) error {
	current, err := s.store.GetExpense(ctx, session.UserID, id)
	if err != nil {
		return err
	}
	if err := s.store.SoftDeleteExpense(ctx, session.UserID, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Expense deleted",
		log.FieldUserID, session.UserID,
		log.FieldExpenseID, id)
	s.changed(ctx, session.UserID, id, amqp.ActionDeleted, current.Date)
	return nil
}

// Snapshot returns every live expense of userID, served from the cache when
// possible. Callers must treat the slice as read-only.
func (s *ExpenseService) Snapshot(ctx context.Context, userID string) ([]core.Expense, error) {
	load := func(ctx context.Context) ([]core.Expense, error) {
		return s.store.ListExpenses(ctx, userID, storage.ExpenseFilter{})
	}
	if s.snapshots == nil {
		return load(ctx)
	}
	return s.snapshots.GetOrLoad(ctx, userID, load)
}

func (s *ExpenseService) preferences(ctx context.Context, userID string) (core.Preferences, error) {
	p, err := s.store.GetPreferences(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return core.DefaultPreferences(userID), nil
	}
	if err != nil {
		return core.Preferences{}, fmt.Errorf("load preferences: %w", err)
	}
	return p, nil
}

// changed drops the cached snapshot and schedules aggregate recomputation.
// The mutation has already been stored, so failures here are only logged.
func (s *ExpenseService) changed(ctx context.Context, userID, expenseID string, action amqp.Action, dates ...core.Date) {
	if s.snapshots != nil {
		s.snapshots.Delete(userID)
	}

	msg := amqp.NewExpenseChangedMessage(userID, expenseID, action, dates...)
	if s.publisher != nil {
		err := s.publisher.PublishExpenseChanged(ctx, msg)
		if err == nil {
			return
		}
		s.logger.ErrorContext(ctx, "Failed to publish expense change, recomputing inline",
			log.FieldUserID, userID,
			log.FieldExpenseID, expenseID,
			log.FieldError, err)
	}
	if s.recomputer == nil {
		return
	}

	parsed, _ := msg.ParsedDates()
	for _, d := range parsed {
		if _, err := s.recomputer.RecomputeForDate(ctx, userID, d); err != nil {
			s.logger.ErrorContext(ctx, "Inline aggregate recompute failed",
				log.FieldUserID, userID,
				log.FieldDate, d.String(),
				log.FieldError, err)
		}
	}
}

// Close releases the publisher connection when it has one.
func (s *ExpenseService) Close() error {
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}
