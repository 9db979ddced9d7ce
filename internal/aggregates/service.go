package aggregates

import (
	"context"
	"fmt"

	"spendhelm/internal/auth"
	"spendhelm/internal/core"
	"spendhelm/internal/storage"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// ListFilter selects stored aggregates for one user. An empty UserID means
// the caller's own.
type ListFilter struct {
	UserID     string
	PeriodType core.PeriodType
	From       core.Date
	To         core.Date
	Limit      int
	Offset     int
}

// Service is the read side of stored aggregates.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context, session auth.Session, f ListFilter) ([]core.Aggregate, error) {
	userID := f.UserID
	if userID == "" {
		userID = session.UserID
	}
	if !session.CanAccess(userID) {
		return nil, fmt.Errorf("list aggregates: %w", core.ErrForbidden)
	}
	if f.PeriodType != "" {
		if _, err := core.ParsePeriodType(string(f.PeriodType)); err != nil {
			return nil, err
		}
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultListLimit
	case f.Limit > MaxListLimit:
		f.Limit = MaxListLimit
	}

	return s.store.ListAggregates(ctx, storage.AggregateFilter{
		UserID:     userID,
		PeriodType: f.PeriodType,
		From:       f.From,
		To:         f.To,
		Limit:      f.Limit,
		Offset:     f.Offset,
	})
}

// Get returns the aggregate of type p starting at start. start is snapped to
// the beginning of its period.
func (s *Service) Get(ctx context.Context, session auth.Session, userID string, p core.PeriodType, start core.Date) (core.Aggregate, error) {
	if userID == "" {
		userID = session.UserID
	}
	if !session.CanAccess(userID) {
		return core.Aggregate{}, fmt.Errorf("get aggregate: %w", core.ErrForbidden)
	}
	if _, err := core.ParsePeriodType(string(p)); err != nil {
		return core.Aggregate{}, err
	}
	return s.store.GetAggregate(ctx, userID, p, p.Start(start))
}
