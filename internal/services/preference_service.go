package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"spendhelm/internal/core"
)

// PreferencesUpdate carries the fields to change; nil leaves a field as is.
type PreferencesUpdate struct {
	Currency *string `json:"preferred_currency"`
	Timezone *string `json:"timezone"`
}

// PreferenceService reads and updates per-user currency and timezone.
type PreferenceService struct {
	store PreferenceStore
}

func NewPreferenceService(store PreferenceStore) *PreferenceService {
	return &PreferenceService{store: store}
}

// Get returns the user's preferences, creating the defaults on first access.
func (s *PreferenceService) Get(ctx context.Context, userID string) (core.Preferences, error) {
	p, err := s.store.GetPreferences(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return s.store.UpsertPreferences(ctx, core.DefaultPreferences(userID))
	}
	return p, err
}

func (s *PreferenceService) Update(ctx context.Context, userID string, u PreferencesUpdate) (core.Preferences, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return core.Preferences{}, err
	}
	if u.Currency != nil {
		code, err := core.NormalizeCurrency(*u.Currency)
		if err != nil {
			return core.Preferences{}, err
		}
		p.Currency = code
	}
	if u.Timezone != nil {
		tz := strings.TrimSpace(*u.Timezone)
		if err := core.ValidateTimezone(tz); err != nil {
			return core.Preferences{}, err
		}
		p.Timezone = tz
	}
	saved, err := s.store.UpsertPreferences(ctx, p)
	if err != nil {
		return core.Preferences{}, fmt.Errorf("save preferences: %w", err)
	}
	return saved, nil
}
