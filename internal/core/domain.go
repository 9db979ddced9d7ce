package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxNoteLength         = 255
	MaxCategoryNameLength = 100
	// MaxAmountCents bounds amounts to 12 significant digits with 2 decimals.
	MaxAmountCents int64 = 999_999_999_999

	DefaultCurrency      = "USD"
	DefaultTimezone      = "UTC"
	DefaultCategoryColor = "#6b7280"
)

type (
	User struct {
		ID           string    `json:"id"`
		Email        string    `json:"email"`
		FullName     string    `json:"full_name,omitempty"`
		PasswordHash string    `json:"-"`
		IsActive     bool      `json:"is_active"`
		IsAdmin      bool      `json:"is_admin"`
		CreatedAt    time.Time `json:"created_at"`
		UpdatedAt    time.Time `json:"updated_at"`
	}

	Preferences struct {
		UserID    string    `json:"-"`
		Currency  string    `json:"preferred_currency"`
		Timezone  string    `json:"timezone"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	// Category is either a shared default (UserID empty) or owned by one user.
	Category struct {
		ID        string    `json:"id"`
		UserID    string    `json:"-"`
		Name      string    `json:"name"`
		Color     string    `json:"color,omitempty"`
		Icon      string    `json:"icon,omitempty"`
		IsDefault bool      `json:"is_default"`
		CreatedAt time.Time `json:"created_at"`
	}

	Expense struct {
		ID        string    `json:"id"`
		UserID    string    `json:"-"`
		Amount    Money     `json:"amount"`
		Currency  string    `json:"currency"`
		Category  string    `json:"category"`
		Date      Date      `json:"date"`
		Note      string    `json:"note,omitempty"`
		RequestID string    `json:"-"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"-"`
	}
)

var (
	ErrInvalidAmount      = errors.New("amount must be greater than zero and have at most 12 digits")
	ErrInvalidCurrency    = errors.New("unsupported currency")
	ErrInvalidDate        = errors.New("invalid date, expected YYYY-MM-DD")
	ErrDateInFuture       = errors.New("date cannot be in the future")
	ErrNoteTooLong        = errors.New("note must be at most 255 characters")
	ErrEmptyCategory      = errors.New("category is required")
	ErrUnknownCategory    = errors.New("category does not exist")
	ErrCategoryTooLong    = errors.New("category name must be at most 100 characters")
	ErrInvalidColor       = errors.New("color must be a hex value like #aabbcc")
	ErrInvalidTimezone    = errors.New("unknown timezone")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password does not meet the policy")
	ErrInvalidPeriod      = errors.New("invalid period type")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInactiveAccount    = errors.New("account is inactive")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// IsValidation reports whether err stems from rejected user input.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrInvalidCurrency, ErrInvalidDate, ErrDateInFuture,
		ErrNoteTooLong, ErrEmptyCategory, ErrUnknownCategory, ErrCategoryTooLong,
		ErrInvalidColor, ErrInvalidTimezone, ErrInvalidEmail, ErrWeakPassword, ErrInvalidPeriod,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Validate checks an expense before it is stored. today is the current
// calendar date in the owner's timezone.
func (e Expense) Validate(today Date) error {
	if e.Amount.Cents <= 0 || e.Amount.Cents > MaxAmountCents {
		return ErrInvalidAmount
	}
	if !IsSupportedCurrency(e.Currency) {
		return ErrInvalidCurrency
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if e.Date.After(today.Time) {
		return ErrDateInFuture
	}
	if utf8.RuneCountInString(e.Note) > MaxNoteLength {
		return ErrNoteTooLong
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyCategory
	}
	if utf8.RuneCountInString(name) > MaxCategoryNameLength {
		return ErrCategoryTooLong
	}
	if c.Color != "" && !IsHexColor(c.Color) {
		return ErrInvalidColor
	}
	return nil
}

// Location resolves the preference timezone, falling back to UTC.
func (p Preferences) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DefaultPreferences returns the preferences a new user starts with.
func DefaultPreferences(userID string) Preferences {
	return Preferences{UserID: userID, Currency: DefaultCurrency, Timezone: DefaultTimezone}
}
