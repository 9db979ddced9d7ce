package client

import (
	"time"

	"spendhelm/internal/core"
)

// Request and response bodies of the JSON API, as seen from the client side.

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type AuthResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Profile   `json:"user"`
}

// Profile is the user record merged with their preferences.
type Profile struct {
	core.User
	PreferredCurrency string `json:"preferred_currency"`
	Timezone          string `json:"timezone"`
}

// PreferencesUpdate leaves nil fields unchanged.
type PreferencesUpdate struct {
	Currency *string `json:"preferred_currency,omitempty"`
	Timezone *string `json:"timezone,omitempty"`
}

type ExpenseInput struct {
	Amount    core.Money `json:"amount"`
	Currency  string     `json:"currency,omitempty"`
	Category  string     `json:"category,omitempty"`
	Date      core.Date  `json:"date"`
	Note      string     `json:"note,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
}

// ExpenseUpdate leaves nil fields unchanged.
type ExpenseUpdate struct {
	Amount   *core.Money `json:"amount,omitempty"`
	Currency *string     `json:"currency,omitempty"`
	Category *string     `json:"category,omitempty"`
	Date     *core.Date  `json:"date,omitempty"`
	Note     *string     `json:"note,omitempty"`
}

type CategoryInput struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
}
