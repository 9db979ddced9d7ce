package core

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"
)

var supportedCurrencies = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "JPY": {}, "CAD": {}, "AUD": {}, "CHF": {},
	"CNY": {}, "SEK": {}, "NZD": {}, "NGN": {}, "MXN": {}, "SGD": {}, "HKD": {},
	"NOK": {}, "KRW": {}, "TRY": {}, "RUB": {}, "INR": {}, "BRL": {}, "ZAR": {},
}

// IsSupportedCurrency reports whether code is an accepted upper-case ISO 4217 code.
func IsSupportedCurrency(code string) bool {
	_, ok := supportedCurrencies[code]
	return ok
}

// NormalizeCurrency upper-cases code and checks it is supported.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !IsSupportedCurrency(code) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return code, nil
}

// ValidateTimezone checks that tz names a loadable IANA location.
func ValidateTimezone(tz string) error {
	if strings.TrimSpace(tz) == "" {
		return ErrInvalidTimezone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	return nil
}

func IsHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		if !unicode.Is(unicode.ASCII_Hex_Digit, r) {
			return false
		}
	}
	return true
}

// NormalizeEmail lower-cases and validates an address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// PasswordPolicy describes the rules a new password must satisfy.
type PasswordPolicy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireNumber  bool
	RequireSpecial bool
}

func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: 8, RequireUpper: true, RequireLower: true, RequireNumber: true, RequireSpecial: true}
}

// Check returns ErrWeakPassword wrapped with the first unmet requirement.
func (p PasswordPolicy) Check(password string) error {
	if len([]rune(password)) < p.MinLength {
		return fmt.Errorf("%w: minimum length %d", ErrWeakPassword, p.MinLength)
	}
	var upper, lower, number, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			number = true
		case !unicode.IsLetter(r) && !unicode.IsSpace(r) && r != '_':
			special = true
		}
	}
	switch {
	case p.RequireUpper && !upper:
		return fmt.Errorf("%w: at least one uppercase letter", ErrWeakPassword)
	case p.RequireLower && !lower:
		return fmt.Errorf("%w: at least one lowercase letter", ErrWeakPassword)
	case p.RequireNumber && !number:
		return fmt.Errorf("%w: at least one number", ErrWeakPassword)
	case p.RequireSpecial && !special:
		return fmt.Errorf("%w: at least one special character", ErrWeakPassword)
	}
	return nil
}
