package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"spendhelm/internal/auth"
	"spendhelm/internal/core"
	"spendhelm/internal/log"
)

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Profile   `json:"user"`
}

// Profile is a user merged with their preferences.
type Profile struct {
	core.User
	PreferredCurrency string `json:"preferred_currency"`
	Timezone          string `json:"timezone"`
}

func newProfile(u core.User, p core.Preferences) Profile {
	return Profile{User: u, PreferredCurrency: p.Currency, Timezone: p.Timezone}
}

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// AuthService handles account creation, login and password changes.
type AuthService struct {
	users  UserStore
	prefs  *PreferenceService
	tokens *auth.TokenManager
	logger *log.Logger

	Policy     core.PasswordPolicy
	BcryptCost int
}

func NewAuthService(users UserStore, tokens *auth.TokenManager, logger *log.Logger) *AuthService {
	if logger == nil {
		logger = log.Discard()
	}
	return &AuthService{
		users:  users,
		prefs:  NewPreferenceService(users),
		tokens: tokens,
		logger: logger.WithComponent(log.ComponentAuth),
		Policy: core.DefaultPasswordPolicy(),
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	email, err := core.NormalizeEmail(in.Email)
	if err != nil {
		return AuthResult{}, err
	}
	if err := s.Policy.Check(in.Password); err != nil {
		return AuthResult{}, err
	}
	hash, err := auth.HashPassword(in.Password, s.BcryptCost)
	if err != nil {
		return AuthResult{}, err
	}

	user, err := s.users.CreateUser(ctx, core.User{
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		PasswordHash: hash,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			return AuthResult{}, fmt.Errorf("email already registered: %w", core.ErrConflict)
		}
		return AuthResult{}, err
	}

	prefs, err := s.prefs.Get(ctx, user.ID)
	if err != nil {
		return AuthResult{}, err
	}

	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, user.ID)
	return s.issue(user, prefs)
}

// Login verifies credentials. Unknown emails and wrong passwords produce the
// same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	invalid := fmt.Errorf("%w: %w", core.ErrUnauthorized, core.ErrInvalidCredentials)

	email, err := core.NormalizeEmail(email)
	if err != nil {
		return AuthResult{}, invalid
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return AuthResult{}, invalid
	}
	if err != nil {
		return AuthResult{}, err
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		s.logger.WarnContext(ctx, "Failed login attempt", log.FieldUserID, user.ID)
		return AuthResult{}, invalid
	}
	if !user.IsActive {
		return AuthResult{}, fmt.Errorf("%w: %w", core.ErrUnauthorized, core.ErrInactiveAccount)
	}

	prefs, err := s.prefs.Get(ctx, user.ID)
	if err != nil {
		return AuthResult{}, err
	}
	return s.issue(user, prefs)
}

func (s *AuthService) issue(user core.User, prefs core.Preferences) (AuthResult, error) {
	token, expires, err := s.tokens.Issue(auth.Session{UserID: user.ID, Email: user.Email, IsAdmin: user.IsAdmin})
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Token: token, ExpiresAt: expires, User: newProfile(user, prefs)}, nil
}

// Me returns the profile of the session's user.
func (s *AuthService) Me(ctx context.Context, session auth.Session) (Profile, error) {
	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		return Profile{}, err
	}
	if !user.IsActive {
		return Profile{}, fmt.Errorf("%w: %w", core.ErrUnauthorized, core.ErrInactiveAccount)
	}
	prefs, err := s.prefs.Get(ctx, user.ID)
	if err != nil {
		return Profile{}, err
	}
	return newProfile(user, prefs), nil
}

func (s *AuthService) ChangePassword(ctx context.Context, session auth.Session, current, next string) error {
	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		return err
	}
	if err := auth.CheckPassword(user.PasswordHash, current); err != nil {
		return fmt.Errorf("%w: %w", core.ErrUnauthorized, core.ErrInvalidCredentials)
	}
	if err := s.Policy.Check(next); err != nil {
		return err
	}
	hash, err := auth.HashPassword(next, s.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Password changed", log.FieldUserID, user.ID)
	return nil
}
