package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"spendhelm/internal/auth"
	"spendhelm/internal/core"
	"spendhelm/internal/log"
)

// reservedPrefix marks names only admins may create.
const reservedPrefix = "Default:"

type CategoryInput struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// CategoryService manages user categories next to the shared defaults.
type CategoryService struct {
	store  CategoryStore
	logger *log.Logger
}

func NewCategoryService(store CategoryStore, logger *log.Logger) *CategoryService {
	if logger == nil {
		logger = log.Discard()
	}
	return &CategoryService{store: store, logger: logger.WithComponent(log.ComponentCategory)}
}

// List returns the defaults followed by the caller's own categories.
func (s *CategoryService) List(ctx context.Context, session auth.Session) ([]core.Category, error) {
	return s.store.ListCategories(ctx, session.UserID)
}

// Get returns a category the caller may see: a default, their own, or any
// category for admins.
func (s *CategoryService) Get(ctx context.Context, session auth.Session, id string) (core.Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	if c.IsDefault || session.CanAccess(c.UserID) {
		return c, nil
	}
	return core.Category{}, fmt.Errorf("view category: %w", core.ErrForbidden)
}

// Create adds a category for the caller. Creating a name the caller already
// owns returns the existing category.
func (s *CategoryService) Create(ctx context.Context, session auth.Session, in CategoryInput) (core.Category, error) {
	c := core.Category{
		UserID: session.UserID,
		Name:   strings.TrimSpace(in.Name),
		Color:  strings.ToLower(strings.TrimSpace(in.Color)),
		Icon:   strings.TrimSpace(in.Icon),
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if !session.IsAdmin && strings.HasPrefix(c.Name, reservedPrefix) {
		return core.Category{}, fmt.Errorf("create default category: %w", core.ErrForbidden)
	}

	existing, err := s.store.FindCategoryByName(ctx, session.UserID, c.Name)
	switch {
	case err == nil && !existing.IsDefault:
		return existing, nil
	case err == nil && !session.IsAdmin:
		return core.Category{}, fmt.Errorf("category %q clashes with a default: %w", c.Name, core.ErrConflict)
	case err != nil && !errors.Is(err, core.ErrNotFound):
		return core.Category{}, err
	}

	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	s.logger.InfoContext(ctx, "Category created",
		log.FieldUserID, session.UserID,
		log.FieldCategory, created.Name)
	return created, nil
}

// Delete removes a category. Defaults are admin-only.
func (s *CategoryService) Delete(ctx context.Context, session auth.Session, id string) error {
	c, err := s.Get(ctx, session, id)
	if err != nil {
		return err
	}
	if c.IsDefault && !session.IsAdmin {
		return fmt.Errorf("delete default category: %w", core.ErrForbidden)
	}
	if !c.IsDefault && !session.CanAccess(c.UserID) {
		return fmt.Errorf("delete category: %w", core.ErrForbidden)
	}
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Category deleted",
		log.FieldUserID, session.UserID,
		log.FieldCategory, c.Name)
	return nil
}
