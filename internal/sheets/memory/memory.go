// Package memory keeps mirrored rows in process for tests and local runs.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"spendhelm/internal/sheets"
)

// Store keeps rows by position. A cleared row keeps its slot, like a blanked
// spreadsheet row.
type Store struct {
	mu    sync.Mutex
	rows  []sheets.MirrorRow
	blank []bool
	err   error
}

var _ sheets.ExpenseMirror = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Append stores the row and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, row sheets.MirrorRow) (string, error) {
	if row.ExpenseID == "" {
		return "", errors.New("missing expense id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.rows = append(s.rows, row)
	s.blank = append(s.blank, false)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Update replaces the row at ref in place.
func (s *Store) Update(_ context.Context, ref string, row sheets.MirrorRow) (string, error) {
	if row.ExpenseID == "" {
		return "", errors.New("missing expense id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	i, err := s.index(ref)
	if err != nil {
		return "", err
	}
	s.rows[i] = row
	s.blank[i] = false
	return ref, nil
}

func (s *Store) Clear(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	i, err := s.index(ref)
	if err != nil {
		return err
	}
	s.rows[i] = sheets.MirrorRow{}
	s.blank[i] = true
	return nil
}

func (s *Store) index(ref string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(ref, "mem:"))
	if err != nil || !strings.HasPrefix(ref, "mem:") || n < 1 || n > len(s.rows) {
		return 0, fmt.Errorf("unknown row reference %q", ref)
	}
	return n - 1, nil
}

// FailWith makes subsequent calls return err until called with nil.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Rows returns the rows that are not blank, in sheet order.
func (s *Store) Rows() []sheets.MirrorRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sheets.MirrorRow, 0, len(s.rows))
	for i, r := range s.rows {
		if !s.blank[i] {
			out = append(out, r)
		}
	}
	return out
}
