// Package google mirrors expenses into a Google Sheets spreadsheet using a
// service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendhelm/internal/log"
	"spendhelm/internal/sheets"
)

type Config struct {
	SpreadsheetID string
	// SheetName is the base tab name; rows land in "<year> <SheetName>".
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	logger        *log.Logger
}

var _ sheets.ExpenseMirror = (*Client)(nil)

// New creates a client from service account credentials. Extra options are
// appended after the credentials, so tests can point it at another endpoint.
func New(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	if len(opts) == 0 {
		creds, err := credentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = "Expenses"
	}
	logger.InfoContext(ctx, "Google Sheets mirror ready", "sheet", base)
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheetBase: base, logger: logger}, nil
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials")
	}
}

// Append adds row to the tab of the expense's year.
func (c *Client) Append(ctx context.Context, row sheets.MirrorRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if row.ExpenseID == "" || row.Date.IsZero() {
		return "", errors.New("row needs an expense id and a date")
	}

	sheet := yearPrefixedName(c.sheetBase, row.Date.Year())
	rng := fmt.Sprintf("%s!A:G", sheet)
	vr := &gsheet.ValueRange{Values: [][]any{row.Values()}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", sheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.DebugContext(ctx, "Mirrored expense",
		log.FieldExpenseID, row.ExpenseID,
		log.FieldSheetsRef, ref)
	return ref, nil
}

// Update overwrites the row at ref. When the expense moved to another year
// the old row is cleared and the row is appended to the new year's tab.
func (c *Client) Update(ctx context.Context, ref string, row sheets.MirrorRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if row.ExpenseID == "" || row.Date.IsZero() {
		return "", errors.New("row needs an expense id and a date")
	}
	if strings.TrimSpace(ref) == "" {
		return c.Append(ctx, row)
	}

	if refSheet(ref) != yearPrefixedName(c.sheetBase, row.Date.Year()) {
		if err := c.Clear(ctx, ref); err != nil {
			return "", err
		}
		return c.Append(ctx, row)
	}

	vr := &gsheet.ValueRange{Values: [][]any{row.Values()}}
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, ref, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", ref, err)
	}

	newRef := ref
	if resp.UpdatedRange != "" {
		newRef = resp.UpdatedRange
	}
	c.logger.DebugContext(ctx, "Updated mirrored expense",
		log.FieldExpenseID, row.ExpenseID,
		log.FieldSheetsRef, newRef)
	return newRef, nil
}

// Clear blanks the cells at ref. The row itself stays so later references
// keep pointing at the same rows.
func (c *Client) Clear(ctx context.Context, ref string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, ref, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", ref, err)
	}
	c.logger.DebugContext(ctx, "Cleared mirrored row", log.FieldSheetsRef, ref)
	return nil
}

// refSheet returns the tab name of an A1 reference such as
// "'2024 Expenses'!A7:G7".
func refSheet(ref string) string {
	i := strings.LastIndex(ref, "!")
	if i < 0 {
		return ""
	}
	name := ref[:i]
	if len(name) >= 2 && name[0] == '\'' && name[len(name)-1] == '\'' {
		name = strings.ReplaceAll(name[1:len(name)-1], "''", "'")
	}
	return name
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if len(base) >= 5 && base[4] == ' ' {
		if y, err := strconv.Atoi(base[:4]); err == nil && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
