package sheets

import (
	"context"

	"spendhelm/internal/core"
)

// MirrorRow is one expense as written to the spreadsheet.
type MirrorRow struct {
	ExpenseID string
	UserEmail string
	Date      core.Date
	Category  string
	Amount    core.Money
	Currency  string
	Note      string
}

func RowFromExpense(e core.Expense, userEmail string) MirrorRow {
	return MirrorRow{
		ExpenseID: e.ID,
		UserEmail: userEmail,
		Date:      e.Date,
		Category:  e.Category,
		Amount:    e.Amount,
		Currency:  e.Currency,
		Note:      e.Note,
	}
}

// Values returns the cells in column order: date, category, amount,
// currency, note, expense id, user email.
func (r MirrorRow) Values() []any {
	return []any{r.Date.String(), r.Category, r.Amount.Float(), r.Currency, r.Note, r.ExpenseID, r.UserEmail}
}

// ExpenseMirror keeps one spreadsheet row per expense. Append and Update
// return the reference of the range now holding the row.
type ExpenseMirror interface {
	Append(ctx context.Context, row MirrorRow) (ref string, err error)
	// Update rewrites the row at ref. It may move the row, for example when
	// the expense changed year, and then returns the new reference.
	Update(ctx context.Context, ref string, row MirrorRow) (newRef string, err error)
	// Clear blanks the row at ref.
	Clear(ctx context.Context, ref string) error
}
