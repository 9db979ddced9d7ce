package worker

import (
	"context"
	"fmt"

	"spendhelm/internal/amqp"
	"spendhelm/internal/core"
	"spendhelm/internal/log"
	"spendhelm/internal/sheets"
	"spendhelm/internal/storage"
)

// Recomputer is the aggregate maintenance the worker drives.
type Recomputer interface {
	RecomputeForDate(ctx context.Context, userID string, date core.Date) ([]core.Aggregate, error)
	RebuildAll(ctx context.Context) error
}

// MirrorStore tracks which expense rows are missing or stale in the
// spreadsheet.
type MirrorStore interface {
	PendingMirror(ctx context.Context, limit int) ([]storage.MirrorCandidate, error)
	MarkMirrored(ctx context.Context, c storage.MirrorCandidate, ref string) error
}

// AggregateWorker reacts to expense change events by refreshing stored
// aggregates and, when a mirror is configured, syncing rows to Sheets.
type AggregateWorker struct {
	recomputer Recomputer
	store      MirrorStore
	mirror     sheets.ExpenseMirror
	batchSize  int
	logger     *log.Logger
}

// NewAggregateWorker builds a worker. mirror may be nil to disable mirroring.
func NewAggregateWorker(recomputer Recomputer, store MirrorStore, mirror sheets.ExpenseMirror, batchSize int, logger *log.Logger) *AggregateWorker {
	if logger == nil {
		logger = log.Discard()
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &AggregateWorker{
		recomputer: recomputer,
		store:      store,
		mirror:     mirror,
		batchSize:  batchSize,
		logger:     logger.WithComponent(log.ComponentWorker),
	}
}

// HandleExpenseChanged recomputes every date named in msg. An error causes
// the message to be redelivered; mirroring failures do not.
func (w *AggregateWorker) HandleExpenseChanged(ctx context.Context, msg *amqp.ExpenseChangedMessage) error {
	dates, err := msg.ParsedDates()
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Processing expense change",
		log.FieldUserID, msg.UserID,
		log.FieldExpenseID, msg.ExpenseID,
		"action", msg.Action,
		"dates", msg.Dates)

	for _, d := range dates {
		if _, err := w.recomputer.RecomputeForDate(ctx, msg.UserID, d); err != nil {
			return fmt.Errorf("recompute %s: %w", d, err)
		}
	}

	if w.mirror != nil {
		if _, err := w.ProcessPendingMirror(ctx, w.batchSize); err != nil {
			w.logger.ErrorContext(ctx, "Mirror after change failed", log.FieldError, err)
		}
	}
	return nil
}

// ProcessPendingMirror brings up to limit pending expenses in line with the
// spreadsheet: new ones are appended, edited ones rewritten at their
// reference and deleted ones cleared. Rows that fail stay pending for the
// next sweep.
func (w *AggregateWorker) ProcessPendingMirror(ctx context.Context, limit int) (int, error) {
	if w.mirror == nil {
		return 0, nil
	}
	pending, err := w.store.PendingMirror(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending mirror: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	mirrored := 0
	for _, c := range pending {
		if err := ctx.Err(); err != nil {
			return mirrored, err
		}
		ref, err := w.syncRow(ctx, c)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to mirror expense",
				log.FieldExpenseID, c.Expense.ID,
				log.FieldError, err)
			continue
		}
		if err := w.store.MarkMirrored(ctx, c, ref); err != nil {
			w.logger.ErrorContext(ctx, "Failed to mark expense mirrored",
				log.FieldExpenseID, c.Expense.ID,
				log.FieldSheetsRef, ref,
				log.FieldError, err)
			continue
		}
		mirrored++
	}

	w.logger.InfoContext(ctx, "Mirror sweep finished",
		"pending", len(pending),
		"mirrored", mirrored)
	return mirrored, nil
}

// syncRow writes one candidate and returns the reference of its row, empty
// once the row has been cleared.
func (w *AggregateWorker) syncRow(ctx context.Context, c storage.MirrorCandidate) (string, error) {
	switch {
	case c.Deleted:
		if err := w.mirror.Clear(ctx, c.Ref); err != nil {
			return "", err
		}
		return "", nil
	case c.Ref != "":
		return w.mirror.Update(ctx, c.Ref, sheets.RowFromExpense(c.Expense, c.UserEmail))
	default:
		return w.mirror.Append(ctx, sheets.RowFromExpense(c.Expense, c.UserEmail))
	}
}

// StartupCheck drains a larger batch of pending rows, recovering from
// downtime or lost messages.
func (w *AggregateWorker) StartupCheck(ctx context.Context) error {
	_, err := w.ProcessPendingMirror(ctx, w.batchSize*5)
	return err
}

// RebuildAll reconciles every stored aggregate with the expense table.
func (w *AggregateWorker) RebuildAll(ctx context.Context) error {
	return w.recomputer.RebuildAll(ctx)
}
