package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cospese/internal/amqp"
	"cospese/internal/core"
	"cospese/internal/services"
	"cospese/internal/sheets"
)

// Store is what the export worker needs from the record store.
type Store interface {
	services.ExportQueue
	GetExpense(ctx context.Context, accountID, id int64) (core.Expense, error)
	UserByID(ctx context.Context, id int64) (core.User, error)
}

// ExportWorker copies approved expenses to the ledger. Events trigger an
// immediate export; the poller picks up anything the events missed.
type ExportWorker struct {
	store     Store
	ledger    sheets.LedgerWriter
	batchSize int
	now       func() time.Time

	// Exports are serialized so the consumer and the poller never append
	// the same expense concurrently.
	mu sync.Mutex
}

func NewExportWorker(store Store, ledger sheets.LedgerWriter, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &ExportWorker{
		store:     store,
		ledger:    ledger,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// HandleEvent exports the expense named by an approval event. Other event
// types are acknowledged and ignored.
func (w *ExportWorker) HandleEvent(ctx context.Context, msg *amqp.ExpenseEventMessage) error {
	if msg.Type != services.EventExpenseApproved {
		slog.DebugContext(ctx, "Ignoring event", "type", msg.Type, "expense_id", msg.ExpenseID)
		return nil
	}

	e, err := w.store.GetExpense(ctx, msg.AccountID, msg.ExpenseID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Approved expense not found, dropping event",
			"expense_id", msg.ExpenseID,
			"account_id", msg.AccountID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}
	if !e.IsApproved {
		slog.WarnContext(ctx, "Event for an expense that is not approved", "expense_id", e.ID)
		return nil
	}
	return w.export(ctx, e)
}

// ProcessPendingExports exports one batch of approved expenses that are not
// yet in the ledger. A failing expense does not stop the batch.
func (w *ExportWorker) ProcessPendingExports(ctx context.Context) error {
	pending, err := w.store.ListPendingExports(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending exports: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	var failed int
	for _, e := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.export(ctx, e); err != nil {
			slog.ErrorContext(ctx, "Failed to export expense", "expense_id", e.ID, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d exports failed", failed, len(pending))
	}
	return nil
}

// RunPoller processes pending exports immediately and then on every tick
// until ctx is done.
func (w *ExportWorker) RunPoller(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := w.ProcessPendingExports(ctx); err != nil && ctx.Err() == nil {
			slog.WarnContext(ctx, "Export poll finished with errors", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *ExportWorker) export(ctx context.Context, e core.Expense) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry := sheets.LedgerEntry{
		Expense:      e,
		OwnerName:    w.userName(ctx, e.OwnerID),
		ApproverName: w.userName(ctx, e.ApprovedBy),
	}
	ref, err := w.ledger.AppendEntry(ctx, entry)
	if err != nil {
		return fmt.Errorf("append to ledger: %w", err)
	}

	if err := w.store.MarkExported(ctx, e.ID, w.now()); err != nil {
		// The ledger skips ids it already holds, so a retry is harmless.
		return fmt.Errorf("mark exported: %w", err)
	}

	slog.InfoContext(ctx, "Exported expense to ledger",
		"expense_id", e.ID,
		"ledger_ref", ref,
		"amount_cents", e.Sum.Cents)
	return nil
}

func (w *ExportWorker) userName(ctx context.Context, id int64) string {
	if id == 0 {
		return ""
	}
	u, err := w.store.UserByID(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "Failed to resolve user name", "user_id", id, "error", err)
		return fmt.Sprintf("#%d", id)
	}
	return u.Name
}
