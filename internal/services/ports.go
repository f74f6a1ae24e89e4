package services

import (
	"context"
	"time"

	"cospese/internal/core"
)

// Ports consumed by the workflow and the export worker.
type (
	// ExpenseStore persists expenses. Every lookup by id is scoped by account.
	ExpenseStore interface {
		FindExpenses(ctx context.Context, q core.Query) ([]core.Expense, error)
		GetExpense(ctx context.Context, accountID, id int64) (core.Expense, error)
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		// UpdateExpense runs fn on the current row inside one transaction and
		// writes the result back only when fn reports a change.
		UpdateExpense(ctx context.Context, accountID, id int64, fn func(*core.Expense) (bool, error)) (core.Expense, error)
	}

	ExportQueue interface {
		ListPendingExports(ctx context.Context, limit int) ([]core.Expense, error)
		MarkExported(ctx context.Context, id int64, at time.Time) error
	}

	UserDirectory interface {
		UserByName(ctx context.Context, name string) (core.User, error)
		UserByID(ctx context.Context, id int64) (core.User, error)
	}

	EventPublisher interface {
		PublishExpenseEvent(ctx context.Context, eventType string, e core.Expense, actorID int64) error
	}
)

// Event types published after a successful write.
const (
	EventExpenseCreated  = "expense.created"
	EventExpenseEdited   = "expense.edited"
	EventExpenseApproved = "expense.approved"
)
