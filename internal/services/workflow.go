package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cospese/internal/core"
)

// ExpenseWorkflow runs the expense operations on behalf of an actor.
// The actor is always passed explicitly; its account scopes every lookup.
type ExpenseWorkflow struct {
	store  ExpenseStore
	policy core.UpdatePolicy
	events EventPublisher
	now    func() time.Time
}

// Outcome reports the result of a guarded operation. Denied is set when the
// actor may not perform it; the expense is then returned unchanged.
type Outcome struct {
	Expense core.Expense
	Denied  bool
	Changed bool
}

// NewExpenseWorkflow builds a workflow. events may be nil.
func NewExpenseWorkflow(store ExpenseStore, policy core.UpdatePolicy, events EventPublisher) *ExpenseWorkflow {
	return &ExpenseWorkflow{
		store:  store,
		policy: policy,
		events: events,
		now:    time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (w *ExpenseWorkflow) WithClock(now func() time.Time) *ExpenseWorkflow {
	w.now = now
	return w
}

// Now returns the workflow's current time.
func (w *ExpenseWorkflow) Now() time.Time {
	return w.now()
}

// ListMonthly returns the actor's account expenses balanced in the filter's
// period, newest purchase first.
func (w *ExpenseWorkflow) ListMonthly(ctx context.Context, actor core.Actor, f core.MonthlyFilter) ([]core.Expense, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	items, err := w.store.FindExpenses(ctx, f.Query(actor))
	if err != nil {
		return nil, fmt.Errorf("list expenses %d/%d: %w", f.Period.Month, f.Period.Year, err)
	}
	return items, nil
}

func (w *ExpenseWorkflow) GetOne(ctx context.Context, actor core.Actor, id int64) (core.Expense, error) {
	return w.store.GetExpense(ctx, actor.AccountID, id)
}

// Defaults returns the values a creation form starts from.
func (w *ExpenseWorkflow) Defaults() core.ExpenseFields {
	return core.NewExpenseDefaults(w.now())
}

// Create stores a new draft owned by the actor.
func (w *ExpenseWorkflow) Create(ctx context.Context, actor core.Actor, f core.ExpenseFields) (core.Expense, error) {
	if err := f.Validate(); err != nil {
		return core.Expense{}, err
	}
	now := w.now()
	e, err := w.store.CreateExpense(ctx, core.Expense{
		AccountID:     actor.AccountID,
		OwnerID:       actor.ID,
		ExpenseFields: f,
		IsApproved:    false,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	w.publish(ctx, EventExpenseCreated, e, actor)
	return e, nil
}

// CanEdit loads the expense and reports whether the actor may edit it.
func (w *ExpenseWorkflow) CanEdit(ctx context.Context, actor core.Actor, id int64) (Outcome, error) {
	e, err := w.GetOne(ctx, actor, id)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Expense: e, Denied: !core.CanEdit(actor, e, w.policy, w.now())}, nil
}

// CanApprove loads the expense and reports whether the actor may approve it.
func (w *ExpenseWorkflow) CanApprove(ctx context.Context, actor core.Actor, id int64) (Outcome, error) {
	e, err := w.GetOne(ctx, actor, id)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Expense: e, Denied: !core.CanApprove(actor, e, w.policy, w.now())}, nil
}

// Permissions reports which transitions the actor may start on e.
type Permissions struct {
	CanEdit    bool
	CanApprove bool
}

// PermissionsFor evaluates the guards on an already loaded expense, for
// rendering. Edit and Approve re-check them on write.
func (w *ExpenseWorkflow) PermissionsFor(actor core.Actor, e core.Expense) Permissions {
	now := w.now()
	return Permissions{
		CanEdit:    core.CanEdit(actor, e, w.policy, now),
		CanApprove: !e.IsApproved && core.CanApprove(actor, e, w.policy, now),
	}
}

// Edit replaces the editable fields of a draft. The guard is evaluated on
// the row read inside the write transaction.
func (w *ExpenseWorkflow) Edit(ctx context.Context, actor core.Actor, id int64, f core.ExpenseFields) (Outcome, error) {
	var out Outcome
	now := w.now()
	e, err := w.store.UpdateExpense(ctx, actor.AccountID, id, func(e *core.Expense) (bool, error) {
		if !core.CanEdit(actor, *e, w.policy, now) {
			out.Denied = true
			return false, nil
		}
		if err := f.Validate(); err != nil {
			return false, err
		}
		e.ApplyFields(f)
		e.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return Outcome{}, err
	}
	out.Expense = e
	out.Changed = !out.Denied
	if out.Denied {
		slog.InfoContext(ctx, "Edit denied", "expense_id", id, "actor_id", actor.ID)
		return out, nil
	}
	w.publish(ctx, EventExpenseEdited, e, actor)
	return out, nil
}

// Approve moves a draft to approved. Approving an approved expense is a
// no-op.
func (w *ExpenseWorkflow) Approve(ctx context.Context, actor core.Actor, id int64) (Outcome, error) {
	var out Outcome
	now := w.now()
	e, err := w.store.UpdateExpense(ctx, actor.AccountID, id, func(e *core.Expense) (bool, error) {
		if !core.CanApprove(actor, *e, w.policy, now) {
			out.Denied = true
			return false, nil
		}
		if !e.MarkApproved(actor.ID, now) {
			return false, nil
		}
		e.UpdatedAt = now
		out.Changed = true
		return true, nil
	})
	if err != nil {
		return Outcome{}, err
	}
	out.Expense = e
	if out.Denied {
		slog.InfoContext(ctx, "Approval denied", "expense_id", id, "actor_id", actor.ID)
		return out, nil
	}
	if out.Changed {
		w.publish(ctx, EventExpenseApproved, e, actor)
	}
	return out, nil
}

func (w *ExpenseWorkflow) publish(ctx context.Context, eventType string, e core.Expense, actor core.Actor) {
	if w.events == nil {
		return
	}
	if err := w.events.PublishExpenseEvent(ctx, eventType, e, actor.ID); err != nil {
		// The store is the source of truth; the export poller catches up.
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"type", eventType,
			"expense_id", e.ID,
			"error", err)
	}
}
