package core

import "time"

// UpdatePolicy decides whether an expense is still inside the window in
// which it may be edited or approved.
type UpdatePolicy interface {
	CanUpdate(e Expense, now time.Time) bool
}

// UpdateWindow allows updates while the balanced period is at most
// MonthsBack months before the current one, and no more than a year ahead.
type UpdateWindow struct {
	MonthsBack int
}

func (w UpdateWindow) CanUpdate(e Expense, now time.Time) bool {
	cur := PeriodOf(now)
	p := e.Period().index()
	return p >= cur.AddMonths(-w.MonthsBack).index() && p <= cur.AddMonths(12).index()
}

// CanEdit holds for the owner of a draft inside the update window.
func CanEdit(actor Actor, e Expense, policy UpdatePolicy, now time.Time) bool {
	return actor.ID == e.OwnerID && !e.IsApproved && policy.CanUpdate(e, now)
}

// CanApprove holds for anyone in the account except the owner, inside the
// update window.
//
// TODO(approval): this does not check that the actor is the owner's
// registered divorcee, so in accounts with more than two members any
// non-owner can approve. Restrict once multi-member accounts are supported.
func CanApprove(actor Actor, e Expense, policy UpdatePolicy, now time.Time) bool {
	return actor.ID != e.OwnerID && policy.CanUpdate(e, now)
}

// ApplyFields overwrites the editable attributes. Identity, ownership and
// approval state are left untouched.
func (e *Expense) ApplyFields(f ExpenseFields) {
	e.ExpenseFields = f
}

// MarkApproved performs the Draft to Approved transition. It reports false
// when the expense was already approved; approval is never undone.
func (e *Expense) MarkApproved(by int64, at time.Time) bool {
	if e.IsApproved {
		return false
	}
	e.IsApproved = true
	e.ApprovedBy = by
	e.ApprovedAt = at
	return true
}
