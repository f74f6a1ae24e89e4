package core

import (
	"testing"
	"time"
)

var march2024 = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func draft(owner int64, month, year int) Expense {
	return Expense{
		ID:            1,
		AccountID:     10,
		OwnerID:       owner,
		ExpenseFields: ExpenseFields{MonthBalanced: month, YearBalanced: year},
	}
}

func TestUpdateWindow(t *testing.T) {
	w := UpdateWindow{MonthsBack: 1}
	cases := []struct {
		month, year int
		want        bool
	}{
		{3, 2024, true},
		{2, 2024, true},
		{1, 2024, false},
		{12, 2023, false},
		{3, 2025, true},
		{4, 2025, false},
	}
	for _, tc := range cases {
		if got := w.CanUpdate(draft(1, tc.month, tc.year), march2024); got != tc.want {
			t.Fatalf("%d/%d: expected %v, got %v", tc.month, tc.year, tc.want, got)
		}
	}

	strict := UpdateWindow{}
	if strict.CanUpdate(draft(1, 2, 2024), march2024) {
		t.Fatalf("zero window should only allow the current month")
	}
}

func TestUpdateWindowAcrossYear(t *testing.T) {
	jan := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	if !(UpdateWindow{MonthsBack: 1}).CanUpdate(draft(1, 12, 2023), jan) {
		t.Fatalf("december should be updatable in january")
	}
}

func TestCanEdit(t *testing.T) {
	w := UpdateWindow{MonthsBack: 1}
	owner := Actor{ID: 1, AccountID: 10, DivorceeID: 2}
	other := Actor{ID: 2, AccountID: 10, DivorceeID: 1}

	e := draft(1, 3, 2024)
	if !CanEdit(owner, e, w, march2024) {
		t.Fatalf("owner should edit own draft")
	}
	if CanEdit(other, e, w, march2024) {
		t.Fatalf("non-owner must not edit")
	}
	e.IsApproved = true
	if CanEdit(owner, e, w, march2024) {
		t.Fatalf("approved expense must not be editable")
	}
	if CanEdit(owner, draft(1, 1, 2023), w, march2024) {
		t.Fatalf("expense outside window must not be editable")
	}
}

func TestCanApprove(t *testing.T) {
	w := UpdateWindow{MonthsBack: 1}
	owner := Actor{ID: 1, AccountID: 10, DivorceeID: 2}
	other := Actor{ID: 2, AccountID: 10, DivorceeID: 1}
	third := Actor{ID: 3, AccountID: 10}

	e := draft(1, 3, 2024)
	if CanApprove(owner, e, w, march2024) {
		t.Fatalf("owner must not approve own expense")
	}
	if !CanApprove(other, e, w, march2024) {
		t.Fatalf("counterpart should approve")
	}
	// Only ownership is checked, not the counterpart link.
	if !CanApprove(third, e, w, march2024) {
		t.Fatalf("any non-owner passes the approval check")
	}
	if CanApprove(other, draft(1, 1, 2023), w, march2024) {
		t.Fatalf("expense outside window must not be approvable")
	}
}

func TestMarkApprovedIsMonotone(t *testing.T) {
	e := draft(1, 3, 2024)
	if !e.MarkApproved(2, march2024) {
		t.Fatalf("first approval should change state")
	}
	if e.MarkApproved(3, march2024.Add(time.Hour)) {
		t.Fatalf("second approval should be a no-op")
	}
	if !e.IsApproved || e.ApprovedBy != 2 || !e.ApprovedAt.Equal(march2024) {
		t.Fatalf("approval metadata overwritten: %+v", e)
	}
}

func TestApplyFieldsKeepsIdentity(t *testing.T) {
	e := draft(1, 3, 2024)
	e.IsApproved = false
	e.ApplyFields(ExpenseFields{Desc: "groceries", MonthBalanced: 3, YearBalanced: 2024})
	if e.ID != 1 || e.AccountID != 10 || e.OwnerID != 1 || e.IsApproved {
		t.Fatalf("identity changed: %+v", e)
	}
	if e.Desc != "groceries" {
		t.Fatalf("fields not applied")
	}
}
