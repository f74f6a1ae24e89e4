package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2024-03-15" {
		t.Fatalf("round trip mismatch: %s", d)
	}
	if _, err := ParseDate("15/03/2024"); err == nil {
		t.Fatalf("expected error for wrong layout")
	}
}

func TestNewExpenseDefaults(t *testing.T) {
	now := time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)
	f := NewExpenseDefaults(now)
	if !f.DatePurchased.Equal(NewDate(2024, 3, 15).Time) {
		t.Fatalf("unexpected date %v", f.DatePurchased)
	}
	if f.MonthBalanced != 3 || f.YearBalanced != 2024 {
		t.Fatalf("unexpected period %d/%d", f.MonthBalanced, f.YearBalanced)
	}
	if f.DivorceeParticipate != 50 {
		t.Fatalf("expected default participation 50, got %d", f.DivorceeParticipate)
	}
}

func TestExpenseFieldsValidate(t *testing.T) {
	good := ExpenseFields{
		DatePurchased:       NewDate(2024, 3, 1),
		MonthBalanced:       3,
		YearBalanced:        2024,
		Sum:                 Money{Cents: 10000},
		DivorceeParticipate: 50,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name  string
		edit  func(*ExpenseFields)
		field string
		cause error
	}{
		{"negative sum", func(f *ExpenseFields) { f.Sum.Cents = -1 }, FieldExpenseSum, ErrNegativeAmount},
		{"participation above 100", func(f *ExpenseFields) { f.DivorceeParticipate = 101 }, FieldDivorceeParticipate, ErrInvalidPercentage},
		{"participation below 0", func(f *ExpenseFields) { f.DivorceeParticipate = -1 }, FieldDivorceeParticipate, ErrInvalidPercentage},
		{"month 13", func(f *ExpenseFields) { f.MonthBalanced = 13 }, FieldMonthBalanced, ErrInvalidPeriod},
		{"missing date", func(f *ExpenseFields) { f.DatePurchased = Date{} }, FieldDatePurchased, ErrMissingDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := good
			tc.edit(&f)
			err := f.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !errors.Is(verr.Field(tc.field), tc.cause) {
				t.Fatalf("expected %s to fail with %v, got %v", tc.field, tc.cause, verr)
			}
			if !errors.Is(err, tc.cause) {
				t.Fatalf("errors.Is should see %v through ValidationError", tc.cause)
			}
		})
	}
}

func TestPeriodAddMonths(t *testing.T) {
	p := Period{Month: 1, Year: 2024}
	if got := p.AddMonths(-1); got != (Period{Month: 12, Year: 2023}) {
		t.Fatalf("unexpected %v", got)
	}
	if got := p.AddMonths(12); got != (Period{Month: 1, Year: 2025}) {
		t.Fatalf("unexpected %v", got)
	}
}

func TestSummarize(t *testing.T) {
	items := []Expense{
		{ExpenseFields: ExpenseFields{Sum: Money{Cents: 10000}, DivorceeParticipate: 50}, IsApproved: true},
		{ExpenseFields: ExpenseFields{Sum: Money{Cents: 3000}, DivorceeParticipate: 100}},
	}
	s := Summarize(Period{Month: 3, Year: 2024}, items)
	if s.Count != 2 || s.Total.Cents != 13000 || s.DivorceeTotal.Cents != 8000 || s.Pending != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
}
