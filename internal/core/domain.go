package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultDivorceeParticipate is the share proposed on the creation form.
	DefaultDivorceeParticipate = 50

	maxDescLen  = 200
	maxPlaceLen = 200
	maxNotesLen = 2000
)

type (
	Date struct {
		time.Time
	}

	// Period identifies the accounting month an expense is balanced in.
	Period struct {
		Month int
		Year  int
	}

	// User is a member of an account. DivorceeID is zero when the user has
	// no registered counterpart.
	User struct {
		ID         int64
		Name       string
		AccountID  int64
		DivorceeID int64
	}

	// Actor is the user on whose behalf an operation runs.
	Actor = User

	// ExpenseFields is the set of attributes the owner may set on creation
	// and change while the expense is still a draft.
	ExpenseFields struct {
		DatePurchased       Date
		MonthBalanced       int
		YearBalanced        int
		Sum                 Money
		DivorceeParticipate int
		Desc                string
		PlaceOfPurchase     string
		Notes               string
	}

	Expense struct {
		ID        int64
		AccountID int64
		OwnerID   int64
		ExpenseFields
		IsApproved bool
		ApprovedAt time.Time
		ApprovedBy int64
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}
)

var (
	ErrInvalidDay   = errors.New("invalid day")
	ErrInvalidMonth = errors.New("invalid month")
	ErrMissingDate  = errors.New("date is required")
	ErrTooLong      = errors.New("value too long")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrMissingDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// String formats the date as YYYY-MM-DD, the format used by forms and storage.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func PeriodOf(t time.Time) Period {
	return Period{Month: int(t.Month()), Year: t.Year()}
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 || p.Year < 1 || p.Year > 9999 {
		return ErrInvalidPeriod
	}
	return nil
}

// index maps the period onto a running month count so periods can be
// compared and shifted.
func (p Period) index() int {
	return p.Year*12 + p.Month - 1
}

// AddMonths returns the period n months later (earlier when n < 0).
func (p Period) AddMonths(n int) Period {
	i := p.index() + n
	return Period{Month: i%12 + 1, Year: i / 12}
}

// NewExpenseDefaults returns the values a creation form starts from.
func NewExpenseDefaults(now time.Time) ExpenseFields {
	return ExpenseFields{
		DatePurchased:       DateOf(now),
		MonthBalanced:       int(now.Month()),
		YearBalanced:        now.Year(),
		DivorceeParticipate: DefaultDivorceeParticipate,
	}
}

func (f ExpenseFields) Period() Period {
	return Period{Month: f.MonthBalanced, Year: f.YearBalanced}
}

// Validate reports every invalid field at once.
func (f ExpenseFields) Validate() error {
	verr := &ValidationError{}
	if err := f.DatePurchased.Validate(); err != nil {
		verr.Add(FieldDatePurchased, err)
	}
	if f.MonthBalanced < 1 || f.MonthBalanced > 12 {
		verr.Add(FieldMonthBalanced, ErrInvalidPeriod)
	}
	if f.YearBalanced < 1 || f.YearBalanced > 9999 {
		verr.Add(FieldYearBalanced, ErrInvalidPeriod)
	}
	if err := f.Sum.Validate(); err != nil {
		verr.Add(FieldExpenseSum, err)
	}
	if f.DivorceeParticipate < 0 || f.DivorceeParticipate > 100 {
		verr.Add(FieldDivorceeParticipate, ErrInvalidPercentage)
	}
	if len(f.Desc) > maxDescLen {
		verr.Add(FieldDesc, ErrTooLong)
	}
	if len(f.PlaceOfPurchase) > maxPlaceLen {
		verr.Add(FieldPlaceOfPurchase, ErrTooLong)
	}
	if len(f.Notes) > maxNotesLen {
		verr.Add(FieldNotes, ErrTooLong)
	}
	return verr.OrNil()
}

// DivorceeShare is the part of the sum attributed to the counterpart.
func (e Expense) DivorceeShare() Money {
	return e.Sum.Percent(e.DivorceeParticipate)
}
