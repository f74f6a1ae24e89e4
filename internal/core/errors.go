package core

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when an expense or user does not exist within
	// the caller's account.
	ErrNotFound = errors.New("not found")

	ErrInvalidFilterValue = errors.New("invalid filter value")
	ErrInvalidPeriod      = errors.New("invalid period")
)

// Form and filter field names, shared by validation errors, forms and logs.
const (
	FieldDatePurchased       = "date_purchased"
	FieldMonthBalanced       = "month_balanced"
	FieldYearBalanced        = "year_balanced"
	FieldExpenseSum          = "expense_sum"
	FieldDivorceeParticipate = "expense_divorcee_participate"
	FieldDesc                = "desc"
	FieldPlaceOfPurchase     = "place_of_purchase"
	FieldNotes               = "notes"

	FieldApprovedFilter = "approved"
	FieldByFilter       = "by"
	FieldMonth          = "month"
	FieldYear           = "year"
)

type FieldError struct {
	Field string
	Err   error
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e FieldError) Unwrap() error {
	return e.Err
}

// ValidationError collects the offending fields of a rejected input.
// errors.Is matches any of the wrapped field causes.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Add(field string, err error) {
	e.Fields = append(e.Fields, FieldError{Field: field, Err: err})
}

// Merge appends the fields of err when it is a ValidationError, and records
// it under field otherwise.
func (e *ValidationError) Merge(field string, err error) {
	if err == nil {
		return
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		e.Fields = append(e.Fields, verr.Fields...)
		return
	}
	e.Add(field, err)
}

// OrNil returns nil when no field was added, so callers can return it directly.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Field returns the first error recorded for name.
func (e *ValidationError) Field(name string) error {
	for _, f := range e.Fields {
		if f.Field == name {
			return f.Err
		}
	}
	return nil
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Fields))
	for _, f := range e.Fields {
		errs = append(errs, f)
	}
	return errs
}
