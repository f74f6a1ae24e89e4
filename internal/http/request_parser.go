package http

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cospese/internal/core"
)

var (
	errInvalidDate   = errors.New("invalid date, expected YYYY-MM-DD")
	errInvalidNumber = errors.New("not a number")
	errInvalidID     = errors.New("invalid id")
)

// expenseFormFields are the inputs read from an expense form, in display
// order. Anything else posted (owner, account, approval) is ignored.
var expenseFormFields = []string{
	core.FieldDatePurchased,
	core.FieldMonthBalanced,
	core.FieldYearBalanced,
	core.FieldExpenseSum,
	core.FieldDivorceeParticipate,
	core.FieldDesc,
	core.FieldPlaceOfPurchase,
	core.FieldNotes,
}

// parseExpenseForm decodes an expense form. Values that cannot be decoded
// are reported together in a *core.ValidationError; range checks are left
// to core.ExpenseFields.Validate.
func parseExpenseForm(form url.Values) (core.ExpenseFields, error) {
	var f core.ExpenseFields
	verr := &core.ValidationError{}

	if v := strings.TrimSpace(form.Get(core.FieldDatePurchased)); v == "" {
		verr.Add(core.FieldDatePurchased, core.ErrMissingDate)
	} else if d, err := core.ParseDate(v); err != nil {
		verr.Add(core.FieldDatePurchased, errInvalidDate)
	} else {
		f.DatePurchased = d
	}

	var err error
	if f.MonthBalanced, err = atoiField(form, core.FieldMonthBalanced); err != nil {
		verr.Add(core.FieldMonthBalanced, core.ErrInvalidPeriod)
	}
	if f.YearBalanced, err = atoiField(form, core.FieldYearBalanced); err != nil {
		verr.Add(core.FieldYearBalanced, core.ErrInvalidPeriod)
	}
	if f.Sum, err = core.ParseAmount(form.Get(core.FieldExpenseSum)); err != nil {
		verr.Add(core.FieldExpenseSum, err)
	}
	if f.DivorceeParticipate, err = atoiField(form, core.FieldDivorceeParticipate); err != nil {
		verr.Add(core.FieldDivorceeParticipate, core.ErrInvalidPercentage)
	}

	f.Desc = sanitizeInput(form.Get(core.FieldDesc))
	f.PlaceOfPurchase = sanitizeInput(form.Get(core.FieldPlaceOfPurchase))
	f.Notes = sanitizeInput(form.Get(core.FieldNotes))

	return f, verr.OrNil()
}

func atoiField(form url.Values, name string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(form.Get(name)))
	if err != nil {
		return 0, errInvalidNumber
	}
	return n, nil
}

// formValues renders fields back into form inputs.
func formValues(f core.ExpenseFields) map[string]string {
	return map[string]string{
		core.FieldDatePurchased:       f.DatePurchased.String(),
		core.FieldMonthBalanced:       strconv.Itoa(f.MonthBalanced),
		core.FieldYearBalanced:        strconv.Itoa(f.YearBalanced),
		core.FieldExpenseSum:          f.Sum.String(),
		core.FieldDivorceeParticipate: strconv.Itoa(f.DivorceeParticipate),
		core.FieldDesc:                f.Desc,
		core.FieldPlaceOfPurchase:     f.PlaceOfPurchase,
		core.FieldNotes:               f.Notes,
	}
}

// postedValues keeps what the user typed so a rejected form can be shown again.
func postedValues(form url.Values) map[string]string {
	out := make(map[string]string, len(expenseFormFields))
	for _, name := range expenseFormFields {
		out[name] = form.Get(name)
	}
	return out
}

// parseMonthlyFilter reads the period from the path and the filters from
// the query. byOverride, when set, replaces the "by" query parameter.
func parseMonthlyFilter(r *http.Request, byOverride core.AttributionFilter) (core.MonthlyFilter, error) {
	verr := &core.ValidationError{}
	var f core.MonthlyFilter

	var err error
	if f.Period.Year, err = strconv.Atoi(r.PathValue("year")); err != nil {
		verr.Add(core.FieldYear, core.ErrInvalidPeriod)
	}
	if f.Period.Month, err = strconv.Atoi(r.PathValue("month")); err != nil {
		verr.Add(core.FieldMonth, core.ErrInvalidPeriod)
	}

	q := r.URL.Query()
	if f.Approved, err = core.ParseApprovedFilter(q.Get(core.FieldApprovedFilter)); err != nil {
		verr.Add(core.FieldApprovedFilter, err)
	}
	if byOverride != "" {
		f.By = byOverride
	} else if f.By, err = core.ParseAttributionFilter(q.Get(core.FieldByFilter)); err != nil {
		verr.Add(core.FieldByFilter, err)
	}

	if err := verr.OrNil(); err != nil {
		return core.MonthlyFilter{}, err
	}
	return f, f.Validate()
}

// parsePage reads the 1-based page number; absent means the first page.
func parsePage(q url.Values) (int, error) {
	v := strings.TrimSpace(q.Get("page"))
	if v == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, errPageOutOfRange
	}
	return n, nil
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, errInvalidID
	}
	return id, nil
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
