package core

import (
	"sort"
	"strings"
)

type ApprovedFilter string

const (
	ApprovedAll ApprovedFilter = "all"
	ApprovedYes ApprovedFilter = "yes"
	ApprovedNo  ApprovedFilter = "no"
)

type AttributionFilter string

const (
	ByAll      AttributionFilter = "all"
	ByMy       AttributionFilter = "my"
	ByDivorcee AttributionFilter = "divorcee"
)

// ParseApprovedFilter accepts "", "all", "yes" and "no".
func ParseApprovedFilter(s string) (ApprovedFilter, error) {
	switch f := ApprovedFilter(strings.TrimSpace(s)); f {
	case "":
		return ApprovedAll, nil
	case ApprovedAll, ApprovedYes, ApprovedNo:
		return f, nil
	default:
		return "", ErrInvalidFilterValue
	}
}

func (f ApprovedFilter) Label() string {
	switch f {
	case ApprovedYes:
		return "Approved"
	case ApprovedNo:
		return "Not Approved"
	default:
		return "All"
	}
}

// ParseAttributionFilter accepts "", "all", "my" and "divorcee".
func ParseAttributionFilter(s string) (AttributionFilter, error) {
	switch f := AttributionFilter(strings.TrimSpace(s)); f {
	case "":
		return ByAll, nil
	case ByAll, ByMy, ByDivorcee:
		return f, nil
	default:
		return "", ErrInvalidFilterValue
	}
}

func (f AttributionFilter) Label() string {
	switch f {
	case ByMy:
		return "My"
	case ByDivorcee:
		return "Divorcee"
	default:
		return "By All"
	}
}

// MonthlyFilter selects the expenses balanced in one period.
type MonthlyFilter struct {
	Period   Period
	Approved ApprovedFilter
	By       AttributionFilter
}

func (f MonthlyFilter) Validate() error {
	verr := &ValidationError{}
	if f.Period.Month < 1 || f.Period.Month > 12 {
		verr.Add(FieldMonth, ErrInvalidPeriod)
	}
	if f.Period.Year < 1 || f.Period.Year > 9999 {
		verr.Add(FieldYear, ErrInvalidPeriod)
	}
	switch f.Approved {
	case ApprovedAll, ApprovedYes, ApprovedNo:
	default:
		verr.Add(FieldApprovedFilter, ErrInvalidFilterValue)
	}
	switch f.By {
	case ByAll, ByMy, ByDivorcee:
	default:
		verr.Add(FieldByFilter, ErrInvalidFilterValue)
	}
	return verr.OrNil()
}

// Query composes the account and period scope with the optional filters.
// The account predicate always comes from the actor, never from the request.
func (f MonthlyFilter) Query(actor Actor) Query {
	q := Query{}.
		Where(ColAccount, actor.AccountID).
		Where(ColMonthBalanced, f.Period.Month).
		Where(ColYearBalanced, f.Period.Year)

	switch f.Approved {
	case ApprovedYes:
		q = q.Where(ColApproved, true)
	case ApprovedNo:
		q = q.Where(ColApproved, false)
	}

	switch f.By {
	case ByMy:
		q = q.Where(ColOwner, actor.ID)
	case ByDivorcee:
		// An actor without a counterpart matches no owner.
		q = q.Where(ColOwner, actor.DivorceeID)
	}
	return q
}

type Column string

const (
	ColAccount       Column = "account_id"
	ColOwner         Column = "owner_id"
	ColMonthBalanced Column = "month_balanced"
	ColYearBalanced  Column = "year_balanced"
	ColApproved      Column = "is_approved"
)

// Predicate is an equality test on one column.
type Predicate struct {
	Column Column
	Value  any
}

// Query is a conjunction of predicates, independent of the storage engine.
type Query struct {
	Predicates []Predicate
}

func (q Query) Where(col Column, value any) Query {
	preds := make([]Predicate, len(q.Predicates), len(q.Predicates)+1)
	copy(preds, q.Predicates)
	return Query{Predicates: append(preds, Predicate{Column: col, Value: value})}
}

// Matches evaluates the query against an expense held in memory.
func (q Query) Matches(e Expense) bool {
	for _, p := range q.Predicates {
		if !p.matches(e) {
			return false
		}
	}
	return true
}

func (p Predicate) matches(e Expense) bool {
	switch p.Column {
	case ColAccount:
		return equalInt64(p.Value, e.AccountID)
	case ColOwner:
		return equalInt64(p.Value, e.OwnerID)
	case ColMonthBalanced:
		return equalInt64(p.Value, int64(e.MonthBalanced))
	case ColYearBalanced:
		return equalInt64(p.Value, int64(e.YearBalanced))
	case ColApproved:
		b, ok := p.Value.(bool)
		return ok && b == e.IsApproved
	default:
		return false
	}
}

func equalInt64(v any, want int64) bool {
	switch n := v.(type) {
	case int:
		return int64(n) == want
	case int64:
		return n == want
	default:
		return false
	}
}

// SortExpenses orders newest purchase first, ties broken by descending id.
func SortExpenses(items []Expense) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.DatePurchased.Equal(b.DatePurchased.Time) {
			return a.DatePurchased.After(b.DatePurchased.Time)
		}
		return a.ID > b.ID
	})
}
