package core

// MonthSummary totals the expenses shown for one period.
type MonthSummary struct {
	Period        Period
	Count         int
	Total         Money
	DivorceeTotal Money
	Pending       int
}

// Summarize aggregates items, which are expected to share the period.
func Summarize(p Period, items []Expense) MonthSummary {
	s := MonthSummary{Period: p, Count: len(items)}
	for _, e := range items {
		s.Total.Cents += e.Sum.Cents
		s.DivorceeTotal.Cents += e.DivorceeShare().Cents
		if !e.IsApproved {
			s.Pending++
		}
	}
	return s
}
