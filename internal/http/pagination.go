package http

import (
	"errors"

	"cospese/internal/core"
)

var errPageOutOfRange = errors.New("page out of range")

// Page is one slice of a monthly listing.
type Page struct {
	Items  []core.Expense
	Number int
	Count  int
	Total  int
}

func (p Page) HasPrev() bool { return p.Number > 1 }
func (p Page) HasNext() bool { return p.Number < p.Count }
func (p Page) Paginated() bool { return p.Count > 1 }

// paginate slices items only when they exceed size; a shorter listing is a
// single page whatever number was asked for. A page past the end of a
// longer listing is errPageOutOfRange.
func paginate(items []core.Expense, number, size int) (Page, error) {
	if size < 1 || len(items) <= size {
		return Page{Items: items, Number: 1, Count: 1, Total: len(items)}, nil
	}

	count := (len(items) + size - 1) / size
	if number < 1 || number > count {
		return Page{}, errPageOutOfRange
	}
	start := (number - 1) * size
	end := min(start+size, len(items))
	return Page{Items: items[start:end], Number: number, Count: count, Total: len(items)}, nil
}
