package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// PriceNotFoundError reports that no price row qualifies for a price list
// and window. It is a hard error for that record's fee computation, never
// silently treated as zero.
type PriceNotFoundError struct {
	ListName string
	Start    int64
	End      int64
}

func (e *PriceNotFoundError) Error() string {
	return fmt.Sprintf("cannot find a price for %s between %d - %d", e.ListName, e.Start, e.End)
}

type datedAmount struct {
	date   int64
	amount decimal.Decimal
}

// PriceFinder answers time-versioned price lookups for one product,
// built once per run from the product's full price history.
type PriceFinder struct {
	prices map[string][]datedAmount // per list name, newest first
}

// NewPriceFinder groups prices by list name and orders each list newest
// first. Input order does not matter.
func NewPriceFinder(prices []Price) *PriceFinder {
	grouped := make(map[string][]datedAmount)
	for _, p := range prices {
		grouped[p.ListName] = append(grouped[p.ListName], datedAmount{date: p.Date, amount: p.Amount})
	}
	for list := range grouped {
		entries := grouped[list]
		sort.Slice(entries, func(i, j int) bool { return entries[i].date > entries[j].date })
		grouped[list] = entries
	}
	return &PriceFinder{prices: grouped}
}

// Latest returns the newest price on a list.
func (f *PriceFinder) Latest(listName string) (decimal.Decimal, error) {
	entries := f.prices[listName]
	if len(entries) == 0 {
		return decimal.Decimal{}, &PriceNotFoundError{ListName: listName}
	}
	return entries[0].amount, nil
}

// Price scans newest-to-oldest and returns the first price effective at
// or before the window start, or the first price that became effective
// inside the window when no earlier one qualifies.
func (f *PriceFinder) Price(listName string, start, end int64) (decimal.Decimal, error) {
	for _, entry := range f.prices[listName] {
		if start >= entry.date {
			return entry.amount, nil
		}
		if start < entry.date && end >= entry.date {
			return entry.amount, nil
		}
	}
	return decimal.Decimal{}, &PriceNotFoundError{ListName: listName, Start: start, End: end}
}
