package core

import "sort"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int
	Month      int // 1-12
	Total      Money
	ByCategory []CategoryAmount
}

// SortByAmountDesc orders rows by amount descending, ties broken by
// name for stable rendering.
func SortByAmountDesc(rows []CategoryAmount) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Amount.Cents != rows[j].Amount.Cents {
			return rows[i].Amount.Cents > rows[j].Amount.Cents
		}
		return rows[i].Name < rows[j].Name
	})
}

// Overview builds the month's summary with a descending category breakdown.
func (r MonthRecord) Overview() MonthOverview {
	rows := make([]CategoryAmount, 0, len(r.Expenses))
	for name, amount := range r.Expenses {
		rows = append(rows, CategoryAmount{Name: name, Amount: amount})
	}
	SortByAmountDesc(rows)
	return MonthOverview{Year: r.Year, Month: r.Month, Total: r.Total(), ByCategory: rows}
}
