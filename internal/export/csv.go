// Package export encodes profiles to and from a flat CSV layout so
// users can carry their data across sessions.
//
// Layout: header row "row_type,name,amount", then one "field" row per
// scalar (income, savings, debt) and one "expense" row per category.
// Amounts are plain decimal strings.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"fintwin/internal/core"
)

const (
	rowTypeField   = "field"
	rowTypeExpense = "expense"

	fieldIncome  = "income"
	fieldSavings = "savings"
	fieldDebt    = "debt"
)

var (
	ErrBadHeader    = errors.New("export: bad header")
	ErrBadRow       = errors.New("export: bad row")
	ErrDuplicateRow = errors.New("export: duplicate row")
)

var header = []string{"row_type", "name", "amount"}

// EncodeProfile writes the profile as CSV. Expense rows come out in
// descending-amount order so exports are deterministic.
func EncodeProfile(w io.Writer, p core.Profile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("export: writing header: %w", err)
	}

	fields := []struct {
		name  string
		value core.Money
	}{
		{fieldIncome, p.Income},
		{fieldSavings, p.Savings},
		{fieldDebt, p.Debt},
	}
	for _, f := range fields {
		if err := cw.Write([]string{rowTypeField, f.name, f.value.Format()}); err != nil {
			return fmt.Errorf("export: writing %s: %w", f.name, err)
		}
	}

	rows := make([]core.CategoryAmount, 0, len(p.Expenses))
	for name, amount := range p.Expenses {
		rows = append(rows, core.CategoryAmount{Name: name, Amount: amount})
	}
	core.SortByAmountDesc(rows)
	for _, row := range rows {
		if err := cw.Write([]string{rowTypeExpense, row.Name, row.Amount.Format()}); err != nil {
			return fmt.Errorf("export: writing category %q: %w", row.Name, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// DecodeProfile parses a CSV export back into a validated profile.
// Unknown row types, unknown field names, duplicate rows and invalid
// amounts are rejected.
func DecodeProfile(r io.Reader) (core.Profile, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3

	first, err := cr.Read()
	if err != nil {
		return core.Profile{}, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	for i, col := range header {
		if first[i] != col {
			return core.Profile{}, ErrBadHeader
		}
	}

	p := core.NewProfile()
	seenFields := make(map[string]bool)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return core.Profile{}, fmt.Errorf("%w: %v", ErrBadRow, err)
		}
		rowType, name, amountStr := record[0], record[1], record[2]

		cents, err := core.ParseDecimalToCents(amountStr)
		if err != nil {
			return core.Profile{}, fmt.Errorf("%w: amount %q", ErrBadRow, amountStr)
		}

		switch rowType {
		case rowTypeField:
			if seenFields[name] {
				return core.Profile{}, fmt.Errorf("%w: field %q", ErrDuplicateRow, name)
			}
			seenFields[name] = true
			switch name {
			case fieldIncome:
				p.Income = core.Money{Cents: cents}
			case fieldSavings:
				p.Savings = core.Money{Cents: cents}
			case fieldDebt:
				p.Debt = core.Money{Cents: cents}
			default:
				return core.Profile{}, fmt.Errorf("%w: unknown field %q", ErrBadRow, name)
			}
		case rowTypeExpense:
			if _, ok := p.Expenses[name]; ok {
				return core.Profile{}, fmt.Errorf("%w: category %q", ErrDuplicateRow, name)
			}
			p.Expenses[name] = core.Money{Cents: cents}
		default:
			return core.Profile{}, fmt.Errorf("%w: unknown row type %q", ErrBadRow, rowType)
		}
	}

	if err := p.Validate(); err != nil {
		return core.Profile{}, fmt.Errorf("export: invalid profile: %w", err)
	}
	return p, nil
}
