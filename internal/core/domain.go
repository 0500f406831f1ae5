package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MaxCategoryName bounds category names entered through forms.
	MaxCategoryName = 100
	// MaxCategories bounds the number of expense categories per profile.
	MaxCategories = 50

	// MinYear and MaxYear bound month-record years. Four-digit years
	// keep Key()'s "YYYY-MM" form sorting chronologically as a string.
	MinYear = 1900
	MaxYear = 2200
)

type (
	// Money is a monetary amount in cents. Stored profile fields are
	// non-negative; derived figures (surplus, scenario deltas) may go
	// below zero and are handled as plain int64 cents where computed.
	Money struct {
		Cents int64
	}

	// Profile is a user's current financial snapshot: monthly income,
	// expense categories with their monthly amounts, savings balance
	// and outstanding debt. Each session owns exactly one Profile.
	Profile struct {
		Income   Money
		Savings  Money
		Debt     Money
		Expenses map[string]Money // category name -> monthly amount
	}

	// MonthRecord holds one month of historical expense entries, the
	// unit the forecaster builds trend series from.
	MonthRecord struct {
		Year     int
		Month    int // 1-12
		Expenses map[string]Money
	}
)

var (
	ErrNegativeAmount    = errors.New("negative amount")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyCategory     = errors.New("empty category name")
	ErrCategoryTooLong   = errors.New("category name too long")
	ErrTooManyCategories = errors.New("too many expense categories")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidYear       = errors.New("invalid year")
)

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// NewProfile returns an empty profile with an allocated expense map.
func NewProfile() Profile {
	return Profile{Expenses: make(map[string]Money)}
}

func (p Profile) Validate() error {
	if err := p.Income.Validate(); err != nil {
		return fmt.Errorf("income: %w", err)
	}
	if err := p.Savings.Validate(); err != nil {
		return fmt.Errorf("savings: %w", err)
	}
	if err := p.Debt.Validate(); err != nil {
		return fmt.Errorf("debt: %w", err)
	}
	if len(p.Expenses) > MaxCategories {
		return ErrTooManyCategories
	}
	for name, amount := range p.Expenses {
		if err := ValidateCategoryName(name); err != nil {
			return err
		}
		if err := amount.Validate(); err != nil {
			return fmt.Errorf("category %q: %w", name, err)
		}
	}
	return nil
}

// ValidateCategoryName checks a single expense-category name.
func ValidateCategoryName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrEmptyCategory
	}
	if len(trimmed) > MaxCategoryName {
		return ErrCategoryTooLong
	}
	return nil
}

// Clone returns a deep copy of the profile. Scenario evaluation works
// on clones so the baseline is never mutated.
func (p Profile) Clone() Profile {
	out := Profile{
		Income:   p.Income,
		Savings:  p.Savings,
		Debt:     p.Debt,
		Expenses: make(map[string]Money, len(p.Expenses)),
	}
	for name, amount := range p.Expenses {
		out.Expenses[name] = amount
	}
	return out
}

// TotalExpenses sums all category amounts.
func (p Profile) TotalExpenses() Money {
	var total int64
	for _, amount := range p.Expenses {
		total += amount.Cents
	}
	return Money{Cents: total}
}

func (r MonthRecord) Validate() error {
	if r.Year < MinYear || r.Year > MaxYear {
		return ErrInvalidYear
	}
	if r.Month < 1 || r.Month > 12 {
		return ErrInvalidMonth
	}
	for name, amount := range r.Expenses {
		if err := ValidateCategoryName(name); err != nil {
			return err
		}
		if err := amount.Validate(); err != nil {
			return fmt.Errorf("category %q: %w", name, err)
		}
	}
	return nil
}

// Total sums the record's expense amounts.
func (r MonthRecord) Total() Money {
	var total int64
	for _, amount := range r.Expenses {
		total += amount.Cents
	}
	return Money{Cents: total}
}

// Key returns the canonical "YYYY-MM" key for the record.
func (r MonthRecord) Key() string {
	return fmt.Sprintf("%04d-%02d", r.Year, r.Month)
}
