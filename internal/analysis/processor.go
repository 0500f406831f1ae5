// Package analysis derives aggregate financial figures from a profile
// and scores them into a 0-100 health score with a risk tier.
//
// Everything in this package is pure: no I/O, no clock, no mutation of
// inputs. Degenerate profiles (zero income, no expenses) produce
// defined sentinel outputs rather than NaN or errors.
package analysis

import (
	"fintwin/internal/core"
)

type (
	// Ratio is a derived ratio that may be undefined when its
	// denominator is zero. Value is meaningless when Defined is false.
	Ratio struct {
		Value   float64
		Defined bool
	}

	// Aggregates are the derived figures the scorer, forecaster and
	// advisor consume. Monetary values stay in cents; ratios are
	// dimensionless.
	Aggregates struct {
		Income        core.Money
		Savings       core.Money
		Debt          core.Money
		TotalExpenses core.Money
		ByCategory    []core.CategoryAmount

		// Surplus is income minus total expenses, may be negative.
		Surplus int64

		// SavingsRate is (income - totalExpenses) / income.
		SavingsRate Ratio
		// DebtToIncome is debt / monthly income.
		DebtToIncome Ratio
		// AnnualDebtToIncome is debt / (monthly income * 12), the
		// basis the scorer's debt thresholds are calibrated on.
		AnnualDebtToIncome Ratio
		// ExpenseRatio is totalExpenses / income.
		ExpenseRatio Ratio
		// EmergencyFundMonths is savings / totalExpenses.
		EmergencyFundMonths Ratio
	}
)

func definedRatio(num, den float64) Ratio {
	if den == 0 {
		return Ratio{}
	}
	return Ratio{Value: num / den, Defined: true}
}

// Derive computes the aggregate figures for a profile. It never fails:
// ratios with a zero denominator come back with Defined=false.
func Derive(p core.Profile) Aggregates {
	total := p.TotalExpenses()

	rows := make([]core.CategoryAmount, 0, len(p.Expenses))
	for name, amount := range p.Expenses {
		rows = append(rows, core.CategoryAmount{Name: name, Amount: amount})
	}
	core.SortByAmountDesc(rows)

	income := float64(p.Income.Cents)
	expenses := float64(total.Cents)
	savings := float64(p.Savings.Cents)
	debt := float64(p.Debt.Cents)

	return Aggregates{
		Income:        p.Income,
		Savings:       p.Savings,
		Debt:          p.Debt,
		TotalExpenses: total,
		ByCategory:    rows,
		Surplus:       p.Income.Cents - total.Cents,

		SavingsRate:         definedRatio(income-expenses, income),
		DebtToIncome:        definedRatio(debt, income),
		AnnualDebtToIncome:  definedRatio(debt, income*12),
		ExpenseRatio:        definedRatio(expenses, income),
		EmergencyFundMonths: definedRatio(savings, expenses),
	}
}
