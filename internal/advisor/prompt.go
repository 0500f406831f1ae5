package advisor

import (
	"fmt"
	"strings"
)

const (
	// maxPromptBytes caps the user prompt regardless of profile size.
	maxPromptBytes = 4096
	// maxPromptCategories caps how many expense categories make it
	// into the prompt; the rest are summed into an "other" line.
	maxPromptCategories = 10
)

const systemPrompt = "You are a personal finance assistant. " +
	"You receive a summary of a user's monthly finances and reply with " +
	"concrete, prioritized recommendations in plain text. Be specific " +
	"and brief; do not repeat the numbers back verbatim."

// BuildPrompt renders the snapshot into the user prompt. Output size
// is bounded: top categories only, hard byte cap at the end.
func BuildPrompt(snap Snapshot) string {
	a := snap.Aggregates
	var b strings.Builder

	fmt.Fprintf(&b, "Monthly income: %s\n", a.Income.Format())
	fmt.Fprintf(&b, "Savings balance: %s\n", a.Savings.Format())
	fmt.Fprintf(&b, "Outstanding debt: %s\n", a.Debt.Format())
	fmt.Fprintf(&b, "Total monthly expenses: %s\n", a.TotalExpenses.Format())

	if len(a.ByCategory) > 0 {
		b.WriteString("Expenses by category:\n")
		var otherCents int64
		for i, row := range a.ByCategory {
			if i < maxPromptCategories {
				fmt.Fprintf(&b, "  %s: %s\n", row.Name, row.Amount.Format())
			} else {
				otherCents += row.Amount.Cents
			}
		}
		if otherCents > 0 {
			fmt.Fprintf(&b, "  other (%d categories): %d.%02d\n",
				len(a.ByCategory)-maxPromptCategories, otherCents/100, otherCents%100)
		}
	}

	if a.SavingsRate.Defined {
		fmt.Fprintf(&b, "Savings rate: %.1f%%\n", a.SavingsRate.Value*100)
	}
	if a.DebtToIncome.Defined {
		fmt.Fprintf(&b, "Debt-to-income (monthly): %.1f%%\n", a.DebtToIncome.Value*100)
	}
	if a.EmergencyFundMonths.Defined {
		fmt.Fprintf(&b, "Emergency fund coverage: %.1f months\n", a.EmergencyFundMonths.Value)
	}
	if snap.Score.Defined {
		fmt.Fprintf(&b, "Health score: %.0f/100 (%s risk)\n", snap.Score.Value, snap.Score.Tier)
	} else {
		b.WriteString("Health score: not computable (no income recorded)\n")
	}

	if s := strings.TrimSpace(snap.ScenarioSummary); s != "" {
		b.WriteString("Scenario under consideration: ")
		b.WriteString(s)
		b.WriteString("\n")
	}

	b.WriteString("\nGive your top recommendations for improving this situation.")

	out := b.String()
	if len(out) > maxPromptBytes {
		out = out[:maxPromptBytes]
	}
	return out
}
