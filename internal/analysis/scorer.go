package analysis

type (
	// RiskTier buckets a health score for display and alerting.
	RiskTier string

	// FactorScore is one weighted factor of the health score.
	FactorScore struct {
		Name   string
		Points int
		Weight int
	}

	// HealthScore is the scored result: a 0-100 value, its tier, and
	// the per-factor breakdown. Defined is false when income is zero
	// and no meaningful score exists; the value is then 0 and the tier
	// high by policy.
	HealthScore struct {
		Value   float64
		Tier    RiskTier
		Factors []FactorScore
		Defined bool
	}
)

const (
	TierLow    RiskTier = "low"
	TierMedium RiskTier = "medium"
	TierHigh   RiskTier = "high"
)

// Tier thresholds on the 0-100 score.
const (
	lowTierMin    = 70
	mediumTierMin = 40
)

// step returns the points for the first threshold the value reaches.
// Thresholds must be sorted descending; floor is returned when none match.
type step struct {
	min    float64
	points int
}

func scoreSteps(value float64, steps []step, floor int) int {
	for _, s := range steps {
		if value >= s.min {
			return s.points
		}
	}
	return floor
}

// Score turns aggregates into a health score. Pure and total: every
// input produces a result. Weights are savings rate 30, emergency fund
// 25, debt-to-income 25, expense ratio 20, normalized to 0-100. The
// debt factor uses the annualized income basis.
func Score(a Aggregates) HealthScore {
	if !a.SavingsRate.Defined {
		// Zero income: no basis for a score, worst tier by policy.
		return HealthScore{Value: 0, Tier: TierHigh, Defined: false}
	}

	savingsPts := scoreSteps(a.SavingsRate.Value, []step{
		{0.20, 30}, {0.15, 25}, {0.10, 20}, {0.05, 15},
	}, 10)

	efPts := 10
	if a.EmergencyFundMonths.Defined {
		efPts = scoreSteps(a.EmergencyFundMonths.Value, []step{
			{6, 25}, {3, 20}, {1, 15},
		}, 10)
	} else if a.TotalExpenses.Cents == 0 && a.Savings.Cents > 0 {
		// No expenses and positive savings: fund covers any horizon.
		efPts = 25
	}

	dtiPts := 5
	if a.AnnualDebtToIncome.Defined {
		switch dti := a.AnnualDebtToIncome.Value; {
		case dti < 0.2:
			dtiPts = 25
		case dti < 0.3:
			dtiPts = 20
		case dti < 0.4:
			dtiPts = 15
		case dti < 0.5:
			dtiPts = 10
		}
	}

	expensePts := 5
	if a.ExpenseRatio.Defined {
		switch er := a.ExpenseRatio.Value; {
		case er < 0.5:
			expensePts = 20
		case er < 0.7:
			expensePts = 15
		case er < 0.8:
			expensePts = 10
		}
	}

	factors := []FactorScore{
		{Name: "savings_rate", Points: savingsPts, Weight: 30},
		{Name: "emergency_fund", Points: efPts, Weight: 25},
		{Name: "debt_to_income", Points: dtiPts, Weight: 25},
		{Name: "expense_ratio", Points: expensePts, Weight: 20},
	}

	var points, weight int
	for _, f := range factors {
		points += f.Points
		weight += f.Weight
	}
	value := float64(points) / float64(weight) * 100
	if value > 100 {
		value = 100
	}
	if value < 0 {
		value = 0
	}

	return HealthScore{Value: value, Tier: tierFor(value), Factors: factors, Defined: true}
}

func tierFor(score float64) RiskTier {
	switch {
	case score >= lowTierMin:
		return TierLow
	case score >= mediumTierMin:
		return TierMedium
	default:
		return TierHigh
	}
}
