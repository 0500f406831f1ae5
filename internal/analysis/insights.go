package analysis

// StrengthsWeaknesses derives plain-language observations from the
// aggregates for the health panel. Rules only fire on defined ratios;
// a profile with no income gets a single weakness saying so.
func StrengthsWeaknesses(a Aggregates) (strengths, weaknesses []string) {
	if !a.SavingsRate.Defined {
		return nil, []string{"No income recorded"}
	}

	switch sr := a.SavingsRate.Value; {
	case sr >= 0.2:
		strengths = append(strengths, "Excellent savings rate (>=20%)")
	case sr >= 0.15:
		strengths = append(strengths, "Good savings rate (>=15%)")
	}
	if a.EmergencyFundMonths.Defined {
		switch ef := a.EmergencyFundMonths.Value; {
		case ef >= 6:
			strengths = append(strengths, "Strong emergency fund (>=6 months)")
		case ef >= 3:
			strengths = append(strengths, "Adequate emergency fund (>=3 months)")
		}
	}
	if a.AnnualDebtToIncome.Defined {
		switch dti := a.AnnualDebtToIncome.Value; {
		case dti < 0.2:
			strengths = append(strengths, "Low debt-to-income ratio (<20%)")
		case dti < 0.3:
			strengths = append(strengths, "Healthy debt-to-income ratio (<30%)")
		}
	}
	if a.Savings.Cents > 0 {
		strengths = append(strengths, "Positive savings balance")
	}

	if a.SavingsRate.Value < 0.1 {
		weaknesses = append(weaknesses, "Low savings rate (<10%)")
	}
	if a.EmergencyFundMonths.Defined && a.EmergencyFundMonths.Value < 3 {
		weaknesses = append(weaknesses, "Insufficient emergency fund (<3 months)")
	}
	if a.AnnualDebtToIncome.Defined && a.AnnualDebtToIncome.Value > 0.4 {
		weaknesses = append(weaknesses, "High debt-to-income ratio (>40%)")
	}
	if a.ExpenseRatio.Defined && a.ExpenseRatio.Value > 0.8 {
		weaknesses = append(weaknesses, "High expense-to-income ratio (>80%)")
	}
	return strengths, weaknesses
}
