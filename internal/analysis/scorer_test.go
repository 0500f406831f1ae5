package analysis

import (
	"testing"

	"fintwin/internal/core"
)

func TestScoreHealthyProfile(t *testing.T) {
	hs := Score(Derive(sampleProfile()))

	// savings rate 0.6 -> 30, emergency fund 5 months -> 20,
	// annualized debt-to-income 0.033 -> 25, expense ratio 0.4 -> 20.
	if !hs.Defined {
		t.Fatalf("expected defined score")
	}
	if hs.Value != 95 {
		t.Fatalf("expected score 95, got %v", hs.Value)
	}
	if hs.Tier != TierLow {
		t.Fatalf("expected low tier, got %s", hs.Tier)
	}
	if len(hs.Factors) != 4 {
		t.Fatalf("expected 4 factors, got %d", len(hs.Factors))
	}
}

func TestScoreZeroIncome(t *testing.T) {
	hs := Score(Derive(core.NewProfile()))
	if hs.Defined {
		t.Fatalf("expected undefined score at zero income")
	}
	if hs.Value != 0 || hs.Tier != TierHigh {
		t.Fatalf("expected 0/high, got %v/%s", hs.Value, hs.Tier)
	}
}

func TestScoreBounds(t *testing.T) {
	worst := core.Profile{
		Income: core.Money{Cents: 100000},
		Debt:   core.Money{Cents: 10000000},
		Expenses: map[string]core.Money{
			"rent": {Cents: 200000},
		},
	}
	hs := Score(Derive(worst))
	if hs.Value < 0 || hs.Value > 100 {
		t.Fatalf("score out of range: %v", hs.Value)
	}
	if hs.Tier != TierHigh {
		t.Fatalf("expected high tier for worst case, got %s", hs.Tier)
	}

	best := core.Profile{
		Income:  core.Money{Cents: 1000000},
		Savings: core.Money{Cents: 10000000},
		Expenses: map[string]core.Money{
			"rent": {Cents: 100000},
		},
	}
	hs = Score(Derive(best))
	if hs.Value != 100 {
		t.Fatalf("expected 100 for best case, got %v", hs.Value)
	}
}

// Score must not decrease as the savings rate improves with debt fixed.
func TestScoreMonotonicInSavingsRate(t *testing.T) {
	prev := -1.0
	for _, rent := range []int64{450000, 400000, 300000, 200000, 100000, 0} {
		p := core.Profile{
			Income:   core.Money{Cents: 500000},
			Savings:  core.Money{Cents: 1000000},
			Debt:     core.Money{Cents: 200000},
			Expenses: map[string]core.Money{"rent": {Cents: rent}},
		}
		hs := Score(Derive(p))
		if hs.Value < prev {
			t.Fatalf("score dropped from %v to %v at rent=%d", prev, hs.Value, rent)
		}
		prev = hs.Value
	}
}

// Score must not increase as debt grows with savings rate fixed.
func TestScoreMonotonicInDebt(t *testing.T) {
	prev := 101.0
	for _, debt := range []int64{0, 500000, 1500000, 2500000, 3500000, 10000000} {
		p := core.Profile{
			Income:   core.Money{Cents: 500000},
			Savings:  core.Money{Cents: 1000000},
			Debt:     core.Money{Cents: debt},
			Expenses: map[string]core.Money{"rent": {Cents: 200000}},
		}
		hs := Score(Derive(p))
		if hs.Value > prev {
			t.Fatalf("score rose from %v to %v at debt=%d", prev, hs.Value, debt)
		}
		prev = hs.Value
	}
}

func TestTierBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		tier  RiskTier
	}{
		{100, TierLow},
		{70, TierLow},
		{69.9, TierMedium},
		{40, TierMedium},
		{39.9, TierHigh},
		{0, TierHigh},
	}
	for i, tc := range cases {
		if got := tierFor(tc.score); got != tc.tier {
			t.Fatalf("case %d: score %v expected %s, got %s", i, tc.score, tc.tier, got)
		}
	}
}
