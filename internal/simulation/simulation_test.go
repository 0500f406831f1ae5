package simulation

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"fintwin/internal/core"
)

func baseline() core.Profile {
	return core.Profile{
		Income:  core.Money{Cents: 500000},
		Savings: core.Money{Cents: 1000000},
		Debt:    core.Money{Cents: 200000},
		Expenses: map[string]core.Money{
			"rent": {Cents: 150000},
			"food": {Cents: 50000},
		},
	}
}

func TestEvaluateLeavesBaselineUntouched(t *testing.T) {
	base := baseline()
	snapshot := base.Clone()

	sc := Scenario{Name: "shake-up", Deltas: []Delta{
		{Target: TargetIncome, Kind: KindPercent, Percent: -50},
		{Target: TargetCategory, Category: "rent", Kind: KindAbsolute, Amount: 50000},
		{Target: TargetCategory, Category: "gym", Kind: KindAbsolute, Amount: 4000},
		{Target: TargetDebt, Kind: KindAbsolute, Amount: -200000},
	}}
	if _, err := Evaluate(base, sc); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	if !reflect.DeepEqual(base, snapshot) {
		t.Fatalf("baseline mutated:\nbefore %+v\nafter  %+v", snapshot, base)
	}
}

func TestEvaluateDeltas(t *testing.T) {
	sc := Scenario{Name: "cut rent", Deltas: []Delta{
		{Target: TargetCategory, Category: "rent", Kind: KindPercent, Percent: -50},
	}}
	r, err := Evaluate(baseline(), sc)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if got := r.Profile.Expenses["rent"].Cents; got != 75000 {
		t.Fatalf("expected rent 75000, got %d", got)
	}
	if r.Aggregates.TotalExpenses.Cents != 125000 {
		t.Fatalf("expected total 125000, got %d", r.Aggregates.TotalExpenses.Cents)
	}
}

func TestEvaluateSequentialComposition(t *testing.T) {
	// -50% then +100000 differs from +100000 then -50%.
	base := baseline()
	first, err := Evaluate(base, Scenario{Name: "a", Deltas: []Delta{
		{Target: TargetCategory, Category: "rent", Kind: KindPercent, Percent: -50},
		{Target: TargetCategory, Category: "rent", Kind: KindAbsolute, Amount: 100000},
	}})
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if got := first.Profile.Expenses["rent"].Cents; got != 175000 {
		t.Fatalf("expected 175000, got %d", got)
	}

	second, err := Evaluate(base, Scenario{Name: "b", Deltas: []Delta{
		{Target: TargetCategory, Category: "rent", Kind: KindAbsolute, Amount: 100000},
		{Target: TargetCategory, Category: "rent", Kind: KindPercent, Percent: -50},
	}})
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if got := second.Profile.Expenses["rent"].Cents; got != 125000 {
		t.Fatalf("expected 125000, got %d", got)
	}
}

func TestEvaluateClampsAtZero(t *testing.T) {
	r, err := Evaluate(baseline(), Scenario{Name: "overshoot", Deltas: []Delta{
		{Target: TargetDebt, Kind: KindAbsolute, Amount: -500000},
	}})
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if r.Profile.Debt.Cents != 0 {
		t.Fatalf("expected debt clamped to 0, got %d", r.Profile.Debt.Cents)
	}
}

func TestEvaluateCreatesCategoryOnAbsoluteDelta(t *testing.T) {
	r, err := Evaluate(baseline(), Scenario{Name: "new car", Deltas: []Delta{
		{Target: TargetCategory, Category: "car", Kind: KindAbsolute, Amount: 30000},
	}})
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if got := r.Profile.Expenses["car"].Cents; got != 30000 {
		t.Fatalf("expected new category at 30000, got %d", got)
	}
}

func TestEvaluatePercentOnMissingCategoryIsNoop(t *testing.T) {
	r, err := Evaluate(baseline(), Scenario{Name: "noop", Deltas: []Delta{
		{Target: TargetCategory, Category: "yacht", Kind: KindPercent, Percent: -50},
	}})
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if _, ok := r.Profile.Expenses["yacht"]; ok {
		t.Fatalf("percent delta must not create a category")
	}
}

func TestScenarioValidate(t *testing.T) {
	cases := []struct {
		name string
		sc   Scenario
		want error
	}{
		{"empty name", Scenario{Name: "  "}, ErrEmptyScenarioName},
		{"bad target", Scenario{Name: "x", Deltas: []Delta{{Target: "house", Kind: KindPercent}}}, ErrUnknownTarget},
		{"bad kind", Scenario{Name: "x", Deltas: []Delta{{Target: TargetIncome, Kind: "triple"}}}, ErrUnknownKind},
		{"percent too low", Scenario{Name: "x", Deltas: []Delta{{Target: TargetIncome, Kind: KindPercent, Percent: -150}}}, ErrPercentTooLow},
		{"nan percent", Scenario{Name: "x", Deltas: []Delta{{Target: TargetIncome, Kind: KindPercent, Percent: math.NaN()}}}, ErrPercentNotFinite},
		{"positive inf percent", Scenario{Name: "x", Deltas: []Delta{{Target: TargetIncome, Kind: KindPercent, Percent: math.Inf(1)}}}, ErrPercentNotFinite},
		{"negative inf percent", Scenario{Name: "x", Deltas: []Delta{{Target: TargetIncome, Kind: KindPercent, Percent: math.Inf(-1)}}}, ErrPercentNotFinite},
		{"empty category", Scenario{Name: "x", Deltas: []Delta{{Target: TargetCategory, Kind: KindAbsolute}}}, core.ErrEmptyCategory},
	}
	for _, tc := range cases {
		if err := tc.sc.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestEvaluateRejectsNonFinitePercent(t *testing.T) {
	for _, pct := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Evaluate(baseline(), Scenario{Name: "drift", Deltas: []Delta{
			{Target: TargetIncome, Kind: KindPercent, Percent: pct},
		}})
		if !errors.Is(err, ErrPercentNotFinite) {
			t.Fatalf("percent %v: expected ErrPercentNotFinite, got %v", pct, err)
		}
	}
}

func TestCompare(t *testing.T) {
	base := baseline()
	scenarios := []Scenario{
		{Name: "raise", Deltas: []Delta{{Target: TargetIncome, Kind: KindPercent, Percent: 20}}},
		{Name: "job loss", Deltas: []Delta{{Target: TargetIncome, Kind: KindPercent, Percent: -100}}},
	}
	results, err := Compare(base, scenarios)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Score.Value < results[0].BaselineScore.Value {
		t.Fatalf("raise should not lower the score")
	}
	if results[1].Score.Defined {
		t.Fatalf("job loss zeroes income, score must be undefined")
	}

	if _, err := Compare(base, []Scenario{{Name: ""}}); err == nil {
		t.Fatalf("expected validation error to fail the comparison")
	}
}
