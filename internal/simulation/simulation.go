// Package simulation evaluates what-if scenarios against a baseline
// profile. Evaluation always works on a deep copy; the baseline is
// never touched.
package simulation

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"fintwin/internal/analysis"
	"fintwin/internal/core"
)

type (
	// Target names the profile field a delta applies to.
	Target string

	// Kind is how a delta changes its target.
	Kind string

	// Delta is one adjustment inside a scenario. Percent deltas scale
	// the current value (-50 halves it); absolute deltas add signed
	// cents. Results clamp at zero. An absolute delta on an unknown
	// category creates it.
	Delta struct {
		Target   Target
		Category string // set when Target is TargetCategory
		Kind     Kind
		Percent  float64 // for KindPercent
		Amount   int64   // signed cents, for KindAbsolute
	}

	// Scenario is a named list of deltas, applied sequentially in
	// list order.
	Scenario struct {
		Name   string
		Deltas []Delta
	}

	// Result is one evaluated scenario: the derived profile, its
	// aggregates and score, and the baseline score for side-by-side
	// comparison.
	Result struct {
		Scenario      string
		Profile       core.Profile
		Aggregates    analysis.Aggregates
		Score         analysis.HealthScore
		BaselineScore analysis.HealthScore
	}
)

const (
	TargetIncome   Target = "income"
	TargetSavings  Target = "savings"
	TargetDebt     Target = "debt"
	TargetCategory Target = "category"

	KindPercent  Kind = "percent"
	KindAbsolute Kind = "absolute"
)

// MaxDeltas bounds the deltas accepted per scenario.
const MaxDeltas = 20

var (
	ErrEmptyScenarioName = errors.New("empty scenario name")
	ErrUnknownTarget     = errors.New("unknown delta target")
	ErrUnknownKind       = errors.New("unknown delta kind")
	ErrTooManyDeltas     = errors.New("too many deltas")
	ErrPercentTooLow     = errors.New("percent delta below -100")
	ErrPercentNotFinite  = errors.New("percent delta not finite")
)

// Validate checks the scenario's name and every delta.
func (s Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyScenarioName
	}
	if len(s.Deltas) > MaxDeltas {
		return ErrTooManyDeltas
	}
	for i, d := range s.Deltas {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("delta %d: %w", i, err)
		}
	}
	return nil
}

func (d Delta) Validate() error {
	switch d.Target {
	case TargetIncome, TargetSavings, TargetDebt:
	case TargetCategory:
		if err := core.ValidateCategoryName(d.Category); err != nil {
			return err
		}
	default:
		return ErrUnknownTarget
	}
	switch d.Kind {
	case KindPercent:
		// NaN compares false against everything, so it slips past the
		// range check and later clamps the target to 0 in applyDelta.
		if math.IsNaN(d.Percent) || math.IsInf(d.Percent, 0) {
			return ErrPercentNotFinite
		}
		if d.Percent < -100 {
			return ErrPercentTooLow
		}
	case KindAbsolute:
	default:
		return ErrUnknownKind
	}
	return nil
}

func applyDelta(cents int64, d Delta) int64 {
	switch d.Kind {
	case KindPercent:
		cents = int64(float64(cents) * (1 + d.Percent/100))
	case KindAbsolute:
		cents += d.Amount
	}
	if cents < 0 {
		cents = 0
	}
	return cents
}

// Evaluate applies the scenario's deltas to a deep copy of the
// baseline and derives aggregates and score for the result. The
// baseline profile is unchanged.
func Evaluate(baseline core.Profile, sc Scenario) (Result, error) {
	if err := sc.Validate(); err != nil {
		return Result{}, err
	}

	derived := baseline.Clone()
	for _, d := range sc.Deltas {
		switch d.Target {
		case TargetIncome:
			derived.Income.Cents = applyDelta(derived.Income.Cents, d)
		case TargetSavings:
			derived.Savings.Cents = applyDelta(derived.Savings.Cents, d)
		case TargetDebt:
			derived.Debt.Cents = applyDelta(derived.Debt.Cents, d)
		case TargetCategory:
			name := strings.TrimSpace(d.Category)
			current, ok := derived.Expenses[name]
			if !ok && d.Kind == KindPercent {
				// Scaling a category that does not exist is a no-op.
				continue
			}
			derived.Expenses[name] = core.Money{Cents: applyDelta(current.Cents, d)}
		}
	}

	aggs := analysis.Derive(derived)
	return Result{
		Scenario:      sc.Name,
		Profile:       derived,
		Aggregates:    aggs,
		Score:         analysis.Score(aggs),
		BaselineScore: analysis.Score(analysis.Derive(baseline)),
	}, nil
}

// Compare evaluates each scenario independently against the same
// baseline. A scenario that fails validation fails the whole call;
// partial comparisons would be misleading.
func Compare(baseline core.Profile, scenarios []Scenario) ([]Result, error) {
	results := make([]Result, 0, len(scenarios))
	for _, sc := range scenarios {
		r, err := Evaluate(baseline, sc)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
		results = append(results, r)
	}
	return results, nil
}
