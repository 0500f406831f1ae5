package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"fintwin/internal/analysis"
	"fintwin/internal/core"
	"fintwin/internal/log"
	"fintwin/internal/oracle"
)

type fakeCompleter struct {
	calls int
	texts []string
	errs  []error
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.texts) {
		return f.texts[i], nil
	}
	return "", errors.New("unexpected call")
}

func testSnapshot() Snapshot {
	aggs := analysis.Derive(core.Profile{
		Income:  core.Money{Cents: 500000},
		Savings: core.Money{Cents: 1000000},
		Debt:    core.Money{Cents: 200000},
		Expenses: map[string]core.Money{
			"rent": {Cents: 150000},
			"food": {Cents: 50000},
		},
	})
	return Snapshot{Aggregates: aggs, Score: analysis.Score(aggs)}
}

func testLogger() *log.Logger {
	return log.New(log.DefaultConfig())
}

func newTestGenerator(c Completer) *Generator {
	g := NewGenerator(c, testLogger())
	g.backoff = time.Millisecond
	return g
}

func TestGenerateSuccess(t *testing.T) {
	fc := &fakeCompleter{texts: []string{"cut your rent"}}
	advice, err := newTestGenerator(fc).Generate(context.Background(), testSnapshot())
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if advice.Fallback || advice.Text != "cut your rent" {
		t.Fatalf("unexpected advice %+v", advice)
	}
	if fc.calls != 1 {
		t.Fatalf("expected 1 call, got %d", fc.calls)
	}
}

func TestGenerateRetriesRateLimit(t *testing.T) {
	fc := &fakeCompleter{
		errs:  []error{oracle.ErrRateLimited, nil},
		texts: []string{"", "second time lucky"},
	}
	advice, err := newTestGenerator(fc).Generate(context.Background(), testSnapshot())
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if advice.Fallback || advice.Text != "second time lucky" {
		t.Fatalf("unexpected advice %+v", advice)
	}
	if fc.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", fc.calls)
	}
}

func TestGenerateFallsBackAfterRetry(t *testing.T) {
	fc := &fakeCompleter{errs: []error{oracle.ErrRateLimited, oracle.ErrRateLimited}}
	advice, err := newTestGenerator(fc).Generate(context.Background(), testSnapshot())
	if err != nil {
		t.Fatalf("fallback path must not error, got %v", err)
	}
	if !advice.Fallback || advice.Text == "" {
		t.Fatalf("expected fallback advice, got %+v", advice)
	}
	if fc.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", fc.calls)
	}
}

func TestGenerateNoRetryOnUnauthorized(t *testing.T) {
	fc := &fakeCompleter{errs: []error{oracle.ErrUnauthorized}}
	advice, err := newTestGenerator(fc).Generate(context.Background(), testSnapshot())
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if !advice.Fallback {
		t.Fatalf("expected fallback advice")
	}
	if fc.calls != 1 {
		t.Fatalf("unauthorized must not retry, got %d calls", fc.calls)
	}
}

func TestGenerateNilCompleter(t *testing.T) {
	advice, err := newTestGenerator(nil).Generate(context.Background(), testSnapshot())
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if !advice.Fallback || !strings.Contains(advice.Text, "score is 95") {
		t.Fatalf("unexpected fallback text %q", advice.Text)
	}
}

func TestFallbackTextZeroIncome(t *testing.T) {
	aggs := analysis.Derive(core.NewProfile())
	snap := Snapshot{Aggregates: aggs, Score: analysis.Score(aggs)}
	advice, err := newTestGenerator(nil).Generate(context.Background(), snap)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if !strings.Contains(advice.Text, "No income is recorded") {
		t.Fatalf("unexpected text %q", advice.Text)
	}
}

func TestBuildPromptBounded(t *testing.T) {
	p := core.NewProfile()
	p.Income = core.Money{Cents: 500000}
	for i := 0; i < 40; i++ {
		p.Expenses[fmt.Sprintf("category-%02d-%s", i, strings.Repeat("x", 80))] = core.Money{Cents: int64(1000 + i)}
	}
	aggs := analysis.Derive(p)
	prompt := BuildPrompt(Snapshot{Aggregates: aggs, Score: analysis.Score(aggs)})

	if len(prompt) > maxPromptBytes {
		t.Fatalf("prompt exceeds cap: %d bytes", len(prompt))
	}
	if count := strings.Count(prompt, "category-"); count > maxPromptCategories {
		t.Fatalf("expected at most %d category lines, got %d", maxPromptCategories, count)
	}
}

func TestBuildPromptScenarioSummary(t *testing.T) {
	snap := testSnapshot()
	snap.ScenarioSummary = "rent halved"
	if !strings.Contains(BuildPrompt(snap), "rent halved") {
		t.Fatalf("scenario summary missing from prompt")
	}
}
