// Package advisor turns analysis results into textual recommendations.
// It prefers the completion oracle and falls back to deterministic
// rule-based advice, so the caller always gets a message.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fintwin/internal/analysis"
	"fintwin/internal/log"
	"fintwin/internal/oracle"
)

const (
	maxTokens   = 600
	temperature = 0.7

	retryBackoff = 500 * time.Millisecond
)

type (
	// Snapshot is the bounded view of a session's state the advisor
	// builds its prompt from.
	Snapshot struct {
		Aggregates analysis.Aggregates
		Score      analysis.HealthScore
		// ScenarioSummary optionally describes an evaluated what-if
		// result the advice should take into account.
		ScenarioSummary string
	}

	// Advice is the generated recommendation. Fallback marks text
	// produced by the local rules instead of the oracle.
	Advice struct {
		Text     string
		Fallback bool
	}

	// Completer is the oracle surface the generator needs.
	Completer interface {
		Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error)
	}

	// Generator produces advice for snapshots. A nil completer means
	// the oracle is not configured and every call falls back.
	Generator struct {
		completer Completer
		logger    *log.Logger
		backoff   time.Duration
	}
)

// NewGenerator creates a generator backed by the given completer,
// which may be nil when no API key is configured.
func NewGenerator(completer Completer, logger *log.Logger) *Generator {
	return &Generator{
		completer: completer,
		logger:    logger.WithComponent("advisor"),
		backoff:   retryBackoff,
	}
}

// Generate returns advice for the snapshot. Oracle failures are
// retried once when retryable, then the rule-based fallback text is
// returned. The error return is always nil today; kept for callers
// that want to surface future hard failures.
func (g *Generator) Generate(ctx context.Context, snap Snapshot) (Advice, error) {
	if g.completer == nil {
		return Advice{Text: fallbackText(snap), Fallback: true}, nil
	}

	user := BuildPrompt(snap)
	text, err := g.completer.Complete(ctx, systemPrompt, user, maxTokens, temperature)
	if err != nil && retryable(err) && ctx.Err() == nil {
		g.logger.WarnContext(ctx, "oracle call failed, retrying",
			log.FieldOperation, log.OpGenerateAdvice, log.FieldError, err.Error())
		select {
		case <-time.After(g.backoff):
		case <-ctx.Done():
		}
		if ctx.Err() == nil {
			text, err = g.completer.Complete(ctx, systemPrompt, user, maxTokens, temperature)
		}
	}
	if err != nil {
		g.logger.WarnContext(ctx, "oracle unavailable, using fallback advice",
			log.FieldOperation, log.OpGenerateAdvice, log.FieldError, err.Error())
		return Advice{Text: fallbackText(snap), Fallback: true}, nil
	}
	return Advice{Text: text}, nil
}

// retryable reports whether a second attempt could help.
func retryable(err error) bool {
	if errors.Is(err, oracle.ErrUnauthorized) || errors.Is(err, oracle.ErrMalformed) {
		return false
	}
	return true
}

// fallbackText composes deterministic advice from the snapshot's
// weaknesses and strengths.
func fallbackText(snap Snapshot) string {
	strengths, weaknesses := analysis.StrengthsWeaknesses(snap.Aggregates)

	var b strings.Builder
	b.WriteString("Automated advice is temporarily unavailable; here is a rule-based summary.\n\n")

	if snap.Score.Defined {
		fmt.Fprintf(&b, "Your financial health score is %.0f/100 (%s risk).\n", snap.Score.Value, snap.Score.Tier)
	} else {
		b.WriteString("No income is recorded, so no health score can be computed. Start by entering your monthly income.\n")
	}

	if len(weaknesses) > 0 {
		b.WriteString("\nAreas to work on:\n")
		for _, w := range weaknesses {
			b.WriteString("- " + w + "\n")
		}
		b.WriteString("\nSuggestions:\n")
		for _, s := range suggestionsFor(weaknesses) {
			b.WriteString("- " + s + "\n")
		}
	}
	if len(strengths) > 0 {
		b.WriteString("\nWhat is working:\n")
		for _, s := range strengths {
			b.WriteString("- " + s + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// suggestionsFor maps weakness rules to concrete actions.
func suggestionsFor(weaknesses []string) []string {
	var out []string
	for _, w := range weaknesses {
		switch {
		case strings.Contains(w, "savings rate"):
			out = append(out, "Increase your emergency fund", "Consider a high-yield savings account")
		case strings.Contains(w, "emergency fund"):
			out = append(out, "Build your emergency fund toward three months of expenses")
		case strings.Contains(w, "debt-to-income"):
			out = append(out, "Pay off high-interest debt first", "Consider debt consolidation")
		case strings.Contains(w, "expense-to-income"):
			out = append(out, "Review your largest expense categories for cuts")
		}
	}
	return out
}
