// Package http provides the HTMX presentation layer.
//
// This file implements utilities for parsing and validating HTTP
// request data. All form input is sanitized and converted to typed
// values here, before anything reaches the analysis components.
package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fintwin/internal/core"
	"fintwin/internal/simulation"
)

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}

// parseMoneyField parses one named decimal amount from the form.
// Missing or empty values come back as zero.
func parseMoneyField(form url.Values, key string) (core.Money, error) {
	raw := strings.TrimSpace(form.Get(key))
	if raw == "" {
		return core.Money{}, nil
	}
	cents, err := core.ParseDecimalToCents(raw)
	if err != nil {
		return core.Money{}, fmt.Errorf("invalid %s amount %q: %w", key, raw, err)
	}
	return core.Money{Cents: cents}, nil
}

// parseExpenseRows pairs the repeated category/amount form fields into
// a typed expense map. Rows with an empty category name are skipped;
// duplicate categories are rejected.
func parseExpenseRows(form url.Values) (map[string]core.Money, error) {
	names := form["category"]
	amounts := form["amount"]
	if len(names) != len(amounts) {
		return nil, fmt.Errorf("mismatched expense rows: %d categories, %d amounts", len(names), len(amounts))
	}

	expenses := make(map[string]core.Money, len(names))
	for i, raw := range names {
		name := sanitizeInput(raw)
		amountStr := strings.TrimSpace(amounts[i])
		if name == "" && amountStr == "" {
			continue
		}
		if err := core.ValidateCategoryName(name); err != nil {
			return nil, fmt.Errorf("category %d: %w", i+1, err)
		}
		if _, dup := expenses[name]; dup {
			return nil, fmt.Errorf("duplicate category %q", name)
		}
		cents, err := core.ParseDecimalToCents(amountStr)
		if err != nil {
			return nil, fmt.Errorf("category %q: %w", name, err)
		}
		expenses[name] = core.Money{Cents: cents}
	}
	return expenses, nil
}

// parseProfileForm builds a validated profile from the basics form.
func parseProfileForm(form url.Values) (core.Profile, error) {
	p := core.NewProfile()

	var err error
	if p.Income, err = parseMoneyField(form, "income"); err != nil {
		return core.Profile{}, err
	}
	if p.Savings, err = parseMoneyField(form, "savings"); err != nil {
		return core.Profile{}, err
	}
	if p.Debt, err = parseMoneyField(form, "debt"); err != nil {
		return core.Profile{}, err
	}

	expenses, err := parseExpenseRows(form)
	if err != nil {
		return core.Profile{}, err
	}
	if expenses != nil {
		p.Expenses = expenses
	}

	if err := p.Validate(); err != nil {
		return core.Profile{}, err
	}
	return p, nil
}

// parseMonthForm builds a validated month record from the history
// form, defaulting year/month to the current date.
func parseMonthForm(form url.Values) (core.MonthRecord, error) {
	now := time.Now()
	rec := core.MonthRecord{Year: now.Year(), Month: int(now.Month())}

	if v := strings.TrimSpace(form.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return core.MonthRecord{}, fmt.Errorf("invalid year %q", v)
		}
		rec.Year = y
	}
	if v := strings.TrimSpace(form.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return core.MonthRecord{}, fmt.Errorf("invalid month %q", v)
		}
		rec.Month = m
	}

	expenses, err := parseExpenseRows(form)
	if err != nil {
		return core.MonthRecord{}, err
	}
	rec.Expenses = expenses
	if rec.Expenses == nil {
		rec.Expenses = make(map[string]core.Money)
	}

	if err := rec.Validate(); err != nil {
		return core.MonthRecord{}, err
	}
	return rec, nil
}

// parseSignedCents parses a decimal amount that may be negative, for
// absolute scenario deltas.
func parseSignedCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		cents, err := core.ParseDecimalToCents(strings.TrimSpace(s[1:]))
		if err != nil {
			return 0, err
		}
		return -cents, nil
	}
	return core.ParseDecimalToCents(s)
}

// parseScenarioForm builds a validated scenario from the what-if form.
// Delta rows arrive as parallel delta_target/delta_category/delta_kind/
// delta_value fields; blank rows are skipped.
func parseScenarioForm(form url.Values) (simulation.Scenario, error) {
	sc := simulation.Scenario{Name: sanitizeInput(form.Get("name"))}

	targets := form["delta_target"]
	categories := form["delta_category"]
	kinds := form["delta_kind"]
	values := form["delta_value"]
	if len(targets) != len(kinds) || len(targets) != len(values) {
		return simulation.Scenario{}, fmt.Errorf("mismatched delta rows")
	}

	for i := range targets {
		target := simulation.Target(strings.TrimSpace(targets[i]))
		kind := simulation.Kind(strings.TrimSpace(kinds[i]))
		valueStr := strings.TrimSpace(values[i])
		if target == "" && valueStr == "" {
			continue
		}

		d := simulation.Delta{Target: target, Kind: kind}
		if i < len(categories) {
			d.Category = sanitizeInput(categories[i])
		}

		switch kind {
		case simulation.KindPercent:
			pct, err := strconv.ParseFloat(valueStr, 64)
			if err != nil {
				return simulation.Scenario{}, fmt.Errorf("delta %d: invalid percent %q", i+1, valueStr)
			}
			d.Percent = pct
		case simulation.KindAbsolute:
			cents, err := parseSignedCents(valueStr)
			if err != nil {
				return simulation.Scenario{}, fmt.Errorf("delta %d: invalid amount %q: %w", i+1, valueStr, err)
			}
			d.Amount = cents
		default:
			return simulation.Scenario{}, fmt.Errorf("delta %d: %w", i+1, simulation.ErrUnknownKind)
		}

		sc.Deltas = append(sc.Deltas, d)
	}

	if err := sc.Validate(); err != nil {
		return simulation.Scenario{}, err
	}
	return sc, nil
}
