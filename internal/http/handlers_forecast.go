package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"fintwin/internal/analysis"
	"fintwin/internal/forecast"
)

// handleForecast renders the forecast partial: the expense trend from
// recorded history plus the savings projection with milestones.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	sess, err := s.getOrCreateSession(w, r)
	if err != nil {
		slog.ErrorContext(r.Context(), "Session error", "error", err)
		_, _ = w.Write([]byte(`<section id="forecast" class="forecast"><div class="placeholder">Error loading forecast</div></section>`))
		return
	}

	horizon := s.horizon
	if v := strings.TrimSpace(r.URL.Query().Get("horizon")); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h >= 1 && h <= 120 {
			horizon = h
		}
	}

	key := s.partialKey(sess, "forecast:"+strconv.Itoa(horizon))
	if html, found := s.partialCache.Get(key); found {
		atomic.AddInt64(&s.appMetrics.cacheHits, 1)
		_, _ = w.Write([]byte(html))
		return
	}
	atomic.AddInt64(&s.appMetrics.cacheMisses, 1)

	agg := analysis.Derive(sess.Profile)

	type point struct {
		Month  int
		Amount string
	}
	type milestone struct {
		Months  int
		Balance string
		Drained bool
	}
	data := struct {
		Horizon        int
		HasExpenses    bool
		TooLittleData  bool
		Degraded       bool
		Method         string
		MonthsRecorded int
		Expense        []point
		Savings        []point
		Milestones     []milestone
	}{
		Horizon:        horizon,
		MonthsRecorded: len(sess.History),
	}

	series, err := forecast.Forecast(sess.HistorySeries(), horizon)
	switch {
	case errors.Is(err, forecast.ErrInsufficientHistory):
		data.TooLittleData = true
	case err != nil:
		slog.ErrorContext(r.Context(), "Forecast error", "error", err, "session_id", sess.ID)
		data.TooLittleData = true
	default:
		data.HasExpenses = true
		data.Degraded = series.Degraded
		data.Method = string(series.Method)
		for i, cents := range series.Values {
			data.Expense = append(data.Expense, point{Month: i + 1, Amount: formatDollars(cents)})
		}
	}

	proj := forecast.ProjectSavings(agg.Savings.Cents, agg.Surplus, horizon)
	for i, cents := range proj.Values {
		data.Savings = append(data.Savings, point{Month: i + 1, Amount: formatDollars(cents)})
	}
	for _, m := range proj.Milestones {
		data.Milestones = append(data.Milestones, milestone{
			Months:  m.Months,
			Balance: formatDollars(m.Balance),
			Drained: m.Balance < 0,
		})
	}

	slog.DebugContext(r.Context(), "Forecast rendered",
		"session_id", sess.ID,
		"horizon_months", horizon,
		"history_months", len(sess.History),
		"degraded", data.Degraded)

	s.renderPartial(w, r, "forecast.html", key, data,
		`<section id="forecast" class="forecast"><div class="placeholder">Error rendering forecast</div></section>`)
}
