package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"fintwin/internal/analysis"
	"fintwin/internal/session"
)

// handleUpdateProfile replaces the session's profile with the
// submitted basics and expense rows.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	profile, err := parseProfileForm(r.Form)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	sess, err := s.getOrCreateSession(w, r)
	if err != nil {
		slog.ErrorContext(r.Context(), "Session error", "error", err)
		InternalServerError("Session unavailable").Write(w)
		return
	}

	updated, err := s.sessions.Update(sess.ID, func(live *session.Session) error {
		live.Profile = profile
		return nil
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "Profile update failed", "error", err, "session_id", sess.ID)
		InternalServerError("Failed to update profile").Write(w)
		return
	}

	slog.InfoContext(r.Context(), "Profile updated",
		"session_id", updated.ID,
		"income_cents", profile.Income.Cents,
		"categories", len(profile.Expenses),
		"version", updated.Version)

	NewHTMXResponse().
		TriggerProfileUpdated(updated.Version).
		TriggerSuccessNotification("Profile saved").
		Write(w)
}

// handleRecordMonth stores one month of expense history for the
// expense trend forecast.
func (s *Server) handleRecordMonth(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	rec, err := parseMonthForm(r.Form)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	sess, err := s.getOrCreateSession(w, r)
	if err != nil {
		slog.ErrorContext(r.Context(), "Session error", "error", err)
		InternalServerError("Session unavailable").Write(w)
		return
	}

	updated, err := s.sessions.Update(sess.ID, func(live *session.Session) error {
		live.SetMonthRecord(rec)
		return nil
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "History record failed", "error", err, "session_id", sess.ID)
		InternalServerError("Failed to record month").Write(w)
		return
	}

	slog.InfoContext(r.Context(), "Month recorded",
		"session_id", updated.ID,
		"month", rec.Key(),
		"total_cents", rec.Total().Cents,
		"months_stored", len(updated.History))

	NewHTMXResponse().
		TriggerHistoryRecorded(rec.Year, rec.Month).
		TriggerProfileUpdated(updated.Version).
		TriggerSuccessNotification(fmt.Sprintf("Recorded %s: %s", rec.Key(), formatDollars(rec.Total().Cents))).
		Write(w)
}

// handleOverview renders the profile overview partial: totals, surplus
// and the per-category breakdown bars.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	sess, err := s.getOrCreateSession(w, r)
	if err != nil {
		slog.ErrorContext(r.Context(), "Session error", "error", err)
		_, _ = w.Write([]byte(`<section id="overview" class="overview"><div class="placeholder">Error loading overview</div></section>`))
		return
	}

	key := s.partialKey(sess, "overview")
	if html, found := s.partialCache.Get(key); found {
		atomic.AddInt64(&s.appMetrics.cacheHits, 1)
		_, _ = w.Write([]byte(html))
		return
	}
	atomic.AddInt64(&s.appMetrics.cacheMisses, 1)

	agg := analysis.Derive(sess.Profile)

	// Max category for progress bar scaling
	var maxCents int64
	var maxName string
	for _, row := range agg.ByCategory {
		if row.Amount.Cents > maxCents {
			maxCents = row.Amount.Cents
			maxName = row.Name
		}
	}
	type row struct {
		Name, Amount string
		Width        int
	}
	data := struct {
		Income      string
		Expenses    string
		Savings     string
		Debt        string
		Surplus     string
		Deficit     bool
		SavingsRate string
		MaxName     string
		Rows        []row
	}{
		Income:   formatDollars(agg.Income.Cents),
		Expenses: formatDollars(agg.TotalExpenses.Cents),
		Savings:  formatDollars(agg.Savings.Cents),
		Debt:     formatDollars(agg.Debt.Cents),
		Surplus:  formatDollars(agg.Surplus),
		Deficit:  agg.Surplus < 0,
		MaxName:  maxName,
	}
	if agg.SavingsRate.Defined {
		data.SavingsRate = fmt.Sprintf("%.1f%%", agg.SavingsRate.Value*100)
	}
	for _, c := range agg.ByCategory {
		width := 0
		if maxCents > 0 && c.Amount.Cents > 0 {
			width = int((c.Amount.Cents*100 + maxCents/2) / maxCents) // rounded percent
			if width > 0 && width < 2 {                               // ensure visibility for very small values
				width = 2
			}
			if width > 100 {
				width = 100
			}
		}
		data.Rows = append(data.Rows, row{Name: c.Name, Amount: formatDollars(c.Amount.Cents), Width: width})
	}

	s.renderPartial(w, r, "overview.html", key, data,
		`<section id="overview" class="overview"><div class="placeholder">Error rendering overview</div></section>`)
}

// handleHealthScore renders the health score partial with the factor
// breakdown and strengths/weaknesses.
func (s *Server) handleHealthScore(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	sess, err := s.getOrCreateSession(w, r)
	if err != nil {
		slog.ErrorContext(r.Context(), "Session error", "error", err)
		_, _ = w.Write([]byte(`<section id="health-score" class="health-score"><div class="placeholder">Error loading score</div></section>`))
		return
	}

	key := s.partialKey(sess, "health-score")
	if html, found := s.partialCache.Get(key); found {
		atomic.AddInt64(&s.appMetrics.cacheHits, 1)
		_, _ = w.Write([]byte(html))
		return
	}
	atomic.AddInt64(&s.appMetrics.cacheMisses, 1)

	agg := analysis.Derive(sess.Profile)
	score := analysis.Score(agg)
	strengths, weaknesses := analysis.StrengthsWeaknesses(agg)

	atomic.AddInt64(&s.appMetrics.scoresComputed, 1)
	s.slog.LogScoreComputed(r.Context(), sess.ID, score.Value, string(score.Tier))

	type factor struct {
		Name   string
		Points int
		Weight int
	}
	data := struct {
		Defined    bool
		Score      string
		Tier       string
		Factors    []factor
		Strengths  []string
		Weaknesses []string
	}{
		Defined:    score.Defined,
		Score:      fmt.Sprintf("%.0f", score.Value),
		Tier:       string(score.Tier),
		Strengths:  strengths,
		Weaknesses: weaknesses,
	}
	for _, f := range score.Factors {
		data.Factors = append(data.Factors, factor{Name: f.Name, Points: f.Points, Weight: f.Weight})
	}

	s.renderPartial(w, r, "health_score.html", key, data,
		`<section id="health-score" class="health-score"><div class="placeholder">Error rendering score</div></section>`)
}

// renderPartial executes the named template into the partial cache and
// the response, falling back to a static placeholder on error.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, name, cacheKey string, data any, fallback string) {
	if s.templates == nil {
		_, _ = w.Write([]byte(fallback))
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", name)
		_, _ = w.Write([]byte(fallback))
		return
	}
	s.partialCache.Set(cacheKey, buf.String())
	_, _ = w.Write(buf.Bytes())
}
