package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"fintwin/internal/session"
	"fintwin/internal/simulation"
)

// handleSaveScenario validates and stores a named what-if scenario.
// Evaluation happens when the comparison partial renders.
func (s *Server) handleSaveScenario(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	sc, err := parseScenarioForm(r.Form)
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
		return live.AddScenario(sc)
	})
	if err != nil {
		if err == session.ErrTooManyScenarios {
			UnprocessableEntityError(fmt.Sprintf("At most %d scenarios per session", session.MaxScenarios)).Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Scenario save failed", "error", err, "session_id", sess.ID, "scenario", sc.Name)
		InternalServerError("Failed to save scenario").Write(w)
		return
	}

	slog.InfoContext(r.Context(), "Scenario saved",
		"session_id", updated.ID,
		"scenario", sc.Name,
		"deltas", len(sc.Deltas))

	NewHTMXResponse().
		TriggerScenarioSaved(sc.Name).
		TriggerProfileUpdated(updated.Version).
		TriggerSuccessNotification("Scenario saved: "+sc.Name).
		Write(w)
}

// handleScenarioComparison evaluates every stored scenario against the
// current profile and renders the side-by-side comparison partial.
func (s *Server) handleScenarioComparison(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	sess, err := s.getOrCreateSession(w, r)
	if err != nil {
		slog.ErrorContext(r.Context(), "Session error", "error", err)
		_, _ = w.Write([]byte(`<section id="scenarios" class="scenarios"><div class="placeholder">Error loading scenarios</div></section>`))
		return
	}

	key := s.partialKey(sess, "scenarios")
	if html, found := s.partialCache.Get(key); found {
		atomic.AddInt64(&s.appMetrics.cacheHits, 1)
		_, _ = w.Write([]byte(html))
		return
	}
	atomic.AddInt64(&s.appMetrics.cacheMisses, 1)

	results, err := simulation.Compare(sess.Profile, sess.Scenarios)
	if err != nil {
		// Stored scenarios are validated on save, so this is a bug.
		slog.ErrorContext(r.Context(), "Scenario evaluation failed", "error", err, "session_id", sess.ID)
		_, _ = w.Write([]byte(`<section id="scenarios" class="scenarios"><div class="placeholder">Error evaluating scenarios</div></section>`))
		return
	}
	atomic.AddInt64(&s.appMetrics.scenariosRun, int64(len(results)))

	type row struct {
		Name          string
		Score         string
		Tier          string
		BaselineScore string
		Delta         string
		Improved      bool
		Worsened      bool
		Undefined     bool
		Surplus       string
	}
	data := struct {
		HasScenarios bool
		Rows         []row
	}{HasScenarios: len(results) > 0}

	for _, res := range results {
		item := row{
			Name:          res.Scenario,
			Tier:          string(res.Score.Tier),
			Score:         fmt.Sprintf("%.0f", res.Score.Value),
			BaselineScore: fmt.Sprintf("%.0f", res.BaselineScore.Value),
			Surplus:       formatDollars(res.Aggregates.Surplus),
			Undefined:     !res.Score.Defined,
		}
		diff := res.Score.Value - res.BaselineScore.Value
		item.Delta = fmt.Sprintf("%+.0f", diff)
		item.Improved = diff > 0
		item.Worsened = diff < 0
		data.Rows = append(data.Rows, item)
	}

	s.renderPartial(w, r, "scenarios.html", key, data,
		`<section id="scenarios" class="scenarios"><div class="placeholder">Error rendering scenarios</div></section>`)
}
