package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"fintwin/internal/advisor"
	"fintwin/internal/analysis"
	"fintwin/internal/simulation"
)

// handleAdvice generates a recommendation for the session's profile.
// The oracle call is rate-limited separately from ordinary POSTs and
// the handler always renders a message, real or fallback.
func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	clientIP := extractClientIP(r)
	if !s.adviceLimiter.allow(clientIP, s.security) {
		slog.WarnContext(r.Context(), "Advice rate limit exceeded", "client_ip", clientIP)
		w.Header().Set("Retry-After", "60")
		ErrorResponse(http.StatusTooManyRequests, "Too many recommendation requests. Please wait a minute.").Write(w)
		return
	}

	sess, err := s.getOrCreateSession(w, r)
	if err != nil {
		slog.ErrorContext(r.Context(), "Session error", "error", err)
		InternalServerError("Session unavailable").Write(w)
		return
	}

	agg := analysis.Derive(sess.Profile)
	snap := advisor.Snapshot{
		Aggregates: agg,
		Score:      analysis.Score(agg),
	}

	// An optional named scenario folds its outcome into the prompt.
	if name := sanitizeInput(r.Form.Get("scenario")); name != "" {
		for _, sc := range sess.Scenarios {
			if sc.Name != name {
				continue
			}
			res, err := simulation.Evaluate(sess.Profile, sc)
			if err != nil {
				slog.ErrorContext(r.Context(), "Scenario evaluation for advice failed",
					"error", err, "session_id", sess.ID, "scenario", name)
				break
			}
			snap.ScenarioSummary = fmt.Sprintf("Under scenario %q the health score would be %.0f (%s risk) against a baseline of %.0f (%s risk).",
				res.Scenario, res.Score.Value, res.Score.Tier, res.BaselineScore.Value, res.BaselineScore.Tier)
			break
		}
	}

	atomic.AddInt64(&s.appMetrics.adviceRequests, 1)
	advice, err := s.advisor.Generate(r.Context(), snap)
	if err != nil {
		// Generate falls back internally; an error here is a bug.
		slog.ErrorContext(r.Context(), "Advice generation failed", "error", err, "session_id", sess.ID)
		InternalServerError("Failed to generate recommendation").Write(w)
		return
	}
	if advice.Fallback {
		atomic.AddInt64(&s.appMetrics.adviceFallbacks, 1)
	}

	slog.InfoContext(r.Context(), "Advice generated",
		"session_id", sess.ID,
		"fallback", advice.Fallback,
		"scenario_context", snap.ScenarioSummary != "")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Text     string
		Fallback bool
	}{Text: advice.Text, Fallback: advice.Fallback}
	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="advice" class="advice"><div class="placeholder">Recommendation unavailable</div></section>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "advice.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "advice.html")
		_, _ = w.Write([]byte(`<section id="advice" class="advice"><div class="placeholder">Error rendering recommendation</div></section>`))
	}
}
