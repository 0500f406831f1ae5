package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(health)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.sessions == nil {
		checks["sessions"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["sessions"] = map[string]interface{}{
			"active": s.sessions.Len(),
			"status": "ok",
		}
	}

	// The oracle is optional; report whether it is wired without
	// failing readiness.
	if s.advisor != nil {
		checks["advisor"] = "ok"
	} else {
		checks["advisor"] = "not_configured"
	}
	if s.archiver != nil {
		checks["archive"] = "ok"
	} else {
		checks["archive"] = "disabled"
	}

	checks["cache"] = map[string]interface{}{
		"partial_entries": s.partialCache.Size(),
		"status":          "ok",
	}
	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.activeClients(),
		"status":         "ok",
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}

	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(response)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	scoresComputed := atomic.LoadInt64(&s.appMetrics.scoresComputed)
	scenariosRun := atomic.LoadInt64(&s.appMetrics.scenariosRun)
	adviceRequests := atomic.LoadInt64(&s.appMetrics.adviceRequests)
	adviceFallbacks := atomic.LoadInt64(&s.appMetrics.adviceFallbacks)
	snapshotsStored := atomic.LoadInt64(&s.appMetrics.snapshotsStored)
	profilesImported := atomic.LoadInt64(&s.appMetrics.profilesImported)
	cacheHits := atomic.LoadInt64(&s.appMetrics.cacheHits)
	cacheMisses := atomic.LoadInt64(&s.appMetrics.cacheMisses)
	rateLimitHits := atomic.LoadInt64(&s.security.rateLimitHits)
	suspicious := atomic.LoadInt64(&s.security.suspiciousRequests)
	uptime := time.Since(s.appMetrics.uptime)

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP health_scores_computed_total Total health scores computed\n")
	fmt.Fprintf(w, "# TYPE health_scores_computed_total counter\n")
	fmt.Fprintf(w, "health_scores_computed_total %d\n\n", scoresComputed)

	fmt.Fprintf(w, "# HELP scenarios_evaluated_total Total what-if scenarios evaluated\n")
	fmt.Fprintf(w, "# TYPE scenarios_evaluated_total counter\n")
	fmt.Fprintf(w, "scenarios_evaluated_total %d\n\n", scenariosRun)

	fmt.Fprintf(w, "# HELP advice_requests_total Total recommendation requests\n")
	fmt.Fprintf(w, "# TYPE advice_requests_total counter\n")
	fmt.Fprintf(w, "advice_requests_total %d\n\n", adviceRequests)

	fmt.Fprintf(w, "# HELP advice_fallbacks_total Recommendations served from local rules\n")
	fmt.Fprintf(w, "# TYPE advice_fallbacks_total counter\n")
	fmt.Fprintf(w, "advice_fallbacks_total %d\n\n", adviceFallbacks)

	fmt.Fprintf(w, "# HELP snapshots_archived_total Snapshots written to the archive\n")
	fmt.Fprintf(w, "# TYPE snapshots_archived_total counter\n")
	fmt.Fprintf(w, "snapshots_archived_total %d\n\n", snapshotsStored)

	fmt.Fprintf(w, "# HELP profiles_imported_total Profiles imported from CSV\n")
	fmt.Fprintf(w, "# TYPE profiles_imported_total counter\n")
	fmt.Fprintf(w, "profiles_imported_total %d\n\n", profilesImported)

	fmt.Fprintf(w, "# HELP cache_hits_total Total partial cache hits\n")
	fmt.Fprintf(w, "# TYPE cache_hits_total counter\n")
	fmt.Fprintf(w, "cache_hits_total %d\n\n", cacheHits)

	fmt.Fprintf(w, "# HELP cache_misses_total Total partial cache misses\n")
	fmt.Fprintf(w, "# TYPE cache_misses_total counter\n")
	fmt.Fprintf(w, "cache_misses_total %d\n\n", cacheMisses)

	fmt.Fprintf(w, "# HELP cache_entries Current partial cache entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	fmt.Fprintf(w, "cache_entries %d\n\n", s.partialCache.Size())

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitHits)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", suspicious)

	fmt.Fprintf(w, "# HELP active_sessions Currently live sessions\n")
	fmt.Fprintf(w, "# TYPE active_sessions gauge\n")
	fmt.Fprintf(w, "active_sessions %d\n\n", s.sessions.Len())

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n\n", uptime.Seconds())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	sess, err := s.getOrCreateSession(w, r)
	if err != nil {
		slog.ErrorContext(r.Context(), "Session error", "error", err)
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	data := struct {
		Year         int
		Month        int
		Income       string
		Savings      string
		Debt         string
		HasProfile   bool
		HistoryCount int
		Scenarios    []string
	}{
		Year:         now.Year(),
		Month:        int(now.Month()),
		HasProfile:   sess.Profile.Income.Cents > 0 || len(sess.Profile.Expenses) > 0,
		HistoryCount: len(sess.History),
	}
	if data.HasProfile {
		data.Income = sess.Profile.Income.Format()
		data.Savings = sess.Profile.Savings.Format()
		data.Debt = sess.Profile.Debt.Format()
	}
	for _, sc := range sess.Scenarios {
		data.Scenarios = append(data.Scenarios, sc.Name)
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
