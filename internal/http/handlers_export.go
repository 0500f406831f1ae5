package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"sync/atomic"

	"fintwin/internal/analysis"
	"fintwin/internal/export"
	"fintwin/internal/session"
)

// maxImportBytes bounds uploaded CSV files.
const maxImportBytes = 256 * 1024

// handleExport streams the session's profile as CSV. With archive=1
// and the snapshot pipeline enabled, the profile and its score are
// also archived for the sheet ledger.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}

	sess, err := s.getOrCreateSession(w, r)
	if err != nil {
		slog.ErrorContext(r.Context(), "Session error", "error", err)
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := export.EncodeProfile(&buf, sess.Profile); err != nil {
		slog.ErrorContext(r.Context(), "Profile export failed", "error", err, "session_id", sess.ID)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	if r.URL.Query().Get("archive") == "1" && s.archiver != nil {
		score := analysis.Score(analysis.Derive(sess.Profile))
		id, err := s.archiver.ArchiveSnapshot(r.Context(), sess.Profile, score)
		if err != nil {
			// The download still succeeds; only the archive copy failed.
			slog.ErrorContext(r.Context(), "Snapshot archive failed", "error", err, "session_id", sess.ID)
		} else {
			atomic.AddInt64(&s.appMetrics.snapshotsStored, 1)
			slog.InfoContext(r.Context(), "Snapshot archived on export",
				"session_id", sess.ID,
				"snapshot_id", id,
				"health_score", score.Value)
		}
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="fintwin-profile.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleImport replaces the session's profile with an uploaded CSV.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		BadRequestError("Invalid upload").Write(w)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		BadRequestError("Missing CSV file").Write(w)
		return
	}
	defer file.Close()

	profile, err := export.DecodeProfile(file)
	if err != nil {
		UnprocessableEntityError("Invalid profile CSV: " + err.Error()).Write(w)
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
		slog.ErrorContext(r.Context(), "Profile import failed", "error", err, "session_id", sess.ID)
		InternalServerError("Failed to import profile").Write(w)
		return
	}

	atomic.AddInt64(&s.appMetrics.profilesImported, 1)
	slog.InfoContext(r.Context(), "Profile imported",
		"session_id", updated.ID,
		"income_cents", profile.Income.Cents,
		"categories", len(profile.Expenses))

	NewHTMXResponse().
		TriggerProfileUpdated(updated.Version).
		TriggerSuccessNotification("Profile imported").
		Write(w)
}
