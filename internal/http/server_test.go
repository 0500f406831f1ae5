package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"fintwin/internal/session"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	mgr := session.NewManager(time.Hour)
	srv := NewServer(":0", mgr, nil, nil, 12)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		mgr.Close()
	})
	return srv
}

func doRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rr, req)
	return rr
}

// sessionCookie extracts the session cookie from a response so
// follow-up requests land on the same session.
func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func postForm(srv *Server, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return doRequest(srv, req)
}

func get(srv *Server, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return doRequest(srv, req)
}

// workedProfile is the form for the reference profile: $5000 income,
// $2000 expenses (rent + food), $10000 savings, $2000 debt. Its health
// score is 95 with low risk.
func workedProfile() url.Values {
	form := url.Values{}
	form.Set("income", "5000.00")
	form.Set("savings", "10000.00")
	form.Set("debt", "2000.00")
	form["category"] = []string{"rent", "food"}
	form["amount"] = []string{"1500.00", "500.00"}
	return form
}

func TestHandleIndex(t *testing.T) {
	srv := newTestServer(t)

	rr := get(srv, "/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET / = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "<form") {
		t.Error("index page missing forms")
	}
	if !strings.Contains(body, "hx-post") {
		t.Error("index page missing HTMX attributes")
	}
	sessionCookie(t, rr)
}

func TestHandleIndexNotFound(t *testing.T) {
	srv := newTestServer(t)

	rr := get(srv, "/nonexistent", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("GET /nonexistent = %d, want 404", rr.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	rr := get(srv, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d, want 200", rr.Code)
	}

	var health map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if health["status"] != "ok" {
		t.Errorf("status = %v, want ok", health["status"])
	}
}

func TestHandleReady(t *testing.T) {
	srv := newTestServer(t)

	rr := get(srv, "/readyz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /readyz = %d, want 200", rr.Code)
	}

	var ready map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &ready); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if ready["status"] != "ready" {
		t.Errorf("status = %v, want ready", ready["status"])
	}
	checks, ok := ready["checks"].(map[string]interface{})
	if !ok {
		t.Fatal("checks missing")
	}
	if checks["templates"] != "ok" {
		t.Errorf("templates check = %v", checks["templates"])
	}
}

func TestHandleMetrics(t *testing.T) {
	srv := newTestServer(t)

	rr := get(srv, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", rr.Code)
	}

	body := rr.Body.String()
	for _, metric := range []string{
		"health_scores_computed_total",
		"scenarios_evaluated_total",
		"advice_requests_total",
		"cache_hits_total",
		"active_sessions",
		"uptime_seconds",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("metrics missing %q", metric)
		}
	}
}

func TestUpdateProfile(t *testing.T) {
	srv := newTestServer(t)

	rr := postForm(srv, "/profile", workedProfile(), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("POST /profile = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, "profile:updated") {
		t.Errorf("HX-Trigger missing profile:updated: %s", trigger)
	}
	if !strings.Contains(trigger, "show-notification") {
		t.Errorf("HX-Trigger missing notification: %s", trigger)
	}
}

func TestUpdateProfileMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	rr := get(srv, "/profile", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /profile = %d, want 405", rr.Code)
	}
	if rr.Header().Get("Allow") != "POST" {
		t.Errorf("Allow = %q, want POST", rr.Header().Get("Allow"))
	}
}

func TestUpdateProfileInvalidInput(t *testing.T) {
	srv := newTestServer(t)

	form := url.Values{}
	form.Set("income", "not-a-number")
	rr := postForm(srv, "/profile", form, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("POST /profile = %d, want 422", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "error") {
		t.Errorf("expected error body, got %q", rr.Body.String())
	}
}

func TestOverviewPartial(t *testing.T) {
	srv := newTestServer(t)

	rr := postForm(srv, "/profile", workedProfile(), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("profile update failed: %d", rr.Code)
	}
	cookie := sessionCookie(t, rr)

	rr = get(srv, "/ui/overview", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /ui/overview = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"$5000.00", "$2000.00", "$10000.00", "rent", "food", "$3000.00"} {
		if !strings.Contains(body, want) {
			t.Errorf("overview missing %q", want)
		}
	}
	// Savings rate 60%
	if !strings.Contains(body, "60.0%") {
		t.Errorf("overview missing savings rate: %s", body)
	}
}

func TestOverviewPartialCached(t *testing.T) {
	srv := newTestServer(t)

	rr := postForm(srv, "/profile", workedProfile(), nil)
	cookie := sessionCookie(t, rr)

	first := get(srv, "/ui/overview", cookie)
	second := get(srv, "/ui/overview", cookie)

	if first.Body.String() != second.Body.String() {
		t.Error("cached partial differs from rendered partial")
	}
	if hits := atomic.LoadInt64(&srv.appMetrics.cacheHits); hits != 1 {
		t.Errorf("cacheHits = %d, want 1", hits)
	}
	if misses := atomic.LoadInt64(&srv.appMetrics.cacheMisses); misses != 1 {
		t.Errorf("cacheMisses = %d, want 1", misses)
	}
}

func TestOverviewCacheMissesAfterMutation(t *testing.T) {
	srv := newTestServer(t)

	rr := postForm(srv, "/profile", workedProfile(), nil)
	cookie := sessionCookie(t, rr)

	get(srv, "/ui/overview", cookie)

	// Change the profile; the version bump must invalidate the key.
	form := workedProfile()
	form.Set("income", "6000.00")
	postForm(srv, "/profile", form, cookie)

	after := get(srv, "/ui/overview", cookie)
	if !strings.Contains(after.Body.String(), "$6000.00") {
		t.Error("overview served stale cached profile after update")
	}
}

func TestHealthScorePartial(t *testing.T) {
	srv := newTestServer(t)

	rr := postForm(srv, "/profile", workedProfile(), nil)
	cookie := sessionCookie(t, rr)

	rr = get(srv, "/ui/health-score", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /ui/health-score = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, ">95<") {
		t.Errorf("expected score 95, got: %s", body)
	}
	if !strings.Contains(body, "low risk") {
		t.Errorf("expected low risk tier, got: %s", body)
	}
	if !strings.Contains(body, "Strengths") {
		t.Errorf("expected strengths list, got: %s", body)
	}

	if n := atomic.LoadInt64(&srv.appMetrics.scoresComputed); n != 1 {
		t.Errorf("scoresComputed = %d, want 1", n)
	}
}

func TestHealthScorePartialNoIncome(t *testing.T) {
	srv := newTestServer(t)

	rr := get(srv, "/", nil)
	cookie := sessionCookie(t, rr)

	rr = get(srv, "/ui/health-score", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /ui/health-score = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "no income recorded") {
		t.Errorf("expected undefined score placeholder, got: %s", rr.Body.String())
	}
}

func TestForecastPartialInsufficientHistory(t *testing.T) {
	srv := newTestServer(t)

	rr := postForm(srv, "/profile", workedProfile(), nil)
	cookie := sessionCookie(t, rr)

	rr = get(srv, "/ui/forecast", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /ui/forecast = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Record at least one month") {
		t.Errorf("expected insufficient history placeholder, got: %s", body)
	}
	// The savings projection renders regardless of expense history.
	if !strings.Contains(body, "Savings projection") {
		t.Errorf("expected savings projection, got: %s", body)
	}
}

func TestForecastPartialLinearTrend(t *testing.T) {
	srv := newTestServer(t)

	rr := postForm(srv, "/profile", workedProfile(), nil)
	cookie := sessionCookie(t, rr)

	// Three months rising $100 each; the fit projects $1300 next.
	months := []struct {
		month  string
		amount string
	}{
		{"1", "1000.00"},
		{"2", "1100.00"},
		{"3", "1200.00"},
	}
	for _, m := range months {
		form := url.Values{}
		form.Set("year", "2026")
		form.Set("month", m.month)
		form["category"] = []string{"living"}
		form["amount"] = []string{m.amount}
		rec := postForm(srv, "/history", form, cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("POST /history = %d: %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Header().Get("HX-Trigger"), "history:recorded") {
			t.Errorf("missing history:recorded trigger: %s", rec.Header().Get("HX-Trigger"))
		}
	}

	rr = get(srv, "/ui/forecast?horizon=3", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /ui/forecast = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "$1300.00") {
		t.Errorf("expected projected $1300.00, got: %s", body)
	}
	if !strings.Contains(body, "$1500.00") {
		t.Errorf("expected projected $1500.00 at month 3, got: %s", body)
	}
	if strings.Contains(body, "Short history") {
		t.Error("trend unexpectedly degraded")
	}
	if !strings.Contains(body, "Forecast (3 months)") {
		t.Errorf("expected 3 month horizon, got: %s", body)
	}
}

func TestSaveScenarioAndComparison(t *testing.T) {
	srv := newTestServer(t)

	rr := postForm(srv, "/profile", workedProfile(), nil)
	cookie := sessionCookie(t, rr)

	form := url.Values{}
	form.Set("name", "income drop")
	form["delta_target"] = []string{"income"}
	form["delta_kind"] = []string{"percent"}
	form["delta_value"] = []string{"-50"}
	rr = postForm(srv, "/scenarios", form, cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("POST /scenarios = %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "scenario:saved") {
		t.Errorf("missing scenario:saved trigger: %s", rr.Header().Get("HX-Trigger"))
	}

	rr = get(srv, "/ui/scenarios", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /ui/scenarios = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "income drop") {
		t.Errorf("comparison missing scenario name: %s", body)
	}
	if !strings.Contains(body, ">95<") {
		t.Errorf("comparison missing baseline score 95: %s", body)
	}
	if n := atomic.LoadInt64(&srv.appMetrics.scenariosRun); n != 1 {
		t.Errorf("scenariosRun = %d, want 1", n)
	}
}

func TestSaveScenarioInvalidKind(t *testing.T) {
	srv := newTestServer(t)

	form := url.Values{}
	form.Set("name", "x")
	form["delta_target"] = []string{"income"}
	form["delta_kind"] = []string{"multiply"}
	form["delta_value"] = []string{"2"}
	rr := postForm(srv, "/scenarios", form, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("POST /scenarios = %d, want 422", rr.Code)
	}
}

func TestScenarioComparisonEmpty(t *testing.T) {
	srv := newTestServer(t)

	rr := get(srv, "/", nil)
	cookie := sessionCookie(t, rr)

	rr = get(srv, "/ui/scenarios", cookie)
	if !strings.Contains(rr.Body.String(), "No scenarios saved yet") {
		t.Errorf("expected empty placeholder, got: %s", rr.Body.String())
	}
}

func TestAdviceFallsBackWithoutOracle(t *testing.T) {
	srv := newTestServer(t)

	rr := postForm(srv, "/profile", workedProfile(), nil)
	cookie := sessionCookie(t, rr)

	rr = postForm(srv, "/advice", url.Values{}, cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("POST /advice = %d: %s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	if !strings.Contains(body, "built-in rules") {
		t.Errorf("expected fallback hint, got: %s", body)
	}
	if !strings.Contains(body, `id="advice"`) {
		t.Errorf("expected advice section, got: %s", body)
	}

	if n := atomic.LoadInt64(&srv.appMetrics.adviceRequests); n != 1 {
		t.Errorf("adviceRequests = %d, want 1", n)
	}
	if n := atomic.LoadInt64(&srv.appMetrics.adviceFallbacks); n != 1 {
		t.Errorf("adviceFallbacks = %d, want 1", n)
	}
}

func TestAdviceRateLimited(t *testing.T) {
	srv := newTestServer(t)

	rr := postForm(srv, "/profile", workedProfile(), nil)
	cookie := sessionCookie(t, rr)

	var limited bool
	for i := 0; i < 11; i++ {
		rr = postForm(srv, "/advice", url.Values{}, cookie)
		if rr.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("advice limiter never engaged")
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rr.Header().Get("Retry-After"))
	}
}

func TestExportCSV(t *testing.T) {
	srv := newTestServer(t)

	rr := postForm(srv, "/profile", workedProfile(), nil)
	cookie := sessionCookie(t, rr)

	rr = get(srv, "/export.csv", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /export.csv = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "fintwin-profile.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	body := rr.Body.String()
	for _, want := range []string{
		"row_type,name,amount",
		"field,income,5000.00",
		"field,savings,10000.00",
		"field,debt,2000.00",
		"expense,rent,1500.00",
		"expense,food,500.00",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("export missing %q:\n%s", want, body)
		}
	}
}

func TestImportRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	rr := postForm(srv, "/profile", workedProfile(), nil)
	cookie := sessionCookie(t, rr)

	exported := get(srv, "/export.csv", cookie).Body.Bytes()

	// Import into a fresh session.
	fresh := sessionCookie(t, get(srv, "/", nil))
	rr = postMultipart(t, srv, "/import", "profile.csv", exported, fresh)
	if rr.Code != http.StatusOK {
		t.Fatalf("POST /import = %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "profile:updated") {
		t.Errorf("missing profile:updated trigger: %s", rr.Header().Get("HX-Trigger"))
	}

	score := get(srv, "/ui/health-score", fresh).Body.String()
	if !strings.Contains(score, ">95<") {
		t.Errorf("imported profile did not reproduce score 95: %s", score)
	}
	if n := atomic.LoadInt64(&srv.appMetrics.profilesImported); n != 1 {
		t.Errorf("profilesImported = %d, want 1", n)
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	srv := newTestServer(t)

	rr := postMultipart(t, srv, "/import", "junk.csv", []byte("not,a,profile\nat,all,x"), nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("POST /import = %d, want 422: %s", rr.Code, rr.Body.String())
	}
}

func TestImportRequiresFile(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := doRequest(srv, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("POST /import = %d, want 400", rr.Code)
	}
}

func postMultipart(t *testing.T, srv *Server, path, filename string, content []byte, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.Copy(fw, bytes.NewReader(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return doRequest(srv, req)
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)

	rr := get(srv, "/", nil)
	headers := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	}
	for name, want := range headers {
		if got := rr.Header().Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if !strings.Contains(rr.Header().Get("Content-Security-Policy"), "default-src 'self'") {
		t.Error("CSP header missing")
	}
}

func TestSessionCookieRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	rr := get(srv, "/", nil)
	cookie := sessionCookie(t, rr)
	if !cookie.HttpOnly {
		t.Error("session cookie not HttpOnly")
	}

	// Re-presenting the cookie must not create a second session.
	get(srv, "/", cookie)
	if n := srv.sessions.Len(); n != 1 {
		t.Errorf("sessions = %d, want 1", n)
	}

	// An unknown cookie gets a fresh session instead of an error.
	stale := &http.Cookie{Name: sessionCookieName, Value: "deadbeef"}
	rr = get(srv, "/", stale)
	if rr.Code != http.StatusOK {
		t.Errorf("GET / with stale cookie = %d, want 200", rr.Code)
	}
	sessionCookie(t, rr)
}
