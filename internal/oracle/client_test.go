package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func completionBody(text string) string {
	b, _ := json.Marshal(chatResponse{
		Choices: []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		}{{Message: struct {
			Content string `json:"content"`
		}{Content: text}}},
	})
	return string(b)
}

func TestNewClient(t *testing.T) {
	if NewClient("", "gpt-4o") != nil {
		t.Fatalf("expected nil for empty key")
	}
	if NewClient("sk-test", " ") != nil {
		t.Fatalf("expected nil for empty model")
	}
	if NewClient("sk-test", "gpt-4o") == nil {
		t.Fatalf("expected client")
	}
}

func TestCompleteSuccess(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(completionBody("  spend less on rent  ")))
	}))
	defer srv.Close()

	c := NewClient("sk-test", "gpt-4o", WithBaseURL(srv.URL))
	text, err := c.Complete(context.Background(), "sys", "user", 500, 0.7)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if text != "spend less on rent" {
		t.Fatalf("expected trimmed text, got %q", text)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o" || len(gotReq.Messages) != 2 || gotReq.MaxTokens != 500 {
		t.Fatalf("unexpected request %+v", gotReq)
	}
}

func TestCompleteStatusErrors(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusTooManyRequests, ErrRateLimited},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		c := NewClient("sk-test", "gpt-4o", WithBaseURL(srv.URL))
		_, err := c.Complete(context.Background(), "s", "u", 100, 0)
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestCompleteMalformed(t *testing.T) {
	bodies := []string{"not json", `{"choices":[]}`, completionBody("   ")}
	for _, body := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		c := NewClient("sk-test", "gpt-4o", WithBaseURL(srv.URL))
		_, err := c.Complete(context.Background(), "s", "u", 100, 0)
		srv.Close()
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("body %q: expected ErrMalformed, got %v", body, err)
		}
	}
}

func TestCompleteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(completionBody("late")))
	}))
	defer srv.Close()

	c := NewClient("sk-test", "gpt-4o", WithBaseURL(srv.URL), WithTimeout(20*time.Millisecond))
	if _, err := c.Complete(context.Background(), "s", "u", 100, 0); err == nil {
		t.Fatalf("expected timeout error")
	}
}
