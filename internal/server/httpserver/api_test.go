package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/chaingate/internal/core/domain"
)

func newTestAPI(now time.Time) http.Handler {
	return NewAPIRouter(APIConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Stats: func(context.Context) Stats {
			return Stats{Sessions: 3, Workers: 2, BridgeStarted: true, Uptime: "1m0s"}
		},
		Now: func() time.Time { return now },
	})
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, data any) Response {
	t.Helper()
	var raw struct {
		Response
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return raw.Response
}

func TestAPI_Session(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	api := newTestAPI(now)

	t.Run("not authenticated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		api.ServeHTTP(rec, httptest.NewRequest("GET", "/api/session", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want pre-set 200", rec.Code)
		}
		resp := decodeResponse(t, rec, nil)
		if resp.Code != domain.ErrNotAuthenticated.Code || resp.Message != "not authenticated" {
			t.Errorf("response = %+v", resp)
		}
	})

	t.Run("authenticated", func(t *testing.T) {
		s := domain.Session{
			ID:       12345,
			User:     "alice",
			Pass:     "blake2b$salt$sum",
			Created:  now.Add(-time.Hour),
			LastUsed: now.Add(-90 * time.Second),
		}
		req := httptest.NewRequest("GET", "/api/session", nil)
		req = req.WithContext(WithSession(req.Context(), s))
		rec := httptest.NewRecorder()
		api.ServeHTTP(rec, req)

		var got SessionResponse
		resp := decodeResponse(t, rec, &got)
		if resp.Code != "OK" {
			t.Fatalf("code = %q", resp.Code)
		}
		if got.ID != "12345" || got.User != "alice" || got.IdleSeconds != 90 {
			t.Errorf("session = %+v", got)
		}
		if strings.Contains(rec.Body.String(), "blake2b") {
			t.Error("password digest leaked into the response")
		}
	})
}

func TestAPI_VersionAndStats(t *testing.T) {
	api := newTestAPI(time.Now())

	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, httptest.NewRequest("GET", "/api/version", nil))
	var version map[string]string
	decodeResponse(t, rec, &version)
	if version["version"] == "" || version["go_version"] == "" {
		t.Errorf("version = %v", version)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	rec = httptest.NewRecorder()
	api.ServeHTTP(rec, httptest.NewRequest("GET", "/api/stats", nil))
	var stats Stats
	decodeResponse(t, rec, &stats)
	if stats.Sessions != 3 || stats.Workers != 2 || !stats.BridgeStarted {
		t.Errorf("stats = %+v", stats)
	}
}

func TestAPI_UnknownRoutes(t *testing.T) {
	api := newTestAPI(time.Now())

	for _, target := range []string{"/api", "/api/nope", "/apix", "/other"} {
		t.Run(target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			api.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
			if rec.Code != http.StatusOK || rec.Body.String() != "URI not support" {
				t.Errorf("%s: status %d body %q", target, rec.Code, rec.Body.String())
			}
		})
	}

	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, httptest.NewRequest("POST", "/api/version", nil))
	if rec.Body.String() != "URI not support" {
		t.Errorf("wrong method body = %q", rec.Body.String())
	}
}
