package middleware_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kbukum/shopstream/logger"
	"github.com/kbukum/shopstream/server/middleware"
)

func bufferLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.New(&logger.Config{Level: "debug", Format: logger.FormatJSON, Writer: buf}, "test")
}

func TestRecovery_NoPanic(t *testing.T) {
	handler := middleware.Recovery(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected response %d %q", rr.Code, rr.Body.String())
	}
}

func TestRecovery_Panic(t *testing.T) {
	var logs bytes.Buffer
	handler := middleware.Recovery(bufferLogger(&logs))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("test panic")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/shop/users", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body.Error.Code != "INTERNAL_ERROR" {
		t.Errorf("unexpected code %q", body.Error.Code)
	}
	if !strings.Contains(logs.String(), "test panic") {
		t.Errorf("expected panic in logs, got %q", logs.String())
	}
}

func TestRecovery_AfterResponseStarted(t *testing.T) {
	handler := middleware.Recovery(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("partial"))
		panic("late")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if rr.Body.String() != "partial" {
		t.Errorf("nothing may be appended to a started response, got %q", rr.Body.String())
	}
}

func TestRequestID_GeneratesID(t *testing.T) {
	var seen string
	handler := middleware.RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	got := rr.Header().Get(middleware.HeaderRequestID)
	if got == "" || got != seen {
		t.Errorf("expected the generated ID in header and context, got %q and %q", got, seen)
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	handler := middleware.RequestID()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set(middleware.HeaderRequestID, "custom-id-123")
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get(middleware.HeaderRequestID); got != "custom-id-123" {
		t.Fatalf("expected custom-id-123, got %s", got)
	}
}

func TestCORS(t *testing.T) {
	cfg := &middleware.CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}}
	cfg.ApplyDefaults()
	tests := []struct {
		name        string
		method      string
		origin      string
		wantOrigin  string
		wantStatus  int
		wantMethods string
	}{
		{"allowed", http.MethodGet, "https://shop.example.com", "https://shop.example.com", http.StatusOK, ""},
		{"disallowed", http.MethodGet, "https://evil.com", "", http.StatusOK, ""},
		{"preflight", http.MethodOptions, "https://shop.example.com", "https://shop.example.com", http.StatusNoContent, "GET, POST, OPTIONS"},
		{"disallowed preflight", http.MethodOptions, "https://evil.com", "", http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/shop/products", http.NoBody)
			req.Header.Set("Origin", tt.origin)
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, rr.Code)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("expected origin %q, got %q", tt.wantOrigin, got)
			}
			if got := rr.Header().Get("Access-Control-Allow-Methods"); got != tt.wantMethods {
				t.Errorf("expected methods %q, got %q", tt.wantMethods, got)
			}
			if got := rr.Header().Get("Vary"); got != "Origin" {
				t.Errorf("expected Vary: Origin, got %q", got)
			}
		})
	}
}

func TestCORS_PreflightAllowsStreamReconnect(t *testing.T) {
	cfg := &middleware.CORSConfig{}
	cfg.ApplyDefaults()
	handler := middleware.CORS(cfg)(http.NotFoundHandler())

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/shop/recommendations", http.NoBody)
	req.Header.Set("Origin", "https://any.example.com")
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Last-Event-ID") {
		t.Errorf("expected Last-Event-ID to be allowed, got %q", got)
	}
	if got := rr.Header().Get("Access-Control-Expose-Headers"); got != middleware.HeaderRequestID {
		t.Errorf("expected request id to be exposed, got %q", got)
	}
	if got := rr.Header().Get("Access-Control-Max-Age"); got != "600" {
		t.Errorf("expected max age 600, got %q", got)
	}
}

func TestBodySizeLimit(t *testing.T) {
	handler := middleware.BodySizeLimit(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
		}
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too large")))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rr.Code)
	}
}

func TestRequestLogger(t *testing.T) {
	var logs bytes.Buffer
	handler := middleware.RequestLogger(bufferLogger(&logs))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/shop/user/Zed", http.NoBody))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected exactly one log line, got %d: %q", len(lines), logs.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["level"] != "warn" || entry["status"] != float64(404) || entry["path"] != "/shop/user/Zed" || entry["bytes"] != float64(0) {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestStatusWriter_Flushes(t *testing.T) {
	handler := middleware.Chain(middleware.RequestLogger(logger.Nop()), middleware.Recovery(logger.Nop()))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if _, ok := w.(http.Flusher); !ok {
				t.Error("wrapped writer must keep http.Flusher for streaming")
			}
		}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
}
