package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

func TestHealth_AllHealthy(t *testing.T) {
	s := NewServer(0, "test", &mockLogger{})
	s.RegisterCheck("rpc:ethereum", func(ctx context.Context) (bool, string) { return true, "block 19000000" })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected json content type, got %q", ct)
	}

	var status Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if status.Status != "ok" || !status.Checks["rpc:ethereum"].Healthy {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestHealth_Degraded(t *testing.T) {
	s := NewServer(0, "test", &mockLogger{})
	s.RegisterCheck("store", func(ctx context.Context) (bool, string) { return true, "" })
	s.RegisterCheck("rpc:solana", func(ctx context.Context) (bool, string) { return false, "timeout" })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from /ready, got %d", rec.Code)
	}
	if rec.Body.String() != "not ready: rpc:solana" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestLive(t *testing.T) {
	s := NewServer(0, "test", &mockLogger{})
	s.RegisterCheck("broken", func(ctx context.Context) (bool, string) { return false, "" })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("liveness must not depend on checks, got %d", rec.Code)
	}
}
