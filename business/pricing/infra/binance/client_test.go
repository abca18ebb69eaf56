package binance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/logger"
)

// mockLogger implements logger.LoggerInterface for testing.
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var _ logger.LoggerInterface = (*mockLogger)(nil)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	c, err := NewClient(cfg, &mockLogger{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestReferencePriceUSD(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != tickerEndpoint {
			t.Errorf("expected path %s, got %s", tickerEndpoint, r.URL.Path)
		}
		if symbol := r.URL.Query().Get("symbol"); symbol != "ETHUSDT" {
			t.Errorf("expected symbol ETHUSDT, got %s", symbol)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tickerResponse{Symbol: "ETHUSDT", Price: "3401.25000000"})
	})

	price, err := c.ReferencePriceUSD(context.Background(), "eth")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("3401.25")) {
		t.Errorf("expected 3401.25, got %s", price)
	}
	if c.Name() != "binance" {
		t.Errorf("expected name binance, got %s", c.Name())
	}
}

func TestReferencePriceUSD_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})

	_, err := c.ReferencePriceUSD(context.Background(), "XYZ")
	if err == nil {
		t.Fatal("expected error")
	}
	if apperror.GetCode(err) != apperror.CodeAggregatorFailed {
		t.Errorf("expected AGGREGATOR_FAILED, got %s", apperror.GetCode(err))
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != -1121 {
		t.Errorf("expected wrapped API error -1121, got %v", err)
	}
}

func TestReferencePriceUSD_ZeroPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"SOLUSDT","price":"0.00000000"}`))
	})

	_, err := c.ReferencePriceUSD(context.Background(), "SOL")
	if apperror.GetCode(err) != apperror.CodeAggregatorNoPrice {
		t.Errorf("expected AGGREGATOR_NO_PRICE, got %v", err)
	}
}

func TestReferencePriceUSD_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	})

	_, err := c.ReferencePriceUSD(context.Background(), "BNB")
	if apperror.GetCode(err) != apperror.CodeAggregatorFailed {
		t.Errorf("expected AGGREGATOR_FAILED, got %v", err)
	}
}
