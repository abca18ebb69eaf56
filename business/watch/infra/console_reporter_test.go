package infra

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	chainDomain "github.com/fd1az/token-price-engine/business/blockchain/domain"
	pricingDomain "github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/business/watch/domain"
	"github.com/fd1az/token-price-engine/internal/asset"
)

var at = time.Date(2026, 3, 1, 12, 30, 5, 0, time.UTC)

func uniTarget(t *testing.T) domain.Target {
	t.Helper()
	tgt, err := domain.ParseTarget("ethereum:0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984")
	if err != nil {
		t.Fatal(err)
	}
	return tgt
}

func TestConsoleReporter_Report(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf)
	mcap := decimal.NewFromInt(5_900_000_000)

	r.Report(domain.Observation{
		Target:       uniTarget(t),
		PriceUSD:     decimal.RequireFromString("9.8123"),
		MarketCapUSD: &mcap,
		Source:       "aggregator-api",
		Provider:     "dexscreener",
		ObservedAt:   at,
		Latency:      120 * time.Millisecond,
	})
	r.Report(domain.Observation{Target: uniTarget(t), ObservedAt: at, Err: errors.New("all sources failed")})

	out := buf.String()
	for _, want := range []string{
		"[12:30:05] ethereum 0x1f98…F984",
		"$9.81",
		"aggregator-api (dexscreener)",
		"120ms",
		"mcap $5900000000",
		"unavailable  all sources failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsoleReporter_ReportCycle(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf)

	r.ReportCycle(
		domain.CycleSummary{Number: 7, Priced: 2, Failed: 1, Duration: 1500 * time.Millisecond},
		[]pricingDomain.QuoteCurrencyEntry{{Asset: "ETH", PriceUSD: decimal.NewFromInt(3000), Source: "home-venue", ObservedAt: at}},
	)

	out := buf.String()
	if !strings.Contains(out, "cycle #7: 2 priced, 1 failed in 1.5s") {
		t.Errorf("missing summary:\n%s", out)
	}
	if !strings.Contains(out, "ETH  $3000.00  (home-venue, 12:30:05)") {
		t.Errorf("missing reference line:\n%s", out)
	}
}

func TestConsoleReporter_ChainStatusChangesOnly(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf)

	up := chainDomain.ChainStatus{Chain: asset.ChainSolana, State: chainDomain.StateConnected, Height: 250_000_000}
	r.UpdateChainStatus(up)
	r.UpdateChainStatus(up)
	r.UpdateChainStatus(chainDomain.ChainStatus{Chain: asset.ChainSolana, State: chainDomain.StateDegraded, Err: errors.New("429")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "solana: degraded, 429") {
		t.Errorf("second line = %q", lines[1])
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{3400.129, "3400.13"},
		{0.006, "0.006000"},
		{0.0000012, "1.2e-06"},
	}
	for _, tt := range tests {
		if got := formatPrice(tt.in); got != tt.want {
			t.Errorf("formatPrice(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestConsoleReporter_StartStop(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf)
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Token Price Watcher Stopped") {
		t.Errorf("output = %q", buf.String())
	}
}
