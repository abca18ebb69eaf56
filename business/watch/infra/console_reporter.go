// Package infra contains infrastructure adapters for the watch context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	chainDomain "github.com/fd1az/token-price-engine/business/blockchain/domain"
	pricingDomain "github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/business/watch/domain"
)

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	mu     sync.Mutex
	out    io.Writer
	states map[string]chainDomain.ConnectionState
}

// NewConsoleReporter creates a new ConsoleReporter writing to out, or
// stdout when out is nil.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleReporter{
		out:    out,
		states: make(map[string]chainDomain.ConnectionState),
	}
}

// Start initializes the console reporter.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "Token Price Watcher Started")
	fmt.Fprintln(r.out, "===========================")
	return nil
}

// Report prints one observation per line.
func (r *ConsoleReporter) Report(obs domain.Observation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := obs.ObservedAt.Format("15:04:05")
	if !obs.OK() {
		fmt.Fprintf(r.out, "[%s] %-28s  %14s  %v\n", ts, obs.Target.Label(), "unavailable", obs.Err)
		return
	}

	source := obs.Source
	if obs.Provider != "" {
		source += " (" + obs.Provider + ")"
	}
	line := fmt.Sprintf("[%s] %-28s  %14s  %-28s %6dms",
		ts, obs.Target.Label(), "$"+formatPrice(obs.PriceUSD.InexactFloat64()), source, obs.Latency.Milliseconds())
	if obs.MarketCapUSD != nil {
		line += "  mcap $" + obs.MarketCapUSD.StringFixed(0)
	}
	fmt.Fprintln(r.out, line)
}

// ReportCycle prints the cycle totals and the reference prices.
func (r *ConsoleReporter) ReportCycle(summary domain.CycleSummary, refs []pricingDomain.QuoteCurrencyEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "--- cycle #%d: %d priced, %d failed in %s\n",
		summary.Number, summary.Priced, summary.Failed, summary.Duration.Round(time.Millisecond))
	for _, e := range refs {
		fmt.Fprintf(r.out, "    %-4s $%s  (%s, %s)\n",
			e.Asset, e.PriceUSD.StringFixed(2), e.Source, e.ObservedAt.Format("15:04:05"))
	}
}

// UpdateChainStatus prints chain state changes only.
func (r *ConsoleReporter) UpdateChainStatus(status chainDomain.ChainStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := string(status.Chain)
	if r.states[name] == status.State {
		return
	}
	r.states[name] = status.State

	detail := fmt.Sprintf("height %d (%s)", status.Height, status.Latency.Round(time.Millisecond))
	if status.Err != nil {
		detail = status.Err.Error()
	}
	fmt.Fprintf(r.out, "[%s] %s: %s, %s\n", time.Now().Format("15:04:05"), name, status.State, detail)
}

// Stop gracefully shuts down the console reporter.
func (r *ConsoleReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Token Price Watcher Stopped")
	return nil
}

// formatPrice keeps four significant digits for sub-dollar prices.
func formatPrice(p float64) string {
	switch {
	case p >= 1:
		return fmt.Sprintf("%.2f", p)
	case p >= 0.0001:
		return fmt.Sprintf("%.6f", p)
	default:
		return fmt.Sprintf("%.4g", p)
	}
}
