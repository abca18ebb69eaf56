package infra

import (
	"context"

	chainDomain "github.com/fd1az/token-price-engine/business/blockchain/domain"
	pricingDomain "github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/business/watch/domain"
	"github.com/fd1az/token-price-engine/pkg/ui"
)

// TUIReporter implements Reporter for the Bubble Tea TUI. The program is
// owned by the caller; messages are dropped until ui.Program is set.
type TUIReporter struct{}

// NewTUIReporter creates a new TUIReporter.
func NewTUIReporter() *TUIReporter {
	return &TUIReporter{}
}

// Start marks the startup steps owned by the watcher as done.
func (r *TUIReporter) Start(ctx context.Context) error {
	ui.Send(ui.StartupMsg{Step: "watcher", Status: "done"})
	return nil
}

// Report sends an observation to the TUI.
func (r *TUIReporter) Report(obs domain.Observation) {
	ui.Send(ui.ObservationMsg{Observation: obs})
}

// ReportCycle sends the cycle summary and reference prices to the TUI.
func (r *TUIReporter) ReportCycle(summary domain.CycleSummary, refs []pricingDomain.QuoteCurrencyEntry) {
	ui.Send(ui.CycleMsg{Summary: summary, References: refs})
}

// UpdateChainStatus sends chain status to the TUI.
func (r *TUIReporter) UpdateChainStatus(status chainDomain.ChainStatus) {
	ui.Send(ui.ChainStatusMsg{Status: status})
}

// Stop is a no-op; the TUI quits on its own key binding.
func (r *TUIReporter) Stop() error {
	return nil
}
