// Package ui provides the Bubble Tea TUI for the price watcher.
package ui

import (
	chainDomain "github.com/fd1az/token-price-engine/business/blockchain/domain"
	pricingDomain "github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/business/watch/domain"
)

// Message types for TUI updates

// ObservationMsg is sent when a token has been priced (or failed to be).
type ObservationMsg struct {
	Observation domain.Observation
}

// CycleMsg is sent when a watch cycle completes.
type CycleMsg struct {
	Summary    domain.CycleSummary
	References []pricingDomain.QuoteCurrencyEntry
}

// ChainStatusMsg is sent when a chain endpoint has been probed.
type ChainStatusMsg struct {
	Status chainDomain.ChainStatus
}

// TargetsMsg seeds the price table with the watched tokens.
type TargetsMsg struct {
	Targets []domain.Target
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // Current step name
	Status  string // "connecting", "connected", "done", "failed"
	Message string // Optional message
}
