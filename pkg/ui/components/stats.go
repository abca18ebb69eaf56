package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds watch statistics for display.
type Stats struct {
	Cycles       uint64
	Observations int64
	Priced       int64
	Failed       int64
	AvgLatencyMs float64
}

// StatsComponent renders statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update updates the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// Stats returns the current statistics.
func (s *StatsComponent) Stats() Stats {
	return s.stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	successRate := float64(0)
	if s.stats.Observations > 0 {
		successRate = float64(s.stats.Priced) / float64(s.stats.Observations) * 100
	}

	failedDisplay := valueStyle.Render(fmt.Sprintf("%d", s.stats.Failed))
	if s.stats.Failed > 0 {
		failedDisplay = errorStyle.Render(fmt.Sprintf("%d", s.stats.Failed))
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Cycles: %s  │  Priced: %s (%.1f%%)  │  Failed: %s  │  Avg latency: %s",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Cycles)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Priced)),
			successRate,
			failedDisplay,
			valueStyle.Render(fmt.Sprintf("%.0fms", s.stats.AvgLatencyMs)),
		)
}
