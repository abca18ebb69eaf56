package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// ReferenceRow is one reference asset price.
type ReferenceRow struct {
	Asset    string
	PriceUSD decimal.Decimal
	Source   string
	Age      time.Duration
}

// ReferencesComponent renders the quote-currency prices.
type ReferencesComponent struct {
	rows []ReferenceRow
}

// NewReferencesComponent creates a new references component.
func NewReferencesComponent() *ReferencesComponent {
	return &ReferencesComponent{}
}

// Update replaces the reference rows.
func (r *ReferencesComponent) Update(rows []ReferenceRow) {
	r.rows = rows
}

// View renders the references component.
func (r *ReferencesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	result := headerStyle.Render("REFERENCE ASSETS") + "\n\n"
	if len(r.rows) == 0 {
		return result + dimStyle.Render("  Not resolved yet...")
	}

	for _, row := range r.rows {
		result += fmt.Sprintf("  %-4s %s  %s\n",
			row.Asset,
			valueStyle.Render(fmt.Sprintf("%12s", "$"+row.PriceUSD.StringFixed(2))),
			dimStyle.Render(fmt.Sprintf("%s, %s ago", row.Source, row.Age.Round(time.Second))),
		)
	}
	return result
}
