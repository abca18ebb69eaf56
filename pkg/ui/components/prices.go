// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// PriceRow represents a row in the price table.
type PriceRow struct {
	Token    string
	PriceUSD decimal.Decimal
	Source   string
	Age      time.Duration
	Failures int
	LastErr  string
}

// PricesComponent renders the token price table.
type PricesComponent struct {
	rows []PriceRow
}

// NewPricesComponent creates a new prices component.
func NewPricesComponent() *PricesComponent {
	return &PricesComponent{rows: make([]PriceRow, 0)}
}

// Update replaces the price rows.
func (p *PricesComponent) Update(rows []PriceRow) {
	p.rows = rows
}

// View renders the prices component.
func (p *PricesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	failStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	result := headerStyle.Render("TOKEN PRICES (USD)")
	result += "\n\n"

	if len(p.rows) == 0 {
		return result + "Waiting for price data..."
	}

	result += fmt.Sprintf("  %-26s  %14s  %-15s  %6s  %4s\n", "Token", "Price", "Source", "Age", "Fail")
	result += dimStyle.Render("  "+strings.Repeat("─", 72)) + "\n"

	for _, row := range p.rows {
		price := dimStyle.Render(fmt.Sprintf("%14s", "—"))
		if row.PriceUSD.IsPositive() {
			price = okStyle.Render(fmt.Sprintf("%14s", "$"+FormatPrice(row.PriceUSD)))
		}

		age := "—"
		if row.PriceUSD.IsPositive() {
			age = row.Age.Round(time.Second).String()
		}

		fails := dimStyle.Render(fmt.Sprintf("%4d", row.Failures))
		switch {
		case row.Failures >= 3:
			fails = failStyle.Render(fmt.Sprintf("%4d", row.Failures))
		case row.Failures > 0:
			fails = warnStyle.Render(fmt.Sprintf("%4d", row.Failures))
		}

		result += fmt.Sprintf("  %-26s  %s  %-15s  %6s  %s\n", row.Token, price, row.Source, age, fails)
	}

	return result
}

// FormatPrice keeps four significant digits for sub-dollar prices.
func FormatPrice(p decimal.Decimal) string {
	switch {
	case p.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return p.StringFixed(2)
	case p.GreaterThanOrEqual(decimal.New(1, -4)):
		return p.StringFixed(6)
	default:
		return fmt.Sprintf("%.4g", p.InexactFloat64())
	}
}
