package components

import (
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ConnectionStatus represents a chain endpoint's status.
type ConnectionStatus struct {
	Name       string
	Connected  bool
	Latency    time.Duration
	Height     uint64
	Detail     string
	LastUpdate time.Time
}

// StatusComponent renders connection status.
type StatusComponent struct {
	connections []ConnectionStatus
}

// NewStatusComponent creates a new status component.
func NewStatusComponent() *StatusComponent {
	return &StatusComponent{
		connections: make([]ConnectionStatus, 0),
	}
}

// Update updates a connection's status.
func (s *StatusComponent) Update(status ConnectionStatus) {
	for i, conn := range s.connections {
		if conn.Name == status.Name {
			s.connections[i] = status
			return
		}
	}
	s.connections = append(s.connections, status)
	sort.Slice(s.connections, func(i, j int) bool { return s.connections[i].Name < s.connections[j].Name })
}

// Connections returns the tracked statuses in name order.
func (s *StatusComponent) Connections() []ConnectionStatus {
	return s.connections
}

// View renders the status component on one line.
func (s *StatusComponent) View() string {
	if len(s.connections) == 0 {
		return "No chains"
	}

	connected := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	disconnected := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	var result string
	for i, conn := range s.connections {
		if i > 0 {
			result += "  │  "
		}
		if !conn.Connected {
			result += disconnected.Render("○ " + conn.Name + " (degraded)")
			continue
		}
		label := fmt.Sprintf("● %s #%d", conn.Name, conn.Height)
		if conn.Latency > 0 {
			label += fmt.Sprintf(" (%dms)", conn.Latency.Milliseconds())
		}
		result += connected.Render(label)
	}

	return result
}
