package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	chainDomain "github.com/fd1az/token-price-engine/business/blockchain/domain"
	"github.com/fd1az/token-price-engine/business/watch/domain"
	"github.com/fd1az/token-price-engine/pkg/ui/components"
)

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "connected", "done", "failed", "skipped"
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"   // Initial welcome screen
	PhaseStartup   Phase = "startup"   // Loading/connecting
	PhaseDashboard Phase = "dashboard" // Main dashboard
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

var stepOrder = []string{"config", "ethereum", "bsc", "solana", "pricing", "watcher"}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	// Components
	prices     *components.PricesComponent
	references *components.ReferencesComponent
	status     *components.StatusComponent
	stats      *components.StatsComponent

	board *domain.Board
	keys  KeyMap
	help  help.Model

	// Phase state
	phase        Phase
	welcomeStart time.Time

	// State
	ready      bool
	quitting   bool
	paused     bool // Freezes the price table
	width      int
	height     int
	lastUpdate time.Time
	errors     []ErrorEntry // Persistent error panel (last 3)
	logs       []string     // Recent log messages

	// Startup state
	startupSteps map[string]*StartupStep
	startupTime  time.Time

	activityFeed  []string
	lastCycleTime time.Time
	latencyTotal  time.Duration
}

// New creates a new TUI model.
func New() Model {
	now := time.Now()
	return Model{
		prices:       components.NewPricesComponent(),
		references:   components.NewReferencesComponent(),
		status:       components.NewStatusComponent(),
		stats:        components.NewStatsComponent(),
		board:        domain.NewBoard(nil),
		keys:         DefaultKeyMap(),
		help:         help.New(),
		phase:        PhaseWelcome,
		welcomeStart: now,
		logs:         make([]string, 0, 10),
		errors:       make([]ErrorEntry, 0, 3),
		activityFeed: make([]string, 0, 8),
		startupSteps: map[string]*StartupStep{
			"config":   {Name: "Loading configuration", Status: "pending"},
			"ethereum": {Name: "Connecting to Ethereum", Status: "pending"},
			"bsc":      {Name: "Connecting to BSC", Status: "pending"},
			"solana":   {Name: "Connecting to Solana", Status: "pending"},
			"pricing":  {Name: "Loading price sources", Status: "pending"},
			"watcher":  {Name: "Starting watcher", Status: "pending"},
		},
		startupTime: now,
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 100ms for smooth animations.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

func (m *Model) beginStartup() {
	m.phase = PhaseStartup
	m.startupTime = time.Now()
	// Trigger callback directly (don't use Send() from within Update)
	if OnStartModules != nil {
		go OnStartModules()
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		// During welcome phase, any other key skips to startup
		if m.phase == PhaseWelcome {
			m.beginStartup()
			return m, tickCmd()
		}
		switch {
		case key.Matches(msg, m.keys.Clear):
			m.activityFeed = m.activityFeed[:0]
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
			if !m.paused {
				m.refreshPrices()
			}
		case key.Matches(msg, m.keys.ClearErrors):
			m.errors = make([]ErrorEntry, 0, 3)
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.beginStartup()
		}
		if m.phase == PhaseStartup && m.startupComplete() {
			m.phase = PhaseDashboard
		}
		if !m.paused {
			m.refreshPrices()
		}
		return m, tickCmd()

	case TargetsMsg:
		m.board = domain.NewBoard(msg.Targets)
		m.refreshPrices()

	case ObservationMsg:
		obs := msg.Observation
		m.board.Apply(obs)
		m.latencyTotal += obs.Latency

		stats := m.stats.Stats()
		stats.Observations++
		if obs.OK() {
			stats.Priced++
			m.activityFeed = addActivity(m.activityFeed, fmt.Sprintf("%s $%s via %s",
				obs.Target.Label(), components.FormatPrice(obs.PriceUSD), obs.Provider))
		} else {
			stats.Failed++
			if obs.Err != nil {
				m.activityFeed = addActivity(m.activityFeed, fmt.Sprintf("%s unavailable", obs.Target.Label()))
				m.logs = addLog(m.logs, "warn", obs.Err.Error())
			}
		}
		stats.AvgLatencyMs = float64(m.latencyTotal.Milliseconds()) / float64(stats.Observations)
		m.stats.Update(stats)

		if !m.paused {
			m.refreshPrices()
		}
		m.lastUpdate = time.Now()

	case CycleMsg:
		stats := m.stats.Stats()
		stats.Cycles = msg.Summary.Number
		m.stats.Update(stats)

		rows := make([]components.ReferenceRow, 0, len(msg.References))
		for _, ref := range msg.References {
			rows = append(rows, components.ReferenceRow{
				Asset:    ref.Asset,
				PriceUSD: ref.PriceUSD,
				Source:   ref.Source,
				Age:      time.Since(ref.ObservedAt),
			})
		}
		m.references.Update(rows)

		m.activityFeed = addActivity(m.activityFeed, fmt.Sprintf("Cycle #%d: %d priced, %d failed in %s",
			msg.Summary.Number, msg.Summary.Priced, msg.Summary.Failed, msg.Summary.Duration.Round(time.Millisecond)))
		m.lastCycleTime = time.Now()
		m.lastUpdate = time.Now()
		if m.phase == PhaseStartup {
			m.phase = PhaseDashboard
		}

	case ChainStatusMsg:
		s := msg.Status
		connected := s.State == chainDomain.StateConnected
		detail := ""
		if s.Err != nil {
			detail = s.Err.Error()
		}
		m.status.Update(components.ConnectionStatus{
			Name:       s.Chain.String(),
			Connected:  connected,
			Latency:    s.Latency,
			Height:     s.Height,
			Detail:     detail,
			LastUpdate: s.CheckedAt,
		})
		if step, ok := m.startupSteps[s.Chain.String()]; ok {
			if connected {
				step.Status = "connected"
			} else {
				step.Status = "failed"
			}
		}
		m.lastUpdate = time.Now()

	case ErrorMsg:
		m.logs = addLog(m.logs, "error", msg.Error.Error())
		m.errors = append(m.errors, ErrorEntry{
			Message:   msg.Error.Error(),
			Timestamp: time.Now(),
		})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)

	case StartupMsg:
		if step, ok := m.startupSteps[msg.Step]; ok {
			step.Status = msg.Status
		}
	}

	return m, nil
}

// startupComplete reports whether no step is still pending or connecting.
// A failed chain does not hold the dashboard back.
func (m Model) startupComplete() bool {
	for _, step := range m.startupSteps {
		switch step.Status {
		case "connected", "done", "failed", "skipped":
		default:
			return false
		}
	}
	return true
}

func (m Model) refreshPrices() {
	now := time.Now()
	boardRows := m.board.Rows()
	rows := make([]components.PriceRow, 0, len(boardRows))
	for _, r := range boardRows {
		source := r.Source
		if r.Provider != "" && r.Provider != r.Source {
			source = r.Provider
		}
		row := components.PriceRow{
			Token:    r.Target.Label(),
			PriceUSD: r.PriceUSD,
			Source:   source,
			Failures: r.Failures,
			LastErr:  r.LastErr,
		}
		if r.Priced() {
			row.Age = now.Sub(r.ObservedAt)
		}
		rows = append(rows, row)
	}
	m.prices.Update(rows)
}

// addLog adds a log message and returns the updated slice (keeps last 5).
func addLog(logs []string, level, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	logLine := fmt.Sprintf("[%s] %s: %s", timestamp, level, message)
	logs = append(logs, logLine)
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

// addActivity adds an activity message and returns the updated slice (keeps last 6).
func addActivity(feed []string, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	line := fmt.Sprintf("[%s] %s", timestamp, message)
	feed = append(feed, line)
	if len(feed) > 6 {
		feed = feed[len(feed)-6:]
	}
	return feed
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		return m.renderStartupScreen()
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" Token Price Engine "))
	b.WriteString("\n\n")

	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	leftCol := m.prices.View()

	var rightContent strings.Builder
	rightContent.WriteString(m.references.View())
	rightContent.WriteString("\n\n")
	rightContent.WriteString(m.renderActivityFeed())
	rightCol := rightContent.String()

	if m.width > 120 {
		left := BoxStyle.Width(m.width*3/5 - 2).Render(leftCol)
		right := BoxStyle.Width(m.width*2/5 - 2).Render(rightCol)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		b.WriteString(BoxStyle.Width(max(m.width-4, 40)).Render(leftCol))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(max(m.width-4, 40)).Render(rightCol))
	}
	b.WriteString("\n\n")

	b.WriteString(m.stats.View())
	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)
		mutedError := lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))

		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(mutedError.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(NegativeValue.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(mutedError.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.paused {
		b.WriteString(StatusPending.Render("⏸ PAUSED"))
		b.WriteString(" • ")
	}
	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

// renderActivityFeed renders the recent activity feed.
func (m Model) renderActivityFeed() string {
	var sb strings.Builder
	sb.WriteString(HeaderStyle.Render("LIVE ACTIVITY"))
	sb.WriteString("\n\n")

	if len(m.activityFeed) == 0 {
		sb.WriteString(MutedValue.Render("  Waiting for the first cycle..."))
		return sb.String()
	}

	for _, activity := range m.activityFeed {
		switch {
		case strings.Contains(activity, "Cycle #"):
			sb.WriteString(InfoValue.Render("  " + activity))
		case strings.HasSuffix(activity, "unavailable"):
			sb.WriteString(NegativeValue.Render("  " + activity))
		default:
			sb.WriteString(MutedValue.Render("  " + activity))
		}
		sb.WriteString("\n")
	}

	if len(m.logs) > 0 {
		sb.WriteString("\n")
		sb.WriteString(MutedValue.Render("  " + m.logs[len(m.logs)-1]))
	}

	return sb.String()
}

// renderWelcomeScreen renders the animated welcome screen.
func (m Model) renderWelcomeScreen() string {
	goldStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorWarning)

	elapsed := time.Since(m.welcomeStart)
	dotCount := int(elapsed.Milliseconds()/300) % 4
	dots := strings.Repeat(".", dotCount)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")

	logo := `
   ██████╗ ██████╗ ██╗ ██████╗███████╗██████╗
   ██╔══██╗██╔══██╗██║██╔════╝██╔════╝██╔══██╗
   ██████╔╝██████╔╝██║██║     █████╗  ██║  ██║
   ██╔═══╝ ██╔══██╗██║██║     ██╔══╝  ██║  ██║
   ██║     ██║  ██║██║╚██████╗███████╗██████╔╝
   ╚═╝     ╚═╝  ╚═╝╚═╝ ╚═════╝╚══════╝╚═════╝
`
	sb.WriteString(HeaderStyle.Render(logo))
	sb.WriteString("\n")

	sb.WriteString(MutedValue.Render("         T O K E N   P R I C E   E N G I N E"))
	sb.WriteString("\n\n\n")

	sb.WriteString(goldStyle.Render("          Ethereum  •  BSC  •  Solana"))
	sb.WriteString("\n\n\n")

	sb.WriteString(PositiveValue.Render(fmt.Sprintf("                Initializing%s", dots)))
	sb.WriteString("\n\n")

	sb.WriteString(MutedValue.Render("          Press any key to skip, or wait..."))
	sb.WriteString("\n")

	return sb.String()
}

// renderStartupScreen renders the loading/startup screen.
func (m Model) renderStartupScreen() string {
	titleStyle := HeaderStyle.MarginBottom(1)
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF"))

	var sb strings.Builder

	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("  Token Price Engine"))
	sb.WriteString("\n\n")
	sb.WriteString(headerStyle.Render("  Starting up..."))
	sb.WriteString("\n\n")

	for _, name := range stepOrder {
		step, ok := m.startupSteps[name]
		if !ok {
			continue
		}

		var icon, statusText string
		var style lipgloss.Style

		switch step.Status {
		case "connected", "done":
			icon = "✓"
			statusText = "Ready"
			style = PositiveValue
		case "connecting":
			spinners := []string{"◐", "◓", "◑", "◒"}
			idx := int(time.Since(m.startupTime).Milliseconds()/200) % len(spinners)
			icon = spinners[idx]
			statusText = "Connecting..."
			style = StatusPending
		case "failed":
			icon = "✗"
			statusText = "Failed"
			style = NegativeValue
		case "skipped":
			icon = "-"
			statusText = "Disabled"
			style = MutedValue
		default:
			icon = "○"
			statusText = "Pending"
			style = MutedValue
		}

		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			style.Render(icon),
			MutedValue.Render(step.Name),
			style.Render(statusText),
		))
	}

	sb.WriteString("\n")
	elapsed := time.Since(m.startupTime).Round(time.Second)
	sb.WriteString(MutedValue.Render(fmt.Sprintf("  Elapsed: %s", elapsed)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("  Waiting for the first price cycle..."))
	sb.WriteString("\n")

	return sb.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	if time.Since(m.lastCycleTime) < time.Second {
		spinners := []string{"⟳", "◐", "◓", "◑", "◒"}
		idx := int(time.Now().UnixMilli()/100) % len(spinners)
		parts = append(parts, StatusConnected.Render(spinners[idx]+" Pricing"))
	}

	parts = append(parts, m.status.View())

	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago", ago)))
	}

	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called when the welcome screen completes and modules should start.
// This is set by main.go to signal when to begin loading modules.
var OnStartModules func()

// Run starts the Bubble Tea program.
func Run() error {
	Program = tea.NewProgram(New(), tea.WithAltScreen())
	_, err := Program.Run()
	return err
}

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
	// Call OnStartModules callback when StartModulesMsg is sent
	if _, ok := msg.(StartModulesMsg); ok && OnStartModules != nil {
		OnStartModules()
	}
}
