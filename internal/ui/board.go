package ui

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/debutade/debutade-hub/internal/orchestrator"
)

// Source is what the board needs from a running hub. *hub.Client satisfies it.
type Source interface {
	Apps(ctx context.Context) ([]orchestrator.AppStatus, error)
	Launch(ctx context.Context, appID string) (string, error)
	Stop(ctx context.Context, appID string) (int, error)
}

// BoardModel is the bubbletea model for the terminal app board
type BoardModel struct {
	source Source
	hubURL string

	apps          []orchestrator.AppStatus
	selectedIndex int
	refreshErr    error

	// busy is the app with a launch or stop in flight
	busy       string
	message    string
	messageErr bool

	resources ResourceStats

	width    int
	height   int
	showHelp bool
	quitting bool

	spinner  spinner.Model
	keys     keyMap
	styles   *Styles
	interval time.Duration

	openURL  func(string) error
	getStats func() ResourceStats
}

// keyMap defines the key bindings for the board
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Launch  key.Binding
	Stop    key.Binding
	OpenURL key.Binding
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Launch: key.NewBinding(
			key.WithKeys("enter", "l"),
			key.WithHelp("enter", "launch"),
		),
		Stop: key.NewBinding(
			key.WithKeys("s", "x"),
			key.WithHelp("s", "stop"),
		),
		OpenURL: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open in browser"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// Styles holds all lipgloss styles for the board
type Styles struct {
	App    lipgloss.Style
	Header lipgloss.Style
	Footer lipgloss.Style

	AppList     lipgloss.Style
	AppItem     lipgloss.Style
	AppSelected lipgloss.Style

	StateIdle     lipgloss.Style
	StateRunning  lipgloss.Style
	StateBusy     lipgloss.Style
	StateFailed   lipgloss.Style
	Message       lipgloss.Style
	MessageError  lipgloss.Style
	Description   lipgloss.Style
	MonitorBox    lipgloss.Style
	ProgressFill  lipgloss.Style
	ProgressEmpty lipgloss.Style

	HelpKey  lipgloss.Style
	HelpDesc lipgloss.Style
}

// DefaultStyles returns the default color scheme
func DefaultStyles() *Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#666", Dark: "#999"}
	highlight := lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#AD8EE6"}
	success := lipgloss.AdaptiveColor{Light: "#00AA00", Dark: "#00FF00"}
	warning := lipgloss.AdaptiveColor{Light: "#AAAA00", Dark: "#FFFF00"}
	errColor := lipgloss.AdaptiveColor{Light: "#AA0000", Dark: "#FF0000"}

	return &Styles{
		App: lipgloss.NewStyle().
			Padding(1, 2),

		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(subtle).
			MarginBottom(1).
			Padding(0, 1),

		Footer: lipgloss.NewStyle().
			Foreground(subtle).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(subtle).
			MarginTop(1).
			Padding(0, 1),

		AppList: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(subtle).
			Padding(0, 1),

		AppItem: lipgloss.NewStyle().
			PaddingLeft(2),

		AppSelected: lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight).
			PaddingLeft(0),

		StateIdle:    lipgloss.NewStyle().Foreground(subtle),
		StateRunning: lipgloss.NewStyle().Foreground(success).Bold(true),
		StateBusy:    lipgloss.NewStyle().Foreground(warning),
		StateFailed:  lipgloss.NewStyle().Foreground(errColor),

		Message:      lipgloss.NewStyle().Foreground(success).MarginTop(1),
		MessageError: lipgloss.NewStyle().Foreground(errColor).MarginTop(1),
		Description:  lipgloss.NewStyle().Foreground(subtle),

		MonitorBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(subtle).
			Padding(0, 1).
			MarginTop(1),
		ProgressFill:  lipgloss.NewStyle().Foreground(success),
		ProgressEmpty: lipgloss.NewStyle().Foreground(subtle),

		HelpKey:  lipgloss.NewStyle().Foreground(highlight).Bold(true),
		HelpDesc: lipgloss.NewStyle().Foreground(subtle),
	}
}

// Messages
type tickMsg time.Time
type resourceUpdateMsg ResourceStats
type appsMsg struct {
	apps []orchestrator.AppStatus
	err  error
}
type actionMsg struct {
	appID   string
	verb    string // launch or stop
	url     string
	stopped int
	err     error
}

// launchTimeout covers the hub's own readiness timeout plus settle time.
const launchTimeout = 2 * time.Minute

// NewBoard creates a board polling source every interval.
func NewBoard(source Source, hubURL string, interval time.Duration) *BoardModel {
	if interval <= 0 {
		interval = time.Second
	}
	s := spinner.New()
	s.Spinner = spinner.Dot

	return &BoardModel{
		source:    source,
		hubURL:    hubURL,
		resources: ResourceStats{CPUTemp: -1},
		spinner:   s,
		keys:      defaultKeyMap(),
		styles:    DefaultStyles(),
		interval:  interval,
		openURL:   OpenInBrowser,
		getStats:  GetResourceStats,
	}
}

// Init implements tea.Model
func (m *BoardModel) Init() tea.Cmd {
	return tea.Batch(
		m.refresh(),
		m.fetchResourceStats(),
		m.tickCmd(),
		m.spinner.Tick,
	)
}

func (m *BoardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *BoardModel) refresh() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		apps, err := source.Apps(ctx)
		return appsMsg{apps: apps, err: err}
	}
}

// fetchResourceStats fetches system resource statistics
func (m *BoardModel) fetchResourceStats() tea.Cmd {
	getStats := m.getStats
	return func() tea.Msg {
		return resourceUpdateMsg(getStats())
	}
}

func (m *BoardModel) launch(appID string) tea.Cmd {
	source := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), launchTimeout)
		defer cancel()
		url, err := source.Launch(ctx, appID)
		return actionMsg{appID: appID, verb: "launch", url: url, err: err}
	}
}

func (m *BoardModel) stop(appID string) tea.Cmd {
	source := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := source.Stop(ctx, appID)
		return actionMsg{appID: appID, verb: "stop", stopped: n, err: err}
	}
}

// Update implements tea.Model
func (m *BoardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case tickMsg:
		return m, tea.Batch(m.refresh(), m.fetchResourceStats(), m.tickCmd())

	case resourceUpdateMsg:
		m.resources = ResourceStats(msg)

	case appsMsg:
		m.refreshErr = msg.err
		if msg.err == nil {
			m.apps = msg.apps
			if m.selectedIndex >= len(m.apps) {
				m.selectedIndex = max(len(m.apps)-1, 0)
			}
		}

	case actionMsg:
		m.busy = ""
		m.messageErr = msg.err != nil
		switch {
		case msg.err != nil:
			m.message = fmt.Sprintf("%s %s: %v", msg.verb, msg.appID, msg.err)
		case msg.verb == "launch":
			m.message = fmt.Sprintf("%s is running at %s", msg.appID, msg.url)
			if err := m.openURL(msg.url); err != nil {
				m.message += " (could not open browser)"
			}
		default:
			m.message = fmt.Sprintf("stopped %s (%d processes)", msg.appID, msg.stopped)
		}
		return m, m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *BoardModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.selectedIndex > 0 {
			m.selectedIndex--
		}

	case key.Matches(msg, m.keys.Down):
		if m.selectedIndex < len(m.apps)-1 {
			m.selectedIndex++
		}

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp

	case key.Matches(msg, m.keys.Refresh):
		return m.refresh()

	case key.Matches(msg, m.keys.Launch):
		app, ok := m.selected()
		if !ok || m.busy != "" {
			return nil
		}
		m.busy = app.ID
		m.message = ""
		return m.launch(app.ID)

	case key.Matches(msg, m.keys.Stop):
		app, ok := m.selected()
		if !ok || m.busy != "" {
			return nil
		}
		m.busy = app.ID
		m.message = ""
		return m.stop(app.ID)

	case key.Matches(msg, m.keys.OpenURL):
		app, ok := m.selected()
		if !ok || !app.Running {
			return nil
		}
		if err := m.openURL(appURL(app)); err != nil {
			m.message, m.messageErr = "could not open browser: "+err.Error(), true
		}
	}
	return nil
}

func (m *BoardModel) selected() (orchestrator.AppStatus, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.apps) {
		return orchestrator.AppStatus{}, false
	}
	return m.apps[m.selectedIndex], true
}

func appURL(app orchestrator.AppStatus) string {
	return "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(app.Port))
}

// View implements tea.Model
func (m *BoardModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderAppList())

	if m.busy != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.StateBusy.MarginTop(1).Render(m.spinner.View() + " working on " + m.busy + "…"))
	} else if m.message != "" {
		b.WriteString("\n")
		if m.messageErr {
			b.WriteString(m.styles.MessageError.Render("✖ " + m.message))
		} else {
			b.WriteString(m.styles.Message.Render("✔ " + m.message))
		}
	}
	if m.refreshErr != nil {
		b.WriteString("\n")
		b.WriteString(m.styles.MessageError.Render("hub unreachable: " + m.refreshErr.Error()))
	}

	b.WriteString("\n")
	b.WriteString(m.renderResourceMonitor())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return m.styles.App.Render(b.String())
}

// renderHeader renders the board header
func (m *BoardModel) renderHeader() string {
	title := "Debutade"

	running := 0
	for _, a := range m.apps {
		if a.Running {
			running++
		}
	}
	status := fmt.Sprintf("Apps: %d | Running: %d | %s", len(m.apps), running, m.hubURL)

	headerWidth := max(m.width-4, 40)
	padding := max(headerWidth-lipgloss.Width(title)-lipgloss.Width(status)-2, 1)

	return m.styles.Header.Width(headerWidth).Render(
		title + strings.Repeat(" ", padding) + status,
	)
}

// renderAppList renders one row per app
func (m *BoardModel) renderAppList() string {
	if len(m.apps) == 0 {
		return m.styles.AppList.Render(m.styles.Description.Render("no apps"))
	}

	nameWidth := 0
	for _, a := range m.apps {
		nameWidth = max(nameWidth, lipgloss.Width(a.Name))
	}

	var rows []string
	for i, a := range m.apps {
		name := fmt.Sprintf("%-*s", nameWidth, a.Name)
		row := name + "  " + m.renderState(a)
		if a.PID != nil {
			row += m.styles.Description.Render(fmt.Sprintf("  pid %d", *a.PID))
		}
		if i == m.selectedIndex {
			rows = append(rows, m.styles.AppSelected.Render("❯ "+row))
		} else {
			rows = append(rows, m.styles.AppItem.Render(row))
		}
	}
	return m.styles.AppList.Render(strings.Join(rows, "\n"))
}

func (m *BoardModel) renderState(a orchestrator.AppStatus) string {
	if a.ID == m.busy {
		return m.styles.StateBusy.Render("◌ busy")
	}
	switch {
	case a.Running:
		return m.styles.StateRunning.Render("● running")
	case a.State == orchestrator.StateFailed.String():
		return m.styles.StateFailed.Render("✗ failed")
	case a.State == orchestrator.StateStarting.String(), a.State == orchestrator.StateStopping.String():
		return m.styles.StateBusy.Render("◌ " + strings.ToLower(a.State))
	default:
		return m.styles.StateIdle.Render("○ stopped")
	}
}

// renderResourceMonitor renders host CPU, memory and temperature
func (m *BoardModel) renderResourceMonitor() string {
	parts := []string{
		m.renderProgressBar("CPU", m.resources.CPUPercent/100, 20),
		m.renderProgressBar("Mem", m.resources.MemPercent/100, 20),
	}
	if m.resources.MemoryTotal > 0 {
		parts = append(parts, m.styles.Description.Render(
			FormatBytes(m.resources.MemoryUsed)+"/"+FormatBytes(m.resources.MemoryTotal)))
	}
	if m.resources.CPUTemp > 0 {
		style := m.styles.ProgressFill
		if m.resources.CPUTemp > 80 {
			style = m.styles.StateFailed
		} else if m.resources.CPUTemp > 60 {
			style = m.styles.StateBusy
		}
		parts = append(parts, style.Render(fmt.Sprintf("%.0f°C", m.resources.CPUTemp)))
	}
	return m.styles.MonitorBox.Render(strings.Join(parts, "  "))
}

// renderProgressBar renders a progress bar
func (m *BoardModel) renderProgressBar(label string, progress float64, width int) string {
	progress = min(max(progress, 0), 1)
	filled := int(progress * float64(width))

	bar := m.styles.ProgressFill.Render(strings.Repeat("█", filled)) +
		m.styles.ProgressEmpty.Render(strings.Repeat("░", width-filled))

	return fmt.Sprintf("%s [%s] %5.1f%%", label, bar, progress*100)
}

// renderFooter renders the key help
func (m *BoardModel) renderFooter() string {
	bindings := []key.Binding{m.keys.Up, m.keys.Launch, m.keys.Stop, m.keys.OpenURL, m.keys.Quit}
	if m.showHelp {
		bindings = []key.Binding{
			m.keys.Up, m.keys.Down, m.keys.Launch, m.keys.Stop,
			m.keys.OpenURL, m.keys.Refresh, m.keys.Help, m.keys.Quit,
		}
	}

	var parts []string
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, m.styles.HelpKey.Render(h.Key)+" "+m.styles.HelpDesc.Render(h.Desc))
	}

	footerWidth := max(m.width-4, 40)
	return m.styles.Footer.Width(footerWidth).Render(strings.Join(parts, " • "))
}

// OpenInBrowser opens a URL in the default browser
func OpenInBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	return cmd.Start()
}

// RunBoard runs the board until the user quits.
func RunBoard(source Source, hubURL string, interval time.Duration) error {
	_, err := tea.NewProgram(NewBoard(source, hubURL, interval), tea.WithAltScreen()).Run()
	return err
}
