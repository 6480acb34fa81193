package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/debutade/debutade-hub/internal/doctor"
)

// InstallChoice is the answer to an install prompt.
type InstallChoice int

const (
	InstallSkip InstallChoice = iota
	InstallApp
	// InstallAll installs for this app and every later one without asking.
	InstallAll
)

func (c InstallChoice) String() string {
	switch c {
	case InstallApp:
		return "Install"
	case InstallAll:
		return "Install all"
	}
	return "Skip"
}

// maxListedPackages bounds the package list; the rest is summarised.
const maxListedPackages = 6

var (
	promptTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(highlightColor)
	promptSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(successColor)
	promptOptionStyle   = lipgloss.NewStyle().Foreground(subtleColor)
	promptPackageStyle  = lipgloss.NewStyle().Foreground(warningColor)
	promptDimStyle      = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#999999", Dark: "#666666"})
)

type installKeyMap struct {
	Left    key.Binding
	Right   key.Binding
	Install key.Binding
	Skip    key.Binding
	All     key.Binding
	Confirm key.Binding
	Cancel  key.Binding
}

var installKeys = installKeyMap{
	Left:    key.NewBinding(key.WithKeys("left", "h", "shift+tab")),
	Right:   key.NewBinding(key.WithKeys("right", "l", "tab")),
	Install: key.NewBinding(key.WithKeys("y", "i")),
	Skip:    key.NewBinding(key.WithKeys("n", "s")),
	All:     key.NewBinding(key.WithKeys("a")),
	Confirm: key.NewBinding(key.WithKeys("enter")),
	Cancel:  key.NewBinding(key.WithKeys("esc", "q", "ctrl+c")),
}

var installOptions = []InstallChoice{InstallApp, InstallSkip, InstallAll}

// InstallPrompt asks whether to install the packages an app is missing. It
// shows the interpreter pip will run under, so a wrong virtualenv is caught
// before anything is installed.
type InstallPrompt struct {
	appID       string
	interpreter string
	missing     []string
	command     string

	cursor int
	done   bool
}

// NewInstallPrompt builds the prompt for one diagnosed app. Install is
// preselected.
func NewInstallPrompt(d doctor.Diagnosis) InstallPrompt {
	interp := d.Runtime.Path
	if d.Runtime.Version != "" {
		interp = fmt.Sprintf("%s (%s)", interp, d.Runtime.Version)
	}
	if d.Runtime.Source != "" {
		interp += ", " + string(d.Runtime.Source)
	}
	return InstallPrompt{
		appID:       d.AppID,
		interpreter: interp,
		missing:     d.Dependencies.MissingPackages,
		command:     d.Dependencies.InstallCommand,
	}
}

func (m InstallPrompt) Init() tea.Cmd {
	return nil
}

func (m InstallPrompt) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, installKeys.Left):
		m.cursor = (m.cursor + len(installOptions) - 1) % len(installOptions)
	case key.Matches(keyMsg, installKeys.Right):
		m.cursor = (m.cursor + 1) % len(installOptions)
	case key.Matches(keyMsg, installKeys.Install):
		return m.choose(InstallApp)
	case key.Matches(keyMsg, installKeys.Skip):
		return m.choose(InstallSkip)
	case key.Matches(keyMsg, installKeys.All):
		return m.choose(InstallAll)
	case key.Matches(keyMsg, installKeys.Confirm):
		m.done = true
		return m, tea.Quit
	case key.Matches(keyMsg, installKeys.Cancel):
		return m.choose(InstallSkip)
	}
	return m, nil
}

func (m InstallPrompt) choose(c InstallChoice) (tea.Model, tea.Cmd) {
	for i, opt := range installOptions {
		if opt == c {
			m.cursor = i
		}
	}
	m.done = true
	return m, tea.Quit
}

func (m InstallPrompt) View() string {
	var b strings.Builder

	b.WriteString(promptTitleStyle.Render(fmt.Sprintf("? %s is missing %d package(s)", m.appID, len(m.missing))))
	b.WriteString("\n")

	listed := m.missing
	if len(listed) > maxListedPackages {
		listed = listed[:maxListedPackages]
	}
	for _, pkg := range listed {
		b.WriteString("    " + promptPackageStyle.Render(pkg) + "\n")
	}
	if extra := len(m.missing) - len(listed); extra > 0 {
		b.WriteString(promptDimStyle.Render(fmt.Sprintf("    and %d more", extra)) + "\n")
	}

	b.WriteString(promptDimStyle.Render("  interpreter: "+m.interpreter) + "\n")
	if m.command != "" {
		b.WriteString(promptDimStyle.Render("  runs: "+m.command) + "\n")
	}

	b.WriteString("\n ")
	for i, opt := range installOptions {
		if i == m.cursor {
			b.WriteString(promptSelectedStyle.Render(" ❯ " + opt.String()))
		} else {
			b.WriteString(promptOptionStyle.Render("   " + opt.String()))
		}
	}
	b.WriteString("\n\n")
	b.WriteString(promptDimStyle.Render("  y install · n skip · a install all · enter confirm"))

	return b.String()
}

// Choice returns the selected option once the prompt is done, and InstallSkip
// before that.
func (m InstallPrompt) Choice() InstallChoice {
	if !m.done {
		return InstallSkip
	}
	return installOptions[m.cursor]
}

// RunInstallPrompt asks about one app's missing packages.
func RunInstallPrompt(d doctor.Diagnosis) (InstallChoice, error) {
	model, err := tea.NewProgram(NewInstallPrompt(d)).Run()
	if err != nil {
		return InstallSkip, err
	}
	return model.(InstallPrompt).Choice(), nil
}
