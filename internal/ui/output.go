package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/debutade/debutade-hub/internal/doctor"
	"github.com/debutade/debutade-hub/internal/orchestrator"
	"github.com/debutade/debutade-hub/internal/registry"
)

var (
	highlightColor = lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#AD8EE6"}
	successColor   = lipgloss.AdaptiveColor{Light: "#00AA00", Dark: "#00FF00"}
	warningColor   = lipgloss.AdaptiveColor{Light: "#CC6600", Dark: "#FFAA00"}
	errorColor     = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF0000"}
	infoColor      = lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#00AAFF"}
	subtleColor    = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}
)

// ============================================================================
// Styled Output Helpers
// ============================================================================

// PrintHeader prints a styled header
func PrintHeader(text string) {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(highlightColor).
		MarginBottom(1)
	fmt.Println(style.Render("  " + text))
}

// PrintSuccess prints a success message with checkmark
func PrintSuccess(text string) {
	fmt.Println(lipgloss.NewStyle().Foreground(successColor).Render("✔") + " " + text)
}

// PrintWarning prints a warning message
func PrintWarning(text string) {
	fmt.Println(lipgloss.NewStyle().Foreground(warningColor).Render("⚠") + " " + text)
}

// PrintError prints an error message
func PrintError(text string) {
	fmt.Println(lipgloss.NewStyle().Foreground(errorColor).Render("✖") + " " + text)
}

// PrintInfo prints an info message
func PrintInfo(text string) {
	fmt.Println(lipgloss.NewStyle().Foreground(infoColor).Render("ℹ") + " " + text)
}

// PrintHighlight prints highlighted text
func PrintHighlight(label, value string) {
	labelStyle := lipgloss.NewStyle().Foreground(subtleColor)
	valueStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#FFFFFF"})
	fmt.Println("  " + labelStyle.Render(label+":") + " " + valueStyle.Render(value))
}

// PrintDivider prints a styled divider
func PrintDivider() {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#CCCCCC", Dark: "#444444"})
	fmt.Println(style.Render("  " + strings.Repeat("─", 50)))
}

// RenderStatusTable renders one line per app: state, pid and port.
func RenderStatusTable(apps []orchestrator.AppStatus) string {
	nameWidth := 12
	for _, a := range apps {
		if w := lipgloss.Width(a.ID); w > nameWidth {
			nameWidth = w
		}
	}

	var b strings.Builder
	head := lipgloss.NewStyle().Bold(true).Foreground(subtleColor)
	b.WriteString(head.Render(fmt.Sprintf("%-*s  %-9s  %-8s  %s", nameWidth, "APP", "STATE", "PID", "PORT")))
	for _, a := range apps {
		pid := "-"
		if a.PID != nil {
			pid = strconv.Itoa(*a.PID)
		}
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%-*s  %s  %-8s  %d", nameWidth, a.ID, renderState(a.State, a.Running), pid, a.Port))
	}
	return b.String()
}

func renderState(state string, running bool) string {
	style := lipgloss.NewStyle().Foreground(subtleColor)
	icon := "○"
	switch {
	case running:
		style = lipgloss.NewStyle().Foreground(successColor).Bold(true)
		icon = "●"
	case state == orchestrator.StateFailed.String():
		style = lipgloss.NewStyle().Foreground(errorColor)
		icon = "✗"
	case state == orchestrator.StateStarting.String() || state == orchestrator.StateStopping.String():
		style = lipgloss.NewStyle().Foreground(warningColor)
		icon = "◌"
	}
	// Pad before styling so escape codes do not break alignment.
	return style.Render(fmt.Sprintf("%s %-7s", icon, state))
}

// RenderApps renders the app catalog.
func RenderApps(apps []registry.AppDescriptor) string {
	name := lipgloss.NewStyle().Bold(true).Foreground(highlightColor)
	dim := lipgloss.NewStyle().Foreground(subtleColor)

	var lines []string
	for _, a := range apps {
		line := name.Render(a.ID) + "  " + a.Name
		if a.Description != "" {
			line += dim.Render(" · " + a.Description)
		}
		lines = append(lines, line, dim.Render("    "+a.ScriptPath()))
	}
	return strings.Join(lines, "\n")
}

// PrintDiagnosis prints the doctor report for one app
func PrintDiagnosis(d doctor.Diagnosis) {
	if d.Healthy {
		PrintSuccess(d.AppID)
	} else {
		PrintError(d.AppID)
	}
	PrintHighlight("Script", d.Script)

	runtime := "not found"
	if d.Runtime.Path != "" {
		runtime = fmt.Sprintf("%s (%s)", d.Runtime.Path, d.Runtime.Source)
		if d.Runtime.Version != "" {
			runtime = d.Runtime.Version + ", " + runtime
		}
	}
	PrintHighlight("Interpreter", runtime)

	if d.Dependencies.ConfigFile != "" {
		deps := "installed"
		if !d.Dependencies.Installed {
			deps = "missing " + strings.Join(d.Dependencies.MissingPackages, ", ")
		}
		PrintHighlight(d.Dependencies.ConfigFile, deps)
	}

	port := fmt.Sprintf("%d free", d.Port.Port)
	if d.Port.Open {
		port = fmt.Sprintf("%d in use", d.Port.Port)
		if d.Port.OccupantPID > 0 {
			port += fmt.Sprintf(" by pid %d", d.Port.OccupantPID)
		}
	}
	PrintHighlight("Port", port)

	for _, issue := range d.Issues {
		PrintWarning(issue)
	}
}
