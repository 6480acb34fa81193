package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/debutade/debutade-hub/internal/orchestrator"
)

type fakeSource struct {
	apps     []orchestrator.AppStatus
	launched []string
	stopped  []string
	stopErr  error
}

func (f *fakeSource) Apps(context.Context) ([]orchestrator.AppStatus, error) {
	return f.apps, nil
}

func (f *fakeSource) Launch(_ context.Context, appID string) (string, error) {
	f.launched = append(f.launched, appID)
	return "http://127.0.0.1:5004", nil
}

func (f *fakeSource) Stop(_ context.Context, appID string) (int, error) {
	f.stopped = append(f.stopped, appID)
	return 1, f.stopErr
}

func appStatus(id string, pid int) orchestrator.AppStatus {
	st := orchestrator.AppStatus{ID: id, Name: strings.ToUpper(id[:1]) + id[1:]}
	st.Port = 5004
	st.State = orchestrator.StateIdle.String()
	if pid > 0 {
		st.Running = true
		st.PID = &pid
		st.State = orchestrator.StateRunning.String()
	}
	return st
}

func newTestBoard(src *fakeSource) (*BoardModel, *[]string) {
	var opened []string
	m := NewBoard(src, "http://127.0.0.1:5003", 0)
	m.openURL = func(url string) error {
		opened = append(opened, url)
		return nil
	}
	m.getStats = func() ResourceStats { return ResourceStats{CPUPercent: 12.5, MemPercent: 40, CPUTemp: -1} }
	return m, &opened
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run executes cmd and feeds the resulting message back into the model.
func run(t *testing.T, m *BoardModel, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg := cmd()
	m.Update(msg)
	return msg
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes uint64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.bytes); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestBoardLaunchesSelectedApp(t *testing.T) {
	src := &fakeSource{apps: []orchestrator.AppStatus{appStatus("kasboek", 0), appStatus("showreport", 0)}}
	m, opened := newTestBoard(src)

	run(t, m, m.refresh())
	if len(m.apps) != 2 {
		t.Fatalf("expected 2 apps, got %d", len(m.apps))
	}

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if m.selectedIndex != 1 {
		t.Fatalf("expected selection 1, got %d", m.selectedIndex)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.busy != "showreport" {
		t.Errorf("expected showreport to be busy, got %q", m.busy)
	}

	// A second launch while one is in flight is ignored
	if _, again := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); again != nil {
		t.Error("expected no command while busy")
	}

	msg := run(t, m, cmd)
	if action, ok := msg.(actionMsg); !ok || action.verb != "launch" {
		t.Fatalf("unexpected message %#v", msg)
	}
	if len(src.launched) != 1 || src.launched[0] != "showreport" {
		t.Errorf("launched = %v", src.launched)
	}
	if m.busy != "" {
		t.Error("expected busy to be cleared")
	}
	if len(*opened) != 1 || (*opened)[0] != "http://127.0.0.1:5004" {
		t.Errorf("opened = %v", *opened)
	}
	if !strings.Contains(m.message, "showreport is running") {
		t.Errorf("unexpected message %q", m.message)
	}
}

func TestBoardStopReportsError(t *testing.T) {
	src := &fakeSource{
		apps:    []orchestrator.AppStatus{appStatus("kasboek", 4242)},
		stopErr: errors.New("no process found"),
	}
	m, _ := newTestBoard(src)
	run(t, m, m.refresh())

	_, cmd := m.Update(keyRunes("s"))
	run(t, m, cmd)

	if len(src.stopped) != 1 || src.stopped[0] != "kasboek" {
		t.Errorf("stopped = %v", src.stopped)
	}
	if !m.messageErr || !strings.Contains(m.message, "no process found") {
		t.Errorf("expected error message, got %q", m.message)
	}
	if !strings.Contains(m.View(), "no process found") {
		t.Error("expected error in view")
	}
}

func TestBoardOpensOnlyRunningApps(t *testing.T) {
	src := &fakeSource{apps: []orchestrator.AppStatus{appStatus("kasboek", 0), appStatus("showreport", 99)}}
	m, opened := newTestBoard(src)
	run(t, m, m.refresh())

	m.Update(keyRunes("o"))
	if len(*opened) != 0 {
		t.Fatalf("stopped app should not be opened: %v", *opened)
	}

	m.Update(keyRunes("j"))
	m.Update(keyRunes("o"))
	if len(*opened) != 1 || (*opened)[0] != "http://127.0.0.1:5004" {
		t.Errorf("opened = %v", *opened)
	}
}

func TestBoardClampsSelectionWhenAppsShrink(t *testing.T) {
	src := &fakeSource{apps: []orchestrator.AppStatus{appStatus("a", 0), appStatus("b", 0), appStatus("c", 0)}}
	m, _ := newTestBoard(src)
	run(t, m, m.refresh())
	m.selectedIndex = 2

	m.Update(appsMsg{apps: src.apps[:1]})
	if m.selectedIndex != 0 {
		t.Errorf("expected selection 0, got %d", m.selectedIndex)
	}

	m.Update(appsMsg{err: errors.New("connection refused")})
	if len(m.apps) != 1 {
		t.Error("a failed refresh should keep the last known apps")
	}
	if !strings.Contains(m.View(), "hub unreachable") {
		t.Error("expected refresh error in view")
	}
}

func TestBoardViewAndQuit(t *testing.T) {
	src := &fakeSource{apps: []orchestrator.AppStatus{appStatus("kasboek", 4242)}}
	m, _ := newTestBoard(src)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	run(t, m, m.refresh())
	run(t, m, m.fetchResourceStats())

	view := m.View()
	for _, want := range []string{"Debutade", "Kasboek", "running", "pid 4242", "CPU", "12.5%"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view", want)
		}
	}

	_, cmd := m.Update(keyRunes("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if m.View() != "" {
		t.Error("expected empty view after quitting")
	}
}

func TestRenderStatusTable(t *testing.T) {
	out := RenderStatusTable([]orchestrator.AppStatus{appStatus("kasboek", 4242), appStatus("showreport", 0)})
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "kasboek") || !strings.Contains(lines[1], "4242") {
		t.Errorf("unexpected row %q", lines[1])
	}
	if !strings.Contains(lines[2], "showreport") || !strings.Contains(lines[2], "-") {
		t.Errorf("unexpected row %q", lines[2])
	}
}
