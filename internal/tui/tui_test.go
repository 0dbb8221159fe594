package tui

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/spiffcs/gqlc/internal/constants"
)

func TestTaskID(t *testing.T) {
	ids := []TaskID{TaskAuth, TaskConnect, TaskReceive}
	seen := make(map[TaskID]bool)

	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate task ID: %d", id)
		}
		seen[id] = true
	}
}

func TestNewTask(t *testing.T) {
	task := NewTask(TaskConnect, "Connecting")

	if task.ID != TaskConnect {
		t.Errorf("expected ID %d, got %d", TaskConnect, task.ID)
	}
	if task.Status != StatusPending {
		t.Errorf("expected status %d, got %d", StatusPending, task.Status)
	}
}

func TestSendEvent(t *testing.T) {
	ch := make(chan Event, 1)

	SendEvent(ch, TaskEvent{Task: TaskAuth, Status: StatusComplete})
	// full channel drops instead of blocking
	SendEvent(ch, TaskEvent{Task: TaskConnect})

	received := <-ch
	te, ok := received.(TaskEvent)
	if !ok {
		t.Fatal("expected TaskEvent type")
	}
	if te.Task != TaskAuth {
		t.Errorf("expected task %d, got %d", TaskAuth, te.Task)
	}
}

func TestSendEventNilChannel(t *testing.T) {
	// Should not panic with nil channel
	SendEvent(nil, TaskEvent{})
}

func TestSendTaskEvent(t *testing.T) {
	ch := make(chan Event, 1)
	testErr := errors.New("handshake refused")

	SendTaskEvent(ch, TaskConnect, StatusError,
		WithMessage("ws://localhost"),
		WithCount(3),
		WithError(testErr),
	)

	te, ok := (<-ch).(TaskEvent)
	if !ok {
		t.Fatal("expected TaskEvent type")
	}
	if te.Message != "ws://localhost" || te.Count != 3 || te.Error != testErr {
		t.Errorf("unexpected event %+v", te)
	}
}

func TestStatusIcon(t *testing.T) {
	statuses := []TaskStatus{StatusPending, StatusRunning, StatusComplete, StatusError, StatusSkipped}

	for _, status := range statuses {
		if icon := StatusIcon(status, ">"); icon == "" {
			t.Errorf("StatusIcon returned empty string for status %d", status)
		}
	}
}

func newTestModel(opts ...ModelOption) Model {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m := NewModel(nil, opts...)
	m.now = func() time.Time { return now }
	m.lastRefetch = now
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	got, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return got, cmd
}

func taskByID(m Model, id TaskID) Task {
	for _, task := range m.tasks {
		if task.ID == id {
			return task
		}
	}
	return Task{}
}

func TestModelUpdateEvent(t *testing.T) {
	m := newTestModel(WithTitle("Hero"))

	m, _ = update(t, m, UpdateEvent{Body: "{\n  \"name\": \"R2-D2\"\n}", Source: "network", At: m.now()})
	m, _ = update(t, m, UpdateEvent{Body: "{\n  \"name\": \"Artoo\"\n}", Source: "cache", At: m.now()})

	if m.updates != 2 {
		t.Errorf("updates = %d, want 2", m.updates)
	}
	if got := taskByID(m, TaskConnect).Status; got != StatusComplete {
		t.Errorf("connect task status = %d, want complete", got)
	}
	if got := taskByID(m, TaskReceive).Count; got != 2 {
		t.Errorf("receive task count = %d, want 2", got)
	}

	view := m.View()
	for _, want := range []string{"Hero", "2 updates", "from cache", "Artoo"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "R2-D2") {
		t.Errorf("View() still shows the replaced body:\n%s", view)
	}
}

func TestModelUpdateErrorKeepsBody(t *testing.T) {
	m := newTestModel()

	m, _ = update(t, m, UpdateEvent{Body: "first"})
	m, _ = update(t, m, UpdateEvent{Err: errors.New("connection reset")})

	if m.updates != 1 {
		t.Errorf("updates = %d, want 1", m.updates)
	}
	view := m.View()
	if !strings.Contains(view, "connection reset") || !strings.Contains(view, "first") {
		t.Errorf("View() should show the error above the last body:\n%s", view)
	}
}

func TestModelClipsBody(t *testing.T) {
	m := newTestModel()

	var lines []string
	for i := 0; i < constants.TUIMaxBodyLines+5; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	m, _ = update(t, m, UpdateEvent{Body: strings.Join(lines, "\n")})

	view := m.View()
	if !strings.Contains(view, "5 more lines") {
		t.Errorf("View() should report hidden lines:\n%s", view)
	}
	if strings.Contains(view, fmt.Sprintf("line %d", constants.TUIMaxBodyLines)) {
		t.Errorf("View() rendered a line past the limit")
	}
}

func TestModelRefetchKey(t *testing.T) {
	calls := 0
	m := newTestModel(WithRefetch(func() { calls++ }), WithPollInterval(time.Minute))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if calls != 1 {
		t.Errorf("refetch calls = %d, want 1", calls)
	}

	m, _ = update(t, m, UpdateEvent{Body: "x"})
	if view := m.View(); !strings.Contains(view, "next refetch") || !strings.Contains(view, "r to refetch") {
		t.Errorf("View() missing refetch hints:\n%s", view)
	}
}

func TestModelQuit(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.Msg
	}{
		{"q key", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}},
		{"ctrl+c", tea.KeyMsg{Type: tea.KeyCtrlC}},
		{"done event", DoneEvent{}},
		{"channel closed", doneMsg{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, cmd := update(t, newTestModel(), tt.msg)
			if cmd == nil {
				t.Fatal("expected a quit command")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Errorf("expected tea.QuitMsg")
			}
		})
	}
}

func TestModelRateLimit(t *testing.T) {
	m := newTestModel()
	m, _ = update(t, m, RateLimitEvent{Limited: true, ResetAt: time.Now().Add(time.Minute)})

	if view := m.View(); !strings.Contains(view, "Rate limited") {
		t.Errorf("View() missing rate limit warning:\n%s", view)
	}
}

func TestModelWindowWidthTruncates(t *testing.T) {
	m := newTestModel()
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 20, Height: 40})
	m, _ = update(t, m, UpdateEvent{Body: strings.Repeat("x", 100)})

	if strings.Contains(m.View(), strings.Repeat("x", 50)) {
		t.Errorf("View() did not truncate to the window width")
	}
}

func TestShouldUseTUI(t *testing.T) {
	t.Setenv("CI", "true")
	if ShouldUseTUI() {
		t.Error("ShouldUseTUI() = true in CI")
	}
}
