package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/spiffcs/gqlc/internal/constants"
	"github.com/spiffcs/gqlc/internal/format"
)

// Model is the Bubble Tea model for the watch display: task progress, then
// the latest delivered data.
type Model struct {
	title    string
	tasks    []Task
	spinner  spinner.Model
	progress progress.Model
	events   <-chan Event
	done     bool

	refetch     func()
	poll        time.Duration
	lastRefetch time.Time

	body       string
	source     string
	updates    int
	lastUpdate time.Time
	lastErr    error

	windowWidth  int
	windowHeight int

	rateLimited    bool
	rateLimitReset time.Time

	now func() time.Time
}

// doneMsg signals that all events have been processed.
type doneMsg struct{}

// ModelOption is a functional option for configuring a Model.
type ModelOption func(*Model)

// WithTasks sets the tasks to display in the TUI.
func WithTasks(tasks []Task) ModelOption {
	return func(m *Model) {
		m.tasks = tasks
	}
}

// WithTitle names what is being watched.
func WithTitle(title string) ModelOption {
	return func(m *Model) {
		m.title = title
	}
}

// WithRefetch binds the r key to fn.
func WithRefetch(fn func()) ModelOption {
	return func(m *Model) {
		m.refetch = fn
	}
}

// WithPollInterval shows a countdown to the next automatic refetch.
func WithPollInterval(d time.Duration) ModelOption {
	return func(m *Model) {
		m.poll = d
	}
}

// WatchTasks returns the task list for gqlc watch.
func WatchTasks() []Task {
	return []Task{
		NewTask(TaskAuth, "Resolving token"),
		NewTask(TaskConnect, "Fetching"),
		NewTask(TaskReceive, "Watching for changes"),
	}
}

// SubscribeTasks returns the task list for gqlc subscribe.
func SubscribeTasks() []Task {
	return []Task{
		NewTask(TaskAuth, "Resolving token"),
		NewTask(TaskConnect, "Connecting"),
		NewTask(TaskReceive, "Receiving events"),
	}
}

// NewModel creates a new TUI model.
func NewModel(events <-chan Event, opts ...ModelOption) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	p := progress.New(
		progress.WithScaledGradient("#60a5fa", "#1e3a8a"),
		progress.WithWidth(20),
		progress.WithoutPercentage(),
	)

	m := Model{
		tasks:    WatchTasks(),
		spinner:  s,
		progress: p,
		events:   events,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(&m)
	}
	m.lastRefetch = m.now()

	return m
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitForEvent(m.events),
	)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			if m.refetch != nil && !m.done {
				m.refetch()
				m.lastRefetch = m.now()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TaskEvent:
		m = m.updateTask(msg)
		return m, waitForEvent(m.events)

	case UpdateEvent:
		m = m.applyUpdate(msg)
		return m, waitForEvent(m.events)

	case RateLimitEvent:
		m.rateLimited = msg.Limited
		m.rateLimitReset = msg.ResetAt
		return m, waitForEvent(m.events)

	case DoneEvent, doneMsg:
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

// updateTask updates a task based on a TaskEvent.
func (m Model) updateTask(e TaskEvent) Model {
	tasks := make([]Task, len(m.tasks))
	copy(tasks, m.tasks)
	for i := range tasks {
		if tasks[i].ID != e.Task {
			continue
		}
		tasks[i].Status = e.Status
		if e.Message != "" {
			tasks[i].Message = e.Message
		}
		if e.Count > 0 {
			tasks[i].Count = e.Count
		}
		if e.Error != nil {
			tasks[i].Error = e.Error
		}
		break
	}
	m.tasks = tasks
	return m
}

func (m Model) applyUpdate(e UpdateEvent) Model {
	at := e.At
	if at.IsZero() {
		at = m.now()
	}
	m.lastUpdate = at
	m.lastErr = e.Err
	if e.Err == nil {
		m.updates++
		m.body = e.Body
		m.source = e.Source
	}

	// The first delivery completes the connect step.
	m = m.updateTask(TaskEvent{Task: TaskConnect, Status: StatusComplete})
	return m.updateTask(TaskEvent{Task: TaskReceive, Status: StatusRunning, Count: m.updates})
}

// View renders the model.
func (m Model) View() string {
	var b strings.Builder

	for _, task := range m.tasks {
		b.WriteString(task.View(m.spinner.View()))
		b.WriteByte('\n')
	}

	if m.updates > 0 || m.lastErr != nil {
		b.WriteByte('\n')
		b.WriteString("  " + m.header() + "\n")

		if m.poll > 0 && !m.done {
			elapsed := m.now().Sub(m.lastRefetch)
			frac := float64(elapsed%m.poll) / float64(m.poll)
			b.WriteString(fmt.Sprintf("  %s %s\n", messageStyle.Render("next refetch"), m.progress.ViewAs(frac)))
		}

		if m.lastErr != nil {
			b.WriteString("    " + errorStyle.Render(m.lastErr.Error()) + "\n")
		}

		lines, hidden := format.Clip(m.body, m.bodyLines(), m.bodyWidth())
		for _, line := range lines {
			b.WriteString(bodyStyle.Render(line) + "\n")
		}
		if hidden > 0 {
			b.WriteString(bodyStyle.Render(messageStyle.Render(fmt.Sprintf("… %d more lines", hidden))) + "\n")
		}
	}

	if m.rateLimited {
		b.WriteString(warnStyle.Render(fmt.Sprintf("\n  Rate limited, requests refused until reset (%s)\n", format.FormatUntil(m.rateLimitReset))))
	}

	if !m.done {
		hint := "Press q to quit"
		if m.refetch != nil {
			hint = "Press r to refetch, q to quit"
		}
		b.WriteString(footerStyle.Render("  " + hint))
	}
	b.WriteByte('\n')

	return b.String()
}

func (m Model) header() string {
	title := m.title
	if title == "" {
		title = "result"
	}
	parts := []string{titleStyle.Render(title)}
	parts = append(parts, fmt.Sprintf("%d updates", m.updates))
	if !m.lastUpdate.IsZero() {
		parts = append(parts, format.FormatAge(m.now().Sub(m.lastUpdate))+" ago")
	}
	if m.source != "" {
		parts = append(parts, "from "+m.source)
	}
	return strings.Join(parts, messageStyle.Render(" · "))
}

// bodyLines fits the body under the header when the window height is known.
func (m Model) bodyLines() int {
	if m.windowHeight <= 0 {
		return constants.TUIMaxBodyLines
	}
	avail := m.windowHeight - len(m.tasks) - 8
	if avail < 1 {
		avail = 1
	}
	return min(avail, constants.TUIMaxBodyLines)
}

func (m Model) bodyWidth() int {
	if m.windowWidth <= 0 {
		return 0
	}
	return max(m.windowWidth-4, 10)
}

// waitForEvent creates a command that waits for the next event.
func waitForEvent(events <-chan Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return doneMsg{}
		}
		return event
	}
}
