package tui

import "fmt"

// Task represents a single task in the TUI progress display.
type Task struct {
	ID      TaskID
	Name    string
	Status  TaskStatus
	Message string
	Count   int
	Error   error
}

// NewTask creates a new task with the given ID and name.
func NewTask(id TaskID, name string) Task {
	return Task{
		ID:     id,
		Name:   name,
		Status: StatusPending,
	}
}

// View renders the task as a string.
func (t Task) View(spinnerFrame string) string {
	icon := StatusIcon(t.Status, spinnerFrame)

	var name string
	if t.Status == StatusPending {
		name = taskDimStyle.Render(t.Name)
	} else {
		name = taskNameStyle.Render(t.Name)
	}

	line := fmt.Sprintf("  %s %s", icon, name)
	if t.Message != "" {
		line += " " + messageStyle.Render(t.Message)
	}
	if t.Count > 0 && t.Message == "" {
		line += " " + messageStyle.Render(fmt.Sprintf("(%d)", t.Count))
	}
	if t.Error != nil {
		line += " " + errorStyle.Render(t.Error.Error())
	}
	return line
}
