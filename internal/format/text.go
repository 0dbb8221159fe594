// Package format provides shared text formatting utilities for terminal output.
package format

import (
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
)

// ansiRegex matches ANSI escape sequences
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// StripAnsi removes ANSI escape sequences from a string.
func StripAnsi(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// DisplayWidth returns the visible width of a string in terminal columns,
// ignoring ANSI escape sequences.
func DisplayWidth(s string) int {
	return runewidth.StringWidth(StripAnsi(s))
}

// TruncateToWidth shortens a plain string to at most maxWidth columns,
// ending it with "..." when cut. Tabs count as a single column.
func TruncateToWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// PadRight pads a string with spaces to reach the target visible width.
func PadRight(s string, targetWidth int) string {
	w := DisplayWidth(s)
	if w >= targetWidth {
		return s
	}
	return s + strings.Repeat(" ", targetWidth-w)
}

// Clip splits body into lines, keeps at most maxLines of them and cuts each
// to width columns. A width of zero leaves lines uncut. The second result
// is the number of lines dropped.
func Clip(body string, maxLines, width int) ([]string, int) {
	body = strings.TrimRight(body, "\n")
	if body == "" {
		return nil, 0
	}

	lines := strings.Split(body, "\n")
	hidden := 0
	if maxLines > 0 && len(lines) > maxLines {
		hidden = len(lines) - maxLines
		lines = lines[:maxLines]
	}

	if width > 0 {
		for i, line := range lines {
			lines[i] = TruncateToWidth(strings.ReplaceAll(line, "\t", "  "), width)
		}
	}
	return lines, hidden
}
