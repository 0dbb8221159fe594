package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/spiffcs/gqlc/internal/format"
)

var (
	titleColor = color.New(color.Bold)
	keyColor   = color.New(color.FgCyan)
	errColor   = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow)
	okColor    = color.New(color.FgGreen)
)

// Table prints aligned key/value rows under an optional title, the layout
// used by the status commands.
type Table struct {
	title string
	rows  []row
}

type row struct {
	key   string
	value string
	tone  Tone
}

// Tone colours a value.
type Tone int

const (
	ToneNone Tone = iota
	ToneOK
	ToneWarn
	ToneError
)

// NewTable creates an empty table.
func NewTable(title string) *Table {
	return &Table{title: title}
}

// Add appends a row.
func (t *Table) Add(key string, value any) *Table {
	return t.AddTone(key, value, ToneNone)
}

// AddTone appends a row whose value is coloured by tone.
func (t *Table) AddTone(key string, value any, tone Tone) *Table {
	t.rows = append(t.rows, row{key: key, value: fmt.Sprint(value), tone: tone})
	return t
}

// Render writes the table to w.
func (t *Table) Render(w io.Writer) error {
	if t.title != "" {
		if _, err := titleColor.Fprintln(w, t.title); err != nil {
			return err
		}
	}

	width := 0
	for _, r := range t.rows {
		if kw := format.DisplayWidth(r.key); kw > width {
			width = kw
		}
	}

	for _, r := range t.rows {
		key := keyColor.Sprint(format.PadRight(r.key+":", width+1))
		if _, err := fmt.Fprintf(w, "  %s %s\n", key, colorize(r.value, r.tone)); err != nil {
			return err
		}
	}
	return nil
}

func colorize(s string, tone Tone) string {
	switch tone {
	case ToneOK:
		return okColor.Sprint(s)
	case ToneWarn:
		return warnColor.Sprint(s)
	case ToneError:
		return errColor.Sprint(s)
	default:
		return s
	}
}

// PrintError writes err to w in red.
func PrintError(w io.Writer, err error) {
	errColor.Fprint(w, "Error: ")
	fmt.Fprintln(w, err)
}

// PrintWarning writes msg to w in yellow.
func PrintWarning(w io.Writer, msg string) {
	warnColor.Fprintln(w, msg)
}
