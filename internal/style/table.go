package style

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Column defines a table column with name and width.
// The last column is never padded.
type Column struct {
	Name  string
	Width int
	Align Alignment
	Style lipgloss.Style
}

// Alignment specifies column text alignment.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
	AlignCenter
)

// Table renders fixed-width tables, both for the terminal and for plain
// text reports written to disk.
type Table struct {
	columns     []Column
	rows        [][]string
	headerSep   bool
	indent      string
	gap         string
	truncate    bool
	headerStyle lipgloss.Style
}

// NewTable creates a new terminal table with the given columns.
func NewTable(columns ...Column) *Table {
	return &Table{
		columns:     columns,
		headerSep:   true,
		indent:      "  ",
		gap:         " ",
		truncate:    true,
		headerStyle: Bold,
	}
}

// NewPlainTable creates an unstyled table for report files: no indent,
// no separator, no gap between columns and no truncation, so each column
// starts exactly Width characters after the previous one.
func NewPlainTable(columns ...Column) *Table {
	return &Table{
		columns:     columns,
		headerStyle: lipgloss.NewStyle(),
	}
}

// AddRow adds a row of values to the table.
func (t *Table) AddRow(values ...string) *Table {
	for len(values) < len(t.columns) {
		values = append(values, "")
	}
	t.rows = append(t.rows, values)
	return t
}

// Len returns the number of rows added so far.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render returns the formatted table string.
func (t *Table) Render() string {
	if len(t.columns) == 0 {
		return ""
	}

	var sb strings.Builder

	header := make([]string, len(t.columns))
	for i, col := range t.columns {
		header[i] = col.Name
	}
	t.writeRow(&sb, header, true)

	if t.headerSep {
		totalWidth := 0
		for i, col := range t.columns {
			totalWidth += col.Width
			if i < len(t.columns)-1 {
				totalWidth += lipgloss.Width(t.gap)
			}
		}
		sb.WriteString(t.indent)
		sb.WriteString(Dim.Render(strings.Repeat("─", totalWidth)))
		sb.WriteString("\n")
	}

	for _, row := range t.rows {
		t.writeRow(&sb, row, false)
	}

	return sb.String()
}

func (t *Table) writeRow(sb *strings.Builder, values []string, header bool) {
	var line strings.Builder
	line.WriteString(t.indent)
	for i, col := range t.columns {
		val := ""
		if i < len(values) {
			val = values[i]
		}
		plainVal := stripAnsi(val)
		last := i == len(t.columns)-1

		if t.truncate && !last && col.Width > 3 && lipgloss.Width(plainVal) > col.Width {
			val = truncateRunes(plainVal, col.Width-3) + "..."
			plainVal = val
		}

		switch {
		case header:
			val = t.headerStyle.Render(val)
		case col.Style.Value() != "":
			val = col.Style.Render(val)
		}

		if last {
			line.WriteString(val)
		} else {
			line.WriteString(pad(val, plainVal, col.Width, col.Align))
			line.WriteString(t.gap)
		}
	}
	sb.WriteString(strings.TrimRight(line.String(), " "))
	sb.WriteString("\n")
}

// pad pads text to width, accounting for ANSI escape sequences.
// styledText is the text with ANSI codes, plainText is without.
func pad(styledText, plainText string, width int, align Alignment) string {
	plainLen := lipgloss.Width(plainText)
	if plainLen >= width {
		return styledText
	}

	padding := width - plainLen

	switch align {
	case AlignRight:
		return strings.Repeat(" ", padding) + styledText
	case AlignCenter:
		left := padding / 2
		right := padding - left
		return strings.Repeat(" ", left) + styledText + strings.Repeat(" ", right)
	default: // AlignLeft
		return styledText + strings.Repeat(" ", padding)
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// stripAnsi removes ANSI escape sequences from a string.
func stripAnsi(s string) string {
	var result strings.Builder
	inEscape := false
	for i := 0; i < len(s); i++ {
		if s[i] == '\x1b' {
			inEscape = true
			continue
		}
		if inEscape {
			if s[i] == 'm' {
				inEscape = false
			}
			continue
		}
		result.WriteByte(s[i])
	}
	return result.String()
}

// ProgressBar renders a simple progress bar.
func ProgressBar(percent int, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	filled := (percent * width) / 100
	empty := width - filled

	bar := strings.Repeat("█", filled) + strings.Repeat("░", empty)
	return fmt.Sprintf("[%s] %d%%", bar, percent)
}
