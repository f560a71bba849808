// Package sample reads design-of-experiments sample tables.
//
// A table is plain text: the first line is a comma-separated header naming
// the parameter columns, every following line is either a data row of
// comma-separated numbers or a disabled row starting with a comment marker.
package sample

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrEmptyTable indicates the table has no header line.
var ErrEmptyTable = errors.New("sample table has no header")

// ParseError reports a malformed data row.
type ParseError struct {
	Line   int // 1-based line number in the file, header included
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sample table line %d: %s", e.Line, e.Reason)
}

// Row is one line of the table below the header.
type Row struct {
	// Position is the 1-based sample position. With ConsumeSkipped set it
	// equals the line's index below the header, so disabled rows leave gaps.
	// Skipped rows that do not consume a slot have Position 0.
	Position int

	// Values holds the parsed numbers in header order; nil for skipped rows.
	Values []float64

	// Skipped is true for disabled or blank lines.
	Skipped bool
}

// Table is a parsed sample table.
type Table struct {
	Header []string
	Rows   []Row
}

// Options controls parsing.
type Options struct {
	// CommentPrefix marks disabled rows. Defaults to "#".
	CommentPrefix string

	// ConsumeSkipped makes disabled rows take a position slot.
	ConsumeSkipped bool
}

// Active returns the rows that are not skipped, in table order.
func (t *Table) Active() []Row {
	var rows []Row
	for _, r := range t.Rows {
		if !r.Skipped {
			rows = append(rows, r)
		}
	}
	return rows
}

// MaxPosition returns the largest position assigned to an active row.
func (t *Table) MaxPosition() int {
	max := 0
	for _, r := range t.Rows {
		if !r.Skipped && r.Position > max {
			max = r.Position
		}
	}
	return max
}

// Lookup returns the active row at position.
func (t *Table) Lookup(position int) (Row, bool) {
	for _, r := range t.Rows {
		if !r.Skipped && r.Position == position {
			return r, true
		}
	}
	return Row{}, false
}

// Load reads and parses the table at path.
func Load(path string, opts Options) (*Table, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from campaign config
	if err != nil {
		return nil, fmt.Errorf("opening sample table: %w", err)
	}
	defer f.Close()

	t, err := Parse(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse parses a table from r.
func Parse(r io.Reader, opts Options) (*Table, error) {
	comment := opts.CommentPrefix
	if comment == "" {
		comment = "#"
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}
		return nil, ErrEmptyTable
	}

	t := &Table{Header: splitFields(scanner.Text())}
	if len(t.Header) == 0 || (len(t.Header) == 1 && t.Header[0] == "") {
		return nil, ErrEmptyTable
	}

	lineNo := 1
	index := 0 // data lines seen, skipped included
	active := 0
	for scanner.Scan() {
		lineNo++
		index++
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.HasPrefix(line, comment) || strings.TrimSpace(line) == "" {
			pos := 0
			if opts.ConsumeSkipped {
				pos = index
			}
			t.Rows = append(t.Rows, Row{Position: pos, Skipped: true})
			continue
		}

		fields := splitFields(line)
		if len(fields) != len(t.Header) {
			return nil, &ParseError{
				Line:   lineNo,
				Reason: fmt.Sprintf("got %d fields, header has %d", len(fields), len(t.Header)),
			}
		}

		values := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, &ParseError{
					Line:   lineNo,
					Reason: fmt.Sprintf("column %s: %q is not a number", t.Header[i], f),
				}
			}
			values[i] = v
		}

		active++
		pos := active
		if opts.ConsumeSkipped {
			pos = index
		}
		t.Rows = append(t.Rows, Row{Position: pos, Values: values})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading sample table: %w", err)
	}

	return t, nil
}

func splitFields(line string) []string {
	parts := strings.Split(strings.TrimRight(line, "\r"), ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
