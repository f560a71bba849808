package extract

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gekflow/gek/internal/config"
)

func newScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return s
}

// ReadCoordinates returns the values following the last xTag and yTag lines
// of a solver log. These are the mesh node the solver evaluated the
// objective at, not the requested sample coordinates.
func ReadCoordinates(r io.Reader, xTag, yTag string) (x, y float64, err error) {
	var xs, ys string
	scanner := newScanner(r)
	for scanner.Scan() {
		line := strings.TrimLeft(scanner.Text(), " \t")
		switch {
		case strings.HasPrefix(line, xTag):
			xs = firstField(line[len(xTag):])
		case strings.HasPrefix(line, yTag):
			ys = firstField(line[len(yTag):])
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, err
	}

	if xs == "" {
		return 0, 0, fmt.Errorf("%w: %q", ErrTagNotFound, xTag)
	}
	if ys == "" {
		return 0, 0, fmt.Errorf("%w: %q", ErrTagNotFound, yTag)
	}
	if x, err = strconv.ParseFloat(xs, 64); err != nil {
		return 0, 0, fmt.Errorf("%w: %s %q", ErrMalformed, xTag, xs)
	}
	if y, err = strconv.ParseFloat(ys, 64); err != nil {
		return 0, 0, fmt.Errorf("%w: %s %q", ErrMalformed, yTag, ys)
	}
	return x, y, nil
}

func firstField(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// ReadVelocity finds the tab-separated flow dump row holding the node at
// (x, y) and returns momentum divided by density. Coordinates are matched
// as "%.6e" substrings, the precision the flow dump is written with; when
// several rows match the last one wins.
func ReadVelocity(r io.Reader, x, y float64) (vx, vy float64, err error) {
	xs := fmt.Sprintf("%.6e", x)
	ys := fmt.Sprintf("%.6e", y)

	var row string
	scanner := newScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, xs) && strings.Contains(line, ys) {
			row = line
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, err
	}
	if row == "" {
		return 0, 0, fmt.Errorf("%w: (%s, %s)", ErrNoFlowMatch, xs, ys)
	}

	fields := strings.Split(row, "\t")
	if len(fields) < 5 {
		return 0, 0, fmt.Errorf("%w: flow row has %d fields, want at least 5", ErrMalformed, len(fields))
	}
	vals, err := parseFloats(fields[2:5])
	if err != nil {
		return 0, 0, err
	}
	density := vals[0]
	if density == 0 {
		return 0, 0, fmt.Errorf("%w at (%s, %s)", ErrZeroDensity, xs, ys)
	}
	return vals[1] / density, vals[2] / density, nil
}

// ReadGradient reads the last data row of a comma-separated history file
// and returns one sensitivity per parameter, in parameter order.
//
// When a header row precedes the data, parameters naming a
// history_column are located by that name; a missing name is an
// ErrSchema. Otherwise the parameter's history_index is used.
func ReadGradient(r io.Reader, params []config.Parameter) ([]float64, error) {
	var header []string
	var last string

	scanner := newScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !isNumeric(firstCSV(line)) {
			// TITLE and ZONE lines carry no commas.
			if last == "" && strings.Contains(line, ",") {
				header = splitHeader(line)
			}
			continue
		}
		last = line
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if last == "" {
		return nil, ErrEmptyFile
	}

	fields := strings.Split(last, ",")
	grad := make([]float64, len(params))
	for i, p := range params {
		idx, err := columnIndex(p, header)
		if err != nil {
			return nil, err
		}
		if idx >= len(fields) {
			return nil, fmt.Errorf("%w: %s column %d, last row has %d fields", ErrMalformed, p.Name, idx, len(fields))
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[idx]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s column %d: %q", ErrMalformed, p.Name, idx, strings.TrimSpace(fields[idx]))
		}
		grad[i] = v
	}
	return grad, nil
}

func columnIndex(p config.Parameter, header []string) (int, error) {
	if p.HistoryColumn != "" && header != nil {
		for i, name := range header {
			if name == p.HistoryColumn {
				return i, nil
			}
		}
		return 0, fmt.Errorf("%w: column %q for %s not in history header", ErrSchema, p.HistoryColumn, p.Name)
	}
	if p.HistoryIndex <= 0 {
		return 0, fmt.Errorf("%w: %s has no history_index and the file has no header", ErrSchema, p.Name)
	}
	return p.HistoryIndex, nil
}

// splitHeader handles both plain CSV headers and Tecplot
// `VARIABLES = "a","b"` lines.
func splitHeader(line string) []string {
	if k, v, ok := strings.Cut(line, "="); ok && strings.EqualFold(strings.TrimSpace(k), "VARIABLES") {
		line = v
	}
	parts := strings.Split(line, ",")
	names := make([]string, len(parts))
	for i, p := range parts {
		names[i] = strings.Trim(strings.TrimSpace(p), `"`)
	}
	return names
}

func firstCSV(line string) string {
	first, _, _ := strings.Cut(line, ",")
	return strings.TrimSpace(first)
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func parseFloats(fields []string) ([]float64, error) {
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrMalformed, strings.TrimSpace(f))
		}
		vals[i] = v
	}
	return vals, nil
}
