// Package render produces per-sample solver config files and submission
// scripts from the campaign's master templates.
//
// Rendering is line oriented: every template line is either dropped,
// copied verbatim, or replaced by exactly one substituted line. Lines are
// never reordered.
package render

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gekflow/gek/internal/config"
	"github.com/gekflow/gek/internal/util"
)

// ErrValueCount indicates the sample does not carry one value per parameter.
var ErrValueCount = errors.New("sample value count does not match parameters")

// LineFunc maps one template line (without its newline) to its output.
// keep=false drops the line. substituted=true means out replaces the line
// and is always terminated with a newline.
type LineFunc func(line string) (out string, keep, substituted bool, err error)

// Lines streams src to dst through fn. Verbatim lines keep their original
// line ending.
func Lines(src io.Reader, dst io.Writer, fn LineFunc) error {
	r := bufio.NewReader(src)
	w := bufio.NewWriter(dst)
	lineNo := 0

	for {
		raw, readErr := r.ReadString('\n')
		if raw != "" {
			lineNo++
			text := strings.TrimSuffix(raw, "\n")

			out, keep, substituted, err := fn(text)
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			if keep {
				if substituted {
					out += "\n"
				} else {
					out = raw
				}
				if _, err := w.WriteString(out); err != nil {
					return err
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}
	return w.Flush()
}

// File renders the template at srcPath into dstPath.
func File(srcPath, dstPath string, perm os.FileMode, fn LineFunc) error {
	src, err := os.Open(srcPath) //nolint:gosec // G304: template path comes from campaign config
	if err != nil {
		return fmt.Errorf("opening template: %w", err)
	}
	defer src.Close()

	var buf bytes.Buffer
	if err := Lines(src, &buf, fn); err != nil {
		return fmt.Errorf("rendering %s: %w", filepath.Base(srcPath), err)
	}
	if err := util.AtomicWriteFile(dstPath, buf.Bytes(), perm); err != nil {
		return fmt.Errorf("writing %s: %w", dstPath, err)
	}
	return nil
}

// ConfigData holds the per-sample substitutions for the config template.
type ConfigData struct {
	// Values are the sample's parameter values in parameter order.
	Values []float64

	// MeshPrefix leads from the workspace back to the shared mesh,
	// e.g. "../../../".
	MeshPrefix string
}

// Config returns the line mapping for the solver config template.
// Disabled lines are dropped; the first marker contained in a line wins.
func Config(c *config.Campaign, data ConfigData) (LineFunc, error) {
	if len(data.Values) != len(c.Parameters) {
		return nil, fmt.Errorf("%w: got %d values for %d parameters",
			ErrValueCount, len(data.Values), len(c.Parameters))
	}
	markers := ConfigMarkers(c)
	meshIdx := len(c.Parameters)
	disabled := c.Template.DisabledPrefix

	return func(line string) (string, bool, bool, error) {
		if disabled != "" && strings.HasPrefix(line, disabled) {
			return "", false, false, nil
		}
		idx := firstMatch(line, markers)
		switch {
		case idx < 0:
			return line, true, false, nil
		case idx == meshIdx:
			mesh, err := meshFile(line)
			if err != nil {
				return "", false, false, err
			}
			return markers[idx] + "= " + data.MeshPrefix + mesh, true, true, nil
		default:
			return markers[idx] + " = " + FormatValue(data.Values[idx]), true, true, nil
		}
	}, nil
}

// SubmitData holds the per-sample substitutions for the submission script.
type SubmitData struct {
	JobName string
	WorkDir string
}

// Submit returns the line mapping for the submission script template.
func Submit(c *config.Campaign, data SubmitData) LineFunc {
	t := c.Template
	return func(line string) (string, bool, bool, error) {
		switch {
		case t.JobNameMarker != "" && strings.Contains(line, t.JobNameMarker):
			return t.JobNameLine + data.JobName, true, true, nil
		case t.WorkDirMarker != "" && strings.Contains(line, t.WorkDirMarker):
			return t.WorkDirLine + data.WorkDir, true, true, nil
		default:
			return line, true, false, nil
		}
	}
}

// ConfigMarkers returns the config template markers in match order:
// every parameter, then the mesh marker.
func ConfigMarkers(c *config.Campaign) []string {
	return append(c.ParameterNames(), c.Template.MeshMarker)
}

// SubmitMarkers returns the submission template markers in match order.
func SubmitMarkers(c *config.Campaign) []string {
	return []string{c.Template.JobNameMarker, c.Template.WorkDirMarker}
}

// MeshPrefix returns the relative path from workspaceDir back to root,
// with a trailing slash.
func MeshPrefix(workspaceDir, root string) (string, error) {
	rel, err := filepath.Rel(workspaceDir, root)
	if err != nil {
		return "", fmt.Errorf("relating workspace to campaign root: %w", err)
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel) + "/", nil
}

// FormatValue prints v the way the solver config expects: the shortest
// decimal that round-trips, always with a fractional part or exponent
// (1.0, 0.1355, 1e-05).
func FormatValue(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func firstMatch(line string, markers []string) int {
	for i, m := range markers {
		if m != "" && strings.Contains(line, m) {
			return i
		}
	}
	return -1
}

func meshFile(line string) (string, error) {
	_, rhs, ok := strings.Cut(line, "=")
	if !ok {
		return "", fmt.Errorf("mesh line %q has no '='", strings.TrimSpace(line))
	}
	fields := strings.Fields(rhs)
	if len(fields) == 0 {
		return "", fmt.Errorf("mesh line %q names no file", strings.TrimSpace(line))
	}
	return fields[0], nil
}
