package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/gekflow/gek/internal/extract"
	"github.com/gekflow/gek/internal/style"
	"github.com/gekflow/gek/internal/util"
)

// Failure is one sample left out of the results report.
type Failure struct {
	Position  int
	Workspace string
	Artifact  string
	Reason    string
}

// FailureFromError builds a Failure from an extraction error. Errors that
// are not *extract.SampleError keep only the reason.
func FailureFromError(position int, workspace string, err error) Failure {
	f := Failure{Position: position, Workspace: workspace, Reason: err.Error()}
	var se *extract.SampleError
	if errors.As(err, &se) {
		f.Artifact = se.Artifact
		f.Reason = se.Err.Error()
	}
	return f
}

// FailurePath returns the manifest path belonging to a results report.
func FailurePath(resultsPath string) string {
	return resultsPath + ".failed"
}

// WriteFailures writes the failure manifest in position order.
func WriteFailures(w io.Writer, failures []Failure) error {
	sorted := append([]Failure(nil), failures...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})

	tbl := style.NewPlainTable(
		style.Column{Name: "Position", Width: 10},
		style.Column{Name: "Simulation", Width: 20},
		style.Column{Name: "Artifact", Width: 24},
		style.Column{Name: "Reason"},
	)
	for _, f := range sorted {
		artifact := f.Artifact
		if artifact == "" {
			artifact = "-"
		}
		tbl.AddRow(strconv.Itoa(f.Position), f.Workspace, artifact, f.Reason)
	}
	_, err := io.WriteString(w, tbl.Render())
	return err
}

// SaveFailures writes the manifest next to the results report. With no
// failures a stale manifest is removed instead.
func SaveFailures(resultsPath string, failures []Failure) error {
	path := FailurePath(resultsPath)
	if len(failures) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing stale failure manifest: %w", err)
		}
		return nil
	}

	var buf bytes.Buffer
	if err := WriteFailures(&buf, failures); err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing failure manifest: %w", err)
	}
	return nil
}
