// Package converge reads solver logs to decide how far each simulation got.
package converge

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gekflow/gek/internal/config"
)

// Placeholder is reported for an iteration that could not be determined.
const Placeholder = "----"

// State summarises a workspace's progress.
type State string

const (
	// StateNotRun means the solver never produced a log.
	StateNotRun State = "not-run"
	// StateRunning means a log exists but no solve has converged yet.
	StateRunning State = "running"
	// StatePrimal means the direct (primal) solve converged.
	StatePrimal State = "primal"
	// StateConverged means both the primal and adjoint solves converged.
	StateConverged State = "converged"
)

// Record is the convergence verdict for one workspace.
// Adjoint implies Primal.
type Record struct {
	Workspace   string `json:"workspace"`
	State       State  `json:"state"`
	Primal      bool   `json:"primal"`
	PrimalIter  string `json:"primal_iter"`
	Adjoint     bool   `json:"adjoint"`
	AdjointIter string `json:"adjoint_iter"`
}

// NewRecord returns a not-run record with placeholder iterations.
func NewRecord(workspace string) Record {
	return Record{
		Workspace:   workspace,
		State:       StateNotRun,
		PrimalIter:  Placeholder,
		AdjointIter: Placeholder,
	}
}

// ScanLog scans solver output for the convergence marker. The first
// occurrence marks the primal solve, the second the adjoint; later ones are
// ignored. The iteration is the first token of the line offset lines above
// the marker. When that line is missing or blank the flag still flips and
// the iteration stays at Placeholder.
func ScanLog(r io.Reader, marker string, offset int) (Record, error) {
	rec := NewRecord("")
	rec.State = StateRunning
	if offset < 1 {
		offset = 1
	}

	// ring holds the last offset lines; ring[n%offset] is line n.
	ring := make([]string, offset)
	found := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for n := 0; scanner.Scan(); n++ {
		line := scanner.Text()
		if found < 2 && strings.Contains(line, marker) {
			iter := Placeholder
			if n >= offset {
				if fields := strings.Fields(ring[(n-offset)%offset]); len(fields) > 0 {
					iter = fields[0]
				}
			}
			if found == 0 {
				rec.Primal, rec.PrimalIter, rec.State = true, iter, StatePrimal
			} else {
				rec.Adjoint, rec.AdjointIter, rec.State = true, iter, StateConverged
			}
			found++
		}
		ring[n%offset] = line
	}
	if err := scanner.Err(); err != nil {
		return rec, fmt.Errorf("reading solver log: %w", err)
	}
	return rec, nil
}

// ScanWorkspace scans the solver log of one workspace directory. A missing
// log is not an error: the record comes back as not-run.
func ScanWorkspace(c *config.Campaign, dir string) (Record, error) {
	name := filepath.Base(dir)

	f, err := os.Open(filepath.Join(dir, c.Solver.LogFile)) //nolint:gosec // G304: path built from workspace
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewRecord(name), nil
		}
		return NewRecord(name), fmt.Errorf("opening solver log: %w", err)
	}
	defer f.Close()

	rec, err := ScanLog(f, c.Solver.ConvergenceMarker, c.Solver.IterationOffset)
	rec.Workspace = name
	if err != nil {
		return rec, fmt.Errorf("%s: %w", name, err)
	}
	return rec, nil
}
