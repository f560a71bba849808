// Package extract reads the objective value and its gradient out of a
// finished simulation workspace.
package extract

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/gekflow/gek/internal/config"
	"github.com/gekflow/gek/internal/workspace"
)

var (
	ErrTagNotFound = errors.New("coordinate tag not found")
	ErrNoFlowMatch = errors.New("no flow row matches coordinates")
	ErrZeroDensity = errors.New("zero density")
	ErrMalformed   = errors.New("malformed row")
	ErrEmptyFile   = errors.New("no data rows")
	ErrSchema      = errors.New("history schema mismatch")
)

// Result is what a converged sample contributes to the surrogate model.
type Result struct {
	Position  int       `json:"position"`
	Workspace string    `json:"workspace"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Objective float64   `json:"objective"`
	Gradient  []float64 `json:"gradient"` // parameter order
}

// SampleError reports why one sample could not be extracted.
type SampleError struct {
	Position  int
	Workspace string
	Artifact  string // the solver file that was missing or unusable
	Err       error
}

func (e *SampleError) Error() string {
	return fmt.Sprintf("%s (position %d): %s: %v", e.Workspace, e.Position, e.Artifact, e.Err)
}

func (e *SampleError) Unwrap() error {
	return e.Err
}

// Objective is the velocity objective: flow angle scaled by speed.
func Objective(vx, vy float64) float64 {
	return math.Atan2(vy, vx) * math.Hypot(vx, vy)
}

// Sample extracts the result of the workspace at position.
// Every failure is a *SampleError; nothing is defaulted.
func Sample(c *config.Campaign, position int) (*Result, error) {
	dir := workspace.Path(c, position)
	res := &Result{Position: position, Workspace: filepath.Base(dir)}

	fail := func(artifact string, err error) (*Result, error) {
		return nil, &SampleError{Position: position, Workspace: res.Workspace, Artifact: artifact, Err: err}
	}

	err := withFile(dir, c.Solver.LogFile, func(f *os.File) (err error) {
		res.X, res.Y, err = ReadCoordinates(f, c.Solver.XTag, c.Solver.YTag)
		return err
	})
	if err != nil {
		return fail(c.Solver.LogFile, err)
	}

	var vx, vy float64
	err = withFile(dir, c.Solver.FlowFile, func(f *os.File) (err error) {
		vx, vy, err = ReadVelocity(f, res.X, res.Y)
		return err
	})
	if err != nil {
		return fail(c.Solver.FlowFile, err)
	}
	res.Objective = Objective(vx, vy)

	err = withFile(dir, c.Solver.HistoryFile, func(f *os.File) (err error) {
		res.Gradient, err = ReadGradient(f, c.Parameters)
		return err
	})
	if err != nil {
		return fail(c.Solver.HistoryFile, err)
	}

	return res, nil
}

func withFile(dir, name string, fn func(*os.File) error) error {
	f, err := os.Open(filepath.Join(dir, name)) //nolint:gosec // G304: path built from workspace
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}
