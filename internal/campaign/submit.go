package campaign

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gekflow/gek/internal/config"
	"github.com/gekflow/gek/internal/submit"
	"github.com/gekflow/gek/internal/workspace"
)

// ErrNoWorkspace is returned when asked to submit a sample that was never
// built.
var ErrNoWorkspace = errors.New("workspace does not exist")

// SubmitOptions controls Submit.
type SubmitOptions struct {
	// Positions to submit. Empty means every built workspace without an
	// accepted submission.
	Positions []int

	LockTimeout time.Duration
	Progress    func(Outcome)
}

// Submit (re)submits already-built workspaces without rebuilding them.
func Submit(ctx context.Context, c *config.Campaign, opts SubmitOptions) ([]Outcome, error) {
	table, err := LoadSamples(c)
	if err != nil {
		return nil, err
	}

	positions := opts.Positions
	explicit := len(positions) > 0
	if !explicit {
		for _, row := range table.Active() {
			positions = append(positions, row.Position)
		}
	}

	l, err := acquire(ctx, c, "submit", opts.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer func() { _ = l.Release() }()

	s := submit.New(c)
	var outcomes []Outcome
	for _, pos := range positions {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		if _, ok := table.Lookup(pos); !ok {
			if explicit {
				return outcomes, fmt.Errorf("position %d is not an active sample", pos)
			}
			continue
		}

		dir := workspace.Path(c, pos)
		out := Outcome{Position: pos, Workspace: workspace.Name(c, pos), Path: dir}
		if _, err := os.Stat(dir); err != nil {
			if explicit {
				return outcomes, fmt.Errorf("%w: %s", ErrNoWorkspace, out.Workspace)
			}
			continue
		}
		if !explicit {
			if rec, err := submit.LoadRecord(dir); err == nil && rec.Accepted() {
				continue
			}
		}

		out.Submission, out.SubmitErr = submitOne(ctx, c, s, out)
		outcomes = append(outcomes, out)
		if opts.Progress != nil {
			opts.Progress(out)
		}
	}
	return outcomes, nil
}
