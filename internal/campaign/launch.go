package campaign

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gekflow/gek/internal/campaignlog"
	"github.com/gekflow/gek/internal/config"
	"github.com/gekflow/gek/internal/lock"
	"github.com/gekflow/gek/internal/render"
	"github.com/gekflow/gek/internal/sample"
	"github.com/gekflow/gek/internal/submit"
	"github.com/gekflow/gek/internal/util"
	"github.com/gekflow/gek/internal/workspace"
)

// DefaultLockTimeout is how long a launch waits for a concurrent one.
const DefaultLockTimeout = 5 * time.Second

// LaunchOptions controls Launch.
type LaunchOptions struct {
	// NoSubmit builds the workspaces without calling the scheduler.
	NoSubmit bool

	// SkipValidate skips the template marker check.
	SkipValidate bool

	// LockTimeout bounds the wait for the campaign lock.
	LockTimeout time.Duration

	// Progress, when set, is called after each workspace is handled.
	Progress func(Outcome)
}

// Outcome is what happened to one sample's workspace.
type Outcome struct {
	Position  int
	Workspace string // directory name
	Path      string

	// Submission is nil when submission was not attempted.
	Submission *submit.Record
	SubmitErr  error
}

// LaunchResult summarises a launch.
type LaunchResult struct {
	Samples  int // active rows in the table
	Outcomes []Outcome
}

// Submitted returns how many jobs the scheduler accepted.
func (r *LaunchResult) Submitted() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Submission != nil && o.SubmitErr == nil {
			n++
		}
	}
	return n
}

// Failed returns the outcomes whose submission failed.
func (r *LaunchResult) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.SubmitErr != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Launch builds one workspace per active sample, in sample order, and
// submits each to the scheduler. Existing workspaces are recreated from
// scratch. A rejected submission is recorded and the batch continues; a
// failure to build a workspace stops the launch.
func Launch(ctx context.Context, c *config.Campaign, opts LaunchOptions) (*LaunchResult, error) {
	table, err := LoadSamples(c)
	if err != nil {
		return nil, err
	}
	if err := workspace.CheckWidth(c, table.MaxPosition()); err != nil {
		return nil, err
	}
	if !opts.SkipValidate {
		if err := render.ValidateTemplates(c); err != nil {
			return nil, err
		}
	}

	l, err := acquire(ctx, c, "launch", opts.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer func() { _ = l.Release() }()

	rows := table.Active()
	logEvent(c, campaignlog.EventLaunch, "", fmt.Sprintf("%d samples", len(rows)))

	var submitter *submit.Submitter
	if !opts.NoSubmit {
		submitter = submit.New(c)
	}

	result := &LaunchResult{Samples: len(rows)}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		out, err := Build(c, row)
		if err != nil {
			return result, err
		}
		if submitter != nil {
			out.Submission, out.SubmitErr = submitOne(ctx, c, submitter, out)
		}

		result.Outcomes = append(result.Outcomes, out)
		if opts.Progress != nil {
			opts.Progress(out)
		}
	}
	return result, nil
}

// Build recreates the workspace of one sample: rendered solver config,
// rendered submission script and a copy of the solver driver.
func Build(c *config.Campaign, row sample.Row) (Outcome, error) {
	dir := workspace.Path(c, row.Position)
	out := Outcome{Position: row.Position, Workspace: filepath.Base(dir), Path: dir}

	fail := func(err error) (Outcome, error) {
		return out, fmt.Errorf("building %s (sample %d): %w", out.Workspace, row.Position, err)
	}

	if err := workspace.Prepare(dir); err != nil {
		return fail(err)
	}

	meshPrefix, err := render.MeshPrefix(dir, c.Root)
	if err != nil {
		return fail(err)
	}
	configFn, err := render.Config(c, render.ConfigData{Values: row.Values, MeshPrefix: meshPrefix})
	if err != nil {
		return fail(err)
	}
	cfgSrc := c.ConfigTemplatePath()
	if err := render.File(cfgSrc, filepath.Join(dir, filepath.Base(cfgSrc)), 0644, configFn); err != nil {
		return fail(err)
	}

	submitFn := render.Submit(c, render.SubmitData{
		JobName: workspace.JobName(c, row.Position),
		WorkDir: dir,
	})
	scriptSrc := c.SubmitTemplatePath()
	if err := render.File(scriptSrc, filepath.Join(dir, filepath.Base(scriptSrc)), scriptPerm(scriptSrc), submitFn); err != nil {
		return fail(err)
	}

	if driver := c.DriverPath(); driver != "" {
		if err := util.CopyFile(driver, filepath.Join(dir, filepath.Base(driver))); err != nil {
			return fail(fmt.Errorf("copying driver: %w", err))
		}
	}

	logEvent(c, campaignlog.EventWorkspace, out.Workspace, fmt.Sprintf("sample %d", row.Position))
	return out, nil
}

// scriptPerm keeps the master script's mode so an executable template
// stays executable.
func scriptPerm(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0755
}

func submitOne(ctx context.Context, c *config.Campaign, s *submit.Submitter, out Outcome) (*submit.Record, error) {
	script := filepath.Base(c.SubmitTemplatePath())
	rec, err := s.Submit(ctx, out.Position, out.Path, script)
	if err != nil {
		logEvent(c, campaignlog.EventSubmitFailed, out.Workspace, err.Error())
		return rec, err
	}
	detail := "no job id"
	if rec.JobID != "" {
		detail = "job " + rec.JobID
	}
	logEvent(c, campaignlog.EventSubmit, out.Workspace, detail)
	return rec, nil
}

func acquire(ctx context.Context, c *config.Campaign, operation string, timeout time.Duration) (*lock.Lock, error) {
	if timeout == 0 {
		timeout = DefaultLockTimeout
	}
	l := lock.New(c.LockPath())
	if err := l.Acquire(ctx, operation, timeout); err != nil {
		return nil, err
	}
	return l, nil
}
