package campaign

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gekflow/gek/internal/campaignlog"
	"github.com/gekflow/gek/internal/config"
	"github.com/gekflow/gek/internal/converge"
	"github.com/gekflow/gek/internal/extract"
	"github.com/gekflow/gek/internal/lock"
	"github.com/gekflow/gek/internal/report"
	"github.com/gekflow/gek/internal/submit"
	"github.com/gekflow/gek/internal/workspace"
	"golang.org/x/sync/errgroup"
)

// ConvergeResult is the outcome of a convergence pass.
type ConvergeResult struct {
	Records     []converge.Record // directory-name order
	Diagnostics []converge.Match
	Errors      []error // per-workspace read errors; the record is still present
	ReportPath  string
}

// Count returns how many workspaces are in state s.
func (r *ConvergeResult) Count(s converge.State) int {
	n := 0
	for _, rec := range r.Records {
		if rec.State == s {
			n++
		}
	}
	return n
}

// Converge scans every workspace of the iteration, searches the tree for
// diagnostic blocks and writes the convergence report. Workspaces that
// never ran are reported as such; nothing here fails the whole pass except
// being unable to write the report.
func Converge(ctx context.Context, c *config.Campaign, jobs int) (*ConvergeResult, error) {
	names, err := workspace.List(c)
	if err != nil {
		return nil, err
	}

	records := make([]converge.Record, len(names))
	errs := make([]error, len(names))

	g := new(errgroup.Group)
	g.SetLimit(jobsOrDefault(jobs))
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			records[i], errs[i] = converge.ScanWorkspace(c, filepath.Join(c.IterationDir(), name))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &ConvergeResult{Records: records, ReportPath: c.ConvergenceReportPath()}
	for _, err := range errs {
		if err != nil {
			result.Errors = append(result.Errors, err)
		}
	}

	result.Diagnostics, err = converge.Search(c.IterationDir(), converge.SearchOptions{
		Marker: c.Solver.DiagnosticMarker,
		Before: c.Solver.DiagnosticBefore,
		After:  c.Solver.DiagnosticAfter,
		Skip:   diagnosticSkip(c),
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	if err := report.SaveConvergence(result.ReportPath, records, result.Diagnostics); err != nil {
		return nil, err
	}

	logEvent(c, campaignlog.EventScan, "", fmt.Sprintf("%d workspaces, %d converged", len(records), result.Count(converge.StateConverged)))
	return result, nil
}

// diagnosticSkip leaves driver scripts, gek's own bookkeeping and the
// reports out of the diagnostic search.
func diagnosticSkip(c *config.Campaign) func(rel string) bool {
	reports := map[string]bool{
		filepath.Base(c.ConvergenceReportPath()):                 true,
		filepath.Base(c.ResultsReportPath()):                     true,
		filepath.Base(report.FailurePath(c.ResultsReportPath())): true,
		filepath.Base(c.LockPath()):                              true,
	}
	return func(rel string) bool {
		if strings.HasSuffix(rel, ".py") || reports[rel] {
			return true
		}
		for dir := path.Dir(rel); dir != "."; dir = path.Dir(dir) {
			if path.Base(dir) == submit.RuntimeDir {
				return true
			}
		}
		return false
	}
}

// ExtractResult is the outcome of an extraction pass.
type ExtractResult struct {
	Results     []extract.Result // sample position order
	Failures    []report.Failure
	ReportPath  string
	FailurePath string // empty when nothing failed
}

// Extract pulls the objective and gradient out of every active sample's
// workspace and writes the results report plus, when some samples failed,
// the failure manifest. A failed sample never stops the others.
func Extract(ctx context.Context, c *config.Campaign, jobs int) (*ExtractResult, error) {
	table, err := LoadSamples(c)
	if err != nil {
		return nil, err
	}
	rows := table.Active()

	results := make([]*extract.Result, len(rows))
	errs := make([]error, len(rows))

	g := new(errgroup.Group)
	g.SetLimit(jobsOrDefault(jobs))
	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i], errs[i] = extract.Sample(c, row.Position)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &ExtractResult{ReportPath: c.ResultsReportPath()}
	for i, row := range rows {
		if errs[i] != nil {
			f := report.FailureFromError(row.Position, workspace.Name(c, row.Position), errs[i])
			out.Failures = append(out.Failures, f)
			logEvent(c, campaignlog.EventExtractFailed, f.Workspace, errs[i].Error())
			continue
		}
		out.Results = append(out.Results, *results[i])
	}

	if err := report.SaveResults(out.ReportPath, c.SensitivityNames(), out.Results); err != nil {
		return nil, err
	}
	if err := report.SaveFailures(out.ReportPath, out.Failures); err != nil {
		return nil, err
	}
	if len(out.Failures) > 0 {
		out.FailurePath = report.FailurePath(out.ReportPath)
	}

	logEvent(c, campaignlog.EventExtract, "", fmt.Sprintf("%d of %d samples", len(out.Results), len(rows)))
	return out, nil
}

// WorkspaceStatus reconciles a sample's submission record with what the
// solver has produced so far.
type WorkspaceStatus struct {
	Position   int
	Workspace  string
	Built      bool
	Submission *submit.Record
	Converge   converge.Record
}

// State returns a one-word summary: missing, built, rejected, submitted,
// or the convergence state once the solver has written a log.
func (s WorkspaceStatus) State() string {
	switch {
	case !s.Built:
		return "missing"
	case s.Converge.State != converge.StateNotRun:
		return string(s.Converge.State)
	case s.Submission == nil:
		return "built"
	case !s.Submission.Accepted():
		return "rejected"
	default:
		return "submitted"
	}
}

// StatusReport is the reconciled view of a whole campaign.
type StatusReport struct {
	Workspaces []WorkspaceStatus // sample position order
	Lock       string
}

// Status reconciles every active sample without writing anything.
func Status(c *config.Campaign) (*StatusReport, error) {
	table, err := LoadSamples(c)
	if err != nil {
		return nil, err
	}

	st := &StatusReport{Lock: lock.New(c.LockPath()).Status()}
	for _, row := range table.Active() {
		dir := workspace.Path(c, row.Position)
		ws := WorkspaceStatus{
			Position:  row.Position,
			Workspace: filepath.Base(dir),
			Converge:  converge.NewRecord(filepath.Base(dir)),
		}
		if isDir(dir) {
			ws.Built = true
			if rec, err := submit.LoadRecord(dir); err == nil {
				ws.Submission = rec
			} else if !errors.Is(err, submit.ErrNoRecord) {
				return nil, err
			}
			if ws.Converge, err = converge.ScanWorkspace(c, dir); err != nil {
				return nil, err
			}
		}
		st.Workspaces = append(st.Workspaces, ws)
	}
	return st, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
