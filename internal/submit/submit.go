// Package submit hands rendered workspaces to the batch scheduler and keeps
// a record of what the scheduler said.
package submit

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gekflow/gek/internal/config"
	"github.com/gekflow/gek/internal/util"
	"github.com/google/uuid"
)

// ErrRejected is returned when the scheduler exits non-zero.
var ErrRejected = errors.New("scheduler rejected submission")

// DefaultTimeout bounds a scheduler call when the campaign sets none.
const DefaultTimeout = time.Minute

var batchJobRe = regexp.MustCompile(`Submitted batch job (\d+)`)

// Submitter runs the configured scheduler command.
type Submitter struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// New creates a Submitter from the campaign scheduler settings.
func New(c *config.Campaign) *Submitter {
	return &Submitter{
		Command: c.Scheduler.Command,
		Args:    append([]string(nil), c.Scheduler.Args...),
		Timeout: c.Scheduler.Timeout.Duration,
	}
}

// Submit runs "<command> <args...> <script>" with workspace as the working
// directory. The returned record is always populated, also on failure, and
// is persisted to the workspace before returning. The error is non-nil when
// the scheduler could not be run, timed out or exited non-zero.
func (s *Submitter) Submit(ctx context.Context, position int, workspace, script string) (*Record, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string(nil), s.Args...), script)
	rec := &Record{
		ID:          uuid.New().String(),
		Position:    position,
		Workspace:   filepath.Base(workspace),
		Command:     append([]string{s.Command}, args...),
		SubmittedAt: time.Now().UTC(),
	}

	res, runErr := util.ExecCapture(ctx, workspace, s.Command, args...)
	if res != nil {
		rec.ExitCode = res.ExitCode
		rec.Output = res.Output()
	}

	var err error
	switch {
	case runErr != nil:
		err = fmt.Errorf("running %s: %w", s.Command, runErr)
	case rec.ExitCode != 0:
		err = fmt.Errorf("%w: %s exited with status %d", ErrRejected, s.Command, rec.ExitCode)
	default:
		rec.JobID = ParseJobID(rec.Output)
	}
	if err != nil {
		rec.Error = err.Error()
	}

	if saveErr := SaveRecord(workspace, rec); saveErr != nil {
		return rec, errors.Join(err, saveErr)
	}
	return rec, err
}

// ParseJobID pulls the job id out of scheduler output. Slurm's
// "Submitted batch job N" is preferred; otherwise the last all-digit token
// is used. Returns "" when nothing looks like an id.
func ParseJobID(output string) string {
	if m := batchJobRe.FindStringSubmatch(output); m != nil {
		return m[1]
	}
	fields := strings.Fields(output)
	for i := len(fields) - 1; i >= 0; i-- {
		tok := strings.TrimRight(fields[i], ".")
		if _, err := strconv.ParseUint(tok, 10, 64); err == nil {
			return tok
		}
	}
	return ""
}
