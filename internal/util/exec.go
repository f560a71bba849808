package util

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ExecResult captures the outcome of an external command.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Output returns stdout and stderr joined, trimmed.
func (r *ExecResult) Output() string {
	out := strings.TrimSpace(r.Stdout)
	errOut := strings.TrimSpace(r.Stderr)
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}

// ExecCapture runs a command in workDir and always returns what it
// observed. A non-zero exit is reported through ExitCode, not the error;
// the error is set only when the command could not run to completion
// (not found, killed by the context deadline, ...), with ExitCode -1.
func ExecCapture(ctx context.Context, workDir, cmd string, args ...string) (*ExecResult, error) {
	c := exec.CommandContext(ctx, cmd, args...) //nolint:gosec // G204: command comes from campaign config
	c.Dir = workDir

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	res := &ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w", cmd, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}

	res.ExitCode = -1
	return res, err
}
