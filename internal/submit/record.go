package submit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gekflow/gek/internal/util"
)

// ErrNoRecord is returned when a workspace has never been submitted.
var ErrNoRecord = errors.New("no submission record")

// RuntimeDir is the per-workspace directory holding gek bookkeeping.
const RuntimeDir = ".runtime"

// recordFile is the submission record inside RuntimeDir.
const recordFile = "submission.json"

// Record is the persisted outcome of one scheduler call.
type Record struct {
	ID          string    `json:"id"`
	Position    int       `json:"position"`
	Workspace   string    `json:"workspace"`
	Command     []string  `json:"command"`
	SubmittedAt time.Time `json:"submitted_at"`
	ExitCode    int       `json:"exit_code"`
	JobID       string    `json:"job_id,omitempty"`
	Output      string    `json:"output,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Accepted reports whether the scheduler took the job.
func (r *Record) Accepted() bool {
	return r.Error == "" && r.ExitCode == 0
}

// RecordPath returns the record location for a workspace.
func RecordPath(workspace string) string {
	return filepath.Join(workspace, RuntimeDir, recordFile)
}

// SaveRecord writes rec into the workspace atomically.
func SaveRecord(workspace string, rec *Record) error {
	if err := util.AtomicWriteJSON(RecordPath(workspace), rec); err != nil {
		return fmt.Errorf("saving submission record: %w", err)
	}
	return nil
}

// LoadRecord reads the submission record of a workspace.
func LoadRecord(workspace string) (*Record, error) {
	data, err := os.ReadFile(RecordPath(workspace)) //nolint:gosec // G304: path built from workspace
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoRecord, filepath.Base(workspace))
		}
		return nil, fmt.Errorf("reading submission record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing submission record: %w", err)
	}
	return &rec, nil
}
