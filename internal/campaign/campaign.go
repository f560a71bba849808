// Package campaign runs the campaign pipelines: building and submitting
// one workspace per sample, and the analysis passes over finished runs.
package campaign

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gekflow/gek/internal/campaignlog"
	"github.com/gekflow/gek/internal/config"
	"github.com/gekflow/gek/internal/sample"
)

// ErrHeaderMismatch indicates the sample table does not have one column
// per configured parameter.
var ErrHeaderMismatch = errors.New("sample table header does not match parameters")

// DefaultJobs is the analysis fan-out when none is given.
const DefaultJobs = 8

// LoadSamples reads the campaign's sample table and checks its header
// against the parameter list.
func LoadSamples(c *config.Campaign) (*sample.Table, error) {
	table, err := sample.Load(c.SamplePath(), sample.Options{
		CommentPrefix:  c.Samples.CommentPrefix,
		ConsumeSkipped: c.ConsumeSkipped(),
	})
	if err != nil {
		return nil, err
	}
	if len(table.Header) != len(c.Parameters) {
		return nil, fmt.Errorf("%w: %d columns for %d parameters (%s)",
			ErrHeaderMismatch, len(table.Header), len(c.Parameters), filepath.Base(c.SamplePath()))
	}
	return table, nil
}

// subject names a campaign or one of its workspaces in the event log.
func subject(c *config.Campaign, workspace string) string {
	s := c.Surrogate + "/" + c.Iteration
	if workspace != "" {
		s += "/" + workspace
	}
	return s
}

// logEvent records an event. The log is an audit trail; failing to append
// to it never fails the operation.
func logEvent(c *config.Campaign, t campaignlog.EventType, workspace, context string) {
	_ = campaignlog.NewLogger(c.Root).Log(t, subject(c, workspace), context)
}

func jobsOrDefault(jobs int) int {
	if jobs < 1 {
		return DefaultJobs
	}
	return jobs
}
