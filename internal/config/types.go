// Package config provides campaign configuration for gek.
package config

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound       = errors.New("config file not found")
	ErrInvalidType    = errors.New("invalid config type")
	ErrInvalidVersion = errors.New("unsupported config version")
	ErrMissingField   = errors.New("missing required field")
	ErrInvalidValue   = errors.New("invalid config value")
)

// Duration is a wrapper for time.Duration that supports TOML marshaling.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return d.Duration.String()
}

// SamplesConfig controls how the sample table is read.
type SamplesConfig struct {
	// CommentPrefix marks disabled rows in the sample table.
	CommentPrefix string `toml:"comment_prefix,omitempty"`

	// SkipConsumesPosition makes disabled rows still take a position slot,
	// leaving a gap in workspace numbering. Nil means "use the default".
	SkipConsumesPosition *bool `toml:"skip_consumes_position,omitempty"`
}

// WorkspaceConfig controls workspace and job naming.
type WorkspaceConfig struct {
	// Prefix is prepended to the padded sample position, e.g. "Sim_".
	Prefix string `toml:"prefix,omitempty"`

	// Width is the zero-padding width of the position in directory names.
	Width int `toml:"width,omitempty"`

	// JobWidth is the zero-padding width of the position in job names.
	JobWidth int `toml:"job_width,omitempty"`
}

// TemplateConfig names the substitution markers recognised in the master
// templates and the lines they are rewritten to.
type TemplateConfig struct {
	DisabledPrefix string `toml:"disabled_prefix,omitempty"`
	MeshMarker     string `toml:"mesh_marker,omitempty"`
	JobNameMarker  string `toml:"job_name_marker,omitempty"`
	JobNameLine    string `toml:"job_name_line,omitempty"`
	WorkDirMarker  string `toml:"workdir_marker,omitempty"`
	WorkDirLine    string `toml:"workdir_line,omitempty"`
}

// SchedulerConfig describes the external batch scheduler invocation.
// The rendered submission script path is appended after Args.
type SchedulerConfig struct {
	Command string   `toml:"command,omitempty"`
	Args    []string `toml:"args,omitempty"`
	Timeout Duration `toml:"timeout,omitempty"`
}

// SolverConfig names the solver output files and the text conventions
// used to read them.
type SolverConfig struct {
	LogFile           string `toml:"log_file,omitempty"`
	FlowFile          string `toml:"flow_file,omitempty"`
	HistoryFile       string `toml:"history_file,omitempty"`
	ConvergenceMarker string `toml:"convergence_marker,omitempty"`

	// IterationOffset is how many lines above a convergence marker the
	// iteration line sits.
	IterationOffset int `toml:"iteration_offset,omitempty"`

	XTag string `toml:"x_tag,omitempty"`
	YTag string `toml:"y_tag,omitempty"`

	DiagnosticMarker string `toml:"diagnostic_marker,omitempty"`
	DiagnosticBefore int    `toml:"diagnostic_before,omitempty"`
	DiagnosticAfter  int    `toml:"diagnostic_after,omitempty"`
}

// ReportsConfig names report files written to the iteration directory.
type ReportsConfig struct {
	Convergence string `toml:"convergence,omitempty"`
}

// Parameter is one design parameter: its marker in the config template,
// the column name used in the results report, and where its sensitivity
// lives in the convergence history file.
type Parameter struct {
	// Name is the config template marker, e.g. "SA_CB1".
	Name string `toml:"name"`

	// Sensitivity is the results report column, e.g. "sens_cb1".
	Sensitivity string `toml:"sensitivity,omitempty"`

	// HistoryColumn is the history header name holding the sensitivity.
	// When set and the history file has a header, it takes precedence
	// over HistoryIndex.
	HistoryColumn string `toml:"history_column,omitempty"`

	// HistoryIndex is the zero-based history column used when no header
	// name is available.
	HistoryIndex int `toml:"history_index,omitempty"`
}
