package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed defaults/campaign.toml
var defaultCampaignTOML []byte

// FileName is the campaign config file. Its presence marks a campaign root.
const FileName = "campaign.toml"

// CurrentCampaignVersion is the current schema version for Campaign.
const CurrentCampaignVersion = 1

// Campaign is the shared, read-only context of a design-of-experiments
// campaign: which surrogate model and iteration it feeds, where the master
// templates live, and how solver output is read back.
type Campaign struct {
	Type    string `toml:"type"`
	Version int    `toml:"version"`

	// Surrogate and Iteration identify the campaign, e.g. "M10" and "I03".
	Surrogate string `toml:"surrogate"`
	Iteration string `toml:"iteration"`

	// SampleFile defaults to <surrogate>/<iteration>/samples_<surrogate>_<iteration>.dat.
	SampleFile     string `toml:"sample_file,omitempty"`
	ConfigTemplate string `toml:"config_template,omitempty"`
	SubmitTemplate string `toml:"submit_template,omitempty"`
	Driver         string `toml:"driver,omitempty"`

	Samples   SamplesConfig   `toml:"samples"`
	Workspace WorkspaceConfig `toml:"workspace"`
	Template  TemplateConfig  `toml:"template"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Solver    SolverConfig    `toml:"solver"`
	Reports   ReportsConfig   `toml:"reports"`

	Parameters []Parameter `toml:"parameter"`

	// Root is the campaign root directory (where campaign.toml lives).
	Root string `toml:"-"`
}

// Defaults returns the built-in campaign configuration.
func Defaults() (*Campaign, error) {
	var c Campaign
	if err := toml.Unmarshal(defaultCampaignTOML, &c); err != nil {
		return nil, fmt.Errorf("parsing built-in campaign defaults: %w", err)
	}
	return &c, nil
}

// LoadCampaign loads a campaign config and resolves it against the built-in
// defaults. The campaign root is the directory holding the file.
func LoadCampaign(path string) (*Campaign, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from campaign discovery
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading campaign config: %w", err)
	}

	var override Campaign
	if err := toml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parsing campaign config: %w", err)
	}

	c, err := Defaults()
	if err != nil {
		return nil, err
	}
	mergeCampaign(c, &override)

	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolving campaign root: %w", err)
	}
	c.Root = abs

	if err := validateCampaign(c); err != nil {
		return nil, err
	}
	return c, nil
}

// SaveCampaign writes a campaign config to path.
func SaveCampaign(path string, c *Campaign) error {
	if err := validateCampaign(c); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encoding campaign config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil { //nolint:gosec // G306: campaign config holds no secrets
		return fmt.Errorf("writing campaign config: %w", err)
	}
	return nil
}

// mergeCampaign merges override into base.
// Only non-zero values in override are applied. A parameter list in the
// override replaces the default list as a whole.
func mergeCampaign(base, override *Campaign) {
	if override.Type != "" {
		base.Type = override.Type
	}
	if override.Version != 0 {
		base.Version = override.Version
	}
	setString(&base.Surrogate, override.Surrogate)
	setString(&base.Iteration, override.Iteration)
	setString(&base.SampleFile, override.SampleFile)
	setString(&base.ConfigTemplate, override.ConfigTemplate)
	setString(&base.SubmitTemplate, override.SubmitTemplate)
	setString(&base.Driver, override.Driver)

	setString(&base.Samples.CommentPrefix, override.Samples.CommentPrefix)
	if override.Samples.SkipConsumesPosition != nil {
		v := *override.Samples.SkipConsumesPosition
		base.Samples.SkipConsumesPosition = &v
	}

	setString(&base.Workspace.Prefix, override.Workspace.Prefix)
	setInt(&base.Workspace.Width, override.Workspace.Width)
	setInt(&base.Workspace.JobWidth, override.Workspace.JobWidth)

	t, o := &base.Template, &override.Template
	setString(&t.DisabledPrefix, o.DisabledPrefix)
	setString(&t.MeshMarker, o.MeshMarker)
	setString(&t.JobNameMarker, o.JobNameMarker)
	setString(&t.JobNameLine, o.JobNameLine)
	setString(&t.WorkDirMarker, o.WorkDirMarker)
	setString(&t.WorkDirLine, o.WorkDirLine)

	setString(&base.Scheduler.Command, override.Scheduler.Command)
	if override.Scheduler.Args != nil {
		base.Scheduler.Args = append([]string(nil), override.Scheduler.Args...)
	}
	if override.Scheduler.Timeout.Duration != 0 {
		base.Scheduler.Timeout = override.Scheduler.Timeout
	}

	s, so := &base.Solver, &override.Solver
	setString(&s.LogFile, so.LogFile)
	setString(&s.FlowFile, so.FlowFile)
	setString(&s.HistoryFile, so.HistoryFile)
	setString(&s.ConvergenceMarker, so.ConvergenceMarker)
	setInt(&s.IterationOffset, so.IterationOffset)
	setString(&s.XTag, so.XTag)
	setString(&s.YTag, so.YTag)
	setString(&s.DiagnosticMarker, so.DiagnosticMarker)
	setInt(&s.DiagnosticBefore, so.DiagnosticBefore)
	setInt(&s.DiagnosticAfter, so.DiagnosticAfter)

	setString(&base.Reports.Convergence, override.Reports.Convergence)

	if len(override.Parameters) > 0 {
		base.Parameters = append([]Parameter(nil), override.Parameters...)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// validateCampaign validates a Campaign.
func validateCampaign(c *Campaign) error {
	if c.Type != "campaign" && c.Type != "" {
		return fmt.Errorf("%w: expected type 'campaign', got '%s'", ErrInvalidType, c.Type)
	}
	if c.Type == "" {
		c.Type = "campaign"
	}
	if c.Version > CurrentCampaignVersion {
		return fmt.Errorf("%w: got %d, max supported %d", ErrInvalidVersion, c.Version, CurrentCampaignVersion)
	}
	if c.Surrogate == "" {
		return fmt.Errorf("%w: surrogate", ErrMissingField)
	}
	if c.Iteration == "" {
		return fmt.Errorf("%w: iteration", ErrMissingField)
	}
	if strings.ContainsAny(c.Surrogate, `/\`) || strings.ContainsAny(c.Iteration, `/\`) {
		return fmt.Errorf("%w: surrogate and iteration must not contain path separators", ErrInvalidValue)
	}
	if c.ConfigTemplate == "" {
		return fmt.Errorf("%w: config_template", ErrMissingField)
	}
	if c.SubmitTemplate == "" {
		return fmt.Errorf("%w: submit_template", ErrMissingField)
	}
	if c.Scheduler.Command == "" {
		return fmt.Errorf("%w: scheduler.command", ErrMissingField)
	}
	if c.Workspace.Width < 1 {
		return fmt.Errorf("%w: workspace.width must be at least 1", ErrInvalidValue)
	}
	if c.Solver.IterationOffset < 1 {
		return fmt.Errorf("%w: solver.iteration_offset must be at least 1", ErrInvalidValue)
	}
	if len(c.Parameters) == 0 {
		return fmt.Errorf("%w: parameter", ErrMissingField)
	}

	seen := make(map[string]bool, len(c.Parameters))
	for i, p := range c.Parameters {
		if p.Name == "" {
			return fmt.Errorf("%w: parameter[%d].name", ErrMissingField, i)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate parameter %q", ErrInvalidValue, p.Name)
		}
		seen[p.Name] = true
		if p.HistoryColumn == "" && p.HistoryIndex <= 0 {
			return fmt.Errorf("%w: parameter %q needs history_column or a positive history_index", ErrInvalidValue, p.Name)
		}
	}
	return nil
}

// ConsumeSkipped reports whether disabled sample rows take a position slot.
func (c *Campaign) ConsumeSkipped() bool {
	if c.Samples.SkipConsumesPosition == nil {
		return true
	}
	return *c.Samples.SkipConsumesPosition
}

// ParameterNames returns the template markers in positional order.
func (c *Campaign) ParameterNames() []string {
	names := make([]string, len(c.Parameters))
	for i, p := range c.Parameters {
		names[i] = p.Name
	}
	return names
}

// SensitivityNames returns the results report gradient columns.
func (c *Campaign) SensitivityNames() []string {
	names := make([]string, len(c.Parameters))
	for i, p := range c.Parameters {
		if p.Sensitivity != "" {
			names[i] = p.Sensitivity
		} else {
			names[i] = "sens_" + strings.ToLower(p.Name)
		}
	}
	return names
}

// IterationDir is the directory holding every workspace of this campaign.
func (c *Campaign) IterationDir() string {
	return filepath.Join(c.Root, c.Surrogate, c.Iteration)
}

// SamplePath returns the absolute path of the sample table.
func (c *Campaign) SamplePath() string {
	if c.SampleFile == "" {
		return filepath.Join(c.IterationDir(), "samples_"+c.Surrogate+"_"+c.Iteration+".dat")
	}
	return c.resolve(c.SampleFile)
}

// ConfigTemplatePath returns the absolute path of the master config template.
func (c *Campaign) ConfigTemplatePath() string {
	return c.resolve(c.ConfigTemplate)
}

// SubmitTemplatePath returns the absolute path of the master submission script.
func (c *Campaign) SubmitTemplatePath() string {
	return c.resolve(c.SubmitTemplate)
}

// DriverPath returns the absolute path of the solver driver, or "" if none
// is configured.
func (c *Campaign) DriverPath() string {
	if c.Driver == "" {
		return ""
	}
	return c.resolve(c.Driver)
}

// ConvergenceReportPath returns where the convergence report is written.
func (c *Campaign) ConvergenceReportPath() string {
	return filepath.Join(c.IterationDir(), c.Reports.Convergence)
}

// ResultsReportPath returns where the results report is written. The name
// follows the sample file: samples_M10_I03.dat yields results_M10_I03.dat.
func (c *Campaign) ResultsReportPath() string {
	name := filepath.Base(c.SamplePath())
	if idx := strings.Index(name, "samples"); idx >= 0 {
		return filepath.Join(c.IterationDir(), "results"+name[idx+len("samples"):])
	}
	return filepath.Join(c.IterationDir(), "results_"+c.Surrogate+"_"+c.Iteration+".dat")
}

// LockPath returns the campaign lock file used while launching.
func (c *Campaign) LockPath() string {
	return filepath.Join(c.IterationDir(), ".campaign.lock")
}

func (c *Campaign) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}
