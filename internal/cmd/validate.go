package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/gekflow/gek/internal/campaign"
	"github.com/gekflow/gek/internal/config"
	"github.com/gekflow/gek/internal/render"
	"github.com/gekflow/gek/internal/style"
	"github.com/gekflow/gek/internal/workspace"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:     "validate",
	GroupID: GroupCampaign,
	Short:   "Check the campaign inputs before launching",
	Long: `Check everything a launch depends on without touching any workspace:

  - the sample table parses and has one column per parameter
  - the workspace name width holds the largest sample position
  - every config template marker is on exactly one enabled line
  - the submission script markers are unambiguous
  - the solver driver exists
  - the scheduler command is on PATH

Exits 1 if any check fails.

Examples:
  gek validate
  gek validate -C ~/runs/turb`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// validateCheck is one named precondition of a launch.
type validateCheck struct {
	name string
	run  func(c *config.Campaign) (string, error)
}

var validateChecks = []validateCheck{
	{"sample table", checkSamples},
	{"config template", func(c *config.Campaign) (string, error) {
		return c.ConfigTemplatePath(), render.ValidateConfigTemplate(c)
	}},
	{"submission script", func(c *config.Campaign) (string, error) {
		return c.SubmitTemplatePath(), render.ValidateSubmitTemplate(c)
	}},
	{"solver driver", checkDriver},
	{"scheduler", checkScheduler},
}

func runValidate(cmd *cobra.Command, args []string) error {
	c, err := loadCampaign()
	if err != nil {
		return err
	}
	if failed := runChecks(cmd.OutOrStdout(), c, validateChecks); failed > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s %d check(s) failed\n", style.ErrorPrefix, failed)
		return NewSilentExit(1)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s Campaign %s/%s is ready to launch\n", style.SuccessPrefix, c.Surrogate, c.Iteration)
	return nil
}

// runChecks prints one line per check and returns how many failed.
func runChecks(w io.Writer, c *config.Campaign, checks []validateCheck) int {
	failed := 0
	for _, chk := range checks {
		detail, err := chk.run(c)
		if err != nil {
			failed++
			var te *render.TemplateError
			if !errors.As(err, &te) {
				fmt.Fprintf(w, "%s %s: %v\n", style.ErrorPrefix, chk.name, err)
				continue
			}
			fmt.Fprintf(w, "%s %s %s\n", style.ErrorPrefix, chk.name, style.Dim.Render(te.Path))
			for _, p := range te.Problems {
				fmt.Fprintf(w, "    %s\n", p)
			}
			continue
		}
		if detail != "" {
			fmt.Fprintf(w, "%s %s %s\n", style.SuccessPrefix, chk.name, style.Dim.Render(detail))
		} else {
			fmt.Fprintf(w, "%s %s\n", style.SuccessPrefix, chk.name)
		}
	}
	return failed
}

func checkSamples(c *config.Campaign) (string, error) {
	table, err := campaign.LoadSamples(c)
	if err != nil {
		return "", err
	}
	if err := workspace.CheckWidth(c, table.MaxPosition()); err != nil {
		return "", err
	}
	active := len(table.Active())
	return fmt.Sprintf("%d active of %d rows", active, len(table.Rows)), nil
}

func checkDriver(c *config.Campaign) (string, error) {
	path := c.DriverPath()
	if path == "" {
		return "none configured", nil
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("driver: %w", err)
	}
	return path, nil
}

func checkScheduler(c *config.Campaign) (string, error) {
	path, err := exec.LookPath(c.Scheduler.Command)
	if err != nil {
		return "", err
	}
	return path, nil
}
