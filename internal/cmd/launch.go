package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/gekflow/gek/internal/campaign"
	"github.com/gekflow/gek/internal/style"
	"github.com/spf13/cobra"
)

var (
	launchNoSubmit     bool
	launchSkipValidate bool
	launchLockTimeout  time.Duration
)

var launchCmd = &cobra.Command{
	Use:     "launch",
	GroupID: GroupCampaign,
	Short:   "Build one workspace per sample and submit it",
	Long: `Build a workspace for every active row of the sample table and submit
each to the batch scheduler, in sample order.

Each workspace gets the rendered solver config, the rendered submission
script and a copy of the solver driver. An existing workspace is removed
and rebuilt, so earlier solver output in it is lost.

A rejected submission is recorded in the workspace and the launch moves on;
retry it later with 'gek submit'. Exits 2 if any submission failed.

Examples:
  gek launch                  # Build and submit every sample
  gek launch --no-submit      # Build workspaces only
  gek launch --skip-validate  # Do not check template markers first`,
	Args: cobra.NoArgs,
	RunE: runLaunch,
}

func init() {
	launchCmd.Flags().BoolVar(&launchNoSubmit, "no-submit", false, "Build workspaces without submitting jobs")
	launchCmd.Flags().BoolVar(&launchSkipValidate, "skip-validate", false, "Skip the template marker check")
	launchCmd.Flags().DurationVar(&launchLockTimeout, "lock-timeout", campaign.DefaultLockTimeout, "How long to wait for another launch to finish")
	rootCmd.AddCommand(launchCmd)
}

func runLaunch(cmd *cobra.Command, args []string) error {
	c, err := loadCampaign()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	out := cmd.OutOrStdout()
	result, err := campaign.Launch(ctx, c, campaign.LaunchOptions{
		NoSubmit:     launchNoSubmit,
		SkipValidate: launchSkipValidate,
		LockTimeout:  launchLockTimeout,
		Progress:     func(o campaign.Outcome) { printOutcome(out, o) },
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	if launchNoSubmit {
		fmt.Fprintf(out, "%s Built %d workspace(s) in %s\n", style.SuccessPrefix, len(result.Outcomes), c.IterationDir())
		return nil
	}
	return summarizeSubmissions(out, result.Outcomes)
}

// summarizeSubmissions prints the submission tally and turns any failure
// into exit code 2.
func summarizeSubmissions(w io.Writer, outcomes []campaign.Outcome) error {
	failed := 0
	for _, o := range outcomes {
		if o.SubmitErr != nil {
			failed++
		}
	}
	if failed > 0 {
		fmt.Fprintf(w, "%s Submitted %d of %d job(s); %d failed (retry with 'gek submit')\n",
			style.WarningPrefix, len(outcomes)-failed, len(outcomes), failed)
		return NewSilentExit(2)
	}
	fmt.Fprintf(w, "%s Submitted %d job(s)\n", style.SuccessPrefix, len(outcomes))
	return nil
}

// printOutcome prints one progress line for a handled workspace.
func printOutcome(w io.Writer, o campaign.Outcome) {
	switch {
	case o.SubmitErr != nil:
		fmt.Fprintf(w, "%s %s %v\n", style.ErrorPrefix, o.Workspace, o.SubmitErr)
	case o.Submission == nil:
		fmt.Fprintf(w, "%s %s %s\n", style.SuccessPrefix, o.Workspace, style.Dim.Render("built"))
	case o.Submission.JobID != "":
		fmt.Fprintf(w, "%s %s job %s\n", style.SuccessPrefix, o.Workspace, o.Submission.JobID)
	default:
		fmt.Fprintf(w, "%s %s %s\n", style.SuccessPrefix, o.Workspace, style.Dim.Render("submitted"))
	}
}

// signalContext cancels the command on Ctrl+C so a long batch stops
// between workspaces.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt)
}
