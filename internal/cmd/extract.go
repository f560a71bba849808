package cmd

import (
	"fmt"
	"io"

	"github.com/gekflow/gek/internal/campaign"
	"github.com/gekflow/gek/internal/report"
	"github.com/gekflow/gek/internal/style"
	"github.com/gekflow/gek/internal/ui"
	"github.com/spf13/cobra"
)

var extractJobs int

var extractCmd = &cobra.Command{
	Use:     "extract",
	GroupID: GroupAnalysis,
	Short:   "Collect objectives and sensitivities into the results report",
	Long: `Read the probe coordinates, flow solution and adjoint history of every
active sample and write one results row per sample: X, Y, the objective
computed from the probe velocity, and the sensitivity of the objective to
each parameter.

A sample whose files are missing or malformed is left out of the report
and listed in the failure manifest next to it. Exits 2 if any sample
failed; the report of the others is still written.

Examples:
  gek extract
  gek extract --jobs 32`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().IntVarP(&extractJobs, "jobs", "j", campaign.DefaultJobs, "Samples extracted in parallel")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	c, err := loadCampaign()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	result, err := campaign.Extract(ctx, c, extractJobs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Wrote %d result(s) to %s\n", style.SuccessPrefix, len(result.Results), result.ReportPath)
	if len(result.Failures) == 0 {
		return nil
	}

	printFailures(out, result.Failures)
	fmt.Fprintf(out, "%s %d sample(s) failed; see %s\n", style.WarningPrefix, len(result.Failures), result.FailurePath)
	return NewSilentExit(2)
}

func printFailures(w io.Writer, failures []report.Failure) {
	fmt.Fprintln(w)
	t := style.NewTable(
		style.Column{Name: "POS", Width: 5, Align: style.AlignRight},
		style.Column{Name: "WORKSPACE", Width: 12},
		style.Column{Name: "FILE", Width: 24},
		style.Column{Name: "REASON", Width: 40},
	)
	for _, f := range failures {
		artifact := f.Artifact
		if artifact == "" {
			artifact = "-"
		}
		t.AddRow(fmt.Sprint(f.Position), f.Workspace, artifact, ui.RenderFail(f.Reason))
	}
	fmt.Fprint(w, t.Render())
	fmt.Fprintln(w)
}
