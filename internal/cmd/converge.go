package cmd

import (
	"fmt"
	"io"

	"github.com/gekflow/gek/internal/campaign"
	"github.com/gekflow/gek/internal/converge"
	"github.com/gekflow/gek/internal/report"
	"github.com/gekflow/gek/internal/style"
	"github.com/gekflow/gek/internal/ui"
	"github.com/spf13/cobra"
)

var (
	convergeJobs  int
	convergeQuiet bool
)

var convergeCmd = &cobra.Command{
	Use:     "converge",
	GroupID: GroupAnalysis,
	Short:   "Check solver convergence and write the convergence report",
	Long: `Scan the solver log of every workspace for the convergence marker and
write the convergence report to the iteration directory.

The first marker in a log means the direct (primal) solve converged, the
second that the adjoint converged too. Workspaces without a log are listed
as not run. Lines matching the diagnostic marker anywhere under the
iteration directory are appended to the report with their context.

Examples:
  gek converge
  gek converge --jobs 32
  gek converge -q             # Only print the summary`,
	Args: cobra.NoArgs,
	RunE: runConverge,
}

func init() {
	convergeCmd.Flags().IntVarP(&convergeJobs, "jobs", "j", campaign.DefaultJobs, "Workspaces scanned in parallel")
	convergeCmd.Flags().BoolVarP(&convergeQuiet, "quiet", "q", false, "Only print the summary")
	rootCmd.AddCommand(convergeCmd)
}

func runConverge(cmd *cobra.Command, args []string) error {
	c, err := loadCampaign()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	result, err := campaign.Converge(ctx, c, convergeJobs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !convergeQuiet {
		printConvergence(out, result.Records)
	}
	for _, e := range result.Errors {
		style.PrintWarning("%v", e)
	}

	fmt.Fprintf(out, "%s %d workspace(s): %d converged, %d primal only, %d running, %d not run\n",
		style.SuccessPrefix, len(result.Records),
		result.Count(converge.StateConverged), result.Count(converge.StatePrimal),
		result.Count(converge.StateRunning), result.Count(converge.StateNotRun))
	if n := len(result.Diagnostics); n > 0 {
		fmt.Fprintf(out, "%s %s\n", style.WarningPrefix, ui.RenderWarn(fmt.Sprintf("%d diagnostic block(s) found", n)))
	}
	fmt.Fprintf(out, "Report: %s\n", result.ReportPath)
	return nil
}

func printConvergence(w io.Writer, records []converge.Record) {
	if len(records) == 0 {
		fmt.Fprintf(w, "%s No workspaces yet\n", style.Dim.Render("○"))
		return
	}
	t := style.NewTable(
		style.Column{Name: "WORKSPACE", Width: 12},
		style.Column{Name: "DIRECT", Width: 6},
		style.Column{Name: "ITER", Width: 8, Align: style.AlignRight},
		style.Column{Name: "ADJOINT", Width: 7},
		style.Column{Name: "ITER", Width: 8, Align: style.AlignRight},
		style.Column{Name: "STATE", Width: 10},
	)
	for _, r := range records {
		t.AddRow(r.Workspace, report.FormatFlag(r.Primal), r.PrimalIter,
			report.FormatFlag(r.Adjoint), r.AdjointIter, ui.RenderState(string(r.State)))
	}
	fmt.Fprint(w, t.Render())
	fmt.Fprintln(w)
}
