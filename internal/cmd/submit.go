package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gekflow/gek/internal/campaign"
	"github.com/gekflow/gek/internal/style"
	"github.com/spf13/cobra"
)

var submitLockTimeout time.Duration

var submitCmd = &cobra.Command{
	Use:     "submit [position...]",
	GroupID: GroupCampaign,
	Short:   "Submit already-built workspaces",
	Long: `Submit workspaces that were built earlier, without rebuilding them.

With no positions, every built workspace whose last submission was not
accepted (or that was never submitted) is sent to the scheduler. With
positions, exactly those samples are submitted again, accepted or not.

Exits 2 if any submission failed.

Examples:
  gek submit                  # Retry everything not yet accepted
  gek submit 7 12             # Resubmit samples 7 and 12`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().DurationVar(&submitLockTimeout, "lock-timeout", campaign.DefaultLockTimeout, "How long to wait for a running launch to finish")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	positions, err := parsePositions(args)
	if err != nil {
		return err
	}

	c, err := loadCampaign()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	out := cmd.OutOrStdout()
	outcomes, err := campaign.Submit(ctx, c, campaign.SubmitOptions{
		Positions:   positions,
		LockTimeout: submitLockTimeout,
		Progress:    func(o campaign.Outcome) { printOutcome(out, o) },
	})
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		fmt.Fprintf(out, "%s Nothing to submit\n", style.Dim.Render("○"))
		return nil
	}

	fmt.Fprintln(out)
	return summarizeSubmissions(out, outcomes)
}

// parsePositions converts position arguments to sample positions.
func parsePositions(args []string) ([]int, error) {
	positions := make([]int, 0, len(args))
	seen := make(map[int]bool, len(args))
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid sample position %q: must be a positive integer", arg)
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		positions = append(positions, n)
	}
	return positions, nil
}
