package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/gekflow/gek/internal/campaign"
	"github.com/gekflow/gek/internal/config"
	"github.com/gekflow/gek/internal/converge"
	"github.com/gekflow/gek/internal/style"
	"github.com/gekflow/gek/internal/ui"
	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: GroupAnalysis,
	Short:   "Show where every sample of the campaign stands",
	Long: `Reconcile each active sample's submission record with the solver output
in its workspace. Nothing is written.

States:
  missing    - workspace not built
  built      - built, never submitted
  rejected   - the scheduler refused the last submission
  submitted  - accepted, no solver log yet
  running    - solver log present, nothing converged
  primal     - direct solve converged
  converged  - direct and adjoint solves converged

Examples:
  gek status
  gek status --json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(statusCmd)
}

// statusOutput is the JSON form of gek status.
type statusOutput struct {
	Surrogate  string            `json:"surrogate"`
	Iteration  string            `json:"iteration"`
	Lock       string            `json:"lock"`
	Counts     map[string]int    `json:"counts"`
	Workspaces []workspaceOutput `json:"workspaces"`
}

type workspaceOutput struct {
	Position    int    `json:"position"`
	Workspace   string `json:"workspace"`
	State       string `json:"state"`
	JobID       string `json:"job_id,omitempty"`
	SubmitError string `json:"submit_error,omitempty"`
	PrimalIter  string `json:"primal_iter"`
	AdjointIter string `json:"adjoint_iter"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := loadCampaign()
	if err != nil {
		return err
	}
	st, err := campaign.Status(c)
	if err != nil {
		return err
	}

	out := buildStatusOutput(c, st)
	if statusJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	printStatus(cmd.OutOrStdout(), out)
	return nil
}

func buildStatusOutput(c *config.Campaign, st *campaign.StatusReport) statusOutput {
	out := statusOutput{
		Surrogate:  c.Surrogate,
		Iteration:  c.Iteration,
		Lock:       st.Lock,
		Counts:     make(map[string]int),
		Workspaces: make([]workspaceOutput, 0, len(st.Workspaces)),
	}
	for _, ws := range st.Workspaces {
		w := workspaceOutput{
			Position:    ws.Position,
			Workspace:   ws.Workspace,
			State:       ws.State(),
			PrimalIter:  ws.Converge.PrimalIter,
			AdjointIter: ws.Converge.AdjointIter,
		}
		if ws.Submission != nil {
			w.JobID = ws.Submission.JobID
			w.SubmitError = ws.Submission.Error
		}
		out.Counts[w.State]++
		out.Workspaces = append(out.Workspaces, w)
	}
	return out
}

func printStatus(w io.Writer, out statusOutput) {
	fmt.Fprintf(w, "%s %s/%s\n\n", style.Bold.Render("Campaign"), out.Surrogate, out.Iteration)

	if len(out.Workspaces) == 0 {
		fmt.Fprintf(w, "%s No active samples\n", style.Dim.Render("○"))
		return
	}

	t := style.NewTable(
		style.Column{Name: "POS", Width: 5, Align: style.AlignRight},
		style.Column{Name: "WORKSPACE", Width: 12},
		style.Column{Name: "STATE", Width: 10},
		style.Column{Name: "JOB", Width: 10},
		style.Column{Name: "PRIMAL", Width: 8, Align: style.AlignRight},
		style.Column{Name: "ADJOINT", Width: 8, Align: style.AlignRight},
	)
	for _, ws := range out.Workspaces {
		job := ws.JobID
		if job == "" {
			job = "-"
		}
		t.AddRow(fmt.Sprint(ws.Position), ws.Workspace, ui.RenderState(ws.State), job, ws.PrimalIter, ws.AdjointIter)
	}
	fmt.Fprint(w, t.Render())

	fmt.Fprintln(w)
	done := out.Counts[string(converge.StateConverged)]
	fmt.Fprintf(w, "Converged %s\n", style.ProgressBar(done*100/len(out.Workspaces), 20))
	fmt.Fprintf(w, "%s\n", formatCounts(out.Counts))
	fmt.Fprintf(w, "Lock: %s\n", style.Dim.Render(out.Lock))
}

// formatCounts renders state tallies in a stable order.
func formatCounts(counts map[string]int) string {
	states := make([]string, 0, len(counts))
	for s := range counts {
		states = append(states, s)
	}
	sort.Strings(states)

	line := ""
	for i, s := range states {
		if i > 0 {
			line += "  "
		}
		line += fmt.Sprintf("%s %d", ui.RenderState(s), counts[s])
	}
	return line
}
