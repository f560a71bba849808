// Package cmd provides the gek command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/gekflow/gek/internal/config"
	"github.com/gekflow/gek/internal/style"
	"github.com/gekflow/gek/internal/ui"
	"github.com/gekflow/gek/internal/workspace"
	"github.com/spf13/cobra"
)

// Command groups shown in help output.
const (
	GroupCampaign = "campaign"
	GroupAnalysis = "analysis"
	GroupDiag     = "diag"
)

// campaignDir overrides campaign discovery from the working directory.
var campaignDir string

var rootCmd = &cobra.Command{
	Use:   "gek",
	Short: "Run design-of-experiments campaigns for an adjoint CFD solver",
	Long: `gek turns a table of sampled turbulence-model parameters into one solver
workspace per sample, submits each to the batch scheduler, and, once the
runs finish, checks convergence and collects objective values and
sensitivities into the reports the surrogate model is trained on.

A campaign is the directory holding campaign.toml. Commands find it by
walking up from the working directory, from --campaign, or from
GEK_CAMPAIGN_ROOT.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.InitTheme("")
		ui.ApplyThemeMode()
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupCampaign, Title: "Campaign:"},
		&cobra.Group{ID: GroupAnalysis, Title: "Analysis:"},
		&cobra.Group{ID: GroupDiag, Title: "Diagnostics:"},
	)
	rootCmd.SetHelpCommandGroupID(GroupDiag)
	rootCmd.SetCompletionCommandGroupID(GroupDiag)

	rootCmd.PersistentFlags().StringVarP(&campaignDir, "campaign", "C", "", "Campaign directory (default: search upward from the working directory)")
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	if code, ok := IsSilentExit(err); ok {
		return code
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", style.ErrorPrefix, err)
	return 1
}

// loadCampaign resolves and loads the campaign the command operates on.
func loadCampaign() (*config.Campaign, error) {
	c, err := workspace.LoadCampaign(campaignDir)
	if err != nil {
		return nil, err
	}
	return c, nil
}
