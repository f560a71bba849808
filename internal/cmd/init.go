package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gekflow/gek/internal/config"
	"github.com/gekflow/gek/internal/style"
	"github.com/spf13/cobra"
)

var (
	initForce      bool
	initSampleFile string
	initScheduler  string
)

var initCmd = &cobra.Command{
	Use:     "init <surrogate> <iteration>",
	GroupID: GroupCampaign,
	Short:   "Create a campaign.toml for a new campaign",
	Long: `Create a campaign.toml in the campaign directory and the iteration
directory that will hold the sample table and workspaces.

The written config carries the built-in defaults; edit it to point at your
templates, scheduler and solver conventions.

Examples:
  gek init M10 I03                         # Campaign in the current directory
  gek init M10 I03 -C ~/runs/turb          # Campaign in another directory
  gek init M10 I04 --force                 # Start the next iteration
  gek init M10 I03 --scheduler qsub        # Use a different scheduler`,
	Args: cobra.ExactArgs(2),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing campaign.toml")
	initCmd.Flags().StringVar(&initSampleFile, "sample-file", "", "Sample table path relative to the campaign directory")
	initCmd.Flags().StringVar(&initScheduler, "scheduler", "", "Batch scheduler submit command (default sbatch)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root := campaignDir
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
		root = cwd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving campaign directory: %w", err)
	}

	path := filepath.Join(root, config.FileName)
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	c, err := config.Defaults()
	if err != nil {
		return err
	}
	c.Surrogate = args[0]
	c.Iteration = args[1]
	c.SampleFile = initSampleFile
	if initScheduler != "" {
		c.Scheduler.Command = initScheduler
	}
	c.Root = root

	if err := config.SaveCampaign(path, c); err != nil {
		return err
	}
	if err := os.MkdirAll(c.IterationDir(), 0755); err != nil {
		return fmt.Errorf("creating iteration directory: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Created %s\n", style.SuccessPrefix, path)
	fmt.Fprintf(out, "%s Iteration directory %s\n", style.SuccessPrefix, c.IterationDir())

	for _, p := range []string{c.ConfigTemplatePath(), c.SubmitTemplatePath(), c.DriverPath(), c.SamplePath()} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			fmt.Fprintf(out, "%s %s does not exist yet\n", style.WarningPrefix, p)
		}
	}

	fmt.Fprintf(out, "\n%s Add the sample table, then run 'gek validate'\n", style.ArrowPrefix)
	return nil
}
