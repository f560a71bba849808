package cmd

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/gekflow/gek/internal/campaignlog"
	"github.com/gekflow/gek/internal/style"
	"github.com/spf13/cobra"
)

// Log command flags
var (
	logTail    int
	logType    string
	logSubject string
	logSince   string
	logFollow  bool
)

var logCmd = &cobra.Command{
	Use:     "log",
	GroupID: GroupDiag,
	Short:   "View the campaign event log",
	Long: `View the event log of the campaign.

Events logged include:
  launch         - a launch started over the sample table
  workspace      - a workspace was built
  submit         - the scheduler accepted a job
  submit_failed  - the scheduler rejected a job or could not be run
  scan           - a convergence pass finished
  extract        - an extraction pass finished
  extract_failed - one sample could not be extracted

Examples:
  gek log                        # Show last 20 events
  gek log -n 50                  # Show last 50 events
  gek log --type submit_failed   # Show only rejected submissions
  gek log --subject M10/I03/Sim_0007
  gek log --since 1h             # Show events from the last hour
  gek log -f                     # Follow log (like tail -f)`,
	Args: cobra.NoArgs,
	RunE: runLog,
}

func init() {
	logCmd.Flags().IntVarP(&logTail, "tail", "n", 20, "Number of events to show")
	logCmd.Flags().StringVarP(&logType, "type", "t", "", "Filter by event type (launch,workspace,submit,submit_failed,scan,extract,extract_failed)")
	logCmd.Flags().StringVarP(&logSubject, "subject", "s", "", "Filter by subject prefix (e.g., M10/I03/Sim_0007)")
	logCmd.Flags().StringVar(&logSince, "since", "", "Show events since duration (e.g., 1h, 30m, 24h)")
	logCmd.Flags().BoolVarP(&logFollow, "follow", "f", false, "Follow log output (like tail -f)")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	c, err := loadCampaign()
	if err != nil {
		return err
	}

	logPath := campaignlog.LogPath(c.Root)
	if logFollow {
		return followLog(logPath)
	}

	out := cmd.OutOrStdout()
	events, err := campaignlog.ReadEvents(c.Root)
	if err != nil {
		return fmt.Errorf("reading events: %w", err)
	}
	if len(events) == 0 {
		fmt.Fprintf(out, "%s No events recorded yet\n", style.Dim.Render("○"))
		return nil
	}

	filter, err := buildLogFilter(logType, logSubject, logSince, time.Now())
	if err != nil {
		return err
	}
	events = campaignlog.FilterEvents(events, filter)

	if logTail > 0 && len(events) > logTail {
		events = events[len(events)-logTail:]
	}
	if len(events) == 0 {
		fmt.Fprintf(out, "%s No events match filter\n", style.Dim.Render("○"))
		return nil
	}

	for _, e := range events {
		printEvent(out, e)
	}
	return nil
}

// buildLogFilter turns the log flags into a filter relative to now.
func buildLogFilter(eventType, subject, since string, now time.Time) (campaignlog.Filter, error) {
	filter := campaignlog.Filter{
		Type:    campaignlog.EventType(eventType),
		Subject: subject,
	}
	if since != "" {
		d, err := time.ParseDuration(since)
		if err != nil {
			return filter, fmt.Errorf("invalid --since duration: %w", err)
		}
		filter.Since = now.Add(-d)
	}
	return filter, nil
}

// followLog uses tail -f to follow the log file.
func followLog(logPath string) error {
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return fmt.Errorf("creating logs directory: %w", err)
		}
		f, err := os.Create(logPath) //nolint:gosec // G304: path built from campaign root
		if err != nil {
			return fmt.Errorf("creating log file: %w", err)
		}
		_ = f.Close()
	}

	fmt.Printf("%s Following %s (Ctrl+C to stop)\n\n", style.Dim.Render("○"), logPath)

	tailCmd := exec.Command("tail", "-f", logPath)
	tailCmd.Stdout = os.Stdout
	tailCmd.Stderr = os.Stderr
	return tailCmd.Run()
}

// printEvent prints a single event with styling.
func printEvent(w io.Writer, e campaignlog.Event) {
	ts := e.Timestamp.Format("2006-01-02 15:04:05")
	fmt.Fprintf(w, "%s %s %s %s\n", style.Dim.Render(ts), eventTypeLabel(e.Type), e.Subject, e.Context)
}

// eventTypeLabel color-codes an event type.
func eventTypeLabel(t campaignlog.EventType) string {
	label := "[" + string(t) + "]"
	switch t {
	case campaignlog.EventSubmit, campaignlog.EventExtract:
		return style.Success.Render(label)
	case campaignlog.EventSubmitFailed, campaignlog.EventExtractFailed:
		return style.Error.Render(label)
	case campaignlog.EventLaunch, campaignlog.EventScan:
		return style.Bold.Render(label)
	case campaignlog.EventWorkspace:
		return style.Dim.Render(label)
	default:
		return label
	}
}
