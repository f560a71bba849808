// Package campaignlog keeps the append-only event log of a campaign:
// launches, workspace creation, submissions and analysis passes.
package campaignlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// EventType represents the kind of campaign event.
type EventType string

const (
	// EventLaunch marks the start of a launch over a sample table.
	EventLaunch EventType = "launch"
	// EventWorkspace indicates a workspace was (re)created and rendered.
	EventWorkspace EventType = "workspace"
	// EventSubmit indicates the scheduler accepted a job.
	EventSubmit EventType = "submit"
	// EventSubmitFailed indicates the scheduler rejected or could not run a job.
	EventSubmitFailed EventType = "submit_failed"
	// EventScan records a convergence scan pass.
	EventScan EventType = "scan"
	// EventExtract records a result extraction pass.
	EventExtract EventType = "extract"
	// EventExtractFailed records one sample whose extraction failed.
	EventExtractFailed EventType = "extract_failed"
)

const timeLayout = "2006-01-02 15:04:05"

// Event is one line of the campaign log.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Subject   string    `json:"subject"`           // e.g. "M10/I03/Sim_0007" or "M10/I03"
	Context   string    `json:"context,omitempty"` // job id, counts, error text
}

// Logger appends events to <root>/logs/campaign.log.
type Logger struct {
	logPath string
	mu      sync.Mutex
}

// LogPath returns the log file for a campaign root.
func LogPath(root string) string {
	return filepath.Join(root, "logs", "campaign.log")
}

// NewLogger creates a Logger for the given campaign root.
func NewLogger(root string) *Logger {
	return &Logger{logPath: LogPath(root)}
}

// LogEvent appends a single event.
func (l *Logger) LogEvent(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.logPath), 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(l.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLogLine(event) + "\n"); err != nil {
		return fmt.Errorf("writing log line: %w", err)
	}
	return nil
}

// Log is a convenience method that stamps and appends an event.
func (l *Logger) Log(eventType EventType, subject, context string) error {
	return l.LogEvent(Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Subject:   subject,
		Context:   context,
	})
}

// formatLogLine formats an event as a human-readable log line.
// Format: 2026-03-02 09:14:05 [submit] M10/I03/Sim_0007 job 481516
func formatLogLine(e Event) string {
	var detail string
	switch e.Type {
	case EventLaunch:
		detail = "launched"
	case EventWorkspace:
		detail = "workspace ready"
	case EventSubmit:
		detail = "submitted"
	case EventSubmitFailed:
		detail = "submission failed"
	case EventScan:
		detail = "scanned"
	case EventExtract:
		detail = "extracted"
	case EventExtractFailed:
		detail = "extraction failed"
	default:
		detail = string(e.Type)
	}
	if e.Context != "" {
		detail += fmt.Sprintf(" (%s)", oneLine(e.Context))
	}

	return fmt.Sprintf("%s [%s] %s %s", e.Timestamp.Format(timeLayout), e.Type, e.Subject, detail)
}

// oneLine keeps multi-line scheduler output on a single log line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ReadEvents reads all events of a campaign.
func ReadEvents(root string) ([]Event, error) {
	content, err := os.ReadFile(LogPath(root)) //nolint:gosec // G304: path built from campaign root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading log file: %w", err)
	}
	return ParseLogLines(string(content)), nil
}

// ParseLogLines parses log lines back into Events. Malformed lines are skipped.
func ParseLogLines(content string) []Event {
	var events []Event
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if event, err := parseLogLine(line); err == nil {
			events = append(events, event)
		}
	}
	return events
}

// parseLogLine is the inverse of formatLogLine for the timestamp, type and
// subject; the detail text is kept as Context verbatim.
func parseLogLine(line string) (Event, error) {
	var event Event

	if len(line) < len(timeLayout)+1 {
		return event, fmt.Errorf("line too short")
	}
	ts, err := time.ParseInLocation(timeLayout, line[:len(timeLayout)], time.Local)
	if err != nil {
		return event, fmt.Errorf("parsing timestamp: %w", err)
	}
	event.Timestamp = ts

	rest := line[len(timeLayout)+1:]
	if !strings.HasPrefix(rest, "[") {
		return event, fmt.Errorf("missing event type")
	}
	closeIdx := strings.IndexByte(rest, ']')
	if closeIdx < 0 {
		return event, fmt.Errorf("unclosed bracket")
	}
	event.Type = EventType(rest[1:closeIdx])

	rest = strings.TrimPrefix(rest[closeIdx+1:], " ")
	if rest == "" {
		return event, fmt.Errorf("missing subject")
	}
	subject, detail, _ := strings.Cut(rest, " ")
	event.Subject = subject
	event.Context = detail

	return event, nil
}

// TailEvents returns the last n events of a campaign.
func TailEvents(root string, n int) ([]Event, error) {
	events, err := ReadEvents(root)
	if err != nil {
		return nil, err
	}
	if n <= 0 || len(events) <= n {
		return events, nil
	}
	return events[len(events)-n:], nil
}

// Filter selects events.
type Filter struct {
	Type    EventType // empty for all
	Subject string    // subject prefix, empty for all
	Since   time.Time // zero for all
}

// FilterEvents applies a filter to events.
func FilterEvents(events []Event, f Filter) []Event {
	var result []Event
	for _, e := range events {
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if f.Subject != "" && !strings.HasPrefix(e.Subject, f.Subject) {
			continue
		}
		if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
			continue
		}
		result = append(result, e)
	}
	return result
}
