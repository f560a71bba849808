package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gekflow/gek/internal/campaign"
	"github.com/gekflow/gek/internal/campaignlog"
	"github.com/gekflow/gek/internal/config"
	"github.com/gekflow/gek/internal/submit"
	"github.com/google/go-cmp/cmp"
)

// executeCommand runs gek with args and restores the flag globals afterwards.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		campaignDir = ""
		initForce = false
		initSampleFile = ""
		initScheduler = ""
		statusJSON = false
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		for _, c := range rootCmd.Commands() {
			c.SetOut(nil)
		}
	})

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCommandsRegistered(t *testing.T) {
	want := map[string]string{
		"init":     GroupCampaign,
		"validate": GroupCampaign,
		"launch":   GroupCampaign,
		"submit":   GroupCampaign,
		"status":   GroupAnalysis,
		"converge": GroupAnalysis,
		"extract":  GroupAnalysis,
		"log":      GroupDiag,
		"version":  GroupDiag,
	}
	got := make(map[string]string)
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			got[c.Name()] = c.GroupID
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("registered commands mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePositions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []int
		wantErr bool
	}{
		{"none", nil, []int{}, false},
		{"several", []string{"7", "12", "3"}, []int{7, 12, 3}, false},
		{"duplicates dropped", []string{"4", "4"}, []int{4}, false},
		{"zero", []string{"0"}, nil, true},
		{"negative", []string{"-2"}, nil, true},
		{"not a number", []string{"Sim_0007"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePositions(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePositions(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("positions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildLogFilter(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.Local)

	f, err := buildLogFilter("submit", "M10/I03/", "90m", now)
	if err != nil {
		t.Fatalf("buildLogFilter: %v", err)
	}
	want := campaignlog.Filter{
		Type:    campaignlog.EventSubmit,
		Subject: "M10/I03/",
		Since:   now.Add(-90 * time.Minute),
	}
	if diff := cmp.Diff(want, f); diff != "" {
		t.Errorf("filter mismatch (-want +got):\n%s", diff)
	}

	if _, err := buildLogFilter("", "", "yesterday", now); err == nil {
		t.Error("expected error for invalid --since")
	}
}

func TestPrintEvent(t *testing.T) {
	var buf bytes.Buffer
	printEvent(&buf, campaignlog.Event{
		Timestamp: time.Date(2026, 3, 2, 9, 14, 5, 0, time.Local),
		Type:      campaignlog.EventSubmit,
		Subject:   "M10/I03/Sim_0007",
		Context:   "submitted (job 481516)",
	})
	got := buf.String()
	for _, want := range []string{"2026-03-02 09:14:05", "[submit]", "M10/I03/Sim_0007", "job 481516"} {
		if !strings.Contains(got, want) {
			t.Errorf("printEvent output %q missing %q", got, want)
		}
	}
}

func TestSummarizeSubmissions(t *testing.T) {
	ok := campaign.Outcome{Position: 1, Workspace: "Sim_0001", Submission: &submit.Record{JobID: "11"}}
	bad := campaign.Outcome{Position: 2, Workspace: "Sim_0002", SubmitErr: submit.ErrRejected}

	var buf bytes.Buffer
	if err := summarizeSubmissions(&buf, []campaign.Outcome{ok}); err != nil {
		t.Errorf("all accepted: error = %v, want nil", err)
	}

	buf.Reset()
	err := summarizeSubmissions(&buf, []campaign.Outcome{ok, bad})
	if code, silent := IsSilentExit(err); !silent || code != 2 {
		t.Errorf("with a rejection: error = %v, want silent exit 2", err)
	}
	if !strings.Contains(buf.String(), "1 of 2") {
		t.Errorf("summary %q should report 1 of 2", buf.String())
	}
}

func TestRunChecks(t *testing.T) {
	checks := []validateCheck{
		{"passes", func(*config.Campaign) (string, error) { return "fine", nil }},
		{"fails", func(*config.Campaign) (string, error) { return "", errors.New("broken") }},
		{"also fails", func(*config.Campaign) (string, error) { return "", errors.New("worse") }},
	}
	var buf bytes.Buffer
	if got := runChecks(&buf, &config.Campaign{}, checks); got != 2 {
		t.Errorf("runChecks failed = %d, want 2", got)
	}
	for _, want := range []string{"passes", "fine", "fails: broken", "also fails: worse"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestVersionString(t *testing.T) {
	if got := versionString("0123456789abcdef"); !strings.Contains(got, "0123456789ab)") {
		t.Errorf("versionString = %q, want short commit", got)
	}
	if got := versionString(""); !strings.HasPrefix(got, "gek version "+Version) {
		t.Errorf("versionString = %q", got)
	}
}

func TestInitThenStatus(t *testing.T) {
	dir := t.TempDir()

	if _, err := executeCommand(t, "init", "M1", "I01", "-C", dir); err != nil {
		t.Fatalf("gek init: %v", err)
	}
	c, err := config.LoadCampaign(filepath.Join(dir, config.FileName))
	if err != nil {
		t.Fatalf("LoadCampaign after init: %v", err)
	}
	if c.Surrogate != "M1" || c.Iteration != "I01" {
		t.Fatalf("campaign ids = %s/%s", c.Surrogate, c.Iteration)
	}

	if _, err := executeCommand(t, "init", "M1", "I01", "-C", dir); err == nil {
		t.Error("second init without --force should fail")
	}

	header := strings.Join(c.ParameterNames(), ",")
	table := header + "\n0.1,0.6,0.6,0.4,0.3,2,7,1,0\n#0.1,0.6,0.6,0.4,0.3,2,7,1,0\n0.2,0.6,0.6,0.4,0.3,2,7,0,1\n"
	if err := os.WriteFile(c.SamplePath(), []byte(table), 0644); err != nil {
		t.Fatalf("write samples: %v", err)
	}

	out, err := executeCommand(t, "status", "--json", "-C", dir)
	if err != nil {
		t.Fatalf("gek status: %v", err)
	}
	var st statusOutput
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}

	var names []string
	for _, ws := range st.Workspaces {
		names = append(names, ws.Workspace)
	}
	if diff := cmp.Diff([]string{"Sim_0001", "Sim_0003"}, names); diff != "" {
		t.Errorf("workspaces mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]int{"missing": 2}, st.Counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
}
