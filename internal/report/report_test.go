package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gekflow/gek/internal/converge"
	"github.com/gekflow/gek/internal/extract"
	"github.com/google/go-cmp/cmp"
)

func TestFormatFlag(t *testing.T) {
	if got := FormatFlag(true); got != "True" {
		t.Errorf("FormatFlag(true) = %q", got)
	}
	if got := FormatFlag(false); got != "False" {
		t.Errorf("FormatFlag(false) = %q", got)
	}
}

func TestWriteConvergence(t *testing.T) {
	records := []converge.Record{
		{Workspace: "Sim_0002", State: converge.StateConverged, Primal: true, PrimalIter: "118", Adjoint: true, AdjointIter: "88"},
		converge.NewRecord("Sim_0001"),
	}
	diagnostics := []converge.Match{
		{
			Path: "Sim_0002/output.dat", StartLine: 4, EndLine: 5,
			Lines: []converge.Line{
				{Number: 4, Text: "Nearest Mesh Node to X: 1.0", Match: true},
				{Number: 5, Text: "X: 1.000000", Match: false},
			},
		},
		{
			Path: "Sim_0002/output.dat", StartLine: 9, EndLine: 9,
			Lines: []converge.Line{{Number: 9, Text: "Nearest Mesh Node to Y: 2.0", Match: true}},
		},
	}

	var buf bytes.Buffer
	if err := WriteConvergence(&buf, records, diagnostics); err != nil {
		t.Fatalf("WriteConvergence: %v", err)
	}

	want := strings.Join([]string{
		"Simulation          Direct Conv     Direct Iter     Adjoint Conv    Adjoint Iter    Status",
		"Sim_0001            False           ----            False           ----            not-run",
		"Sim_0002            True            118             True            88              converged",
		"",
		"",
		"",
		"Sim_0002/output.dat:4:Nearest Mesh Node to X: 1.0",
		"Sim_0002/output.dat-5-X: 1.000000",
		"--",
		"Sim_0002/output.dat:9:Nearest Mesh Node to Y: 2.0",
		"",
	}, "\n")
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("convergence report mismatch (-want +got):\n%s", diff)
	}
	if records[0].Workspace != "Sim_0002" {
		t.Error("WriteConvergence reordered the caller's slice")
	}
}

func TestWriteResults(t *testing.T) {
	results := []extract.Result{
		{Position: 5, Workspace: "Sim_0005", X: 2, Y: 0, Objective: -0.5, Gradient: []float64{1e-7, 0}},
		{Position: 1, Workspace: "Sim_0001", X: 1.23456, Y: -2, Objective: 0.2591868928, Gradient: []float64{13, 14}},
	}

	var buf bytes.Buffer
	if err := WriteResults(&buf, []string{"sens_a", "sens_b"}, results); err != nil {
		t.Fatalf("WriteResults: %v", err)
	}

	want := `VARIABLES = "X", "Y", "obj_func", "sens_a", "sens_b"` + "\n" +
		"1.234560E+00      -2.000000E+00     2.591869E-01      1.300000E+01      1.400000E+01      \n" +
		"2.000000E+00      0.000000E+00      -5.000000E-01     1.000000E-07      0.000000E+00      \n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("results report mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteResults_GradientLengthMismatch(t *testing.T) {
	results := []extract.Result{{Position: 1, Workspace: "Sim_0001", Gradient: []float64{1}}}
	if err := WriteResults(&bytes.Buffer{}, []string{"a", "b"}, results); err == nil {
		t.Error("expected error for short gradient")
	}
}

// Directory-name order and sample-position order disagree once positions
// outgrow the padding width; each report must keep its own order.
func TestReportOrdersDiffer(t *testing.T) {
	records := []converge.Record{converge.NewRecord("Sim_9"), converge.NewRecord("Sim_10")}
	results := []extract.Result{
		{Position: 10, Workspace: "Sim_10", Gradient: []float64{}},
		{Position: 9, Workspace: "Sim_9", Gradient: []float64{}},
	}

	var conv bytes.Buffer
	if err := WriteConvergence(&conv, records, nil); err != nil {
		t.Fatal(err)
	}
	convLines := strings.Split(conv.String(), "\n")
	if !strings.HasPrefix(convLines[1], "Sim_10") || !strings.HasPrefix(convLines[2], "Sim_9") {
		t.Errorf("convergence report not in name order:\n%s", conv.String())
	}

	results[0].X, results[1].X = 10, 9
	var res bytes.Buffer
	if err := WriteResults(&res, nil, results); err != nil {
		t.Fatal(err)
	}
	resLines := strings.Split(res.String(), "\n")
	if !strings.HasPrefix(resLines[1], "9.000000E+00") || !strings.HasPrefix(resLines[2], "1.000000E+01") {
		t.Errorf("results report not in position order:\n%s", res.String())
	}
}

func TestSaveFailures(t *testing.T) {
	dir := t.TempDir()
	resultsPath := filepath.Join(dir, "results_M10_I03.dat")

	failures := []Failure{
		FailureFromError(7, "Sim_0007", &extract.SampleError{Position: 7, Workspace: "Sim_0007", Artifact: "flow.dat", Err: extract.ErrNoFlowMatch}),
		FailureFromError(2, "Sim_0002", errors.New("boom")),
	}
	if err := SaveFailures(resultsPath, failures); err != nil {
		t.Fatalf("SaveFailures: %v", err)
	}

	data, err := os.ReadFile(FailurePath(resultsPath))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	want := "Position  Simulation          Artifact                Reason\n" +
		"2         Sim_0002            -                       boom\n" +
		"7         Sim_0007            flow.dat                no flow row matches coordinates\n"
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}

	if err := SaveFailures(resultsPath, nil); err != nil {
		t.Fatalf("SaveFailures(nil): %v", err)
	}
	if _, err := os.Stat(FailurePath(resultsPath)); !os.IsNotExist(err) {
		t.Errorf("stale manifest not removed: %v", err)
	}
}
