package extract

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gekflow/gek/internal/config"
	"github.com/gekflow/gek/internal/workspace"
	"github.com/google/go-cmp/cmp"
)

const solverLog = `Objective evaluated at nearest node:
X: 9.999 (requested 10.0)
Y: 0.5
Nearest Mesh Node to requested point
X: 1.23456 m
Y: -2.0 m
`

const flowDump = "\"PointID\"\t\"x\"\t\"Density\"\t\"Momentum_x\"\t\"Momentum_y\"\n" +
	"1\t1.234560e+00\t9.0\t9.0\t9.0\n" + // y does not match
	"2\t1.234560e+00\t1.0\t0.5\t0.25\t-2.000000e+00\n" +
	"3\t0.000000e+00\t1.0\t0.0\t0.0\t0.000000e+00\n"

// historyRow returns a 24-field history row with field i = base + i.
func historyRow(base float64) string {
	fields := make([]string, 24)
	for i := range fields {
		fields[i] = fmt.Sprintf("%g", base+float64(i))
	}
	return strings.Join(fields, ", ")
}

func testCampaign(t *testing.T) *config.Campaign {
	t.Helper()
	c, err := config.Defaults()
	if err != nil {
		t.Fatalf("Defaults: %v", err)
	}
	c.Root = t.TempDir()
	c.Surrogate, c.Iteration = "M10", "I03"
	return c
}

func writeWorkspace(t *testing.T, c *config.Campaign, position int, files map[string]string) {
	t.Helper()
	dir := workspace.Path(c, position)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSample_FixedPoint(t *testing.T) {
	c := testCampaign(t)
	writeWorkspace(t, c, 3, map[string]string{
		"output.dat":          solverLog,
		"flow.dat":            flowDump,
		"history_adjoint.dat": historyRow(100) + "\n" + historyRow(0) + "\n",
	})

	res, err := Sample(c, 3)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}

	if res.Workspace != "Sim_0003" || res.Position != 3 {
		t.Errorf("identity = %d/%q", res.Position, res.Workspace)
	}
	if res.X != 1.23456 || res.Y != -2.0 {
		t.Errorf("coordinates = (%v, %v), want last tagged values", res.X, res.Y)
	}

	want := math.Atan2(0.25, 0.5) * math.Sqrt(0.5*0.5+0.25*0.25)
	if math.Abs(res.Objective-want) > 1e-15 {
		t.Errorf("Objective = %v, want %v", res.Objective, want)
	}
	if got := fmt.Sprintf("%.6E", res.Objective); got != "2.591869E-01" {
		t.Errorf("Objective formatted = %s, want 2.591869E-01", got)
	}

	wantGrad := []float64{13, 14, 15, 16, 17, 18, 19, 22, 23}
	if diff := cmp.Diff(wantGrad, res.Gradient); diff != "" {
		t.Errorf("Gradient mismatch (-want +got):\n%s", diff)
	}
}

func TestSample_Failures(t *testing.T) {
	goodHistory := historyRow(0) + "\n"

	tests := []struct {
		name         string
		files        map[string]string
		wantArtifact string
		wantErr      error
	}{
		{
			name:         "missing log",
			files:        map[string]string{"flow.dat": flowDump, "history_adjoint.dat": goodHistory},
			wantArtifact: "output.dat",
			wantErr:      os.ErrNotExist,
		},
		{
			name:         "missing Y tag",
			files:        map[string]string{"output.dat": "X: 1.0\n", "flow.dat": flowDump, "history_adjoint.dat": goodHistory},
			wantArtifact: "output.dat",
			wantErr:      ErrTagNotFound,
		},
		{
			name:         "no flow match",
			files:        map[string]string{"output.dat": "X: 5.0\nY: 5.0\n", "flow.dat": flowDump, "history_adjoint.dat": goodHistory},
			wantArtifact: "flow.dat",
			wantErr:      ErrNoFlowMatch,
		},
		{
			name:         "zero density",
			files:        map[string]string{"output.dat": "X: 0.0\nY: 0.0\n", "flow.dat": strings.Replace(flowDump, "3\t0.000000e+00\t1.0", "3\t0.000000e+00\t0.0", 1), "history_adjoint.dat": goodHistory},
			wantArtifact: "flow.dat",
			wantErr:      ErrZeroDensity,
		},
		{
			name:         "empty history",
			files:        map[string]string{"output.dat": solverLog, "flow.dat": flowDump, "history_adjoint.dat": "\n"},
			wantArtifact: "history_adjoint.dat",
			wantErr:      ErrEmptyFile,
		},
		{
			name:         "short history row",
			files:        map[string]string{"output.dat": solverLog, "flow.dat": flowDump, "history_adjoint.dat": "1, 2, 3\n"},
			wantArtifact: "history_adjoint.dat",
			wantErr:      ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testCampaign(t)
			writeWorkspace(t, c, 1, tt.files)

			res, err := Sample(c, 1)
			if res != nil {
				t.Errorf("result = %+v, want nil", res)
			}
			var se *SampleError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v, want *SampleError", err)
			}
			if se.Position != 1 || se.Workspace != "Sim_0001" || se.Artifact != tt.wantArtifact {
				t.Errorf("SampleError = %+v", se)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadCoordinates_IndentedTags(t *testing.T) {
	x, y, err := ReadCoordinates(strings.NewReader("  X: 3.5\n\tY: -1e-3\n"), "X:", "Y:")
	if err != nil {
		t.Fatalf("ReadCoordinates: %v", err)
	}
	if x != 3.5 || y != -1e-3 {
		t.Errorf("got (%v, %v)", x, y)
	}
}

func TestReadVelocity_LastMatchWins(t *testing.T) {
	dump := "1\t1.000000e+00\t1.0\t1.0\t1.0\t2.000000e+00\n" +
		"2\t1.000000e+00\t2.0\t4.0\t-2.0\t2.000000e+00\n"
	vx, vy, err := ReadVelocity(strings.NewReader(dump), 1, 2)
	if err != nil {
		t.Fatalf("ReadVelocity: %v", err)
	}
	if vx != 2 || vy != -1 {
		t.Errorf("velocity = (%v, %v), want (2, -1)", vx, vy)
	}
}

func TestReadGradient_NamedColumns(t *testing.T) {
	params := []config.Parameter{
		{Name: "A", HistoryColumn: "Sens_a", HistoryIndex: 1},
		{Name: "B", HistoryColumn: "Sens_b"},
		{Name: "C", HistoryIndex: 0 + 1},
	}
	history := `TITLE = "SU2 Simulation"
VARIABLES = "Iteration","Sens_b","Sens_a"
ZONE T= "Convergence history"
0, 9, 9
5, 0.25, -0.5
`
	got, err := ReadGradient(strings.NewReader(history), params)
	if err != nil {
		t.Fatalf("ReadGradient: %v", err)
	}
	if diff := cmp.Diff([]float64{-0.5, 0.25, 0.25}, got); diff != "" {
		t.Errorf("gradient mismatch (-want +got):\n%s", diff)
	}
}

func TestReadGradient_SchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		params  []config.Parameter
		history string
	}{
		{
			name:    "named column missing from header",
			params:  []config.Parameter{{Name: "A", HistoryColumn: "Sens_z", HistoryIndex: 1}},
			history: "Iter,Sens_a\n1, 2\n",
		},
		{
			name:    "name only and no header",
			params:  []config.Parameter{{Name: "A", HistoryColumn: "Sens_a"}},
			history: "1, 2\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadGradient(strings.NewReader(tt.history), tt.params)
			if !errors.Is(err, ErrSchema) {
				t.Errorf("error = %v, want ErrSchema", err)
			}
		})
	}
}

func TestObjective(t *testing.T) {
	tests := []struct {
		vx, vy, want float64
	}{
		{1, 0, 0},
		{0, 1, math.Pi / 2},
		{-1, 0, math.Pi},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := Objective(tt.vx, tt.vy); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Objective(%v, %v) = %v, want %v", tt.vx, tt.vy, got, tt.want)
		}
	}
}
