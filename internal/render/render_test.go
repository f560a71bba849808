package render

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gekflow/gek/internal/config"
	"github.com/google/go-cmp/cmp"
)

const configTemplate = `% ------------- SA model coefficients -------------
SOLVER= RANS
SA_CB1= 0.1355
SA_SIG= 0.66
SA_CB2= 0.622
SA_KAR= 0.41
SA_CW2= 0.3
SA_CW3= 2.0
SA_CV1= 7.1
% velocity objective location
X_VEL_OBJ= 0.5
Y_VEL_OBJ= 0.05
MESH_FILENAME= mesh_bump.su2
MESH_FORMAT= SU2
CONV_CRITERIA= RESIDUAL
`

const submitTemplate = `#!/bin/bash
#SBATCH --job-name=template
#SBATCH --ntasks=40
export MYDIR=/somewhere
cd $MYDIR
python discrete_adjoint.py -f turb_adjoint_MG_Implicit.cfg -n 40
`

var sampleValues = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 7, 1.5e-05, -0.25}

func testCampaign(t *testing.T) *config.Campaign {
	t.Helper()
	c, err := config.Defaults()
	if err != nil {
		t.Fatalf("Defaults: %v", err)
	}
	c.Root = t.TempDir()
	c.Surrogate = "M10"
	c.Iteration = "I03"
	return c
}

func renderString(t *testing.T, template string, fn LineFunc) string {
	t.Helper()
	var out bytes.Buffer
	if err := Lines(strings.NewReader(template), &out, fn); err != nil {
		t.Fatalf("Lines: %v", err)
	}
	return out.String()
}

func TestConfig_SubstitutesEveryMarkerOnce(t *testing.T) {
	c := testCampaign(t)
	fn, err := Config(c, ConfigData{Values: sampleValues, MeshPrefix: "../../../"})
	if err != nil {
		t.Fatalf("Config: %v", err)
	}

	got := renderString(t, configTemplate, fn)
	want := `SOLVER= RANS
SA_CB1 = 0.1
SA_SIG = 0.2
SA_CB2 = 0.3
SA_KAR = 0.4
SA_CW2 = 0.5
SA_CW3 = 0.6
SA_CV1 = 7.0
X_VEL_OBJ = 1.5e-05
Y_VEL_OBJ = -0.25
MESH_FILENAME= ../../../mesh_bump.su2
MESH_FORMAT= SU2
CONV_CRITERIA= RESIDUAL
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rendered config mismatch (-want +got):\n%s", diff)
	}
}

func TestConfig_NonMarkerLinesKeepOrder(t *testing.T) {
	c := testCampaign(t)
	fn, err := Config(c, ConfigData{Values: sampleValues})
	if err != nil {
		t.Fatalf("Config: %v", err)
	}

	template := "A= 1\nSA_CB1= 0\nB= 2\n  % indented comment stays\nC= 3"
	got := renderString(t, template, fn)
	want := "A= 1\nSA_CB1 = 0.1\nB= 2\n  % indented comment stays\nC= 3"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConfig_FirstMarkerWins(t *testing.T) {
	c := testCampaign(t)
	fn, err := Config(c, ConfigData{Values: sampleValues})
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	// SA_CB1 is listed before SA_CB2, so a line naming both becomes SA_CB1.
	got := renderString(t, "SA_CB2= SA_CB1\n", fn)
	if got != "SA_CB1 = 0.1\n" {
		t.Errorf("got %q", got)
	}
}

func TestConfig_ValueCount(t *testing.T) {
	c := testCampaign(t)
	if _, err := Config(c, ConfigData{Values: []float64{1}}); !errors.Is(err, ErrValueCount) {
		t.Errorf("err = %v, want ErrValueCount", err)
	}
}

func TestConfig_BadMeshLine(t *testing.T) {
	c := testCampaign(t)
	fn, err := Config(c, ConfigData{Values: sampleValues})
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	var out bytes.Buffer
	if err := Lines(strings.NewReader("x\nMESH_FILENAME\n"), &out, fn); err == nil {
		t.Error("expected error for mesh line without '='")
	} else if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error %q should name line 2", err)
	}
}

func TestSubmit(t *testing.T) {
	c := testCampaign(t)
	fn := Submit(c, SubmitData{JobName: "M10I0307", WorkDir: "/scratch/camp/M10/I03/Sim_0007"})

	got := renderString(t, submitTemplate, fn)
	want := `#!/bin/bash
#SBATCH --job-name=M10I0307
#SBATCH --ntasks=40
export MYDIR=/scratch/camp/M10/I03/Sim_0007
cd $MYDIR
python discrete_adjoint.py -f turb_adjoint_MG_Implicit.cfg -n 40
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rendered script mismatch (-want +got):\n%s", diff)
	}
}

func TestLines_PreservesCRLF(t *testing.T) {
	c := testCampaign(t)
	fn := Submit(c, SubmitData{JobName: "J", WorkDir: "/w"})
	got := renderString(t, "echo a\r\n#SBATCH --job-name=x\r\n", fn)
	if got != "echo a\r\n#SBATCH --job-name=J\n" {
		t.Errorf("got %q", got)
	}
}

func TestFile_IsByteIdenticalAcrossRuns(t *testing.T) {
	c := testCampaign(t)
	src := filepath.Join(c.Root, c.ConfigTemplate)
	if err := os.WriteFile(src, []byte(configTemplate), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fn, err := Config(c, ConfigData{Values: sampleValues, MeshPrefix: "../../../"})
	if err != nil {
		t.Fatalf("Config: %v", err)
	}

	dst := filepath.Join(c.Root, "out", "a.cfg")
	if err := File(src, dst, 0644, fn); err != nil {
		t.Fatalf("File: %v", err)
	}
	first, _ := os.ReadFile(dst)
	if err := File(src, dst, 0644, fn); err != nil {
		t.Fatalf("File again: %v", err)
	}
	second, _ := os.ReadFile(dst)
	if !bytes.Equal(first, second) {
		t.Error("rendering twice should produce identical bytes")
	}
}

func TestMeshPrefix(t *testing.T) {
	root := filepath.FromSlash("/camp")
	ws := filepath.Join(root, "M10", "I03", "Sim_0001")
	got, err := MeshPrefix(ws, root)
	if err != nil {
		t.Fatalf("MeshPrefix: %v", err)
	}
	if got != "../../../" {
		t.Errorf("MeshPrefix = %q, want ../../../", got)
	}
	if got, _ := MeshPrefix(root, root); got != "" {
		t.Errorf("MeshPrefix(root, root) = %q, want empty", got)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{1, "1.0"},
		{0.1355, "0.1355"},
		{-0.25, "-0.25"},
		{7.1, "7.1"},
		{1e6, "1000000.0"},
		{1.5e-05, "1.5e-05"},
		{0.0001, "0.0001"},
		{2e16, "2e+16"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
