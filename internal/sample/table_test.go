package sample

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const table = `SA_CB1, SA_SIG, SA_CB2
0.1355, 0.66, 0.622
#0.2, 0.7, 0.6
0.14, 0.67, 0.63

0.15,0.68,0.64
`

func TestParse_SkippedRowsConsumePositions(t *testing.T) {
	tbl, err := Parse(strings.NewReader(table), Options{ConsumeSkipped: true})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if diff := cmp.Diff([]string{"SA_CB1", "SA_SIG", "SA_CB2"}, tbl.Header); diff != "" {
		t.Errorf("Header mismatch (-want +got):\n%s", diff)
	}

	want := []Row{
		{Position: 1, Values: []float64{0.1355, 0.66, 0.622}},
		{Position: 3, Values: []float64{0.14, 0.67, 0.63}},
		{Position: 5, Values: []float64{0.15, 0.68, 0.64}},
	}
	if diff := cmp.Diff(want, tbl.Active()); diff != "" {
		t.Errorf("Active mismatch (-want +got):\n%s", diff)
	}
	if len(tbl.Rows) != 5 {
		t.Errorf("len(Rows) = %d, want 5", len(tbl.Rows))
	}
	if got := tbl.MaxPosition(); got != 5 {
		t.Errorf("MaxPosition = %d, want 5", got)
	}
}

func TestParse_SkippedRowsWithoutGaps(t *testing.T) {
	tbl, err := Parse(strings.NewReader(table), Options{ConsumeSkipped: false})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var positions []int
	for _, r := range tbl.Active() {
		positions = append(positions, r.Position)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, positions); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
	for _, r := range tbl.Rows {
		if r.Skipped && r.Position != 0 {
			t.Errorf("skipped row has position %d, want 0", r.Position)
		}
	}
}

func TestParse_FieldCountMismatch(t *testing.T) {
	input := "A,B,C\n1,2,3\n1,2\n"
	_, err := Parse(strings.NewReader(input), Options{ConsumeSkipped: true})

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if pe.Line != 3 {
		t.Errorf("ParseError.Line = %d, want 3", pe.Line)
	}
	if !strings.Contains(pe.Error(), "got 2 fields") {
		t.Errorf("error %q should mention the field count", pe.Error())
	}
}

func TestParse_BadNumber(t *testing.T) {
	input := "A,B\n1,abc\n"
	_, err := Parse(strings.NewReader(input), Options{})

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if !strings.Contains(pe.Error(), "column B") {
		t.Errorf("error %q should name the column", pe.Error())
	}
}

func TestParse_CustomCommentPrefix(t *testing.T) {
	input := "A\n!1\n2\n"
	tbl, err := Parse(strings.NewReader(input), Options{CommentPrefix: "!", ConsumeSkipped: true})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	active := tbl.Active()
	if len(active) != 1 || active[0].Position != 2 {
		t.Errorf("Active = %+v, want one row at position 2", active)
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := Parse(strings.NewReader(""), Options{}); !errors.Is(err, ErrEmptyTable) {
		t.Errorf("error = %v, want ErrEmptyTable", err)
	}
}

func TestLookup(t *testing.T) {
	tbl, err := Parse(strings.NewReader(table), Options{ConsumeSkipped: true})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := tbl.Lookup(2); ok {
		t.Error("Lookup(2) should miss the disabled row")
	}
	row, ok := tbl.Lookup(3)
	if !ok || row.Values[0] != 0.14 {
		t.Errorf("Lookup(3) = %+v, %v", row, ok)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples_M1_I1.dat")
	if err := os.WriteFile(path, []byte(table), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tbl, err := Load(path, Options{ConsumeSkipped: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tbl.Active()) != 3 {
		t.Errorf("len(Active) = %d, want 3", len(tbl.Active()))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.dat"), Options{}); err == nil {
		t.Error("Load of a missing file should fail")
	}
}
