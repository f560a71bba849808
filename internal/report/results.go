package report

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gekflow/gek/internal/extract"
	"github.com/gekflow/gek/internal/util"
)

// resultWidth is the column width of every results report field.
const resultWidth = 18

// ResultsHeader returns the VARIABLES line naming the report columns.
func ResultsHeader(sensitivities []string) string {
	names := append([]string{"X", "Y", "obj_func"}, sensitivities...)
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = `"` + n + `"`
	}
	return "VARIABLES = " + strings.Join(quoted, ", ")
}

// FormatResult renders one results row: every value as %.6E, left-justified
// in resultWidth columns.
func FormatResult(r extract.Result) string {
	values := append([]float64{r.X, r.Y, r.Objective}, r.Gradient...)

	var sb strings.Builder
	for _, v := range values {
		fmt.Fprintf(&sb, "%-*s", resultWidth, fmt.Sprintf("%.6E", v))
	}
	return sb.String()
}

// WriteResults writes the results report, one row per sample in sample
// position order. results is not modified.
func WriteResults(w io.Writer, sensitivities []string, results []extract.Result) error {
	sorted := append([]extract.Result(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})

	for _, r := range sorted {
		if len(r.Gradient) != len(sensitivities) {
			return fmt.Errorf("%s: %d gradient values for %d columns", r.Workspace, len(r.Gradient), len(sensitivities))
		}
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, ResultsHeader(sensitivities))
	for _, r := range sorted {
		fmt.Fprintln(bw, FormatResult(r))
	}
	return bw.Flush()
}

// SaveResults writes the results report to path atomically.
func SaveResults(path string, sensitivities []string, results []extract.Result) error {
	var buf bytes.Buffer
	if err := WriteResults(&buf, sensitivities, results); err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing results report: %w", err)
	}
	return nil
}
