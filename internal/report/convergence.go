// Package report writes the fixed-width text tables a campaign produces:
// the convergence report, the results report and the failure manifest.
package report

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/gekflow/gek/internal/converge"
	"github.com/gekflow/gek/internal/style"
	"github.com/gekflow/gek/internal/util"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// convergenceColumns is the convergence report layout.
var convergenceColumns = []style.Column{
	{Name: "Simulation", Width: 20},
	{Name: "Direct Conv", Width: 16},
	{Name: "Direct Iter", Width: 16},
	{Name: "Adjoint Conv", Width: 16},
	{Name: "Adjoint Iter", Width: 16},
	{Name: "Status"},
}

// FormatFlag renders a convergence flag as "True" or "False".
// Casers carry state, so each call gets its own.
func FormatFlag(b bool) string {
	return cases.Title(language.Und).String(strconv.FormatBool(b))
}

// WriteConvergence writes the convergence table, one row per workspace in
// directory-name order, followed by three blank lines and the diagnostic
// dump. records is not modified.
func WriteConvergence(w io.Writer, records []converge.Record, diagnostics []converge.Match) error {
	sorted := append([]converge.Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Workspace < sorted[j].Workspace
	})

	tbl := style.NewPlainTable(convergenceColumns...)
	for _, r := range sorted {
		tbl.AddRow(r.Workspace, FormatFlag(r.Primal), r.PrimalIter, FormatFlag(r.Adjoint), r.AdjointIter, string(r.State))
	}

	if _, err := io.WriteString(w, tbl.Render()); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n\n\n"); err != nil {
		return err
	}
	_, err := io.WriteString(w, FormatDiagnostics(diagnostics))
	return err
}

// FormatDiagnostics renders diagnostic blocks the way grep -rn does with
// context: marker lines as "path:N:text", context lines as "path-N-text",
// and "--" between blocks.
func FormatDiagnostics(matches []converge.Match) string {
	var sb strings.Builder
	for i, m := range matches {
		if i > 0 {
			sb.WriteString("--\n")
		}
		for _, l := range m.Lines {
			sep := "-"
			if l.Match {
				sep = ":"
			}
			fmt.Fprintf(&sb, "%s%s%d%s%s\n", m.Path, sep, l.Number, sep, l.Text)
		}
	}
	return sb.String()
}

// SaveConvergence writes the convergence report to path atomically.
func SaveConvergence(path string, records []converge.Record, diagnostics []converge.Match) error {
	var buf bytes.Buffer
	if err := WriteConvergence(&buf, records, diagnostics); err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing convergence report: %w", err)
	}
	return nil
}
