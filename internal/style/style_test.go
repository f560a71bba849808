package style

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()
	w.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestStylesRender(t *testing.T) {
	styles := map[string]func(...string) string{
		"Success": Success.Render,
		"Warning": Warning.Render,
		"Error":   Error.Render,
		"Info":    Info.Render,
		"Dim":     Dim.Render,
		"Bold":    Bold.Render,
	}
	for name, render := range styles {
		if !strings.Contains(stripAnsi(render("test")), "test") {
			t.Errorf("%s.Render lost its text", name)
		}
	}

	for name, prefix := range map[string]string{
		"SuccessPrefix": SuccessPrefix,
		"WarningPrefix": WarningPrefix,
		"ErrorPrefix":   ErrorPrefix,
		"ArrowPrefix":   ArrowPrefix,
	} {
		if prefix == "" {
			t.Errorf("%s is empty", name)
		}
	}
}

func TestPrintWarning(t *testing.T) {
	out := captureStdout(t, func() {
		PrintWarning("workspace %s has no submission record", "Sim_0004")
		PrintWarning("plain")
	})

	if !strings.Contains(out, "workspace Sim_0004 has no submission record") {
		t.Errorf("output missing formatted message: %q", out)
	}
	if n := strings.Count(out, "\n"); n != 2 {
		t.Errorf("got %d lines, want 2", n)
	}
}
