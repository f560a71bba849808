package render

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gekflow/gek/internal/config"
)

// TemplateError lists every marker problem found in one template.
type TemplateError struct {
	Path     string
	Problems []string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %s: %s", e.Path, strings.Join(e.Problems, "; "))
}

// ValidateConfigTemplate checks that every config marker appears on
// exactly one enabled line and that no line carries two markers.
func ValidateConfigTemplate(c *config.Campaign) error {
	return validateMarkers(c.ConfigTemplatePath(), ConfigMarkers(c), c.Template.DisabledPrefix)
}

// ValidateSubmitTemplate checks the submission script markers the same way.
func ValidateSubmitTemplate(c *config.Campaign) error {
	return validateMarkers(c.SubmitTemplatePath(), SubmitMarkers(c), "")
}

// ValidateTemplates runs both template checks.
func ValidateTemplates(c *config.Campaign) error {
	if err := ValidateConfigTemplate(c); err != nil {
		return err
	}
	return ValidateSubmitTemplate(c)
}

func validateMarkers(path string, markers []string, disabled string) error {
	f, err := os.Open(path) //nolint:gosec // G304: template path comes from campaign config
	if err != nil {
		return fmt.Errorf("opening template: %w", err)
	}
	defer f.Close()

	hits := make([][]int, len(markers))
	var problems []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if disabled != "" && strings.HasPrefix(line, disabled) {
			continue
		}

		var matched []string
		for i, m := range markers {
			if m == "" || !strings.Contains(line, m) {
				continue
			}
			if len(matched) == 0 {
				hits[i] = append(hits[i], lineNo)
			}
			matched = append(matched, m)
		}
		if len(matched) > 1 {
			problems = append(problems, fmt.Sprintf("line %d contains markers %s", lineNo, strings.Join(matched, ", ")))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading template: %w", err)
	}

	for i, m := range markers {
		if m == "" {
			continue
		}
		switch len(hits[i]) {
		case 1:
		case 0:
			problems = append(problems, fmt.Sprintf("marker %s not found", m))
		default:
			problems = append(problems, fmt.Sprintf("marker %s on lines %s", m, joinInts(hits[i])))
		}
	}

	if len(problems) > 0 {
		return &TemplateError{Path: path, Problems: problems}
	}
	return nil
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
