package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gekflow/gek/internal/config"
)

// ErrWidthTooSmall indicates the zero-padding width cannot hold every
// sample position, which would break name ordering.
var ErrWidthTooSmall = errors.New("workspace name width too small for sample count")

// Name returns the workspace directory name for a sample position,
// e.g. "Sim_0007".
func Name(c *config.Campaign, position int) string {
	return c.Workspace.Prefix + pad(position, c.Workspace.Width)
}

// Path returns the absolute workspace directory for a sample position:
// <root>/<surrogate>/<iteration>/<name>.
func Path(c *config.Campaign, position int) string {
	return filepath.Join(c.IterationDir(), Name(c, position))
}

// JobName returns the scheduler job name for a sample position,
// e.g. "M10I0307".
func JobName(c *config.Campaign, position int) string {
	width := c.Workspace.JobWidth
	if width < 1 {
		width = 1
	}
	return c.Surrogate + c.Iteration + pad(position, width)
}

// CheckWidth verifies that every position up to maxPosition fits the
// configured width, so lexicographic name order equals position order.
func CheckWidth(c *config.Campaign, maxPosition int) error {
	if got := len(strconv.Itoa(maxPosition)); got > c.Workspace.Width {
		return fmt.Errorf("%w: position %d needs %d digits, width is %d",
			ErrWidthTooSmall, maxPosition, got, c.Workspace.Width)
	}
	return nil
}

// Prepare makes path an empty directory. An existing tree at path is
// removed first, so earlier solver output in it is lost.
func Prepare(path string) error {
	if _, err := os.Stat(path); err == nil {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("removing old workspace: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking workspace: %w", err)
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("creating workspace: %w", err)
	}
	return nil
}

// List returns the workspace directory names present in the iteration
// directory, sorted lexicographically.
func List(c *config.Campaign) ([]string, error) {
	entries, err := os.ReadDir(c.IterationDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing workspaces: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), c.Workspace.Prefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Position parses the sample position back out of a workspace name.
func Position(c *config.Campaign, name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, c.Workspace.Prefix)
	if !ok || digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func pad(n, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}
