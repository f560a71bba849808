package converge

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// binarySniff is how many leading bytes are checked for NUL.
const binarySniff = 8000

// Line is one line of a diagnostic block.
type Line struct {
	Number int    // 1-based
	Text   string
	Match  bool // the line carries the marker; otherwise context
}

// Match is a block of consecutive lines around one or more marker hits.
// Overlapping or adjacent blocks in the same file are merged.
type Match struct {
	Path      string // slash-separated, relative to the search root
	StartLine int
	EndLine   int
	Lines     []Line
}

// SearchOptions configures Search.
type SearchOptions struct {
	Marker string
	Before int
	After  int

	// Skip reports whether a file (by path relative to the root) is left
	// out. Directories are never passed.
	Skip func(rel string) bool
}

// Search walks root recursively and returns every block of lines around
// the marker, in lexical file order. Binary files are ignored.
func Search(root string, opts SearchOptions) ([]Match, error) {
	if opts.Marker == "" {
		return nil, nil
	}

	var matches []Match
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if opts.Skip != nil && opts.Skip(rel) {
			return nil
		}

		data, err := os.ReadFile(path) //nolint:gosec // G304: walking the campaign tree
		if err != nil {
			return nil
		}
		if isBinary(data) {
			return nil
		}
		matches = append(matches, searchLines(rel, string(data), opts)...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", root, err)
	}
	return matches, nil
}

func isBinary(data []byte) bool {
	if len(data) > binarySniff {
		data = data[:binarySniff]
	}
	return bytes.IndexByte(data, 0) >= 0
}

func searchLines(rel, content string, opts SearchOptions) []Match {
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")

	var blocks []Match
	for i, line := range lines {
		if !strings.Contains(line, opts.Marker) {
			continue
		}
		start := max(i-opts.Before, 0)
		end := min(i+opts.After, len(lines)-1)

		if n := len(blocks); n > 0 && start <= blocks[n-1].EndLine {
			// Overlapping or adjacent: extend the previous block.
			blocks[n-1].EndLine = end + 1
			continue
		}
		blocks = append(blocks, Match{Path: rel, StartLine: start + 1, EndLine: end + 1})
	}

	for b := range blocks {
		m := &blocks[b]
		for n := m.StartLine; n <= m.EndLine; n++ {
			text := strings.TrimSuffix(lines[n-1], "\r")
			m.Lines = append(m.Lines, Line{
				Number: n,
				Text:   text,
				Match:  strings.Contains(text, opts.Marker),
			})
		}
	}
	return blocks
}
