package corpus

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultIncludes are the glob patterns matched against corpus files.
var DefaultIncludes = []string{"**/*.pdf", "**/*.md"}

// Scanner enumerates corpus files and their modification timestamps.
type Scanner struct {
	includes []string
}

// NewScanner creates a scanner for the given include patterns.
// Patterns use doublestar globs relative to the scanned root; if none are
// given, DefaultIncludes is used.
func NewScanner(includes ...string) *Scanner {
	if len(includes) == 0 {
		includes = DefaultIncludes
	}
	return &Scanner{includes: includes}
}

// Scan walks root and returns a map of absolute file path to modification
// time in Unix nanoseconds for every file matching an include pattern.
func (s *Scanner) Scan(root string) (map[string]int64, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve corpus root: %w", err)
	}

	files := make(map[string]int64)
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}
		relPath = filepath.ToSlash(relPath)

		for _, pattern := range s.includes {
			if ok, _ := doublestar.Match(pattern, relPath); ok {
				files[path] = info.ModTime().UnixNano()
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan corpus: %w", err)
	}

	return files, nil
}
