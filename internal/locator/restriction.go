package locator

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/masmgr/gitchanges/internal/vcs"
)

// PathRestriction limits detection to commits touching matching paths.
// Patterns use doublestar glob syntax. An empty restriction matches all.
type PathRestriction struct {
	Include []string
	Exclude []string
}

// IsEmpty reports whether the restriction lets every path through.
func (r PathRestriction) IsEmpty() bool {
	return len(r.Include) == 0 && len(r.Exclude) == 0
}

// Validate checks every pattern.
func (r PathRestriction) Validate() error {
	for _, p := range append(append([]string{}, r.Include...), r.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("bad pattern %q", p)
		}
	}
	return nil
}

// Matches checks if a path matches the include/exclude filters.
func (r PathRestriction) Matches(path string) bool {
	// Normalize path separators
	path = strings.ReplaceAll(path, "\\", "/")

	// Check exclude patterns first
	for _, pattern := range r.Exclude {
		if matched, _ := doublestar.Match(pattern, path); matched {
			return false
		}
	}

	if len(r.Include) == 0 {
		return true
	}

	for _, pattern := range r.Include {
		if matched, _ := doublestar.Match(pattern, path); matched {
			return true
		}
	}
	return false
}

// MatchesAny reports whether at least one of the files passes the filters.
func (r PathRestriction) MatchesAny(files []vcs.FileChange) bool {
	if r.IsEmpty() {
		return true
	}
	for _, f := range files {
		if r.Matches(f.Path) {
			return true
		}
	}
	return false
}
