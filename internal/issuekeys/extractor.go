// Package issuekeys finds issue tracker keys in commit comments.
package issuekeys

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultPatterns matches keys such as "PROJ-123".
var DefaultPatterns = []string{`\b([A-Z][A-Z0-9_]+-[0-9]+)\b`}

// Extractor finds issue keys by matching commit comments against regex patterns.
type Extractor struct {
	patterns []*regexp.Regexp
}

// NewExtractor creates an Extractor from a list of regex pattern strings.
// When a pattern has a capture group, the first group is the key; otherwise
// the whole match is. Returns an error if any pattern fails to compile.
func NewExtractor(patterns []string) (*Extractor, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return &Extractor{patterns: compiled}, nil
}

// Extract returns the distinct keys found in comment, in order of appearance.
func (e *Extractor) Extract(comment string) []string {
	if e == nil || len(e.patterns) == 0 {
		return nil
	}

	type hit struct {
		pos int
		key string
	}
	var hits []hit
	for _, re := range e.patterns {
		for _, m := range re.FindAllStringSubmatchIndex(comment, -1) {
			start, end := m[0], m[1]
			if len(m) >= 4 && m[2] >= 0 {
				start, end = m[2], m[3]
			}
			hits = append(hits, hit{pos: start, key: comment[start:end]})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].pos < hits[j].pos
	})

	seen := make(map[string]bool, len(hits))
	var keys []string
	for _, h := range hits {
		if h.key == "" || seen[h.key] {
			continue
		}
		seen[h.key] = true
		keys = append(keys, h.key)
	}
	return keys
}
