package vcs

import (
	"fmt"
	"strings"
)

// Revision identifies a single point in history. It is a lowercase hex object id.
// Revisions carry no ordering; ancestry is the only order between them.
type Revision string

// String implements fmt.Stringer.
func (r Revision) String() string {
	return string(r)
}

// IsZero reports whether the revision is unset.
func (r Revision) IsZero() bool {
	return r == ""
}

// Short returns an abbreviated form for display.
func (r Revision) Short() string {
	if len(r) > 7 {
		return string(r[:7])
	}
	return string(r)
}

// ParseRevision validates a full SHA-1 or SHA-256 object id.
func ParseRevision(s string) (Revision, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 40 && len(s) != 64 {
		return "", fmt.Errorf("invalid revision %q: expected a full object id", s)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("invalid revision %q: not hexadecimal", s)
		}
	}
	return Revision(s), nil
}
