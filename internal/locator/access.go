// Package locator turns a repository descriptor into something addressable:
// a normalized identity, the key of its mirror, the refs of its branch and the
// credentials to reach it.
package locator

import (
	"errors"
	"fmt"
	"strings"
)

// AccessData describes what a single detection or checkout call looks at.
// It is immutable per call.
type AccessData struct {
	URL         string
	Branch      BranchName
	Auth        *Credential
	Restriction PathRestriction
}

// Validate checks that the descriptor can be used to reach a repository.
func (a AccessData) Validate() error {
	if strings.TrimSpace(a.URL) == "" {
		return errors.New("repository location is empty")
	}
	if err := a.Branch.Validate(); err != nil {
		return err
	}
	if err := a.Restriction.Validate(); err != nil {
		return fmt.Errorf("invalid path restriction: %w", err)
	}
	return nil
}

// Identity returns the normalized identity of the repository.
func (a AccessData) Identity() (string, error) {
	return Identity(a.URL)
}

// WithAuth returns a copy of the descriptor carrying the given credential.
func (a AccessData) WithAuth(c *Credential) AccessData {
	a.Auth = c
	return a
}
