package locator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// Credential is the authentication material for one repository.
type Credential struct {
	Username         string
	Password         string
	SSHKeyPath       string
	SSHKeyPassphrase string
}

// IsSSH reports whether the credential authenticates with a private key.
func (c *Credential) IsSSH() bool {
	return c != nil && c.SSHKeyPath != ""
}

// IsBasic reports whether the credential carries a user name or password.
func (c *Credential) IsBasic() bool {
	return c != nil && !c.IsSSH() && (c.Username != "" || c.Password != "")
}

// AuthMethod converts the credential into a go-git transport auth method.
// It returns nil when the credential is empty.
func (c *Credential) AuthMethod() (transport.AuthMethod, error) {
	switch {
	case c.IsSSH():
		user := c.Username
		if user == "" {
			user = "git"
		}
		auth, err := ssh.NewPublicKeysFromFile(user, c.SSHKeyPath, c.SSHKeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to load ssh key %s: %w", c.SSHKeyPath, err)
		}
		return auth, nil
	case c.IsBasic():
		return &http.BasicAuth{Username: c.Username, Password: c.Password}, nil
	}
	return nil, nil
}

// CredentialProvider supplies credentials for a repository identity. The
// engine never stores credentials itself.
type CredentialProvider interface {
	Credential(ctx context.Context, identity string) (*Credential, error)
}

// CredentialRule binds a credential to every identity starting with Match.
type CredentialRule struct {
	Match      string
	Credential Credential
}

// StaticCredentials is a CredentialProvider over a fixed rule list. The rule
// with the longest matching prefix wins.
type StaticCredentials struct {
	rules []CredentialRule
}

var _ CredentialProvider = (*StaticCredentials)(nil)

// NewStaticCredentials creates a provider from rules. Rule prefixes are
// normalized the same way identities are.
func NewStaticCredentials(rules []CredentialRule) *StaticCredentials {
	normalized := make([]CredentialRule, 0, len(rules))
	for _, r := range rules {
		if id, err := Identity(r.Match); err == nil {
			r.Match = id
		}
		normalized = append(normalized, r)
	}
	sort.SliceStable(normalized, func(i, j int) bool {
		return len(normalized[i].Match) > len(normalized[j].Match)
	})
	return &StaticCredentials{rules: normalized}
}

// Credential returns the credential of the best matching rule, or nil.
func (s *StaticCredentials) Credential(_ context.Context, identity string) (*Credential, error) {
	for _, r := range s.rules {
		if strings.HasPrefix(identity, r.Match) {
			c := r.Credential
			return &c, nil
		}
	}
	return nil, nil
}
