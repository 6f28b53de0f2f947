package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/masmgr/gitchanges/internal/issuekeys"
	"github.com/masmgr/gitchanges/internal/locator"
	"github.com/masmgr/gitchanges/internal/mirror"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the configuration file searched when no path is given.
const DefaultFileName = ".gitchanges.json"

// Config is the root configuration structure.
type Config struct {
	Cache       CacheConfig        `json:"cache" yaml:"cache"`
	Git         GitConfig          `json:"git" yaml:"git"`
	Detection   DetectionConfig    `json:"detection" yaml:"detection"`
	Filters     FilterConfig       `json:"filters" yaml:"filters"`
	Credentials []CredentialConfig `json:"credentials" yaml:"credentials"`
}

// CacheConfig holds the mirror cache location and locking options.
type CacheConfig struct {
	Dir             string `json:"dir" yaml:"dir"`                         // Default: ~/.cache/gitchanges/mirrors
	LockRetryMillis int    `json:"lockRetryMillis" yaml:"lockRetryMillis"` // Default: 100
}

// GitConfig selects and tunes the operation helper.
type GitConfig struct {
	Capability          string `json:"capability" yaml:"capability"` // Path to a git executable; empty selects the library helper
	FetchTimeoutSeconds int    `json:"fetchTimeoutSeconds" yaml:"fetchTimeoutSeconds"`
}

// DetectionConfig holds change detection options.
type DetectionConfig struct {
	MaxChanges    int      `json:"maxChanges" yaml:"maxChanges"`       // 0 means unlimited
	IssuePatterns []string `json:"issuePatterns" yaml:"issuePatterns"` // Regex patterns; the first capture group is the key
}

// FilterConfig holds file path filtering options.
type FilterConfig struct {
	Include []string `json:"include" yaml:"include"`
	Exclude []string `json:"exclude" yaml:"exclude"`
}

// CredentialConfig binds credentials to repositories by identity prefix.
// Secrets are never stored in the file, only the names of the environment
// variables holding them.
type CredentialConfig struct {
	Match               string `json:"match" yaml:"match"`
	Username            string `json:"username,omitempty" yaml:"username,omitempty"`
	PasswordEnv         string `json:"passwordEnv,omitempty" yaml:"passwordEnv,omitempty"`
	SSHKey              string `json:"sshKey,omitempty" yaml:"sshKey,omitempty"`
	SSHKeyPassphraseEnv string `json:"sshKeyPassphraseEnv,omitempty" yaml:"sshKeyPassphraseEnv,omitempty"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Dir:             filepath.Join("~", ".cache", "gitchanges", "mirrors"),
			LockRetryMillis: int(mirror.DefaultLockRetryDelay / time.Millisecond),
		},
		Git: GitConfig{
			FetchTimeoutSeconds: 300,
		},
		Detection: DetectionConfig{
			IssuePatterns: append([]string(nil), issuekeys.DefaultPatterns...),
		},
		Filters: FilterConfig{
			Include: []string{},
			Exclude: []string{},
		},
		Credentials: []CredentialConfig{},
	}
}

// LoadConfig loads configuration from a file, merging with defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		// Try default locations
		candidates := []string{DefaultFileName}
		if home, err := homedir.Dir(); err == nil && home != "" {
			candidates = append(candidates, filepath.Join(home, DefaultFileName))
		}
		for _, p := range candidates {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to a file.
func SaveConfig(cfg *Config, path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// CacheDir returns the mirror cache directory with "~" expanded.
func (c *Config) CacheDir() (string, error) {
	dir, err := homedir.Expand(c.Cache.Dir)
	if err != nil {
		return "", fmt.Errorf("invalid cache directory %q: %w", c.Cache.Dir, err)
	}
	return dir, nil
}

// LockRetryDelay returns the pause between mirror lock attempts.
func (c *Config) LockRetryDelay() time.Duration {
	if c.Cache.LockRetryMillis <= 0 {
		return mirror.DefaultLockRetryDelay
	}
	return time.Duration(c.Cache.LockRetryMillis) * time.Millisecond
}

// FetchTimeout returns the bound on network operations. Zero means none.
func (c *Config) FetchTimeout() time.Duration {
	if c.Git.FetchTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Git.FetchTimeoutSeconds) * time.Second
}

// Restriction returns the path restriction built from the filters.
func (c *Config) Restriction() locator.PathRestriction {
	return locator.PathRestriction{Include: c.Filters.Include, Exclude: c.Filters.Exclude}
}

// CredentialRules resolves the configured credentials, reading secrets from
// the environment through getenv.
func (c *Config) CredentialRules(getenv func(string) string) ([]locator.CredentialRule, error) {
	rules := make([]locator.CredentialRule, 0, len(c.Credentials))
	for i, cc := range c.Credentials {
		if cc.Match == "" {
			return nil, fmt.Errorf("credentials[%d]: match is required", i)
		}
		cred := &locator.Credential{Username: cc.Username}

		if cc.PasswordEnv != "" {
			cred.Password = getenv(cc.PasswordEnv)
			if cred.Password == "" {
				return nil, fmt.Errorf("credentials[%d]: environment variable %s is not set", i, cc.PasswordEnv)
			}
		}
		if cc.SSHKey != "" {
			key, err := homedir.Expand(cc.SSHKey)
			if err != nil {
				return nil, fmt.Errorf("credentials[%d]: invalid ssh key path: %w", i, err)
			}
			cred.SSHKeyPath = key
		}
		if cc.SSHKeyPassphraseEnv != "" {
			cred.SSHKeyPassphrase = getenv(cc.SSHKeyPassphraseEnv)
		}
		if !cred.IsSSH() && !cred.IsBasic() {
			return nil, fmt.Errorf("credentials[%d]: either passwordEnv or sshKey is required", i)
		}

		rules = append(rules, locator.CredentialRule{Match: cc.Match, Credential: *cred})
	}
	return rules, nil
}
