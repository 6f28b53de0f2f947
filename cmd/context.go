package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/masmgr/gitchanges/config"
	"github.com/masmgr/gitchanges/internal/engine"
	"github.com/masmgr/gitchanges/internal/git"
	"github.com/masmgr/gitchanges/internal/locator"
	"github.com/masmgr/gitchanges/internal/mirror"
	"github.com/masmgr/gitchanges/internal/output"
	"github.com/urfave/cli/v2"
)

// CommandContext holds common state for command execution.
type CommandContext struct {
	Config      *config.Config
	Cache       *mirror.Cache
	Credentials locator.CredentialProvider
}

// globalOverrides are the app-level flags that take precedence over the file.
type globalOverrides struct {
	CacheDir string
	Git      string
	Timeout  time.Duration
}

func applyOverrides(cfg *config.Config, o globalOverrides) {
	if o.CacheDir != "" {
		cfg.Cache.Dir = o.CacheDir
	}
	if o.Git != "" {
		cfg.Git.Capability = o.Git
	}
	if o.Timeout > 0 {
		cfg.Git.FetchTimeoutSeconds = int((o.Timeout + time.Second - 1) / time.Second)
	}
}

// NewCommandContext loads the configuration and opens the mirror cache.
func NewCommandContext(c *cli.Context) (*CommandContext, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	root, err := cfg.CacheDir()
	if err != nil {
		return nil, err
	}
	cache, err := mirror.NewCache(root, mirror.WithLockRetryDelay(cfg.LockRetryDelay()))
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror cache: %w", err)
	}

	rules, err := cfg.CredentialRules(os.Getenv)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}

	return &CommandContext{
		Config:      cfg,
		Cache:       cache,
		Credentials: locator.NewStaticCredentials(rules),
	}, nil
}

// RepositoryConfig builds the engine configuration for a repository and branch.
func (ctx *CommandContext) RepositoryConfig(url, branch string) engine.RepositoryConfig {
	return engine.RepositoryConfig{
		URL:         url,
		Branch:      locator.BranchName(branch),
		Restriction: ctx.Config.Restriction(),
		Git: git.RepositoryConfig{
			GitCapability: ctx.Config.Git.Capability,
			FetchTimeout:  ctx.Config.FetchTimeout(),
		},
		MaxChanges:    ctx.Config.Detection.MaxChanges,
		IssuePatterns: ctx.Config.Detection.IssuePatterns,
	}
}

// Repository opens the repository named by the --repo and --branch flags.
func (ctx *CommandContext) Repository(c *cli.Context) (*engine.Repository, error) {
	repo, err := engine.New(ctx.RepositoryConfig(c.String("repo"), c.String("branch")), engine.Dependencies{
		Cache:       ctx.Cache,
		Credentials: ctx.Credentials,
	})
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// OutputOptions creates OutputOptions from CLI flags.
func OutputOptions(c *cli.Context) output.OutputOptions {
	return output.OutputOptions{
		Format:     getOutputFormat(c.String("format")),
		Top:        c.Int("top"),
		OutputPath: c.String("output"),
		Explain:    c.Bool("explain"),
	}
}
