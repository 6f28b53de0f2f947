// Package engine is the entry point used by build orchestration: detect the
// changes of a repository since the last build and retrieve its source code.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/masmgr/gitchanges/internal/git"
	"github.com/masmgr/gitchanges/internal/issuekeys"
	"github.com/masmgr/gitchanges/internal/locator"
	"github.com/masmgr/gitchanges/internal/mirror"
	"github.com/masmgr/gitchanges/internal/vcs"
	"github.com/masmgr/gitchanges/internal/walker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"
)

var tracer = otel.Tracer("gitchanges/engine")

// RepositoryConfig describes one configured repository.
type RepositoryConfig struct {
	URL         string
	Branch      locator.BranchName
	Restriction locator.PathRestriction
	Git         git.RepositoryConfig

	// MaxChanges limits the changes reported by one detection. Zero means no limit.
	MaxChanges int
	// IssuePatterns extract issue keys from commit comments.
	IssuePatterns []string
}

// Dependencies are the collaborators of a Repository.
type Dependencies struct {
	// Cache holds the mirrors. Required.
	Cache *mirror.Cache
	// Credentials supplies authentication per repository identity. Optional.
	Credentials locator.CredentialProvider
	// Helper overrides the strategy chosen from the configuration.
	Helper git.OperationHelper
}

// BuildContext identifies the build a checkout is made for. It is only used
// in log lines.
type BuildContext struct {
	BuildKey    string
	BuildNumber int
}

func (b BuildContext) String() string {
	if b.BuildNumber == 0 {
		return b.BuildKey
	}
	return fmt.Sprintf("%s-%d", b.BuildKey, b.BuildNumber)
}

// Repository runs detections and checkouts for one configured repository.
// The operation helper is selected once, at construction.
type Repository struct {
	cfg         RepositoryConfig
	helper      git.OperationHelper
	credentials locator.CredentialProvider
	mirror      *mirror.Mirror
	issues      *issuekeys.Extractor
}

// New validates the configuration and selects the operation helper.
func New(cfg RepositoryConfig, deps Dependencies) (*Repository, error) {
	if deps.Cache == nil {
		return nil, errors.New("mirror cache is required")
	}
	access := locator.AccessData{URL: cfg.URL, Branch: cfg.Branch, Restriction: cfg.Restriction}
	if err := access.Validate(); err != nil {
		return nil, fmt.Errorf("invalid repository configuration: %w", err)
	}
	identity, err := access.Identity()
	if err != nil {
		return nil, fmt.Errorf("invalid repository configuration: %w", err)
	}
	issues, err := issuekeys.NewExtractor(cfg.IssuePatterns)
	if err != nil {
		return nil, fmt.Errorf("invalid issue pattern: %w", err)
	}

	helper := deps.Helper
	if helper == nil {
		helper = git.Select(cfg.Git)
	}

	return &Repository{
		cfg:         cfg,
		helper:      helper,
		credentials: deps.Credentials,
		mirror:      deps.Cache.Mirror(identity),
		issues:      issues,
	}, nil
}

// Helper returns the selected operation helper.
func (r *Repository) Helper() git.OperationHelper {
	return r.helper
}

// Mirror returns the mirror backing the repository.
func (r *Repository) Mirror() *mirror.Mirror {
	return r.mirror
}

// CollectChangesSinceLastBuild resolves the branch head and reports the
// commits since previous. An empty previous revision is a first build.
func (r *Repository) CollectChangesSinceLastBuild(ctx context.Context, buildKey string, previous vcs.Revision) (*vcs.BuildRepositoryChanges, error) {
	ctx, span := tracer.Start(ctx, "Repository::CollectChangesSinceLastBuild", trace.WithAttributes(
		attribute.String("buildKey", buildKey),
		attribute.String("previous", previous.String())))
	defer span.End()

	access, err := r.accessData(ctx)
	if err != nil {
		return nil, err
	}

	head, err := r.helper.ResolveHead(ctx, r.mirror, access, false)
	if err != nil {
		klog.Warningf("[%s] Cannot detect changes of %s on %s: %v", buildKey, r.cfg.URL, r.cfg.Branch, err)
		return nil, err
	}

	result, err := walker.ComputeChanges(ctx, r.helper, r.mirror, head, previous, walker.Options{
		Restriction: r.cfg.Restriction,
		Issues:      r.issues,
		MaxChanges:  r.cfg.MaxChanges,
	})
	if err != nil {
		klog.Warningf("[%s] Cannot detect changes of %s on %s: %v", buildKey, r.cfg.URL, r.cfg.Branch, err)
		return nil, err
	}

	klog.Infof("[%s] Detected %d change(s) on %s of %s, head %s", buildKey, len(result.Changes), r.cfg.Branch, r.cfg.URL, head.Short())
	span.SetAttributes(attribute.String("head", head.String()), attribute.Int("changes", len(result.Changes)))
	return result, nil
}

// RetrieveSourceCode writes the tree of rev into dir, replacing whatever the
// directory held. The revision is fetched when the mirror does not have it.
func (r *Repository) RetrieveSourceCode(ctx context.Context, bc BuildContext, rev vcs.Revision, dir string) error {
	ctx, span := tracer.Start(ctx, "Repository::RetrieveSourceCode", trace.WithAttributes(
		attribute.String("build", bc.String()),
		attribute.String("revision", rev.String()),
		attribute.String("dir", dir)))
	defer span.End()

	parsed, err := vcs.ParseRevision(rev.String())
	if err != nil {
		return vcs.UnresolvableBranch("Cannot find revision %q: %v", rev, err)
	}

	access, err := r.accessData(ctx)
	if err != nil {
		return err
	}
	if err := r.ensureRevision(ctx, access, parsed); err != nil {
		klog.Warningf("[%s] Cannot retrieve %s of %s: %v", bc, parsed.Short(), r.cfg.URL, err)
		return err
	}

	if err := r.helper.Checkout(ctx, r.mirror, parsed, dir); err != nil {
		klog.Warningf("[%s] Cannot retrieve %s of %s: %v", bc, parsed.Short(), r.cfg.URL, err)
		return err
	}
	klog.Infof("[%s] Checked out %s of %s into %s", bc, parsed.Short(), r.cfg.URL, dir)
	return nil
}

// ensureRevision fetches the configured branch, then every branch, until the
// mirror holds rev.
func (r *Repository) ensureRevision(ctx context.Context, access locator.AccessData, rev vcs.Revision) error {
	fetches := []struct {
		what  string
		fetch func() error
	}{
		{"branch " + access.Branch.String(), func() error { return r.helper.EnsureFetched(ctx, r.mirror, access) }},
		{"all branches", func() error { return r.helper.FetchAll(ctx, r.mirror, access) }},
	}

	for _, f := range fetches {
		found, err := r.helper.ContainsRevision(ctx, r.mirror, rev)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
		klog.V(2).Infof("Revision %s not in mirror %s, fetching %s", rev.Short(), r.mirror.Key, f.what)
		// a vanished branch is not fatal, the revision may live elsewhere
		if err := f.fetch(); err != nil && !errors.Is(err, vcs.ErrUnresolvableBranch) {
			return err
		}
	}

	found, err := r.helper.ContainsRevision(ctx, r.mirror, rev)
	if err != nil {
		return err
	}
	if !found {
		return vcs.UnresolvableBranch("Cannot find revision %s in %s", rev, r.cfg.URL)
	}
	return nil
}

// accessData assembles the per-call descriptor with fresh credentials.
func (r *Repository) accessData(ctx context.Context) (locator.AccessData, error) {
	access := locator.AccessData{URL: r.cfg.URL, Branch: r.cfg.Branch, Restriction: r.cfg.Restriction}
	if r.credentials == nil {
		return access, nil
	}
	cred, err := r.credentials.Credential(ctx, r.mirror.Identity)
	if err != nil {
		return access, vcs.RepositoryUnavailable(err, "cannot obtain credentials for %s", r.mirror.Identity)
	}
	return access.WithAuth(cred), nil
}
