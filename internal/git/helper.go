package git

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5/config"
	"github.com/masmgr/gitchanges/internal/locator"
	"github.com/masmgr/gitchanges/internal/mirror"
	"github.com/masmgr/gitchanges/internal/vcs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"
)

var tracer = otel.Tracer("gitchanges/git")

// OperationHelper reads history from a mirror and checks out trees. The
// native and library strategies implement it with identical results.
type OperationHelper interface {
	// Name identifies the strategy in logs.
	Name() string
	// EnsureFetched creates the mirror if needed and fetches the access branch.
	EnsureFetched(ctx context.Context, m *mirror.Mirror, access locator.AccessData) error
	// FetchAll fetches every branch of the remote into the mirror.
	FetchAll(ctx context.Context, m *mirror.Mirror, access locator.AccessData) error
	// ResolveHead returns the head of the access branch. The mirror is
	// refreshed first unless localOnly is set.
	ResolveHead(ctx context.Context, m *mirror.Mirror, access locator.AccessData, localOnly bool) (vcs.Revision, error)
	// ContainsRevision reports whether the commit is present in the mirror.
	ContainsRevision(ctx context.Context, m *mirror.Mirror, rev vcs.Revision) (bool, error)
	// AncestorsExclusive returns the commits reachable from `from` and not
	// from `exclude`, in no particular order. exclude may be empty.
	AncestorsExclusive(ctx context.Context, m *mirror.Mirror, from, exclude vcs.Revision) ([]vcs.Commit, error)
	// Checkout replaces the content of dir with the tree of rev.
	Checkout(ctx context.Context, m *mirror.Mirror, rev vcs.Revision, dir string) error
}

// backend is the part of a strategy that touches the repository. Locking,
// tracing and error classification are shared by both strategies.
type backend interface {
	name() string
	initMirror(ctx context.Context, m *mirror.Mirror, url string) error
	remoteHasBranch(ctx context.Context, m *mirror.Mirror, access locator.AccessData) (bool, error)
	fetch(ctx context.Context, m *mirror.Mirror, access locator.AccessData, spec config.RefSpec) error
	resolveLocal(ctx context.Context, m *mirror.Mirror, branch locator.BranchName) (vcs.Revision, bool, error)
	contains(ctx context.Context, m *mirror.Mirror, rev vcs.Revision) (bool, error)
	ancestors(ctx context.Context, m *mirror.Mirror, from, exclude vcs.Revision) ([]vcs.Commit, error)
	checkout(ctx context.Context, m *mirror.Mirror, rev vcs.Revision, dir string) error
}

type helper struct {
	backend
	fetchTimeout time.Duration
	now          func() time.Time
}

// Compile-time interface conformance check.
var _ OperationHelper = (*helper)(nil)

func newHelper(b backend, fetchTimeout time.Duration) *helper {
	return &helper{backend: b, fetchTimeout: fetchTimeout, now: time.Now}
}

func (h *helper) Name() string {
	return h.name()
}

func (h *helper) EnsureFetched(ctx context.Context, m *mirror.Mirror, access locator.AccessData) error {
	ctx, span := h.start(ctx, "EnsureFetched", m, attribute.String("branch", access.Branch.String()))
	defer span.End()

	if err := access.Validate(); err != nil {
		return vcs.UnresolvableBranch("Cannot determine head revision of %s: %v", access.URL, err)
	}

	return m.WithExclusive(ctx, func() error {
		if err := h.prepareMirror(ctx, m, access); err != nil {
			return err
		}

		ctx, cancel := h.withFetchTimeout(ctx)
		defer cancel()

		found, err := h.remoteHasBranch(ctx, m, access)
		if err != nil {
			return h.unavailable(ctx, err, "cannot list branches of %s", access.URL)
		}
		if !found {
			return vcs.UnresolvableBranch("Cannot determine head revision of branch %s in %s: the branch does not exist or the repository is empty", access.Branch, access.URL)
		}

		klog.Infof("Fetching branch %s of %s into mirror %s (%s)", access.Branch, access.URL, m.Key, h.name())
		if err := h.fetch(ctx, m, access, access.Branch.ForceFetchSpec()); err != nil {
			return h.unavailable(ctx, err, "cannot fetch branch %s of %s", access.Branch, access.URL)
		}
		h.record(m, access, access.Branch.String())
		return nil
	})
}

func (h *helper) FetchAll(ctx context.Context, m *mirror.Mirror, access locator.AccessData) error {
	ctx, span := h.start(ctx, "FetchAll", m)
	defer span.End()

	return m.WithExclusive(ctx, func() error {
		if err := h.prepareMirror(ctx, m, access); err != nil {
			return err
		}

		ctx, cancel := h.withFetchTimeout(ctx)
		defer cancel()

		klog.Infof("Fetching all branches of %s into mirror %s (%s)", access.URL, m.Key, h.name())
		if err := h.fetch(ctx, m, access, locator.AllBranchesFetchSpec); err != nil {
			return h.unavailable(ctx, err, "cannot fetch %s", access.URL)
		}
		h.record(m, access)
		return nil
	})
}

func (h *helper) ResolveHead(ctx context.Context, m *mirror.Mirror, access locator.AccessData, localOnly bool) (vcs.Revision, error) {
	ctx, span := h.start(ctx, "ResolveHead", m,
		attribute.String("branch", access.Branch.String()),
		attribute.Bool("localOnly", localOnly))
	defer span.End()

	if !localOnly {
		if err := h.EnsureFetched(ctx, m, access); err != nil {
			return "", err
		}
	}

	var head vcs.Revision
	err := m.WithShared(ctx, func() error {
		if !m.Initialized() {
			return vcs.UnresolvableBranch("Cannot determine head revision of branch %s in %s: the repository was never fetched", access.Branch, access.URL)
		}
		rev, ok, err := h.resolveLocal(ctx, m, access.Branch)
		if err != nil {
			return h.unavailable(ctx, err, "cannot read branch %s from mirror of %s", access.Branch, access.URL)
		}
		if !ok {
			return vcs.UnresolvableBranch("Cannot determine head revision of branch %s in %s", access.Branch, access.URL)
		}
		head = rev
		return nil
	})
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("revision", head.String()))
	return head, nil
}

func (h *helper) ContainsRevision(ctx context.Context, m *mirror.Mirror, rev vcs.Revision) (bool, error) {
	ctx, span := h.start(ctx, "ContainsRevision", m, attribute.String("revision", rev.String()))
	defer span.End()

	var found bool
	err := m.WithShared(ctx, func() error {
		if !m.Initialized() {
			return nil
		}
		ok, err := h.contains(ctx, m, rev)
		if err != nil {
			return h.unavailable(ctx, err, "cannot look up revision %s in mirror %s", rev, m.Key)
		}
		found = ok
		return nil
	})
	return found, err
}

func (h *helper) AncestorsExclusive(ctx context.Context, m *mirror.Mirror, from, exclude vcs.Revision) ([]vcs.Commit, error) {
	ctx, span := h.start(ctx, "AncestorsExclusive", m,
		attribute.String("from", from.String()),
		attribute.String("exclude", exclude.String()))
	defer span.End()

	var commits []vcs.Commit
	err := m.WithShared(ctx, func() error {
		var err error
		commits, err = h.ancestors(ctx, m, from, exclude)
		if err != nil {
			return h.unavailable(ctx, err, "cannot walk history from %s in mirror %s", from, m.Key)
		}
		return nil
	})
	span.SetAttributes(attribute.Int("commits", len(commits)))
	return commits, err
}

func (h *helper) Checkout(ctx context.Context, m *mirror.Mirror, rev vcs.Revision, dir string) error {
	ctx, span := h.start(ctx, "Checkout", m,
		attribute.String("revision", rev.String()),
		attribute.String("dir", dir))
	defer span.End()

	return m.WithShared(ctx, func() error {
		ok := m.Initialized()
		if ok {
			var err error
			if ok, err = h.contains(ctx, m, rev); err != nil {
				return h.unavailable(ctx, err, "cannot look up revision %s in mirror %s", rev, m.Key)
			}
		}
		if !ok {
			return vcs.UnresolvableBranch("Cannot find revision %s in mirror of %s", rev, m.Identity)
		}

		if err := Prepare(dir); err != nil {
			return vcs.CheckoutFailure(rev, dir, err)
		}
		klog.V(2).Infof("Writing tree of %s into %s (%s)", rev, dir, h.name())
		if err := h.checkout(ctx, m, rev, dir); err != nil {
			return vcs.CheckoutFailure(rev, dir, err)
		}
		return nil
	})
}

// prepareMirror creates the bare repository on first use and points origin
// at the access URL.
func (h *helper) prepareMirror(ctx context.Context, m *mirror.Mirror, access locator.AccessData) error {
	if !m.Initialized() {
		klog.Infof("Creating mirror %s for %s", m.Dir, m.Identity)
	}
	if err := h.initMirror(ctx, m, access.URL); err != nil {
		return vcs.RepositoryUnavailable(err, "cannot initialize mirror %s", m.Dir)
	}
	return nil
}

func (h *helper) record(m *mirror.Mirror, access locator.AccessData, branches ...string) {
	if err := m.RecordFetch(access.URL, h.now(), branches...); err != nil {
		klog.Warningf("Failed to record fetch of mirror %s: %v", m.Key, err)
	}
}

func (h *helper) withFetchTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.fetchTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.fetchTimeout)
}

// unavailable classifies a backend failure. Errors that already carry a kind
// pass through.
func (h *helper) unavailable(ctx context.Context, err error, format string, args ...any) error {
	if vcs.IsTyped(err) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %v", ctxErr, err)
	}
	return vcs.RepositoryUnavailable(err, format, args...)
}

func (h *helper) start(ctx context.Context, op string, m *mirror.Mirror, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("mirror", m.Key))
	return tracer.Start(ctx, h.name()+"::"+op, trace.WithAttributes(attrs...))
}
