// Package walker computes the changes between a previously recorded revision
// and a branch head.
package walker

import (
	"context"

	"github.com/masmgr/gitchanges/internal/graph"
	"github.com/masmgr/gitchanges/internal/issuekeys"
	"github.com/masmgr/gitchanges/internal/locator"
	"github.com/masmgr/gitchanges/internal/mirror"
	"github.com/masmgr/gitchanges/internal/vcs"
	"k8s.io/klog/v2"
)

// History is the part of an operation helper the walker reads from.
type History interface {
	ContainsRevision(ctx context.Context, m *mirror.Mirror, rev vcs.Revision) (bool, error)
	AncestorsExclusive(ctx context.Context, m *mirror.Mirror, from, exclude vcs.Revision) ([]vcs.Commit, error)
}

// Options tune a detection.
type Options struct {
	// Restriction drops commits that touch no matching path.
	Restriction locator.PathRestriction
	// Issues extracts issue keys from comments. Nil disables extraction.
	Issues *issuekeys.Extractor
	// MaxChanges keeps only the most recent changes when positive.
	MaxChanges int
}

// ComputeChanges returns the commits reachable from head and not from
// previous, most recent first, with head as the new revision.
//
// An empty previous revision is an initial detection and reports no change.
// A previous revision the mirror has never seen fails with
// vcs.ErrUnresolvableBranch.
func ComputeChanges(ctx context.Context, h History, m *mirror.Mirror, head vcs.Revision, previous vcs.Revision, opts Options) (*vcs.BuildRepositoryChanges, error) {
	if head.IsZero() {
		return nil, vcs.UnresolvableBranch("Cannot determine head revision of %s", m.Identity)
	}

	result := &vcs.BuildRepositoryChanges{NewRevision: head, Changes: []vcs.Change{}}

	if previous.IsZero() {
		klog.V(2).Infof("Initial detection for %s at %s", m.Identity, head.Short())
		return result, nil
	}

	prev, err := vcs.ParseRevision(previous.String())
	if err != nil {
		return nil, vcs.UnresolvableBranch("Cannot resolve previous revision of %s: %v", m.Identity, err)
	}
	if prev == head {
		return result, nil
	}

	found, err := h.ContainsRevision(ctx, m, prev)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, vcs.UnresolvableBranch("Cannot resolve previous revision %s: it is not present in the mirror of %s", prev, m.Identity)
	}

	commits, err := h.AncestorsExclusive(ctx, m, head, prev)
	if err != nil {
		return nil, err
	}

	g := graph.New(commits)
	for _, c := range g.Commits(g.Order(g.All())) {
		if !opts.Restriction.MatchesAny(c.Files) {
			continue
		}
		change := vcs.NewChange(c)
		change.IssueKeys = opts.Issues.Extract(c.Comment)
		result.Changes = append(result.Changes, change)
	}

	if opts.MaxChanges > 0 && len(result.Changes) > opts.MaxChanges {
		result.Skipped = len(result.Changes) - opts.MaxChanges
		result.Changes = result.Changes[:opts.MaxChanges]
	}

	return result, nil
}
