package git

import (
	"context"
	"sync"

	"github.com/masmgr/gitchanges/internal/graph"
	"github.com/masmgr/gitchanges/internal/locator"
	"github.com/masmgr/gitchanges/internal/mirror"
	"github.com/masmgr/gitchanges/internal/vcs"
)

// MockHelper is a test double for OperationHelper.
// It serves a predefined history without touching a mirror on disk.
type MockHelper struct {
	Commits []vcs.Commit
	Heads   map[locator.BranchName]vcs.Revision
	// Error is returned by every operation when set.
	Error error
	// CheckoutError is returned by Checkout when set.
	CheckoutError error

	mu         sync.Mutex
	fetches    int
	checkouts  []vcs.Revision
	accessSeen []locator.AccessData
}

// NewMockHelper creates a new MockHelper with the given history.
func NewMockHelper(commits []vcs.Commit, heads map[locator.BranchName]vcs.Revision) *MockHelper {
	return &MockHelper{Commits: commits, Heads: heads}
}

// Compile-time interface conformance check.
var _ OperationHelper = (*MockHelper)(nil)

func (m *MockHelper) Name() string {
	return "mock"
}

func (m *MockHelper) EnsureFetched(_ context.Context, _ *mirror.Mirror, access locator.AccessData) error {
	m.record(access)
	return m.Error
}

func (m *MockHelper) FetchAll(_ context.Context, _ *mirror.Mirror, access locator.AccessData) error {
	m.record(access)
	return m.Error
}

func (m *MockHelper) ResolveHead(_ context.Context, _ *mirror.Mirror, access locator.AccessData, localOnly bool) (vcs.Revision, error) {
	if !localOnly {
		m.record(access)
	}
	if m.Error != nil {
		return "", m.Error
	}
	head, ok := m.Heads[access.Branch]
	if !ok {
		return "", vcs.UnresolvableBranch("Cannot determine head revision of branch %s in %s", access.Branch, access.URL)
	}
	return head, nil
}

func (m *MockHelper) ContainsRevision(_ context.Context, _ *mirror.Mirror, rev vcs.Revision) (bool, error) {
	if m.Error != nil {
		return false, m.Error
	}
	return graph.New(m.Commits).Contains(rev), nil
}

func (m *MockHelper) AncestorsExclusive(_ context.Context, mr *mirror.Mirror, from, exclude vcs.Revision) ([]vcs.Commit, error) {
	if m.Error != nil {
		return nil, m.Error
	}
	g := graph.New(m.Commits)
	if !g.Contains(from) {
		return nil, vcs.UnresolvableBranch("Cannot find revision %s in mirror of %s", from, mr.Identity)
	}
	return g.Commits(g.Exclusive(from, exclude)), nil
}

func (m *MockHelper) Checkout(_ context.Context, _ *mirror.Mirror, rev vcs.Revision, dir string) error {
	if m.Error != nil {
		return m.Error
	}
	if m.CheckoutError != nil {
		return vcs.CheckoutFailure(rev, dir, m.CheckoutError)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkouts = append(m.checkouts, rev)
	return nil
}

// Fetches returns how many fetching operations were requested.
func (m *MockHelper) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

// CheckedOut returns the revisions passed to successful checkouts.
func (m *MockHelper) CheckedOut() []vcs.Revision {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]vcs.Revision(nil), m.checkouts...)
}

// LastAccess returns the access data of the most recent fetching operation.
func (m *MockHelper) LastAccess() (locator.AccessData, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.accessSeen) == 0 {
		return locator.AccessData{}, false
	}
	return m.accessSeen[len(m.accessSeen)-1], true
}

func (m *MockHelper) record(access locator.AccessData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	m.accessSeen = append(m.accessSeen, access)
}
