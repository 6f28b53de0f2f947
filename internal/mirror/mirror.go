package mirror

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/danjacques/gofslock/fslock"
	"github.com/masmgr/gitchanges/internal/vcs"
	"k8s.io/klog/v2"
)

// Mirror is a handle onto the bare repository of one identity.
type Mirror struct {
	Key      string
	Identity string
	Dir      string

	cache *Cache
}

func (m *Mirror) lockPath() string {
	return filepath.Join(m.cache.root, m.Key+".lock")
}

// Initialized reports whether the bare repository exists on disk.
func (m *Mirror) Initialized() bool {
	fi, err := os.Stat(filepath.Join(m.Dir, "HEAD"))
	return err == nil && !fi.IsDir()
}

// WithExclusive runs fn while holding the mirror for writing. Use it to
// initialize or fetch. The lock is released on every exit path.
func (m *Mirror) WithExclusive(ctx context.Context, fn func() error) error {
	rw := m.cache.rwLock(m.Key)
	if err := m.acquire(ctx, rw.TryLock); err != nil {
		return err
	}
	defer rw.Unlock()

	return m.withFileLock(ctx, fslock.WithBlocking, fn)
}

// WithShared runs fn while holding the mirror for reading. Readers run
// together but never alongside a writer.
func (m *Mirror) WithShared(ctx context.Context, fn func() error) error {
	rw := m.cache.rwLock(m.Key)
	if err := m.acquire(ctx, rw.TryRLock); err != nil {
		return err
	}
	defer rw.RUnlock()

	return m.withFileLock(ctx, fslock.WithSharedBlocking, fn)
}

type fileLockFunc func(path string, b fslock.Blocker, fn func() error) error

func (m *Mirror) withFileLock(ctx context.Context, lock fileLockFunc, fn func() error) error {
	var fnErr error
	ran := false
	err := lock(m.lockPath(), m.blocker(ctx), func() error {
		ran = true
		fnErr = fn()
		return fnErr
	})
	if ran {
		return fnErr
	}
	return m.lockError(ctx, err)
}

// acquire polls an in-process try-lock until it succeeds or ctx is done.
func (m *Mirror) acquire(ctx context.Context, try func() bool) error {
	if try() {
		return nil
	}
	klog.V(2).Infof("Mirror %s is busy in this process, waiting", m.Key)
	ticker := time.NewTicker(inProcessPoll(m.cache.lockRetryDelay))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return m.lockError(ctx, ctx.Err())
		case <-ticker.C:
			if try() {
				return nil
			}
		}
	}
}

// blocker is an fslock.Blocker implementation that sleeps the retry delay in
// between attempts and gives up once the context is done.
func (m *Mirror) blocker(ctx context.Context) fslock.Blocker {
	return func() error {
		klog.V(2).Infof("Lock %s is currently held. Sleeping %v and retrying...", m.lockPath(), m.cache.lockRetryDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cache.lockRetryDelay):
			return nil
		}
	}
}

func (m *Mirror) lockError(ctx context.Context, err error) error {
	if err == nil {
		err = ctx.Err()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return vcs.RepositoryUnavailable(err, "timed out waiting for mirror %s", m.Identity)
	}
	return vcs.RepositoryUnavailable(err, "cannot lock mirror %s", m.Identity)
}

func inProcessPoll(d time.Duration) time.Duration {
	const max = 10 * time.Millisecond
	if d < max {
		return d
	}
	return max
}

