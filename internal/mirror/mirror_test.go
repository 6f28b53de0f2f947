package mirror

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/masmgr/gitchanges/internal/vcs"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := NewCache(filepath.Join(t.TempDir(), "mirrors"), WithLockRetryDelay(5*time.Millisecond))
	if err != nil {
		t.Fatalf("NewCache error = %v", err)
	}
	return c
}

func TestNewCache_CreatesRoot(t *testing.T) {
	c := newTestCache(t)
	if fi, err := os.Stat(c.Root()); err != nil || !fi.IsDir() {
		t.Fatalf("root %s not created: %v", c.Root(), err)
	}
	if _, err := NewCache(""); err == nil {
		t.Error("expected error for empty root")
	}
}

func TestCache_MirrorIsKeyedByIdentity(t *testing.T) {
	c := newTestCache(t)

	a := c.Mirror("https://example.com/org/repo")
	b := c.Mirror("https://example.com/org/repo")
	other := c.Mirror("https://example.com/org/other")

	if a.Dir != b.Dir || a.Key != b.Key {
		t.Errorf("same identity gave different mirrors: %s vs %s", a.Dir, b.Dir)
	}
	if a.Dir == other.Dir {
		t.Error("different identities share a mirror")
	}
	if filepath.Dir(a.Dir) != c.Root() {
		t.Errorf("mirror %s outside root %s", a.Dir, c.Root())
	}
	if a.Initialized() {
		t.Error("fresh mirror should not be initialized")
	}
}

func TestMirror_Initialized(t *testing.T) {
	c := newTestCache(t)
	m := c.Mirror("https://example.com/org/repo")

	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if m.Initialized() {
		t.Error("empty directory is not a repository")
	}
	if err := os.WriteFile(filepath.Join(m.Dir, "HEAD"), []byte("ref: refs/heads/master\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !m.Initialized() {
		t.Error("expected initialized mirror")
	}
}

func TestMirror_ExclusiveSerializes(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// each goroutine uses its own handle, like separate calls would
			m := c.Mirror("https://example.com/org/repo")
			err := m.WithExclusive(ctx, func() error {
				n := atomic.AddInt32(&active, 1)
				for {
					cur := atomic.LoadInt32(&maxActive)
					if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			if err != nil {
				t.Errorf("WithExclusive error = %v", err)
			}
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("max concurrent writers = %d, want 1", maxActive)
	}
}

func TestMirror_SharedReadersOverlap(t *testing.T) {
	c := newTestCache(t)
	m := c.Mirror("https://example.com/org/repo")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- m.WithShared(ctx, func() error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside

	// a second reader gets in while the first one holds the lock
	if err := m.WithShared(ctx, func() error { return nil }); err != nil {
		t.Fatalf("second reader error = %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first reader error = %v", err)
	}
}

func TestMirror_WriterWaitsForReader(t *testing.T) {
	c := newTestCache(t)
	m := c.Mirror("https://example.com/org/repo")

	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- m.WithShared(context.Background(), func() error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	ran := false
	err := m.WithExclusive(ctx, func() error {
		ran = true
		return nil
	})
	if ran {
		t.Fatal("writer ran alongside a reader")
	}
	if !errors.Is(err, vcs.ErrRepositoryUnavailable) {
		t.Errorf("error = %v, want RepositoryUnavailable", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline cause", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("reader error = %v", err)
	}
	if err := m.WithExclusive(context.Background(), func() error { return nil }); err != nil {
		t.Errorf("writer after release error = %v", err)
	}
}

func TestMirror_ReleasesOnError(t *testing.T) {
	c := newTestCache(t)
	m := c.Mirror("https://example.com/org/repo")
	ctx := context.Background()
	boom := errors.New("boom")

	if err := m.WithExclusive(ctx, func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if err := m.WithExclusive(ctx, func() error { return nil }); err != nil {
		t.Errorf("lock not released after failure: %v", err)
	}
}

func TestMirror_DifferentMirrorsDoNotBlock(t *testing.T) {
	c := newTestCache(t)
	a := c.Mirror("https://example.com/org/a")
	b := c.Mirror("https://example.com/org/b")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := a.WithExclusive(ctx, func() error {
		return b.WithExclusive(ctx, func() error { return nil })
	})
	if err != nil {
		t.Errorf("nested lock on another mirror error = %v", err)
	}
}

func TestMirror_RecordFetchAndList(t *testing.T) {
	c := newTestCache(t)
	m := c.Mirror("https://example.com/org/repo")
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if md, err := m.Metadata(); err != nil || md != nil {
		t.Fatalf("Metadata before fetch = %+v, %v", md, err)
	}
	if err := m.RecordFetch("https://example.com/org/repo.git", when, "master"); err != nil {
		t.Fatal(err)
	}
	if err := m.RecordFetch("https://example.com/org/repo.git", when.Add(time.Hour), "second", "master"); err != nil {
		t.Fatal(err)
	}
	if err := c.Mirror("https://example.com/org/another").RecordFetch("x", when, "main"); err != nil {
		t.Fatal(err)
	}

	md, err := m.Metadata()
	if err != nil {
		t.Fatal(err)
	}
	if got := md.Branches; len(got) != 2 || got[0] != "master" || got[1] != "second" {
		t.Errorf("Branches = %v, want [master second]", got)
	}
	if !md.LastFetched.Equal(when.Add(time.Hour)) {
		t.Errorf("LastFetched = %v", md.LastFetched)
	}
	if md.Dir != m.Dir || md.Key != m.Key {
		t.Errorf("metadata = %+v", md)
	}

	list, err := c.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("List returned %d records, want 2", len(list))
	}
	if list[0].Identity != "https://example.com/org/another" || list[1].Identity != "https://example.com/org/repo" {
		t.Errorf("List order = %s, %s", list[0].Identity, list[1].Identity)
	}
}

func TestCache_ListSkipsCorruptRecords(t *testing.T) {
	c := newTestCache(t)
	if err := os.WriteFile(filepath.Join(c.Root(), "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	list, err := c.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("List = %+v, want empty", list)
	}
}
