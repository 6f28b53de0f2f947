// Package mirror manages the durable local copies of remote repositories.
//
// A Cache owns a root directory holding one bare repository per normalized
// repository identity, next to a lock file and a metadata record:
//
//	<root>/<key>/       bare repository
//	<root>/<key>.lock   cross-process lock
//	<root>/<key>.json   metadata written after each fetch
//
// Mirrors are created lazily and never deleted by this package.
package mirror

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/masmgr/gitchanges/internal/locator"
	"k8s.io/klog/v2"
)

// DefaultLockRetryDelay is the pause between attempts to take a held lock.
const DefaultLockRetryDelay = 100 * time.Millisecond

// Cache is an explicit handle on a mirror root directory. Separate caches on
// the same root still exclude each other through the lock files.
type Cache struct {
	root           string
	lockRetryDelay time.Duration

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// Option configures a Cache.
type Option func(*Cache)

// WithLockRetryDelay sets the pause between lock attempts.
func WithLockRetryDelay(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.lockRetryDelay = d
		}
	}
}

// NewCache creates the root directory if needed and returns a cache on it.
func NewCache(root string, opts ...Option) (*Cache, error) {
	if root == "" {
		return nil, fmt.Errorf("mirror cache directory is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve mirror cache directory %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create mirror cache directory %s: %w", abs, err)
	}

	c := &Cache{
		root:           abs,
		lockRetryDelay: DefaultLockRetryDelay,
		locks:          make(map[string]*sync.RWMutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Root returns the absolute cache directory.
func (c *Cache) Root() string {
	return c.root
}

// Mirror returns the handle for one repository identity. The identity should
// already be normalized (see locator.Identity).
func (c *Cache) Mirror(identity string) *Mirror {
	key := locator.MirrorKey(identity)
	return &Mirror{
		Key:      key,
		Identity: identity,
		Dir:      filepath.Join(c.root, key),
		cache:    c,
	}
}

// rwLock returns the in-process lock shared by every handle on key.
func (c *Cache) rwLock(key string) *sync.RWMutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.RWMutex{}
		c.locks[key] = l
	}
	return l
}

// List returns the metadata of every mirror that completed a fetch, sorted
// by identity.
func (c *Cache) List() ([]Metadata, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read mirror cache directory %s: %w", c.root, err)
	}

	var out []Metadata
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), metadataSuffix) {
			continue
		}
		md, err := readMetadata(filepath.Join(c.root, e.Name()))
		if err != nil {
			klog.Warningf("Skipping unreadable mirror metadata %s: %v", e.Name(), err)
			continue
		}
		out = append(out, *md)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Identity < out[j].Identity
	})
	return out, nil
}
