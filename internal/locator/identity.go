package locator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// scp-like syntax: [user@]host:path
var scpLikeURL = regexp.MustCompile(`^(?:[^@/]+@)?([^:/]+):(.+)$`)

// Identity normalizes a remote locator so that every spelling of the same
// repository maps to one string. The result keys the mirror cache.
//
// URLs lose their user info, trailing slash and ".git" suffix and get a
// lowercase scheme and host. scp-like locators become ssh:// URLs. Local paths
// and file:// URLs become absolute, clean, symlink-resolved paths.
func Identity(location string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", fmt.Errorf("repository location is empty")
	}

	if strings.Contains(location, "://") {
		u, err := url.Parse(location)
		if err != nil {
			return "", fmt.Errorf("failed to parse repository URL %q: %w", location, err)
		}
		if strings.EqualFold(u.Scheme, "file") {
			return localIdentity(u.Path)
		}
		if u.Host == "" {
			return "", fmt.Errorf("repository URL %q has no host", location)
		}
		return remoteIdentity(strings.ToLower(u.Scheme), u.Host, u.Path), nil
	}

	// a single letter before the colon is a windows drive, not a host
	if m := scpLikeURL.FindStringSubmatch(location); m != nil && len(m[1]) > 1 {
		return remoteIdentity("ssh", m[1], "/"+strings.TrimPrefix(m[2], "/")), nil
	}

	return localIdentity(location)
}

func remoteIdentity(scheme, host, p string) string {
	p = path.Clean("/" + p)
	p = strings.TrimSuffix(p, "/")
	p = strings.TrimSuffix(p, ".git")
	return scheme + "://" + strings.ToLower(host) + p
}

func localIdentity(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve repository path %q: %w", p, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return filepath.ToSlash(filepath.Clean(abs)), nil
}

const maxSlugLength = 48

var slugUnsafe = regexp.MustCompile(`[^a-zA-Z0-9._]+`)

// MirrorKey derives a filesystem-safe, stable key from an identity: a
// readable slug followed by a short hash of the full identity.
func MirrorKey(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	hash := hex.EncodeToString(sum[:])[:12]

	slug := identity
	if i := strings.Index(slug, "://"); i >= 0 {
		slug = slug[i+3:]
	}
	slug = strings.Trim(slugUnsafe.ReplaceAllString(slug, "-"), "-.")
	if len(slug) > maxSlugLength {
		// the tail carries the repository name
		slug = strings.TrimLeft(slug[len(slug)-maxSlugLength:], "-.")
	}
	if slug == "" {
		return hash
	}
	return slug + "-" + hash
}
