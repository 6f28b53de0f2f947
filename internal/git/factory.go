package git

import (
	"strings"
	"time"

	"k8s.io/klog/v2"
)

// RepositoryConfig holds the settings that pick and tune a strategy.
type RepositoryConfig struct {
	// GitCapability is the path of a git executable. When set, the native
	// strategy is used; otherwise the embedded library strategy.
	GitCapability string
	// FetchTimeout bounds every network operation. Zero means no limit.
	FetchTimeout time.Duration
}

// NativeEnabled reports whether a git executable is configured.
func (c RepositoryConfig) NativeEnabled() bool {
	return strings.TrimSpace(c.GitCapability) != ""
}

// Select returns the operation helper for a repository configuration. The
// choice is made once and the helper is reused for every call.
func Select(cfg RepositoryConfig) OperationHelper {
	if cfg.NativeEnabled() {
		klog.V(2).Infof("Using native git helper (%s)", cfg.GitCapability)
		return newHelper(newNativeBackend(strings.TrimSpace(cfg.GitCapability)), cfg.FetchTimeout)
	}
	klog.V(2).Infof("Using library git helper")
	return newHelper(newLibraryBackend(), cfg.FetchTimeout)
}
