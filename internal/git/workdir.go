package git

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/filemode"
)

// Prepare makes dir an empty directory, creating it when missing and
// removing whatever an earlier checkout left behind.
func Prepare(dir string) error {
	if dir == "" {
		return fmt.Errorf("target directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}

	fi, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat target directory: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("target %s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read target directory: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("failed to clean target directory: %w", err)
		}
	}
	return nil
}

// treeWriter writes tree entries below root exactly as they are recorded.
// No attribute, eol or filter conversion is applied.
type treeWriter struct {
	root string
	fs   billy.Filesystem
}

func newTreeWriter(root string) *treeWriter {
	return &treeWriter{root: root, fs: osfs.New(root)}
}

// write stores one entry. content is the blob for files and symlinks and is
// ignored for directories and submodules.
func (w *treeWriter) write(name string, mode filemode.FileMode, content io.Reader) error {
	switch mode {
	case filemode.Dir, filemode.Submodule:
		// submodules are left as empty directories
		return w.fs.MkdirAll(name, 0o755)
	case filemode.Symlink:
		target, err := io.ReadAll(content)
		if err != nil {
			return err
		}
		return w.symlink(name, string(target))
	}

	perm := os.FileMode(0o644)
	if mode == filemode.Executable {
		perm = 0o755
	}
	f, err := w.fs.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// symlink creates the link with its target untouched. The chrooted billy
// filesystem would rebase absolute targets below root.
func (w *treeWriter) symlink(name, target string) error {
	full := filepath.Join(w.root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.Symlink(target, full)
}
