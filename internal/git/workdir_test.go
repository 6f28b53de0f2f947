package git

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/google/go-cmp/cmp"
	"github.com/masmgr/gitchanges/internal/testrepo"
)

func TestPrepare_EmptiesDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"a.txt", "sub/b.txt", ".git/HEAD"} {
		full := filepath.Join(dir, p)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := Prepare(dir); err != nil {
		t.Fatalf("Prepare error = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("directory still has %d entries", len(entries))
	}
}

func TestPrepare_CreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := Prepare(dir); err != nil {
		t.Fatalf("Prepare error = %v", err)
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
}

func TestPrepare_Errors(t *testing.T) {
	if err := Prepare(""); err == nil {
		t.Error("expected error for empty path")
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Prepare(file); err == nil {
		t.Error("expected error when target is a file")
	}
}

func TestTreeWriter(t *testing.T) {
	dir := t.TempDir()
	w := newTreeWriter(dir)

	entries := []struct {
		name    string
		mode    filemode.FileMode
		content string
	}{
		{"a/b/file.txt", filemode.Regular, "one\ntwo\n"},
		{"bin/run.sh", filemode.Executable, "#!/bin/sh\n"},
		{"rel", filemode.Symlink, "a/b/file.txt"},
		{"deep/abs", filemode.Symlink, "/etc/hostname"},
		{"up", filemode.Symlink, "../outside"},
	}
	for _, e := range entries {
		if err := w.write(e.name, e.mode, strings.NewReader(e.content)); err != nil {
			t.Fatalf("write %s: %v", e.name, err)
		}
	}
	if err := w.write("vendor/sub", filemode.Submodule, nil); err != nil {
		t.Fatalf("write submodule: %v", err)
	}

	want := testrepo.Tree{
		"a/b/file.txt": {Content: "one\ntwo\n", Mode: filemode.Regular},
		"bin/run.sh":   {Content: "#!/bin/sh\n", Mode: filemode.Executable},
		"rel":          {Content: "a/b/file.txt", Mode: filemode.Symlink},
		"deep/abs":     {Content: "/etc/hostname", Mode: filemode.Symlink},
		"up":           {Content: "../outside", Mode: filemode.Symlink},
	}
	if diff := cmp.Diff(want, testrepo.ReadTree(t, dir)); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
	if fi, err := os.Stat(filepath.Join(dir, "vendor", "sub")); err != nil || !fi.IsDir() {
		t.Errorf("submodule directory not created: %v", err)
	}
}
