// Package testrepo builds deterministic multi-branch repositories for tests.
//
// The history grows in five stages:
//
//	stage 1  master: M1 "initial commit"
//	stage 2  master: M2 "commit 2 on master"
//	stage 3  second: S3 "commit 3 on second" (forked from M1)
//	stage 4  master: M4 "commit 4 on master"
//	                 (adds symlinks and a .gitattributes asking for crlf text)
//	stage 5  second: S5 "commit 5 on second"
//
// Objects are written straight into a bare repository with fixed signatures,
// so every build of a stage yields the same revisions.
package testrepo

import (
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/masmgr/gitchanges/internal/vcs"
)

// Commit labels.
const (
	M1 = "M1"
	M2 = "M2"
	S3 = "S3"
	M4 = "M4"
	S5 = "S5"
)

// Branch names used by the fixture.
const (
	Master = "master"
	Second = "second"
)

// LastStage is the final stage of the history.
const LastStage = 5

// Entry is one file of an expected tree.
type Entry struct {
	Content string
	Mode    filemode.FileMode
}

// Tree maps slash separated paths to entries.
type Tree map[string]Entry

type step struct {
	label   string
	branch  string
	parent  string
	message string
	tree    Tree
	at      time.Duration
}

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

var signature = object.Signature{Name: "Test Author", Email: "author@example.com"}

var steps = buildSteps()

func buildSteps() []step {
	m1 := Tree{
		"file.txt":   {Content: "initial\n", Mode: filemode.Regular},
		"readme.txt": {Content: "readme\n", Mode: filemode.Regular},
		"bin/run.sh": {Content: "#!/bin/sh\necho run\n", Mode: filemode.Executable},
	}
	m2 := with(m1, Tree{
		"file.txt":   {Content: "master 2\n", Mode: filemode.Regular},
		"master.txt": {Content: "master\n", Mode: filemode.Regular},
	})
	s3 := with(m1, Tree{
		"file.txt":   {Content: "second 3\n", Mode: filemode.Regular},
		"second.txt": {Content: "second\n", Mode: filemode.Regular},
	}, "readme.txt")
	m4 := with(m2, Tree{
		"master.txt":     {Content: "master 4\n", Mode: filemode.Regular},
		"dir/nested.txt": {Content: "nested\n", Mode: filemode.Regular},
		"link":           {Content: "file.txt", Mode: filemode.Symlink},
		"abs-link":       {Content: "/etc/hostname", Mode: filemode.Symlink},
		".gitattributes": {Content: "*.txt text eol=crlf\n", Mode: filemode.Regular},
	})
	s5 := with(s3, Tree{
		"second.txt": {Content: "second 5\n", Mode: filemode.Regular},
	})

	return []step{
		{label: M1, branch: Master, message: "initial commit", tree: m1, at: 1 * time.Hour},
		{label: M2, branch: Master, parent: M1, message: "commit 2 on master", tree: m2, at: 2 * time.Hour},
		{label: S3, branch: Second, parent: M1, message: "commit 3 on second", tree: s3, at: 3 * time.Hour},
		{label: M4, branch: Master, parent: M2, message: "commit 4 on master", tree: m4, at: 4 * time.Hour},
		{label: S5, branch: Second, parent: S3, message: "commit 5 on second", tree: s5, at: 5 * time.Hour},
	}
}

func with(base Tree, add Tree, remove ...string) Tree {
	out := make(Tree, len(base)+len(add))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range add {
		out[k] = v
	}
	for _, k := range remove {
		delete(out, k)
	}
	return out
}

// ExpectedTree returns the files of a labelled commit.
func ExpectedTree(label string) Tree {
	for _, s := range steps {
		if s.label == label {
			return with(s.tree, nil)
		}
	}
	return nil
}

// Comment returns the commit comment of a labelled commit.
func Comment(label string) string {
	for _, s := range steps {
		if s.label == label {
			return s.message
		}
	}
	return ""
}

// Repo is a bare fixture repository that can be advanced stage by stage.
type Repo struct {
	Dir   string
	Stage int

	repo *git.Repository
	revs map[string]plumbing.Hash
}

// New creates an empty bare repository in a temporary directory.
func New(t testing.TB) *Repo {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "origin.git")
	repo, err := git.PlainInit(dir, true)
	if err != nil {
		t.Fatalf("init fixture repository: %v", err)
	}
	return &Repo{Dir: dir, repo: repo, revs: make(map[string]plumbing.Hash)}
}

// Build creates a fixture repository advanced to stage.
func Build(t testing.TB, stage int) *Repo {
	t.Helper()
	r := New(t)
	r.Advance(t, stage)
	return r
}

// Advance applies every stage up to and including stage.
func (r *Repo) Advance(t testing.TB, stage int) {
	t.Helper()
	for r.Stage < stage && r.Stage < len(steps) {
		s := steps[r.Stage]
		if err := r.apply(s); err != nil {
			t.Fatalf("apply %s: %v", s.label, err)
		}
		r.Stage++
	}
}

// Linear creates a bare repository with a single branch of n commits, one
// minute apart, and returns it with their revisions, oldest first.
func Linear(t testing.TB, n int) (*Repo, []vcs.Revision) {
	t.Helper()
	r := New(t)
	revs := make([]vcs.Revision, 0, n)
	for i := 0; i < n; i++ {
		s := step{
			label:   fmt.Sprintf("L%d", i),
			branch:  Master,
			message: fmt.Sprintf("linear commit %d", i),
			tree:    Tree{"file.txt": {Content: fmt.Sprintf("%d\n", i), Mode: filemode.Regular}},
			at:      time.Duration(i+1) * time.Minute,
		}
		if i > 0 {
			s.parent = fmt.Sprintf("L%d", i-1)
		}
		if err := r.apply(s); err != nil {
			t.Fatalf("apply %s: %v", s.label, err)
		}
		revs = append(revs, r.Rev(t, s.label))
	}
	return r, revs
}

// Rev returns the revision of a labelled commit. The commit must exist.
func (r *Repo) Rev(t testing.TB, label string) vcs.Revision {
	t.Helper()
	h, ok := r.revs[label]
	if !ok {
		t.Fatalf("commit %s not created yet (stage %d)", label, r.Stage)
	}
	return vcs.Revision(h.String())
}

// Revs returns the revisions of the labelled commits, in order.
func (r *Repo) Revs(t testing.TB, labels ...string) []vcs.Revision {
	t.Helper()
	out := make([]vcs.Revision, len(labels))
	for i, l := range labels {
		out[i] = r.Rev(t, l)
	}
	return out
}

func (r *Repo) apply(s step) error {
	st := r.repo.Storer
	treeHash, err := writeTree(st, s.tree, "")
	if err != nil {
		return err
	}

	sig := signature
	sig.When = epoch.Add(s.at)
	c := &object.Commit{
		Author:    sig,
		Committer: sig,
		Message:   s.message + "\n",
		TreeHash:  treeHash,
	}
	if s.parent != "" {
		c.ParentHashes = []plumbing.Hash{r.revs[s.parent]}
	}

	obj := st.NewEncodedObject()
	if err := c.Encode(obj); err != nil {
		return err
	}
	h, err := st.SetEncodedObject(obj)
	if err != nil {
		return err
	}
	r.revs[s.label] = h

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(s.branch), h)
	return st.SetReference(ref)
}

// writeTree stores the subtree of files below dir and returns its hash.
func writeTree(st storer.EncodedObjectStorer, files Tree, dir string) (plumbing.Hash, error) {
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}

	subdirs := make(map[string]bool)
	var entries []object.TreeEntry
	for p, e := range files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			subdirs[rest[:i]] = true
			continue
		}
		h, err := writeBlob(st, e.Content)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, object.TreeEntry{Name: rest, Mode: e.Mode, Hash: h})
	}
	for name := range subdirs {
		h, err := writeTree(st, files, path.Join(dir, name))
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: h})
	}

	// git orders tree entries as if directory names ended in '/'
	sort.Slice(entries, func(i, j int) bool {
		return sortName(entries[i]) < sortName(entries[j])
	})

	tree := &object.Tree{Entries: entries}
	obj := st.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	return st.SetEncodedObject(obj)
}

func sortName(e object.TreeEntry) string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}
	return e.Name
}

func writeBlob(st storer.EncodedObjectStorer, content string) (plumbing.Hash, error) {
	obj := st.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := w.Write([]byte(content)); err != nil {
		w.Close()
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	return st.SetEncodedObject(obj)
}

// Empty creates a bare repository without any commit.
func Empty(t testing.TB) string {
	t.Helper()
	return New(t).Dir
}

// RequireGit skips the test when no git executable is available and returns
// its path otherwise.
func RequireGit(t testing.TB) string {
	t.Helper()
	p, err := exec.LookPath("git")
	if err != nil {
		t.Skip("git executable not available")
	}
	return p
}

// ReadTree reads every file below dir into a Tree. Directories that end up
// empty are not recorded.
func ReadTree(t testing.TB, dir string) Tree {
	t.Helper()
	out := make(Tree)
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == dir || info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(p)
			if err != nil {
				return err
			}
			out[rel] = Entry{Content: target, Mode: filemode.Symlink}
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		mode := filemode.Regular
		if info.Mode()&0o111 != 0 {
			mode = filemode.Executable
		}
		out[rel] = Entry{Content: string(data), Mode: mode}
		return nil
	})
	if err != nil {
		t.Fatalf("read tree %s: %v", dir, err)
	}
	return out
}

// Scribble fills dir with content that belongs to no fixture revision.
func Scribble(t testing.TB, dir string) {
	t.Helper()
	files := map[string]string{
		"stale.txt":          "stale\n",
		"file.txt":           "stale file\n",
		"old/deep/stale.txt": "stale\n",
		".git/HEAD":          "ref: refs/heads/master\n",
	}
	for p, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}
