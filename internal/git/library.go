package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/go-git/go-git/v5/utils/merkletrie"
	"github.com/masmgr/gitchanges/internal/locator"
	"github.com/masmgr/gitchanges/internal/mirror"
	"github.com/masmgr/gitchanges/internal/vcs"
)

// libraryBackend drives the embedded go-git implementation.
type libraryBackend struct{}

func newLibraryBackend() *libraryBackend {
	return &libraryBackend{}
}

func (b *libraryBackend) name() string {
	return "library"
}

func openRepository(path string) (*git.Repository, error) {
	dot := osfs.New(path)
	storage := filesystem.NewStorage(dot, cache.NewObjectLRUDefault())
	return git.Open(storage, nil)
}

func (b *libraryBackend) initMirror(_ context.Context, m *mirror.Mirror, url string) error {
	if !m.Initialized() {
		if _, err := git.PlainInit(m.Dir, true); err != nil && !errors.Is(err, git.ErrRepositoryAlreadyExists) {
			return err
		}
	}
	repo, err := openRepository(m.Dir)
	if err != nil {
		return err
	}
	return initializeOrigin(repo, url)
}

func initializeOrigin(repo *git.Repository, address string) error {
	cfg, err := repo.Config()
	if err != nil {
		return err
	}

	if r, ok := cfg.Remotes[locator.OriginName]; ok && len(r.URLs) == 1 && r.URLs[0] == address {
		return nil
	}
	cfg.Remotes[locator.OriginName] = &config.RemoteConfig{
		Name:  locator.OriginName,
		URLs:  []string{address},
		Fetch: []config.RefSpec{locator.AllBranchesFetchSpec},
	}
	return repo.SetConfig(cfg)
}

func (b *libraryBackend) remoteHasBranch(ctx context.Context, m *mirror.Mirror, access locator.AccessData) (bool, error) {
	repo, err := openRepository(m.Dir)
	if err != nil {
		return false, err
	}
	remote, err := repo.Remote(locator.OriginName)
	if err != nil {
		return false, err
	}
	auth, err := access.Auth.AuthMethod()
	if err != nil {
		return false, err
	}

	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: auth})
	switch {
	case errors.Is(err, transport.ErrEmptyRemoteRepository):
		return false, nil
	case err != nil:
		return false, err
	}

	want := access.Branch.RefInRemote()
	for _, ref := range refs {
		if ref.Name() == want {
			return true, nil
		}
	}
	return false, nil
}

func (b *libraryBackend) fetch(ctx context.Context, m *mirror.Mirror, access locator.AccessData, spec config.RefSpec) error {
	repo, err := openRepository(m.Dir)
	if err != nil {
		return err
	}
	auth, err := access.Auth.AuthMethod()
	if err != nil {
		return err
	}

	switch err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: locator.OriginName,
		RefSpecs:   []config.RefSpec{spec},
		Auth:       auth,
		Tags:       git.NoTags,
	}); {
	case err == nil: // OK
	case errors.Is(err, git.NoErrAlreadyUpToDate):
	case errors.Is(err, transport.ErrEmptyRemoteRepository):
	default:
		return err
	}
	return nil
}

func (b *libraryBackend) resolveLocal(_ context.Context, m *mirror.Mirror, branch locator.BranchName) (vcs.Revision, bool, error) {
	repo, err := openRepository(m.Dir)
	if err != nil {
		return "", false, err
	}
	ref, err := repo.Reference(branch.RefInLocal(), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if _, err := repo.CommitObject(ref.Hash()); err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return vcs.Revision(ref.Hash().String()), true, nil
}

func (b *libraryBackend) contains(_ context.Context, m *mirror.Mirror, rev vcs.Revision) (bool, error) {
	repo, err := openRepository(m.Dir)
	if err != nil {
		return false, err
	}
	_, err = repo.CommitObject(plumbing.NewHash(rev.String()))
	switch {
	case errors.Is(err, plumbing.ErrObjectNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (b *libraryBackend) ancestors(ctx context.Context, m *mirror.Mirror, from, exclude vcs.Revision) ([]vcs.Commit, error) {
	repo, err := openRepository(m.Dir)
	if err != nil {
		return nil, err
	}

	walk := newHistoryWalk(repo)
	if err := walk.push(plumbing.NewHash(from.String()), false); err != nil {
		return nil, fmt.Errorf("failed to walk history of %s: %w", from, err)
	}
	if !exclude.IsZero() {
		if err := walk.push(plumbing.NewHash(exclude.String()), true); err != nil {
			return nil, fmt.Errorf("failed to walk history of %s: %w", exclude, err)
		}
	}
	if err := walk.run(ctx); err != nil {
		return nil, fmt.Errorf("failed to walk history of %s: %w", from, err)
	}

	visible := walk.visible()
	commits := make([]vcs.Commit, 0, len(visible))
	for _, c := range visible {
		files, err := commitFiles(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("failed to diff commit %s: %w", c.Hash, err)
		}
		commits = append(commits, toCommit(c, files))
	}
	return commits, nil
}

func toCommit(c *object.Commit, files []vcs.FileChange) vcs.Commit {
	parents := make([]vcs.Revision, len(c.ParentHashes))
	for i, p := range c.ParentHashes {
		parents[i] = vcs.Revision(p.String())
	}
	return vcs.Commit{
		Revision: vcs.Revision(c.Hash.String()),
		Parents:  parents,
		Author:   vcs.AuthorInfo{Name: c.Author.Name, Email: c.Author.Email},
		Comment:  strings.TrimSpace(c.Message),
		When:     time.Unix(c.Committer.When.Unix(), 0).UTC(),
		Files:    files,
	}
}

// commitFiles extracts file changes from a commit, against its first parent
// or the empty tree for a root commit.
func commitFiles(ctx context.Context, c *object.Commit) ([]vcs.FileChange, error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, err
	}
	parentTree := &object.Tree{}
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return nil, err
		}
		if parentTree, err = parent.Tree(); err != nil {
			return nil, err
		}
	}

	changes, err := object.DiffTreeWithOptions(ctx, parentTree, tree, &object.DiffTreeOptions{})
	if err != nil {
		return nil, err
	}

	files := make([]vcs.FileChange, 0, len(changes))
	for _, ch := range changes {
		if !ch.From.TreeEntry.Mode.IsFile() && !ch.To.TreeEntry.Mode.IsFile() {
			continue
		}
		action, err := ch.Action()
		if err != nil {
			return nil, err
		}

		var fc vcs.FileChange
		switch action {
		case merkletrie.Insert:
			fc = vcs.FileChange{Path: ch.To.Name, Kind: vcs.ChangeKindAdded}
		case merkletrie.Delete:
			fc = vcs.FileChange{Path: ch.From.Name, Kind: vcs.ChangeKindDeleted}
		default:
			fc = vcs.FileChange{Path: ch.To.Name, Kind: vcs.ChangeKindModified}
		}
		if fc.Path == "" {
			continue
		}
		files = append(files, fc)
	}
	sortFiles(files)
	return files, nil
}

func sortFiles(files []vcs.FileChange) {
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
}

func (b *libraryBackend) checkout(ctx context.Context, m *mirror.Mirror, rev vcs.Revision, dir string) error {
	repo, err := openRepository(m.Dir)
	if err != nil {
		return err
	}
	c, err := repo.CommitObject(plumbing.NewHash(rev.String()))
	if err != nil {
		return err
	}
	tree, err := c.Tree()
	if err != nil {
		return err
	}

	w := newTreeWriter(dir)
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		name, entry, err := walker.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := writeEntry(repo, w, name, entry); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
}

func writeEntry(repo *git.Repository, w *treeWriter, name string, entry object.TreeEntry) error {
	if entry.Mode == filemode.Dir || entry.Mode == filemode.Submodule {
		return w.write(name, entry.Mode, nil)
	}
	blob, err := repo.BlobObject(entry.Hash)
	if err != nil {
		return err
	}
	r, err := blob.Reader()
	if err != nil {
		return err
	}
	defer r.Close()
	return w.write(name, entry.Mode, r)
}
