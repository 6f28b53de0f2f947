package git

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-git/v5/config"
	"github.com/masmgr/gitchanges/internal/locator"
	"github.com/masmgr/gitchanges/internal/mirror"
	"github.com/masmgr/gitchanges/internal/vcs"
)

// nativeBackend drives an external git executable.
type nativeBackend struct {
	bin string
}

func newNativeBackend(bin string) *nativeBackend {
	return &nativeBackend{bin: bin}
}

func (b *nativeBackend) name() string {
	return "native"
}

func (b *nativeBackend) command(m *mirror.Mirror, args ...string) *gitCommand {
	return &gitCommand{bin: b.bin, gitDir: m.Dir, args: args}
}

func (b *nativeBackend) initMirror(ctx context.Context, m *mirror.Mirror, url string) error {
	if !m.Initialized() {
		init := &gitCommand{bin: b.bin, args: []string{"init", "--bare", "--quiet", m.Dir}}
		if _, err := init.run(ctx); err != nil {
			return err
		}
	}

	out, err := b.command(m, "config", "--get", "remote.origin.url").run(ctx)
	if err == nil && strings.TrimSpace(string(out)) == url {
		return nil
	}
	if _, err := b.command(m, "config", "remote.origin.url", url).run(ctx); err != nil {
		return err
	}
	_, err = b.command(m, "config", "--replace-all", "remote.origin.fetch", locator.AllBranchesFetchSpec.String()).run(ctx)
	return err
}

func (b *nativeBackend) remoteHasBranch(ctx context.Context, m *mirror.Mirror, access locator.AccessData) (bool, error) {
	want := access.Branch.RefInRemote().String()
	cmd := b.command(m, "ls-remote", "--heads", locator.OriginName, want)
	if err := cmd.withAuth(access.Auth); err != nil {
		return false, err
	}
	out, err := cmd.run(ctx)
	if err != nil {
		return false, err
	}

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 2 && fields[1] == want {
			return true, nil
		}
	}
	return false, sc.Err()
}

func (b *nativeBackend) fetch(ctx context.Context, m *mirror.Mirror, access locator.AccessData, spec config.RefSpec) error {
	cmd := b.command(m, "fetch", "--no-tags", "--quiet", locator.OriginName, spec.String())
	if err := cmd.withAuth(access.Auth); err != nil {
		return err
	}
	_, err := cmd.run(ctx)
	return err
}

func (b *nativeBackend) resolveLocal(ctx context.Context, m *mirror.Mirror, branch locator.BranchName) (vcs.Revision, bool, error) {
	out, err := b.command(m, "rev-parse", "--verify", "--quiet", branch.RefInLocal().String()+"^{commit}").run(ctx)
	if err != nil {
		// --quiet exits with 1 and no output for a missing ref
		if exitCode(err) == 1 {
			return "", false, nil
		}
		return "", false, err
	}
	rev := strings.TrimSpace(string(out))
	if rev == "" {
		return "", false, nil
	}
	return vcs.Revision(rev), true, nil
}

func (b *nativeBackend) contains(ctx context.Context, m *mirror.Mirror, rev vcs.Revision) (bool, error) {
	_, err := b.command(m, "cat-file", "-e", rev.String()+"^{commit}").run(ctx)
	if err != nil {
		if isMissingObject(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// isMissingObject reports whether git failed only because the object does
// not exist or is not a commit. Broken mirrors fail differently.
func isMissingObject(err error) bool {
	var gerr *gitError
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.exitCode == 1 {
		return true
	}
	return gerr.exitCode == 128 && strings.Contains(gerr.stderr, "Not a valid object name")
}

func (b *nativeBackend) ancestors(ctx context.Context, m *mirror.Mirror, from, exclude vcs.Revision) ([]vcs.Commit, error) {
	args := []string{
		"log",
		"--no-color",
		"--format=" + logFormat,
		"--raw", "-z",
		"--no-renames",
		"--no-abbrev",
		"--root",
		"--diff-merges=first-parent",
		from.String(),
	}
	if !exclude.IsZero() {
		args = append(args, "^"+exclude.String())
	}
	args = append(args, "--")

	out, err := b.command(m, args...).run(ctx)
	if err != nil {
		return nil, err
	}
	return parseGitLog(out)
}

// checkout writes raw blobs listed by ls-tree, so neither .gitattributes
// nor core.autocrlf alter the recorded content.
func (b *nativeBackend) checkout(ctx context.Context, m *mirror.Mirror, rev vcs.Revision, dir string) error {
	out, err := b.command(m, "ls-tree", "-r", "-z", "--full-tree", rev.String()).run(ctx)
	if err != nil {
		return err
	}
	entries, err := parseGitTree(out)
	if err != nil {
		return err
	}

	w := newTreeWriter(dir)
	var blobs []gitTreeEntry
	var request strings.Builder
	for _, e := range entries {
		if e.kind != "blob" {
			if err := w.write(e.path, e.mode, nil); err != nil {
				return fmt.Errorf("failed to write %s: %w", e.path, err)
			}
			continue
		}
		blobs = append(blobs, e)
		request.WriteString(e.hash + "\n")
	}
	if len(blobs) == 0 {
		return nil
	}

	cmd := b.command(m, "cat-file", "--batch")
	return cmd.stream(ctx, strings.NewReader(request.String()), func(r *bufio.Reader) error {
		for _, e := range blobs {
			if err := ctx.Err(); err != nil {
				return err
			}
			size, err := readBatchHeader(r, e.hash)
			if err != nil {
				return err
			}
			body := io.LimitReader(r, size)
			if err := w.write(e.path, e.mode, body); err != nil {
				return fmt.Errorf("failed to write %s: %w", e.path, err)
			}
			if err := readBatchTrailer(r, body); err != nil {
				return fmt.Errorf("failed to read blob %s: %w", e.hash, err)
			}
		}
		return nil
	})
}
