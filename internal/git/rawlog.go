package git

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/masmgr/gitchanges/internal/vcs"
)

// Each commit record starts with 0x1e (record separator) followed by
// NUL-terminated header fields. The --raw -z entries of the commit follow.
const logFormat = "%x1e%H%x00%P%x00%ct%x00%an%x00%ae%x00%B%x00"

const logHeaderFields = 6

type gitRawEntry struct {
	srcMode filemode.FileMode
	dstMode filemode.FileMode
	status  string // e.g. "M", "A", "D", "T"
	path    string
}

// parseGitLog parses the output of `git log --format=<logFormat> --raw -z`.
func parseGitLog(out []byte) ([]vcs.Commit, error) {
	records := bytes.Split(out, []byte{0x1e})
	commits := make([]vcs.Commit, 0, len(records))

	for _, rec := range records {
		if len(bytes.TrimSpace(rec)) == 0 {
			continue
		}

		c, body, err := parseGitLogHeader(rec)
		if err != nil {
			return nil, err
		}

		rawEntries, _, err := parseGitRawEntries(body)
		if err != nil {
			return nil, fmt.Errorf("commit %s: %w", c.Revision, err)
		}

		files := make([]vcs.FileChange, 0, len(rawEntries))
		for _, e := range rawEntries {
			if !e.srcMode.IsFile() && !e.dstMode.IsFile() {
				continue
			}
			if e.path == "" {
				continue
			}
			files = append(files, vcs.FileChange{Path: e.path, Kind: kindFromGitStatus(e.status)})
		}
		sortFiles(files)
		c.Files = files

		commits = append(commits, c)
	}

	return commits, nil
}

func parseGitLogHeader(rec []byte) (vcs.Commit, []byte, error) {
	i := 0
	// entries of the previous commit end with a newline
	for i < len(rec) && (rec[i] == '\n' || rec[i] == '\r') {
		i++
	}

	fields := make([]string, 0, logHeaderFields)
	for len(fields) < logHeaderFields {
		f, ok := readStringUntilNUL(rec, &i)
		if !ok {
			return vcs.Commit{}, nil, fmt.Errorf("unexpected git log header format")
		}
		fields = append(fields, f)
	}

	sec, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
	if err != nil {
		return vcs.Commit{}, nil, fmt.Errorf("parse committer date %q: %w", fields[2], err)
	}

	ids := strings.Fields(fields[1])
	parents := make([]vcs.Revision, len(ids))
	for i, p := range ids {
		parents[i] = vcs.Revision(p)
	}

	c := vcs.Commit{
		Revision: vcs.Revision(strings.TrimSpace(fields[0])),
		Parents:  parents,
		When:     time.Unix(sec, 0).UTC(),
		Author:   vcs.AuthorInfo{Name: fields[3], Email: fields[4]},
		Comment:  strings.TrimSpace(fields[5]),
	}
	return c, rec[i:], nil
}

func parseGitRawEntries(body []byte) ([]gitRawEntry, int, error) {
	i := 0
	for i < len(body) && (body[i] == '\n' || body[i] == '\r' || body[i] == 0) {
		i++
	}

	entries := make([]gitRawEntry, 0, 16)

	for i < len(body) && body[i] == ':' {
		meta, ok := readUntilNUL(body, &i)
		if !ok {
			return nil, 0, fmt.Errorf("unexpected git --raw format (missing NUL)")
		}

		fields := strings.Fields(string(meta))
		if len(fields) < 5 {
			return nil, 0, fmt.Errorf("unexpected git --raw meta: %q", string(meta))
		}

		srcMode, err := parseGitFileMode(strings.TrimPrefix(fields[0], ":"))
		if err != nil {
			return nil, 0, err
		}
		dstMode, err := parseGitFileMode(fields[1])
		if err != nil {
			return nil, 0, err
		}

		status := fields[len(fields)-1]

		path, ok := readStringUntilNUL(body, &i)
		if !ok {
			return nil, 0, fmt.Errorf("unexpected git --raw format (missing path)")
		}
		// renames and copies are disabled, but keep the stream aligned
		if len(status) > 0 && (status[0] == 'R' || status[0] == 'C') {
			if path, ok = readStringUntilNUL(body, &i); !ok {
				return nil, 0, fmt.Errorf("unexpected git --raw format (missing rename path)")
			}
		}

		entries = append(entries, gitRawEntry{
			srcMode: srcMode,
			dstMode: dstMode,
			status:  status,
			path:    path,
		})

		for i < len(body) && (body[i] == '\n' || body[i] == '\r') {
			i++
		}
	}

	return entries, i, nil
}

func parseGitFileMode(s string) (filemode.FileMode, error) {
	if s == "" {
		return filemode.Empty, nil
	}
	// Modes are printed as octal (e.g. 100644, 120000, 160000, 000000).
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return filemode.Empty, fmt.Errorf("parse file mode %q: %w", s, err)
	}
	return filemode.FileMode(v), nil
}

func kindFromGitStatus(status string) vcs.ChangeKind {
	if status == "" {
		return vcs.ChangeKindModified
	}
	switch status[0] {
	case 'A':
		return vcs.ChangeKindAdded
	case 'D':
		return vcs.ChangeKindDeleted
	default:
		return vcs.ChangeKindModified
	}
}

func readUntilNUL(b []byte, i *int) ([]byte, bool) {
	if *i >= len(b) {
		return nil, false
	}
	j := bytes.IndexByte(b[*i:], 0)
	if j == -1 {
		return nil, false
	}
	start := *i
	end := *i + j
	*i = end + 1
	return b[start:end], true
}

func readStringUntilNUL(b []byte, i *int) (string, bool) {
	raw, ok := readUntilNUL(b, i)
	if !ok {
		return "", false
	}
	return string(raw), true
}
