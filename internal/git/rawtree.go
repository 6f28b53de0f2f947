package git

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/filemode"
)

// gitTreeEntry is one record of `git ls-tree -r -z`.
type gitTreeEntry struct {
	mode filemode.FileMode
	kind string
	hash string
	path string
}

// parseGitTree parses NUL terminated "<mode> <type> <hash>\t<path>" records.
func parseGitTree(out []byte) ([]gitTreeEntry, error) {
	var entries []gitTreeEntry
	i := 0
	for i < len(out) {
		rec, ok := readStringUntilNUL(out, &i)
		if !ok {
			return nil, fmt.Errorf("unterminated tree entry at offset %d", i)
		}
		meta, path, ok := strings.Cut(rec, "\t")
		if !ok || path == "" {
			return nil, fmt.Errorf("malformed tree entry %q", rec)
		}
		fields := strings.Fields(meta)
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed tree entry %q", rec)
		}
		mode, err := parseGitFileMode(fields[0])
		if err != nil {
			return nil, err
		}
		entries = append(entries, gitTreeEntry{mode: mode, kind: fields[1], hash: fields[2], path: path})
	}
	return entries, nil
}

// readBatchHeader reads the "<hash> <type> <size>" line that
// `git cat-file --batch` prints before each object and returns the size.
func readBatchHeader(r *bufio.Reader, want string) (int64, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return 0, fmt.Errorf("failed to read header of blob %s: %w", want, err)
	}
	fields := strings.Fields(line)
	switch {
	case len(fields) == 2 && fields[1] == "missing":
		return 0, fmt.Errorf("blob %s is missing", want)
	case len(fields) != 3 || fields[0] != want:
		return 0, fmt.Errorf("unexpected header %q for blob %s", strings.TrimSpace(line), want)
	case fields[1] != "blob":
		return 0, fmt.Errorf("object %s is a %s, not a blob", want, fields[1])
	}
	size, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("bad size in header %q", strings.TrimSpace(line))
	}
	return size, nil
}

// readBatchTrailer skips what the writer left of body and the newline that
// ends every object.
func readBatchTrailer(r *bufio.Reader, body io.Reader) error {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return err
	}
	b, err := r.ReadByte()
	if err != nil {
		return err
	}
	if b != '\n' {
		return fmt.Errorf("missing object terminator")
	}
	return nil
}
