package git

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/google/go-cmp/cmp"
)

func TestParseGitTree(t *testing.T) {
	out := "100644 blob aaa\tfile.txt\x00" +
		"100755 blob bbb\tbin/run.sh\x00" +
		"120000 blob ccc\tlink\x00" +
		"160000 commit ddd\tvendor/sub\x00" +
		"100644 blob eee\tname with\ttab\x00"

	entries, err := parseGitTree([]byte(out))
	if err != nil {
		t.Fatalf("parseGitTree: %v", err)
	}
	want := []gitTreeEntry{
		{mode: filemode.Regular, kind: "blob", hash: "aaa", path: "file.txt"},
		{mode: filemode.Executable, kind: "blob", hash: "bbb", path: "bin/run.sh"},
		{mode: filemode.Symlink, kind: "blob", hash: "ccc", path: "link"},
		{mode: filemode.Submodule, kind: "commit", hash: "ddd", path: "vendor/sub"},
		{mode: filemode.Regular, kind: "blob", hash: "eee", path: "name with\ttab"},
	}
	if diff := cmp.Diff(want, entries, cmp.AllowUnexported(gitTreeEntry{})); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestParseGitTree_Errors(t *testing.T) {
	for _, out := range []string{
		"100644 blob aaa\tfile.txt",
		"100644 blob aaa file.txt\x00",
		"100644 aaa\tfile.txt\x00",
		"10x644 blob aaa\tfile.txt\x00",
	} {
		if _, err := parseGitTree([]byte(out)); err == nil {
			t.Errorf("parseGitTree(%q) succeeded", out)
		}
	}
}

func TestReadBatch(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("aaa blob 6\none\r\n\n\nbbb missing\n"))

	size, err := readBatchHeader(r, "aaa")
	if err != nil || size != 6 {
		t.Fatalf("readBatchHeader = %d, %v", size, err)
	}
	body := io.LimitReader(r, size)
	head := make([]byte, 3)
	if _, err := io.ReadFull(body, head); err != nil || string(head) != "one" {
		t.Fatalf("body starts with %q, %v", head, err)
	}
	if err := readBatchTrailer(r, body); err != nil {
		t.Fatalf("readBatchTrailer: %v", err)
	}

	if _, err := readBatchHeader(r, "bbb"); err == nil || !strings.Contains(err.Error(), "missing") {
		t.Errorf("missing blob error = %v", err)
	}
}

func TestReadBatchHeader_Unexpected(t *testing.T) {
	for _, in := range []string{
		"ccc blob 3\n",
		"aaa tree 3\n",
		"aaa blob x\n",
		"aaa blob 3",
	} {
		if _, err := readBatchHeader(bufio.NewReader(strings.NewReader(in)), "aaa"); err == nil {
			t.Errorf("readBatchHeader(%q) succeeded", in)
		}
	}
}
