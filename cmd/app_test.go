package cmd

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/masmgr/gitchanges/internal/output"
	"github.com/masmgr/gitchanges/internal/testrepo"
)

func runApp(t *testing.T, args ...string) error {
	t.Helper()
	app := App()
	app.Writer = io.Discard
	app.ErrWriter = io.Discard
	return app.Run(append([]string{"gitchanges"}, args...))
}

func readJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("invalid JSON in %s: %v", path, err)
	}
}

func TestApp_DetectCheckoutMirrors(t *testing.T) {
	bin := testrepo.RequireGit(t)
	repo := testrepo.Build(t, 4)
	tmp := t.TempDir()
	global := []string{
		"--config", filepath.Join(tmp, "none.json"),
		"--cache-dir", filepath.Join(tmp, "mirrors"),
	}

	for _, helper := range []string{"", bin} {
		name := "library"
		if helper != "" {
			name = "native"
		}
		t.Run(name, func(t *testing.T) {
			args := append([]string(nil), global...)
			if helper != "" {
				args = append(args, "--git", helper)
			}

			out := filepath.Join(t.TempDir(), "detect.json")
			detect := append(append([]string(nil), args...), "detect",
				"--repo", repo.Dir, "--branch", testrepo.Master,
				"--previous", repo.Rev(t, testrepo.M2).String(),
				"--format", "json", "--output", out)
			if err := runApp(t, detect...); err != nil {
				t.Fatalf("detect failed: %v", err)
			}
			var report output.JSONDetectionReport
			readJSON(t, out, &report)
			if report.NewRevision != repo.Rev(t, testrepo.M4).String() {
				t.Fatalf("newRevision = %s", report.NewRevision)
			}
			if len(report.Changes) != 1 || report.Changes[0].Comment != testrepo.Comment(testrepo.M4) {
				t.Fatalf("changes = %+v", report.Changes)
			}

			dir := t.TempDir()
			checkout := append(append([]string(nil), args...), "checkout",
				"--repo", repo.Dir, "--branch", testrepo.Master,
				"--revision", report.NewRevision, "--dir", dir)
			if err := runApp(t, checkout...); err != nil {
				t.Fatalf("checkout failed: %v", err)
			}
			if diff := cmp.Diff(testrepo.ExpectedTree(testrepo.M4), testrepo.ReadTree(t, dir)); diff != "" {
				t.Errorf("tree mismatch (-want +got):\n%s", diff)
			}

			listing := filepath.Join(t.TempDir(), "mirrors.json")
			mirrors := append(append([]string(nil), args...), "mirrors", "--format", "json", "--output", listing)
			if err := runApp(t, mirrors...); err != nil {
				t.Fatalf("mirrors failed: %v", err)
			}
			var got output.JSONMirrorReport
			readJSON(t, listing, &got)
			if len(got.Mirrors) != 1 {
				t.Fatalf("mirrors = %+v", got.Mirrors)
			}
		})
	}
}

func TestApp_DetectRejectsBadRevision(t *testing.T) {
	tmp := t.TempDir()
	err := runApp(t, "--config", filepath.Join(tmp, "none.json"), "--cache-dir", filepath.Join(tmp, "mirrors"),
		"detect", "--repo", "https://example.com/r.git", "--branch", "master", "--previous", "HEAD")
	if err == nil {
		t.Fatal("expected error for a symbolic previous revision")
	}
}
