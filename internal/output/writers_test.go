package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/masmgr/gitchanges/internal/mirror"
	"github.com/masmgr/gitchanges/internal/vcs"
)

var testWhen = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testReport() *DetectionReport {
	return &DetectionReport{
		Repository:  "https://example.com/org/repo.git",
		Branch:      "master",
		BuildKey:    "PLAN-JOB",
		Previous:    vcs.Revision("1111111111111111111111111111111111111111"),
		GeneratedAt: testWhen,
		Result: &vcs.BuildRepositoryChanges{
			NewRevision: vcs.Revision("3333333333333333333333333333333333333333"),
			Changes: []vcs.Change{
				{
					Revision:  vcs.Revision("3333333333333333333333333333333333333333"),
					Author:    vcs.AuthorInfo{Name: "Ann", Email: "ann@example.com"},
					Comment:   "PROJ-2 second change\n\nbody",
					When:      testWhen,
					Files:     []vcs.FileChange{{Path: "b.txt", Kind: vcs.ChangeKindAdded}, {Path: "a.txt", Kind: vcs.ChangeKindDeleted}},
					IssueKeys: []string{"PROJ-2"},
				},
				{
					Revision: vcs.Revision("2222222222222222222222222222222222222222"),
					Author:   vcs.AuthorInfo{Name: "Bob"},
					Comment:  "first change\n",
					When:     testWhen.Add(-time.Hour),
					Files:    []vcs.FileChange{{Path: "a.txt", Kind: vcs.ChangeKindModified}},
				},
			},
			Skipped: 1,
		},
	}
}

func testMirrors() *MirrorReport {
	return &MirrorReport{
		CacheRoot:   "/cache",
		GeneratedAt: testWhen,
		Mirrors: []mirror.Metadata{
			{Key: "example.com-org-repo-0123456789ab", Identity: "https://example.com/org/repo", URL: "https://example.com/org/repo.git",
				Dir: "/cache/example.com-org-repo-0123456789ab", Branches: []string{"master", "second"}, LastFetched: testWhen},
		},
	}
}

func readTestFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	return string(data)
}

func TestNewDetectionReportWriter(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{FormatConsole, "*output.ConsoleDetectionWriter"},
		{FormatJSON, "*output.JSONDetectionWriter"},
		{FormatCSV, "*output.CSVDetectionWriter"},
		{FormatMarkdown, "*output.MarkdownDetectionWriter"},
		{FormatCI, "*output.CIDetectionWriter"},
		{OutputFormat("unknown"), "*output.ConsoleDetectionWriter"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			got := typeName(NewDetectionReportWriter(tt.format))
			if got != tt.want {
				t.Errorf("NewDetectionReportWriter(%q) = %s, want %s", tt.format, got, tt.want)
			}
		})
	}
}

func TestNewMirrorReportWriter(t *testing.T) {
	if got := typeName(NewMirrorReportWriter(FormatCI)); got != "*output.JSONMirrorWriter" {
		t.Errorf("NewMirrorReportWriter(ci) = %s", got)
	}
	if got := typeName(NewMirrorReportWriter(FormatConsole)); got != "*output.ConsoleMirrorWriter" {
		t.Errorf("NewMirrorReportWriter(console) = %s", got)
	}
}

func TestJSONDetectionWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	if err := (&JSONDetectionWriter{}).Write(testReport(), OutputOptions{Format: FormatJSON, OutputPath: path, Explain: true}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var got JSONDetectionReport
	if err := json.Unmarshal([]byte(readTestFile(t, path)), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Previous == nil || *got.Previous != "1111111111111111111111111111111111111111" {
		t.Errorf("previous = %v", got.Previous)
	}
	if got.TotalChanges != 2 || got.Skipped != 1 || len(got.Changes) != 2 {
		t.Errorf("totals = %d/%d/%d", got.TotalChanges, got.Skipped, len(got.Changes))
	}
	want := []JSONFile{{Path: "b.txt", Kind: "added"}, {Path: "a.txt", Kind: "deleted"}}
	if diff := cmp.Diff(want, got.Changes[0].Files); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
	if got.Changes[0].When != "2024-03-01T12:00:00Z" {
		t.Errorf("when = %s", got.Changes[0].When)
	}
}

func TestJSONDetectionWriter_InitialAndTop(t *testing.T) {
	report := testReport()
	report.Previous = ""
	path := filepath.Join(t.TempDir(), "report.json")
	if err := (&JSONDetectionWriter{}).Write(report, OutputOptions{OutputPath: path, Top: 1}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var got JSONDetectionReport
	if err := json.Unmarshal([]byte(readTestFile(t, path)), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Previous != nil {
		t.Errorf("previous = %v, want omitted", *got.Previous)
	}
	if len(got.Changes) != 1 || got.TotalChanges != 2 {
		t.Errorf("changes = %d of %d", len(got.Changes), got.TotalChanges)
	}
	if got.Changes[0].Files != nil {
		t.Errorf("files should be omitted without explain")
	}
}

func TestCIDetectionWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ci.ndjson")
	if err := (&CIDetectionWriter{}).Write(testReport(), OutputOptions{Format: FormatCI, OutputPath: path}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(readTestFile(t, path)), "\n")
	if len(lines) != 3 { // 1 summary + 2 changes
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}

	var summary CISummary
	if err := json.Unmarshal([]byte(lines[0]), &summary); err != nil {
		t.Fatalf("invalid summary: %v", err)
	}
	wantSummary := CISummary{
		Type:         "summary",
		Repository:   "https://example.com/org/repo.git",
		Branch:       "master",
		NewRevision:  "3333333333333333333333333333333333333333",
		TotalChanges: 2,
		Skipped:      1,
		IssueKeys:    1,
	}
	if diff := cmp.Diff(wantSummary, summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	var entry CIChangeEntry
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("invalid entry: %v", err)
	}
	if entry.Type != "change" || entry.Subject != "PROJ-2 second change" || entry.Files != 2 {
		t.Errorf("entry = %+v", entry)
	}
}

func TestCIDetectionWriter_FailedReport(t *testing.T) {
	report := testReport()
	report.Result = nil
	path := filepath.Join(t.TempDir(), "ci.ndjson")
	if err := (&CIDetectionWriter{}).Write(report, OutputOptions{OutputPath: path}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(readTestFile(t, path)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only a summary line, got %d", len(lines))
	}
}

func TestCSVDetectionWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	if err := (&CSVDetectionWriter{}).Write(testReport(), OutputOptions{OutputPath: path, Explain: true}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(readTestFile(t, path))).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	want := []string{"3333333333333333333333333333333333333333", "2024-03-01T12:00:00Z", "Ann", "ann@example.com",
		"PROJ-2 second change", "1", "0", "1", "PROJ-2", "b.txt;a.txt"}
	if diff := cmp.Diff(want, records[1]); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestMarkdownDetectionWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	if err := (&MarkdownDetectionWriter{}).Write(testReport(), OutputOptions{OutputPath: path, Explain: true}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out := readTestFile(t, path)
	for _, want := range []string{
		"**Branch:** `master`",
		"**Total Changes:** 2",
		"| 1 | `3333333` |",
		"- A `b.txt`",
		"_1 older change(s) skipped by the configured maximum._",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsoleDetectionWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	if err := (&ConsoleDetectionWriter{}).Write(testReport(), OutputOptions{OutputPath: path, Top: 1}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out := readTestFile(t, path)
	for _, want := range []string{"Change Detection Results", "PROJ-2 second change", "1 more change(s) not shown"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "first change") {
		t.Errorf("output should be limited to the top change:\n%s", out)
	}
}

func TestConsoleDetectionWriter_Initial(t *testing.T) {
	report := testReport()
	report.Previous = ""
	report.Result.Changes = []vcs.Change{}
	report.Result.Skipped = 0
	path := filepath.Join(t.TempDir(), "report.txt")
	if err := (&ConsoleDetectionWriter{}).Write(report, OutputOptions{OutputPath: path}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if out := readTestFile(t, path); !strings.Contains(out, "Initial detection") {
		t.Errorf("output = %s", out)
	}
}

func TestMirrorWriters(t *testing.T) {
	dir := t.TempDir()
	formats := []OutputFormat{FormatConsole, FormatJSON, FormatCSV, FormatMarkdown}
	for _, format := range formats {
		t.Run(string(format), func(t *testing.T) {
			path := filepath.Join(dir, string(format))
			if err := NewMirrorReportWriter(format).Write(testMirrors(), OutputOptions{OutputPath: path}); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			if out := readTestFile(t, path); !strings.Contains(out, "example.com-org-repo-0123456789ab") {
				t.Errorf("output missing mirror key:\n%s", out)
			}
		})
	}
}

func TestJSONMirrorWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirrors.json")
	if err := (&JSONMirrorWriter{}).Write(testMirrors(), OutputOptions{OutputPath: path}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	var got JSONMirrorReport
	if err := json.Unmarshal([]byte(readTestFile(t, path)), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got.Mirrors) != 1 || got.Mirrors[0].LastFetched != "2024-03-01T12:00:00Z" {
		t.Errorf("mirrors = %+v", got.Mirrors)
	}
	if diff := cmp.Diff([]string{"master", "second"}, got.Mirrors[0].Branches); diff != "" {
		t.Errorf("branches mismatch (-want +got):\n%s", diff)
	}
}

func typeName(v interface{}) string {
	return fmt.Sprintf("%T", v)
}
