package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/masmgr/gitchanges/internal/vcs"
)

// JSONDetectionWriter writes detection reports as JSON.
type JSONDetectionWriter struct{}

// JSONDetectionReport is the JSON output structure for a detection.
type JSONDetectionReport struct {
	Repository   string       `json:"repository"`
	Branch       string       `json:"branch"`
	BuildKey     string       `json:"buildKey,omitempty"`
	Previous     *string      `json:"previous,omitempty"`
	NewRevision  string       `json:"newRevision"`
	GeneratedAt  string       `json:"generatedAt"`
	TotalChanges int          `json:"totalChanges"`
	Skipped      int          `json:"skipped"`
	Changes      []JSONChange `json:"changes"`
}

// JSONChange is the JSON output structure for a single change.
type JSONChange struct {
	Revision  string     `json:"revision"`
	When      string     `json:"when"`
	Author    string     `json:"author"`
	Email     string     `json:"email,omitempty"`
	Comment   string     `json:"comment"`
	IssueKeys []string   `json:"issueKeys,omitempty"`
	Files     []JSONFile `json:"files,omitempty"`
}

// JSONFile is one touched path of a change.
type JSONFile struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// Write outputs the detection report as JSON.
func (w *JSONDetectionWriter) Write(report *DetectionReport, options OutputOptions) error {
	changes := reportChanges(report, options.Top)

	jsonChanges := make([]JSONChange, len(changes))
	for i, c := range changes {
		jsonChanges[i] = newJSONChange(c, options.Explain)
	}

	var previous *string
	if !report.Initial() {
		p := report.Previous.String()
		previous = &p
	}

	jsonReport := JSONDetectionReport{
		Repository:  report.Repository,
		Branch:      report.Branch,
		BuildKey:    report.BuildKey,
		Previous:    previous,
		GeneratedAt: report.GeneratedAt.Format(time.RFC3339),
		Changes:     jsonChanges,
	}
	if report.Result != nil {
		jsonReport.NewRevision = report.Result.NewRevision.String()
		jsonReport.TotalChanges = len(report.Result.Changes)
		jsonReport.Skipped = report.Result.Skipped
	}

	return writeJSON(jsonReport, options.OutputPath)
}

func newJSONChange(c vcs.Change, withFiles bool) JSONChange {
	jc := JSONChange{
		Revision:  c.Revision.String(),
		When:      c.When.UTC().Format(time.RFC3339),
		Author:    c.Author.Name,
		Email:     c.Author.Email,
		Comment:   c.Comment,
		IssueKeys: c.IssueKeys,
	}
	if withFiles {
		jc.Files = make([]JSONFile, len(c.Files))
		for i, f := range c.Files {
			jc.Files[i] = JSONFile{Path: f.Path, Kind: f.Kind.String()}
		}
	}
	return jc
}

// JSONMirrorWriter writes mirror listings as JSON.
type JSONMirrorWriter struct{}

// JSONMirrorReport is the JSON output structure for a mirror listing.
type JSONMirrorReport struct {
	CacheRoot   string       `json:"cacheRoot"`
	GeneratedAt string       `json:"generatedAt"`
	Mirrors     []JSONMirror `json:"mirrors"`
}

// JSONMirror is the JSON output structure for one mirror.
type JSONMirror struct {
	Key         string   `json:"key"`
	Identity    string   `json:"identity"`
	URL         string   `json:"url"`
	Dir         string   `json:"dir"`
	Branches    []string `json:"branches"`
	LastFetched string   `json:"lastFetched"`
}

// Write outputs the mirror listing as JSON.
func (w *JSONMirrorWriter) Write(report *MirrorReport, options OutputOptions) error {
	mirrors := limitTop(report.Mirrors, options.Top)
	items := make([]JSONMirror, len(mirrors))
	for i, m := range mirrors {
		items[i] = JSONMirror{
			Key:         m.Key,
			Identity:    m.Identity,
			URL:         m.URL,
			Dir:         m.Dir,
			Branches:    m.Branches,
			LastFetched: m.LastFetched.UTC().Format(time.RFC3339),
		}
	}

	return writeJSON(JSONMirrorReport{
		CacheRoot:   report.CacheRoot,
		GeneratedAt: report.GeneratedAt.Format(time.RFC3339),
		Mirrors:     items,
	}, options.OutputPath)
}

func writeJSON(data interface{}, outputPath string) error {
	out, file, err := openOutputWriter(outputPath)
	if err != nil {
		return err
	}
	if file != nil {
		defer file.Close()
	}
	return encodeJSON(out, data)
}

func encodeJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
