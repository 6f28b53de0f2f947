package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// CIDetectionWriter writes detection reports as NDJSON (one JSON object per line) for CI pipelines.
type CIDetectionWriter struct{}

// CISummary is the first line of CI output, containing aggregate statistics.
type CISummary struct {
	Type         string `json:"type"`
	Repository   string `json:"repository"`
	Branch       string `json:"branch"`
	Initial      bool   `json:"initial"`
	NewRevision  string `json:"newRevision"`
	TotalChanges int    `json:"totalChanges"`
	Skipped      int    `json:"skipped"`
	IssueKeys    int    `json:"issueKeys"`
}

// CIChangeEntry represents a single change in CI output.
type CIChangeEntry struct {
	Type      string   `json:"type"`
	Revision  string   `json:"revision"`
	When      string   `json:"when"`
	Author    string   `json:"author"`
	Subject   string   `json:"subject"`
	Files     int      `json:"files"`
	IssueKeys []string `json:"issueKeys,omitempty"`
}

// Write outputs the detection report as NDJSON.
func (w *CIDetectionWriter) Write(report *DetectionReport, options OutputOptions) error {
	changes := reportChanges(report, options.Top)

	out, file, err := openOutputWriter(options.OutputPath)
	if err != nil {
		return err
	}
	if file != nil {
		defer file.Close()
	}

	summary := CISummary{
		Type:       "summary",
		Repository: report.Repository,
		Branch:     report.Branch,
		Initial:    report.Initial(),
	}
	if report.Result != nil {
		summary.NewRevision = report.Result.NewRevision.String()
		summary.TotalChanges = len(report.Result.Changes)
		summary.Skipped = report.Result.Skipped
		keys := make(map[string]struct{})
		for _, c := range report.Result.Changes {
			for _, k := range c.IssueKeys {
				keys[k] = struct{}{}
			}
		}
		summary.IssueKeys = len(keys)
	}
	if err := writeNDJSONLine(out, summary); err != nil {
		return err
	}

	for _, c := range changes {
		entry := CIChangeEntry{
			Type:      "change",
			Revision:  c.Revision.String(),
			When:      c.When.UTC().Format(time.RFC3339),
			Author:    c.Author.Name,
			Subject:   subject(c.Comment),
			Files:     len(c.Files),
			IssueKeys: c.IssueKeys,
		}
		if err := writeNDJSONLine(out, entry); err != nil {
			return err
		}
	}

	return nil
}

func writeNDJSONLine(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal NDJSON: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
