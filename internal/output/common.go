package output

import (
	"io"
	"os"
	"strings"

	"github.com/masmgr/gitchanges/internal/vcs"
)

const (
	reportDateTimeLayout = "2006-01-02T15:04:05Z07:00"
)

func limitTop[T any](items []T, top int) []T {
	if top <= 0 || top >= len(items) {
		return items
	}
	return items[:top]
}

// reportChanges returns the changes to print, or nil for a failed report.
func reportChanges(report *DetectionReport, top int) []vcs.Change {
	if report.Result == nil {
		return nil
	}
	return limitTop(report.Result.Changes, top)
}

func previousLabel(report *DetectionReport) string {
	if report.Initial() {
		return "(initial)"
	}
	return report.Previous.String()
}

// kindCounts returns the number of added, modified and deleted paths.
func kindCounts(files []vcs.FileChange) (added, modified, deleted int) {
	for _, f := range files {
		switch f.Kind {
		case vcs.ChangeKindAdded:
			added++
		case vcs.ChangeKindModified:
			modified++
		case vcs.ChangeKindDeleted:
			deleted++
		}
	}
	return added, modified, deleted
}

func fileKindMarker(k vcs.ChangeKind) string {
	switch k {
	case vcs.ChangeKindAdded:
		return "A"
	case vcs.ChangeKindDeleted:
		return "D"
	default:
		return "M"
	}
}

func subject(comment string) string {
	return strings.TrimSpace(vcs.Commit{Comment: comment}.Subject())
}

func truncateMessage(msg string, maxLen int) string {
	if len(msg) <= maxLen {
		return msg
	}
	return msg[:maxLen-3] + "..."
}

func openOutputWriter(outputPath string) (io.Writer, *os.File, error) {
	if outputPath == "" {
		return os.Stdout, nil, nil
	}
	file, err := os.Create(outputPath)
	if err != nil {
		return nil, nil, err
	}
	return file, file, nil
}
