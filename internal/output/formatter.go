package output

import (
	"time"

	"github.com/masmgr/gitchanges/internal/mirror"
	"github.com/masmgr/gitchanges/internal/vcs"
)

// Compile-time interface conformance checks.
var (
	_ DetectionReportWriter = (*ConsoleDetectionWriter)(nil)
	_ DetectionReportWriter = (*JSONDetectionWriter)(nil)
	_ DetectionReportWriter = (*CSVDetectionWriter)(nil)
	_ DetectionReportWriter = (*MarkdownDetectionWriter)(nil)
	_ DetectionReportWriter = (*CIDetectionWriter)(nil)

	_ MirrorReportWriter = (*ConsoleMirrorWriter)(nil)
	_ MirrorReportWriter = (*JSONMirrorWriter)(nil)
	_ MirrorReportWriter = (*CSVMirrorWriter)(nil)
	_ MirrorReportWriter = (*MarkdownMirrorWriter)(nil)
)

// OutputFormat represents the output format type.
type OutputFormat string

const (
	FormatConsole  OutputFormat = "console"
	FormatJSON     OutputFormat = "json"
	FormatCSV      OutputFormat = "csv"
	FormatMarkdown OutputFormat = "markdown"
	FormatCI       OutputFormat = "ci"
)

// OutputOptions controls output behavior.
type OutputOptions struct {
	Format     OutputFormat
	Top        int
	OutputPath string
	// Explain lists the touched paths of every change.
	Explain bool
}

// DetectionReport holds the result of one change detection.
type DetectionReport struct {
	Repository  string
	Branch      string
	BuildKey    string
	Previous    vcs.Revision
	GeneratedAt time.Time
	Result      *vcs.BuildRepositoryChanges
}

// Initial reports whether the detection had no baseline.
func (r *DetectionReport) Initial() bool {
	return r.Previous.IsZero()
}

// MirrorReport holds the mirrors present in a cache directory.
type MirrorReport struct {
	CacheRoot   string
	GeneratedAt time.Time
	Mirrors     []mirror.Metadata
}

// DetectionReportWriter writes detection reports.
type DetectionReportWriter interface {
	Write(report *DetectionReport, options OutputOptions) error
}

// MirrorReportWriter writes mirror listings.
type MirrorReportWriter interface {
	Write(report *MirrorReport, options OutputOptions) error
}

// NewDetectionReportWriter creates a report writer for the specified format.
func NewDetectionReportWriter(format OutputFormat) DetectionReportWriter {
	switch format {
	case FormatJSON:
		return &JSONDetectionWriter{}
	case FormatCSV:
		return &CSVDetectionWriter{}
	case FormatMarkdown:
		return &MarkdownDetectionWriter{}
	case FormatCI:
		return &CIDetectionWriter{}
	default:
		return &ConsoleDetectionWriter{}
	}
}

// NewMirrorReportWriter creates a mirror listing writer for the specified format.
func NewMirrorReportWriter(format OutputFormat) MirrorReportWriter {
	switch format {
	case FormatJSON, FormatCI:
		return &JSONMirrorWriter{}
	case FormatCSV:
		return &CSVMirrorWriter{}
	case FormatMarkdown:
		return &MarkdownMirrorWriter{}
	default:
		return &ConsoleMirrorWriter{}
	}
}
