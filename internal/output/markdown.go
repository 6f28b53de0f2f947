package output

import (
	"fmt"
	"strings"
)

// MarkdownDetectionWriter writes detection reports as Markdown.
type MarkdownDetectionWriter struct{}

// Write outputs the detection report as Markdown.
func (w *MarkdownDetectionWriter) Write(report *DetectionReport, options OutputOptions) error {
	out, file, err := openOutputWriter(options.OutputPath)
	if err != nil {
		return err
	}
	if file != nil {
		defer file.Close()
	}

	fmt.Fprintf(out, "# %s Change Detection Results\n", statusEmoji(report))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "**Repository:** %s\n\n", report.Repository)
	fmt.Fprintf(out, "**Branch:** `%s`\n\n", report.Branch)
	if report.BuildKey != "" {
		fmt.Fprintf(out, "**Build:** %s\n\n", escapeMarkdown(report.BuildKey))
	}
	fmt.Fprintf(out, "**Previous:** `%s`\n\n", previousLabel(report))
	if report.Result == nil {
		return nil
	}
	fmt.Fprintf(out, "**Head:** `%s`\n\n", report.Result.NewRevision)
	fmt.Fprintf(out, "**Total Changes:** %d\n\n", len(report.Result.Changes))

	changes := reportChanges(report, options.Top)
	if len(changes) == 0 {
		return nil
	}

	fmt.Fprintln(out, "## Changes")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "| # | Revision | When | Author | Files | Issues | Subject |")
	fmt.Fprintln(out, "|---|----------|------|--------|-------|--------|---------|")
	for i, c := range changes {
		fmt.Fprintf(out, "| %d | `%s` | %s | %s | %d | %s | %s |\n",
			i+1, c.Revision.Short(), c.When.UTC().Format(reportDateTimeLayout),
			escapeMarkdown(c.Author.Name), len(c.Files),
			escapeMarkdown(strings.Join(c.IssueKeys, ", ")),
			escapeMarkdown(truncateMessage(subject(c.Comment), 60)))
	}

	if options.Explain {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "## Touched Paths")
		for _, c := range changes {
			fmt.Fprintln(out)
			fmt.Fprintf(out, "### `%s` %s\n\n", c.Revision.Short(), escapeMarkdown(subject(c.Comment)))
			for _, f := range c.Files {
				fmt.Fprintf(out, "- %s `%s`\n", fileKindMarker(f.Kind), f.Path)
			}
		}
	}

	if report.Result.Skipped > 0 {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "_%d older change(s) skipped by the configured maximum._\n", report.Result.Skipped)
	}
	return nil
}

// MarkdownMirrorWriter writes mirror listings as Markdown.
type MarkdownMirrorWriter struct{}

// Write outputs the mirror listing as Markdown.
func (w *MarkdownMirrorWriter) Write(report *MirrorReport, options OutputOptions) error {
	out, file, err := openOutputWriter(options.OutputPath)
	if err != nil {
		return err
	}
	if file != nil {
		defer file.Close()
	}

	fmt.Fprintln(out, "# Mirror Cache")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "**Root:** `%s`\n\n", report.CacheRoot)
	if len(report.Mirrors) == 0 {
		fmt.Fprintln(out, "No mirrors found.")
		return nil
	}

	fmt.Fprintln(out, "| Key | Identity | Branches | Last Fetched |")
	fmt.Fprintln(out, "|-----|----------|----------|--------------|")
	for _, m := range limitTop(report.Mirrors, options.Top) {
		fmt.Fprintf(out, "| `%s` | %s | %s | %s |\n",
			m.Key, escapeMarkdown(m.Identity),
			escapeMarkdown(strings.Join(m.Branches, ", ")),
			m.LastFetched.UTC().Format(reportDateTimeLayout))
	}
	return nil
}

func statusEmoji(report *DetectionReport) string {
	switch {
	case report.Result == nil:
		return "🔴"
	case len(report.Result.Changes) == 0:
		return "⚪"
	default:
		return "🟢"
	}
}

func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"|", "\\|",
		"*", "\\*",
		"_", "\\_",
		"`", "\\`",
	)
	return replacer.Replace(s)
}
