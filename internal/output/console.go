package output

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// ConsoleDetectionWriter writes detection reports to the console.
type ConsoleDetectionWriter struct{}

// Write outputs the detection report to the console.
func (w *ConsoleDetectionWriter) Write(report *DetectionReport, options OutputOptions) error {
	out, file, err := openOutputWriter(options.OutputPath)
	if err != nil {
		return err
	}
	if file != nil {
		defer file.Close()
	}

	title := color.New(color.FgGreen)
	title.Fprintln(out, "Change Detection Results")
	fmt.Fprintf(out, "Repository: %s (%s)\n", report.Repository, report.Branch)
	if report.BuildKey != "" {
		fmt.Fprintf(out, "Build: %s\n", report.BuildKey)
	}
	fmt.Fprintf(out, "Previous: %s\n", previousLabel(report))
	if report.Result == nil {
		return nil
	}
	fmt.Fprintf(out, "Head: %s\n", report.Result.NewRevision)

	changes := reportChanges(report, options.Top)
	if len(report.Result.Changes) == 0 {
		if report.Initial() {
			fmt.Fprintln(out, "\nInitial detection, no changes reported.")
		} else {
			fmt.Fprintln(out, "\nNo changes since the previous build.")
		}
		return nil
	}
	fmt.Fprintf(out, "Changes: %s\n\n", humanize.Comma(int64(len(report.Result.Changes))))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tRevision\tWhen\tAuthor\tFiles\tIssues\tMessage")
	for i, c := range changes {
		added, modified, deleted := kindCounts(c.Files)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1,
			color.YellowString(c.Revision.Short()),
			humanize.Time(c.When),
			c.Author.Name,
			fmt.Sprintf("+%d ~%d -%d", added, modified, deleted),
			strings.Join(c.IssueKeys, ","),
			truncateMessage(subject(c.Comment), 50),
		)
	}
	tw.Flush()

	if options.Explain {
		for _, c := range changes {
			fmt.Fprintf(out, "\n%s %s\n", color.YellowString(c.Revision.Short()), subject(c.Comment))
			for _, f := range c.Files {
				fmt.Fprintf(out, "  %s %s\n", fileKindMarker(f.Kind), f.Path)
			}
		}
	}

	if hidden := len(report.Result.Changes) - len(changes); hidden > 0 {
		fmt.Fprintf(out, "\n... %d more change(s) not shown\n", hidden)
	}
	if report.Result.Skipped > 0 {
		color.New(color.FgRed).Fprintf(out, "\n%d older change(s) skipped by the configured maximum\n", report.Result.Skipped)
	}
	return nil
}

// ConsoleMirrorWriter writes mirror listings to the console.
type ConsoleMirrorWriter struct{}

// Write outputs the mirror listing to the console.
func (w *ConsoleMirrorWriter) Write(report *MirrorReport, options OutputOptions) error {
	out, file, err := openOutputWriter(options.OutputPath)
	if err != nil {
		return err
	}
	if file != nil {
		defer file.Close()
	}

	color.New(color.FgGreen).Fprintln(out, "Mirror Cache")
	fmt.Fprintf(out, "Root: %s\n", report.CacheRoot)
	fmt.Fprintf(out, "Mirrors: %d\n\n", len(report.Mirrors))
	if len(report.Mirrors) == 0 {
		fmt.Fprintln(out, "No mirrors found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Key\tIdentity\tBranches\tLast fetched")
	for _, m := range limitTop(report.Mirrors, options.Top) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			m.Key,
			m.Identity,
			strings.Join(m.Branches, ","),
			humanize.Time(m.LastFetched),
		)
	}
	tw.Flush()
	return nil
}
