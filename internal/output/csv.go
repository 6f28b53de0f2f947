package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// CSVDetectionWriter writes detection reports as CSV, one row per change.
type CSVDetectionWriter struct{}

// Write outputs the detection report as CSV.
func (w *CSVDetectionWriter) Write(report *DetectionReport, options OutputOptions) error {
	changes := reportChanges(report, options.Top)

	writer, file, err := createCSVWriter(options.OutputPath)
	if err != nil {
		return err
	}
	if file != nil {
		defer file.Close()
	}

	headers := []string{"Revision", "When", "Author", "Email", "Subject", "Added", "Modified", "Deleted", "IssueKeys"}
	if options.Explain {
		headers = append(headers, "Paths")
	}
	if err := writer.Write(headers); err != nil {
		return err
	}

	for _, c := range changes {
		added, modified, deleted := kindCounts(c.Files)
		row := []string{
			c.Revision.String(),
			c.When.UTC().Format(reportDateTimeLayout),
			c.Author.Name,
			c.Author.Email,
			subject(c.Comment),
			fmt.Sprintf("%d", added),
			fmt.Sprintf("%d", modified),
			fmt.Sprintf("%d", deleted),
			strings.Join(c.IssueKeys, ";"),
		}
		if options.Explain {
			paths := make([]string, len(c.Files))
			for i, f := range c.Files {
				paths[i] = f.Path
			}
			row = append(row, strings.Join(paths, ";"))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// CSVMirrorWriter writes mirror listings as CSV.
type CSVMirrorWriter struct{}

// Write outputs the mirror listing as CSV.
func (w *CSVMirrorWriter) Write(report *MirrorReport, options OutputOptions) error {
	writer, file, err := createCSVWriter(options.OutputPath)
	if err != nil {
		return err
	}
	if file != nil {
		defer file.Close()
	}

	if err := writer.Write([]string{"Key", "Identity", "URL", "Dir", "Branches", "LastFetched"}); err != nil {
		return err
	}
	for _, m := range limitTop(report.Mirrors, options.Top) {
		row := []string{
			m.Key,
			m.Identity,
			m.URL,
			m.Dir,
			strings.Join(m.Branches, ";"),
			m.LastFetched.UTC().Format(reportDateTimeLayout),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func createCSVWriter(outputPath string) (*csv.Writer, *os.File, error) {
	if outputPath != "" {
		file, err := os.Create(outputPath)
		if err != nil {
			return nil, nil, err
		}
		return csv.NewWriter(file), file, nil
	}
	return csv.NewWriter(os.Stdout), nil, nil
}
