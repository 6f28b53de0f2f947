package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/masmgr/gitchanges/internal/output"
)

func writeDetectionReport(c *cli.Context, report *output.DetectionReport) error {
	opts := OutputOptions(c)
	writer := output.NewDetectionReportWriter(opts.Format)
	return writer.Write(report, opts)
}

func writeMirrorReport(c *cli.Context, report *output.MirrorReport) error {
	opts := OutputOptions(c)
	writer := output.NewMirrorReportWriter(opts.Format)
	return writer.Write(report, opts)
}
