package cmd

import (
	"fmt"
	"time"

	"github.com/masmgr/gitchanges/internal/output"
	"github.com/masmgr/gitchanges/internal/vcs"
	"github.com/urfave/cli/v2"
)

// DetectCmd returns the detect command.
func DetectCmd() *cli.Command {
	flags := append(repositoryFlags(),
		&cli.StringFlag{
			Name:    "previous",
			Aliases: []string{"p"},
			Usage:   "Revision recorded by the previous build (empty for a first build)",
		},
		&cli.StringFlag{
			Name:  "build-key",
			Usage: "Build identifier used in log lines",
			Value: "cli",
		},
		&cli.StringSliceFlag{
			Name:  "include",
			Usage: "Glob patterns a change must touch (can be specified multiple times)",
		},
		&cli.StringSliceFlag{
			Name:  "exclude",
			Usage: "Glob patterns ignored when matching changes (can be specified multiple times)",
		},
	)
	flags = append(flags, outputFlags()...)

	return &cli.Command{
		Name:    "detect",
		Aliases: []string{"d"},
		Usage:   "Report the commits on a branch since the previous build",
		Flags:   flags,
		Action:  detectAction,
	}
}

func detectAction(c *cli.Context) error {
	previous, err := parseRevisionFlag(c.String("previous"))
	if err != nil {
		return err
	}

	cmdCtx, err := NewCommandContext(c)
	if err != nil {
		return err
	}
	repo, err := cmdCtx.Repository(c)
	if err != nil {
		return err
	}

	buildKey := c.String("build-key")
	result, err := repo.CollectChangesSinceLastBuild(c.Context, buildKey, previous)
	if err != nil {
		return err
	}

	return writeDetectionReport(c, &output.DetectionReport{
		Repository:  c.String("repo"),
		Branch:      c.String("branch"),
		BuildKey:    buildKey,
		Previous:    previous,
		GeneratedAt: time.Now(),
		Result:      result,
	})
}

// parseRevisionFlag validates an optional revision flag.
func parseRevisionFlag(s string) (vcs.Revision, error) {
	if s == "" {
		return "", nil
	}
	rev, err := vcs.ParseRevision(s)
	if err != nil {
		return "", fmt.Errorf("invalid revision: %w", err)
	}
	return rev, nil
}
