package cmd

import (
	"fmt"
	"time"

	"github.com/masmgr/gitchanges/internal/output"
	"github.com/urfave/cli/v2"
)

// MirrorsCmd returns the mirrors command.
func MirrorsCmd() *cli.Command {
	return &cli.Command{
		Name:   "mirrors",
		Usage:  "List the mirrors held in the cache",
		Flags:  outputFlags(),
		Action: mirrorsAction,
	}
}

func mirrorsAction(c *cli.Context) error {
	cmdCtx, err := NewCommandContext(c)
	if err != nil {
		return err
	}

	mirrors, err := cmdCtx.Cache.List()
	if err != nil {
		return fmt.Errorf("failed to list mirrors: %w", err)
	}

	return writeMirrorReport(c, &output.MirrorReport{
		CacheRoot:   cmdCtx.Cache.Root(),
		GeneratedAt: time.Now(),
		Mirrors:     mirrors,
	})
}
