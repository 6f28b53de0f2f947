package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/masmgr/gitchanges/internal/engine"
	"github.com/urfave/cli/v2"
)

// CheckoutCmd returns the checkout command.
func CheckoutCmd() *cli.Command {
	flags := append(repositoryFlags(),
		&cli.StringFlag{
			Name:     "revision",
			Usage:    "Full commit id to check out",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "dir",
			Usage:    "Target directory; its contents are replaced",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "build-key",
			Usage: "Build identifier used in log lines",
			Value: "cli",
		},
		&cli.IntFlag{
			Name:  "build-number",
			Usage: "Build number used in log lines",
		},
	)

	return &cli.Command{
		Name:    "checkout",
		Aliases: []string{"co"},
		Usage:   "Write the tree of a revision into a directory",
		Flags:   flags,
		Action:  checkoutAction,
	}
}

func checkoutAction(c *cli.Context) error {
	rev, err := parseRevisionFlag(c.String("revision"))
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

	bc := engine.BuildContext{BuildKey: c.String("build-key"), BuildNumber: c.Int("build-number")}
	dir := c.String("dir")
	if err := repo.RetrieveSourceCode(c.Context, bc, rev, dir); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "%s %s into %s\n", color.GreenString("Checked out"), rev.Short(), dir)
	return nil
}
