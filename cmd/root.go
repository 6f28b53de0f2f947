package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/masmgr/gitchanges/config"
	"github.com/masmgr/gitchanges/internal/output"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "gitchanges",
		Usage:   "Incremental change detection and checkout for Git repositories",
		Version: "1.0.0",
		Commands: []*cli.Command{
			DetectCmd(),
			CheckoutCmd(),
			MirrorsCmd(),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file (.json, .yaml)",
			},
			&cli.StringFlag{
				Name:  "cache-dir",
				Usage: "Directory holding the repository mirrors",
			},
			&cli.StringFlag{
				Name:  "git",
				Usage: "Path to a git executable; enables the native helper",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Bound on each fetch (e.g. 2m); 0 keeps the configured value",
			},
			&cli.IntFlag{
				Name:  "verbose",
				Usage: "Log verbosity (klog -v level)",
			},
		},
		Before: func(c *cli.Context) error {
			return setupLogging(c.Int("verbose"))
		},
		After: func(c *cli.Context) error {
			klog.Flush()
			return nil
		},
	}
}

// Flags shared by the repository commands
func repositoryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "repo",
			Aliases:  []string{"r"},
			Usage:    "Repository URL or local path",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "branch",
			Aliases:  []string{"b"},
			Usage:    "Branch to follow",
			Required: true,
		},
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format (console, json, csv, markdown, ci)",
			Value:   "console",
		},
		&cli.IntFlag{
			Name:    "top",
			Aliases: []string{"n"},
			Usage:   "Number of entries to show (0 for all)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output file path (default: stdout)",
		},
		&cli.BoolFlag{
			Name:  "explain",
			Usage: "List the touched paths of every change",
		},
	}
}

// getOutputFormat parses the output format flag.
func getOutputFormat(s string) output.OutputFormat {
	switch s {
	case "json":
		return output.FormatJSON
	case "csv":
		return output.FormatCSV
	case "markdown", "md":
		return output.FormatMarkdown
	case "ci", "ndjson":
		return output.FormatCI
	default:
		return output.FormatConsole
	}
}

// loadConfig loads configuration from file or defaults and applies the
// global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyOverrides(cfg, globalOverrides{
		CacheDir: c.String("cache-dir"),
		Git:      c.String("git"),
		Timeout:  c.Duration("timeout"),
	})

	// Apply filter overrides from CLI
	if c.IsSet("include") {
		cfg.Filters.Include = c.StringSlice("include")
	}
	if c.IsSet("exclude") {
		cfg.Filters.Exclude = c.StringSlice("exclude")
	}
	return cfg, nil
}

func setupLogging(verbosity int) error {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	if err := fs.Set("v", strconv.Itoa(verbosity)); err != nil {
		return fmt.Errorf("invalid verbosity %d: %w", verbosity, err)
	}
	return fs.Set("logtostderr", "true")
}

// Run executes the CLI application.
func Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := App().RunContext(ctx, os.Args)
	stop()
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
