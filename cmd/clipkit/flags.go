package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/clipkit/internal/logger"
	"github.com/samcharles93/clipkit/pkg/clip"
)

var (
	logLevel  string
	logFormat string
	debug     bool
	tempDir   string
	workers   int64
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func projectFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "temp-dir",
			Usage:       "directory for the database working copy",
			Destination: &tempDir,
		},
		&cli.Int64Flag{
			Name:        "workers",
			Aliases:     []string{"j"},
			Usage:       "tiles encoded in parallel (0 = GOMAXPROCS)",
			Destination: &workers,
		},
	}
}

func fileFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "file",
		Aliases:     []string{"f"},
		Usage:       "path to .clip file",
		Destination: dst,
		Required:    true,
	}
}

// openProject opens path with the global project options.
func openProject(ctx context.Context, path string) (*clip.Project, error) {
	p, err := clip.Open(ctx, path, clip.Options{
		Logger:  logger.FromContext(ctx),
		TempDir: tempDir,
		Workers: int(workers),
	})
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	return p, nil
}
