package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/clipkit/internal/logger"
)

func main() {
	app := &cli.Command{
		Name:  "clipkit",
		Usage: "Inspect, extract and repack layered .clip project files",
		Flags: append(loggingFlags(), projectFlags()...),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			applyConfig(cmd, LoadConfig())
			if debug {
				logLevel = "debug"
			}
			log, err := logger.NewFromConfig(logFormat, logLevel, os.Stderr)
			if err != nil {
				return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return logger.WithContext(ctx, log), nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			inspectCmd(),
			extractCmd(),
			repackCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
