package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/clipkit/internal/logger"
)

func repackCmd() *cli.Command {
	var (
		path   string
		out    string
		keepDB bool
	)

	return &cli.Command{
		Name:  "repack",
		Usage: "Read a .clip file and write it back out",
		Flags: []cli.Flag{
			fileFlag(&path),
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output .clip path",
				Destination: &out,
				Required:    true,
			},
			&cli.BoolFlag{
				Name:        "keep-database",
				Usage:       "copy the database bytes unchanged instead of refreshing chunk offsets",
				Destination: &keepDB,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			p, err := openProject(ctx, path)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			if keepDB {
				f, err := os.Create(out)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				n, err := p.File.WriteTo(f)
				if cerr := f.Close(); err == nil {
					err = cerr
				}
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: write %s: %v", out, err), 1)
				}
				log.Info("repacked", "out", out, "bytes", n, "chunks", len(p.File.Chunks))
				return nil
			}

			if err := p.SaveFile(ctx, out); err != nil {
				return cli.Exit(fmt.Sprintf("error: write %s: %v", out, err), 1)
			}
			log.Info("repacked", "out", out, "chunks", len(p.File.Chunks))
			return nil
		},
	}
}
