package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/clipkit/internal/version"
)

func versionCmd() *cli.Command {
	var asJSON bool

	return &cli.Command{
		Name:  "version",
		Usage: "Print build information",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print build information as JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			info := version.Resolve()
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			printVersion(os.Stdout, info)
			return nil
		},
	}
}

func printVersion(w io.Writer, info version.Info) {
	fmt.Fprintf(w, "clipkit %s\n", info.Version)
	for _, kv := range [][2]string{
		{"commit", info.Commit},
		{"built", info.BuildTime},
		{"go", info.GoVersion},
	} {
		if kv[1] != "" {
			fmt.Fprintf(w, "  %-7s %s\n", kv[0]+":", kv[1])
		}
	}
}
