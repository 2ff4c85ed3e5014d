package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/clipkit/internal/logger"
	"github.com/samcharles93/clipkit/pkg/clip"
)

func extractCmd() *cli.Command {
	var (
		path  string
		out   string
		masks bool
	)

	return &cli.Command{
		Name:  "extract",
		Usage: "Decode layer bitmaps to PNG files",
		Flags: []cli.Flag{
			fileFlag(&path),
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output directory",
				Value:       ".",
				Destination: &out,
			},
			&cli.Int64SliceFlag{
				Name:  "layer",
				Usage: "layer id to extract (repeatable, default all layers with a bitmap)",
			},
			&cli.BoolFlag{Name: "mask", Usage: "also extract layer masks", Destination: &masks},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			p, err := openProject(ctx, path)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			if err := os.MkdirAll(out, 0o755); err != nil {
				return cli.Exit(fmt.Sprintf("error: create output dir: %v", err), 1)
			}

			names, err := layerNames(ctx, p)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			ids := c.Int64Slice("layer")
			if len(ids) == 0 {
				for id := range names {
					ids = append(ids, id)
				}
				slices.Sort(ids)
			}

			written := 0
			for _, id := range ids {
				img, err := p.LayerBitmap(ctx, id)
				switch {
				case errors.Is(err, clip.ErrNoBitmap):
					log.Debug("layer has no bitmap", "layer", id)
					continue
				case err != nil:
					return cli.Exit(fmt.Sprintf("error: layer %d: %v", id, err), 1)
				}
				base := layerFileName(id, names[id])
				if err := writePNG(filepath.Join(out, base+".png"), img); err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				written++

				if !masks {
					continue
				}
				mask, err := p.LayerMask(ctx, id)
				if errors.Is(err, clip.ErrNoBitmap) {
					continue
				}
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: layer %d mask: %v", id, err), 1)
				}
				if err := writePNG(filepath.Join(out, base+".mask.png"), mask); err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				written++
			}
			log.Info("extracted bitmaps", "files", written, "dir", out)
			return nil
		},
	}
}

// layerNames maps every layer id reachable from a canvas to its name.
func layerNames(ctx context.Context, p *clip.Project) (map[int64]string, error) {
	canvases, err := p.Canvases(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string)
	for _, cv := range canvases {
		tree, err := p.Tree(ctx, cv)
		if err != nil {
			return nil, err
		}
		for _, n := range tree.Nodes {
			names[n.ID] = n.Name
		}
	}
	return names, nil
}

func layerFileName(id int64, name string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, strings.TrimSpace(name))
	if clean == "" {
		return fmt.Sprintf("layer-%d", id)
	}
	return fmt.Sprintf("layer-%d-%s", id, clean)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
