package main

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/clipkit/pkg/clip"
	"github.com/samcharles93/clipkit/pkg/csf"
)

type inspectReport struct {
	Path           string         `json:"path"`
	FileSize       int64          `json:"file_size"`
	DatabaseOffset int64          `json:"database_offset"`
	DatabaseSize   int            `json:"database_size"`
	Chunks         []chunkReport  `json:"chunks,omitempty"`
	Canvases       []canvasReport `json:"canvases"`
}

type chunkReport struct {
	ID      string `json:"id"`
	Offset  int64  `json:"offset"`
	Kind    string `json:"kind"`
	Blocks  int    `json:"blocks,omitempty"`
	Present int    `json:"present,omitempty"`
	Bytes   int    `json:"bytes"`
}

type canvasReport struct {
	ID         int64         `json:"id"`
	Width      float64       `json:"width"`
	Height     float64       `json:"height"`
	Resolution float64       `json:"resolution"`
	Layers     []layerReport `json:"layers"`
}

type layerReport struct {
	ID     int64          `json:"id"`
	Name   string         `json:"name"`
	Kind   clip.LayerKind `json:"kind"`
	Depth  int            `json:"depth"`
	Bitmap bool           `json:"bitmap"`
}

func inspectCmd() *cli.Command {
	var (
		path       string
		asJSON     bool
		showChunks bool
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Summarise the container, its chunks and the layer tree",
		Flags: []cli.Flag{
			fileFlag(&path),
			&cli.BoolFlag{Name: "json", Usage: "print the report as JSON", Destination: &asJSON},
			&cli.BoolFlag{Name: "chunks", Usage: "list external chunks", Destination: &showChunks},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			p, err := openProject(ctx, path)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			rep, err := buildReport(ctx, p, path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if !showChunks && !asJSON {
				rep.Chunks = nil
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			printReport(os.Stdout, rep)
			return nil
		},
	}
}

func buildReport(ctx context.Context, p *clip.Project, path string) (*inspectReport, error) {
	f := p.File
	rep := &inspectReport{
		Path:           path,
		FileSize:       f.FileSize,
		DatabaseOffset: f.DatabaseOffset,
		DatabaseSize:   len(f.Database),
	}
	offs := f.Offsets()
	for _, c := range f.Chunks {
		rep.Chunks = append(rep.Chunks, summariseChunk(c, offs[c.ID]))
	}

	canvases, err := p.Canvases(ctx)
	if err != nil {
		return nil, err
	}
	for _, cv := range canvases {
		cr := canvasReport{ID: cv.ID, Width: cv.Width, Height: cv.Height, Resolution: cv.Resolution}
		tree, err := p.Tree(ctx, cv)
		if err != nil {
			return nil, err
		}
		var walkErr error
		tree.Walk(func(i, depth int) bool {
			n := tree.Nodes[i]
			has, err := p.HasBitmap(ctx, n.ID)
			if err != nil {
				walkErr = err
				return false
			}
			cr.Layers = append(cr.Layers, layerReport{ID: n.ID, Name: n.Name, Kind: n.Kind, Depth: depth, Bitmap: has})
			return true
		})
		if walkErr != nil {
			return nil, walkErr
		}
		rep.Canvases = append(rep.Canvases, cr)
	}
	return rep, nil
}

func summariseChunk(c *csf.ExternalChunk, off int64) chunkReport {
	r := chunkReport{ID: c.ID, Offset: off, Kind: "raw", Bytes: len(c.Raw)}
	if c.IsBlockData() {
		r.Kind = "blocks"
		r.Blocks = len(c.Blocks.Blocks)
		r.Bytes = c.Blocks.Size()
		for i := range c.Blocks.Blocks {
			if c.Blocks.Blocks[i].Present {
				r.Present++
			}
		}
	}
	return r
}

func printReport(w io.Writer, rep *inspectReport) {
	_, _ = fmt.Fprintf(w, "CLIP Inspect: %s\n", rep.Path)
	_, _ = fmt.Fprintf(w, "File: %s (%s)\n", filepath.Base(rep.Path), formatBytes(uint64(rep.FileSize)))
	_, _ = fmt.Fprintf(w, "Database: offset=%d size=%s\n", rep.DatabaseOffset, formatBytes(uint64(rep.DatabaseSize)))

	if len(rep.Chunks) > 0 {
		_, _ = fmt.Fprintf(w, "\nExternal chunks (%d):\n", len(rep.Chunks))
		chunks := slices.Clone(rep.Chunks)
		slices.SortFunc(chunks, func(a, b chunkReport) int { return cmp.Compare(a.Offset, b.Offset) })
		for _, c := range chunks {
			if c.Kind == "blocks" {
				_, _ = fmt.Fprintf(w, "  %-48s off=%-10d blocks=%d/%d size=%s\n", c.ID, c.Offset, c.Present, c.Blocks, formatBytes(uint64(c.Bytes)))
			} else {
				_, _ = fmt.Fprintf(w, "  %-48s off=%-10d raw size=%s\n", c.ID, c.Offset, formatBytes(uint64(c.Bytes)))
			}
		}
	}

	for _, cv := range rep.Canvases {
		_, _ = fmt.Fprintf(w, "\nCanvas %d: %gx%g @ %g dpi\n", cv.ID, cv.Width, cv.Height, cv.Resolution)
		for _, l := range cv.Layers {
			mark := ""
			if l.Bitmap {
				mark = " [bitmap]"
			}
			_, _ = fmt.Fprintf(w, "  %s%-4d %-10s %s%s\n", strings.Repeat("  ", l.Depth), l.ID, l.Kind, l.Name, mark)
		}
	}
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.2f GiB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MiB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KiB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
