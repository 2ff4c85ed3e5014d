package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samcharles93/clipkit/internal/version"
	"github.com/samcharles93/clipkit/pkg/clip"
)

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "log_level: debug\nlog_format: json\ntemp_dir: /var/tmp/clipkit\nworkers: 3\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg := loadConfigFile(path)
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" || cfg.TempDir != "/var/tmp/clipkit" {
		t.Fatalf("config: got %+v", cfg)
	}
	if cfg.Workers == nil || *cfg.Workers != 3 {
		t.Fatalf("workers: got %v want 3", cfg.Workers)
	}
}

func TestLoadConfigFileMissingOrInvalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if cfg := loadConfigFile(filepath.Join(dir, "missing.yaml")); cfg != (Config{}) {
		t.Fatalf("missing file: got %+v want zero", cfg)
	}
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("workers: [1, 2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if cfg := loadConfigFile(bad); cfg != (Config{}) {
		t.Fatalf("invalid file: got %+v want zero", cfg)
	}
}

func TestLayerFileName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":             "layer-7",
		"  ":           "layer-7",
		"Paper":        "layer-7-Paper",
		"line art/ink": "layer-7-line_art_ink",
		"レイヤー 1":       "layer-7-レイヤー_1",
	}
	for in, want := range cases {
		if got := layerFileName(7, in); got != want {
			t.Fatalf("layerFileName(%q): got %q want %q", in, got, want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	t.Parallel()

	cases := map[uint64]string{
		12:          "12 B",
		2048:        "2.00 KiB",
		3 << 20:     "3.00 MiB",
		5 << 30:     "5.00 GiB",
		1<<20 + 512: "1.00 MiB",
	}
	for in, want := range cases {
		if got := formatBytes(in); got != want {
			t.Fatalf("formatBytes(%d): got %q want %q", in, got, want)
		}
	}
}

func TestPrintReport(t *testing.T) {
	t.Parallel()

	rep := &inspectReport{
		Path:           "/tmp/sample.clip",
		FileSize:       4096,
		DatabaseOffset: 1200,
		DatabaseSize:   2048,
		Chunks: []chunkReport{
			{ID: "extrnlidB", Offset: 900, Kind: "raw", Bytes: 40},
			{ID: "extrnlidA", Offset: 88, Kind: "blocks", Blocks: 4, Present: 1, Bytes: 600},
		},
		Canvases: []canvasReport{{
			ID: 1, Width: 512, Height: 256, Resolution: 350,
			Layers: []layerReport{
				{ID: 2, Name: "root", Kind: clip.KindFolder},
				{ID: 3, Name: "paper", Kind: clip.KindPixel, Depth: 1, Bitmap: true},
			},
		}},
	}
	var buf bytes.Buffer
	printReport(&buf, rep)
	out := buf.String()

	for _, want := range []string{
		"File: sample.clip (4.00 KiB)",
		"Database: offset=1200 size=2.00 KiB",
		"blocks=1/4",
		"Canvas 1: 512x256 @ 350 dpi",
		"paper [bitmap]",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "extrnlidA") > strings.Index(out, "extrnlidB") {
		t.Fatalf("chunks not ordered by offset:\n%s", out)
	}
}

func TestPrintVersion(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printVersion(&buf, version.Info{Version: "v0.3.0", Commit: "abc123", GoVersion: "go1.26.0"})
	want := "clipkit v0.3.0\n  commit: abc123\n  go:     go1.26.0\n"
	if got := buf.String(); got != want {
		t.Fatalf("version output: got %q want %q", got, want)
	}
}
