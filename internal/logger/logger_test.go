package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func plain(buf *bytes.Buffer, level slog.Level) *PrettyHandler {
	h := NewPrettyHandler(buf, &slog.HandlerOptions{Level: level})
	h.SetColor(false)
	return h
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	log := Discard()
	log.Debug("dropped")
	log.With("k", "v").WithGroup("g").Error("dropped")
}

func TestJSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	JSON(&buf, slog.LevelInfo).Info("chunk read", "id", "extrnlid01")

	out := buf.String()
	for _, want := range []string{`"msg":"chunk read"`, `"id":"extrnlid01"`, `"level":"INFO"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %s", want, out)
		}
	}
}

func TestJSONLevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelWarn)
	log.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info at warn level: got %q", buf.String())
	}
	log.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn missing: %q", buf.String())
	}
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	cases := []struct {
		format string
		want   string
	}{
		{"json", `"msg":"hello"`},
		{"text", "msg=hello"},
		{"pretty", "hello n=1"},
		{"", "hello n=1"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		log, err := NewFromConfig(tc.format, "debug", &buf)
		if err != nil {
			t.Fatalf("%q: %v", tc.format, err)
		}
		log.Debug("hello", "n", 1)
		if !strings.Contains(buf.String(), tc.want) {
			t.Fatalf("%q: got %q want substring %q", tc.format, buf.String(), tc.want)
		}
	}
	if _, err := NewFromConfig("xml", "info", &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	ctx := WithContext(context.Background(), JSON(&buf, slog.LevelInfo))
	FromContext(ctx).Info("via context")
	if !strings.Contains(buf.String(), "via context") {
		t.Fatalf("got %q", buf.String())
	}
	if FromContext(context.Background()) == nil {
		t.Fatalf("FromContext without logger returned nil")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"Warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q): got %v want %v", in, got, want)
		}
	}
}

func TestPrettyLine(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	slog.New(plain(&buf, slog.LevelInfo)).Info("saved", "path", "out file.clip", "tiles", 4)

	out := buf.String()
	if strings.Contains(out, "\033[") {
		t.Fatalf("colour written to non-terminal: %q", out)
	}
	if !strings.Contains(out, `INFO  saved path="out file.clip" tiles=4`) {
		t.Fatalf("got %q", out)
	}
}

func TestPrettyGroups(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := plain(&buf, slog.LevelInfo)

	l := slog.New(h.WithAttrs([]slog.Attr{slog.String("file", "a")}).WithGroup("layer").WithGroup("blob"))
	l.Info("x", "tag", "Param", slog.Group("size", slog.Int("w", 2)))

	out := buf.String()
	for _, want := range []string{"file=a", "layer.blob.tag=Param", "layer.blob.size.w=2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %q", want, out)
		}
	}
	if h.WithGroup("") != h {
		t.Fatalf("empty group should return the same handler")
	}
}

func TestPrettyEnabled(t *testing.T) {
	t.Parallel()
	h := plain(&bytes.Buffer{}, slog.LevelWarn)
	ctx := context.Background()
	if h.Enabled(ctx, slog.LevelInfo) || !h.Enabled(ctx, slog.LevelError) {
		t.Fatalf("level gating wrong at warn")
	}
}

func TestNeedsQuoting(t *testing.T) {
	t.Parallel()
	for s, want := range map[string]bool{"simple": false, "": false, "a b": true, "a=b": true, `a"b`: true, "a\tb": true} {
		if got := needsQuoting(s); got != want {
			t.Errorf("needsQuoting(%q): got %v want %v", s, got, want)
		}
	}
}
