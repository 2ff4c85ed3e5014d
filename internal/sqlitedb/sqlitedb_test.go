package sqlitedb

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
)

func openEmpty(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), nil, Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInsertAndTable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openEmpty(t)

	if err := db.CreateTable(ctx, "Layer",
		Column{Name: "LayerName", Type: "TEXT"},
		Column{Name: "LayerType", Type: "INTEGER"},
		Column{Name: "LayerOpacity", Type: "REAL"},
		Column{Name: "LayerEffectInfo", Type: "BLOB"},
	); err != nil {
		t.Fatalf("create: %v", err)
	}
	id, err := db.Insert(ctx, "Layer", Row{"LayerName": "Paper", "LayerType": 1, "LayerOpacity": 0.5, "LayerEffectInfo": []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := db.Insert(ctx, "Layer", Row{"LayerName": "Ink", "LayerType": 0}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rows, err := db.Table(ctx, "Layer")
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("row count: got %d want 2", len(rows))
	}
	r := rows[id]
	if name, _ := r.String("LayerName"); name != "Paper" {
		t.Fatalf("name: got %q want %q", name, "Paper")
	}
	if typ, _ := r.Int("LayerType"); typ != 1 {
		t.Fatalf("type: got %d want 1", typ)
	}
	if op, _ := r.Float("LayerOpacity"); op != 0.5 {
		t.Fatalf("opacity: got %v want 0.5", op)
	}
	if b, _ := r.Bytes("LayerEffectInfo"); !bytes.Equal(b, []byte{1, 2, 3}) {
		t.Fatalf("effect: got %v want [1 2 3]", b)
	}
	if main, _ := r.Int(KeyColumn); main != id {
		t.Fatalf("MainId: got %d want %d", main, id)
	}
}

func TestUpdateAndReferencedItems(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openEmpty(t)

	if err := db.CreateTable(ctx, "RulerGuide", Column{Name: "LayerId", Type: "INTEGER"}, Column{Name: "CenterX", Type: "REAL"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	a, _ := db.Insert(ctx, "RulerGuide", Row{"LayerId": 3, "CenterX": 1.0})
	_, _ = db.Insert(ctx, "RulerGuide", Row{"LayerId": 4, "CenterX": 2.0})
	c, _ := db.Insert(ctx, "RulerGuide", Row{"LayerId": 3, "CenterX": 3.0})

	if err := db.Update(ctx, "RulerGuide", Row{KeyColumn: c, "CenterX": 9.5}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := db.ReferencedItems(ctx, "RulerGuide", "LayerId", 3)
	if err != nil {
		t.Fatalf("referenced: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("referenced count: got %d want 2", len(got))
	}
	if x, _ := got[c].Float("CenterX"); x != 9.5 {
		t.Fatalf("updated CenterX: got %v want 9.5", x)
	}
	if _, ok := got[a]; !ok {
		t.Fatalf("row %d missing", a)
	}

	if err := db.Update(ctx, "RulerGuide", Row{KeyColumn: int64(999), "CenterX": 1.0}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing: got %v want ErrNotFound", err)
	}
	if err := db.Update(ctx, "RulerGuide", Row{"CenterX": 1.0}); !errors.Is(err, ErrNoKey) {
		t.Fatalf("update without key: got %v want ErrNoKey", err)
	}
}

func TestEnsureTableAddsColumns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openEmpty(t)

	if err := db.EnsureTable(ctx, "ExternalChunk", Column{Name: "ExternalID", Type: "BLOB"}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := db.EnsureTable(ctx, "ExternalChunk", Column{Name: "ExternalID", Type: "BLOB"}, Column{Name: "Offset", Type: "INTEGER"}); err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	cols, err := db.Columns(ctx, "ExternalChunk")
	if err != nil {
		t.Fatalf("columns: %v", err)
	}
	var names []string
	for _, c := range cols {
		names = append(names, c.Name)
	}
	want := []string{KeyColumn, "ExternalID", "Offset"}
	if len(names) != len(want) {
		t.Fatalf("columns: got %v want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("columns: got %v want %v", names, want)
		}
	}
}

func TestBytesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openEmpty(t)

	if err := db.CreateTable(ctx, "Canvas", Column{Name: "CanvasWidth", Type: "REAL"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	id, err := db.Insert(ctx, "Canvas", Row{"CanvasWidth": 512.0})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	data, err := db.Bytes(ctx)
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}

	again, err := Open(ctx, data, Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	r, err := again.Get(ctx, "Canvas", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if w, _ := r.Float("CanvasWidth"); w != 512 {
		t.Fatalf("width: got %v want 512", w)
	}
}

func TestCloseRemovesWorkingCopy(t *testing.T) {
	t.Parallel()
	db, err := Open(context.Background(), nil, Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	path := db.Path()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("working copy missing: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("working copy after close: got %v want ErrNotExist", err)
	}
	if _, err := db.Table(context.Background(), "Layer"); !errors.Is(err, ErrClosed) {
		t.Fatalf("table after close: got %v want ErrClosed", err)
	}
}

func TestRejectsBadIdentifiers(t *testing.T) {
	t.Parallel()
	db := openEmpty(t)
	if _, err := db.Table(context.Background(), `Layer"; DROP TABLE Layer; --`); !errors.Is(err, ErrBadIdentifier) {
		t.Fatalf("got %v want ErrBadIdentifier", err)
	}
	if _, err := db.Insert(context.Background(), "Layer", Row{"bad name": 1}); !errors.Is(err, ErrBadIdentifier) {
		t.Fatalf("got %v want ErrBadIdentifier", err)
	}
}

func TestRowRef(t *testing.T) {
	t.Parallel()
	r := Row{"A": int64(0), "B": int64(7), "C": nil}
	if _, ok := r.Ref("A"); ok {
		t.Fatalf("zero ref reported as set")
	}
	if v, ok := r.Ref("B"); !ok || v != 7 {
		t.Fatalf("ref B: got %d,%v want 7,true", v, ok)
	}
	if _, ok := r.Ref("C"); ok {
		t.Fatalf("null ref reported as set")
	}
}
