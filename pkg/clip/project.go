// Package clip ties the container codec to its embedded database: it walks
// the layer tables, resolves bitmaps through the mipmap and offscreen rows
// and decodes the binary columns with blobfmt.
package clip

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/samcharles93/clipkit/internal/logger"
	"github.com/samcharles93/clipkit/internal/sqlitedb"
	"github.com/samcharles93/clipkit/pkg/blobfmt"
	"github.com/samcharles93/clipkit/pkg/csf"
)

var (
	ErrCorrupt  = errors.New("clip: corrupt project")
	ErrNoBitmap = errors.New("clip: layer has no bitmap")
	ErrNoData   = errors.New("clip: column is empty")
	ErrNoCanvas = errors.New("clip: project has no canvas")
)

// Row and Column are the database record types.
type (
	Row    = sqlitedb.Row
	Column = sqlitedb.Column
)

// Database is the row store a project reads and writes. *sqlitedb.DB
// implements it.
type Database interface {
	Tables(ctx context.Context) ([]string, error)
	Table(ctx context.Context, name string) (map[int64]Row, error)
	ReferencedItems(ctx context.Context, table, column string, value any) (map[int64]Row, error)
	Get(ctx context.Context, table string, id int64) (Row, error)
	Insert(ctx context.Context, table string, row Row) (int64, error)
	Update(ctx context.Context, table string, row Row) error
	Delete(ctx context.Context, table string, id int64) error
	EnsureTable(ctx context.Context, table string, cols ...Column) error
	Bytes(ctx context.Context) ([]byte, error)
	Close() error
}

var _ Database = (*sqlitedb.DB)(nil)

// Options configures Open and Load.
type Options struct {
	Logger logger.Logger
	// TempDir holds the database working copy. Empty means os.TempDir.
	TempDir string
	// Workers bounds parallel tile encoding. Zero means GOMAXPROCS.
	Workers int
}

// Project is an open project file.
type Project struct {
	File *csf.File
	DB   Database

	log     logger.Logger
	workers int
}

// Open reads the project at path.
func Open(ctx context.Context, path string, opts Options) (*Project, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	f, err := csf.OpenWithOptions(path, csf.ReadOptions{Logger: log})
	if err != nil {
		return nil, fmt.Errorf("clip: open %s: %w", path, err)
	}
	return load(ctx, f, opts, log)
}

// Load reads a project from rs.
func Load(ctx context.Context, rs io.ReadSeeker, opts Options) (*Project, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	f, err := csf.ReadWithOptions(rs, csf.ReadOptions{Logger: log})
	if err != nil {
		return nil, fmt.Errorf("clip: load: %w", err)
	}
	return load(ctx, f, opts, log)
}

func load(ctx context.Context, f *csf.File, opts Options, log logger.Logger) (*Project, error) {
	db, err := sqlitedb.Open(ctx, f.Database, sqlitedb.Options{Dir: opts.TempDir, Logger: log})
	if err != nil {
		return nil, err
	}
	return New(f, db, opts), nil
}

// New wraps an already decoded container and its database.
func New(f *csf.File, db Database, opts Options) *Project {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Project{File: f, DB: db, log: log, workers: opts.Workers}
}

// Close releases the database working copy.
func (p *Project) Close() error {
	if p == nil || p.DB == nil {
		return nil
	}
	err := p.DB.Close()
	p.DB = nil
	return err
}

func (p *Project) blobOptions() blobfmt.Options { return blobfmt.Options{Logger: p.log} }

// Canvas is one row of the Canvas table.
type Canvas struct {
	ID         int64
	Width      float64
	Height     float64
	Resolution float64
	RootFolder int64
}

// Canvases returns every canvas ordered by id.
func (p *Project) Canvases(ctx context.Context) ([]Canvas, error) {
	rows, err := p.DB.Table(ctx, "Canvas")
	if err != nil {
		return nil, err
	}
	out := make([]Canvas, 0, len(rows))
	for id, r := range rows {
		c := Canvas{ID: id}
		c.Width, _ = r.Float("CanvasWidth")
		c.Height, _ = r.Float("CanvasHeight")
		c.Resolution, _ = r.Float("CanvasResolution")
		c.RootFolder, _ = r.Int("CanvasRootFolder")
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Canvas) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Tree builds the layer hierarchy under the canvas root folder.
func (p *Project) Tree(ctx context.Context, c Canvas) (*Tree, error) {
	if c.RootFolder == 0 {
		return nil, fmt.Errorf("%w: canvas %d has no root folder", ErrCorrupt, c.ID)
	}
	layers, err := p.DB.Table(ctx, "Layer")
	if err != nil {
		return nil, err
	}
	return buildTree(layers, c.RootFolder)
}

// MainTree builds the layer hierarchy of the first canvas.
func (p *Project) MainTree(ctx context.Context) (*Tree, error) {
	cs, err := p.Canvases(ctx)
	if err != nil {
		return nil, err
	}
	if len(cs) == 0 {
		return nil, ErrNoCanvas
	}
	return p.Tree(ctx, cs[0])
}

// Layer returns the Layer row with the given id.
func (p *Project) Layer(ctx context.Context, id int64) (Row, error) {
	return p.DB.Get(ctx, "Layer", id)
}

// Save writes the project to w. External chunk offsets are recorded in the
// ExternalChunk table before the database is serialized.
func (p *Project) Save(ctx context.Context, w io.Writer) (int64, error) {
	return p.File.Write(w, csf.WriteOptions{
		Database: func(offsets map[string]int64) ([]byte, error) {
			if err := p.recordOffsets(ctx, offsets); err != nil {
				return nil, err
			}
			return p.DB.Bytes(ctx)
		},
	})
}

// SaveFile writes the project to path through a temporary file in the same
// directory.
func (p *Project) SaveFile(ctx context.Context, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := p.Save(ctx, tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

const externalChunkTable = "ExternalChunk"

func (p *Project) recordOffsets(ctx context.Context, offsets map[string]int64) error {
	if err := p.DB.EnsureTable(ctx, externalChunkTable,
		Column{Name: "ExternalID", Type: "BLOB"},
		Column{Name: "Offset", Type: "INTEGER"},
	); err != nil {
		return err
	}
	rows, err := p.DB.Table(ctx, externalChunkTable)
	if err != nil {
		return err
	}
	byExt := make(map[string]int64, len(rows))
	for id, r := range rows {
		ext, _ := r.String("ExternalID")
		if _, live := offsets[ext]; !live {
			if err := p.DB.Delete(ctx, externalChunkTable, id); err != nil {
				return err
			}
			continue
		}
		byExt[ext] = id
	}

	ids := make([]string, 0, len(offsets))
	for id := range offsets {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, ext := range ids {
		if id, ok := byExt[ext]; ok {
			if err := p.DB.Update(ctx, externalChunkTable, Row{sqlitedb.KeyColumn: id, "Offset": offsets[ext]}); err != nil {
				return err
			}
			continue
		}
		if _, err := p.DB.Insert(ctx, externalChunkTable, Row{"ExternalID": []byte(ext), "Offset": offsets[ext]}); err != nil {
			return err
		}
	}
	p.log.Debug("recorded chunk offsets", "chunks", len(ids))
	return nil
}

// externalID reads an external chunk id stored in a blob or text column.
func externalID(r Row, col string) (string, bool) {
	b, ok := r.Bytes(col)
	if !ok {
		return "", false
	}
	b = bytes.TrimRight(b, "\x00")
	return string(b), len(b) > 0
}
