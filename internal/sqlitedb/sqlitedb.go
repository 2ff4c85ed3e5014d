// Package sqlitedb gives row level access to the database embedded in a
// project file. The database bytes are written to a temporary file owned by
// the returned DB and opened with the sqlite3 driver; Close removes the file.
package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/samcharles93/clipkit/internal/logger"
)

// KeyColumn is the primary key column of almost every table.
const KeyColumn = "MainId"

var (
	ErrClosed        = errors.New("sqlitedb: database closed")
	ErrNotFound      = errors.New("sqlitedb: row not found")
	ErrBadIdentifier = errors.New("sqlitedb: invalid identifier")
	ErrNoKey         = errors.New("sqlitedb: row has no MainId")
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options configures Open.
type Options struct {
	// Dir is where the working copy is created. Empty means os.TempDir.
	Dir    string
	Logger logger.Logger
}

// Column describes one column for CreateTable and AlterTable.
type Column struct {
	Name string
	// Type is an SQLite type affinity: INTEGER, REAL, TEXT, BLOB or empty.
	Type string
}

// DB is an open working copy of an embedded database.
type DB struct {
	db   *sql.DB
	path string
	log  logger.Logger
}

// Open writes data to a new file and opens it. An empty data slice yields an
// empty database.
func Open(ctx context.Context, data []byte, opts Options) (*DB, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	dir := opts.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "clipkit-"+uuid.NewString()+".sqlite")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: create working copy: %w", err)
	}
	cleanup := func(err error) (*DB, error) {
		_ = os.Remove(path)
		return nil, err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return cleanup(fmt.Errorf("sqlitedb: write working copy: %w", err))
	}
	if err := f.Close(); err != nil {
		return cleanup(fmt.Errorf("sqlitedb: close working copy: %w", err))
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return cleanup(fmt.Errorf("sqlitedb: open: %w", err))
	}
	// One connection keeps every statement on the same file handle.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return cleanup(fmt.Errorf("sqlitedb: open: %w", err))
	}
	log.Debug("opened database", "path", path, "bytes", len(data))
	return &DB{db: db, path: path, log: log}, nil
}

// Path returns the working copy location.
func (d *DB) Path() string { return d.path }

// Close closes the connection and removes the working copy.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	if rerr := os.Remove(d.path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) && err == nil {
		err = rerr
	}
	return err
}

func (d *DB) conn() (*sql.DB, error) {
	if d == nil || d.db == nil {
		return nil, ErrClosed
	}
	return d.db, nil
}

func quote(name string) (string, error) {
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrBadIdentifier, name)
	}
	return `"` + name + `"`, nil
}

// Tables lists the user tables in name order.
func (d *DB) Tables(ctx context.Context) ([]string, error) {
	db, err := d.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: list tables: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlitedb: list tables: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// HasTable reports whether table exists.
func (d *DB) HasTable(ctx context.Context, table string) (bool, error) {
	tables, err := d.Tables(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(tables, table), nil
}

// Columns lists the columns of table in declaration order.
func (d *DB) Columns(ctx context.Context, table string) ([]Column, error) {
	db, err := d.conn()
	if err != nil {
		return nil, err
	}
	q, err := quote(table)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", q))
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: columns of %s: %w", table, err)
	}
	defer rows.Close()
	var out []Column
	for rows.Next() {
		var (
			cid     int
			c       Column
			notNull int
			def     any
			pk      int
		)
		if err := rows.Scan(&cid, &c.Name, &c.Type, &notNull, &def, &pk); err != nil {
			return nil, fmt.Errorf("sqlitedb: columns of %s: %w", table, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("sqlitedb: table %s: %w", table, ErrNotFound)
	}
	return out, nil
}

// Table returns every row of table keyed by MainId. Tables without a MainId
// column are keyed by rowid.
func (d *DB) Table(ctx context.Context, table string) (map[int64]Row, error) {
	q, err := quote(table)
	if err != nil {
		return nil, err
	}
	return d.query(ctx, table, fmt.Sprintf("SELECT rowid AS clipkit_rowid, * FROM %s", q))
}

// ReferencedItems returns the rows of table whose column equals value, keyed
// as in Table.
func (d *DB) ReferencedItems(ctx context.Context, table, column string, value any) (map[int64]Row, error) {
	q, err := quote(table)
	if err != nil {
		return nil, err
	}
	c, err := quote(column)
	if err != nil {
		return nil, err
	}
	return d.query(ctx, table, fmt.Sprintf("SELECT rowid AS clipkit_rowid, * FROM %s WHERE %s = ?", q, c), value)
}

// Get returns the row of table with the given MainId.
func (d *DB) Get(ctx context.Context, table string, id int64) (Row, error) {
	rows, err := d.ReferencedItems(ctx, table, KeyColumn, id)
	if err != nil {
		return nil, err
	}
	r, ok := rows[id]
	if !ok {
		return nil, fmt.Errorf("sqlitedb: %s %d: %w", table, id, ErrNotFound)
	}
	return r, nil
}

func (d *DB) query(ctx context.Context, table, query string, args ...any) (map[int64]Row, error) {
	db, err := d.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: read %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: read %s: %w", table, err)
	}
	out := make(map[int64]Row)
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlitedb: read %s: %w", table, err)
		}
		// The first column is the rowid added by the query.
		rowid, _ := vals[0].(int64)
		r := make(Row, len(cols)-1)
		for i := 1; i < len(cols); i++ {
			r[cols[i]] = normalize(vals[i])
		}
		key := rowid
		if id, ok := r.Int(KeyColumn); ok {
			key = id
		}
		out[key] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitedb: read %s: %w", table, err)
	}
	d.log.Debug("read table", "table", table, "rows", len(out))
	return out, nil
}

// Insert adds row to table and returns its rowid, which is the MainId for
// tables keyed by it.
func (d *DB) Insert(ctx context.Context, table string, row Row) (int64, error) {
	db, err := d.conn()
	if err != nil {
		return 0, err
	}
	q, err := quote(table)
	if err != nil {
		return 0, err
	}
	var stmt string
	var args []any
	if len(row) == 0 {
		stmt = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", q)
	} else {
		names, vals, err := splitRow(row)
		if err != nil {
			return 0, err
		}
		stmt = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", q,
			strings.Join(names, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", "))
		args = vals
	}
	res, err := db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("sqlitedb: insert into %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlitedb: insert into %s: %w", table, err)
	}
	return id, nil
}

// Update writes every column of row to the row of table with the same MainId.
func (d *DB) Update(ctx context.Context, table string, row Row) error {
	db, err := d.conn()
	if err != nil {
		return err
	}
	q, err := quote(table)
	if err != nil {
		return err
	}
	id, ok := row.Int(KeyColumn)
	if !ok {
		return fmt.Errorf("sqlitedb: update %s: %w", table, ErrNoKey)
	}
	set := make(Row, len(row))
	for k, v := range row {
		if k != KeyColumn {
			set[k] = v
		}
	}
	if len(set) == 0 {
		return nil
	}
	names, vals, err := splitRow(set)
	if err != nil {
		return err
	}
	for i := range names {
		names[i] += " = ?"
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", q, strings.Join(names, ", "), `"`+KeyColumn+`"`)
	res, err := db.ExecContext(ctx, stmt, append(vals, id)...)
	if err != nil {
		return fmt.Errorf("sqlitedb: update %s %d: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlitedb: update %s %d: %w", table, id, err)
	}
	if n == 0 {
		return fmt.Errorf("sqlitedb: update %s %d: %w", table, id, ErrNotFound)
	}
	return nil
}

// Delete removes the row of table with the given MainId.
func (d *DB) Delete(ctx context.Context, table string, id int64) error {
	db, err := d.conn()
	if err != nil {
		return err
	}
	q, err := quote(table)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE "%s" = ?`, q, KeyColumn), id); err != nil {
		return fmt.Errorf("sqlitedb: delete %s %d: %w", table, id, err)
	}
	return nil
}

// CreateTable creates table with a MainId primary key followed by cols.
func (d *DB) CreateTable(ctx context.Context, table string, cols ...Column) error {
	db, err := d.conn()
	if err != nil {
		return err
	}
	q, err := quote(table)
	if err != nil {
		return err
	}
	defs := []string{`"` + KeyColumn + `" INTEGER PRIMARY KEY`}
	for _, c := range cols {
		if c.Name == KeyColumn {
			continue
		}
		def, err := columnDef(c)
		if err != nil {
			return err
		}
		defs = append(defs, def)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", q, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("sqlitedb: create %s: %w", table, err)
	}
	d.log.Debug("created table", "table", table, "columns", len(defs))
	return nil
}

// AlterTable adds col to table.
func (d *DB) AlterTable(ctx context.Context, table string, col Column) error {
	db, err := d.conn()
	if err != nil {
		return err
	}
	q, err := quote(table)
	if err != nil {
		return err
	}
	def, err := columnDef(col)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", q, def)); err != nil {
		return fmt.Errorf("sqlitedb: alter %s: %w", table, err)
	}
	d.log.Debug("added column", "table", table, "column", col.Name)
	return nil
}

// EnsureTable creates table, or adds whichever of cols it lacks.
func (d *DB) EnsureTable(ctx context.Context, table string, cols ...Column) error {
	ok, err := d.HasTable(ctx, table)
	if err != nil {
		return err
	}
	if !ok {
		return d.CreateTable(ctx, table, cols...)
	}
	have, err := d.Columns(ctx, table)
	if err != nil {
		return err
	}
	for _, c := range cols {
		if slices.ContainsFunc(have, func(h Column) bool { return strings.EqualFold(h.Name, c.Name) }) {
			continue
		}
		if err := d.AlterTable(ctx, table, c); err != nil {
			return err
		}
	}
	return nil
}

// Bytes checkpoints the database and returns the file contents.
func (d *DB) Bytes(ctx context.Context) ([]byte, error) {
	db, err := d.conn()
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(FULL)"); err != nil {
		return nil, fmt.Errorf("sqlitedb: checkpoint: %w", err)
	}
	b, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: read working copy: %w", err)
	}
	return b, nil
}

func columnDef(c Column) (string, error) {
	name, err := quote(c.Name)
	if err != nil {
		return "", err
	}
	switch t := strings.ToUpper(c.Type); t {
	case "":
		return name, nil
	case "INTEGER", "REAL", "TEXT", "BLOB":
		return name + " " + t, nil
	default:
		return "", fmt.Errorf("sqlitedb: column %s: unsupported type %q", c.Name, c.Type)
	}
}

func splitRow(row Row) ([]string, []any, error) {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	names := make([]string, len(keys))
	vals := make([]any, len(keys))
	for i, k := range keys {
		q, err := quote(k)
		if err != nil {
			return nil, nil, err
		}
		names[i] = q
		vals[i] = row[k]
	}
	return names, vals, nil
}
