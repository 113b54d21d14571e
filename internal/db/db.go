// Package db manages the SQLite note store and its optional sqlite-vec index.
package db

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver with database/sql

	"github.com/go-ports/notevault/internal/models"
)

func init() { //nolint:gochecknoinits // registers sqlite-vec extension with go-sqlite3 before any DB connection opens
	vec.Auto()
}

// timeLayout is fixed-width and UTC so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// ErrDimensionMismatch is returned when a new embedding dimension differs from the one stored.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ErrAmbiguousID is returned when an ID prefix matches more than one note.
var ErrAmbiguousID = errors.New("ambiguous note id prefix")

// DB wraps a *sql.DB with the path it was opened from.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the SQLite database at path and initialises the schema.
func Open(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("db.Open: %w", err)
	}
	d := &DB{db: sqldb, path: path}
	if err := d.createSchema(); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("db.Open createSchema: %w", err)
	}
	return d, nil
}

// Path returns the file the database was opened from.
func (d *DB) Path() string { return d.path }

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

func (d *DB) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS notes (
			rowid      INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT UNIQUE NOT NULL,
			title      TEXT NOT NULL DEFAULT '',
			content    TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_updated ON notes(updated_at DESC)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, s := range stmts {
		if _, err := d.db.Exec(s); err != nil {
			return fmt.Errorf("createSchema exec: %w\nSQL: %s", err, s)
		}
	}

	// Migration: add color and revision columns if missing.
	cols, err := d.columns("notes")
	if err != nil {
		return err
	}
	if !cols["color"] {
		if _, err := d.db.Exec("ALTER TABLE notes ADD COLUMN color TEXT NOT NULL DEFAULT ''"); err != nil {
			return fmt.Errorf("migration color: %w", err)
		}
	}
	if !cols["revision"] {
		if _, err := d.db.Exec("ALTER TABLE notes ADD COLUMN revision INTEGER NOT NULL DEFAULT 0"); err != nil {
			return fmt.Errorf("migration revision: %w", err)
		}
	}

	// Recreate vec table if dimension was previously persisted.
	if dim, ok, err := d.GetEmbeddingDim(); err == nil && ok {
		if err := d.createVecTable(dim); err != nil {
			return fmt.Errorf("createSchema createVecTable: %w", err)
		}
	}

	return nil
}

func (d *DB) columns(table string) (map[string]bool, error) {
	rows, err := d.db.Query("PRAGMA table_info(" + table + ")") // #nosec G202 -- table name is a package constant
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, typ string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// ---------------------------------------------------------------------------
// Vector table helpers
// ---------------------------------------------------------------------------

// CreateVecTable creates the vec0 virtual table with the given embedding dimension.
// It is safe to call when the table already exists (uses IF NOT EXISTS).
func (d *DB) CreateVecTable(dim int) error { return d.createVecTable(dim) }

func (d *DB) createVecTable(dim int) error {
	_, err := d.db.Exec(fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS notes_vec USING vec0(
			rowid INTEGER PRIMARY KEY,
			embedding float[%d]
		)`, dim,
	))
	return err
}

// HasVecTable returns true if the notes_vec table exists.
func (d *DB) HasVecTable() (bool, error) {
	var name string
	err := d.db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type='table' AND name='notes_vec'`,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// DropVecTable drops the notes_vec virtual table if it exists.
func (d *DB) DropVecTable() error {
	_, err := d.db.Exec("DROP TABLE IF EXISTS notes_vec")
	return err
}

// GetEmbeddingDim reads the stored embedding dimension from the meta table.
func (d *DB) GetEmbeddingDim() (int, bool, error) {
	val, ok, err := d.GetMeta("embedding_dim")
	if !ok || err != nil {
		return 0, false, err
	}
	dim, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, err
	}
	return dim, true, nil
}

// SetEmbeddingDim persists the embedding dimension in the meta table.
func (d *DB) SetEmbeddingDim(dim int) error {
	return d.SetMeta("embedding_dim", strconv.Itoa(dim))
}

// EnsureVecTable ensures the vector table exists with the given dimension.
// Returns ErrDimensionMismatch if the stored dimension differs.
func (d *DB) EnsureVecTable(dim int) error {
	stored, ok, err := d.GetEmbeddingDim()
	if err != nil {
		return err
	}
	if !ok {
		if err := d.SetEmbeddingDim(dim); err != nil {
			return err
		}
		return d.createVecTable(dim)
	}
	if stored != dim {
		return fmt.Errorf("%w: database has %d, provider returned %d. Run 'notes reindex' to rebuild",
			ErrDimensionMismatch, stored, dim)
	}
	return nil
}

// ---------------------------------------------------------------------------
// CRUD
// ---------------------------------------------------------------------------

const noteColumns = `id, title, content, color, revision, created_at, updated_at`

// InsertNote inserts a note record and returns its rowid.
func (d *DB) InsertNote(ctx context.Context, n *models.Note) (int64, error) {
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO notes (id, title, content, color, revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Title, n.Content, n.Color, n.Revision,
		n.CreatedAt.UTC().Format(timeLayout), n.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("InsertNote: %w", err)
	}
	return res.LastInsertId()
}

// GetNote fetches a single note by exact ID.
func (d *DB) GetNote(ctx context.Context, id string) (*models.Note, bool, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("GetNote: %w", err)
	}
	return n, true, nil
}

// ResolveID expands an ID prefix to a full note ID.
// Returns ("", false, nil) when nothing matches and ErrAmbiguousID when more
// than one note matches.
func (d *DB) ResolveID(ctx context.Context, prefix string) (string, bool, error) {
	if prefix == "" {
		return "", false, nil
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT id FROM notes WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escapeLike(prefix)+"%")
	if err != nil {
		return "", false, fmt.Errorf("ResolveID: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", false, fmt.Errorf("ResolveID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", false, fmt.Errorf("ResolveID: %w", err)
	}
	switch len(ids) {
	case 0:
		return "", false, nil
	case 1:
		return ids[0], true, nil
	}
	for _, id := range ids {
		if id == prefix {
			return id, true, nil
		}
	}
	return "", false, fmt.Errorf("%w: %q", ErrAmbiguousID, prefix)
}

// UpdateNote overwrites the mutable fields of the note identified by in.ID.
//
// A positive in.Revision is stored as the new revision and is applied only
// when it is greater than the stored revision; zero bumps the stored revision
// by one unconditionally. applied is false when the note exists but the update
// was stale; found is false when no note has the ID.
func (d *DB) UpdateNote(ctx context.Context, in models.UpdateInput, at time.Time) (applied, found bool, err error) {
	res, err := d.db.ExecContext(ctx, `
		UPDATE notes
		SET title = ?, content = ?, color = ?, updated_at = ?,
		    revision = CASE WHEN ? > 0 THEN ? ELSE revision + 1 END
		WHERE id = ? AND (? = 0 OR revision < ?)`,
		in.Title, in.Content, in.Color, at.UTC().Format(timeLayout),
		in.Revision, in.Revision,
		in.ID, in.Revision, in.Revision,
	)
	if err != nil {
		return false, false, fmt.Errorf("UpdateNote: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, false, fmt.Errorf("UpdateNote: %w", err)
	}
	if n > 0 {
		return true, true, nil
	}

	var exists int
	err = d.db.QueryRowContext(ctx, `SELECT 1 FROM notes WHERE id = ?`, in.ID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("UpdateNote: %w", err)
	}
	return false, true, nil
}

// DeleteNote deletes a note by exact ID.
// Returns true if a record was found and deleted.
func (d *DB) DeleteNote(ctx context.Context, id string) (bool, error) {
	var rowid int64
	err := d.db.QueryRowContext(ctx, `SELECT rowid FROM notes WHERE id = ?`, id).Scan(&rowid)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// Clean up vector index before deleting the note row (rowid is needed).
	if _, err := d.db.ExecContext(ctx, `DELETE FROM notes_vec WHERE rowid = ?`, rowid); err != nil {
		// Non-fatal: vec table may not exist yet.
		slog.Debug("DeleteNote: vec cleanup skipped", "err", err)
	}
	if _, err := d.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return false, err
	}
	return true, nil
}

// InsertVector stores an embedding vector for the given note ID.
// Silently skips if the vec table does not exist.
func (d *DB) InsertVector(ctx context.Context, id string, embedding []float32) error {
	ok, err := d.HasVecTable()
	if err != nil || !ok {
		return err
	}
	var rowid int64
	if err := d.db.QueryRowContext(ctx, `SELECT rowid FROM notes WHERE id = ?`, id).Scan(&rowid); err != nil {
		return fmt.Errorf("InsertVector: %w", err)
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO notes_vec (rowid, embedding) VALUES (?, ?)`,
		rowid, float32sToBytes(embedding),
	)
	return err
}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

// SearchNotes returns notes whose title or content contains every
// whitespace-separated term of query (case-insensitive for ASCII), most
// recently updated first. An empty query matches all notes. limit <= 0 means
// no limit.
func (d *DB) SearchNotes(ctx context.Context, query string, limit int) ([]models.Note, error) {
	where, params := buildWhere(strings.Fields(query))
	if limit <= 0 {
		limit = -1
	}
	params = append(params, limit)

	q := `SELECT ` + noteColumns + ` FROM notes` + where +
		"\n\t\tORDER BY updated_at DESC, rowid DESC\n\t\tLIMIT ?" // #nosec G202 -- WHERE clause uses hardcoded column names only; values flow through ? bound parameters
	rows, err := d.db.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("SearchNotes: %w", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

// VectorHit is a single nearest-neighbour result.
type VectorHit struct {
	ID       string
	Distance float64
}

// VectorSearch performs approximate nearest-neighbour search using sqlite-vec.
func (d *DB) VectorSearch(ctx context.Context, queryEmbedding []float32, limit int) ([]VectorHit, error) {
	ok, err := d.HasVecTable()
	if err != nil || !ok {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT n.id, v.distance
		FROM notes_vec v
		JOIN notes n ON n.rowid = v.rowid
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance`,
		float32sToBytes(queryEmbedding), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("VectorSearch: %w", err)
	}
	defer rows.Close()

	var hits []VectorHit
	for rows.Next() {
		var h VectorHit
		if err := rows.Scan(&h.ID, &h.Distance); err != nil {
			return nil, fmt.Errorf("VectorSearch: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// CountNotes returns the total number of notes.
func (d *DB) CountNotes(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes").Scan(&n)
	return n, err
}

// ListAll returns every note in creation order.
func (d *DB) ListAll(ctx context.Context) ([]models.Note, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+noteColumns+` FROM notes ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotes(rows)
}

// ---------------------------------------------------------------------------
// Meta
// ---------------------------------------------------------------------------

// GetMeta returns the value for key, or ("", false, nil) if not set.
func (d *DB) GetMeta(key string) (string, bool, error) {
	var val string
	err := d.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetMeta upserts a key-value pair in the meta table.
func (d *DB) SetMeta(key, value string) error {
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value,
	)
	return err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// buildWhere constructs a WHERE clause requiring every term to appear in the
// title or the content.
func buildWhere(terms []string) (string, []any) {
	if len(terms) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(terms))
	params := make([]any, 0, 2*len(terms))
	for _, t := range terms {
		pattern := "%" + escapeLike(t) + "%"
		clauses = append(clauses, `(title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\')`)
		params = append(params, pattern, pattern)
	}
	return " WHERE " + strings.Join(clauses, " AND "), params
}

// escapeLike makes %, _ and the escape character literal in a LIKE pattern.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// float32sToBytes encodes a []float32 as little-endian bytes (sqlite-vec wire format).
func float32sToBytes(floats []float32) []byte {
	b := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(r rowScanner) (*models.Note, error) {
	var n models.Note
	var createdAt, updatedAt string
	if err := r.Scan(&n.ID, &n.Title, &n.Content, &n.Color, &n.Revision, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	n.CreatedAt = parseTime(createdAt)
	n.UpdatedAt = parseTime(updatedAt)
	return &n, nil
}

// scanNotes reads all rows
func scanNotes(rows *sql.Rows) ([]models.Note, error) {
	notes := make([]models.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

// parseTime accepts the fixed layout and falls back to RFC 3339 for rows
// written by older versions.
func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
