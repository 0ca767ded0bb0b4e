// ABOUTME: SQLite version store over a page/revision schema
// ABOUTME: Every temporal lookup is one ORDER BY ... LIMIT 1 query

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nainya/timegate/pkg/timestamp"
	"github.com/nainya/timegate/pkg/version"
)

const schema = `
CREATE TABLE IF NOT EXISTS page (
	page_id    INTEGER PRIMARY KEY,
	page_title TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS categorylinks (
	cl_from INTEGER NOT NULL REFERENCES page(page_id) ON DELETE CASCADE,
	cl_to   TEXT NOT NULL,
	PRIMARY KEY (cl_from, cl_to)
);

CREATE TABLE IF NOT EXISTS revision (
	rev_id        INTEGER PRIMARY KEY,
	rev_page      INTEGER NOT NULL REFERENCES page(page_id) ON DELETE CASCADE,
	rev_timestamp TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS rev_page_timestamp ON revision (rev_page, rev_timestamp, rev_id);
`

const selectRevision = `SELECT rev_id, rev_timestamp FROM revision WHERE rev_page = ?`

const (
	queryFirst      = selectRevision + ` ORDER BY rev_timestamp ASC, rev_id ASC LIMIT 1`
	queryLast       = selectRevision + ` ORDER BY rev_timestamp DESC, rev_id DESC LIMIT 1`
	queryAtOrBefore = selectRevision + ` AND rev_timestamp <= ? ORDER BY rev_timestamp DESC, rev_id DESC LIMIT 1`
	queryAfter      = selectRevision + ` AND rev_timestamp > ? ORDER BY rev_timestamp ASC, rev_id ASC LIMIT 1`
	queryBefore     = selectRevision + ` AND rev_timestamp < ? ORDER BY rev_timestamp DESC, rev_id DESC LIMIT 1`
	queryByID       = selectRevision + ` AND rev_id = ?`
	queryList       = selectRevision + ` ORDER BY rev_timestamp ASC, rev_id ASC`
)

type config struct {
	busyTimeout int
	mkdirAll    bool
}

// Option customises Open
type Option func(*config)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithMkdirAll creates the parent directory of the database file
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// Store is a version.Catalog and version.Writer over SQLite
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := config{busyTimeout: 10_000}
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlstore: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlstore: %s: %w", p, err)
		}
	}

	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database and applies the schema
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("sqlstore: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// PutResource inserts or replaces a page and its categories
func (s *Store) PutResource(ctx context.Context, res version.Resource) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO page (page_id, page_title) VALUES (?, ?)
		 ON CONFLICT(page_id) DO UPDATE SET page_title = excluded.page_title`,
		res.PageID, res.Title,
	); err != nil {
		return fmt.Errorf("upsert page %q: %w", res.Title, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM categorylinks WHERE cl_from = ?`, res.PageID); err != nil {
		return fmt.Errorf("clear categories: %w", err)
	}
	for _, cat := range res.Categories {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO categorylinks (cl_from, cl_to) VALUES (?, ?)`,
			res.PageID, cat,
		); err != nil {
			return fmt.Errorf("insert category %q: %w", cat, err)
		}
	}

	return tx.Commit()
}

// AddVersion records a version of an existing page
func (s *Store) AddVersion(ctx context.Context, res version.Resource, v version.Version) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO revision (rev_id, rev_page, rev_timestamp) VALUES (?, ?, ?)`,
		v.ID, res.PageID, timestamp.ToStorage(v.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert revision %d: %w", v.ID, err)
	}
	return nil
}

// Resolve finds a page by its namespace-qualified title
func (s *Store) Resolve(ctx context.Context, title string) (*version.Resource, error) {
	res := &version.Resource{Title: title}
	err := s.db.QueryRowContext(ctx,
		`SELECT page_id FROM page WHERE page_title = ?`, title,
	).Scan(&res.PageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", title, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT cl_to FROM categorylinks WHERE cl_from = ? ORDER BY cl_to`, res.PageID,
	)
	if err != nil {
		return nil, fmt.Errorf("categories of %q: %w", title, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cat string
		if err := rows.Scan(&cat); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		res.Categories = append(res.Categories, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("categories of %q: %w", title, err)
	}

	return res, nil
}

// First returns the earliest version of res
func (s *Store) First(ctx context.Context, res version.Resource) (*version.Version, error) {
	return s.fetch(ctx, queryFirst, res.PageID)
}

// Last returns the latest version of res
func (s *Store) Last(ctx context.Context, res version.Resource) (*version.Version, error) {
	return s.fetch(ctx, queryLast, res.PageID)
}

// AtOrBefore returns the version with the greatest timestamp <= moment
func (s *Store) AtOrBefore(ctx context.Context, res version.Resource, moment time.Time) (*version.Version, error) {
	return s.fetch(ctx, queryAtOrBefore, res.PageID, timestamp.ToStorage(moment))
}

// After returns the version with the least timestamp > moment
func (s *Store) After(ctx context.Context, res version.Resource, moment time.Time) (*version.Version, error) {
	return s.fetch(ctx, queryAfter, res.PageID, timestamp.ToStorage(moment))
}

// Before returns the version with the greatest timestamp < moment
func (s *Store) Before(ctx context.Context, res version.Resource, moment time.Time) (*version.Version, error) {
	return s.fetch(ctx, queryBefore, res.PageID, timestamp.ToStorage(moment))
}

// ByID returns version id of res
func (s *Store) ByID(ctx context.Context, res version.Resource, id int64) (*version.Version, error) {
	return s.fetch(ctx, queryByID, res.PageID, id)
}

// List returns the history of res in ascending order
func (s *Store) List(ctx context.Context, res version.Resource) ([]version.Version, error) {
	rows, err := s.db.QueryContext(ctx, queryList, res.PageID)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var versions []version.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	return versions, nil
}

func (s *Store) fetch(ctx context.Context, query string, args ...any) (*version.Version, error) {
	v, err := scanVersion(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(row scanner) (*version.Version, error) {
	var (
		id    int64
		stamp string
	)
	if err := row.Scan(&id, &stamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan revision: %w", err)
	}

	ts, err := timestamp.FromStorage(stamp)
	if err != nil {
		return nil, fmt.Errorf("revision %d: %w", id, err)
	}
	return &version.Version{ID: id, Timestamp: ts}, nil
}
