package spacetraveling

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLitePageStore persists rendered pages in a SQLite database so a
// restarted server can answer from its previous renders.
type SQLitePageStore struct {
	db *sql.DB
}

// NewSQLitePageStore opens (or creates) the SQLite database at path, ensures
// the data directory exists, and creates the schema.
func NewSQLitePageStore(path string) (*SQLitePageStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets readers proceed while a revalidation writes; busy_timeout
	// makes writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &SQLitePageStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLitePageStore) Close() error {
	return s.db.Close()
}

func (s *SQLitePageStore) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS pages (
    path TEXT PRIMARY KEY,
    html BLOB NOT NULL,
    rendered_at TEXT NOT NULL
);
`)
	return err
}

// GetPage returns the page stored for path, or ErrPageNotFound.
func (s *SQLitePageStore) GetPage(ctx context.Context, path string) (Page, error) {
	var html []byte
	var renderedAt string
	err := s.db.QueryRowContext(ctx, `SELECT html, rendered_at FROM pages WHERE path = ?`, path).
		Scan(&html, &renderedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Page{}, ErrPageNotFound
	}
	if err != nil {
		return Page{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, renderedAt)
	if err != nil {
		return Page{}, err
	}
	return Page{HTML: html, RenderedAt: t}, nil
}

// PutPage upserts the page for path.
func (s *SQLitePageStore) PutPage(ctx context.Context, path string, p Page) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO pages (path, html, rendered_at) VALUES (?, ?, ?)`,
		path, p.HTML, p.RenderedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// ListPaths returns every stored path in order.
func (s *SQLitePageStore) ListPaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM pages ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Purge removes every stored page.
func (s *SQLitePageStore) Purge(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pages`)
	return err
}
