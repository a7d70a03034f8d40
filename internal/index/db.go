package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JohnDeved/myrient-filter/internal/client"
)

// ErrNotIndexed is returned when a listing is requested for a system that
// has never been crawled.
var ErrNotIndexed = errors.New("not indexed")

// DB wraps the SQLite database holding crawled listings.
type DB struct {
	db *sql.DB
}

// OpenDB opens or creates the SQLite database at the given path.
func OpenDB(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS systems (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection_id INTEGER NOT NULL REFERENCES collections(id),
		name TEXT NOT NULL,
		last_crawled DATETIME,
		UNIQUE(collection_id, name)
	);

	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		system_id INTEGER NOT NULL REFERENCES systems(id),
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		size TEXT DEFAULT '',
		date TEXT DEFAULT '',
		is_dir INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_files_system ON files(system_id, position);

	CREATE VIRTUAL TABLE IF NOT EXISTS files_fts USING fts5(
		name,
		content=files,
		content_rowid=id,
		tokenize='unicode61 remove_diacritics 2'
	);

	CREATE TRIGGER IF NOT EXISTS files_ai AFTER INSERT ON files BEGIN
		INSERT INTO files_fts(rowid, name) VALUES (new.id, new.name);
	END;

	CREATE TRIGGER IF NOT EXISTS files_ad AFTER DELETE ON files BEGIN
		INSERT INTO files_fts(files_fts, rowid, name) VALUES('delete', old.id, old.name);
	END;
	`
	_, err := db.Exec(schema)
	return err
}

// SearchResult is an indexed file with the collection and system it belongs to.
type SearchResult struct {
	client.Entry
	Collection string `json:"collection"`
	System     string `json:"system"`
}

// Stats holds row counts of the index.
type Stats struct {
	Collections int `json:"collections"`
	Systems     int `json:"systems"`
	Files       int `json:"files"`
}

// collectionKey is the stored form of a collection path.
func collectionKey(collection string) string {
	return strings.Trim(collection, "/")
}

// UpsertSystem ensures the collection and system rows exist and returns the
// system's ID.
func (d *DB) UpsertSystem(ctx context.Context, collection, system string) (int64, error) {
	collection = collectionKey(collection)
	if _, err := d.db.ExecContext(ctx,
		`INSERT INTO collections (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, collection); err != nil {
		return 0, fmt.Errorf("upserting collection %s: %w", collection, err)
	}
	if _, err := d.db.ExecContext(ctx,
		`INSERT INTO systems (collection_id, name)
		 SELECT id, ? FROM collections WHERE name = ?
		 ON CONFLICT(collection_id, name) DO NOTHING`, system, collection); err != nil {
		return 0, fmt.Errorf("upserting system %s: %w", system, err)
	}

	var id int64
	err := d.db.QueryRowContext(ctx,
		`SELECT s.id FROM systems s JOIN collections c ON c.id = s.collection_id
		 WHERE c.name = ? AND s.name = ?`, collection, system).Scan(&id)
	return id, err
}

// IsSystemStale checks whether a system needs re-crawling.
func (d *DB) IsSystemStale(ctx context.Context, collection, system string, staleDays int) (bool, error) {
	collection = collectionKey(collection)
	var lastCrawled sql.NullTime
	err := d.db.QueryRowContext(ctx,
		`SELECT s.last_crawled FROM systems s JOIN collections c ON c.id = s.collection_id
		 WHERE c.name = ? AND s.name = ?`, collection, system).Scan(&lastCrawled)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return true, err
	}
	if !lastCrawled.Valid {
		return true, nil
	}
	return time.Since(lastCrawled.Time) > time.Duration(staleDays)*24*time.Hour, nil
}

// ReplaceSystemFiles swaps the stored listing of a system for entries, in
// order, and marks the system as crawled.
func (d *DB) ReplaceSystemFiles(ctx context.Context, systemID int64, entries []client.Entry) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE system_id = ?", systemID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO files (system_id, position, name, url, size, date, is_dir)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, systemID, i, e.Name, e.URL, e.Size, e.Date, e.IsDir); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE systems SET last_crawled = ? WHERE id = ?", time.Now().UTC(), systemID); err != nil {
		return err
	}
	return tx.Commit()
}

// ListDirectories returns the indexed systems of a collection, by name.
func (d *DB) ListDirectories(ctx context.Context, collection string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT s.name FROM systems s JOIN collections c ON c.id = s.collection_id
		 WHERE c.name = ? AND s.last_crawled IS NOT NULL ORDER BY s.name`, collectionKey(collection))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ListFiles returns the stored listing of a system in crawl order.
func (d *DB) ListFiles(ctx context.Context, collection, system string) ([]client.Entry, error) {
	collection = collectionKey(collection)
	var systemID int64
	var lastCrawled sql.NullTime
	err := d.db.QueryRowContext(ctx,
		`SELECT s.id, s.last_crawled FROM systems s JOIN collections c ON c.id = s.collection_id
		 WHERE c.name = ? AND s.name = ?`, collection, system).Scan(&systemID, &lastCrawled)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !lastCrawled.Valid) {
		return nil, fmt.Errorf("%s/%s: %w", collection, system, ErrNotIndexed)
	}
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT name, url, size, date, is_dir FROM files WHERE system_id = ? ORDER BY position`, systemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []client.Entry
	for rows.Next() {
		var e client.Entry
		if err := rows.Scan(&e.Name, &e.URL, &e.Size, &e.Date, &e.IsDir); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// sanitizeFTS5Query quotes each word so user input cannot form FTS5
// operators. Embedded double quotes are doubled.
func sanitizeFTS5Query(query string) string {
	strip := strings.NewReplacer("(", "", ")", "", "[", "", "]", "", "{", "", "}", "", "^", "", "*", "")

	var quoted []string
	for _, w := range strings.Fields(query) {
		w = strip.Replace(w)
		if w == "" {
			continue
		}
		quoted = append(quoted, `"`+strings.ReplaceAll(w, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}

// Search performs a full-text search over indexed file names, optionally
// restricted to one collection.
func (d *DB) Search(ctx context.Context, query, collection string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	collection = collectionKey(collection)
	sanitized := sanitizeFTS5Query(query)
	if sanitized == "" {
		return nil, nil
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT f.name, f.url, f.size, f.date, f.is_dir, c.name, s.name
		FROM files_fts fts
		JOIN files f ON f.id = fts.rowid
		JOIN systems s ON s.id = f.system_id
		JOIN collections c ON c.id = s.collection_id
		WHERE files_fts MATCH ?
		  AND (? = '' OR c.name = ?)
		ORDER BY rank
		LIMIT ?
	`, sanitized, collection, collection, limit)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Name, &r.URL, &r.Size, &r.Date, &r.IsDir, &r.Collection, &r.System); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetStats returns statistics about the index.
func (d *DB) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM collections").Scan(&s.Collections); err != nil {
		return s, err
	}
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM systems").Scan(&s.Systems); err != nil {
		return s, err
	}
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&s.Files); err != nil {
		return s, err
	}
	return s, nil
}
