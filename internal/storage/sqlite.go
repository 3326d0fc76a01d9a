// Package storage persists pre-built collections.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/reteval/internal/models"
)

// ErrNotIndex is returned when a database lacks the tables of an index store.
var ErrNotIndex = errors.New("not an index store")

// indexTables are written by SaveCollection and required by OpenSQLiteStorage.
var indexTables = []string{"documents", "terms", "postings", "metadata"}

// SQLiteStorage persists a collection snapshot in SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// OpenSQLiteStorage opens an existing index store read-only. It never creates or
// alters anything and fails with ErrNotIndex when the index tables are missing.
func OpenSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("failed to open database: %s is a directory", dbPath)
	}

	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := checkSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}
	return &SQLiteStorage{db: db}, nil
}

func checkSchema(db *sql.DB) error {
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return err
	}
	have := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		have[name] = true
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	var missing []string
	for _, table := range indexTables {
		if !have[table] {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing tables %s", ErrNotIndex, strings.Join(missing, ", "))
	}
	return nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		length INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS terms (
		id INTEGER PRIMARY KEY,
		spelling TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS postings (
		term_id INTEGER NOT NULL,
		doc_id INTEGER NOT NULL,
		term_freq INTEGER NOT NULL,
		PRIMARY KEY (term_id, doc_id),
		FOREIGN KEY (term_id) REFERENCES terms(id) ON DELETE CASCADE,
		FOREIGN KEY (doc_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveCollection validates c and writes it in a single transaction, replacing previous contents.
func (s *SQLiteStorage) SaveCollection(ctx context.Context, c *models.Collection) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid collection: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"postings", "terms", "documents", "metadata"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	docStmt, err := tx.PrepareContext(ctx, `INSERT INTO documents (id, name, length) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer docStmt.Close()
	for i, doc := range c.Documents {
		if _, err := docStmt.ExecContext(ctx, i+1, doc.Name, doc.Length); err != nil {
			return fmt.Errorf("failed to insert document %d: %w", i+1, err)
		}
	}

	termStmt, err := tx.PrepareContext(ctx, `INSERT INTO terms (id, spelling) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer termStmt.Close()
	postingStmt, err := tx.PrepareContext(ctx, `INSERT INTO postings (term_id, doc_id, term_freq) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer postingStmt.Close()

	for i, spelling := range c.Terms {
		termID := i + 1
		if _, err := termStmt.ExecContext(ctx, termID, spelling); err != nil {
			return fmt.Errorf("failed to insert term %q: %w", spelling, err)
		}
		for _, p := range c.Postings[i] {
			if _, err := postingStmt.ExecContext(ctx, termID, p.DocID, p.TermFreq); err != nil {
				return fmt.Errorf("failed to insert posting (%d, %d): %w", termID, p.DocID, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES ('saved_at', ?)`,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return tx.Commit()
}

// LoadCollection reads the whole collection into memory. Ids must be dense, starting at 1.
func (s *SQLiteStorage) LoadCollection(ctx context.Context) (*models.Collection, error) {
	c := &models.Collection{}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, length FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	for rows.Next() {
		var id int
		var doc models.DocumentInfo
		if err := rows.Scan(&id, &doc.Name, &doc.Length); err != nil {
			rows.Close()
			return nil, err
		}
		if id != len(c.Documents)+1 {
			rows.Close()
			return nil, fmt.Errorf("document ids are not dense: got %d, want %d", id, len(c.Documents)+1)
		}
		c.Documents = append(c.Documents, doc)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, spelling FROM terms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query terms: %w", err)
	}
	for rows.Next() {
		var id int
		var spelling string
		if err := rows.Scan(&id, &spelling); err != nil {
			rows.Close()
			return nil, err
		}
		if id != len(c.Terms)+1 {
			rows.Close()
			return nil, fmt.Errorf("term ids are not dense: got %d, want %d", id, len(c.Terms)+1)
		}
		c.Terms = append(c.Terms, spelling)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	c.Postings = make([][]models.Posting, len(c.Terms))
	rows, err = s.db.QueryContext(ctx, `SELECT term_id, doc_id, term_freq FROM postings ORDER BY term_id, doc_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query postings: %w", err)
	}
	for rows.Next() {
		var termID int
		var p models.Posting
		if err := rows.Scan(&termID, &p.DocID, &p.TermFreq); err != nil {
			rows.Close()
			return nil, err
		}
		if termID < 1 || termID > len(c.Terms) {
			rows.Close()
			return nil, fmt.Errorf("posting references unknown term %d", termID)
		}
		c.Postings[termID-1] = append(c.Postings[termID-1], p)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	return c, nil
}

func closeRows(rows *sql.Rows) error {
	return errors.Join(rows.Err(), rows.Close())
}

// SavedAt returns when the collection was last written, or the zero time if never.
func (s *SQLiteStorage) SavedAt(ctx context.Context) (time.Time, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = 'saved_at'`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, value)
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
