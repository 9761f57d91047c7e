package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/tutor/internal/models"
)

// ErrNotFound is returned when a document is not in the catalog.
var ErrNotFound = errors.New("document not found")

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
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

	return &SQLiteCatalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		source_id TEXT PRIMARY KEY,
		path TEXT,
		pages INTEGER NOT NULL,
		chunks INTEGER NOT NULL,
		model_id TEXT NOT NULL,
		ingested_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_ingested_at ON documents(ingested_at);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordDocuments upserts records in a transaction. A re-ingested document replaces its row.
func (s *SQLiteCatalog) RecordDocuments(ctx context.Context, records []models.DocumentRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (source_id, path, pages, chunks, model_id, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_id) DO UPDATE SET
		   path = excluded.path, pages = excluded.pages, chunks = excluded.chunks,
		   model_id = excluded.model_id, ingested_at = excluded.ingested_at`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.SourceID, r.Path, r.Pages, r.Chunks, r.ModelID, r.IngestedAt); err != nil {
			return fmt.Errorf("record %s: %w", r.SourceID, err)
		}
	}
	return tx.Commit()
}

// GetDocument returns the record for sourceID, or ErrNotFound.
func (s *SQLiteCatalog) GetDocument(ctx context.Context, sourceID string) (*models.DocumentRecord, error) {
	var r models.DocumentRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT source_id, path, pages, chunks, model_id, ingested_at
		 FROM documents WHERE source_id = ?`, sourceID,
	).Scan(&r.SourceID, &r.Path, &r.Pages, &r.Chunks, &r.ModelID, &r.IngestedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sourceID)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListDocuments returns records newest first with offset and limit.
func (s *SQLiteCatalog) ListDocuments(ctx context.Context, offset, limit int) ([]*models.DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, path, pages, chunks, model_id, ingested_at
		 FROM documents ORDER BY ingested_at DESC, source_id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.DocumentRecord
	for rows.Next() {
		var r models.DocumentRecord
		if err := rows.Scan(&r.SourceID, &r.Path, &r.Pages, &r.Chunks, &r.ModelID, &r.IngestedAt); err != nil {
			return nil, err
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// CountDocuments returns the number of cataloged documents.
func (s *SQLiteCatalog) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the total chunk count over all cataloged documents.
func (s *SQLiteCatalog) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(chunks), 0) FROM documents`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}
