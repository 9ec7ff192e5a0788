package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"taskboard/internal/blobs/models"
	"taskboard/pkg/platform/sentinel"
)

//go:embed schema.sql
var schema string

// timeLayout is fixed-width so created_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const fileColumns = `id, bucket_id, name, mime_type, size, stored_size, checksum, compression, created_at`

// SQLiteStore keeps blobs in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a throwaway store.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; this also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply blob schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Put(ctx context.Context, f *models.File, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (`+fileColumns+`, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.BucketID, f.Name, f.MimeType, f.Size, f.StoredSize, f.Checksum, f.Compression,
		f.CreatedAt.UTC().Format(timeLayout), payload)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, bucketID, id string) (*models.File, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE bucket_id = ? AND id = ?`, bucketID, id)
	f, err := scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get file: %w", err)
	}
	return f, nil
}

func (s *SQLiteStore) Read(ctx context.Context, bucketID, id string) (*models.File, []byte, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+`, payload FROM files WHERE bucket_id = ? AND id = ?`, bucketID, id)
	var payload []byte
	f, err := scanFile(row, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, sentinel.ErrNotFound
		}
		return nil, nil, fmt.Errorf("read file: %w", err)
	}
	return f, payload, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, bucketID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE bucket_id = ? AND id = ?`, bucketID, id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, bucketID string) ([]*models.File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE bucket_id = ? ORDER BY created_at DESC, id ASC`, bucketID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	out := make([]*models.File, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner, extra ...any) (*models.File, error) {
	var (
		f         models.File
		createdAt string
	)
	dest := append([]any{&f.ID, &f.BucketID, &f.Name, &f.MimeType, &f.Size, &f.StoredSize, &f.Checksum, &f.Compression, &createdAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	f.CreatedAt = t
	return &f, nil
}
