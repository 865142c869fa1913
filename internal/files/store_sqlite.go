package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore stores file records in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the file_records table and indexes if needed.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS file_records (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			bytes INTEGER NOT NULL,
			purpose TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			expiration INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create file_records table: %w", err)
	}

	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_file_records_expiration ON file_records(expiration)"); err != nil {
		return nil, fmt.Errorf("failed to create file_records expiration index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Insert stores a new record.
func (s *SQLiteStore) Insert(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_records (id, filename, bytes, purpose, content_type, created_at, expiration)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Filename, rec.Bytes, rec.Purpose, rec.ContentType, rec.CreatedAt.Unix(), rec.Expiration.Unix())
	if err != nil {
		// The only constraint on the table is the primary key.
		var exists int
		checkErr := s.db.QueryRowContext(ctx, "SELECT 1 FROM file_records WHERE id = ?", rec.ID).Scan(&exists)
		if checkErr == nil {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert file record: %w", err)
	}
	return nil
}

// Get returns a record by id regardless of expiration.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, bytes, purpose, content_type, created_at, expiration
		FROM file_records WHERE id = ?
	`, id)
	return scanRecord(row)
}

// GetUnexpired returns a record by id only if its expiration is after now.
func (s *SQLiteStore) GetUnexpired(ctx context.Context, id string, now time.Time) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, bytes, purpose, content_type, created_at, expiration
		FROM file_records WHERE id = ? AND expiration > ?
	`, id, now.Unix())
	return scanRecord(row)
}

// Delete removes a record regardless of expiration.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM file_records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read delete rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListExpired returns all records whose expiration is before now.
func (s *SQLiteStore) ListExpired(ctx context.Context, now time.Time) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, bytes, purpose, content_type, created_at, expiration
		FROM file_records WHERE expiration < ?
	`, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("list expired file records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecordRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file record rows: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row *sql.Row) (*Record, error) {
	rec, err := scanRecordRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func scanRecordRow(row rowScanner) (*Record, error) {
	var rec Record
	var createdAt, expiration int64
	if err := row.Scan(&rec.ID, &rec.Filename, &rec.Bytes, &rec.Purpose, &rec.ContentType, &createdAt, &expiration); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan file record: %w", err)
	}
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.Expiration = time.Unix(expiration, 0)
	return &rec, nil
}
