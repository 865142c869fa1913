package files

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore stores file records in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates the file_records table and indexes if needed.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS file_records (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			bytes BIGINT NOT NULL,
			purpose TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL,
			expiration BIGINT NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create file_records table: %w", err)
	}

	if _, err := pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_file_records_expiration ON file_records(expiration)"); err != nil {
		return nil, fmt.Errorf("failed to create file_records expiration index: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Insert stores a new record.
func (s *PostgresStore) Insert(ctx context.Context, rec *Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO file_records (id, filename, bytes, purpose, content_type, created_at, expiration)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.Filename, rec.Bytes, rec.Purpose, rec.ContentType, rec.CreatedAt.Unix(), rec.Expiration.Unix())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert file record: %w", err)
	}
	return nil
}

// Get returns a record by id regardless of expiration.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, filename, bytes, purpose, content_type, created_at, expiration
		FROM file_records WHERE id = $1
	`, id)
	return scanPgxRecord(row)
}

// GetUnexpired returns a record by id only if its expiration is after now.
func (s *PostgresStore) GetUnexpired(ctx context.Context, id string, now time.Time) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, filename, bytes, purpose, content_type, created_at, expiration
		FROM file_records WHERE id = $1 AND expiration > $2
	`, id, now.Unix())
	return scanPgxRecord(row)
}

// Delete removes a record regardless of expiration.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM file_records WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListExpired returns all records whose expiration is before now.
func (s *PostgresStore) ListExpired(ctx context.Context, now time.Time) ([]*Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, filename, bytes, purpose, content_type, created_at, expiration
		FROM file_records WHERE expiration < $1
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

func scanPgxRecord(row pgx.Row) (*Record, error) {
	rec, err := scanRecordRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}
