package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"vlmodel/internal/core"
)

// DefaultRetention is how long an uploaded file stays retrievable.
const DefaultRetention = 6 * time.Hour

// Service orchestrates uploads, retrievals and deletions over the metadata
// store and the byte cache, keeping the two in lockstep.
type Service struct {
	store     Store
	cache     *Cache
	retention time.Duration
	logger    *slog.Logger

	// now is replaceable in tests
	now func() time.Time
}

// NewService creates a file service. retention <= 0 selects DefaultRetention.
func NewService(store Store, cache *Cache, retention time.Duration, logger *slog.Logger) *Service {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		cache:     cache,
		retention: retention,
		logger:    logger.With("component", "files"),
		now:       time.Now,
	}
}

// Upload stages a new file: bytes are written to the cache first, and the
// metadata record is only inserted once the bytes are fully on disk. A
// failed write leaves no record; a failed insert removes the bytes again.
func (s *Service) Upload(ctx context.Context, r io.Reader, filename, contentType, purpose string) (*Record, error) {
	if !ValidPurpose(purpose) {
		return nil, core.NewInvalidPurposeError(purpose)
	}

	id := NewFileID()
	s.logger.Info("start uploading file", "filename", filename, "content_type", contentType, "purpose", purpose)

	written, err := s.cache.Write(id, r)
	if err != nil {
		return nil, core.NewInternalError(fmt.Errorf("write upload %s: %w", id, err))
	}

	now := s.now()
	rec := &Record{
		ID:          id,
		Filename:    filename,
		Bytes:       written,
		Purpose:     purpose,
		ContentType: contentType,
		CreatedAt:   now,
		Expiration:  now.Add(s.retention),
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		// No orphan bytes without a record.
		if removeErr := s.cache.Remove(id); removeErr != nil {
			s.logger.Error("failed to remove bytes after insert failure", "file_id", id, "error", removeErr)
		}
		return nil, core.NewInternalError(fmt.Errorf("insert record %s: %w", id, err))
	}

	s.logger.Info("finish uploading file", "filename", filename, "file_id", id, "bytes", written)
	return rec, nil
}

// GetMetadata returns the record for id. Missing, expired, or records whose
// bytes have unexpectedly vanished all surface as FileNotFound.
func (s *Service) GetMetadata(ctx context.Context, id string) (*Record, error) {
	rec, err := s.store.GetUnexpired(ctx, id, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, core.NewFileNotFoundError(id)
		}
		return nil, core.NewInternalError(err)
	}
	// Bytes can trail the record only inside failure windows.
	if !s.cache.Exists(id) {
		return nil, core.NewFileNotFoundError(id)
	}
	return rec, nil
}

// GetContent returns a stream over the cached bytes plus the record, after
// the same existence and expiration checks as GetMetadata.
// The caller must close the stream.
func (s *Service) GetContent(ctx context.Context, id string) (io.ReadCloser, *Record, error) {
	rec, err := s.GetMetadata(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.cache.Open(id)
	if err != nil {
		return nil, nil, core.NewInternalError(err)
	}
	return f, rec, nil
}

// ContentPath returns the on-disk location of the cached bytes for id, after
// the same checks as GetMetadata. Used by the image resolver to reference
// uploaded files without copying them.
func (s *Service) ContentPath(ctx context.Context, id string) (string, error) {
	if _, err := s.GetMetadata(ctx, id); err != nil {
		return "", err
	}
	return s.cache.Path(id), nil
}

// Delete removes a file. Expiration is not checked: an expired record the
// sweeper has not reached yet can still be deleted explicitly. The metadata
// record goes first, then the bytes, so a crash in between leaves at most
// orphaned bytes for the next sweep.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.logger.Info("start deleting file", "file_id", id)

	if _, err := s.store.Get(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return core.NewFileNotFoundError(id)
		}
		return core.NewInternalError(err)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Lost a race with the sweeper or another delete.
			return core.NewFileNotFoundError(id)
		}
		return core.NewInternalError(err)
	}
	if err := s.cache.Remove(id); err != nil {
		s.logger.Error("failed to remove file bytes", "file_id", id, "error", err)
	}

	s.logger.Info("finish deleting file", "file_id", id)
	return nil
}

// List is intentionally unsupported.
func (s *Service) List(ctx context.Context) error {
	return core.NewListNotSupportedError()
}
