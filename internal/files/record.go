// Package files implements the uploaded-file subsystem: the metadata store,
// the on-disk byte cache, the orchestrating service and the expiry sweeper.
// The metadata row and the cached bytes for an id are created together and
// deleted together; the service is the only component allowed to touch both.
package files

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates a requested file record was not found.
var ErrNotFound = errors.New("file record not found")

// ErrDuplicateID indicates an insert collided with an existing id. Ids carry
// 128 bits of entropy, so hitting this means a bug rather than bad luck.
var ErrDuplicateID = errors.New("file id already exists")

// Purposes accepted by the upload endpoint.
const (
	PurposeFineTune         = "fine-tune"
	PurposeFineTuneResults  = "fine-tune-results"
	PurposeAssistants       = "assistants"
	PurposeAssistantsOutput = "assistants_output"
)

// ValidPurpose reports whether purpose is one of the accepted values.
func ValidPurpose(purpose string) bool {
	switch purpose {
	case PurposeFineTune, PurposeFineTuneResults, PurposeAssistants, PurposeAssistantsOutput:
		return true
	}
	return false
}

// Record is the persisted metadata for one uploaded file.
type Record struct {
	ID          string
	Filename    string
	Bytes       int64
	Purpose     string
	ContentType string
	CreatedAt   time.Time
	Expiration  time.Time
}

// Expired reports whether the record's retention window has passed.
func (r *Record) Expired(now time.Time) bool {
	return !r.Expiration.After(now)
}

// Store defines persistence operations over file records.
// Implementations must be safe for concurrent use by the upload path,
// the retrieval paths and the sweeper.
type Store interface {
	// Insert stores a new record. Returns ErrDuplicateID if the id exists.
	Insert(ctx context.Context, rec *Record) error

	// Get returns a record by id regardless of expiration.
	Get(ctx context.Context, id string) (*Record, error)

	// GetUnexpired returns a record by id only if its expiration is after now.
	GetUnexpired(ctx context.Context, id string, now time.Time) (*Record, error)

	// Delete removes a record regardless of expiration.
	// Returns ErrNotFound if no record exists.
	Delete(ctx context.Context, id string) error

	// ListExpired returns all records whose expiration is before now.
	ListExpired(ctx context.Context, now time.Time) ([]*Record, error)
}

// NewFileID generates an OpenAI-style file identifier:
// "file-" followed by 32 lowercase hex characters.
func NewFileID() string {
	return "file-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
