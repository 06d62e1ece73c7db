package repository

import (
	"context"

	"github.com/iudd/soradeno/internal/domain/model"
)

// RecordStore is the port for the external tabular store holding tasks.
// Implementations own the store's schema (field names, localized status
// strings) and hand back normalized Task values.
type RecordStore interface {
	// Configured reports whether all connection parameters are present.
	// Callers must treat false as service-unavailable, not a bad request.
	Configured() bool

	ListAll(ctx context.Context, limit int) ([]*model.Task, error)
	ListPending(ctx context.Context, limit int) ([]*model.Task, error)
	Get(ctx context.Context, recordID string) (*model.Task, error)

	// MarkInProgress writes the in-progress status to the record.
	MarkInProgress(ctx context.Context, recordID string) error
	// MarkSuccess writes the success status plus every non-empty result URL
	// and a completion timestamp.
	MarkSuccess(ctx context.Context, recordID string, results model.ResultSet) error
	// MarkFailed writes the failed status with the failure message.
	MarkFailed(ctx context.Context, recordID string, message string) error

	// AttachmentURL resolves an attachment file token to a download URL.
	AttachmentURL(ctx context.Context, fileToken string) (string, error)
}
