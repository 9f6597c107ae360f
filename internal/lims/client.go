package lims

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the upstream system has no record with the
// requested ID. Callers treat missing records as gaps in the graph rather
// than failures.
var ErrNotFound = errors.New("lims: record not found")

// Client fetches inventory records. Implementations must be safe for
// concurrent use.
type Client interface {
	// Plan fetches a workflow execution with its operations.
	Plan(ctx context.Context, id string) (*Plan, error)
	// Item fetches an inventory item.
	Item(ctx context.Context, id string) (*Item, error)
	// Collection fetches the well-plate view of a collection item.
	Collection(ctx context.Context, id string) (*Collection, error)
	// Job fetches a batch execution record.
	Job(ctx context.Context, id string) (*Job, error)
	// Upload fetches an uploaded file record.
	Upload(ctx context.Context, id string) (*Upload, error)
	// UploadContent fetches the raw bytes of an uploaded file.
	UploadContent(ctx context.Context, id string) ([]byte, error)
	// Sample fetches a sample record.
	Sample(ctx context.Context, id string) (*Sample, error)
}
