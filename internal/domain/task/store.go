package task

import (
	"context"
	"time"
)

// Store is the durable CRUD surface over the task table.
// It does not enforce state-machine legality — that is the state
// machine's job, invoked exclusively by the Worker Actor — but it must be
// safe to call concurrently from background tasks (the syncer and retry
// processor read it; only the actor writes).
type Store interface {
	// Get returns the task for infoHash, or a TaskNotFound error.
	Get(ctx context.Context, infoHash string) (*Task, error)

	// Upsert creates or overwrites the row, bumping UpdatedAt.
	Upsert(ctx context.Context, t *Task) error

	// ListByStatus returns every row whose Status is in statuses. Ordering
	// is unspecified but stable within a single call.
	ListByStatus(ctx context.Context, statuses ...Status) ([]*Task, error)

	// UpdateStatus is a focused, atomic partial update of the mutable
	// fields the state machine touches. nextRetryAt and retryCount are
	// pointers so callers can leave them unchanged.
	UpdateStatus(ctx context.Context, infoHash string, newStatus Status, errMsg string, nextRetryAt *time.Time, retryCount *int) error

	// AppendDownloader appends ",backendName" to the Downloader CSV.
	AppendDownloader(ctx context.Context, infoHash, backendName string) error

	// Delete removes the row for infoHash.
	Delete(ctx context.Context, infoHash string) error
}
