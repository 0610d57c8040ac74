// Package backend defines the pluggable third-party downloader contract
// and the registry that selects among registered backends
// by priority.
package backend

import (
	"context"
	"time"

	"github.com/haldanelabs/dlcore/internal/domain/task"
)

// Config is a backend's static tuning, injected at startup.
type Config struct {
	MaxRetryCount          int
	RetryMinInterval       time.Duration
	RetryMaxInterval       time.Duration
	DownloadTimeout        time.Duration
	DeleteTaskOnCompletion bool
	DownloadDir            string
	Priority               uint8
}

// TaskStateKind tags the variant carried by TaskState.
type TaskStateKind int

const (
	TaskStateDownloading TaskStateKind = iota
	TaskStateCompleted
	TaskStateFailed
	TaskStatePaused
	TaskStateUnknown
)

// TaskState is the tagged variant a backend reports for one of its tasks.
type TaskState struct {
	Kind          TaskStateKind
	Progress      float64  // 0..1, meaningful only for TaskStateDownloading
	ArtifactPaths []string // meaningful only for TaskStateCompleted
	Reason        string   // meaningful only for TaskStateFailed
}

// Backend is a black-box third-party downloader implementation. The core
// never inspects a backend's internals; every interaction crosses this
// interface.
type Backend interface {
	// Name is this backend's stable identifier.
	Name() string

	// Config returns this backend's static tuning.
	Config() Config

	// AddTask hands resource to the backend and returns an opaque context
	// string the core round-trips verbatim into RemoveTask/PauseTask/
	// ResumeTask.
	AddTask(ctx context.Context, infoHash string, resource task.NormalizedResource, dir string) (taskContext string, err error)

	// RemoveTask asks the backend to drop infoHash. Best-effort: the core
	// transitions to Cancelled regardless of the outcome.
	RemoveTask(ctx context.Context, infoHash, taskContext string) error

	// PauseTask asks the backend to pause infoHash.
	PauseTask(ctx context.Context, infoHash, taskContext string) error

	// ResumeTask asks the backend to resume infoHash.
	ResumeTask(ctx context.Context, infoHash, taskContext string) error

	// ListTasks returns the backend's live view of every task it knows
	// about, keyed by info-hash.
	ListTasks(ctx context.Context) (map[string]TaskState, error)
}
