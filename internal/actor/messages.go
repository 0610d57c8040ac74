// Package actor implements the Worker Actor: the single
// cooperative event loop that owns every mutation to a Task row. Every
// other component — the Status Syncer, the Retry Processor, and any
// inbound API — talks to it exclusively through Tx messages.
package actor

import (
	"time"

	"github.com/haldanelabs/dlcore/internal/domain/backend"
	"github.com/haldanelabs/dlcore/internal/domain/task"
)

// Tx is the sealed set of messages the actor accepts.
type Tx interface {
	isTx()
}

// CreateTx submits a new resource for download.
type CreateTx struct {
	Resource      task.Resource
	Dir           string
	AllowFallback bool
	Reply         chan CreateResult
}

// CreateResult is CreateTx's reply: the canonical info-hash, or an error.
type CreateResult struct {
	InfoHash string
	Err      error
}

func (CreateTx) isTx() {}

// RemoveTx cancels a task unconditionally (legal from any
// state).
type RemoveTx struct {
	InfoHash string
	Reply    chan error
}

func (RemoveTx) isTx() {}

// PauseTx pauses an in-flight download.
type PauseTx struct {
	InfoHash string
	Reply    chan error
}

func (PauseTx) isTx() {}

// ResumeTx resumes a paused download.
type ResumeTx struct {
	InfoHash string
	Reply    chan error
}

func (ResumeTx) isTx() {}

// RestartTx restarts a task from a terminal state.
type RestartTx struct {
	InfoHash string
	Reply    chan error
}

func (RestartTx) isTx() {}

// ObservedStateTx carries a backend's report of a task's live state, as
// surfaced by the Status Syncer. No reply is expected —
// the syncer fires and moves on to the next task.
type ObservedStateTx struct {
	InfoHash string
	State    backend.TaskState
}

func (ObservedStateTx) isTx() {}

// AutoRetryTx asks the actor to dispatch a task whose retry delay has
// elapsed (emitted by the Retry Processor).
type AutoRetryTx struct {
	InfoHash string
}

func (AutoRetryTx) isTx() {}

// ShutdownTx asks the actor to drain its queue and stop. If draining does
// not finish by Deadline, the actor replies with a shutdown-timeout error.
type ShutdownTx struct {
	Deadline time.Duration
	Reply    chan error
}

func (ShutdownTx) isTx() {}
