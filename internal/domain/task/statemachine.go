package task

import (
	"fmt"
	"time"

	coreerrors "github.com/haldanelabs/dlcore/pkg/errors"
)

// Trigger identifies the event driving a transition.
type Trigger string

const (
	TriggerBackendAccepted   Trigger = "backend_accepted"
	TriggerDispatchFailed    Trigger = "dispatch_failed"
	TriggerObservedCompleted Trigger = "observed_completed"
	TriggerObservedFailed    Trigger = "observed_failed"
	TriggerPause             Trigger = "pause"
	TriggerResume            Trigger = "resume"
	TriggerRemove            Trigger = "remove"
	TriggerRetryDispatched   Trigger = "retry_dispatched"
	TriggerRetryExhausted    Trigger = "retry_exhausted"
	TriggerRestart           Trigger = "restart"
)

// legalTransitions enumerates every (from, trigger) pair that is allowed
// to fire, mapped to its destination status. Anything absent is an
// IllegalTransition (the table, Remove-from-any-state handled
// separately since it applies uniformly).
var legalTransitions = map[Status]map[Trigger]Status{
	StatusPending: {
		TriggerBackendAccepted: StatusDownloading,
		TriggerDispatchFailed:  StatusFailed,
	},
	StatusDownloading: {
		TriggerObservedCompleted: StatusCompleted,
		TriggerObservedFailed:    StatusFailed, // shadowed: CanTransition resolves this pair to Retrying; callers reach Failed via TransitionTo
		TriggerPause:             StatusPaused,
	},
	StatusPaused: {
		TriggerResume: StatusDownloading,
	},
	StatusRetrying: {
		TriggerRetryDispatched: StatusDownloading,
		TriggerRetryExhausted:  StatusFailed,
	},
}

// CanTransition reports whether firing trigger from status is legal,
// ignoring the uniform Remove-from-any-state and Restart-from-terminal
// rules handled by Transition itself.
func CanTransition(from Status, trigger Trigger) (Status, bool) {
	// Downloading -> Retrying is legal but shares a trigger
	// (TriggerObservedFailed) with Downloading -> Failed; the caller
	// (Worker Actor) decides which by passing the already-resolved target
	// via TransitionTo instead of relying on the static table for that
	// one case.
	if from == StatusDownloading && trigger == TriggerObservedFailed {
		return StatusRetrying, true // default; actor may instead call TransitionTo(StatusFailed)
	}
	byTrigger, ok := legalTransitions[from]
	if !ok {
		return "", false
	}
	to, ok := byTrigger[trigger]
	return to, ok
}

// Transition validates and applies a state-machine move, bumping
// UpdatedAt on success. It is the single place that enforces the
// legality table plus the two uniform rules (Remove always
// reaches Cancelled; Restart always returns a terminal task to Pending).
func Transition(t *Task, trigger Trigger, now time.Time) error {
	return transitionTo(t, trigger, "", now)
}

// TransitionTo is used for the one trigger (TriggerObservedFailed) whose
// destination is ambiguous from the table alone: the Worker Actor has
// already decided, via its dispatch algorithm, whether the task should
// land in Retrying or Failed.
func TransitionTo(t *Task, trigger Trigger, to Status, now time.Time) error {
	return transitionTo(t, trigger, to, now)
}

func transitionTo(t *Task, trigger Trigger, forcedTo Status, now time.Time) error {
	// Remove is legal from any non-terminal state and from terminal
	// states too (a best-effort no-op there is fine); it always reaches
	// Cancelled.
	if trigger == TriggerRemove {
		t.Status = StatusCancelled
		t.UpdatedAt = now
		return nil
	}

	// Restart is legal only from a terminal state and always returns to
	// Pending, clearing failure bookkeeping.
	if trigger == TriggerRestart {
		if !t.Status.Terminal() {
			return illegalTransition(t.Status, trigger)
		}
		t.Status = StatusPending
		t.ErrMsg = ""
		t.RetryCount = 0
		t.NextRetryAt = time.Time{}
		t.UpdatedAt = now
		return nil
	}

	to, ok := CanTransition(t.Status, trigger)
	if !ok {
		return illegalTransition(t.Status, trigger)
	}
	if forcedTo != "" {
		to = forcedTo
	}

	t.Status = to
	t.UpdatedAt = now
	return nil
}

func illegalTransition(from Status, trigger Trigger) error {
	return coreerrors.New(
		coreerrors.KindIllegalTransition,
		fmt.Sprintf("cannot apply trigger %q from status %q", trigger, from),
	)
}
