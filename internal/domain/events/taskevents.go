package events

// Event types published over a task's lifecycle.
const (
	EventTypeTaskCreated    = "TaskCreated"
	EventTypeTaskDispatched = "TaskDispatched"
	EventTypeTaskRetrying   = "TaskRetrying"
	EventTypeTaskCompleted  = "TaskCompleted"
	EventTypeTaskFailed     = "TaskFailed"
	EventTypeTaskCancelled  = "TaskCancelled"

	aggregateTypeTask = "Task"
)

// TaskCreated is published when a resource is accepted and given a Task
// row (Create).
type TaskCreated struct {
	BaseEvent
	ResourceType string `json:"resource_type"`
}

func NewTaskCreated(infoHash, resourceType string) *TaskCreated {
	return &TaskCreated{
		BaseEvent:    NewBaseEvent(infoHash, aggregateTypeTask, EventTypeTaskCreated, 1),
		ResourceType: resourceType,
	}
}

// TaskDispatched is published when a backend accepts a task
// (BackendAccepted).
type TaskDispatched struct {
	BaseEvent
	Backend string `json:"backend"`
}

func NewTaskDispatched(infoHash, backendName string, version int) *TaskDispatched {
	return &TaskDispatched{
		BaseEvent: NewBaseEvent(infoHash, aggregateTypeTask, EventTypeTaskDispatched, version),
		Backend:   backendName,
	}
}

// TaskRetrying is published when a task is scheduled for another attempt.
type TaskRetrying struct {
	BaseEvent
	RetryCount int    `json:"retry_count"`
	Reason     string `json:"reason"`
}

func NewTaskRetrying(infoHash string, retryCount int, reason string, version int) *TaskRetrying {
	return &TaskRetrying{
		BaseEvent:  NewBaseEvent(infoHash, aggregateTypeTask, EventTypeTaskRetrying, version),
		RetryCount: retryCount,
		Reason:     reason,
	}
}

// TaskCompleted is published when a backend reports a task done
// (ObservedCompleted).
type TaskCompleted struct {
	BaseEvent
	ArtifactPaths []string `json:"artifact_paths"`
}

func NewTaskCompleted(infoHash string, artifactPaths []string, version int) *TaskCompleted {
	return &TaskCompleted{
		BaseEvent:     NewBaseEvent(infoHash, aggregateTypeTask, EventTypeTaskCompleted, version),
		ArtifactPaths: artifactPaths,
	}
}

// TaskFailed is published when a task exhausts its retries/fallbacks
// (terminal Failed).
type TaskFailed struct {
	BaseEvent
	Reason string `json:"reason"`
}

func NewTaskFailed(infoHash, reason string, version int) *TaskFailed {
	return &TaskFailed{
		BaseEvent: NewBaseEvent(infoHash, aggregateTypeTask, EventTypeTaskFailed, version),
		Reason:    reason,
	}
}

// TaskCancelled is published when a task is removed (Remove, legal from
// any state).
type TaskCancelled struct {
	BaseEvent
}

func NewTaskCancelled(infoHash string, version int) *TaskCancelled {
	return &TaskCancelled{
		BaseEvent: NewBaseEvent(infoHash, aggregateTypeTask, EventTypeTaskCancelled, version),
	}
}
