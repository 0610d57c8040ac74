package actor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/haldanelabs/dlcore/internal/domain/backend"
	domainevents "github.com/haldanelabs/dlcore/internal/domain/events"
	"github.com/haldanelabs/dlcore/internal/domain/task"
	"github.com/haldanelabs/dlcore/internal/metrics"
	coreerrors "github.com/haldanelabs/dlcore/pkg/errors"
)

// handleCreate implements the Create dispatch algorithm.
func (a *Actor) handleCreate(ctx context.Context, m CreateTx) {
	normalized, err := task.NormalizeResource(m.Resource)
	if err != nil {
		m.Reply <- CreateResult{Err: err}
		return
	}

	if m.Dir == "" || m.Dir == "/" {
		m.Reply <- CreateResult{Err: coreerrors.New(coreerrors.KindDownloadDir, "dir must be non-empty and not /")}
		return
	}

	existing, err := a.store.Get(ctx, normalized.InfoHash)
	if err == nil {
		// Idempotent create: a second Create for the same resource returns
		// the existing row's info-hash untouched.
		m.Reply <- CreateResult{InfoHash: existing.InfoHash}
		return
	}
	if !coreerrors.IsTaskNotFound(err) {
		m.Reply <- CreateResult{Err: err}
		return
	}

	now := time.Now().UTC()
	t := &task.Task{
		InfoHash:      normalized.InfoHash,
		Status:        task.StatusPending,
		Downloader:    "",
		AllowFallback: m.AllowFallback,
		Dir:           m.Dir,
		ResourceType:  normalized.ResourceType,
		Magnet:        normalized.Magnet,
		TorrentURL:    normalized.TorrentURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := a.store.Upsert(ctx, t); err != nil {
		m.Reply <- CreateResult{Err: err}
		return
	}
	a.publish(ctx, domainevents.NewTaskCreated(t.InfoHash, string(t.ResourceType)))

	a.dispatchToBackend(ctx, t, normalized, m.AllowFallback)

	m.Reply <- CreateResult{InfoHash: t.InfoHash}
}

// dispatchToBackend picks registry.Best() and hands the resource to it,
// applying the fallback loop on failure when allowFallback is set. t is
// assumed freshly loaded; its Status field is mutated in place to reflect
// the outcome, and the store is updated to match before returning.
func (a *Actor) dispatchToBackend(ctx context.Context, t *task.Task, normalized task.NormalizedResource, allowFallback bool) {
	b, err := a.registry.Best()
	if err != nil {
		a.failDispatch(ctx, t, err)
		return
	}
	a.tryBackend(ctx, t, normalized, b, allowFallback, "")
}

// tryBackend calls AddTask on b, falling back to the next-best unused
// backend on failure (when allowFallback), and failing the task outright
// when fallbacks are exhausted or disabled. tried accumulates the names
// already attempted during this single dispatch attempt, separately from
// t.Downloader: Downloader only grows on a *successful* AddTask, so a
// failing top-priority backend must be tracked locally or BestUnused
// would keep handing it back.
func (a *Actor) tryBackend(ctx context.Context, t *task.Task, normalized task.NormalizedResource, b backend.Backend, allowFallback bool, tried string) {
	callCtx, cancel := context.WithTimeout(ctx, backendTimeout(b))
	defer cancel()

	taskContext, err := b.AddTask(callCtx, t.InfoHash, normalized, t.Dir)
	if err == nil {
		a.onBackendAccepted(ctx, t, b, taskContext)
		return
	}

	a.logger.Warn("backend rejected add_task",
		zap.String("info_hash", t.InfoHash), zap.String("backend", b.Name()), zap.Error(err))

	tried = task.AppendDownloaderCSV(tried, b.Name())

	if !allowFallback {
		a.failDispatch(ctx, t, err)
		return
	}

	next, fbErr := a.registry.BestUnused(tried)
	if fbErr != nil {
		a.failDispatch(ctx, t, err)
		return
	}
	a.tryBackend(ctx, t, normalized, next, allowFallback, tried)
}

func (a *Actor) onBackendAccepted(ctx context.Context, t *task.Task, b backend.Backend, taskContext string) {
	if t.CurrentDownloader() != b.Name() {
		t.Downloader = task.AppendDownloaderCSV(t.Downloader, b.Name())
	}
	t.Context = taskContext

	now := time.Now().UTC()
	switch t.Status {
	case task.StatusPending:
		if err := task.Transition(t, task.TriggerBackendAccepted, now); err != nil {
			a.logger.Error("illegal transition on backend_accepted", zap.Error(err))
			return
		}
	case task.StatusRetrying:
		if err := task.Transition(t, task.TriggerRetryDispatched, now); err != nil {
			a.logger.Error("illegal transition on retry_dispatched", zap.Error(err))
			return
		}
	default:
		// Already Downloading: this is an in-place fallback rotation
		// (ObservedState==Failed, branch 1) — the status does not change,
		// only the downloader history and context do.
		t.UpdatedAt = now
	}

	if err := a.store.Upsert(ctx, t); err != nil {
		a.logger.Error("failed to persist backend_accepted", zap.String("info_hash", t.InfoHash), zap.Error(err))
		return
	}
	metrics.TasksDispatched.WithLabelValues(b.Name()).Inc()
	a.publish(ctx, domainevents.NewTaskDispatched(t.InfoHash, b.Name(), 1))
}

// failDispatch applies whichever Failed transition is legal from t's
// current status: a fatal first dispatch (Pending), an exhausted
// fallback loop (Downloading), or an exhausted retry (Retrying) — all
// reach Failed.
func (a *Actor) failDispatch(ctx context.Context, t *task.Task, cause error) {
	t.ErrMsg = cause.Error()

	now := time.Now().UTC()
	var err error
	switch t.Status {
	case task.StatusPending:
		err = task.Transition(t, task.TriggerDispatchFailed, now)
	case task.StatusRetrying:
		err = task.Transition(t, task.TriggerRetryExhausted, now)
	default:
		err = task.TransitionTo(t, task.TriggerObservedFailed, task.StatusFailed, now)
	}
	if err != nil {
		a.logger.Error("illegal transition while failing dispatch", zap.Error(err))
		return
	}
	if err := a.store.Upsert(ctx, t); err != nil {
		a.logger.Error("failed to persist dispatch_failed", zap.String("info_hash", t.InfoHash), zap.Error(err))
		return
	}
	metrics.TasksFailed.Inc()
	a.publish(ctx, domainevents.NewTaskFailed(t.InfoHash, t.ErrMsg, 1))
}

func backendTimeout(b backend.Backend) time.Duration {
	if d := b.Config().DownloadTimeout; d > 0 {
		return d
	}
	return 30 * time.Minute
}

// handleRemove, handlePause, handleResume and handleRestart share one
// shape: look up the task, apply a trigger, persist, reply.
func (a *Actor) handleRemove(ctx context.Context, m RemoveTx) {
	t, err := a.store.Get(ctx, m.InfoHash)
	if err != nil {
		m.Reply <- err
		return
	}

	b, lookupErr := a.registry.Take(t.Downloader)
	if lookupErr == nil {
		callCtx, cancel := context.WithTimeout(ctx, backendTimeout(b))
		if err := b.RemoveTask(callCtx, t.InfoHash, t.Context); err != nil {
			// Remove is best-effort w.r.t. the backend: log,
			// never block the transition to Cancelled on it.
			a.logger.Warn("backend remove_task failed, continuing",
				zap.String("info_hash", t.InfoHash), zap.Error(err))
		}
		cancel()
	}

	if err := task.Transition(t, task.TriggerRemove, time.Now().UTC()); err != nil {
		m.Reply <- err
		return
	}
	if err := a.store.Upsert(ctx, t); err != nil {
		m.Reply <- err
		return
	}
	a.publish(ctx, domainevents.NewTaskCancelled(t.InfoHash, 1))
	m.Reply <- nil
}

func (a *Actor) handlePause(ctx context.Context, m PauseTx) {
	t, err := a.store.Get(ctx, m.InfoHash)
	if err != nil {
		m.Reply <- err
		return
	}

	b, err := a.registry.Take(t.Downloader)
	if err != nil {
		m.Reply <- err
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, backendTimeout(b))
	err = b.PauseTask(callCtx, t.InfoHash, t.Context)
	cancel()
	if err != nil {
		m.Reply <- err
		return
	}

	if err := task.Transition(t, task.TriggerPause, time.Now().UTC()); err != nil {
		m.Reply <- err
		return
	}
	m.Reply <- a.store.Upsert(ctx, t)
}

func (a *Actor) handleResume(ctx context.Context, m ResumeTx) {
	t, err := a.store.Get(ctx, m.InfoHash)
	if err != nil {
		m.Reply <- err
		return
	}

	b, err := a.registry.Take(t.Downloader)
	if err != nil {
		m.Reply <- err
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, backendTimeout(b))
	err = b.ResumeTask(callCtx, t.InfoHash, t.Context)
	cancel()
	if err != nil {
		m.Reply <- err
		return
	}

	if err := task.Transition(t, task.TriggerResume, time.Now().UTC()); err != nil {
		m.Reply <- err
		return
	}
	m.Reply <- a.store.Upsert(ctx, t)
}

func (a *Actor) handleRestart(ctx context.Context, m RestartTx) {
	t, err := a.store.Get(ctx, m.InfoHash)
	if err != nil {
		m.Reply <- err
		return
	}

	if err := task.Transition(t, task.TriggerRestart, time.Now().UTC()); err != nil {
		m.Reply <- err
		return
	}
	if err := a.store.Upsert(ctx, t); err != nil {
		m.Reply <- err
		return
	}
	a.publish(ctx, domainevents.NewTaskCreated(t.InfoHash, string(t.ResourceType)))
	m.Reply <- nil
}

// handleObservedState implements the ObservedState dispatch
// algorithm, fed by the Status Syncer.
func (a *Actor) handleObservedState(ctx context.Context, m ObservedStateTx) {
	t, err := a.store.Get(ctx, m.InfoHash)
	if err != nil {
		a.logger.Warn("observed state for unknown task", zap.String("info_hash", m.InfoHash), zap.Error(err))
		return
	}

	switch m.State.Kind {
	case backend.TaskStateCompleted:
		a.handleObservedCompleted(ctx, t, m.State)
	case backend.TaskStateFailed:
		a.handleObservedFailed(ctx, t, m.State)
	default:
		// Downloading/Paused/Unknown progress reports do not change
		// download_status; the syncer only calls this when the kind
		// itself differs from what is persisted.
	}
}

func (a *Actor) handleObservedCompleted(ctx context.Context, t *task.Task, state backend.TaskState) {
	if err := task.Transition(t, task.TriggerObservedCompleted, time.Now().UTC()); err != nil {
		a.logger.Error("illegal transition on observed_completed", zap.Error(err))
		return
	}
	if err := a.store.Upsert(ctx, t); err != nil {
		a.logger.Error("failed to persist observed_completed", zap.String("info_hash", t.InfoHash), zap.Error(err))
		return
	}
	metrics.TasksCompleted.Inc()
	a.publish(ctx, domainevents.NewTaskCompleted(t.InfoHash, state.ArtifactPaths, 1))

	if b, err := a.registry.Take(t.Downloader); err == nil && b.Config().DeleteTaskOnCompletion {
		if err := a.store.Delete(ctx, t.InfoHash); err != nil {
			a.logger.Error("failed to delete completed task", zap.String("info_hash", t.InfoHash), zap.Error(err))
		}
	}
}

// handleObservedFailed is the three-branch algorithm: fall
// back to an unused backend, else retry with backoff, else fail.
func (a *Actor) handleObservedFailed(ctx context.Context, t *task.Task, state backend.TaskState) {
	t.ErrMsg = state.Reason

	if t.AllowFallback {
		if next, err := a.registry.BestUnused(t.Downloader); err == nil {
			metrics.TasksFallenBack.WithLabelValues(t.CurrentDownloader()).Inc()
			t.RetryCount = 0
			normalized := task.NormalizedResource{
				InfoHash:     t.InfoHash,
				ResourceType: t.ResourceType,
				Magnet:       t.Magnet,
				TorrentURL:   t.TorrentURL,
			}
			a.tryBackend(ctx, t, normalized, next, t.AllowFallback, t.Downloader)
			return
		}
	}

	current, err := a.registry.Take(t.Downloader)
	maxRetry := defaultMaxRetry
	retryCfg := task.RetryBackoffConfig{RetryMinInterval: defaultRetryMin, RetryMaxInterval: defaultRetryMax}
	if err == nil {
		cfg := current.Config()
		maxRetry = cfg.MaxRetryCount
		retryCfg = task.RetryBackoffConfig{RetryMinInterval: cfg.RetryMinInterval, RetryMaxInterval: cfg.RetryMaxInterval}
	}

	if t.RetryCount < maxRetry {
		t.RetryCount++
		now := time.Now().UTC()
		t.NextRetryAt = task.NextRetryAt(now, t.RetryCount, retryCfg)
		if err := task.TransitionTo(t, task.TriggerObservedFailed, task.StatusRetrying, now); err != nil {
			a.logger.Error("illegal transition on observed_failed->retrying", zap.Error(err))
			return
		}
		if err := a.store.Upsert(ctx, t); err != nil {
			a.logger.Error("failed to persist retrying", zap.String("info_hash", t.InfoHash), zap.Error(err))
			return
		}
		metrics.TasksRetried.Inc()
		a.publish(ctx, domainevents.NewTaskRetrying(t.InfoHash, t.RetryCount, t.ErrMsg, 1))
		return
	}

	trigger := task.TriggerObservedFailed
	if t.Status == task.StatusRetrying {
		trigger = task.TriggerRetryExhausted
	}
	if err := task.TransitionTo(t, trigger, task.StatusFailed, time.Now().UTC()); err != nil {
		a.logger.Error("illegal transition on retry_exhausted", zap.Error(err))
		return
	}
	if err := a.store.Upsert(ctx, t); err != nil {
		a.logger.Error("failed to persist failed", zap.String("info_hash", t.InfoHash), zap.Error(err))
		return
	}
	metrics.TasksFailed.Inc()
	a.publish(ctx, domainevents.NewTaskFailed(t.InfoHash, t.ErrMsg, 1))
}

// handleAutoRetry is emitted by the Retry Processor once a Retrying
// task's next_retry_at has elapsed. It re-dispatches to
// the currently-selected backend (retry_count is bounded by
// *that* backend's max_retry_count, so a retry re-tries the same
// backend, not an arbitrary new one).
func (a *Actor) handleAutoRetry(ctx context.Context, m AutoRetryTx) {
	t, err := a.store.Get(ctx, m.InfoHash)
	if err != nil {
		a.logger.Warn("auto-retry for unknown task", zap.String("info_hash", m.InfoHash), zap.Error(err))
		return
	}
	if t.Status != task.StatusRetrying {
		return
	}

	normalized := task.NormalizedResource{
		InfoHash:     t.InfoHash,
		ResourceType: t.ResourceType,
		Magnet:       t.Magnet,
		TorrentURL:   t.TorrentURL,
	}

	b, err := a.registry.Take(t.Downloader)
	if err != nil {
		a.logger.Warn("auto-retry found no backend", zap.String("info_hash", t.InfoHash), zap.Error(err))
		return
	}
	a.tryBackend(ctx, t, normalized, b, t.AllowFallback, t.Downloader)
}

const (
	defaultMaxRetry = 5
	defaultRetryMin = 30 * time.Second
	defaultRetryMax = 30 * time.Minute
)
