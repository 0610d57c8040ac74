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

// Actor is the Worker Actor: the single consumer that owns
// every mutation of the task table. Every other component reaches it only
// through Send.
type Actor struct {
	store     task.Store
	registry  *backend.Registry
	publisher domainevents.EventPublisher // nil is accepted: the actor runs with events disabled
	logger    *zap.Logger

	queue    chan Tx
	done     chan struct{}
	draining chan struct{}
}

// New builds an Actor with a queue of the given size. size <= 0 falls
// back to the default of 128.
func New(store task.Store, registry *backend.Registry, publisher domainevents.EventPublisher, logger *zap.Logger, queueSize int) *Actor {
	if queueSize <= 0 {
		queueSize = 128
	}
	return &Actor{
		store:     store,
		registry:  registry,
		publisher: publisher,
		logger:    logger.Named("actor"),
		queue:     make(chan Tx, queueSize),
		done:      make(chan struct{}),
		draining:  make(chan struct{}),
	}
}

// Send enqueues tx for processing. It returns ChannelClosed once the actor
// has begun shutting down or has stopped.
func (a *Actor) Send(ctx context.Context, tx Tx) error {
	select {
	case <-a.draining:
		return coreerrors.New(coreerrors.KindChannelClosed, "actor is shutting down")
	default:
	}

	select {
	case a.queue <- tx:
		metrics.ActorQueueDepth.Set(float64(len(a.queue)))
		return nil
	case <-a.done:
		return coreerrors.New(coreerrors.KindChannelClosed, "actor has stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the single-consumer event loop (single-writer,
// FIFO per producer). It blocks until Shutdown is processed or ctx is
// cancelled.
func (a *Actor) Run(ctx context.Context) {
	defer close(a.done)

	for {
		select {
		case tx := <-a.queue:
			metrics.ActorQueueDepth.Set(float64(len(a.queue)))
			if shutdown, ok := tx.(ShutdownTx); ok {
				a.handleShutdown(ctx, shutdown)
				return
			}
			a.process(ctx, tx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *Actor) handleShutdown(ctx context.Context, tx ShutdownTx) {
	close(a.draining)

	deadline := time.After(tx.Deadline)
	for {
		select {
		case pending := <-a.queue:
			a.process(ctx, pending)
		default:
			if tx.Reply != nil {
				tx.Reply <- nil
			}
			return
		case <-deadline:
			a.drainRemaining(ctx)
			if tx.Reply != nil {
				tx.Reply <- coreerrors.New(coreerrors.KindShutdownTimeout, "actor did not drain its queue before the shutdown deadline")
			}
			return
		}
	}
}

// drainRemaining discards messages still on the queue after a shutdown
// timeout, replying ChannelClosed to anyone still waiting so no caller
// blocks forever.
func (a *Actor) drainRemaining(ctx context.Context) {
	for {
		select {
		case tx := <-a.queue:
			replyClosed(tx)
		default:
			return
		}
	}
}

func replyClosed(tx Tx) {
	closedErr := coreerrors.New(coreerrors.KindChannelClosed, "actor has stopped")
	switch m := tx.(type) {
	case CreateTx:
		if m.Reply != nil {
			m.Reply <- CreateResult{Err: closedErr}
		}
	case RemoveTx:
		if m.Reply != nil {
			m.Reply <- closedErr
		}
	case PauseTx:
		if m.Reply != nil {
			m.Reply <- closedErr
		}
	case ResumeTx:
		if m.Reply != nil {
			m.Reply <- closedErr
		}
	case RestartTx:
		if m.Reply != nil {
			m.Reply <- closedErr
		}
	}
}

func (a *Actor) process(ctx context.Context, tx Tx) {
	switch m := tx.(type) {
	case CreateTx:
		a.handleCreate(ctx, m)
	case RemoveTx:
		a.handleRemove(ctx, m)
	case PauseTx:
		a.handlePause(ctx, m)
	case ResumeTx:
		a.handleResume(ctx, m)
	case RestartTx:
		a.handleRestart(ctx, m)
	case ObservedStateTx:
		a.handleObservedState(ctx, m)
	case AutoRetryTx:
		a.handleAutoRetry(ctx, m)
	default:
		a.logger.Warn("unknown tx type, dropping")
	}
}

func (a *Actor) publish(ctx context.Context, event domainevents.Event) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.PublishEvent(ctx, event); err != nil {
		a.logger.Warn("failed to publish event", zap.String("event_type", event.EventType()), zap.Error(err))
	}
}
