// Package retryproc implements the Retry Processor: a
// timer-driven scan of Retrying tasks whose backoff has elapsed, each
// re-enqueued to the Worker Actor as an AutoRetry message. It never
// dispatches backends directly.
package retryproc

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/haldanelabs/dlcore/internal/actor"
	"github.com/haldanelabs/dlcore/internal/domain/task"
)

// Sender is the narrow actor surface the processor needs.
type Sender interface {
	Send(ctx context.Context, tx actor.Tx) error
}

// Processor scans the store for Retrying tasks on a fixed interval.
type Processor struct {
	store    task.Store
	actor    Sender
	logger   *zap.Logger
	interval time.Duration
}

// New builds a Processor. interval <= 0 falls back to the
// default of 30s.
func New(store task.Store, a Sender, logger *zap.Logger, interval time.Duration) *Processor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Processor{store: store, actor: a, logger: logger.Named("retryproc"), interval: interval}
}

// Run ticks every interval until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.tick(ctx); err != nil {
				p.logger.Warn("retry scan failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// tick implements the two steps.
func (p *Processor) tick(ctx context.Context) error {
	retrying, err := p.store.ListByStatus(ctx, task.StatusRetrying)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, t := range retrying {
		if now.Before(t.NextRetryAt) {
			continue
		}
		if err := p.actor.Send(ctx, actor.AutoRetryTx{InfoHash: t.InfoHash}); err != nil {
			p.logger.Warn("failed to enqueue auto-retry", zap.String("info_hash", t.InfoHash), zap.Error(err))
		}
	}
	return nil
}
