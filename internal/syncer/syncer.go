// Package syncer implements the Status Syncer: a
// timer-driven reconciliation loop between each backend's live view of
// its tasks and the persisted task table. It never mutates the store
// itself — every difference it finds is sent to the Worker Actor.
package syncer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/haldanelabs/dlcore/internal/actor"
	"github.com/haldanelabs/dlcore/internal/domain/backend"
	"github.com/haldanelabs/dlcore/internal/domain/task"
	"github.com/haldanelabs/dlcore/internal/metrics"
)

// Sender is the narrow actor surface the syncer needs: fire-and-forget
// delivery of an ObservedState message.
type Sender interface {
	Send(ctx context.Context, tx actor.Tx) error
}

// Syncer polls every registered backend on a fixed interval and feeds
// discrepancies back to the actor.
type Syncer struct {
	store    task.Store
	registry *backend.Registry
	actor    Sender
	logger   *zap.Logger

	interval   time.Duration
	graceTicks int // vanished-backend grace period, in multiples of interval

	mu       sync.Mutex
	vanished map[string]int // info_hash -> consecutive sync rounds missing from its backend
}

// New builds a Syncer. graceMultiplier is the number of sync intervals a
// task may be missing from its backend before it is declared vanished
// (defaults to 2).
func New(store task.Store, registry *backend.Registry, a Sender, logger *zap.Logger, interval time.Duration, graceMultiplier int) *Syncer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if graceMultiplier <= 0 {
		graceMultiplier = 2
	}
	return &Syncer{
		store:      store,
		registry:   registry,
		actor:      a,
		logger:     logger.Named("syncer"),
		interval:   interval,
		graceTicks: graceMultiplier,
		vanished:   make(map[string]int),
	}
}

// Run ticks every interval until ctx is cancelled, reconciling backend
// state against the store on each tick.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				s.logger.Warn("sync tick failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// tick is one sync round: poll every backend in parallel,
// load the persisted rows once, diff by info_hash, and report.
func (s *Syncer) tick(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.SyncDuration.Observe(time.Since(start).Seconds()) }()

	names := s.registry.Names()
	liveByBackend := make([]map[string]backend.TaskState, len(names))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		group.Go(func() error {
			b, err := s.registry.Take(name)
			if err != nil {
				return nil // backend deregistered mid-tick; skip it this round
			}
			live, err := b.ListTasks(groupCtx)
			if err != nil {
				s.logger.Warn("list_tasks failed", zap.String("backend", name), zap.Error(err))
				return nil // a single backend's failure must not abort the round
			}
			liveByBackend[i] = live
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	persisted, err := s.store.ListByStatus(ctx, task.StatusDownloading, task.StatusPaused, task.StatusRetrying)
	if err != nil {
		return err
	}

	stillTracked := make(map[string]struct{}, len(persisted))
	for _, t := range persisted {
		stillTracked[t.InfoHash] = struct{}{}

		owner := t.CurrentDownloader()
		idx := indexOf(names, owner)
		if idx < 0 {
			continue // task's backend is not currently registered; nothing to reconcile against
		}

		live, ok := liveByBackend[idx][t.InfoHash]
		if !ok {
			s.trackVanished(ctx, t.InfoHash)
			continue
		}
		s.clearVanished(t.InfoHash)

		if differs(t, live) {
			_ = s.actor.Send(ctx, actor.ObservedStateTx{InfoHash: t.InfoHash, State: live})
		}
	}

	s.pruneStale(stillTracked)
	return nil
}

// differs reports whether live's kind no longer matches the persisted
// status, which is the only signal the actor needs — it re-derives
// everything else itself. Progress is not compared, and a Failed report
// is always forwarded.
func differs(t *task.Task, live backend.TaskState) bool {
	switch live.Kind {
	case backend.TaskStateCompleted:
		return t.Status != task.StatusCompleted
	case backend.TaskStateFailed:
		return true // any observed failure is always forwarded
	case backend.TaskStatePaused:
		return t.Status != task.StatusPaused
	case backend.TaskStateDownloading:
		return t.Status != task.StatusDownloading
	default:
		return false
	}
}

// trackVanished increments infoHash's missing-round counter and, once it
// has been missing for graceTicks consecutive rounds, reports it Failed.
func (s *Syncer) trackVanished(ctx context.Context, infoHash string) {
	s.mu.Lock()
	s.vanished[infoHash]++
	rounds := s.vanished[infoHash]
	s.mu.Unlock()

	if rounds < s.graceTicks {
		return
	}

	s.mu.Lock()
	delete(s.vanished, infoHash)
	s.mu.Unlock()

	metrics.TasksVanished.Inc()
	_ = s.actor.Send(ctx, actor.ObservedStateTx{
		InfoHash: infoHash,
		State:    backend.TaskState{Kind: backend.TaskStateFailed, Reason: "vanished from backend"},
	})
}

func (s *Syncer) clearVanished(infoHash string) {
	s.mu.Lock()
	delete(s.vanished, infoHash)
	s.mu.Unlock()
}

// pruneStale drops grace-period tracking for any info_hash no longer in
// the persisted Downloading/Paused/Retrying set at all — it left the
// reconciled set through another path (e.g. Remove) mid-grace-period.
func (s *Syncer) pruneStale(stillTracked map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for infoHash := range s.vanished {
		if _, ok := stillTracked[infoHash]; !ok {
			delete(s.vanished, infoHash)
		}
	}
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
