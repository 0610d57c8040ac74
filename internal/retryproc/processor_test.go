package retryproc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/haldanelabs/dlcore/internal/actor"
	"github.com/haldanelabs/dlcore/internal/domain/task"
	coreerrors "github.com/haldanelabs/dlcore/pkg/errors"
)

type fakeSender struct {
	mu  sync.Mutex
	txs []actor.Tx
}

func (f *fakeSender) Send(ctx context.Context, tx actor.Tx) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = append(f.txs, tx)
	return nil
}

func (f *fakeSender) sent() []actor.Tx {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]actor.Tx(nil), f.txs...)
}

type fakeStore struct {
	tasks map[string]*task.Task
}

func (s *fakeStore) Get(ctx context.Context, infoHash string) (*task.Task, error) {
	t, ok := s.tasks[infoHash]
	if !ok {
		return nil, coreerrors.New(coreerrors.KindTaskNotFound, "no such task")
	}
	return t, nil
}
func (s *fakeStore) Upsert(ctx context.Context, t *task.Task) error { return nil }
func (s *fakeStore) ListByStatus(ctx context.Context, statuses ...task.Status) ([]*task.Task, error) {
	want := make(map[task.Status]struct{}, len(statuses))
	for _, st := range statuses {
		want[st] = struct{}{}
	}
	var out []*task.Task
	for _, t := range s.tasks {
		if _, ok := want[t.Status]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}
func (s *fakeStore) UpdateStatus(ctx context.Context, infoHash string, newStatus task.Status, errMsg string, nextRetryAt *time.Time, retryCount *int) error {
	return nil
}
func (s *fakeStore) AppendDownloader(ctx context.Context, infoHash, backendName string) error {
	return nil
}
func (s *fakeStore) Delete(ctx context.Context, infoHash string) error { return nil }

func TestProcessor_Tick_FiresAutoRetryWhenTimerElapsed(t *testing.T) {
	store := &fakeStore{tasks: map[string]*task.Task{
		"due": {InfoHash: "due", Status: task.StatusRetrying, NextRetryAt: time.Now().UTC().Add(-time.Second)},
		"not-yet": {InfoHash: "not-yet", Status: task.StatusRetrying, NextRetryAt: time.Now().UTC().Add(time.Hour)},
		"downloading": {InfoHash: "downloading", Status: task.StatusDownloading},
	}}
	sender := &fakeSender{}
	p := New(store, sender, zap.NewNop(), time.Hour)

	require.NoError(t, p.tick(context.Background()))

	sent := sender.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, actor.AutoRetryTx{InfoHash: "due"}, sent[0])
}

func TestProcessor_Tick_NoRetryingTasks(t *testing.T) {
	store := &fakeStore{tasks: map[string]*task.Task{}}
	sender := &fakeSender{}
	p := New(store, sender, zap.NewNop(), time.Hour)

	require.NoError(t, p.tick(context.Background()))
	assert.Empty(t, sender.sent())
}
