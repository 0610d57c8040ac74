package actor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/haldanelabs/dlcore/internal/domain/backend"
	"github.com/haldanelabs/dlcore/internal/domain/task"
	coreerrors "github.com/haldanelabs/dlcore/pkg/errors"
)

// fakeStore is an in-memory task.Store, a hand-written fake rather than
// a generated mock.
type fakeStore struct {
	mu    sync.Mutex
	tasks map[string]*task.Task
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: make(map[string]*task.Task)}
}

func (s *fakeStore) Get(ctx context.Context, infoHash string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[infoHash]
	if !ok {
		return nil, coreerrors.New(coreerrors.KindTaskNotFound, "no such task")
	}
	cp := *t
	return &cp, nil
}

func (s *fakeStore) Upsert(ctx context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tasks[t.InfoHash] = &cp
	return nil
}

func (s *fakeStore) ListByStatus(ctx context.Context, statuses ...task.Status) ([]*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[task.Status]struct{}, len(statuses))
	for _, st := range statuses {
		want[st] = struct{}{}
	}
	var out []*task.Task
	for _, t := range s.tasks {
		if _, ok := want[t.Status]; ok || len(statuses) == 0 {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateStatus(ctx context.Context, infoHash string, newStatus task.Status, errMsg string, nextRetryAt *time.Time, retryCount *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[infoHash]
	if !ok {
		return coreerrors.New(coreerrors.KindTaskNotFound, "no such task")
	}
	t.Status = newStatus
	t.ErrMsg = errMsg
	if nextRetryAt != nil {
		t.NextRetryAt = *nextRetryAt
	}
	if retryCount != nil {
		t.RetryCount = *retryCount
	}
	return nil
}

func (s *fakeStore) AppendDownloader(ctx context.Context, infoHash, backendName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[infoHash]
	if !ok {
		return coreerrors.New(coreerrors.KindTaskNotFound, "no such task")
	}
	t.Downloader = task.AppendDownloaderCSV(t.Downloader, backendName)
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, infoHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, infoHash)
	return nil
}

// fakeActorBackend is a scriptable backend.Backend: AddTask fails for
// every name listed in failNames, otherwise succeeds.
type fakeActorBackend struct {
	name      string
	priority  uint8
	failNames map[string]bool
	cfg       backend.Config

	mu       sync.Mutex
	added    []string
	removed  []string
}

func (f *fakeActorBackend) Name() string { return f.name }
func (f *fakeActorBackend) Config() backend.Config {
	cfg := f.cfg
	cfg.Priority = f.priority
	return cfg
}

func (f *fakeActorBackend) AddTask(ctx context.Context, infoHash string, resource task.NormalizedResource, dir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNames[f.name] {
		return "", coreerrors.WrapBackend(f.name, "synthetic failure", assertErr)
	}
	f.added = append(f.added, infoHash)
	return "ctx-" + f.name, nil
}

func (f *fakeActorBackend) RemoveTask(ctx context.Context, infoHash, taskContext string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, infoHash)
	return nil
}

func (f *fakeActorBackend) PauseTask(ctx context.Context, infoHash, taskContext string) error  { return nil }
func (f *fakeActorBackend) ResumeTask(ctx context.Context, infoHash, taskContext string) error { return nil }
func (f *fakeActorBackend) ListTasks(ctx context.Context) (map[string]backend.TaskState, error) {
	return nil, nil
}

var assertErr = coreerrors.New(coreerrors.KindBackend, "add_task rejected")

func testActor(t *testing.T, store *fakeStore, reg *backend.Registry) *Actor {
	t.Helper()
	a := New(store, reg, nil, zap.NewNop(), 8)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go a.Run(ctx)
	return a
}

func TestActor_Create_IsIdempotent(t *testing.T) {
	store := newFakeStore()
	reg := backend.NewRegistry()
	reg.Register(&fakeActorBackend{name: "primary", priority: 10, failNames: map[string]bool{}})
	a := testActor(t, store, reg)

	resource := task.InfoHashResource("0123456789abcdef0123456789abcdef01234567")

	reply1 := make(chan CreateResult, 1)
	require.NoError(t, a.Send(context.Background(), CreateTx{Resource: resource, Dir: "/data", AllowFallback: true, Reply: reply1}))
	res1 := <-reply1
	require.NoError(t, res1.Err)

	reply2 := make(chan CreateResult, 1)
	require.NoError(t, a.Send(context.Background(), CreateTx{Resource: resource, Dir: "/data", AllowFallback: true, Reply: reply2}))
	res2 := <-reply2
	require.NoError(t, res2.Err)

	assert.Equal(t, res1.InfoHash, res2.InfoHash)

	tk, err := store.Get(context.Background(), res1.InfoHash)
	require.NoError(t, err)
	assert.Equal(t, task.StatusDownloading, tk.Status)
	assert.Equal(t, "primary", tk.CurrentDownloader())
}

func TestActor_Create_RejectsBadDir(t *testing.T) {
	store := newFakeStore()
	reg := backend.NewRegistry()
	a := testActor(t, store, reg)

	reply := make(chan CreateResult, 1)
	require.NoError(t, a.Send(context.Background(), CreateTx{
		Resource: task.InfoHashResource("0123456789abcdef0123456789abcdef01234567"),
		Dir:      "/",
		Reply:    reply,
	}))
	res := <-reply
	require.Error(t, res.Err)
	assert.True(t, coreerrors.IsDownloadDir(res.Err))
}

func TestActor_Create_FallsBackOnFirstDispatchFailure(t *testing.T) {
	store := newFakeStore()
	reg := backend.NewRegistry()
	reg.Register(&fakeActorBackend{name: "flaky", priority: 10, failNames: map[string]bool{"flaky": true}})
	reg.Register(&fakeActorBackend{name: "reliable", priority: 1, failNames: map[string]bool{}})
	a := testActor(t, store, reg)

	reply := make(chan CreateResult, 1)
	require.NoError(t, a.Send(context.Background(), CreateTx{
		Resource:      task.InfoHashResource("0123456789abcdef0123456789abcdef01234567"),
		Dir:           "/data",
		AllowFallback: true,
		Reply:         reply,
	}))
	res := <-reply
	require.NoError(t, res.Err)

	tk, err := store.Get(context.Background(), res.InfoHash)
	require.NoError(t, err)
	assert.Equal(t, task.StatusDownloading, tk.Status)
	assert.Equal(t, "reliable", tk.CurrentDownloader())
}

func TestActor_Create_FailsWhenNoFallbackAllowed(t *testing.T) {
	store := newFakeStore()
	reg := backend.NewRegistry()
	reg.Register(&fakeActorBackend{name: "flaky", priority: 10, failNames: map[string]bool{"flaky": true}})
	a := testActor(t, store, reg)

	reply := make(chan CreateResult, 1)
	require.NoError(t, a.Send(context.Background(), CreateTx{
		Resource:      task.InfoHashResource("0123456789abcdef0123456789abcdef01234567"),
		Dir:           "/data",
		AllowFallback: false,
		Reply:         reply,
	}))
	res := <-reply
	require.NoError(t, res.Err)

	tk, err := store.Get(context.Background(), res.InfoHash)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, tk.Status)
}

func TestActor_ObservedFailed_RotatesToUnusedBackend(t *testing.T) {
	store := newFakeStore()
	reg := backend.NewRegistry()
	reg.Register(&fakeActorBackend{name: "a", priority: 10, failNames: map[string]bool{}})
	reg.Register(&fakeActorBackend{name: "b", priority: 1, failNames: map[string]bool{}})
	a := testActor(t, store, reg)

	infoHash := "0123456789abcdef0123456789abcdef01234567"
	require.NoError(t, store.Upsert(context.Background(), &task.Task{
		InfoHash:      infoHash,
		Status:        task.StatusDownloading,
		Downloader:    "a",
		AllowFallback: true,
		Dir:           "/data",
		ResourceType:  task.ResourceInfoHash,
		RetryCount:    3,
	}))

	require.NoError(t, a.Send(context.Background(), ObservedStateTx{
		InfoHash: infoHash,
		State:    backend.TaskState{Kind: backend.TaskStateFailed, Reason: "peer timeout"},
	}))

	require.Eventually(t, func() bool {
		tk, err := store.Get(context.Background(), infoHash)
		return err == nil && tk.CurrentDownloader() == "b"
	}, time.Second, 10*time.Millisecond)

	tk, err := store.Get(context.Background(), infoHash)
	require.NoError(t, err)
	assert.Equal(t, task.StatusDownloading, tk.Status)
	assert.Equal(t, 0, tk.RetryCount)
	assert.Equal(t, "a,b", tk.Downloader)
}

func TestActor_ObservedFailed_SchedulesRetryWhenBudgetRemains(t *testing.T) {
	store := newFakeStore()
	reg := backend.NewRegistry()
	reg.Register(&fakeActorBackend{
		name: "only", priority: 10, failNames: map[string]bool{},
		cfg: backend.Config{MaxRetryCount: 5, RetryMinInterval: time.Second, RetryMaxInterval: time.Minute},
	})
	a := testActor(t, store, reg)

	infoHash := "0123456789abcdef0123456789abcdef01234567"
	require.NoError(t, store.Upsert(context.Background(), &task.Task{
		InfoHash:      infoHash,
		Status:        task.StatusDownloading,
		Downloader:    "only",
		AllowFallback: false,
		Dir:           "/data",
		ResourceType:  task.ResourceInfoHash,
		RetryCount:    1,
	}))

	require.NoError(t, a.Send(context.Background(), ObservedStateTx{
		InfoHash: infoHash,
		State:    backend.TaskState{Kind: backend.TaskStateFailed, Reason: "disk full"},
	}))

	require.Eventually(t, func() bool {
		tk, err := store.Get(context.Background(), infoHash)
		return err == nil && tk.Status == task.StatusRetrying
	}, time.Second, 10*time.Millisecond)

	tk, err := store.Get(context.Background(), infoHash)
	require.NoError(t, err)
	assert.Equal(t, 2, tk.RetryCount)
	assert.True(t, tk.NextRetryAt.After(tk.UpdatedAt) || tk.NextRetryAt.Equal(tk.UpdatedAt))
}

func TestActor_ObservedFailed_FailsWhenRetriesExhausted(t *testing.T) {
	store := newFakeStore()
	reg := backend.NewRegistry()
	reg.Register(&fakeActorBackend{
		name: "only", priority: 10, failNames: map[string]bool{},
		cfg: backend.Config{MaxRetryCount: 2, RetryMinInterval: time.Second, RetryMaxInterval: time.Minute},
	})
	a := testActor(t, store, reg)

	infoHash := "0123456789abcdef0123456789abcdef01234567"
	require.NoError(t, store.Upsert(context.Background(), &task.Task{
		InfoHash:      infoHash,
		Status:        task.StatusDownloading,
		Downloader:    "only",
		AllowFallback: false,
		Dir:           "/data",
		ResourceType:  task.ResourceInfoHash,
		RetryCount:    2,
	}))

	require.NoError(t, a.Send(context.Background(), ObservedStateTx{
		InfoHash: infoHash,
		State:    backend.TaskState{Kind: backend.TaskStateFailed, Reason: "disk full"},
	}))

	require.Eventually(t, func() bool {
		tk, err := store.Get(context.Background(), infoHash)
		return err == nil && tk.Status == task.StatusFailed
	}, time.Second, 10*time.Millisecond)
}

func TestActor_Remove_IsLegalFromAnyState(t *testing.T) {
	store := newFakeStore()
	reg := backend.NewRegistry()
	be := &fakeActorBackend{name: "a", priority: 10, failNames: map[string]bool{}}
	reg.Register(be)
	a := testActor(t, store, reg)

	infoHash := "0123456789abcdef0123456789abcdef01234567"
	require.NoError(t, store.Upsert(context.Background(), &task.Task{
		InfoHash: infoHash, Status: task.StatusDownloading, Downloader: "a",
	}))

	reply := make(chan error, 1)
	require.NoError(t, a.Send(context.Background(), RemoveTx{InfoHash: infoHash, Reply: reply}))
	require.NoError(t, <-reply)

	tk, err := store.Get(context.Background(), infoHash)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCancelled, tk.Status)
}

func TestActor_Restart_OnlyFromTerminal(t *testing.T) {
	store := newFakeStore()
	reg := backend.NewRegistry()
	a := testActor(t, store, reg)

	infoHash := "0123456789abcdef0123456789abcdef01234567"
	require.NoError(t, store.Upsert(context.Background(), &task.Task{
		InfoHash: infoHash, Status: task.StatusDownloading,
	}))

	reply := make(chan error, 1)
	require.NoError(t, a.Send(context.Background(), RestartTx{InfoHash: infoHash, Reply: reply}))
	err := <-reply
	require.Error(t, err)
	assert.True(t, coreerrors.IsIllegalTransition(err))
}

func TestActor_Shutdown_DrainsQueue(t *testing.T) {
	store := newFakeStore()
	reg := backend.NewRegistry()
	reg.Register(&fakeActorBackend{name: "a", priority: 10, failNames: map[string]bool{}})

	a := New(store, reg, nil, zap.NewNop(), 8)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go a.Run(ctx)

	reply := make(chan CreateResult, 1)
	require.NoError(t, a.Send(context.Background(), CreateTx{
		Resource: task.InfoHashResource("0123456789abcdef0123456789abcdef01234567"),
		Dir:      "/data", AllowFallback: true, Reply: reply,
	}))

	shutdownReply := make(chan error, 1)
	require.NoError(t, a.Send(context.Background(), ShutdownTx{Deadline: time.Second, Reply: shutdownReply}))

	require.NoError(t, <-shutdownReply)
	res := <-reply
	require.NoError(t, res.Err)
}
