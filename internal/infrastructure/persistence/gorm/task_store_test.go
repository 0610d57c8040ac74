package gorm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haldanelabs/dlcore/internal/domain/task"
	coreerrors "github.com/haldanelabs/dlcore/pkg/errors"
)

func newTestTask(infoHash string) *task.Task {
	now := time.Now().UTC().Truncate(time.Second)
	return &task.Task{
		InfoHash:      infoHash,
		Status:        task.StatusPending,
		AllowFallback: true,
		Dir:           "/downloads",
		ResourceType:  task.ResourceInfoHash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestTaskStore_UpsertAndGet(t *testing.T) {
	db := NewTestDB(t)
	defer CleanupDB(t, db)
	store := NewTaskStore(db)
	ctx := context.Background()

	tk := newTestTask("0123456789abcdef0123456789abcdef01234567")
	require.NoError(t, store.Upsert(ctx, tk))

	got, err := store.Get(ctx, tk.InfoHash)
	require.NoError(t, err)
	assert.Equal(t, tk.InfoHash, got.InfoHash)
	assert.Equal(t, task.StatusPending, got.Status)
	assert.Equal(t, "/downloads", got.Dir)
}

func TestTaskStore_Upsert_IsIdempotent(t *testing.T) {
	db := NewTestDB(t)
	defer CleanupDB(t, db)
	store := NewTaskStore(db)
	ctx := context.Background()

	tk := newTestTask("0123456789abcdef0123456789abcdef01234567")
	require.NoError(t, store.Upsert(ctx, tk))

	tk.Status = task.StatusDownloading
	tk.Downloader = "qbit"
	require.NoError(t, store.Upsert(ctx, tk))

	got, err := store.Get(ctx, tk.InfoHash)
	require.NoError(t, err)
	assert.Equal(t, task.StatusDownloading, got.Status)
	assert.Equal(t, "qbit", got.Downloader)
}

func TestTaskStore_Get_NotFound(t *testing.T) {
	db := NewTestDB(t)
	defer CleanupDB(t, db)
	store := NewTaskStore(db)

	_, err := store.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, coreerrors.IsTaskNotFound(err))
}

func TestTaskStore_ListByStatus(t *testing.T) {
	db := NewTestDB(t)
	defer CleanupDB(t, db)
	store := NewTaskStore(db)
	ctx := context.Background()

	pending := newTestTask("aaaa")
	downloading := newTestTask("bbbb")
	downloading.Status = task.StatusDownloading
	require.NoError(t, store.Upsert(ctx, pending))
	require.NoError(t, store.Upsert(ctx, downloading))

	got, err := store.ListByStatus(ctx, task.StatusDownloading)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bbbb", got[0].InfoHash)

	all, err := store.ListByStatus(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestTaskStore_UpdateStatus(t *testing.T) {
	db := NewTestDB(t)
	defer CleanupDB(t, db)
	store := NewTaskStore(db)
	ctx := context.Background()

	tk := newTestTask("cccc")
	require.NoError(t, store.Upsert(ctx, tk))

	next := time.Now().Add(time.Minute).UTC().Truncate(time.Second)
	retryCount := 2
	require.NoError(t, store.UpdateStatus(ctx, tk.InfoHash, task.StatusRetrying, "backend timed out", &next, &retryCount))

	got, err := store.Get(ctx, tk.InfoHash)
	require.NoError(t, err)
	assert.Equal(t, task.StatusRetrying, got.Status)
	assert.Equal(t, "backend timed out", got.ErrMsg)
	assert.Equal(t, 2, got.RetryCount)
	assert.WithinDuration(t, next, got.NextRetryAt, time.Second)
}

func TestTaskStore_UpdateStatus_NotFound(t *testing.T) {
	db := NewTestDB(t)
	defer CleanupDB(t, db)
	store := NewTaskStore(db)

	err := store.UpdateStatus(context.Background(), "missing", task.StatusFailed, "x", nil, nil)
	require.Error(t, err)
	assert.True(t, coreerrors.IsTaskNotFound(err))
}

func TestTaskStore_AppendDownloader(t *testing.T) {
	db := NewTestDB(t)
	defer CleanupDB(t, db)
	store := NewTaskStore(db)
	ctx := context.Background()

	tk := newTestTask("dddd")
	require.NoError(t, store.Upsert(ctx, tk))
	require.NoError(t, store.AppendDownloader(ctx, tk.InfoHash, "qbit"))
	require.NoError(t, store.AppendDownloader(ctx, tk.InfoHash, "transmission"))

	got, err := store.Get(ctx, tk.InfoHash)
	require.NoError(t, err)
	assert.Equal(t, []string{"qbit", "transmission"}, got.DownloaderHistory())
}

func TestTaskStore_Delete(t *testing.T) {
	db := NewTestDB(t)
	defer CleanupDB(t, db)
	store := NewTaskStore(db)
	ctx := context.Background()

	tk := newTestTask("eeee")
	require.NoError(t, store.Upsert(ctx, tk))
	require.NoError(t, store.Delete(ctx, tk.InfoHash))

	_, err := store.Get(ctx, tk.InfoHash)
	require.Error(t, err)
	assert.True(t, coreerrors.IsTaskNotFound(err))

	err = store.Delete(ctx, tk.InfoHash)
	require.Error(t, err)
	assert.True(t, coreerrors.IsTaskNotFound(err))
}
