package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/haldanelabs/dlcore/internal/domain/task"
	coreerrors "github.com/haldanelabs/dlcore/pkg/errors"
)

// TaskStore implements task.Store on top of GORM.
type TaskStore struct {
	db *gorm.DB
}

// NewTaskStore builds a TaskStore bound to db. db's dialect is expected to
// already have had AutoMigrate(&TaskModel{}) applied.
func NewTaskStore(db *gorm.DB) *TaskStore {
	return &TaskStore{db: db}
}

var _ task.Store = (*TaskStore)(nil)

// Get returns the task keyed by infoHash, or KindTaskNotFound if absent.
func (s *TaskStore) Get(ctx context.Context, infoHash string) (*task.Task, error) {
	var m TaskModel
	result := s.db.WithContext(ctx).First(&m, "info_hash = ?", infoHash)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, coreerrors.New(coreerrors.KindTaskNotFound, "no task with info-hash "+infoHash)
		}
		return nil, coreerrors.Wrap(coreerrors.KindStorage, "failed to load task", result.Error)
	}
	return toDomainTask(&m), nil
}

// Upsert inserts t, or replaces every column of an existing row with the
// same InfoHash (InfoHash is the durable primary key, so a
// resubmission of an already-known resource is idempotent).
func (s *TaskStore) Upsert(ctx context.Context, t *task.Task) error {
	m := toTaskModel(t)
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "info_hash"}},
		UpdateAll: true,
	}).Create(m)
	if result.Error != nil {
		return coreerrors.Wrap(coreerrors.KindStorage, "failed to upsert task", result.Error)
	}
	return nil
}

// ListByStatus returns every task whose Status is one of statuses. With no
// statuses given it returns every task.
func (s *TaskStore) ListByStatus(ctx context.Context, statuses ...task.Status) ([]*task.Task, error) {
	q := s.db.WithContext(ctx).Order("created_at asc")
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		q = q.Where("status in ?", names)
	}

	var models []TaskModel
	if result := q.Find(&models); result.Error != nil {
		return nil, coreerrors.Wrap(coreerrors.KindStorage, "failed to list tasks", result.Error)
	}

	tasks := make([]*task.Task, 0, len(models))
	for i := range models {
		tasks = append(tasks, toDomainTask(&models[i]))
	}
	return tasks, nil
}

// UpdateStatus applies a state-machine transition's outcome to the stored
// row: the new status, an optional error message, and optional retry
// bookkeeping. A nil nextRetryAt/retryCount leaves that column untouched.
func (s *TaskStore) UpdateStatus(ctx context.Context, infoHash string, newStatus task.Status, errMsg string, nextRetryAt *time.Time, retryCount *int) error {
	updates := map[string]interface{}{
		"status":     string(newStatus),
		"err_msg":    errMsg,
		"updated_at": time.Now().UTC(),
	}
	if nextRetryAt != nil {
		updates["next_retry_at"] = *nextRetryAt
	}
	if retryCount != nil {
		updates["retry_count"] = *retryCount
	}

	result := s.db.WithContext(ctx).Model(&TaskModel{}).Where("info_hash = ?", infoHash).Updates(updates)
	if result.Error != nil {
		return coreerrors.Wrap(coreerrors.KindStorage, "failed to update task status", result.Error)
	}
	if result.RowsAffected == 0 {
		return coreerrors.New(coreerrors.KindTaskNotFound, "no task with info-hash "+infoHash)
	}
	return nil
}

// AppendDownloader appends backendName to infoHash's Downloader CSV history
// (fallback rotation bookkeeping).
func (s *TaskStore) AppendDownloader(ctx context.Context, infoHash, backendName string) error {
	var m TaskModel
	result := s.db.WithContext(ctx).First(&m, "info_hash = ?", infoHash)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return coreerrors.New(coreerrors.KindTaskNotFound, "no task with info-hash "+infoHash)
		}
		return coreerrors.Wrap(coreerrors.KindStorage, "failed to load task", result.Error)
	}

	updated := task.AppendDownloaderCSV(m.Downloader, backendName)
	if err := s.db.WithContext(ctx).Model(&TaskModel{}).Where("info_hash = ?", infoHash).
		Updates(map[string]interface{}{"downloader": updated, "updated_at": time.Now().UTC()}).Error; err != nil {
		return coreerrors.Wrap(coreerrors.KindStorage, "failed to append downloader history", err)
	}
	return nil
}

// Delete removes a task row outright (distinct from the
// Cancelled status — used when a task completes on a backend whose
// DeleteTaskOnCompletion is set).
func (s *TaskStore) Delete(ctx context.Context, infoHash string) error {
	result := s.db.WithContext(ctx).Delete(&TaskModel{}, "info_hash = ?", infoHash)
	if result.Error != nil {
		return coreerrors.Wrap(coreerrors.KindStorage, "failed to delete task", result.Error)
	}
	if result.RowsAffected == 0 {
		return coreerrors.New(coreerrors.KindTaskNotFound, "no task with info-hash "+infoHash)
	}
	return nil
}
