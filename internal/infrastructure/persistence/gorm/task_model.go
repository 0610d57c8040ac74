package gorm

import (
	"time"

	"github.com/haldanelabs/dlcore/internal/domain/task"
)

// TaskModel is the durable row backing task.Task.
type TaskModel struct {
	InfoHash      string `gorm:"type:varchar(64);primaryKey"`
	Status        string `gorm:"type:varchar(16);not null;index"`
	Downloader    string `gorm:"type:text;not null;default:''"`
	AllowFallback bool   `gorm:"not null;default:true"`
	Dir           string `gorm:"type:text;not null"`
	Context       string `gorm:"type:text;not null;default:''"`
	ErrMsg        string `gorm:"type:text;not null;default:''"`
	RetryCount    int    `gorm:"not null;default:0"`
	NextRetryAt   *time.Time
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
	ResourceType  string    `gorm:"type:varchar(16);not null"`
	Magnet        string    `gorm:"type:text;not null;default:''"`
	TorrentURL    string    `gorm:"type:text;not null;default:''"`
}

// TableName pins the table name independent of Go's pluralisation guess.
func (TaskModel) TableName() string {
	return "torrent_download_tasks"
}

func toTaskModel(t *task.Task) *TaskModel {
	m := &TaskModel{
		InfoHash:      t.InfoHash,
		Status:        string(t.Status),
		Downloader:    t.Downloader,
		AllowFallback: t.AllowFallback,
		Dir:           t.Dir,
		Context:       t.Context,
		ErrMsg:        t.ErrMsg,
		RetryCount:    t.RetryCount,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		ResourceType:  string(t.ResourceType),
		Magnet:        t.Magnet,
		TorrentURL:    t.TorrentURL,
	}
	if !t.NextRetryAt.IsZero() {
		next := t.NextRetryAt
		m.NextRetryAt = &next
	}
	return m
}

func toDomainTask(m *TaskModel) *task.Task {
	t := &task.Task{
		InfoHash:      m.InfoHash,
		Status:        task.Status(m.Status),
		Downloader:    m.Downloader,
		AllowFallback: m.AllowFallback,
		Dir:           m.Dir,
		Context:       m.Context,
		ErrMsg:        m.ErrMsg,
		RetryCount:    m.RetryCount,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		ResourceType:  task.ResourceType(m.ResourceType),
		Magnet:        m.Magnet,
		TorrentURL:    m.TorrentURL,
	}
	if m.NextRetryAt != nil {
		t.NextRetryAt = *m.NextRetryAt
	}
	return t
}
