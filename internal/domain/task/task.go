// Package task holds the persistent task model, the state machine that
// governs its transitions, the resource normaliser, and the retry policy —
// the pure, storage-agnostic core of the download orchestrator.
package task

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a Task.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusRetrying    Status = "retrying"
	StatusCancelled   Status = "cancelled"
)

// Terminal reports whether s is a terminal status (no transitions leave
// it except an explicit Restart).
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ResourceType identifies how a Task's source was submitted.
type ResourceType string

const (
	ResourceTorrent    ResourceType = "Torrent"
	ResourceMagnet     ResourceType = "Magnet"
	ResourceTorrentURL ResourceType = "TorrentURL"
	ResourceInfoHash   ResourceType = "InfoHash"
)

// Task is the durable row keyed by InfoHash.
type Task struct {
	InfoHash      string
	Status        Status
	Downloader    string // CSV history of backend names, most recent last
	AllowFallback bool
	Dir           string
	Context       string
	ErrMsg        string
	RetryCount    int
	NextRetryAt   time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ResourceType  ResourceType
	Magnet        string
	TorrentURL    string
}

// DownloaderHistory parses the CSV Downloader field into its ordered
// segments, tolerating leading/trailing/empty segments.
func (t *Task) DownloaderHistory() []string {
	return SplitDownloaderCSV(t.Downloader)
}

// SplitDownloaderCSV parses a Downloader CSV field into its ordered
// segments, tolerating leading/trailing/doubled commas. It is
// exported so the backend registry can apply the same tolerant parsing to
// a task's used-backend history without duplicating the rule.
func SplitDownloaderCSV(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CurrentDownloader returns the last segment of Downloader, i.e. the
// backend that currently owns the task, or "" if none has been dispatched
// yet.
func (t *Task) CurrentDownloader() string {
	hist := t.DownloaderHistory()
	if len(hist) == 0 {
		return ""
	}
	return hist[len(hist)-1]
}

// AppendDownloaderCSV appends name as a new segment of the Downloader CSV.
func AppendDownloaderCSV(csv, name string) string {
	if csv == "" {
		return name
	}
	return csv + "," + name
}

