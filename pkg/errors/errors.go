package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind represents the taxonomy of error kinds the core can return.
type Kind string

const (
	KindTaskNotFound             Kind = "TASK_NOT_FOUND"
	KindResourceNotFound         Kind = "RESOURCE_NOT_FOUND"
	KindTorrentNotFound          Kind = "TORRENT_NOT_FOUND"
	KindUnsupportedResourceType  Kind = "UNSUPPORTED_RESOURCE_TYPE"
	KindEmptyTorrent             Kind = "EMPTY_TORRENT"
	KindEmptyMagnet              Kind = "EMPTY_MAGNET"
	KindMagnetFormat             Kind = "MAGNET_FORMAT"
	KindInfoHashFormat           Kind = "INFO_HASH_FORMAT"
	KindEmptyTorrentURL          Kind = "EMPTY_TORRENT_URL"
	KindDownloaderNotFound       Kind = "DOWNLOADER_NOT_FOUND"
	KindNoDownloadResult         Kind = "NO_DOWNLOAD_RESULT"
	KindStorage                  Kind = "STORAGE"
	KindBackend                  Kind = "BACKEND"
	KindChannelClosed            Kind = "CHANNEL_CLOSED"
	KindShutdownTimeout          Kind = "SHUTDOWN_TIMEOUT"
	KindDownloadDir              Kind = "DOWNLOAD_DIR"
	KindSerialize                Kind = "SERIALIZE"
	KindIllegalTransition        Kind = "ILLEGAL_TRANSITION"
)

// CoreError is the structured error returned across the core. Every
// failure surfaces as a CoreError so callers can switch on Kind instead
// of matching message strings.
type CoreError struct {
	Kind    Kind
	Message string
	Backend string // set only for Kind == KindBackend
	Err     error
}

func (e *CoreError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Backend != "" {
		msg = fmt.Sprintf("%s (backend=%s)", msg, e.Backend)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

// New creates a new CoreError with no wrapped cause.
func New(kind Kind, message string) error {
	return &CoreError{Kind: kind, Message: message}
}

// Wrap wraps err as a CoreError of the given kind.
func Wrap(kind Kind, message string, err error) error {
	return &CoreError{Kind: kind, Message: message, Err: err}
}

// WrapBackend wraps a per-backend protocol error, carrying the backend name.
func WrapBackend(backend, message string, err error) error {
	return &CoreError{Kind: KindBackend, Message: message, Backend: backend, Err: err}
}

// Is reports whether err is a CoreError of the given kind.
func Is(err error, kind Kind) bool {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, returning ("", false) if err is not
// a CoreError.
func KindOf(err error) (Kind, bool) {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

func IsTaskNotFound(err error) bool      { return Is(err, KindTaskNotFound) }
func IsStorage(err error) bool           { return Is(err, KindStorage) }
func IsBackend(err error) bool           { return Is(err, KindBackend) }
func IsChannelClosed(err error) bool     { return Is(err, KindChannelClosed) }
func IsShutdownTimeout(err error) bool   { return Is(err, KindShutdownTimeout) }
func IsIllegalTransition(err error) bool { return Is(err, KindIllegalTransition) }
func IsDownloadDir(err error) bool       { return Is(err, KindDownloadDir) }

// IsDuplicateError checks if err is a duplicate-key error surfaced by the
// underlying SQL driver, regardless of dialect.
func IsDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "UNIQUE constraint") ||
		strings.Contains(errStr, "duplicate entry")
}
