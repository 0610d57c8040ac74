package backend

import (
	"sort"
	"sync"

	"github.com/haldanelabs/dlcore/internal/domain/task"
	coreerrors "github.com/haldanelabs/dlcore/pkg/errors"
)

// Registry holds every Backend the process was started with, ordered by
// priority (the highest Config().Priority is tried first).
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
	ordered  []Backend // sorted by Config().Priority descending, ties broken by Name ascending
}

func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds b to the registry. Re-registering a name replaces the
// previous entry.
func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.backends[b.Name()] = b
	r.reorderLocked()
}

func (r *Registry) reorderLocked() {
	ordered := make([]Backend, 0, len(r.backends))
	for _, b := range r.backends {
		ordered = append(ordered, b)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, pj := ordered[i].Config().Priority, ordered[j].Config().Priority
		if pi != pj {
			return pi > pj
		}
		return ordered[i].Name() < ordered[j].Name()
	})
	r.ordered = ordered
}

// Take returns the backend whose name equals the last segment of the
// comma-separated csv, which lets callers pass a task's
// Downloader field directly.
func (r *Registry) Take(csv string) (Backend, error) {
	history := task.SplitDownloaderCSV(csv)
	name := csv
	if len(history) > 0 {
		name = history[len(history)-1]
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[name]
	if !ok {
		return nil, coreerrors.New(coreerrors.KindDownloaderNotFound, "no backend registered under name "+name)
	}
	return b, nil
}

// Best returns the highest-priority registered backend.
func (r *Registry) Best() (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.ordered) == 0 {
		return nil, coreerrors.New(coreerrors.KindDownloaderNotFound, "no backends registered")
	}
	return r.ordered[0], nil
}

// BestUnused returns the highest-priority registered backend whose name
// does not already appear in usedCSV (a task's Downloader history, used
// during fallback rotation). Returns KindDownloaderNotFound when every
// registered backend has already been tried.
func (r *Registry) BestUnused(usedCSV string) (Backend, error) {
	used := make(map[string]struct{})
	for _, name := range task.SplitDownloaderCSV(usedCSV) {
		used[name] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.ordered {
		if _, tried := used[b.Name()]; !tried {
			return b, nil
		}
	}
	return nil, coreerrors.New(coreerrors.KindDownloaderNotFound, "every registered backend has already been tried for this task")
}

// Names returns every registered backend name, in priority order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.ordered))
	for i, b := range r.ordered {
		names[i] = b.Name()
	}
	return names
}
