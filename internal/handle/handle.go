// Package handle issues revocable references to locally stored media so the
// editor page can stream bytes without the path ever leaving the agent.
package handle

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("handle not found")
	ErrReleased = errors.New("handle already released")
)

// Blob is what a handle resolves to.
type Blob struct {
	Path         string
	MIME         string
	Size         int64
	DownloadName string
}

// Handle is an opaque, revocable reference to a Blob.
type Handle struct {
	ID   string
	Blob Blob
}

// Registry tracks live handles. Every allocated handle must be released
// exactly once; Stats exposes counters so leaks show up in tests.
type Registry struct {
	mu       sync.RWMutex
	live     map[string]Blob
	released map[string]struct{}

	allocated    atomic.Int64
	releaseCount atomic.Int64

	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		live:     make(map[string]Blob),
		released: make(map[string]struct{}),
		logger:   logger,
	}
}

// Allocate registers blob and returns a fresh handle for it.
func (r *Registry) Allocate(blob Blob) Handle {
	h := Handle{ID: uuid.NewString(), Blob: blob}

	r.mu.Lock()
	r.live[h.ID] = blob
	r.mu.Unlock()

	r.allocated.Add(1)
	if r.logger != nil {
		r.logger.Debug("handle allocated", "handle", h.ID, "size", blob.Size)
	}
	return h
}

// Resolve returns the blob behind a live handle.
func (r *Registry) Resolve(id string) (Blob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if blob, ok := r.live[id]; ok {
		return blob, nil
	}
	if _, ok := r.released[id]; ok {
		return Blob{}, ErrReleased
	}
	return Blob{}, ErrNotFound
}

// Release revokes a handle. A second release of the same handle returns
// ErrReleased and does not touch the counters.
func (r *Registry) Release(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.live[id]; !ok {
		if _, gone := r.released[id]; gone {
			return ErrReleased
		}
		return ErrNotFound
	}

	delete(r.live, id)
	r.released[id] = struct{}{}
	r.releaseCount.Add(1)

	if r.logger != nil {
		r.logger.Debug("handle released", "handle", id)
	}
	return nil
}

// Stats reports allocation counters.
type Stats struct {
	Allocated int64 `json:"allocated"`
	Released  int64 `json:"released"`
	Live      int   `json:"live"`
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	live := len(r.live)
	r.mu.RUnlock()

	return Stats{
		Allocated: r.allocated.Load(),
		Released:  r.releaseCount.Load(),
		Live:      live,
	}
}
