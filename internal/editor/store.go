package editor

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Store holds the live sessions of one agent process.
type Store struct {
	ctx  context.Context
	deps Deps

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore returns an empty store. ctx is handed to every session as the
// context for background exports.
func NewStore(ctx context.Context, deps Deps) *Store {
	return &Store{
		ctx:      ctx,
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Deps returns the collaborators sessions are built with.
func (st *Store) Deps() Deps { return st.deps }

func (st *Store) Create() *Session {
	s := NewSession(st.ctx, uuid.NewString(), st.deps)

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[id]
	return s, ok
}

// Delete removes and tears down a session. It reports whether it existed.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if ok {
		s.Teardown()
	}
	return ok
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Exporting counts sessions with an export in flight.
func (st *Store) Exporting() int {
	st.mu.RLock()
	defer st.mu.RUnlock()

	n := 0
	for _, s := range st.sessions {
		if s.Export().State == ExportExporting {
			n++
		}
	}
	return n
}

// Close tears down every session.
func (st *Store) Close() {
	st.mu.Lock()
	sessions := st.sessions
	st.sessions = make(map[string]*Session)
	st.mu.Unlock()

	for _, s := range sessions {
		s.Teardown()
	}
}
