package api

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rony4d/go-opera-forksim/sim"
)

var (
	// ErrSessionNotFound is returned for an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions is returned when the session limit is reached.
	ErrTooManySessions = errors.New("too many sessions")
)

type session struct {
	sim     *sim.Simulation
	created time.Time
}

// Sessions keeps the isolated simulations served by the API.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*session
	max      int
	factory  func() (*sim.Simulation, error)
}

// NewSessions returns a manager creating simulations with factory. max <= 0
// means unbounded.
func NewSessions(max int, factory func() (*sim.Simulation, error)) *Sessions {
	return &Sessions{
		sessions: make(map[string]*session),
		max:      max,
		factory:  factory,
	}
}

// Create starts a new session and returns its id.
func (m *Sessions) Create() (string, *sim.Simulation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.max > 0 && len(m.sessions) >= m.max {
		return "", nil, ErrTooManySessions
	}
	s, err := m.factory()
	if err != nil {
		return "", nil, err
	}
	id := uuid.New().String()
	m.sessions[id] = &session{sim: s, created: time.Now()}
	return id, s, nil
}

// Get returns the simulation of a session.
func (m *Sessions) Get(id string) (*sim.Simulation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess.sim, nil
}

// Delete ends a session.
func (m *Sessions) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (m *Sessions) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IDs returns the session ids, oldest first.
func (m *Sessions) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return m.sessions[ids[i]].created.Before(m.sessions[ids[j]].created)
	})
	return ids
}
