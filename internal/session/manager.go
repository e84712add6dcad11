package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/studyboost/booster/internal/model"
)

// ErrSessionNotFound is returned for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Manager creates and tracks sessions in memory. Sessions live until
// the process exits; there is one user, so no eviction is needed.
type Manager struct {
	analyzer Analyzer
	store    HistoryStore

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(analyzer Analyzer, store HistoryStore) *Manager {
	return &Manager{
		analyzer: analyzer,
		store:    store,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session for a profile, loading its history.
func (m *Manager) Create(profile model.Profile, config model.SessionConfig) (*Session, error) {
	s, err := New(uuid.NewString(), profile, config, m.analyzer, m.store)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}
