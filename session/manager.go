package session

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/sprocket/category"
	"github.com/GoCodeAlone/sprocket/event"
)

// Manager tracks the live sessions of one server process.
type Manager struct {
	store  category.Store
	hub    *event.Hub
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager backed by a category store.
func NewManager(store category.Store, hub *event.Hub, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:    store,
		hub:      hub,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Create opens a new session for a category.
func (m *Manager) Create(categoryID string) (*Session, error) {
	cat, err := m.store.Get(categoryID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s, err := New(uuid.New().String(), cat, m.hub, m.logger)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("session created",
		slog.String("session_id", s.ID),
		slog.String("category", cat.Name))
	return s, nil
}

// Get returns a live session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete closes and removes a session. Deleting an unknown session is
// an error so clients learn about stale IDs.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown session %s", id)
	}
	s.Close()
	m.logger.Info("session closed", slog.String("session_id", id))
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll tears down every live session, for server shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
