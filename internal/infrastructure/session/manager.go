// Package session tracks ephemeral guest sessions.
//
// A guest session is an unauthenticated, time-limited portfolio context keyed
// by an opaque ID. Sessions expire after a period of inactivity; expiry
// discards the associated in-memory portfolio via the registered callback.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/risklens/internal/domain"
	"github.com/doeshing/risklens/internal/ports"
)

// Manager implements the GuestRegistry port.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]time.Time
	ttl      time.Duration
	now      func() time.Time
	onExpire func(id string)
}

// Config holds configuration for the session manager.
type Config struct {
	// TTL is how long an idle guest session survives.
	TTL time.Duration

	// OnExpire is called with each expired session ID during sweeps.
	OnExpire func(id string)
}

// NewManager creates a guest session manager.
func NewManager(cfg Config) *Manager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = domain.DefaultGuestSessionTTL
	}
	return &Manager{
		sessions: make(map[string]time.Time),
		ttl:      ttl,
		now:      time.Now,
		onExpire: cfg.OnExpire,
	}
}

// Create registers a new guest session and returns its opaque ID.
func (m *Manager) Create() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.sessions[id] = m.now()
	return id
}

// Touch records activity for a session. Returns false when the session is
// unknown or has expired; expired sessions are dropped on the spot.
func (m *Manager) Touch(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	last, ok := m.sessions[id]
	if !ok {
		return false
	}
	if m.now().Sub(last) > m.ttl {
		m.expireLocked(id)
		return false
	}
	m.sessions[id] = m.now()
	return true
}

// Active returns the number of live sessions after sweeping expired ones.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, last := range m.sessions {
		if now.Sub(last) > m.ttl {
			m.expireLocked(id)
		}
	}
	return len(m.sessions)
}

func (m *Manager) expireLocked(id string) {
	delete(m.sessions, id)
	if m.onExpire != nil {
		m.onExpire(id)
	}
}

var _ ports.GuestRegistry = (*Manager)(nil)
