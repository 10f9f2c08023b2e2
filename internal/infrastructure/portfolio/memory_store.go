package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/doeshing/risklens/internal/domain"
	"github.com/doeshing/risklens/internal/ports"
)

// MemoryStore keeps positions in process memory. Used for guest sessions,
// whose portfolios never outlive the process, and for tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[sessionKey]map[string]domain.Position
}

type sessionKey struct {
	id    string
	guest bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[sessionKey]map[string]domain.Position)}
}

func (m *MemoryStore) Positions(_ context.Context, ref domain.SessionRef) ([]domain.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	holdings := m.sessions[keyFor(ref)]
	positions := make([]domain.Position, 0, len(holdings))
	for _, pos := range holdings {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
	return positions, nil
}

func (m *MemoryStore) Position(_ context.Context, ref domain.SessionRef, symbol string) (domain.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	symbol = normalizeSymbol(symbol)
	if pos, ok := m.sessions[keyFor(ref)][symbol]; ok {
		return pos, nil
	}
	return domain.Position{}, fmt.Errorf("%s: %w", symbol, domain.ErrPositionNotFound)
}

func (m *MemoryStore) Add(_ context.Context, ref domain.SessionRef, symbol string, quantity, price float64) (domain.Position, error) {
	if quantity <= 0 {
		return domain.Position{}, fmt.Errorf("quantity must be positive, got %v", quantity)
	}
	if price < 0 {
		return domain.Position{}, fmt.Errorf("price must not be negative, got %v", price)
	}
	symbol = normalizeSymbol(symbol)

	m.mu.Lock()
	defer m.mu.Unlock()

	key := keyFor(ref)
	if m.sessions[key] == nil {
		m.sessions[key] = make(map[string]domain.Position)
	}

	now := time.Now().UTC()
	pos, ok := m.sessions[key][symbol]
	if !ok {
		pos = domain.Position{Symbol: symbol, Quantity: quantity, AvgPrice: price, UpdatedAt: now}
	} else {
		pos = mergePurchase(pos, quantity, price, now)
	}
	m.sessions[key][symbol] = pos
	return pos, nil
}

func (m *MemoryStore) Remove(_ context.Context, ref domain.SessionRef, symbol string, quantity float64) error {
	symbol = normalizeSymbol(symbol)

	m.mu.Lock()
	defer m.mu.Unlock()

	key := keyFor(ref)
	existing, ok := m.sessions[key][symbol]
	if !ok {
		return fmt.Errorf("%s: %w", symbol, domain.ErrPositionNotFound)
	}

	remaining, err := reduceQuantity(existing, quantity)
	if err != nil {
		return err
	}
	if remaining == 0 {
		delete(m.sessions[key], symbol)
		return nil
	}
	existing.Quantity = remaining
	existing.UpdatedAt = time.Now().UTC()
	m.sessions[key][symbol] = existing
	return nil
}

// DropSession discards every holding for the given session ref. Used when a
// guest session expires.
func (m *MemoryStore) DropSession(ref domain.SessionRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, keyFor(ref))
}

func keyFor(ref domain.SessionRef) sessionKey {
	return sessionKey{id: ref.ID, guest: ref.Guest}
}

// IsNotFound reports whether err signals a missing position.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrPositionNotFound)
}

var _ ports.PortfolioStore = (*MemoryStore)(nil)
