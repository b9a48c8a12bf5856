// Package repo holds the session repositories.
package repo

import (
	"context"
	"sync"
	"time"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
	logx "github.com/hr-benefits-assistant/server/pkg/logger"
)

type memoryEntry struct {
	state     *model.SessionState
	touchedAt time.Time
}

// MemorySessionRepository keeps sessions in process. With a positive TTL,
// sessions untouched for longer than the TTL are treated as gone and are
// removed by Sweep.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

func NewMemorySessionRepository(ttl time.Duration) *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: map[string]*memoryEntry{},
		ttl:      ttl,
		now:      time.Now,
	}
}

// WithClock overrides the clock used for expiry.
func (m *MemorySessionRepository) WithClock(now func() time.Time) *MemorySessionRepository {
	m.now = now
	return m
}

func (m *MemorySessionRepository) expired(e *memoryEntry, now time.Time) bool {
	return m.ttl > 0 && now.Sub(e.touchedAt) > m.ttl
}

func (m *MemorySessionRepository) Create(_ context.Context, state *model.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[state.ID] = &memoryEntry{state: state.Clone(), touchedAt: m.now()}
	return nil
}

func (m *MemorySessionRepository) Get(_ context.Context, sessionID string) (*model.SessionState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sessionID]
	if !ok || m.expired(e, m.now()) {
		return nil, false, nil
	}
	return e.state.Clone(), true, nil
}

func (m *MemorySessionRepository) SaveTurn(_ context.Context, state *model.SessionState, _ model.TurnRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[state.ID] = &memoryEntry{state: state.Clone(), touchedAt: m.now()}
	return nil
}

func (m *MemorySessionRepository) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// Sweep evicts expired sessions and returns how many were removed.
func (m *MemorySessionRepository) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.sessions {
		if m.expired(e, now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (m *MemorySessionRepository) Run(ctx context.Context, interval time.Duration) {
	if m.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				logx.Debug().Int("evicted", n).Msg("expired sessions swept")
			}
		}
	}
}

var _ model.SessionRepository = (*MemorySessionRepository)(nil)
