// Package conversations owns session lifecycle: loading or creating the
// session for a turn, serialising turns of one session, and committing the
// outcome of a turn.
package conversations

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
	logx "github.com/hr-benefits-assistant/server/pkg/logger"
)

const maxSessionIDLen = 128

// SessionManager hands out one Lease per turn. Turns of the same session
// wait for each other; turns of different sessions never contend.
type SessionManager struct {
	repo         model.SessionRepository
	contextTurns int
	now          func() time.Time

	mu    sync.Mutex
	gates map[string]*gate
}

// gate is a one-slot semaphore shared by the turns of one session.
type gate struct {
	slot    chan struct{}
	waiters int
}

type Option func(*SessionManager)

func WithClock(now func() time.Time) Option {
	return func(m *SessionManager) { m.now = now }
}

func NewSessionManager(repo model.SessionRepository, cfg model.SessionConfig, opts ...Option) *SessionManager {
	m := &SessionManager{
		repo:         repo,
		contextTurns: cfg.ContextTurns,
		now:          time.Now,
		gates:        map[string]*gate{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Lease is exclusive access to one session for the duration of a turn.
type Lease struct {
	m       *SessionManager
	id      string
	State   *model.SessionState
	Created bool
	release sync.Once
}

// Context is the read-only view of the session given to language components.
func (l *Lease) Context() model.SessionContext {
	return l.State.Context(l.m.contextTurns)
}

// Begin acquires the session's turn gate and loads the session. A missing,
// unknown or malformed id starts a new session under a fresh id. The caller
// must Release the lease.
func (m *SessionManager) Begin(ctx context.Context, sessionID string) (*Lease, error) {
	id := strings.TrimSpace(sessionID)
	minted := false
	if id == "" || len(id) > maxSessionIDLen {
		id, minted = uuid.NewString(), true
	}

	if err := m.acquire(ctx, id); err != nil {
		return nil, err
	}
	l := &Lease{m: m, id: id}

	state, found, err := m.repo.Get(ctx, id)
	if err != nil {
		l.Release()
		return nil, err
	}
	if !found {
		// Session ids are only ever issued by the server.
		if !minted {
			l.Release()
			logx.Debug().Msg("unknown session id; starting a new session")
			id = uuid.NewString()
			if err := m.acquire(ctx, id); err != nil {
				return nil, err
			}
			l = &Lease{m: m, id: id}
		}
		state = model.NewSessionState(id, m.now().UTC())
		if err := m.repo.Create(ctx, state); err != nil {
			l.Release()
			return nil, err
		}
		l.Created = true
		logx.Debug().Str("session_id", id).Msg("session created")
	}
	l.State = state
	return l, nil
}

// Commit appends the turn to the history, applies the stage transition and
// any newly established employee, and persists the session.
func (l *Lease) Commit(ctx context.Context, t *model.Turn) error {
	state := l.State
	prev := state.Stage

	if state.Employee == nil && t.Employee != nil {
		emp := *t.Employee
		state.Employee = &emp
	}
	state.Stage, state.ResumeStage = AdvanceStage(state, t)

	now := l.m.now().UTC()
	rec := model.TurnRecord{
		Message:   t.Message,
		Reply:     t.Reply,
		Intent:    t.Classification.Intent,
		Action:    t.Result.Action,
		Timestamp: now,
	}
	state.Turns = append(state.Turns, rec)
	state.UpdatedAt = now

	if err := l.m.repo.SaveTurn(ctx, state, rec); err != nil {
		logx.Error().Err(err).Str("session_id", state.ID).Msg("failed to save turn")
		return err
	}
	if prev != state.Stage {
		logx.Info().
			Str("session_id", state.ID).
			Str("from", string(prev)).
			Str("stage", string(state.Stage)).
			Msg("stage transition")
	}
	return nil
}

// Release frees the session's turn gate. It is safe to call more than once.
func (l *Lease) Release() {
	l.release.Do(func() { l.m.releaseGate(l.id) })
}

// Reset evicts a session. It waits for an in-flight turn of that session.
func (m *SessionManager) Reset(ctx context.Context, sessionID string) error {
	id := strings.TrimSpace(sessionID)
	if err := m.acquire(ctx, id); err != nil {
		return err
	}
	defer m.releaseGate(id)
	if err := m.repo.Delete(ctx, id); err != nil {
		return err
	}
	logx.Info().Str("session_id", id).Msg("session reset")
	return nil
}

func (m *SessionManager) acquire(ctx context.Context, id string) error {
	m.mu.Lock()
	g, ok := m.gates[id]
	if !ok {
		g = &gate{slot: make(chan struct{}, 1)}
		m.gates[id] = g
	}
	g.waiters++
	m.mu.Unlock()

	select {
	case g.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		m.mu.Lock()
		g.waiters--
		if g.waiters == 0 {
			delete(m.gates, id)
		}
		m.mu.Unlock()
		return ctx.Err()
	}
}

func (m *SessionManager) releaseGate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gates[id]
	if !ok {
		return
	}
	<-g.slot
	g.waiters--
	if g.waiters == 0 {
		delete(m.gates, id)
	}
}
