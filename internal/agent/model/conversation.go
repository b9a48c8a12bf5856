package model

import (
	"context"
)

// SessionRepository owns session lifecycle. Implementations must return
// copies so callers never share state with the repository.
type SessionRepository interface {
	// Create stores a brand-new session.
	Create(ctx context.Context, state *SessionState) error

	// Get loads a session; found is false when it does not exist or expired.
	Get(ctx context.Context, sessionID string) (state *SessionState, found bool, err error)

	// SaveTurn persists the session metadata and appends turn to its history.
	// state must already hold turn as its last entry.
	SaveTurn(ctx context.Context, state *SessionState, turn TurnRecord) error

	// Delete evicts a session and its history.
	Delete(ctx context.Context, sessionID string) error
}
