package repo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
)

var t0 = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func appendTurn(state *model.SessionState, msg string) model.TurnRecord {
	turn := model.TurnRecord{Message: msg, Reply: "reply to " + msg, Intent: model.IntentBenefitsQuery, Action: model.ActionBenefitsDisplayed, Timestamp: t0}
	state.Turns = append(state.Turns, turn)
	state.UpdatedAt = t0
	return turn
}

// exerciseRepository runs the behaviour every SessionRepository must share.
func exerciseRepository(t *testing.T, r model.SessionRepository) {
	ctx := context.Background()

	_, found, err := r.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	state := model.NewSessionState("s1", t0)
	require.NoError(t, r.Create(ctx, state))

	got, found, err := r.Get(ctx, "s1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.StageIdentification, got.Stage)
	assert.Empty(t, got.Turns)

	state.Employee = &model.EmployeeRecord{ID: "12345", Name: "John Smith"}
	state.Stage = model.StageBenefitsInquiry
	require.NoError(t, r.SaveTurn(ctx, state, appendTurn(state, "first")))
	require.NoError(t, r.SaveTurn(ctx, state, appendTurn(state, "second")))

	got, found, err = r.Get(ctx, "s1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.StageBenefitsInquiry, got.Stage)
	require.NotNil(t, got.Employee)
	assert.Equal(t, "12345", got.Employee.ID)
	require.Len(t, got.Turns, 2)
	assert.Equal(t, "first", got.Turns[0].Message)
	assert.Equal(t, "reply to second", got.Turns[1].Reply)

	got.Turns[0].Message = "mutated"
	again, _, err := r.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "first", again.Turns[0].Message, "callers get copies")

	require.NoError(t, r.Delete(ctx, "s1"))
	_, found, err = r.Get(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemorySessionRepository(t *testing.T) {
	exerciseRepository(t, NewMemorySessionRepository(time.Hour))
}

func TestMemorySessionRepositoryExpiry(t *testing.T) {
	now := t0
	r := NewMemorySessionRepository(10 * time.Minute).WithClock(func() time.Time { return now })
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, model.NewSessionState("a", t0)))
	require.NoError(t, r.Create(ctx, model.NewSessionState("b", t0)))

	now = t0.Add(8 * time.Minute)
	state, found, err := r.Get(ctx, "b")
	require.NoError(t, err)
	require.True(t, found)
	require.NoError(t, r.SaveTurn(ctx, state, appendTurn(state, "keep me")))

	now = t0.Add(12 * time.Minute)
	_, found, _ = r.Get(ctx, "a")
	assert.False(t, found)
	_, found, _ = r.Get(ctx, "b")
	assert.True(t, found, "saving a turn refreshes the ttl")

	assert.Equal(t, 1, r.Sweep())
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisSessionRepository(t *testing.T) {
	_, rdb := newMiniRedis(t)
	exerciseRepository(t, NewRedisSessionRepository(rdb, time.Hour))
}

func TestRedisSessionRepositoryTTL(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	r := NewRedisSessionRepository(rdb, 30*time.Minute)
	ctx := context.Background()

	state := model.NewSessionState("s2", t0)
	require.NoError(t, r.Create(ctx, state))
	require.NoError(t, r.SaveTurn(ctx, state, appendTurn(state, "hello")))

	assert.Equal(t, 30*time.Minute, mr.TTL("session:s2:state"))
	assert.Equal(t, 30*time.Minute, mr.TTL("session:s2:turns"))

	n, err := rdb.LLen(ctx, r.turnsKey("s2")).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	mr.FastForward(31 * time.Minute)
	_, found, err := r.Get(ctx, "s2")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisSessionRepositoryStoreFailure(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	r := NewRedisSessionRepository(rdb, time.Minute)
	mr.Close()

	_, _, err := r.Get(context.Background(), "s1")
	assert.Error(t, err)
}
