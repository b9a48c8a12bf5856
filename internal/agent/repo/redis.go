package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
	errx "github.com/hr-benefits-assistant/server/internal/core/error"
	logx "github.com/hr-benefits-assistant/server/pkg/logger"
)

// RedisSessionRepository keeps session metadata in a string key and the turn
// history in a list. Both keys share the TTL, refreshed on every save.
type RedisSessionRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisSessionRepository(rdb redis.Cmdable, ttl time.Duration) *RedisSessionRepository {
	return &RedisSessionRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisSessionRepository) stateKey(sessionID string) string {
	return fmt.Sprintf("session:%s:state", sessionID)
}

func (r *RedisSessionRepository) turnsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:turns", sessionID)
}

func (r *RedisSessionRepository) marshalState(state *model.SessionState) ([]byte, error) {
	meta := *state
	meta.Turns = nil
	b, err := json.Marshal(&meta)
	if err != nil {
		logx.Error().Err(err).Str("session_id", state.ID).Msg("failed to marshal session state")
		return nil, fmt.Errorf("marshal session state: %w", err)
	}
	return b, nil
}

func (r *RedisSessionRepository) Create(ctx context.Context, state *model.SessionState) error {
	b, err := r.marshalState(state)
	if err != nil {
		return err
	}
	key := r.stateKey(state.ID)
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, key, b, r.ttl)
	pipe.Del(ctx, r.turnsKey(state.ID))
	if _, err := pipe.Exec(ctx); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to create session in redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisSessionRepository) Get(ctx context.Context, sessionID string) (*model.SessionState, bool, error) {
	key := r.stateKey(sessionID)
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load session from redis")
		return nil, false, errx.WrapRedis(err)
	}

	var state model.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to unmarshal session state")
		return nil, false, fmt.Errorf("unmarshal session state: %w", err)
	}

	rows, err := r.rdb.LRange(ctx, r.turnsKey(sessionID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to load session turns from redis")
		return nil, false, errx.WrapRedis(err)
	}
	state.Turns = make([]model.TurnRecord, 0, len(rows))
	for i, s := range rows {
		var t model.TurnRecord
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Int("index", i).Msg("failed to unmarshal turn")
			return nil, false, fmt.Errorf("unmarshal turn at index %d: %w", i, err)
		}
		state.Turns = append(state.Turns, t)
	}
	return &state, true, nil
}

func (r *RedisSessionRepository) SaveTurn(ctx context.Context, state *model.SessionState, turn model.TurnRecord) error {
	meta, err := r.marshalState(state)
	if err != nil {
		return err
	}
	tb, err := json.Marshal(turn)
	if err != nil {
		logx.Error().Err(err).Str("session_id", state.ID).Msg("failed to marshal turn")
		return fmt.Errorf("marshal turn: %w", err)
	}

	turnsKey := r.turnsKey(state.ID)
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.stateKey(state.ID), meta, r.ttl)
		pipe.RPush(ctx, turnsKey, tb)
		// extend TTL on touch
		if r.ttl > 0 {
			pipe.Expire(ctx, turnsKey, r.ttl)
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("session_id", state.ID).Msg("failed to save turn to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, r.stateKey(sessionID), r.turnsKey(sessionID)).Err(); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to delete session from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.SessionRepository = (*RedisSessionRepository)(nil)
