package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/assistant-core/internal/core/error"
	logx "github.com/Chative-core-poc-v1/assistant-core/pkg/logger"
)

type RedisSnapshotRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisSnapshotRepository(rdb redis.Cmdable, ttl time.Duration) *RedisSnapshotRepository {
	return &RedisSnapshotRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisSnapshotRepository) snapshotKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:snapshot", conversationID)
}

// SaveSnapshot overwrites the previous snapshot and refreshes its TTL.
func (r *RedisSnapshotRepository) SaveSnapshot(ctx context.Context, snapshot model.ConversationSnapshot) error {
	b, err := json.Marshal(snapshot)
	if err != nil {
		logx.Error().Err(err).Str("conversationID", snapshot.ConversationID).Msg("failed to marshal snapshot")
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	key := r.snapshotKey(snapshot.ConversationID)
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save snapshot to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

// LoadSnapshot returns nil without error when no snapshot exists.
func (r *RedisSnapshotRepository) LoadSnapshot(ctx context.Context, conversationID string) (*model.ConversationSnapshot, error) {
	key := r.snapshotKey(conversationID)
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load snapshot from redis")
		return nil, errx.WrapRedis(err)
	}
	var s model.ConversationSnapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		logx.Error().Err(err).Str("conversationID", conversationID).Msg("failed to unmarshal snapshot")
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &s, nil
}

func (r *RedisSnapshotRepository) DeleteSnapshot(ctx context.Context, conversationID string) error {
	key := r.snapshotKey(conversationID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete snapshot from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.SnapshotRepository = (*RedisSnapshotRepository)(nil)
