package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/assistant-core/internal/core/error"
	logx "github.com/Chative-core-poc-v1/assistant-core/pkg/logger"
)

type RedisGraphRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedisGraphRepository keeps graphs forever when ttl is zero.
func NewRedisGraphRepository(rdb redis.Cmdable, ttl time.Duration) *RedisGraphRepository {
	return &RedisGraphRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisGraphRepository) graphKey(id string) string {
	return fmt.Sprintf("workflow:%s", id)
}

func (r *RedisGraphRepository) ownerKey(ownerID string) string {
	return fmt.Sprintf("workflows:%s", ownerID)
}

// SaveGraph stores graph under a fresh id and indexes it by owner when one is given.
func (r *RedisGraphRepository) SaveGraph(ctx context.Context, ownerID string, graph model.WorkflowGraph) (string, error) {
	wf := model.StoredWorkflow{ID: uuid.NewString(), OwnerID: ownerID, Graph: graph}
	b, err := json.Marshal(wf)
	if err != nil {
		logx.Error().Err(err).Str("owner_id", ownerID).Msg("failed to marshal workflow")
		return "", fmt.Errorf("marshal workflow: %w", err)
	}

	key := r.graphKey(wf.ID)
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, b, r.ttl)
		if ownerID != "" {
			pipe.RPush(ctx, r.ownerKey(ownerID), wf.ID)
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save workflow to redis")
		return "", errx.WrapRedis(err)
	}
	logx.Debug().Str("workflow_id", wf.ID).Int("nodes", len(graph.Nodes)).Msg("workflow saved")
	return wf.ID, nil
}

// LoadGraph returns a 404 AppError wrapping redis.Nil for unknown ids.
func (r *RedisGraphRepository) LoadGraph(ctx context.Context, id string) (*model.StoredWorkflow, error) {
	key := r.graphKey(id)
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to load workflow from redis")
		}
		return nil, errx.WrapRedis(err)
	}
	var wf model.StoredWorkflow
	if err := json.Unmarshal(raw, &wf); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to unmarshal workflow")
		return nil, fmt.Errorf("unmarshal workflow %s: %w", id, err)
	}
	return &wf, nil
}

// ListGraphIDs returns an owner's workflow ids, oldest first.
func (r *RedisGraphRepository) ListGraphIDs(ctx context.Context, ownerID string) ([]string, error) {
	ids, err := r.rdb.LRange(ctx, r.ownerKey(ownerID), 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []string{}, nil
		}
		logx.Error().Err(err).Str("owner_id", ownerID).Msg("failed to list workflows")
		return nil, errx.WrapRedis(err)
	}
	return ids, nil
}

var _ model.GraphRepository = (*RedisGraphRepository)(nil)
