// Package repo persists components, workflow graphs and conversation
// snapshots in Redis.
package repo

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"

	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/assistant-core/internal/core/error"
	logx "github.com/Chative-core-poc-v1/assistant-core/pkg/logger"
)

const componentIndexKey = "components"

// RedisComponentRegistry stores one JSON document per component plus an index set.
type RedisComponentRegistry struct {
	rdb redis.Cmdable
}

func NewRedisComponentRegistry(rdb redis.Cmdable) *RedisComponentRegistry {
	return &RedisComponentRegistry{rdb: rdb}
}

func componentKey(typ model.ComponentType, service, name string) string {
	return fmt.Sprintf("component:%s:%s:%s", typ, service, name)
}

// Register upserts components.
func (r *RedisComponentRegistry) Register(ctx context.Context, components ...model.ComponentDescriptor) error {
	if len(components) == 0 {
		return nil
	}
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, c := range components {
			b, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("marshal component %s: %w", c.Ref(), err)
			}
			key := componentKey(c.Type, c.Service, c.Name)
			pipe.Set(ctx, key, b, 0)
			pipe.SAdd(ctx, componentIndexKey, key)
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Int("count", len(components)).Msg("failed to register components")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisComponentRegistry) Find(ctx context.Context, service, name string, typ model.ComponentType) (*model.ComponentDescriptor, error) {
	key := componentKey(typ, service, name)
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errx.ErrComponentNotFound
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load component from redis")
		return nil, errx.WrapRedis(err)
	}
	var c model.ComponentDescriptor
	if err := json.Unmarshal(raw, &c); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to unmarshal component")
		return nil, fmt.Errorf("unmarshal component %s: %w", key, err)
	}
	return &c, nil
}

// List returns every indexed component ordered by type, service and name.
// Index entries whose document is gone are skipped.
func (r *RedisComponentRegistry) List(ctx context.Context) ([]model.ComponentDescriptor, error) {
	keys, err := r.rdb.SMembers(ctx, componentIndexKey).Result()
	if err != nil {
		logx.Error().Err(err).Msg("failed to read component index")
		return nil, errx.WrapRedis(err)
	}
	if len(keys) == 0 {
		return []model.ComponentDescriptor{}, nil
	}

	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		logx.Error().Err(err).Msg("failed to load components")
		return nil, errx.WrapRedis(err)
	}

	out := make([]model.ComponentDescriptor, 0, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			logx.Warn().Str("key", keys[i]).Msg("component index points at a missing key")
			continue
		}
		var c model.ComponentDescriptor
		if err := json.Unmarshal([]byte(s), &c); err != nil {
			return nil, fmt.Errorf("unmarshal component %s: %w", keys[i], err)
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b model.ComponentDescriptor) int {
		return cmp.Or(
			cmp.Compare(a.Type, b.Type),
			cmp.Compare(a.Service, b.Service),
			cmp.Compare(a.Name, b.Name),
		)
	})
	return out, nil
}

var _ model.ComponentCatalog = (*RedisComponentRegistry)(nil)
