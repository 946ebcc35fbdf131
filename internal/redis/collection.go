package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// HashCollection stores JSON records in one Redis hash per collection key.
// A companion sorted set scored by first insert keeps the records ordered.
type HashCollection[T any] struct {
	client *redis.Client
	key    string
}

func NewHashCollection[T any](client *redis.Client, key string) *HashCollection[T] {
	return &HashCollection[T]{client: client, key: key}
}

func (c *HashCollection[T]) orderKey() string { return c.key + ":order" }

func (c *HashCollection[T]) All(ctx context.Context) ([]T, error) {
	raw, err := c.client.HGetAll(ctx, c.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", c.key, err)
	}
	order, err := c.client.ZRangeWithScores(ctx, c.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange %s: %w", c.orderKey(), err)
	}

	rank := make(map[string]int, len(order))
	for i, z := range order {
		if member, ok := z.Member.(string); ok {
			rank[member] = i
		}
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ri, iok := rank[ids[i]]
		rj, jok := rank[ids[j]]
		if iok != jok {
			return iok
		}
		if ri != rj {
			return ri < rj
		}
		return ids[i] < ids[j]
	})

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		var v T
		if err := json.Unmarshal([]byte(raw[id]), &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", c.key, id, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *HashCollection[T]) Put(ctx context.Context, id uuid.UUID, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.key, id, err)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.key, id.String(), data)
		pipe.ZAddNX(ctx, c.orderKey(), redis.Z{
			Score:  float64(time.Now().UnixNano()),
			Member: id.String(),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", c.key, id, err)
	}
	return nil
}

func (c *HashCollection[T]) Remove(ctx context.Context, id uuid.UUID) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, c.key, id.String())
		pipe.ZRem(ctx, c.orderKey(), id.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove %s/%s: %w", c.key, id, err)
	}
	return nil
}
