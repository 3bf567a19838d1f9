package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/cpacheco/cyclecount/internal/core/domain"
)

const (
	locationKeyPrefix = "inv:"
	locationIndexKey  = "inv:locations"
)

// RedisAdapter holds the read-only inventory cache: one JSON blob of
// rows per location plus an index set, replaced wholesale on each
// upload.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) Replace(ctx context.Context, rows []domain.InventoryRow) error {
	groups := make(map[string][]domain.InventoryRow)
	for _, row := range rows {
		loc := strings.ToUpper(strings.TrimSpace(row.Location))
		if loc == "" {
			continue
		}
		groups[loc] = append(groups[loc], row)
	}

	old, err := r.client.SMembers(ctx, locationIndexKey).Result()
	if err != nil {
		return fmt.Errorf("read location index: %w", err)
	}

	pipe := r.client.TxPipeline()
	for _, loc := range old {
		pipe.Del(ctx, locationKeyPrefix+loc)
	}
	pipe.Del(ctx, locationIndexKey)
	for loc, group := range groups {
		blob, err := json.Marshal(group)
		if err != nil {
			return fmt.Errorf("encode rows for %s: %w", loc, err)
		}
		pipe.Set(ctx, locationKeyPrefix+loc, blob, 0)
		pipe.SAdd(ctx, locationIndexKey, loc)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}

func (r *RedisAdapter) RowsForLocation(ctx context.Context, location string) ([]domain.InventoryRow, error) {
	key := locationKeyPrefix + strings.ToUpper(strings.TrimSpace(location))

	blob, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cached rows: %w", err)
	}

	var rows []domain.InventoryRow
	if err := json.Unmarshal(blob, &rows); err != nil {
		return nil, fmt.Errorf("decode cached rows: %w", err)
	}
	return rows, nil
}
