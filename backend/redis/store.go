package redis

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
)

//go:embed gcra.lua
var gcraScript string

// Store is the minimal remote-store surface the backend needs: atomic
// script execution keyed on a TAT slot, key deletion, and a
// prefix-matching key scan. Kept as an interface so the backend's
// TTL/prefix/null-key logic can be tested against an in-process fake
// with no container orchestration.
type Store interface {
	RunScript(ctx context.Context, keys []string, args ...any) (string, error)
	Delete(ctx context.Context, keys ...string) error
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
}

// goRedisStore is the production Store, backed by a real Redis
// connection via go-redis.
type goRedisStore struct {
	client goredis.UniversalClient
	script *goredis.Script
}

// NewGoRedisStore adapts a go-redis client into a Store. The GCRA Lua
// script is loaded lazily and cached by SHA via redis.Script, with a
// single reload-and-retry on NOSCRIPT.
func NewGoRedisStore(client goredis.UniversalClient) Store {
	return &goRedisStore{
		client: client,
		script: goredis.NewScript(gcraScript),
	}
}

func (s *goRedisStore) RunScript(ctx context.Context, keys []string, args ...any) (string, error) {
	result, err := s.script.Run(ctx, s.client, keys, args...).Text()
	if err != nil && strings.Contains(err.Error(), "NOSCRIPT") {
		if _, loadErr := s.script.Load(ctx, s.client).Result(); loadErr != nil {
			return "", fmt.Errorf("redis: load gcra script: %w", loadErr)
		}
		result, err = s.script.Run(ctx, s.client, keys, args...).Text()
	}
	if err != nil {
		return "", fmt.Errorf("redis: run gcra script: %w", err)
	}
	return result, nil
}

func (s *goRedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: delete keys: %w", err)
	}
	return nil
}

func (s *goRedisStore) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, 0).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: scan keys: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}
