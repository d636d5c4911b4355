// Package redis implements freqlimit.Backend over a shared Redis
// store: the GCRA step runs inside a Lua script on the server, so
// every process sharing the same Redis instance schedules against one
// clock and one TAT, regardless of host clock skew between callers.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/freqlimit-go/freqlimit/gcra"
)

// Backend is a shared-store freqlimit.Backend. It implements
// freqlimit.Clearer.
type Backend struct {
	store    Store
	prefix   string
	extraTTL time.Duration
}

// New builds a Backend over store. Use NewGoRedisStore to adapt a real
// go-redis client, or a test fake for unit tests.
func New(store Store, opts ...Option) *Backend {
	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Backend{store: store, prefix: cfg.prefix, extraTTL: cfg.extraTTL}
}

// Reserve implements freqlimit.Backend. now is accepted for interface
// symmetry with backend/memory but intentionally unused: the Redis
// server's own clock (read via TIME inside the Lua script) is
// authoritative, so every caller schedules against the same time base
// no matter how skewed its local clock is.
func (b *Backend) Reserve(ctx context.Context, key any, _ time.Time, params gcra.Params) (time.Duration, error) {
	redisKey := b.prefix + stringifyKey(key)

	interval := params.Interval().Seconds()
	tau := params.Tau().Seconds()

	result, err := b.store.RunScript(ctx, []string{redisKey}, interval, tau, b.extraTTL.Seconds())
	if err != nil {
		return 0, fmt.Errorf("redis: reserve %q: %w", redisKey, err)
	}

	delaySeconds, err := strconv.ParseFloat(result, 64)
	if err != nil {
		return 0, fmt.Errorf("redis: parse delay %q: %w", result, err)
	}
	return time.Duration(delaySeconds * float64(time.Second)), nil
}

// Clear deletes every key under this backend's prefix. Intended for
// tests and operational resets; it is not transactional across the
// scan-then-delete pair, so a key created mid-clear may survive.
func (b *Backend) Clear(ctx context.Context) error {
	keys, err := b.store.ScanKeys(ctx, b.prefix+"*")
	if err != nil {
		return fmt.Errorf("redis: scan for clear: %w", err)
	}
	if err := b.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("redis: delete during clear: %w", err)
	}
	return nil
}

// stringifyKey renders key the way the original backend does when it
// formats a Python f-string: a nil key becomes the literal text
// "None", matching a caller passing None directly. Every other value
// uses its default string form. This is an intentional, documented
// wire-compatibility hazard (a nil key and the string key "None"
// collapse onto the same Redis key) rather than a bug to be fixed here.
func stringifyKey(key any) string {
	if key == nil {
		return "None"
	}
	return fmt.Sprintf("%v", key)
}
