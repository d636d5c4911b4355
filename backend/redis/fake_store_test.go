package redis_test

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// fakeStore is an in-process Store standing in for a real Redis
// server: it runs the same GCRA step the Lua script runs, under a
// mutex rather than Redis's own single-threaded execution, so the
// backend's TTL/prefix/null-key logic can be exercised without a
// container.
type fakeStore struct {
	mu      sync.Mutex
	now     time.Time
	tats    map[string]float64
	expires map[string]time.Time
}

func newFakeStore(now time.Time) *fakeStore {
	return &fakeStore{
		now:     now,
		tats:    make(map[string]float64),
		expires: make(map[string]time.Time),
	}
}

func (f *fakeStore) setNow(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

func (f *fakeStore) RunScript(_ context.Context, keys []string, args ...any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := keys[0]
	interval := args[0].(float64)
	tau := args[1].(float64)
	extraTTL := args[2].(float64)

	f.evictExpiredLocked(key)

	now := secondsSinceEpoch(f.now)

	var tat *time.Time
	if v, ok := f.tats[key]; ok {
		t := time.Unix(0, int64(v*float64(time.Second)))
		tat = &t
	}

	newTAT, delay := stepSeconds(now, tat, interval, tau)

	ttl := (newTAT - now) + extraTTL
	if ttl < 1 {
		ttl = 1
	}

	f.tats[key] = newTAT
	f.expires[key] = f.now.Add(time.Duration(math.Ceil(ttl) * float64(time.Second)))

	return strconv.FormatFloat(delay, 'f', -1, 64), nil
}

func (f *fakeStore) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.tats, k)
		delete(f.expires, k)
	}
	return nil
}

func (f *fakeStore) ScanKeys(_ context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range f.tats {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// ttlRemaining reports the remaining TTL for key, for test assertions.
// Returns (0, false) if the key doesn't exist.
func (f *fakeStore) ttlRemaining(key string) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	exp, ok := f.expires[key]
	if !ok {
		return 0, false
	}
	return exp.Sub(f.now), true
}

func (f *fakeStore) evictExpiredLocked(key string) {
	exp, ok := f.expires[key]
	if ok && !f.now.Before(exp) {
		delete(f.tats, key)
		delete(f.expires, key)
	}
}

func secondsSinceEpoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// stepSeconds is the GCRA step restated in the same float-seconds
// arithmetic the Lua script uses, so these tests exercise the exact
// wire semantics rather than Go's time.Time-based gcra.Step.
func stepSeconds(now float64, tat *time.Time, interval, tau float64) (newTAT, delay float64) {
	priorTAT := now
	if tat != nil {
		priorTAT = secondsSinceEpoch(*tat)
	}

	allowed := priorTAT - tau
	effectiveNow := now
	if now < allowed {
		delay = allowed - now
		effectiveNow = allowed
	}

	if effectiveNow >= priorTAT {
		newTAT = effectiveNow + interval
	} else {
		newTAT = priorTAT + interval
	}
	return newTAT, delay
}
