// Package memory implements freqlimit.Backend over process-local
// state: a per-key mutex serializes concurrent Reserve calls on the
// same key, and idle keys are evicted opportunistically and (if
// configured) by a periodic background sweeper.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/freqlimit-go/freqlimit"
	"github.com/freqlimit-go/freqlimit/gcra"
	"github.com/rs/zerolog"
)

// entry is the per-key slot: its own mutex serializes Reserve calls
// for that key, independent of every other key's entry.
type entry struct {
	mu       sync.Mutex
	tat      time.Time
	hasTAT   bool
	lastSeen time.Time
}

// Backend is an in-process freqlimit.Backend. It implements
// freqlimit.Clearer.
type Backend struct {
	mu      sync.Mutex
	entries map[any]*entry

	idleTTL       time.Duration
	sweepInterval time.Duration
	clock         freqlimit.Clock
	logger        zerolog.Logger

	sweeperMu     sync.Mutex
	sweeperCancel context.CancelFunc
	sweeperDone   chan struct{}
}

// New builds an in-process Backend. With no options, keys accumulate
// forever and no sweeper runs — eviction is opt-in via WithIdleTTL and
// WithSweepInterval.
func New(opts ...Option) (*Backend, error) {
	cfg := newConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return &Backend{
		entries:       make(map[any]*entry),
		idleTTL:       cfg.idleTTL,
		sweepInterval: cfg.sweepInterval,
		clock:         cfg.clock,
		logger:        cfg.logger,
	}, nil
}

// MustNew is New but panics on a configuration error.
func MustNew(opts ...Option) *Backend {
	b, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return b
}

// Reserve implements freqlimit.Backend.
func (b *Backend) Reserve(_ context.Context, key any, now time.Time, params gcra.Params) (time.Duration, error) {
	if b.idleTTL > 0 {
		b.evictExpired(now)
	}
	b.ensureSweeper()

	e := b.entryFor(key)

	e.mu.Lock()
	defer e.mu.Unlock()

	var tat *time.Time
	if e.hasTAT {
		t := e.tat
		tat = &t
	}

	newTAT, delay := gcra.Step(now, tat, params)
	e.tat = newTAT
	e.hasTAT = true
	e.lastSeen = now

	return delay, nil
}

func (b *Backend) entryFor(key any) *entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[key]
	if !ok {
		e = &entry{}
		b.entries[key] = e
	}
	return e
}

// evictExpired removes entries whose mutex is free and whose
// last-seen time is older than idleTTL relative to now. A locked entry
// means a reserver is mid-compute and still owns the TAT, so it is
// never evicted regardless of age.
func (b *Backend) evictExpired(now time.Time) {
	threshold := now.Add(-b.idleTTL)

	b.mu.Lock()
	defer b.mu.Unlock()

	for key, e := range b.entries {
		if !e.lastSeen.Before(threshold) {
			continue
		}
		if !e.mu.TryLock() {
			continue
		}
		delete(b.entries, key)
		e.mu.Unlock()
		b.logger.Debug().Interface("key", key).Msg("freqlimit/memory: evicted idle key")
	}
}

// ensureSweeper starts the periodic eviction goroutine on first call,
// if a sweep interval was configured. It is idempotent.
func (b *Backend) ensureSweeper() {
	if b.sweepInterval <= 0 {
		return
	}

	b.sweeperMu.Lock()
	defer b.sweeperMu.Unlock()

	if b.sweeperCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	b.sweeperCancel = cancel
	b.sweeperDone = done

	b.logger.Debug().Dur("interval", b.sweepInterval).Msg("freqlimit/memory: sweeper started")
	go b.sweepLoop(ctx, done)
}

func (b *Backend) sweepLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(b.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Debug().Msg("freqlimit/memory: sweeper stopped")
			return
		case <-ticker.C:
			if b.idleTTL > 0 {
				b.evictExpired(b.clock.Now())
			}
		}
	}
}

// Clear resets all state the backend owns: every key's TAT and
// last-seen time, and stops (and awaits) the sweeper goroutine if one
// is running.
func (b *Backend) Clear(ctx context.Context) error {
	b.mu.Lock()
	b.entries = make(map[any]*entry)
	b.mu.Unlock()

	b.sweeperMu.Lock()
	cancel := b.sweeperCancel
	done := b.sweeperDone
	b.sweeperCancel = nil
	b.sweeperDone = nil
	b.sweeperMu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
