// Package freqlimit is an asynchronous rate limiter built on the
// Generic Cell Rate Algorithm (GCRA). It delays operations identified
// by an opaque key so that, per key, the long-run rate does not
// exceed a configured (limit, period) and short-term concurrency does
// not exceed a configured burst. There is no admit/reject outcome —
// callers are always eventually let through, just not before they are
// conforming.
//
// Example:
//
//	params := gcra.MustNew(1, time.Second, 1) // 1 op/sec
//	limiter := freqlimit.New(params, memory.MustNew())
//
//	if err := limiter.Wait(ctx, "chat:42"); err != nil {
//		return err
//	}
//	sendMessage(...)
package freqlimit

import (
	"context"
	"time"

	"github.com/freqlimit-go/freqlimit/gcra"
)

// globalKey is substituted for a nil key, matching the source's
// "_global" single-bucket-for-the-whole-limiter convention.
const globalKey = "_global"

// Limiter holds one fixed Params and one Backend for its lifetime.
type Limiter struct {
	params  gcra.Params
	backend Backend
	clock   Clock
}

// Option configures a Limiter at construction time.
type Option func(*Limiter)

// WithClock overrides the Limiter's time source. Defaults to
// SystemClock.
func WithClock(c Clock) Option {
	return func(l *Limiter) {
		l.clock = c
	}
}

// New builds a Limiter over params and backend. Neither is replaced
// during the Limiter's lifetime.
func New(params gcra.Params, backend Backend, opts ...Option) *Limiter {
	l := &Limiter{
		params:  params,
		backend: backend,
		clock:   SystemClock{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Params returns the Limiter's fixed parameters.
func (l *Limiter) Params() gcra.Params { return l.params }

// Backend returns the Limiter's backend.
func (l *Limiter) Backend() Backend { return l.backend }

// Wait blocks until key is admissible under the Limiter's params, then
// returns. A nil key maps to the single global bucket.
//
// Wait is the primitive scoped-acquisition operation: there is no
// handle to release afterward, since the reservation committed inside
// the backend before Wait returned — the caller's critical region
// simply follows. If ctx is canceled while waiting out a positive
// delay, Wait returns ctx.Err() without un-reserving the slot: the
// schedule already advanced, which is what prevents cancellation from
// being used to bypass the limit.
func (l *Limiter) Wait(ctx context.Context, key any) error {
	if key == nil {
		key = globalKey
	}

	now := l.clock.Now()

	delay, err := l.backend.Reserve(ctx, key, now, l.params)
	if err != nil {
		return err
	}
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs fn after Wait admits key, passing ctx through unchanged.
// This is the explicit enter/exit shape for languages without
// block-scoped resources: Wait is the entry, fn's return is the exit.
func (l *Limiter) Do(ctx context.Context, key any, fn func(ctx context.Context) error) error {
	if err := l.Wait(ctx, key); err != nil {
		return err
	}
	return fn(ctx)
}

// Clear resets the backend's state if it implements Clearer;
// otherwise it is a no-op.
func (l *Limiter) Clear(ctx context.Context) error {
	clearer, ok := l.backend.(Clearer)
	if !ok {
		return nil
	}
	return clearer.Clear(ctx)
}
