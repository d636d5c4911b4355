package memory

import (
	"errors"
	"fmt"
	"time"

	"github.com/freqlimit-go/freqlimit"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidIdleTTL is returned when a non-positive idle TTL is
	// configured.
	ErrInvalidIdleTTL = errors.New("memory: idle ttl must be positive")
	// ErrInvalidSweepInterval is returned when a non-positive sweep
	// interval is configured.
	ErrInvalidSweepInterval = errors.New("memory: sweep interval must be positive")
)

// Option configures a Backend at construction time.
type Option func(*config) error

type config struct {
	idleTTL       time.Duration
	sweepInterval time.Duration
	clock         freqlimit.Clock
	logger        zerolog.Logger
}

func newConfig() *config {
	return &config{
		clock:  freqlimit.SystemClock{},
		logger: zerolog.Nop(),
	}
}

// WithIdleTTL enables opportunistic eviction, inline on Reserve, of
// keys that have been idle for longer than ttl; periodic eviction also
// needs WithSweepInterval. ttl must be positive.
func WithIdleTTL(ttl time.Duration) Option {
	return func(c *config) error {
		if ttl <= 0 {
			return fmt.Errorf("%w: got %s", ErrInvalidIdleTTL, ttl)
		}
		c.idleTTL = ttl
		return nil
	}
}

// WithSweepInterval starts a background goroutine that evicts idle
// keys every interval, in addition to the opportunistic eviction done
// inline on Reserve. interval must be positive. Has no effect unless
// WithIdleTTL is also set.
func WithSweepInterval(interval time.Duration) Option {
	return func(c *config) error {
		if interval <= 0 {
			return fmt.Errorf("%w: got %s", ErrInvalidSweepInterval, interval)
		}
		c.sweepInterval = interval
		return nil
	}
}

// WithClock overrides the backend's time source. Defaults to
// freqlimit.SystemClock; only useful for tests, since Reserve's now
// argument (driven by the façade's own clock) is what's actually used
// for the GCRA step — the backend's own clock only supplies the time
// the sweeper's eviction pass compares last-seen times against (the
// wake-ups themselves come from a real-time ticker).
func WithClock(c freqlimit.Clock) Option {
	return func(cfg *config) error {
		cfg.clock = c
		return nil
	}
}

// WithLogger attaches a structured logger for sweeper lifecycle and
// eviction events. Defaults to a no-op logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}
