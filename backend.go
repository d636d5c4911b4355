package freqlimit

import (
	"context"
	"time"

	"github.com/freqlimit-go/freqlimit/gcra"
)

// Backend owns TAT storage and the atomic read-modify-write of the
// GCRA step for a key. It is the only capability the façade requires.
//
// Reserve must appear atomic relative to any other concurrent Reserve
// call on the same key: no interleaving may produce a schedule weaker
// than some serial order of those calls. Calls on different keys are
// independent and may run with no ordering relative to one another.
type Backend interface {
	Reserve(ctx context.Context, key any, now time.Time, params gcra.Params) (time.Duration, error)
}

// Clearer is an optional Backend capability: resetting all state the
// backend owns. Backends without it are tolerated — the façade's
// Clear becomes a no-op when the backend doesn't implement this.
type Clearer interface {
	Clear(ctx context.Context) error
}
