package gcra

import "time"

// Step runs a single GCRA virtual-scheduling transition.
//
// tat is the prior Theoretical Arrival Time for the key, or nil if the
// key has never been seen (treated as equal to now). Step returns the
// updated TAT to store and the non-negative delay the caller must wait
// from now to be conforming.
//
// Step performs no I/O and reads no clock; now and tat are both
// supplied by the caller, which is what makes the backends that wrap
// it deterministically testable and bit-identical to one another
// modulo their clock source.
func Step(now time.Time, tat *time.Time, p Params) (newTAT time.Time, delay time.Duration) {
	priorTAT := now
	if tat != nil {
		priorTAT = *tat
	}

	// Earliest moment at which an arrival is conforming.
	allowed := priorTAT.Add(-p.tau)

	effectiveNow := now
	if now.Before(allowed) {
		delay = allowed.Sub(now)
		effectiveNow = allowed
	}

	if !effectiveNow.Before(priorTAT) {
		// Arrived at or after schedule: anchor the next slot to the
		// (possibly delayed) arrival.
		newTAT = effectiveNow.Add(p.interval)
	} else {
		// Arrived early, within the burst window: anchor to the
		// existing schedule rather than resetting it.
		newTAT = priorTAT.Add(p.interval)
	}

	return newTAT, delay
}
