// Package ratelimit implements the per-client traffic EWMA gate that
// backs the Overload error class (§7): "traffic EWMA > limit -> 10-minute
// ban". Per §9's open question, the formula is ported as an EWMA of
// bytes/sec sampled over a 100ms gate, alpha = SvNetlimitAlpha/100.
package ratelimit

import "time"

// Gate is the sampling window over which the instantaneous rate is
// computed before folding it into the EWMA, §9.
const Gate = 100 * time.Millisecond

type trafficEntry struct {
	ewma        float64
	windowBytes int
	windowStart time.Time
}

// TrafficTracker owns one EWMA per client. It is not internally
// locked: like the ban engine and the snapshot id pool, it is called
// exclusively from the tick/transport thread (§5's single-threaded
// contract) — there is no concurrent writer to guard against here, so
// a sync.Map-plus-cleanup-goroutine shape (built for genuinely
// concurrent HTTP middleware callers) would add locking this engine's
// scheduling model never needs.
type TrafficTracker struct {
	limitBytesPerSec int
	alpha            float64
	entries          map[int]*trafficEntry
	now              func() time.Time
}

// NewTrafficTracker returns a tracker enforcing limitBytesPerSec (0
// disables the check) with the given SvNetlimitAlpha percentage.
func NewTrafficTracker(limitBytesPerSec, alphaPercent int) *TrafficTracker {
	return &TrafficTracker{
		limitBytesPerSec: limitBytesPerSec,
		alpha:            float64(alphaPercent) / 100,
		entries:          make(map[int]*trafficEntry),
		now:              time.Now,
	}
}

// SetClock overrides the wall clock, for deterministic tests.
func (t *TrafficTracker) SetClock(now func() time.Time) { t.now = now }

// Record folds n bytes received from clientID into its traffic window
// and reports the current EWMA plus whether it now exceeds the
// configured limit.
func (t *TrafficTracker) Record(clientID int, n int) (ewma float64, overLimit bool) {
	now := t.now()
	e, ok := t.entries[clientID]
	if !ok {
		e = &trafficEntry{windowStart: now}
		t.entries[clientID] = e
	}

	e.windowBytes += n
	if elapsed := now.Sub(e.windowStart); elapsed >= Gate {
		instantaneous := float64(e.windowBytes) / elapsed.Seconds()
		e.ewma = t.alpha*instantaneous + (1-t.alpha)*e.ewma
		e.windowBytes = 0
		e.windowStart = now
	}

	overLimit = t.limitBytesPerSec > 0 && e.ewma > float64(t.limitBytesPerSec)
	return e.ewma, overLimit
}

// Forget drops a client's tracked traffic state, called on Drop.
func (t *TrafficTracker) Forget(clientID int) {
	delete(t.entries, clientID)
}
