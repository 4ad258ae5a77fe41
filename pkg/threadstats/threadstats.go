// Package threadstats maintains prior per-thread counters across
// samples, emits non-negative deltas, and evicts threads the producer
// has stopped reporting (spec.md §4.4, "C4").
//
// Grounded on pkg/system/proc/v1.go's per-pid previous-counter maps
// (map[int]uint64 + deltaU64) and pkg/system/util.DeltaU64's
// clamp-to-zero-on-regression idiom, generalized from a flat counter
// set to the nine-field ThreadStats record and given an explicit
// last-seen eviction pass that the teacher's collectors don't need
// (they operate over a caller-supplied pid list rather than a
// self-reported, churning thread list).
package threadstats

import (
	"time"

	"github.com/fexstat/fexstat/pkg/shm"
)

// DefaultStaleTimeout is how long a thread may go unreported before
// Differ evicts it (spec.md §4.4).
const DefaultStaleTimeout = 10 * time.Second

// Delta is one thread's counter deltas for a single sample (spec.md §3
// "ThreadDelta").
type Delta struct {
	TID uint32

	JITTime            uint64
	SignalTime         uint64
	SigbusCount        uint64
	SMCCount           uint64
	FloatFallbackCount uint64
	CacheMissCount     uint64
	CacheReadLockTime  uint64
	CacheWriteLockTime uint64
	JITCount           uint64
}

// Output is what one differ pass returns (spec.md §4.4 step 3).
type Output struct {
	Timestamp      time.Time
	PerThreadDelta []Delta
	ThreadsSampled int
}

type threadState struct {
	previous shm.ThreadStats
	lastSeen time.Time
}

// Differ holds the per-tid previous-counter state across samples. It is
// not safe for concurrent use: per spec.md §5 the sampling flow owns it
// exclusively.
type Differ struct {
	staleTimeout time.Duration
	state        map[uint32]*threadState
}

// NewDiffer constructs a Differ with the given stale-thread timeout. A
// zero timeout selects DefaultStaleTimeout.
func NewDiffer(staleTimeout time.Duration) *Differ {
	if staleTimeout <= 0 {
		staleTimeout = DefaultStaleTimeout
	}
	return &Differ{
		staleTimeout: staleTimeout,
		state:        make(map[uint32]*threadState),
	}
}

// deltaU64 clamps a regressed counter to zero per spec.md §3 invariant
// 2 (current < previous ⇒ thread restart or counter reset).
func deltaU64(now, prev uint64) uint64 {
	if now >= prev {
		return now - prev
	}
	return 0
}

func diffRecord(raw, prev shm.ThreadStats) Delta {
	return Delta{
		TID:                raw.TID,
		JITTime:            deltaU64(raw.JITTime, prev.JITTime),
		SignalTime:         deltaU64(raw.SignalTime, prev.SignalTime),
		SigbusCount:        deltaU64(raw.SigbusCount, prev.SigbusCount),
		SMCCount:           deltaU64(raw.SMCCount, prev.SMCCount),
		FloatFallbackCount: deltaU64(raw.FloatFallbackCount, prev.FloatFallbackCount),
		CacheMissCount:     deltaU64(raw.CacheMissCount, prev.CacheMissCount),
		CacheReadLockTime:  deltaU64(raw.CacheReadLockTime, prev.CacheReadLockTime),
		CacheWriteLockTime: deltaU64(raw.CacheWriteLockTime, prev.CacheWriteLockTime),
		JITCount:           deltaU64(raw.JITCount, prev.JITCount),
	}
}

// Sample runs one differ pass over a fresh raw-stats vector (spec.md
// §4.4).
func (d *Differ) Sample(raw []shm.ThreadStats, now time.Time) Output {
	deltas := make([]Delta, 0, len(raw))

	for _, rec := range raw {
		st, known := d.state[rec.TID]
		if !known {
			d.state[rec.TID] = &threadState{previous: rec, lastSeen: now}
			deltas = append(deltas, Delta{TID: rec.TID})
			continue
		}
		deltas = append(deltas, diffRecord(rec, st.previous))
		st.previous = rec
		st.lastSeen = now
	}

	for tid, st := range d.state {
		if now.Sub(st.lastSeen) >= d.staleTimeout {
			delete(d.state, tid)
		}
	}

	return Output{
		Timestamp:      now,
		PerThreadDelta: deltas,
		ThreadsSampled: len(raw),
	}
}

// TrackedThreads returns the number of threads currently held in state,
// for tests and diagnostics.
func (d *Differ) TrackedThreads() int {
	return len(d.state)
}
