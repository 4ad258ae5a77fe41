// Package frame defines ComputedFrame, the unit exposed to every
// consumer of this system: the UI, the CSV exporter, and the recording
// writer/reader (spec.md §3 "ComputedFrame", §4.9 "C9").
//
// It sits below pkg/load, pkg/recording and pkg/source so none of them
// need to import one another just to share this one value type.
package frame

import (
	"time"

	"github.com/fexstat/fexstat/pkg/memsnap"
	"github.com/fexstat/fexstat/pkg/threadstats"
)

// HistogramEntry is one slot of the scrolling load histogram (spec.md
// §3 "HistogramEntry").
type HistogramEntry struct {
	LoadPercent      float32
	HighJITLoad      bool
	HighInvalidation bool
	HighSigbus       bool
	HighSoftfloat    bool
}

// ThreadLoad is one thread's share of a frame's load, sorted and capped
// by the accumulator (spec.md §3 "Per-thread load list").
type ThreadLoad struct {
	TID         uint32
	LoadPercent float64
	TotalCycles uint64
}

// Totals holds the period-aggregated sum of every ThreadStats counter
// across all sampled threads in one frame.
type Totals struct {
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

// ComputedFrame is one atomic unit of observable state, produced at the
// sample cadence (spec.md §3, GLOSSARY "Frame").
type ComputedFrame struct {
	WallClock      time.Time
	Monotonic      time.Duration
	SamplePeriod   time.Duration
	ThreadsSampled int

	Totals Totals

	FEXLoadPercent float64
	ThreadLoads    []ThreadLoad

	Mem memsnap.Snapshot

	// PerThreadDeltas is carried on every frame for lossless recording
	// (spec.md §3 "the raw per_thread_deltas list for lossless
	// recording").
	PerThreadDeltas []threadstats.Delta
}
