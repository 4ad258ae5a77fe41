// Package load converts thread-stats deltas and elapsed time into
// scalar JIT load, per-thread load, and histogram entries (spec.md
// §4.5, "C5").
//
// Grounded on pkg/consumption/consumption.go's Accumulator shape (a
// config struct of coefficients, a stateful accumulator with an Apply
// method that both returns a per-sample Result and updates running
// state) and model.go's Config/Result pair — the API shape is the
// teacher's, the math is spec.md's JIT-load model, not the teacher's
// Watts/Joules one.
package load

import (
	"sort"
	"time"

	"github.com/fexstat/fexstat/pkg/frame"
	"github.com/fexstat/fexstat/pkg/memsnap"
	"github.com/fexstat/fexstat/pkg/threadstats"
)

// HistogramCapacity is the fixed ring size spec.md §3 invariant 4
// requires.
const HistogramCapacity = 200

const (
	jitInvalidationThreshold = 500
	sigbusThreshold          = 5_000
	softfloatThreshold       = 1_000_000
)

// Config carries the per-session constants the accumulator needs but
// cannot derive from a single sample (spec.md §4.5 "Inputs").
type Config struct {
	CycleFreqHz         float64
	HardwareConcurrency int
}

// Accumulator is the stateful C5 component: it remembers the previous
// pass's wall timestamp and owns the histogram ring. Not safe for
// concurrent use (spec.md §5).
type Accumulator struct {
	cfg      Config
	prevNow  time.Time
	havePrev bool

	// startMono is a monotonic reference captured at construction.
	// ComputedFrame.Monotonic is derived from it rather than from
	// WallClock alone, so frame ordering survives a wall-clock step
	// (NTP adjustment, system suspend) (spec.md §3 invariant 5).
	startMono time.Time

	histogram []frame.HistogramEntry
}

// New constructs an Accumulator for the given session config.
func New(cfg Config) *Accumulator {
	return &Accumulator{cfg: cfg, startMono: time.Now()}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxCyclesFor(freqHz float64, period time.Duration) float64 {
	if period <= 0 {
		return 0
	}
	return freqHz * period.Seconds()
}

// sumTotals folds every thread's delta into the frame's period totals.
func sumTotals(deltas []threadstats.Delta) frame.Totals {
	var t frame.Totals
	for _, d := range deltas {
		t.JITTime += d.JITTime
		t.SignalTime += d.SignalTime
		t.SigbusCount += d.SigbusCount
		t.SMCCount += d.SMCCount
		t.FloatFallbackCount += d.FloatFallbackCount
		t.CacheMissCount += d.CacheMissCount
		t.CacheReadLockTime += d.CacheReadLockTime
		t.CacheWriteLockTime += d.CacheWriteLockTime
		t.JITCount += d.JITCount
	}
	return t
}

// buildThreadLoads computes each thread's raw (unclamped) load percent,
// sorts descending by jit_time+signal_time, and caps the result at
// min(hardwareConcurrency, 32) entries (spec.md §3 invariant 3).
func buildThreadLoads(deltas []threadstats.Delta, maxCycles float64, hardwareConcurrency int) []frame.ThreadLoad {
	order := make([]int, len(deltas))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		di, dj := deltas[order[i]], deltas[order[j]]
		return di.JITTime+di.SignalTime > dj.JITTime+dj.SignalTime
	})

	loads := make([]frame.ThreadLoad, len(deltas))
	for k, i := range order {
		d := deltas[i]
		var pct float64
		if maxCycles > 0 {
			pct = (float64(d.JITTime) / maxCycles) * 100
		}
		loads[k] = frame.ThreadLoad{TID: d.TID, LoadPercent: pct, TotalCycles: d.JITTime}
	}

	limit := minInt(hardwareConcurrency, 32)
	if limit < 0 {
		limit = 0
	}
	if len(loads) > limit {
		loads = loads[:limit]
	}
	return loads
}

// HistogramEntryFrom derives a HistogramEntry from an already-computed
// frame and the session's cycle frequency. It is pure so both the live
// accumulator and the replay seek path (pkg/recording) can use it to
// reproduce the same histogram from recorded frames.
func HistogramEntryFrom(f frame.ComputedFrame, cycleFreqHz float64) frame.HistogramEntry {
	maxCycles := maxCyclesFor(cycleFreqHz, f.SamplePeriod)
	return frame.HistogramEntry{
		LoadPercent:      float32(f.FEXLoadPercent),
		HighJITLoad:      maxCycles > 0 && float64(f.Totals.JITTime) >= maxCycles,
		HighInvalidation: f.Totals.SMCCount >= jitInvalidationThreshold,
		HighSigbus:       f.Totals.SigbusCount >= sigbusThreshold,
		HighSoftfloat:    f.Totals.FloatFallbackCount >= softfloatThreshold,
	}
}

// Apply runs the C5 computation for one sample (spec.md §4.5). The
// first call after construction has no prior timestamp to diff
// against, so it returns a frame with all derived fields zero and does
// not append a histogram entry.
func (a *Accumulator) Apply(diff threadstats.Output, mem memsnap.Snapshot) frame.ComputedFrame {
	now := diff.Timestamp
	first := !a.havePrev

	var period time.Duration
	if !first {
		period = now.Sub(a.prevNow)
	}
	a.prevNow = now
	a.havePrev = true

	totals := sumTotals(diff.PerThreadDelta)
	maxCycles := maxCyclesFor(a.cfg.CycleFreqHz, period)
	activeCores := minInt(a.cfg.HardwareConcurrency, diff.ThreadsSampled)

	var fexLoad float64
	if !first && maxCycles > 0 && activeCores > 0 {
		fexLoad = (float64(totals.JITTime) / (maxCycles * float64(activeCores))) * 100
	}

	var threadLoads []frame.ThreadLoad
	if !first {
		threadLoads = buildThreadLoads(diff.PerThreadDelta, maxCycles, a.cfg.HardwareConcurrency)
	}

	fr := frame.ComputedFrame{
		WallClock:       now,
		Monotonic:       now.Sub(a.startMono),
		SamplePeriod:    period,
		ThreadsSampled:  diff.ThreadsSampled,
		Totals:          totals,
		FEXLoadPercent:  fexLoad,
		ThreadLoads:     threadLoads,
		Mem:             mem,
		PerThreadDeltas: diff.PerThreadDelta,
	}

	if !first {
		a.pushHistogram(HistogramEntryFrom(fr, a.cfg.CycleFreqHz))
	}

	return fr
}

// pushHistogram appends to the ring, evicting the oldest entry once at
// capacity (spec.md §3 invariant 4: oldest at index 0, newest at the
// end).
func (a *Accumulator) pushHistogram(e frame.HistogramEntry) {
	a.histogram = append(a.histogram, e)
	if len(a.histogram) > HistogramCapacity {
		a.histogram = a.histogram[len(a.histogram)-HistogramCapacity:]
	}
}

// Histogram returns a copy of the current ring contents, oldest first.
func (a *Accumulator) Histogram() []frame.HistogramEntry {
	out := make([]frame.HistogramEntry, len(a.histogram))
	copy(out, a.histogram)
	return out
}
