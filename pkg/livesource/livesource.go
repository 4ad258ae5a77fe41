//go:build linux

// Package livesource drives C1–C5 on a cadence and exposes the
// resulting frame stream through the C9 source contract (spec.md
// §4.6, "C6").
//
// Grounded on cmd/consumption/main.go's ticker/select sampling loop
// (time.NewTicker, a for/select over ctx.Done()/ticker.C) and its
// warmup-style first-pass handling, generalized from one CLI-owned
// loop into a library type with a non-blocking NextFrame that the UI
// (or, here, tests) drives at its own cadence.
package livesource

import (
	"fmt"
	"runtime"
	"time"

	"github.com/fexstat/fexstat/pkg/frame"
	"github.com/fexstat/fexstat/pkg/load"
	"github.com/fexstat/fexstat/pkg/memsnap"
	"github.com/fexstat/fexstat/pkg/procwatch"
	"github.com/fexstat/fexstat/pkg/session"
	"github.com/fexstat/fexstat/pkg/shm"
	"github.com/fexstat/fexstat/pkg/source"
	"github.com/fexstat/fexstat/pkg/threadstats"
)

var _ source.Source = (*LiveSource)(nil)

// State is the sampling loop's lifecycle state (spec.md §4.6).
type State int

const (
	StateRunning State = iota
	StateTargetExited
	StateError
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "Running"
	case StateTargetExited:
		return "TargetExited"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// DefaultSamplePeriod and the clamp range spec.md §4.6 specifies.
const (
	DefaultSamplePeriod = time.Second
	MinSamplePeriod     = 10 * time.Millisecond
	MaxSamplePeriod     = time.Second
)

// Sink receives one encoded frame per sample when a recording is
// attached (spec.md §4.6 step 7). pkg/recording.Writer implements this
// structurally, so livesource never imports the recording package.
type Sink interface {
	WriteFrame(f frame.ComputedFrame) error
}

// Config configures a LiveSource.
type Config struct {
	SamplePeriod time.Duration
	StaleTimeout time.Duration
	Sink         Sink
}

func clampPeriod(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultSamplePeriod
	}
	if d < MinSamplePeriod {
		return MinSamplePeriod
	}
	if d > MaxSamplePeriod {
		return MaxSamplePeriod
	}
	return d
}

// LiveSource owns C1/C3/C4/C5 plus the C2 background worker for one
// attached process. It satisfies pkg/source.Source.
type LiveSource struct {
	pid    int
	region *shm.Region
	watch  *procwatch.Watcher
	differ *threadstats.Differ
	acc    *load.Accumulator
	mem    *memsnap.Sampler // nil if the resident-memory map couldn't be opened
	sink   Sink

	period      time.Duration
	meta        session.Metadata
	state       State
	lastRun     time.Time
	recordingErr error
}

// Attach opens the shared-memory region for pid, obtains a liveness
// watcher, and starts the resident-memory background sampler. Setup
// failures here are unrecoverable (spec.md §7) and returned directly.
func Attach(pid int, cfg Config) (*LiveSource, error) {
	region, err := shm.Open(pid)
	if err != nil {
		return nil, fmt.Errorf("livesource: attach pid %d: %w", pid, err)
	}

	hdr := region.ReadHeader()
	hardwareThreads := runtime.NumCPU()
	cycleFreq := readCycleFreqHz()

	period := clampPeriod(cfg.SamplePeriod)

	memSampler, err := memsnap.NewSampler(pid, period)
	if err != nil {
		// Non-fatal: spec.md §7's unrecoverable-setup list does not
		// include the resident-memory map. Frames simply carry the
		// Uninitialised snapshot sentinel until/unless it appears.
		memSampler = nil
	} else {
		go memSampler.Run()
	}

	ls := &LiveSource{
		pid:    pid,
		region: region,
		watch:  procwatch.New(pid),
		differ: threadstats.NewDiffer(cfg.StaleTimeout),
		acc: load.New(load.Config{
			CycleFreqHz:         cycleFreq,
			HardwareConcurrency: hardwareThreads,
		}),
		mem:    memSampler,
		sink:   cfg.Sink,
		period: period,
		meta: session.Metadata{
			PID:              pid,
			FEXVersion:       hdr.FEXVersion,
			AppType:          hdr.AppType,
			StatsVersion:     hdr.Version,
			CycleFreqHz:      cycleFreq,
			HardwareThreads:  hardwareThreads,
			RecordingStartAt: time.Now(),
		},
		state: StateRunning,
	}
	return ls, nil
}

// SetSink attaches or replaces the recording sink after construction,
// so a caller can open the recording writer with ls.Metadata() (only
// known once Attach has read the stats header) before wiring it in.
func (ls *LiveSource) SetSink(sink Sink) { ls.sink = sink }

// RecordingError returns the first error a recording sink raised, if
// any. Once a sink fails, NextFrame stops calling it (spec.md §7:
// "Surface once; stop recording; live sampling continues"), so this
// value never changes after the first failed write. A caller logs it
// once and then ignores it on subsequent polls.
func (ls *LiveSource) RecordingError() error { return ls.recordingErr }

// Metadata implements pkg/source.Source.
func (ls *LiveSource) Metadata() session.Metadata { return ls.meta }

// IsLive implements pkg/source.Source.
func (ls *LiveSource) IsLive() bool { return true }

// State returns the current lifecycle state.
func (ls *LiveSource) State() State { return ls.state }

// NextFrame implements pkg/source.Source. It performs steps 1-8 of the
// sampling-loop iteration in spec.md §4.6, returning ok=false when the
// sample period has not yet elapsed or the target has already exited.
func (ls *LiveSource) NextFrame() (frame.ComputedFrame, bool) {
	if ls.state != StateRunning {
		return frame.ComputedFrame{}, false
	}

	// Step 1: poll liveness.
	if ls.watch.HasExited() {
		ls.state = StateTargetExited
		return frame.ComputedFrame{}, false
	}

	now := time.Now()
	if !ls.lastRun.IsZero() && now.Sub(ls.lastRun) < ls.period {
		return frame.ComputedFrame{}, false
	}

	// Step 2: memory barrier before reading producer-written state.
	ls.region.Barrier()

	// Step 3: resize-check, then walk.
	_ = ls.region.Resize()
	hdr := ls.region.ReadHeader()
	raw, walkErr := ls.region.Walk(hdr.Head, hdr.ThreadStatsSize)
	_ = walkErr // ErrTruncated is a warning, not fatal (spec.md §4.1/§7); raw holds what was seen.

	// Step 4: differ.
	diffOut := ls.differ.Sample(raw, now)

	// Step 5: latest memory snapshot.
	memSnap := memsnap.Uninitialised
	if ls.mem != nil {
		memSnap = ls.mem.Latest()
	}

	// Step 6: compute.
	fr := ls.acc.Apply(diffOut, memSnap)
	ls.lastRun = now

	// Step 7: feed the recording sink, if any. A write failure is
	// surfaced exactly once via RecordingError and then the sink is
	// dropped so sampling keeps going without retrying a broken
	// destination every period (spec.md §7).
	if ls.sink != nil {
		if err := ls.sink.WriteFrame(fr); err != nil {
			ls.recordingErr = err
			ls.sink = nil
		}
	}

	// Step 8: yield.
	return fr, true
}

// Close releases the SHM mapping, the liveness watcher and stops the
// resident-memory background worker.
func (ls *LiveSource) Close() error {
	if ls.mem != nil {
		ls.mem.Stop()
	}
	_ = ls.watch.Close()
	return ls.region.Close()
}
