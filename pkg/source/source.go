// Package source defines the polymorphic contract the UI and exporters
// consume, so they can treat a live sampling session and a recording
// replay identically (spec.md §4.9, "C9").
//
// Grounded on pkg/system/proc/collector.go's Collector interface — the
// smallest "pluggable backend, same consumer" interface in the corpus —
// generalized from a single Sample method to the frame-stream contract
// spec.md describes, and split into two interfaces (Source and the
// playback-only Playback capability) per spec.md §9 "Dynamic dispatch"
// design note.
package source

import (
	"github.com/fexstat/fexstat/pkg/frame"
	"github.com/fexstat/fexstat/pkg/session"
)

// Source is satisfied by both the live sampling loop (pkg/livesource)
// and the recording replay reader (pkg/recording). Consumers never
// need to know which one they hold.
type Source interface {
	// NextFrame returns the next available frame, or ok=false if none
	// is due yet (live: not time for the next sample; replay: paused or
	// finished) or the source has nothing more to give (live: target
	// process exited; replay: end of file reached and already drained).
	NextFrame() (frame.ComputedFrame, bool)

	// Metadata returns the session-wide facts gathered at attach time.
	Metadata() session.Metadata

	// IsLive reports whether this source is sampling a running process
	// (true) or replaying a recording (false).
	IsLive() bool

	// Close releases any resources the source holds (the SHM mapping,
	// the recording file, background workers).
	Close() error
}

// Playback is implemented only by replay sources; pause/seek/speed have
// no meaning against a live process (spec.md §4.9).
type Playback interface {
	Pause()
	Resume()
	Paused() bool
	Finished() bool

	// Speed returns the current playback multiplier.
	Speed() float64

	// SetSpeed changes the playback multiplier. Valid values are
	// {0.25, 0.5, 1, 2, 4, 8, 16} (spec.md §4.8); an invalid value
	// returns an error and leaves the speed unchanged.
	SetSpeed(speed float64) error

	// Seek jumps to an absolute frame index and rebuilds the
	// UI-visible histogram by replaying frame 0 through index
	// (spec.md §4.8). It returns the frame now at that index.
	Seek(index int) (frame.ComputedFrame, bool)

	// SeekRelative is a convenience wrapper for ±1-style stepping.
	SeekRelative(delta int) (frame.ComputedFrame, bool)
}

// ValidSpeeds enumerates the playback multipliers spec.md §4.8 allows.
var ValidSpeeds = []float64{0.25, 0.5, 1, 2, 4, 8, 16}

// IsValidSpeed reports whether speed is one of ValidSpeeds.
func IsValidSpeed(speed float64) bool {
	for _, s := range ValidSpeeds {
		if s == speed {
			return true
		}
	}
	return false
}
