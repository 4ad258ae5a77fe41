//go:build linux

package memsnap

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// mapPath is the OS-provided per-process resident-memory map path
// (spec.md §4.2, "the OS-provided path").
func mapPath(pid int) string {
	return fmt.Sprintf("/proc/%d/smaps", pid)
}

// Sampler runs its own cooperative background pass at a fixed period,
// keeping the map file open and rewinding it on each pass rather than
// reopening, and publishes the latest snapshot to a single slot that
// the accumulator (C5) reads race-free (spec.md §4.2, §5 "Shared-
// resource policy").
type Sampler struct {
	pid    int
	f      *os.File
	period time.Duration
	latest atomic.Pointer[Snapshot]

	stop chan struct{}
	done chan struct{}
}

// NewSampler opens the resident-memory map for pid and returns a
// Sampler whose Latest() starts out Uninitialised.
func NewSampler(pid int, period time.Duration) (*Sampler, error) {
	f, err := os.Open(mapPath(pid))
	if err != nil {
		return nil, err
	}
	s := &Sampler{
		pid:    pid,
		f:      f,
		period: period,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	u := Uninitialised
	s.latest.Store(&u)
	return s, nil
}

// Latest returns the most recently published snapshot. It never
// blocks and is safe to call from any goroutine.
func (s *Sampler) Latest() Snapshot {
	return *s.latest.Load()
}

// Run drives the sampling loop until Stop is called. It is meant to be
// started in its own goroutine; it is the "own cooperative task"
// spec.md §4.2 describes.
func (s *Sampler) Run() {
	defer close(s.done)

	t := time.NewTicker(s.period)
	defer t.Stop()

	s.samplePass()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.samplePass()
		}
	}
}

// samplePass rewinds the held file descriptor, reparses it, and
// publishes the result only if it yielded non-zero total bytes; a
// zero-byte pass is treated as partial/transient and the last good
// snapshot is left in place (spec.md §4.2).
func (s *Sampler) samplePass() {
	if _, err := s.f.Seek(0, 0); err != nil {
		return
	}
	snap, ok := parseOnePass(s.f)
	if !ok {
		return
	}
	s.latest.Store(&snap)
}

// Stop halts the background loop and closes the held file descriptor.
// It blocks until the loop goroutine has exited.
func (s *Sampler) Stop() {
	close(s.stop)
	<-s.done
	_ = s.f.Close()
}
