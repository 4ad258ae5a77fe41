//go:build linux

// Package procwatch detects termination of the observed process without
// reaping or signalling it (spec.md §4.3, "C3").
//
// Grounded on golang.org/x/sys/unix's pidfd support — the same
// dependency pkg/shm already pulls in — falling back to the teacher's
// os.Stat-based presence-check idiom (pkg/system/proc/proc.go's
// Exists) when the kernel doesn't support pidfd.
package procwatch

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/fexstat/fexstat/pkg/shm"
)

// Watcher polls for termination of a single target pid. It is not safe
// for concurrent use.
type Watcher struct {
	pid    int
	pidfd  int // -1 when pidfd is unavailable
	exited bool
}

// New obtains a process handle for pid via pidfd_open, the OS mechanism
// that signals hang-up on exit. If the kernel doesn't support it (old
// kernel, ENOSYS), the watcher falls back to checking for the
// continued existence of the pid's shared-memory stats region.
func New(pid int) *Watcher {
	fd, err := unix.PidfdOpen(pid, 0)
	if err != nil {
		return &Watcher{pid: pid, pidfd: -1}
	}
	return &Watcher{pid: pid, pidfd: fd}
}

// HasExited is a non-blocking poll: it returns true once the target
// process has terminated. Once true, it stays true.
func (w *Watcher) HasExited() bool {
	if w.exited {
		return true
	}

	if w.pidfd >= 0 {
		w.exited = w.pollPidfd()
		return w.exited
	}

	// Fallback: the shared-memory region disappears when the emulator
	// process tears down (spec.md §4.3).
	if _, err := os.Stat(shm.RegionPath(w.pid)); os.IsNotExist(err) {
		w.exited = true
	}
	return w.exited
}

// pollPidfd does a zero-timeout poll of the pidfd for POLLIN, which the
// kernel raises on the pidfd once the target process exits.
func (w *Watcher) pollPidfd() bool {
	fds := []unix.PollFd{{Fd: int32(w.pidfd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 0)
	if err != nil {
		return false
	}
	if n == 0 {
		return false
	}
	return fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0
}

// Close releases the pidfd, if one was obtained. Safe to call more than
// once.
func (w *Watcher) Close() error {
	if w.pidfd < 0 {
		return nil
	}
	fd := w.pidfd
	w.pidfd = -1
	return unix.Close(fd)
}
