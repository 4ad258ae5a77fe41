package shm

import "errors"

var (
	// ErrOpenFailed means the named region is missing or too small to
	// hold a usable header (spec.md §4.1, §7 "Unrecoverable setup").
	ErrOpenFailed = errors.New("shm: open failed")

	// ErrVersionMismatch means Header.Version != ExpectedVersion.
	ErrVersionMismatch = errors.New("shm: stats header version mismatch")

	// ErrMapFailed means the mmap syscall itself failed.
	ErrMapFailed = errors.New("shm: map failed")

	// ErrTruncated is returned by Walk (not Open): the thread list was
	// cut short by an out-of-range offset. It is never fatal — the
	// caller keeps the records seen so far (spec.md §4.1, §7).
	ErrTruncated = errors.New("shm: thread list truncated")
)
