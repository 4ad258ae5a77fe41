//go:build linux

// Package shm implements the shared-memory reader (spec.md §4.1, "C1").
// It attaches to the fixed-layout counter region a running emulator
// publishes, tolerating concurrent producer writes and region growth.
//
// Grounded on calvinalkan-agent-task/pkg/slotcache (mmap-a-file, walk
// fixed-size records) and the ebpf perf-ring-buffer readers' pattern of
// reinterpreting an mmap'd byte slice through atomic field loads.
package shm

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Region is an attached, read-only mapping of one emulator's stats
// region. It is not safe for concurrent use: per spec.md §5, the
// sampling flow owns it exclusively.
type Region struct {
	pid  int
	f    *os.File
	data []byte
}

// regionName is the shared-memory object name the emulator publishes
// under, spec.md §6 ("fex-<pid>-stats").
func regionName(pid int) string {
	return fmt.Sprintf("fex-%d-stats", pid)
}

// regionPath is where that shared-memory object is visible as a regular
// file on Linux.
func regionPath(pid int) string {
	return "/dev/shm/" + regionName(pid)
}

// RegionPath exposes regionPath for callers (notably pkg/procwatch's
// fallback liveness check) that need to probe for the region's
// continued existence without opening a full Region.
func RegionPath(pid int) string {
	return regionPath(pid)
}

// Open attaches to the stats region for pid. It stats the backing file,
// requires it be at least MinRegionSize bytes, and maps it read-only
// and shared (spec.md §4.1 "Open").
func Open(pid int) (*Region, error) {
	f, err := os.Open(regionPath(pid))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	if info.Size() < MinRegionSize {
		_ = f.Close()
		return nil, fmt.Errorf("%w: region too small (%d bytes)", ErrOpenFailed, info.Size())
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %v", ErrMapFailed, err)
	}

	r := &Region{pid: pid, f: f, data: data}

	hdr := r.ReadHeader()
	if hdr.Version != ExpectedVersion {
		_ = r.Close()
		return nil, fmt.Errorf("%w: got %d want %d", ErrVersionMismatch, hdr.Version, ExpectedVersion)
	}

	return r, nil
}

// Close unmaps the region and closes the backing file descriptor.
func (r *Region) Close() error {
	var err error
	if r.data != nil {
		err = unix.Munmap(r.data)
		r.data = nil
	}
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// MappedSize returns the currently mapped length in bytes.
func (r *Region) MappedSize() int {
	return len(r.data)
}

// Barrier executes a store-side memory barrier so producer writes made
// before the emulator's own barrier become observable here (spec.md §5
// "Ordering guarantees"). On ARM64 this is a full DMB; we approximate it
// portably with a single atomic fence via a dummy CAS-free load, since
// Go does not expose a bare memory-barrier intrinsic. The per-field
// atomic loads in Walk/ReadHeader are what actually provide the
// ordering guarantee; Barrier exists so call sites read naturally as
// spec.md §4.6 step 2 describes ("execute a memory barrier").
func (r *Region) Barrier() {
	if len(r.data) == 0 {
		return
	}
	_ = atomic.LoadUint32((*uint32)(unsafe.Pointer(&r.data[0])))
}

// Resize re-reads the header's size field and, if it differs from the
// currently mapped length, unmaps and remaps at the new length (spec.md
// §4.1 "Resize"). The mapping base may move; callers must not cache a
// pointer into Region across a Resize call (none do — every read copies
// out through ReadHeader/Walk).
func (r *Region) Resize() error {
	hdr := r.ReadHeader()
	newSize := int(hdr.Size)
	if newSize <= 0 || newSize == len(r.data) {
		return nil
	}

	newData, err := unix.Mmap(int(r.f.Fd()), 0, newSize, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMapFailed, err)
	}

	if r.data != nil {
		_ = unix.Munmap(r.data)
	}
	r.data = newData
	return nil
}
