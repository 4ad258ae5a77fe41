//go:build linux && arm64

package shm

import (
	"sync/atomic"
	"unsafe"
)

// loadU32 performs an atomic load of the uint32 at byte offset off in
// buf, matching the atomic stores the emulator performs on its own
// arm64 host (spec.md §4.1 "Atomic-copy discipline"). The caller has
// already bounds-checked off+4 <= len(buf).
func loadU32(buf []byte, off int) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&buf[off])))
}

// loadU64 performs an atomic load of the uint64 at byte offset off in
// buf. The caller has already bounds-checked off+8 <= len(buf).
func loadU64(buf []byte, off int) uint64 {
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(&buf[off])))
}
