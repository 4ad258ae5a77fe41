//go:build linux && !arm64

package shm

import "encoding/binary"

// loadU32 and loadU64 fall back to a plain little-endian decode on
// non-arm64 hosts. This reader is meant to run on the arm64 box the
// emulator itself targets; a plain decode here is only ever exercised
// by tests and development builds running on a different host
// architecture, where no emulator is concurrently writing the region
// anyway (spec.md §4.1 "Atomic-copy discipline", development platforms
// only).
func loadU32(buf []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(buf[off : off+4])
}

func loadU64(buf []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(buf[off : off+8])
}
