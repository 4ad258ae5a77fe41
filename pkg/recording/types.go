// Package recording persists a session's frame stream to a compressed,
// length-framed file (C7, spec.md §4.7) and replays it back through
// the same source contract the live sampler exposes (C8, spec.md
// §4.8).
//
// Grounded on calvinalkan-agent-task/pkg/slotcache's fixed binary
// header (magic + version + encoding.binary field layout) for the
// framing style, generalized from a random-access mmap'd file to a
// sequential compressed stream, and on pkg/recording's compression
// choice of github.com/klauspost/compress/zstd.
package recording

// Magic and EOFMarker are the four-byte sentinels spec.md §4.7
// specifies.
const (
	Magic         = "WTFR"
	EOFMarker     = "WEOF"
	FormatVersion = uint8(1)
)

// ErrBadMagic, ErrVersionMismatch and friends are declared in errors.go.
