package recording

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/fexstat/fexstat/pkg/memsnap"
)

// byteWriter appends fixed-width little-endian fields to a growable
// buffer. It exists so encodeFrame reads as a flat field list instead
// of a wall of binary.LittleEndian.PutUint64 calls.
type byteWriter struct {
	buf *[]byte
}

func newByteWriter(buf *[]byte) *byteWriter {
	return &byteWriter{buf: buf}
}

func (w *byteWriter) putU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	*w.buf = append(*w.buf, b[:]...)
}

func (w *byteWriter) putU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	*w.buf = append(*w.buf, b[:]...)
}

func (w *byteWriter) putI64(v int64) {
	w.putU64(uint64(v))
}

func (w *byteWriter) putF64(v float64) {
	w.putU64(math.Float64bits(v))
}

// byteReader is the matching fixed-width little-endian cursor. The
// first error encountered (typically io.ErrUnexpectedEOF from a
// truncated frame) is sticky and surfaced once by decodeFrame.
type byteReader struct {
	buf []byte
	pos int
	err error
}

func newByteReader(buf []byte) *byteReader {
	return &byteReader{buf: buf}
}

func (r *byteReader) take(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	if r.pos+n > len(r.buf) {
		r.err = io.ErrUnexpectedEOF
		return make([]byte, n)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *byteReader) u32() uint32 {
	return binary.LittleEndian.Uint32(r.take(4))
}

func (r *byteReader) u64() uint64 {
	return binary.LittleEndian.Uint64(r.take(8))
}

func (r *byteReader) i64() int64 {
	return int64(r.u64())
}

func (r *byteReader) f64() float64 {
	return math.Float64frombits(r.u64())
}

// putMemSnapshot/getMemSnapshot encode memsnap.Snapshot's exported
// categories plus its validity flag and largest-anon region. An
// Uninitialised snapshot round-trips to Uninitialised.
func putMemSnapshot(w *byteWriter, s memsnap.Snapshot) {
	if !s.Valid() {
		w.putU32(0)
		return
	}
	w.putU32(1)
	w.putU64(s.Total)
	w.putU64(s.JITCode)
	w.putU64(s.OpDispatcher)
	w.putU64(s.Frontend)
	w.putU64(s.CPUBackend)
	w.putU64(s.Lookup)
	w.putU64(s.LookupL1)
	w.putU64(s.ThreadStates)
	w.putU64(s.BlockLinks)
	w.putU64(s.Misc)
	w.putU64(s.Allocator)
	w.putU64(s.Unaccounted)
	w.putU64(s.LargestAnon.Begin)
	w.putU64(s.LargestAnon.End)
	w.putU64(s.LargestAnon.Size)
}

func getMemSnapshot(r *byteReader) memsnap.Snapshot {
	valid := r.u32()
	if valid == 0 {
		return memsnap.Uninitialised
	}
	return memsnap.SnapshotFromParts(memsnap.Parts{
		Total:        r.u64(),
		JITCode:      r.u64(),
		OpDispatcher: r.u64(),
		Frontend:     r.u64(),
		CPUBackend:   r.u64(),
		Lookup:       r.u64(),
		LookupL1:     r.u64(),
		ThreadStates: r.u64(),
		BlockLinks:   r.u64(),
		Misc:         r.u64(),
		Allocator:    r.u64(),
		Unaccounted:  r.u64(),
		LargestAnon: memsnap.AnonRegion{
			Begin: r.u64(),
			End:   r.u64(),
			Size:  r.u64(),
		},
	})
}
