package recording

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/fexstat/fexstat/pkg/frame"
	"github.com/fexstat/fexstat/pkg/session"
	"github.com/fexstat/fexstat/pkg/shm"
	"github.com/fexstat/fexstat/pkg/threadstats"
)

// writeString writes a varint length prefix followed by the string's
// bytes; the self-describing-by-schema framing spec.md §4.7 calls for.
func writeString(w io.Writer, s string) error {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(s)))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r *bufio.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// writeMetadata encodes SessionMetadata in declared-field order
// (spec.md §4.7 "varint-framed").
func writeMetadata(w io.Writer, m session.Metadata) error {
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(m.PID))
	if _, err := w.Write(u32[:]); err != nil {
		return err
	}
	if err := writeString(w, m.FEXVersion); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(m.AppType), m.StatsVersion}); err != nil {
		return err
	}
	var f8 [8]byte
	binary.LittleEndian.PutUint64(f8[:], math.Float64bits(m.CycleFreqHz))
	if _, err := w.Write(f8[:]); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(u32[:], uint32(m.HardwareThreads))
	if _, err := w.Write(u32[:]); err != nil {
		return err
	}
	var i8 [8]byte
	binary.LittleEndian.PutUint64(i8[:], uint64(m.RecordingStartAt.UnixNano()))
	_, err := w.Write(i8[:])
	return err
}

func readMetadata(r *bufio.Reader) (session.Metadata, error) {
	var m session.Metadata

	var u32 [4]byte
	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return m, err
	}
	m.PID = int(binary.LittleEndian.Uint32(u32[:]))

	fexVersion, err := readString(r)
	if err != nil {
		return m, err
	}
	m.FEXVersion = fexVersion

	appAndVersion := make([]byte, 2)
	if _, err := io.ReadFull(r, appAndVersion); err != nil {
		return m, err
	}
	m.AppType = shm.AppType(appAndVersion[0])
	m.StatsVersion = appAndVersion[1]

	var f8 [8]byte
	if _, err := io.ReadFull(r, f8[:]); err != nil {
		return m, err
	}
	m.CycleFreqHz = math.Float64frombits(binary.LittleEndian.Uint64(f8[:]))

	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return m, err
	}
	m.HardwareThreads = int(binary.LittleEndian.Uint32(u32[:]))

	var i8 [8]byte
	if _, err := io.ReadFull(r, i8[:]); err != nil {
		return m, err
	}
	m.RecordingStartAt = time.Unix(0, int64(binary.LittleEndian.Uint64(i8[:]))).UTC()

	return m, nil
}

// encodeFrame serialises a ComputedFrame in declared-field order,
// including the raw per_thread_deltas list for lossless recording
// (spec.md §4.7, §3 "ComputedFrame").
func encodeFrame(f frame.ComputedFrame) []byte {
	buf := make([]byte, 0, 256)
	w := newByteWriter(&buf)

	w.putI64(f.WallClock.UnixNano())
	w.putI64(int64(f.Monotonic))
	w.putI64(int64(f.SamplePeriod))
	w.putU32(uint32(f.ThreadsSampled))

	putTotals(w, f.Totals)

	w.putF64(f.FEXLoadPercent)

	w.putU32(uint32(len(f.ThreadLoads)))
	for _, tl := range f.ThreadLoads {
		w.putU32(tl.TID)
		w.putF64(tl.LoadPercent)
		w.putU64(tl.TotalCycles)
	}

	putMemSnapshot(w, f.Mem)

	w.putU32(uint32(len(f.PerThreadDeltas)))
	for _, d := range f.PerThreadDeltas {
		putThreadDelta(w, d)
	}

	return buf
}

func decodeFrame(b []byte) (frame.ComputedFrame, error) {
	r := newByteReader(b)
	var f frame.ComputedFrame

	f.WallClock = time.Unix(0, r.i64()).UTC()
	f.Monotonic = time.Duration(r.i64())
	f.SamplePeriod = time.Duration(r.i64())
	f.ThreadsSampled = int(r.u32())

	f.Totals = getTotals(r)
	f.FEXLoadPercent = r.f64()

	n := r.u32()
	if n > 0 {
		f.ThreadLoads = make([]frame.ThreadLoad, n)
		for i := range f.ThreadLoads {
			f.ThreadLoads[i] = frame.ThreadLoad{
				TID:         r.u32(),
				LoadPercent: r.f64(),
				TotalCycles: r.u64(),
			}
		}
	}

	f.Mem = getMemSnapshot(r)

	dn := r.u32()
	if dn > 0 {
		f.PerThreadDeltas = make([]threadstats.Delta, dn)
		for i := range f.PerThreadDeltas {
			f.PerThreadDeltas[i] = getThreadDelta(r)
		}
	}

	if r.err != nil {
		return frame.ComputedFrame{}, fmt.Errorf("recording: decode frame: %w", r.err)
	}
	return f, nil
}

func putTotals(w *byteWriter, t frame.Totals) {
	w.putU64(t.JITTime)
	w.putU64(t.SignalTime)
	w.putU64(t.SigbusCount)
	w.putU64(t.SMCCount)
	w.putU64(t.FloatFallbackCount)
	w.putU64(t.CacheMissCount)
	w.putU64(t.CacheReadLockTime)
	w.putU64(t.CacheWriteLockTime)
	w.putU64(t.JITCount)
}

func getTotals(r *byteReader) frame.Totals {
	return frame.Totals{
		JITTime:            r.u64(),
		SignalTime:         r.u64(),
		SigbusCount:        r.u64(),
		SMCCount:           r.u64(),
		FloatFallbackCount: r.u64(),
		CacheMissCount:     r.u64(),
		CacheReadLockTime:  r.u64(),
		CacheWriteLockTime: r.u64(),
		JITCount:           r.u64(),
	}
}

func putThreadDelta(w *byteWriter, d threadstats.Delta) {
	w.putU32(d.TID)
	w.putU64(d.JITTime)
	w.putU64(d.SignalTime)
	w.putU64(d.SigbusCount)
	w.putU64(d.SMCCount)
	w.putU64(d.FloatFallbackCount)
	w.putU64(d.CacheMissCount)
	w.putU64(d.CacheReadLockTime)
	w.putU64(d.CacheWriteLockTime)
	w.putU64(d.JITCount)
}

func getThreadDelta(r *byteReader) threadstats.Delta {
	return threadstats.Delta{
		TID:                r.u32(),
		JITTime:            r.u64(),
		SignalTime:         r.u64(),
		SigbusCount:        r.u64(),
		SMCCount:           r.u64(),
		FloatFallbackCount: r.u64(),
		CacheMissCount:     r.u64(),
		CacheReadLockTime:  r.u64(),
		CacheWriteLockTime: r.u64(),
		JITCount:           r.u64(),
	}
}
