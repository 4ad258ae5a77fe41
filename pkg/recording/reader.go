package recording

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/fexstat/fexstat/pkg/frame"
	"github.com/fexstat/fexstat/pkg/load"
	"github.com/fexstat/fexstat/pkg/session"
	"github.com/fexstat/fexstat/pkg/source"
)

var _ source.Source = (*Reader)(nil)
var _ source.Playback = (*Reader)(nil)

// Reader replays a recording through the same Source/Playback contract
// C6's LiveSource uses (C8, spec.md §4.8).
//
// The whole frame stream is decoded eagerly at Open time: recordings
// are bounded by a debugging session's length, and eager decode is what
// makes Seek/SeekRelative simple random access rather than a second
// pass over the compressed stream.
type Reader struct {
	meta   session.Metadata
	frames []frame.ComputedFrame

	current int // index of the last frame handed out by NextFrame/Seek, -1 before the first
	paused  bool
	speed   float64

	lastEmit    time.Time // monotonic reading taken when the current frame was handed out
	haveLastEmit bool

	histogram []frame.HistogramEntry
}

// Open decodes path fully into memory. If the file lacks a trailing
// EOFMarker, Open still returns a usable Reader over the decoded prefix
// alongside a *Truncated error (spec.md §7 "Truncated recording", §8
// S6) — callers that only care about hard failures can check with
// errors.As.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("recording: open %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)

	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("recording: read magic: %w", err)
	}
	if string(magic) != Magic {
		return nil, ErrBadMagic
	}

	version, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("recording: read version: %w", err)
	}
	if version != FormatVersion {
		return nil, ErrVersionMismatch
	}

	zr, err := zstd.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("recording: new zstd reader: %w", err)
	}
	defer zr.Close()

	zbr := bufio.NewReader(zr)

	meta, err := readMetadata(zbr)
	if err != nil {
		return nil, fmt.Errorf("recording: read metadata: %w", err)
	}

	r := &Reader{
		meta:    meta,
		current: -1,
		speed:   1,
	}

	hitEOF := false
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(zbr, lenBuf[:]); err != nil {
			// Stream ended (or was cut off mid-frame) without an
			// EOFMarker: the decoded prefix stands.
			break
		}
		if bytes.Equal(lenBuf[:], []byte(EOFMarker)) {
			hitEOF = true
			break
		}

		n := binary.LittleEndian.Uint32(lenBuf[:])
		body := make([]byte, n)
		if _, err := io.ReadFull(zbr, body); err != nil {
			break
		}

		fr, err := decodeFrame(body)
		if err != nil {
			break
		}
		r.frames = append(r.frames, fr)
	}

	if !hitEOF {
		return r, &Truncated{FramesRead: len(r.frames)}
	}
	return r, nil
}

// Metadata implements pkg/source.Source.
func (r *Reader) Metadata() session.Metadata { return r.meta }

// IsLive implements pkg/source.Source: a recording is never live.
func (r *Reader) IsLive() bool { return false }

// Close implements pkg/source.Source. Everything is already in memory,
// so there is nothing left to release.
func (r *Reader) Close() error { return nil }

// NextFrame implements pkg/source.Source. It is non-blocking and
// time-gated against each frame's own recorded sample period, scaled by
// the current playback speed: a caller may poll it as often as it
// likes and only gets a new frame once (now - last_emit) >=
// (frame[next].period / speed) (spec.md §4.8 playback state, §4.9
// "Speed multiplies the caller's redraw cadence, it does not skip
// frames"). The very first frame is always due immediately.
func (r *Reader) NextFrame() (frame.ComputedFrame, bool) {
	if r.paused || r.Finished() {
		return frame.ComputedFrame{}, false
	}

	next := r.current + 1
	if r.haveLastEmit {
		speed := r.speed
		if speed <= 0 {
			speed = 1
		}
		due := time.Duration(float64(r.frames[next].SamplePeriod) / speed)
		if time.Since(r.lastEmit) < due {
			return frame.ComputedFrame{}, false
		}
	}

	r.current = next
	r.lastEmit = time.Now()
	r.haveLastEmit = true
	fr := r.frames[r.current]
	r.pushHistogramUpTo(r.current)
	return fr, true
}

// Pause implements pkg/source.Playback.
func (r *Reader) Pause() { r.paused = true }

// Resume implements pkg/source.Playback.
func (r *Reader) Resume() { r.paused = false }

// Paused implements pkg/source.Playback.
func (r *Reader) Paused() bool { return r.paused }

// Finished implements pkg/source.Playback.
func (r *Reader) Finished() bool {
	return r.current >= len(r.frames)-1
}

// Speed implements pkg/source.Playback.
func (r *Reader) Speed() float64 { return r.speed }

// SetSpeed implements pkg/source.Playback.
func (r *Reader) SetSpeed(speed float64) error {
	if !source.IsValidSpeed(speed) {
		return ErrInvalidSpeed
	}
	r.speed = speed
	return nil
}

// Seek implements pkg/source.Playback, jumping to an absolute frame
// index and rebuilding the histogram as if playback had run from frame
// 0 up to index (spec.md §4.9 "Seek rebuilds the histogram").
func (r *Reader) Seek(index int) (frame.ComputedFrame, bool) {
	if index < 0 || index >= len(r.frames) {
		return frame.ComputedFrame{}, false
	}
	r.current = index
	r.haveLastEmit = false
	r.rebuildHistogram(index)
	return r.frames[index], true
}

// SeekRelative implements pkg/source.Playback.
func (r *Reader) SeekRelative(delta int) (frame.ComputedFrame, bool) {
	return r.Seek(r.current + delta)
}

// Histogram returns the load histogram rebuilt up through the current
// playback position, capped at load.HistogramCapacity entries.
func (r *Reader) Histogram() []frame.HistogramEntry {
	return r.histogram
}

// rebuildHistogram replays HistogramEntryFrom over frames 1..index: the
// first frame never contributes an entry, matching the live
// accumulator's first-pass-has-no-prior-timestamp rule (spec.md §4.5).
func (r *Reader) rebuildHistogram(index int) {
	r.histogram = r.histogram[:0]
	for i := 1; i <= index; i++ {
		r.pushHistogramEntry(load.HistogramEntryFrom(r.frames[i], r.meta.CycleFreqHz))
	}
}

func (r *Reader) pushHistogramUpTo(index int) {
	if index == 0 {
		return
	}
	r.pushHistogramEntry(load.HistogramEntryFrom(r.frames[index], r.meta.CycleFreqHz))
}

func (r *Reader) pushHistogramEntry(e frame.HistogramEntry) {
	r.histogram = append(r.histogram, e)
	if len(r.histogram) > load.HistogramCapacity {
		r.histogram = r.histogram[1:]
	}
}
