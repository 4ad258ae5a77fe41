package recording

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/fexstat/fexstat/pkg/frame"
	"github.com/fexstat/fexstat/pkg/session"
)

// Writer persists one session's frame stream to disk (C7, spec.md
// §4.7). It satisfies livesource.Sink structurally.
type Writer struct {
	f  *os.File
	bw *bufio.Writer
	zw *zstd.Encoder

	finished bool
}

// NewWriter creates path, writes the uncompressed MAGIC+FORMAT_VERSION
// header, opens the zstd stream at SpeedDefault (spec.md §4.7 "roughly
// zstd level 3"), and writes the session metadata as the stream's first
// record.
func NewWriter(path string, meta session.Metadata) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recording: create %s: %w", path, err)
	}

	bw := bufio.NewWriter(f)
	if _, err := bw.WriteString(Magic); err != nil {
		f.Close()
		return nil, err
	}
	if err := bw.WriteByte(FormatVersion); err != nil {
		f.Close()
		return nil, err
	}

	zw, err := zstd.NewWriter(bw, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("recording: new zstd writer: %w", err)
	}

	if err := writeMetadata(zw, meta); err != nil {
		zw.Close()
		f.Close()
		return nil, fmt.Errorf("recording: write metadata: %w", err)
	}

	return &Writer{f: f, bw: bw, zw: zw}, nil
}

// WriteFrame appends one length-prefixed encoded frame to the stream.
func (w *Writer) WriteFrame(fr frame.ComputedFrame) error {
	if w.finished {
		return fmt.Errorf("recording: write after Finish/Close")
	}
	b := encodeFrame(fr)

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.zw.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.zw.Write(b)
	return err
}

// Finish writes the EOFMarker, closes the zstd encoder cleanly, flushes
// the underlying file buffer and closes the file. This is the "session
// ends normally" path (spec.md §4.7, §8 S5).
func (w *Writer) Finish() error {
	if w.finished {
		return nil
	}
	w.finished = true

	if _, err := w.zw.Write([]byte(EOFMarker)); err != nil {
		w.zw.Close()
		w.f.Close()
		return err
	}
	if err := w.zw.Close(); err != nil {
		w.f.Close()
		return err
	}
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// Close flushes whatever has been written without appending the
// EOFMarker, modelling an abrupt drop (process killed, disk full) that
// still leaves a usable, truncated recording behind (spec.md §7, §8
// S6). zw.Flush pushes buffered frame bytes into a valid zstd block
// without finalising the frame the way Close would.
func (w *Writer) Close() error {
	if w.finished {
		return nil
	}
	w.finished = true

	_ = w.zw.Flush()
	_ = w.bw.Flush()
	return w.f.Close()
}
