package recording

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fexstat/fexstat/pkg/frame"
	"github.com/fexstat/fexstat/pkg/memsnap"
	"github.com/fexstat/fexstat/pkg/session"
	"github.com/fexstat/fexstat/pkg/shm"
	"github.com/fexstat/fexstat/pkg/threadstats"
)

func sampleMeta() session.Metadata {
	return session.Metadata{
		PID:              4242,
		FEXVersion:       "FEX-2026.08.01",
		AppType:          shm.AppLinux64,
		StatsVersion:     shm.ExpectedVersion,
		CycleFreqHz:      1_000_000_000,
		HardwareThreads:  8,
		RecordingStartAt: time.Unix(1_700_000_000, 0).UTC(),
	}
}

// sampleFrame builds a frame with a zero SamplePeriod, so tests that
// only care about decode/seek/speed-validation correctness can drain
// NextFrame back-to-back without waiting on playback pacing. Tests of
// the pacing behavior itself use sampleFrameWithPeriod.
func sampleFrame(n int) frame.ComputedFrame {
	return sampleFrameWithPeriod(n, 0)
}

func sampleFrameWithPeriod(n int, period time.Duration) frame.ComputedFrame {
	return frame.ComputedFrame{
		WallClock:      time.Unix(1_700_000_000+int64(n), 0).UTC(),
		SamplePeriod:   period,
		ThreadsSampled: 1,
		Totals:         frame.Totals{JITTime: uint64(n) * 1_000_000},
		FEXLoadPercent: float64(n),
		ThreadLoads: []frame.ThreadLoad{
			{TID: 7, LoadPercent: float64(n), TotalCycles: uint64(n) * 1_000_000},
		},
		Mem: memsnap.SnapshotFromParts(memsnap.Parts{Total: uint64(n) * 4096}),
		PerThreadDeltas: []threadstats.Delta{
			{TID: 7, JITTime: uint64(n) * 1_000_000},
		},
	}
}

// TestRecording_RoundTrip covers S5: a cleanly finished recording
// decodes back to the exact frame sequence and metadata written.
func TestRecording_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.fexrec")
	meta := sampleMeta()

	w, err := NewWriter(path, meta)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, w.WriteFrame(sampleFrame(i)))
	}
	require.NoError(t, w.Finish())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, meta.PID, r.Metadata().PID)
	assert.Equal(t, meta.FEXVersion, r.Metadata().FEXVersion)
	assert.False(t, r.IsLive())
	assert.Len(t, r.frames, 5)

	for i := 0; i < 5; i++ {
		fr, ok := r.NextFrame()
		require.True(t, ok)
		assert.Equal(t, uint64(i)*1_000_000, fr.Totals.JITTime)
	}
	assert.True(t, r.Finished())
	_, ok := r.NextFrame()
	assert.False(t, ok)
}

// TestRecording_Truncated covers S6: a recording dropped mid-session
// (Close instead of Finish) still yields every frame written before the
// drop, flagged via the Truncated error.
func TestRecording_Truncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dropped.fexrec")
	meta := sampleMeta()

	w, err := NewWriter(path, meta)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.WriteFrame(sampleFrame(i)))
	}
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.Error(t, err)
	var trunc *Truncated
	require.ErrorAs(t, err, &trunc)
	assert.Equal(t, 3, trunc.FramesRead)
	require.NotNil(t, r)
	assert.Len(t, r.frames, 3)
}

func TestRecording_BadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.fexrec")
	require.NoError(t, os.WriteFile(path, []byte("not a recording"), 0o644))

	_, err := Open(path)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestReader_SeekRebuildsHistogram(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seek.fexrec")
	w, err := NewWriter(path, sampleMeta())
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, w.WriteFrame(sampleFrame(i)))
	}
	require.NoError(t, w.Finish())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	fr, ok := r.Seek(3)
	require.True(t, ok)
	assert.Equal(t, uint64(3_000_000), fr.Totals.JITTime)
	assert.Len(t, r.Histogram(), 3, "frames 1..3 each contribute one entry, frame 0 contributes none")

	_, ok = r.Seek(99)
	assert.False(t, ok, "out of range seek leaves state untouched")
}

func TestReader_SetSpeedValidatesAgainstValidSpeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speed.fexrec")
	w, err := NewWriter(path, sampleMeta())
	require.NoError(t, err)
	require.NoError(t, w.WriteFrame(sampleFrame(0)))
	require.NoError(t, w.Finish())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.SetSpeed(4))
	assert.Equal(t, 4.0, r.Speed())

	err = r.SetSpeed(3)
	assert.ErrorIs(t, err, ErrInvalidSpeed)
	assert.Equal(t, 4.0, r.Speed(), "rejected SetSpeed leaves prior speed unchanged")
}

// TestReader_NextFrame_GatedBySamplePeriodAndSpeed covers S5: each
// frame's own recorded period, divided by the playback speed, governs
// when NextFrame is willing to advance.
func TestReader_NextFrame_GatedBySamplePeriodAndSpeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paced.fexrec")
	w, err := NewWriter(path, sampleMeta())
	require.NoError(t, err)
	const period = 40 * time.Millisecond
	for i := 0; i < 3; i++ {
		require.NoError(t, w.WriteFrame(sampleFrameWithPeriod(i, period)))
	}
	require.NoError(t, w.Finish())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.SetSpeed(2))

	fr, ok := r.NextFrame()
	require.True(t, ok, "the first frame is always due immediately")
	assert.Equal(t, uint64(0), fr.Totals.JITTime)

	_, ok = r.NextFrame()
	assert.False(t, ok, "second frame is not due yet at speed 2 (period/speed = 20ms)")

	time.Sleep(period/2 + 10*time.Millisecond)

	fr, ok = r.NextFrame()
	require.True(t, ok, "second frame becomes due after period/speed has elapsed")
	assert.Equal(t, uint64(1_000_000), fr.Totals.JITTime)
}

func TestReader_PauseStopsNextFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pause.fexrec")
	w, err := NewWriter(path, sampleMeta())
	require.NoError(t, err)
	require.NoError(t, w.WriteFrame(sampleFrame(0)))
	require.NoError(t, w.WriteFrame(sampleFrame(1)))
	require.NoError(t, w.Finish())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	r.Pause()
	_, ok := r.NextFrame()
	assert.False(t, ok)

	r.Resume()
	_, ok = r.NextFrame()
	assert.True(t, ok)
}
