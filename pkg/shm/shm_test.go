//go:build linux

package shm

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putHeader(buf []byte, version, appType uint8, fexVersion string, head, size uint32) {
	buf[offVersion] = version
	buf[offAppType] = appType
	copy(buf[offFEXVersion:], fexVersion)
	binary.LittleEndian.PutUint32(buf[offHead:], head)
	binary.LittleEndian.PutUint32(buf[offSize:], size)
}

func putRecord(buf []byte, recOffset int, next, tid uint32, jitTime uint64) {
	rec := buf[recOffset : recOffset+RecordSize]
	binary.LittleEndian.PutUint32(rec[recOffNext:], next)
	binary.LittleEndian.PutUint32(rec[recOffTID:], tid)
	binary.LittleEndian.PutUint64(rec[recOffJITTime:], jitTime)
}

func TestReadHeader_FullRegion(t *testing.T) {
	buf := make([]byte, HeaderSize+RecordSize)
	putHeader(buf, 1, uint8(AppLinux64), "FEX-2410", uint32(HeaderSize), uint32(len(buf)))

	r := &Region{data: buf}
	h := r.ReadHeader()

	assert.Equal(t, ExpectedVersion, h.Version)
	assert.Equal(t, AppLinux64, h.AppType)
	assert.Equal(t, "FEX-2410", h.FEXVersion)
	assert.Equal(t, uint32(HeaderSize), h.Head)
	assert.Equal(t, uint32(len(buf)), h.Size)
}

func TestReadHeader_ShortRegion_FieldsZeroed(t *testing.T) {
	// Only big enough for MinRegionSize, well short of the full header.
	buf := make([]byte, MinRegionSize)
	buf[offVersion] = 1
	buf[offAppType] = uint8(AppLinux32)

	r := &Region{data: buf}
	h := r.ReadHeader()

	assert.Equal(t, ExpectedVersion, h.Version)
	assert.Equal(t, AppLinux32, h.AppType)
	// Beyond the mapped bytes: zero values, not a panic or an error.
	assert.Equal(t, "", h.FEXVersion)
	assert.Equal(t, uint32(0), h.Head)
	assert.Equal(t, uint32(0), h.Size)
}

func TestWalk_SingleRecord(t *testing.T) {
	buf := make([]byte, HeaderSize+RecordSize)
	putHeader(buf, 1, uint8(AppLinux64), "FEX-test", uint32(HeaderSize), uint32(len(buf)))
	putRecord(buf, HeaderSize, 0, 42, 12345)

	r := &Region{data: buf}
	recs, err := r.Walk(HeaderSize, RecordSize)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, uint32(42), recs[0].TID)
	assert.Equal(t, uint64(12345), recs[0].JITTime)
}

func TestWalk_EmptyList(t *testing.T) {
	buf := make([]byte, HeaderSize)
	r := &Region{data: buf}
	recs, err := r.Walk(0, RecordSize)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestWalk_FollowsChain(t *testing.T) {
	const n = 3
	buf := make([]byte, HeaderSize+n*RecordSize)
	putHeader(buf, 1, uint8(AppLinux64), "FEX-test", uint32(HeaderSize), uint32(len(buf)))

	offs := []uint32{HeaderSize, HeaderSize + RecordSize, HeaderSize + 2*RecordSize}
	for i, off := range offs {
		next := uint32(0)
		if i+1 < n {
			next = offs[i+1]
		}
		putRecord(buf, int(off), next, uint32(100+i), uint64(i)*10)
	}

	r := &Region{data: buf}
	recs, err := r.Walk(offs[0], RecordSize)
	require.NoError(t, err)
	require.Len(t, recs, n)
	for i, rec := range recs {
		assert.Equal(t, uint32(100+i), rec.TID)
	}
}

func TestWalk_TruncatedOffsetStopsCleanly(t *testing.T) {
	buf := make([]byte, HeaderSize+RecordSize)
	putHeader(buf, 1, uint8(AppLinux64), "FEX-test", uint32(HeaderSize), uint32(len(buf)))
	// next points off the end of the mapped region.
	putRecord(buf, HeaderSize, uint32(len(buf)+RecordSize), 7, 1)

	r := &Region{data: buf}
	recs, err := r.Walk(HeaderSize, RecordSize)
	require.ErrorIs(t, err, ErrTruncated)
	require.Len(t, recs, 1, "the one valid record before the fault is still returned")
	assert.Equal(t, uint32(7), recs[0].TID)
}

func TestWalk_SelfLoopTerminates(t *testing.T) {
	buf := make([]byte, HeaderSize+RecordSize)
	putHeader(buf, 1, uint8(AppLinux64), "FEX-test", uint32(HeaderSize), uint32(len(buf)))
	putRecord(buf, HeaderSize, HeaderSize, 9, 1)

	r := &Region{data: buf}
	recs, err := r.Walk(HeaderSize, RecordSize)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestWalk_NarrowerProducerRecord_TruncatesForwardCompatibly(t *testing.T) {
	// A producer built against an older FEX publishes a ThreadStats
	// record narrower than this reader's RecordSize: next(4) + tid(4) +
	// jit_time(8) + signal_time(8) = 24 bytes, nothing past that.
	const narrowWidth = 24

	buf := make([]byte, HeaderSize+2*narrowWidth)
	putHeader(buf, 1, uint8(AppLinux64), "FEX-old", uint32(HeaderSize), uint32(len(buf)))

	off0 := uint32(HeaderSize)
	off1 := off0 + narrowWidth

	rec0 := buf[off0 : off0+narrowWidth]
	binary.LittleEndian.PutUint32(rec0[recOffNext:], off1)
	binary.LittleEndian.PutUint32(rec0[recOffTID:], 11)
	binary.LittleEndian.PutUint64(rec0[recOffJITTime:], 999)
	binary.LittleEndian.PutUint64(rec0[recOffSignalTime:], 5)

	rec1 := buf[off1 : off1+narrowWidth]
	binary.LittleEndian.PutUint32(rec1[recOffNext:], 0)
	binary.LittleEndian.PutUint32(rec1[recOffTID:], 22)
	binary.LittleEndian.PutUint64(rec1[recOffJITTime:], 7)
	binary.LittleEndian.PutUint64(rec1[recOffSignalTime:], 0)

	r := &Region{data: buf}
	recs, err := r.Walk(off0, narrowWidth)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, uint32(11), recs[0].TID)
	assert.Equal(t, uint64(999), recs[0].JITTime)
	assert.Equal(t, uint64(5), recs[0].SignalTime)
	// Fields beyond the narrow record's width read as zero, never as
	// bytes belonging to the next record.
	assert.Equal(t, uint64(0), recs[0].SigbusCount)

	assert.Equal(t, uint32(22), recs[1].TID)
	assert.Equal(t, uint64(7), recs[1].JITTime)
}

func TestRegionName(t *testing.T) {
	assert.Equal(t, "fex-1234-stats", regionName(1234))
	assert.Equal(t, "/dev/shm/fex-1234-stats", regionPath(1234))
}
