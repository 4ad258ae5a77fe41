//go:build linux

package shm

import (
	"bytes"
	"encoding/binary"
)

// Header field byte offsets within the mapped region (spec.md §3
// "StatsHeader"). Kept package-private: callers only ever see the
// decoded Header value from ReadHeader.
const (
	offVersion         = 0
	offAppType         = 1
	offThreadStatsSize = 2
	offFEXVersion      = 4
	offHead            = offFEXVersion + fexVersionSize // 52
	offSize            = offHead + 4                    // 56
)

// ThreadStats record field byte offsets, relative to the start of each
// record (spec.md §3 "ThreadStats record").
const (
	recOffNext               = 0
	recOffTID                = 4
	recOffJITTime            = 8
	recOffSignalTime         = 16
	recOffSigbusCount        = 24
	recOffSMCCount           = 32
	recOffFloatFallbackCount = 40
	recOffCacheMissCount     = 48
	recOffCacheReadLockTime  = 56
	recOffCacheWriteLockTime = 64
	recOffJITCount           = 72
)

// ReadHeader decodes the StatsHeader at the start of the mapping. Per
// spec.md §4.1 it never fails on a short mapping: any field whose bytes
// fall beyond the mapped length reads as its zero value, and only
// Version is meaningfully checked by Open. Byte fields (version,
// app_type) and the fixed string are read with a plain copy since the
// producer writes them once before publishing the region; the fields
// that are updated on every sample (head, size) go through atomic
// loads.
func (r *Region) ReadHeader() Header {
	buf := r.data
	var h Header

	if len(buf) > offVersion {
		h.Version = buf[offVersion]
	}
	if len(buf) > offAppType {
		h.AppType = AppType(buf[offAppType])
	}
	if len(buf) >= offThreadStatsSize+2 {
		h.ThreadStatsSize = binary.LittleEndian.Uint16(buf[offThreadStatsSize:])
	}
	if len(buf) >= offFEXVersion+fexVersionSize {
		raw := buf[offFEXVersion : offFEXVersion+fexVersionSize]
		if nul := bytes.IndexByte(raw, 0); nul >= 0 {
			h.FEXVersion = string(raw[:nul])
		} else {
			h.FEXVersion = string(raw)
		}
	}
	if len(buf) >= offHead+4 {
		h.Head = loadU32(buf, offHead)
	}
	if len(buf) >= offSize+4 {
		h.Size = loadU32(buf, offSize)
	}

	return h
}

// Walk follows the producer's singly linked thread-record list starting
// at headOffset, copying each ThreadStats out of the mapping as it
// goes. threadStatsSize is the producer's declared record width (Header
// .ThreadStatsSize); each record is read across min(threadStatsSize,
// RecordSize) bytes before being decoded, so a producer publishing a
// narrower record (an older or differently built FEX) is truncated
// forward-compatibly instead of bleeding into the next record's bytes,
// and a wider future record is simply read up to what this reader
// understands (spec.md §3, §4.1). An offset that runs off the end of
// the mapped region stops the walk and returns ErrTruncated alongside
// whatever records were collected before the fault; per spec.md
// §4.1/§7/§8 this is never fatal to the caller.
func (r *Region) Walk(headOffset uint32, threadStatsSize uint16) ([]ThreadStats, error) {
	buf := r.data
	var out []ThreadStats

	width := int(threadStatsSize)
	if width <= 0 || width > RecordSize {
		width = RecordSize
	}

	// Guard against a self-referential or looping list: cap the walk at
	// the maximum number of records the mapped region could possibly
	// hold.
	maxRecords := len(buf) / width
	if maxRecords == 0 {
		maxRecords = 1
	}

	offset := headOffset
	for i := 0; ; i++ {
		start := int(offset)
		end := start + width
		if offset == 0 || start < 0 || end > len(buf) {
			if offset != 0 {
				return out, ErrTruncated
			}
			break
		}
		if i == maxRecords {
			break
		}

		rec := buf[start:end]
		ts := decodeThreadStats(rec)
		out = append(out, ts)

		if ts.Next == offset {
			// Defensive: a self-loop would otherwise spin until
			// maxRecords. Treat it like end-of-list.
			break
		}
		offset = ts.Next
	}

	return out, nil
}

// decodeThreadStats decodes the fields this reader understands out of a
// record slice that may be narrower than RecordSize (a truncated,
// backward-compatible producer record). Any field whose offset falls
// beyond len(rec) reads as its zero value rather than panicking.
func decodeThreadStats(rec []byte) ThreadStats {
	var ts ThreadStats
	if len(rec) >= recOffNext+4 {
		ts.Next = loadU32(rec, recOffNext)
	}
	if len(rec) >= recOffTID+4 {
		ts.TID = loadU32(rec, recOffTID)
	}
	if len(rec) >= recOffJITTime+8 {
		ts.JITTime = loadU64(rec, recOffJITTime)
	}
	if len(rec) >= recOffSignalTime+8 {
		ts.SignalTime = loadU64(rec, recOffSignalTime)
	}
	if len(rec) >= recOffSigbusCount+8 {
		ts.SigbusCount = loadU64(rec, recOffSigbusCount)
	}
	if len(rec) >= recOffSMCCount+8 {
		ts.SMCCount = loadU64(rec, recOffSMCCount)
	}
	if len(rec) >= recOffFloatFallbackCount+8 {
		ts.FloatFallbackCount = loadU64(rec, recOffFloatFallbackCount)
	}
	if len(rec) >= recOffCacheMissCount+8 {
		ts.CacheMissCount = loadU64(rec, recOffCacheMissCount)
	}
	if len(rec) >= recOffCacheReadLockTime+8 {
		ts.CacheReadLockTime = loadU64(rec, recOffCacheReadLockTime)
	}
	if len(rec) >= recOffCacheWriteLockTime+8 {
		ts.CacheWriteLockTime = loadU64(rec, recOffCacheWriteLockTime)
	}
	if len(rec) >= recOffJITCount+8 {
		ts.JITCount = loadU64(rec, recOffJITCount)
	}
	return ts
}
