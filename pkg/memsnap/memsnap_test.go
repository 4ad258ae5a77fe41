//go:build linux

package memsnap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMap = `7f0000000000-7f0000010000 rw-p 00000000 00:00 0  [anon:FEXMemJIT]
Size:                 64 kB
Rss:                  48 kB
7f0000010000-7f0000020000 rw-p 00000000 00:00 0  [anon:FEXMem_OpDispatcher]
Rss:                  16 kB
7f0000020000-7f0000030000 rw-p 00000000 00:00 0  [anon:FEXMem_Lookup_L1]
Rss:                  32 kB
7f0000030000-7f0000040000 rw-p 00000000 00:00 0  [anon:FEXMem_Lookup]
Rss:                  8 kB
7f0000040000-7f0000050000 rw-p 00000000 00:00 0  [anon:FEXMem_Weird]
Rss:                  4 kB
7f0000050000-7f0000060000 rw-p 00000000 00:00 0  [anon:JEMalloc-arena-0]
Rss:                  100 kB
7f0000060000-7f0000070000 rw-p 00000000 00:00 0  [anon:JEMalloc-arena-1]
Rss:                  200 kB
7f0000070000-7f0000080000 r--p 00000000 08:01 1234567  /usr/lib/libc.so.6
Rss:                  12 kB
`

func TestParseOnePass_Categorization(t *testing.T) {
	snap, ok := parseOnePass(strings.NewReader(sampleMap))
	require.True(t, ok)

	assert.Equal(t, uint64(48*1024), snap.JITCode)
	assert.Equal(t, uint64(16*1024), snap.OpDispatcher)
	assert.Equal(t, uint64(32*1024), snap.LookupL1)
	assert.Equal(t, uint64(8*1024), snap.Lookup)
	assert.Equal(t, uint64(4*1024), snap.Unaccounted, "FEXMem_Weird matches no specific tag")
	assert.Equal(t, uint64(300*1024), snap.Allocator, "both JEMalloc arenas sum")
	assert.Equal(t, uint64(200*1024), snap.LargestAnon.Size, "the larger arena wins largest_anon")

	// libc.so.6 matches no recognised tag and contributes nothing.
	wantTotal := uint64(48+16+32+8+4+100+200) * 1024
	assert.Equal(t, wantTotal, snap.Total)
	assert.True(t, snap.Valid())
}

func TestParseOnePass_ZeroBytesDiscarded(t *testing.T) {
	const noise = `7f0000000000-7f0000010000 r--p 00000000 08:01 1 /usr/lib/libc.so.6
Rss:                  0 kB
`
	_, ok := parseOnePass(strings.NewReader(noise))
	assert.False(t, ok, "a pass with zero categorised bytes is discarded")
}

func TestClassify_LookupL1BeforeLookupPrefix(t *testing.T) {
	// "FEXMem_Lookup" is a prefix of "FEXMem_Lookup_L1"; the L1 rule
	// must be tried first or every L1 block would be misclassified.
	assert.Equal(t, categoryLookupL1, classify("FEXMem_Lookup_L1"))
	assert.Equal(t, categoryLookup, classify("FEXMem_Lookup"))
}

func TestClassify_Unrecognised(t *testing.T) {
	assert.Equal(t, categoryNone, classify("heap"))
	assert.Equal(t, categoryNone, classify(""))
}

func TestUninitialisedSentinel(t *testing.T) {
	assert.False(t, Uninitialised.Valid())
	var zero Snapshot
	assert.False(t, zero.Valid())
}

func TestSampler_DiscardedPassKeepsLastGood(t *testing.T) {
	f, err := newTempMapFile(t, sampleMap)
	require.NoError(t, err)
	defer f.Close()

	s := &Sampler{f: f}
	u := Uninitialised
	s.latest.Store(&u)

	s.samplePass()
	first := s.Latest()
	require.True(t, first.Valid())
	assert.Equal(t, uint64(48*1024), first.JITCode)

	// Truncate to simulate a transient empty read on the next pass.
	require.NoError(t, f.Truncate(0))
	s.samplePass()

	second := s.Latest()
	assert.Equal(t, first, second, "zero-byte pass must not overwrite the last good snapshot")
}
