// Package memsnap parses a process's resident-memory map into a
// categorised snapshot of named-anonymous mapping residency.
//
// Grounded on pkg/system/proc/proc.go's ReadProcRSS (bufio.Scanner
// line-by-line /proc parsing, Rss: kB extraction) generalized from a
// single rolled-up total into the per-block categorised walk.
package memsnap

// AnonRegion describes one named-anonymous mapping's address range and
// resident size.
type AnonRegion struct {
	Begin uint64
	End   uint64
	Size  uint64 // bytes
}

// Snapshot is a categorised resident-set breakdown for one process, in
// bytes. The zero value is not a valid snapshot: use Uninitialised to
// distinguish "not yet sampled" from "sampled, all zero".
type Snapshot struct {
	valid bool

	Total         uint64
	JITCode       uint64
	OpDispatcher  uint64
	Frontend      uint64
	CPUBackend    uint64
	Lookup        uint64
	LookupL1      uint64
	ThreadStates  uint64
	BlockLinks    uint64
	Misc          uint64
	Allocator     uint64
	Unaccounted   uint64
	LargestAnon   AnonRegion
}

// Uninitialised is the sentinel snapshot returned before the sampler
// has produced its first successful pass.
var Uninitialised = Snapshot{valid: false}

// Valid reports whether this snapshot was produced by a successful
// sampling pass, as opposed to being the Uninitialised sentinel.
func (s Snapshot) Valid() bool {
	return s.valid
}

// Parts mirrors Snapshot's exported fields for callers outside this
// package (pkg/recording's frame codec) that need to reconstruct a
// valid Snapshot without access to the unexported valid flag.
type Parts struct {
	Total         uint64
	JITCode       uint64
	OpDispatcher  uint64
	Frontend      uint64
	CPUBackend    uint64
	Lookup        uint64
	LookupL1      uint64
	ThreadStates  uint64
	BlockLinks    uint64
	Misc          uint64
	Allocator     uint64
	Unaccounted   uint64
	LargestAnon   AnonRegion
}

// SnapshotFromParts builds a valid Snapshot from its exported fields.
func SnapshotFromParts(p Parts) Snapshot {
	return Snapshot{
		valid:        true,
		Total:        p.Total,
		JITCode:      p.JITCode,
		OpDispatcher: p.OpDispatcher,
		Frontend:     p.Frontend,
		CPUBackend:   p.CPUBackend,
		Lookup:       p.Lookup,
		LookupL1:     p.LookupL1,
		ThreadStates: p.ThreadStates,
		BlockLinks:   p.BlockLinks,
		Misc:         p.Misc,
		Allocator:    p.Allocator,
		Unaccounted:  p.Unaccounted,
		LargestAnon:  p.LargestAnon,
	}
}
