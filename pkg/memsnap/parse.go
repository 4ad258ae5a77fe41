package memsnap

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// blockName extracts the mapping name from a memory-map header line's
// trailing pathname field, unwrapping the kernel's "[anon:NAME]" named-
// anonymous-mapping notation if present.
func blockName(fields []string) string {
	if len(fields) < 6 {
		return ""
	}
	name := strings.Join(fields[5:], " ")
	if strings.HasPrefix(name, "[anon:") && strings.HasSuffix(name, "]") {
		return strings.TrimSuffix(strings.TrimPrefix(name, "[anon:"), "]")
	}
	return strings.Trim(name, "[]")
}

// parseAddrRange parses "begin-end" hex into a pair of uint64s. Returns
// ok=false if the field isn't of that shape, which the caller uses to
// tell a mapping-header line apart from a "Key: value" line.
func parseAddrRange(field string) (begin, end uint64, ok bool) {
	i := strings.IndexByte(field, '-')
	if i <= 0 {
		return 0, 0, false
	}
	b, err1 := strconv.ParseUint(field[:i], 16, 64)
	e, err2 := strconv.ParseUint(field[i+1:], 16, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return b, e, true
}

// rssKB parses a "Rss:       128 kB" line and returns the value in kB.
func rssKB(line string) (uint64, bool) {
	fields := strings.Fields(strings.TrimPrefix(line, "Rss:"))
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// block accumulates the fields of one mapping block while it is being
// scanned.
type block struct {
	begin, end uint64
	name       string
	rssBytes   uint64
}

// parseOnePass reads one full resident-memory map from r and returns
// the categorised snapshot. The bool return is false when the map
// yielded zero total categorised bytes — per spec.md §4.2 such a pass
// is discarded by the caller rather than treated as a real empty
// result.
func parseOnePass(r io.Reader) (Snapshot, bool) {
	var snap Snapshot
	snap.valid = true

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var cur *block
	flush := func() {
		if cur == nil {
			return
		}
		addCategorized(&snap, cur)
		cur = nil
	}

	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if begin, end, ok := parseAddrRange(fields[0]); ok {
			flush()
			cur = &block{begin: begin, end: end, name: blockName(fields)}
			continue
		}

		if strings.HasPrefix(line, "Rss:") && cur != nil {
			if kb, ok := rssKB(line); ok {
				cur.rssBytes += kb * 1024
			}
		}
	}
	flush()

	return snap, snap.Total > 0
}

// addCategorized folds one finished block into the running snapshot
// totals, per the tag table in spec.md §4.2.
func addCategorized(snap *Snapshot, b *block) {
	cat := classify(b.name)
	if cat == categoryNone {
		return
	}

	snap.Total += b.rssBytes

	switch cat {
	case categoryJITCode:
		snap.JITCode += b.rssBytes
	case categoryOpDispatcher:
		snap.OpDispatcher += b.rssBytes
	case categoryFrontend:
		snap.Frontend += b.rssBytes
	case categoryCPUBackend:
		snap.CPUBackend += b.rssBytes
	case categoryLookupL1:
		snap.LookupL1 += b.rssBytes
	case categoryLookup:
		snap.Lookup += b.rssBytes
	case categoryThreadStates:
		snap.ThreadStates += b.rssBytes
	case categoryBlockLinks:
		snap.BlockLinks += b.rssBytes
	case categoryMisc:
		snap.Misc += b.rssBytes
	case categoryUnaccounted:
		snap.Unaccounted += b.rssBytes
	case categoryAllocator:
		snap.Allocator += b.rssBytes
		if b.rssBytes > snap.LargestAnon.Size {
			snap.LargestAnon = AnonRegion{Begin: b.begin, End: b.end, Size: b.rssBytes}
		}
	}
}
