// Package export writes a frame stream to the pinned CSV schema spec.md
// §6 defines for downstream tooling.
//
// Grounded directly on cmd/consumption/main.go's csv.NewWriter/Write
// per-tick loop (header row written once, one row written and flushed
// per sample); the column list itself is not the teacher's, it is the
// schema spec.md §6 pins.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/fexstat/fexstat/pkg/frame"
)

// TopNThreads bounds how many per-thread load columns a row carries.
// Frames with more thread loads than this are truncated to the first
// TopNThreads entries, which pkg/load has already sorted descending.
const TopNThreads = 8

// Header returns the fixed column list spec.md §6 pins, plus the
// flattened thread_i_load/thread_i_cycles columns for TopNThreads
// threads.
func Header() []string {
	h := []string{
		"timestamp_ms", "sample_period_ms", "threads_sampled", "fex_load_percent",
		"total_jit_time", "total_signal_time", "total_sigbus_count", "total_smc_count",
		"total_float_fallback_count", "total_cache_miss_count",
		"total_cache_read_lock_time", "total_cache_write_lock_time",
		"total_jit_count", "total_jit_invocations",
		"mem_total_anon", "mem_jit_code", "mem_op_dispatcher", "mem_frontend",
		"mem_cpu_backend", "mem_lookup", "mem_lookup_l1", "mem_thread_states",
		"mem_block_links", "mem_misc", "mem_allocator", "mem_unaccounted",
	}
	for i := 0; i < TopNThreads; i++ {
		h = append(h, fmt.Sprintf("thread_%d_load", i), fmt.Sprintf("thread_%d_cycles", i))
	}
	return h
}

// Row flattens one ComputedFrame into the pinned column order. Missing
// thread-load slots (fewer sampled threads than TopNThreads) are
// emitted as empty cells rather than zeros, matching the teacher's
// CSV-row-is-best-effort style of leaving absent data blank.
func Row(f frame.ComputedFrame) []string {
	r := []string{
		strconv.FormatInt(f.WallClock.UnixMilli(), 10),
		strconv.FormatInt(f.SamplePeriod.Milliseconds(), 10),
		strconv.Itoa(f.ThreadsSampled),
		strconv.FormatFloat(f.FEXLoadPercent, 'f', -1, 64),
		strconv.FormatUint(f.Totals.JITTime, 10),
		strconv.FormatUint(f.Totals.SignalTime, 10),
		strconv.FormatUint(f.Totals.SigbusCount, 10),
		strconv.FormatUint(f.Totals.SMCCount, 10),
		strconv.FormatUint(f.Totals.FloatFallbackCount, 10),
		strconv.FormatUint(f.Totals.CacheMissCount, 10),
		strconv.FormatUint(f.Totals.CacheReadLockTime, 10),
		strconv.FormatUint(f.Totals.CacheWriteLockTime, 10),
		strconv.FormatUint(f.Totals.JITCount, 10),
		strconv.FormatUint(f.Totals.JITCount, 10), // total_jit_invocations mirrors jit_count, see SPEC_FULL.md Open Question Decision 5
		strconv.FormatUint(f.Mem.Total, 10),
		strconv.FormatUint(f.Mem.JITCode, 10),
		strconv.FormatUint(f.Mem.OpDispatcher, 10),
		strconv.FormatUint(f.Mem.Frontend, 10),
		strconv.FormatUint(f.Mem.CPUBackend, 10),
		strconv.FormatUint(f.Mem.Lookup, 10),
		strconv.FormatUint(f.Mem.LookupL1, 10),
		strconv.FormatUint(f.Mem.ThreadStates, 10),
		strconv.FormatUint(f.Mem.BlockLinks, 10),
		strconv.FormatUint(f.Mem.Misc, 10),
		strconv.FormatUint(f.Mem.Allocator, 10),
		strconv.FormatUint(f.Mem.Unaccounted, 10),
	}

	for i := 0; i < TopNThreads; i++ {
		if i < len(f.ThreadLoads) {
			tl := f.ThreadLoads[i]
			r = append(r, strconv.FormatFloat(tl.LoadPercent, 'f', -1, 64), strconv.FormatUint(tl.TotalCycles, 10))
		} else {
			r = append(r, "", "")
		}
	}
	return r
}

// Writer streams Row output through encoding/csv, flushing after every
// row so a CSV file is tail-able while the session is still running,
// matching the teacher's csvW.Flush()-per-row idiom.
type Writer struct {
	csv *csv.Writer
}

// NewWriter writes the header row to w and returns a Writer ready for
// WriteFrame calls.
func NewWriter(w io.Writer) (*Writer, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return nil, fmt.Errorf("export: write header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return &Writer{csv: cw}, nil
}

// WriteFrame appends one row and flushes it.
func (w *Writer) WriteFrame(f frame.ComputedFrame) error {
	if err := w.csv.Write(Row(f)); err != nil {
		return err
	}
	w.csv.Flush()
	return w.csv.Error()
}
