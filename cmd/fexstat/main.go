//go:build linux

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fexstat/fexstat/pkg/export"
	"github.com/fexstat/fexstat/pkg/livesource"
	"github.com/fexstat/fexstat/pkg/recording"
	"github.com/fexstat/fexstat/pkg/source"
	"github.com/fexstat/fexstat/pkg/types"
)

type opts struct {
	pid          int
	interval     time.Duration
	staleTimeout time.Duration

	record string
	replay string
	speed  float64

	csvPath string
	pretty  bool
}

func main() {
	var o opts

	root := &cobra.Command{
		Use:   "fexstat",
		Short: "Real-time profiling observer for FEX-Emu",
		Long: `fexstat attaches to a running FEX-Emu process and reports its JIT load,
thread-level counters and resident-memory breakdown, sampled from the
shared-memory stats region the emulator publishes.

It can also replay a previously recorded session through the same
rendering path, at any of the supported playback speeds.

Examples:
  fexstat --pid 12345 --interval 500ms
  fexstat --pid 12345 --record session.fexrec --csv session.csv
  fexstat --replay session.fexrec --speed 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), o)
		},
	}

	root.Flags().IntVar(&o.pid, "pid", 0, "PID of the FEX-Emu process to attach to")
	root.Flags().DurationVarP(&o.interval, "interval", "i", livesource.DefaultSamplePeriod, "sampling interval (10ms..1s)")
	root.Flags().DurationVar(&o.staleTimeout, "stale-timeout", 0, "eviction timeout for threads that stop reporting (0 = default)")
	root.Flags().StringVar(&o.record, "record", "", "write the sampled session to this recording file")
	root.Flags().StringVar(&o.replay, "replay", "", "replay a previously recorded session instead of attaching live")
	root.Flags().Float64Var(&o.speed, "speed", 1, "replay speed multiplier (0.25, 0.5, 1, 2, 4, 8, 16); ignored when live")
	root.Flags().StringVar(&o.csvPath, "csv", "", "write per-frame rows to this CSV file")
	root.Flags().BoolVar(&o.pretty, "pretty", true, "format stdout output as a table instead of comma-separated lines")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, o opts) error {
	if o.pid == 0 && o.replay == "" {
		return fmt.Errorf("one of --pid or --replay is required")
	}
	if o.pid != 0 && o.replay != "" {
		return fmt.Errorf("--pid and --replay are mutually exclusive")
	}

	var (
		src    source.Source
		writer *recording.Writer
	)

	if o.replay != "" {
		r, err := recording.Open(o.replay)
		if t, ok := asTruncated(err); ok {
			slog.Warn("recording ended without EOF marker; playing back the decoded prefix", "frames", t.FramesRead)
		} else if err != nil {
			return fmt.Errorf("open recording: %w", err)
		}
		src = r
		if pb, ok := src.(source.Playback); ok {
			if err := pb.SetSpeed(o.speed); err != nil {
				return fmt.Errorf("speed: %w", err)
			}
		}
	} else {
		cfg := livesource.Config{SamplePeriod: o.interval, StaleTimeout: o.staleTimeout}

		ls, err := livesource.Attach(o.pid, cfg)
		if err != nil {
			return fmt.Errorf("attach pid %d: %w", o.pid, err)
		}

		if o.record != "" {
			w, err := recording.NewWriter(o.record, ls.Metadata())
			if err != nil {
				ls.Close()
				return fmt.Errorf("open recording %s: %w", o.record, err)
			}
			writer = w
			ls.SetSink(writer)
		}
		src = ls
	}
	defer src.Close()
	if writer != nil {
		defer writer.Finish()
	}

	var csvWriter *export.Writer
	if o.csvPath != "" {
		f, err := os.Create(o.csvPath)
		if err != nil {
			return fmt.Errorf("create csv %s: %w", o.csvPath, err)
		}
		defer f.Close()
		csvWriter, err = export.NewWriter(f)
		if err != nil {
			return fmt.Errorf("csv header: %w", err)
		}
	}

	meta := src.Metadata()
	fmt.Printf("fexstat attached: pid=%d fex_version=%s cycle_freq=%s hardware_threads=%d live=%t\n",
		meta.PID, meta.FEXVersion, types.Hz(meta.CycleFreqHz).Humanized(), meta.HardwareThreads, src.IsLive())

	var tw *tabwriter.Writer
	if o.pretty {
		tw = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		printTableHeader(tw)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// NextFrame is self-pacing on both paths (live: its own sample
	// period; replay: each frame's recorded period divided by speed), so
	// the loop just needs to poll often enough not to add visible jitter
	// on top of that.
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	recordingErrLogged := false

	for {
		select {
		case <-ctx.Done():
			slog.Info("interrupted")
			return nil
		case <-ticker.C:
			fr, ok := src.NextFrame()
			if !ok {
				if !src.IsLive() {
					if pb, isPlayback := src.(source.Playback); isPlayback && pb.Finished() {
						slog.Info("replay finished")
						return nil
					}
				} else if ls, isLive := src.(*livesource.LiveSource); isLive && ls.State() == livesource.StateTargetExited {
					slog.Info("target process exited")
					return nil
				}
				continue
			}

			if o.pretty {
				printTableRow(tw, fr.WallClock, fr.FEXLoadPercent, fr.ThreadsSampled, fr.Totals.JITTime, fr.Mem.Total)
			} else {
				fmt.Printf("%s, %.2f, %d, %d, %d\n",
					fr.WallClock.Format(time.RFC3339), fr.FEXLoadPercent, fr.ThreadsSampled, fr.Totals.JITTime, fr.Mem.Total)
			}

			if csvWriter != nil {
				if err := csvWriter.WriteFrame(fr); err != nil {
					slog.Warn("csv write failed", "err", err)
				}
			}

			if ls, isLive := src.(*livesource.LiveSource); isLive && !recordingErrLogged {
				if err := ls.RecordingError(); err != nil {
					slog.Warn("recording write failed; continuing to sample without recording", "err", err)
					recordingErrLogged = true
				}
			}
		}
	}
}

func printTableHeader(tw *tabwriter.Writer) {
	fmt.Fprintln(tw, "TIME\tFEX_LOAD%\tTHREADS\tJIT_TIME\tMEM_TOTAL")
	fmt.Fprintln(tw, "----\t---------\t-------\t--------\t---------")
	tw.Flush()
}

func printTableRow(tw *tabwriter.Writer, ts time.Time, loadPct float64, threads int, jitTime, memTotal uint64) {
	fmt.Fprintf(tw, "%s\t%.2f\t%d\t%d\t%s\n",
		ts.Format("2006-01-02 15:04:05"), loadPct, threads, jitTime, types.Bytes(memTotal).Humanized())
	tw.Flush()
}

func asTruncated(err error) (*recording.Truncated, bool) {
	if err == nil {
		return nil, false
	}
	te, ok := err.(*recording.Truncated)
	return te, ok
}
