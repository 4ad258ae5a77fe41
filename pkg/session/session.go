// Package session carries the identifying metadata for one observed
// process: the values that stay constant for the lifetime of a live
// sampling session or a recording, as opposed to the per-sample data in
// pkg/load and pkg/recording.
package session

import (
	"time"

	"github.com/fexstat/fexstat/pkg/shm"
)

// AppType identifies the guest/host application mode the emulator
// reports in its stats header. It is an alias for shm.AppType: the shm
// reader is the sole producer of this value, session just carries it
// alongside the rest of the attach-time facts.
type AppType = shm.AppType

const (
	AppLinux32    = shm.AppLinux32
	AppLinux64    = shm.AppLinux64
	AppWinArm64EC = shm.AppWinArm64EC
	AppWinWow64   = shm.AppWinWow64
)

// Metadata describes the session-wide facts gathered once at attach
// time (spec.md §3 "SessionMetadata").
type Metadata struct {
	PID              int
	FEXVersion       string
	AppType          AppType
	StatsVersion     uint8
	CycleFreqHz      float64
	HardwareThreads  int
	RecordingStartAt time.Time
}
