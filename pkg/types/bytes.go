package types

import "fmt"

// Bytes is a uint64 wrapper representing a size in bytes.
type Bytes uint64

// Humanized returns a human-readable string with automatic unit (B, KB, MB, GB, TB).
func (b Bytes) Humanized() string {
	const unit = 1024
	v := float64(b)
	switch {
	case b >= 1<<40:
		return fmt.Sprintf("%.2f TB", v/(1<<40))
	case b >= 1<<30:
		return fmt.Sprintf("%.2f GB", v/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.2f MB", v/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.2f KB", v/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// KB returns the number of kilobytes (1024 base).
func (b Bytes) KB() float64 { return float64(b) / 1024 }

// MB returns the number of megabytes (1024 base).
func (b Bytes) MB() float64 { return float64(b) / (1024 * 1024) }

// GB returns the number of gigabytes (1024 base).
func (b Bytes) GB() float64 { return float64(b) / (1024 * 1024 * 1024) }

// ToUint64 returns the underlying value as a uint64.
func (b Bytes) ToUint64() uint64 { return uint64(b) }

// ToBytes wraps a raw byte count.
func ToBytes(v uint64) Bytes { return Bytes(v) }

// Ticks is a uint64 wrapper representing a count of cycle-counter ticks.
// All time-valued counters the emulator publishes (spec.md §3) are in
// this unit; converting to wall time requires the session's cycle
// frequency (see pkg/session).
type Ticks uint64

// Seconds converts a tick count to seconds given a counter frequency in Hz.
func (t Ticks) Seconds(freqHz float64) float64 {
	if freqHz <= 0 {
		return 0
	}
	return float64(t) / freqHz
}

// Hz is a frequency in Hertz, formatted for display.
type Hz float64

// Humanized returns a human-readable string with automatic unit (Hz, kHz, MHz, GHz).
func (h Hz) Humanized() string {
	v := float64(h)
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.2f GHz", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2f MHz", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.2f kHz", v/1e3)
	default:
		return fmt.Sprintf("%.0f Hz", v)
	}
}
