//go:build linux && !arm64

package livesource

// readCycleFreqHz is stubbed to 1 off ARM64 (spec.md §6): there is no
// portable architectural register to read the cycle-counter frequency
// from, and this system only ever runs against an ARM64 host in
// production. Numeric load outputs are not meaningful on this path;
// it exists so the rest of the pipeline still builds and runs on a
// development machine.
func readCycleFreqHz() float64 {
	return 1
}
