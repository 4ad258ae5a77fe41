//go:build linux

package memsnap

import (
	"os"
	"testing"
)

// newTempMapFile writes content to a temp file and returns it opened
// for reading and writing, positioned at offset 0, standing in for the
// held /proc/<pid>/smaps descriptor a real Sampler keeps open.
func newTempMapFile(t *testing.T, content string) (*os.File, error) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "memsnap-*.map")
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteString(content); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}
	return f, nil
}
