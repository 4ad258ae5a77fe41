package recording

import "errors"

var (
	// ErrBadMagic means the file does not start with Magic.
	ErrBadMagic = errors.New("recording: bad magic")

	// ErrVersionMismatch means the format-version byte is not one this
	// reader understands.
	ErrVersionMismatch = errors.New("recording: unsupported format version")

	// ErrInvalidSpeed means SetSpeed was called with a value not in
	// source.ValidSpeeds.
	ErrInvalidSpeed = errors.New("recording: invalid playback speed")
)

// Truncated is returned alongside a successfully-opened Reader whose
// file had no EOFMarker: the decoded prefix is still usable (spec.md
// §4.8, §7 "Truncated recording").
type Truncated struct {
	FramesRead int
}

func (t *Truncated) Error() string {
	return "recording: truncated, decoded a usable prefix"
}
