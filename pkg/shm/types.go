package shm

// ExpectedVersion is the stats-header version this reader understands.
// A mismatch is fatal per spec.md §4.1 ("Header read").
const ExpectedVersion uint8 = 1

// HeaderSize is the byte layout size of Header at the start of the
// mapped region (spec.md §3 "StatsHeader").
const HeaderSize = 64

// MinRegionSize is the smallest mapped size Open will accept. It is
// intentionally smaller than HeaderSize: fields beyond the mapped size
// are treated as zero rather than rejected outright, so a producer that
// allocated a slightly undersized region still yields a readable (if
// incomplete) header instead of an outright open failure.
const MinRegionSize = 32

// fexVersionSize is the byte width of Header.FEXVersion's on-disk field.
const fexVersionSize = 48

// RecordSize is this reader's own ThreadStats record size: 16-byte
// aligned per spec.md §3: next and tid (4 bytes each) plus nine u64
// counters come to exactly 80 bytes, already a multiple of 16.
const RecordSize = 80

// AppType mirrors the producer's app_type byte.
type AppType uint8

const (
	AppLinux32 AppType = iota
	AppLinux64
	AppWinArm64EC
	AppWinWow64
)

func (a AppType) String() string {
	switch a {
	case AppLinux32:
		return "Linux32"
	case AppLinux64:
		return "Linux64"
	case AppWinArm64EC:
		return "WinArm64ec"
	case AppWinWow64:
		return "WinWow64"
	default:
		return "Unknown"
	}
}

// Header is an owned copy of the region's StatsHeader (spec.md §3). It
// never aliases the mapping.
type Header struct {
	Version         uint8
	AppType         AppType
	ThreadStatsSize uint16
	FEXVersion      string
	Head            uint32
	Size            uint32
}

// ThreadStats is an owned copy of one producer record (spec.md §3
// "ThreadStats record"). Times are raw cycle-counter ticks.
type ThreadStats struct {
	Next uint32
	TID  uint32

	JITTime            uint64
	SignalTime         uint64
	SigbusCount        uint64
	SMCCount           uint64
	FloatFallbackCount uint64
	CacheMissCount     uint64
	CacheReadLockTime  uint64
	CacheWriteLockTime uint64
	JITCount           uint64
}
