package threadstats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fexstat/fexstat/pkg/shm"
)

func TestDiffer_FirstSeenThreadEmitsZeroDelta(t *testing.T) {
	d := NewDiffer(0)
	now := time.Unix(0, 0)

	out := d.Sample([]shm.ThreadStats{{TID: 7, JITTime: 12345}}, now)

	require.Len(t, out.PerThreadDelta, 1)
	assert.Equal(t, uint32(7), out.PerThreadDelta[0].TID)
	assert.Equal(t, uint64(0), out.PerThreadDelta[0].JITTime, "first sighting never yields a nonzero delta")
	assert.Equal(t, 1, out.ThreadsSampled)
}

func TestDiffer_SteadyStateDelta(t *testing.T) {
	// S1: single thread, steady state.
	d := NewDiffer(0)
	t0 := time.Unix(0, 0)
	t1 := t0.Add(time.Second)

	d.Sample([]shm.ThreadStats{{TID: 7, JITTime: 0}}, t0)
	out := d.Sample([]shm.ThreadStats{{TID: 7, JITTime: 500_000_000}}, t1)

	require.Len(t, out.PerThreadDelta, 1)
	assert.Equal(t, uint64(500_000_000), out.PerThreadDelta[0].JITTime)
}

func TestDiffer_CounterRegressionClampsToZeroAndResyncs(t *testing.T) {
	d := NewDiffer(0)
	t0 := time.Unix(0, 0)
	t1 := t0.Add(time.Second)
	t2 := t0.Add(2 * time.Second)

	d.Sample([]shm.ThreadStats{{TID: 1, JITTime: 1000, SigbusCount: 5}}, t0)
	out := d.Sample([]shm.ThreadStats{{TID: 1, JITTime: 10, SigbusCount: 7}}, t1)

	require.Len(t, out.PerThreadDelta, 1)
	assert.Equal(t, uint64(0), out.PerThreadDelta[0].JITTime, "regressed counter clamps to zero")
	assert.Equal(t, uint64(2), out.PerThreadDelta[0].SigbusCount, "other counters are unaffected by the regression")

	// previous must have re-seated to the regressed value, not stayed at
	// the old high-water mark.
	out2 := d.Sample([]shm.ThreadStats{{TID: 1, JITTime: 25, SigbusCount: 7}}, t2)
	assert.Equal(t, uint64(15), out2.PerThreadDelta[0].JITTime)
}

func TestDiffer_StaleThreadEviction(t *testing.T) {
	// S3: thread eviction. stale_timeout = 10s; tid=1 seen at t=0, tid=2
	// from t=1 onward, tid=1 never seen again. At t=11 only tid=2 remains.
	d := NewDiffer(10 * time.Second)
	t0 := time.Unix(0, 0)

	d.Sample([]shm.ThreadStats{{TID: 1}}, t0)
	d.Sample([]shm.ThreadStats{{TID: 2}}, t0.Add(time.Second))
	d.Sample([]shm.ThreadStats{{TID: 2}}, t0.Add(11*time.Second))

	assert.Equal(t, 1, d.TrackedThreads())
	_, stillTracked := d.state[1]
	assert.False(t, stillTracked)
	_, tracked2 := d.state[2]
	assert.True(t, tracked2)
}

func TestDiffer_DefaultStaleTimeout(t *testing.T) {
	d := NewDiffer(0)
	assert.Equal(t, DefaultStaleTimeout, d.staleTimeout)
}
