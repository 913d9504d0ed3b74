package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/guregu/null.v3"

	"github.com/procpulse/agent/internal/enumerate"
	"github.com/procpulse/agent/internal/types"
)

func newTestTracker(logicalCores int, activeThreshold float64) *Tracker {
	return NewTracker(zap.NewNop(), NewComputer(logicalCores, activeThreshold))
}

func reading(pid int32, createTime, cpuSeconds float64) enumerate.Reading {
	return enumerate.Reading{
		Pid:        types.Pid(pid),
		CreateTime: createTime,
		CPUTime:    null.FloatFrom(cpuSeconds),
		Name:       null.StringFrom("proc"),
	}
}

func TestTracker_FirstObservationEmitsNoSample(t *testing.T) {
	tracker := newTestTracker(4, 0.005)
	mono := time.Now()

	result := tracker.Advance([]enumerate.Reading{reading(100, 1000, 5.0)}, mono, 1000.0)

	assert.Len(t, result.Upserts, 1)
	assert.Empty(t, result.Samples)
	assert.Empty(t, result.Ended)
	assert.Equal(t, 1, tracker.TrackedSessions())
}

func TestTracker_DeltaAndEffCores(t *testing.T) {
	tracker := newTestTracker(4, 0.005)
	mono := time.Now()

	tracker.Advance([]enumerate.Reading{reading(100, 1000, 5.0)}, mono, 1000.0)
	result := tracker.Advance([]enumerate.Reading{reading(100, 1000, 5.5)}, mono.Add(time.Second), 1001.0)

	require.Len(t, result.Samples, 1)
	sample := result.Samples[0]
	assert.InDelta(t, 1.0, sample.DtS, 1e-9)
	assert.InDelta(t, 0.5, sample.DeltaCPUS, 1e-9)
	assert.InDelta(t, 0.5, sample.EffCores, 1e-9)
	assert.True(t, sample.Active)
	assert.Equal(t, 1001.0, sample.Ts)
}

func TestTracker_NegativeDeltaClampsToZero(t *testing.T) {
	tracker := newTestTracker(4, 0.005)
	mono := time.Now()

	tracker.Advance([]enumerate.Reading{reading(100, 1000, 5.0)}, mono, 1000.0)
	result := tracker.Advance([]enumerate.Reading{reading(100, 1000, 4.0)}, mono.Add(time.Second), 1001.0)

	require.Len(t, result.Samples, 1)
	assert.Equal(t, 0.0, result.Samples[0].DeltaCPUS)
	assert.Equal(t, 0.0, result.Samples[0].EffCores)
	assert.False(t, result.Samples[0].Active)
}

func TestTracker_EffCoresClamped(t *testing.T) {
	tracker := newTestTracker(2, 0.005)
	mono := time.Now()

	tracker.Advance([]enumerate.Reading{reading(100, 1000, 0.0)}, mono, 1000.0)
	// 100 cpu seconds over one wall second is a counter artifact.
	result := tracker.Advance([]enumerate.Reading{reading(100, 1000, 100.0)}, mono.Add(time.Second), 1001.0)

	require.Len(t, result.Samples, 1)
	assert.InDelta(t, 3.0, result.Samples[0].EffCores, 1e-9) // 1.5 x 2 cores
}

func TestTracker_DegenerateIntervalEmitsNoSample(t *testing.T) {
	tracker := newTestTracker(4, 0.005)
	mono := time.Now()

	tracker.Advance([]enumerate.Reading{reading(100, 1000, 5.0)}, mono, 1000.0)
	result := tracker.Advance([]enumerate.Reading{reading(100, 1000, 5.5)}, mono, 1000.0)
	assert.Empty(t, result.Samples)

	// State still advanced: the next tick diffs from the degenerate one.
	result = tracker.Advance([]enumerate.Reading{reading(100, 1000, 6.0)}, mono.Add(time.Second), 1001.0)
	require.Len(t, result.Samples, 1)
	assert.InDelta(t, 0.5, result.Samples[0].DeltaCPUS, 1e-9)
}

func TestTracker_UnreadableCPUStillUpserts(t *testing.T) {
	tracker := newTestTracker(4, 0.005)
	mono := time.Now()

	unreadable := enumerate.Reading{Pid: 100, CreateTime: 1000, Partial: true}
	result := tracker.Advance([]enumerate.Reading{unreadable}, mono, 1000.0)

	assert.Len(t, result.Upserts, 1)
	assert.Empty(t, result.Samples)
	assert.Equal(t, 0, tracker.TrackedSessions())
}

func TestTracker_TwoConsecutiveMissesEndSession(t *testing.T) {
	tracker := newTestTracker(4, 0.005)
	mono := time.Now()

	tracker.Advance([]enumerate.Reading{reading(100, 1000, 5.0)}, mono, 1000.0)

	result := tracker.Advance(nil, mono.Add(time.Second), 1001.0)
	assert.Empty(t, result.Ended)
	assert.Equal(t, 1, tracker.TrackedSessions())

	result = tracker.Advance(nil, mono.Add(2*time.Second), 1002.0)
	require.Len(t, result.Ended, 1)
	assert.Equal(t, types.SessionKey{Pid: 100, CreateTime: 1000}, result.Ended[0])
	assert.Equal(t, 0, tracker.TrackedSessions())
}

func TestTracker_SingleMissIsNotTermination(t *testing.T) {
	tracker := newTestTracker(4, 0.005)
	mono := time.Now()

	tracker.Advance([]enumerate.Reading{reading(100, 1000, 5.0)}, mono, 1000.0)

	result := tracker.Advance(nil, mono.Add(time.Second), 1001.0)
	assert.Empty(t, result.Ended)

	// Reappears: the interval spans the gap back to the last reading.
	result = tracker.Advance([]enumerate.Reading{reading(100, 1000, 6.0)}, mono.Add(2*time.Second), 1002.0)
	assert.Empty(t, result.Ended)
	require.Len(t, result.Samples, 1)
	assert.InDelta(t, 2.0, result.Samples[0].DtS, 1e-9)
	assert.InDelta(t, 1.0, result.Samples[0].DeltaCPUS, 1e-9)

	// The miss counter was reset, so a later single miss still survives.
	result = tracker.Advance(nil, mono.Add(3*time.Second), 1003.0)
	assert.Empty(t, result.Ended)
	assert.Equal(t, 1, tracker.TrackedSessions())
}

func TestTracker_PidReuseIsADistinctSession(t *testing.T) {
	tracker := newTestTracker(4, 0.005)
	mono := time.Now()

	tracker.Advance([]enumerate.Reading{reading(100, 1000, 5.0)}, mono, 1000.0)
	// Same pid, later create time: a different process entirely.
	result := tracker.Advance([]enumerate.Reading{reading(100, 2000, 0.1)}, mono.Add(time.Second), 1001.0)

	assert.Empty(t, result.Samples) // new session, baseline only
	assert.Equal(t, 2, tracker.TrackedSessions())
}
