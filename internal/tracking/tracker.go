package tracking

import (
	"time"

	"go.uber.org/zap"

	"github.com/procpulse/agent/internal/enumerate"
	"github.com/procpulse/agent/internal/types"
)

// endedMissThreshold is the number of consecutive enumeration passes a
// session must be absent from before it is considered terminated. A single
// miss is treated as enumeration jitter (permission race, scheduler skew),
// not as process exit.
const endedMissThreshold = 2

type sessionState struct {
	prevCPUSeconds float64
	lastSampled    time.Time // monotonic instant of the last diffable reading
	missingTicks   int
}

// Tracker carries the live session table across ticks: one entry per
// session currently believed alive, holding its previous cpu reading.
// It is owned by the sampling loop and is not safe for concurrent use.
type Tracker struct {
	logger   *zap.Logger
	computer *Computer
	sessions map[types.SessionKey]*sessionState
}

func NewTracker(rootLogger *zap.Logger, computer *Computer) *Tracker {
	return &Tracker{
		logger:   rootLogger.Named("session-tracker"),
		computer: computer,
		sessions: make(map[types.SessionKey]*sessionState),
	}
}

func (t *Tracker) TrackedSessions() int {
	return len(t.sessions)
}

// Advance folds one enumeration pass into the session table and returns
// the batch to persist. mono must come from a monotonic clock so interval
// lengths survive wall-clock adjustments; wallTs is the wall-clock epoch
// timestamp recorded on the emitted rows.
func (t *Tracker) Advance(readings []enumerate.Reading, mono time.Time, wallTs float64) *TickResult {
	result := &TickResult{WallTs: wallTs}
	seen := make(map[types.SessionKey]struct{}, len(readings))

	for i := range readings {
		reading := &readings[i]
		key := reading.Key()
		seen[key] = struct{}{}
		result.Upserts = append(result.Upserts, *reading)

		state, tracked := t.sessions[key]

		if !reading.CPUTime.Valid {
			// Metadata still lands in the store, but without a cpu
			// reading there is nothing to diff now or next tick.
			if tracked {
				state.missingTicks = 0
			}
			continue
		}
		cpuSeconds := reading.CPUTime.Float64

		if !tracked {
			// First observation establishes the baseline only.
			t.sessions[key] = &sessionState{
				prevCPUSeconds: cpuSeconds,
				lastSampled:    mono,
			}
			continue
		}

		dtS := mono.Sub(state.lastSampled).Seconds()
		deltaCPUS := cpuSeconds - state.prevCPUSeconds

		state.prevCPUSeconds = cpuSeconds
		state.lastSampled = mono
		state.missingTicks = 0

		sample, ok := t.computer.Compute(reading, wallTs, dtS, deltaCPUS)
		if !ok {
			t.logger.Debug("Degenerate interval, no sample emitted",
				zap.Stringer("Key", key), zap.Float64("DtS", dtS))
			continue
		}
		result.Samples = append(result.Samples, sample)
	}

	for key, state := range t.sessions {
		if _, present := seen[key]; present {
			continue
		}
		state.missingTicks++
		if state.missingTicks >= endedMissThreshold {
			delete(t.sessions, key)
			result.Ended = append(result.Ended, key)
		}
	}

	return result
}
