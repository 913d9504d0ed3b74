package tracking

import (
	"gopkg.in/guregu/null.v3"

	"github.com/procpulse/agent/internal/enumerate"
	"github.com/procpulse/agent/internal/types"
)

// Sample is one per-session measurement over the interval that ended at Ts.
type Sample struct {
	Ts        float64
	Key       types.SessionKey
	DtS       float64
	DeltaCPUS float64
	EffCores  float64
	Active    bool

	RssBytes     null.Int
	VmsBytes     null.Int
	IOReadBytes  null.Int
	IOWriteBytes null.Int
}

// TickResult is everything one sampling pass produced, handed to the store
// as a single batch.
type TickResult struct {
	WallTs  float64
	Upserts []enumerate.Reading
	Samples []Sample
	Ended   []types.SessionKey
}
