package tracking

import (
	"github.com/procpulse/agent/internal/enumerate"
)

// effCoresClampFactor bounds eff_cores relative to the logical core count.
// Counter wrap or clock skew can yield ratios no real workload reaches;
// those are artifacts, not load.
const effCoresClampFactor = 1.5

// Computer derives the per-sample metrics from a raw reading and the
// interval deltas. It holds only immutable parameters and is safe to share.
type Computer struct {
	logicalCores    int
	activeThreshold float64
}

func NewComputer(logicalCores int, activeThreshold float64) *Computer {
	if logicalCores < 1 {
		logicalCores = 1
	}
	return &Computer{
		logicalCores:    logicalCores,
		activeThreshold: activeThreshold,
	}
}

// Compute returns false when the interval is degenerate (dt <= 0), in
// which case no sample exists for this session this tick.
func (c *Computer) Compute(reading *enumerate.Reading, wallTs, dtS, deltaCPUS float64) (Sample, bool) {
	if dtS <= 0 {
		return Sample{}, false
	}
	if deltaCPUS < 0 {
		// A negative raw delta means the OS reset its counter; the real
		// consumption over the interval is unknowable, so record none.
		deltaCPUS = 0
	}

	effCores := deltaCPUS / dtS
	if maxEffCores := effCoresClampFactor * float64(c.logicalCores); effCores > maxEffCores {
		effCores = maxEffCores
	}

	return Sample{
		Ts:           wallTs,
		Key:          reading.Key(),
		DtS:          dtS,
		DeltaCPUS:    deltaCPUS,
		EffCores:     effCores,
		Active:       effCores >= c.activeThreshold,
		RssBytes:     reading.RssBytes,
		VmsBytes:     reading.VmsBytes,
		IOReadBytes:  reading.IOReadBytes,
		IOWriteBytes: reading.IOWriteBytes,
	}, true
}
