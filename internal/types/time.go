package types

import "time"

// EpochSecondsFromMilliseconds converts a millisecond unix timestamp (the
// unit gopsutil reports process creation times in) to fractional epoch
// seconds, the unit persisted throughout the store.
func EpochSecondsFromMilliseconds(timestamp int64) float64 {
	return float64(timestamp) / 1000.0
}

func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
