package timespec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		spec string
		want time.Duration
	}{
		{"30s", 30 * time.Second},
		{"15m", 15 * time.Minute},
		{"2h", 2 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"1.5h", 90 * time.Minute},
		{"10M", 10 * time.Minute},
		{" 5s ", 5 * time.Second},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.spec)
		require.NoError(t, err, tt.spec)
		assert.Equal(t, tt.want, got, tt.spec)
	}
}

func TestParseDuration_Invalid(t *testing.T) {
	for _, spec := range []string{"", "10", "h", "10x", "ten seconds", "-5m"} {
		_, err := ParseDuration(spec)
		require.Error(t, err, spec)
		assert.Contains(t, err.Error(), spec)
		assert.Contains(t, err.Error(), "30s") // example of the accepted form
	}
}

func TestParseTimePoint(t *testing.T) {
	now := time.Date(2025, 9, 2, 12, 0, 0, 0, time.Local)
	nowTs := float64(now.UnixNano()) / float64(time.Second)

	got, err := ParseTimePoint("now", now)
	require.NoError(t, err)
	assert.InDelta(t, nowTs, got, 1e-6)

	got, err = ParseTimePoint("24h", now)
	require.NoError(t, err)
	assert.InDelta(t, nowTs-86400, got, 1e-6)

	got, err = ParseTimePoint("1725275000.5", now)
	require.NoError(t, err)
	assert.InDelta(t, 1725275000.5, got, 1e-9)

	got, err = ParseTimePoint("2025-09-02T11:30:00", now)
	require.NoError(t, err)
	assert.InDelta(t, nowTs-1800, got, 1e-6)

	got, err = ParseTimePoint("2025-09-02", now)
	require.NoError(t, err)
	assert.InDelta(t, nowTs-12*3600, got, 1e-6)
}

func TestParseTimePoint_Invalid(t *testing.T) {
	_, err := ParseTimePoint("next tuesday", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "next tuesday")
	assert.Contains(t, err.Error(), "now")
}

func TestResolveWindow_Defaults(t *testing.T) {
	now := time.Date(2025, 9, 2, 12, 0, 0, 0, time.Local)
	nowTs := float64(now.UnixNano()) / float64(time.Second)

	sinceTs, untilTs, err := ResolveWindow("", "", now)
	require.NoError(t, err)
	assert.InDelta(t, nowTs-86400, sinceTs, 1e-6)
	assert.InDelta(t, nowTs, untilTs, 1e-6)
}

func TestResolveWindow_RejectsInvertedWindow(t *testing.T) {
	_, _, err := ResolveWindow("now", "24h", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not precede")
}

func TestResolveWindow_NamesOffendingArgument(t *testing.T) {
	_, _, err := ResolveWindow("bogus", "", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "since")

	_, _, err = ResolveWindow("", "bogus", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "until")
}
