package timespec

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var durationPattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*([smhd])\s*$`)

// ParseDuration accepts relative durations of the form '30s', '15m',
// '2h', '7d', case-insensitive, decimals allowed.
func ParseDuration(spec string) (time.Duration, error) {
	match := durationPattern.FindStringSubmatch(strings.ToLower(spec))
	if match == nil {
		return 0, errors.Errorf("invalid duration '%s' (expected a number with unit, e.g. '30s', '15m', '2h', '7d')", spec)
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, errors.Errorf("invalid duration '%s' (expected a number with unit, e.g. '30s', '15m', '2h', '7d')", spec)
	}

	var unit time.Duration
	switch match[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}

	return time.Duration(value * float64(unit)), nil
}

// ParseTimePoint resolves a time point to epoch seconds. Accepted forms:
// 'now', a relative duration interpreted as now minus that duration,
// epoch seconds, or an ISO 8601 date/datetime in local time.
func ParseTimePoint(spec string, now time.Time) (float64, error) {
	trimmed := strings.TrimSpace(spec)
	if strings.EqualFold(trimmed, "now") {
		return epochSeconds(now), nil
	}

	if duration, err := ParseDuration(trimmed); err == nil {
		return epochSeconds(now.Add(-duration)), nil
	}

	if epoch, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return epoch, nil
	}

	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if parsed, err := time.ParseInLocation(layout, trimmed, time.Local); err == nil {
			return epochSeconds(parsed), nil
		}
	}

	return 0, errors.Errorf("invalid time point '%s' (expected 'now', a relative duration like '24h', epoch seconds, or an ISO timestamp like '2025-09-02T12:30:00')", spec)
}

// ResolveWindow resolves a [since, until) window, defaulting to the
// trailing 24 hours.
func ResolveWindow(sinceSpec, untilSpec string, now time.Time) (float64, float64, error) {
	sinceTs := epochSeconds(now.Add(-24 * time.Hour))
	untilTs := epochSeconds(now)

	if sinceSpec != "" {
		ts, err := ParseTimePoint(sinceSpec, now)
		if err != nil {
			return 0, 0, errors.WithMessage(err, "parse 'since'")
		}
		sinceTs = ts
	}

	if untilSpec != "" {
		ts, err := ParseTimePoint(untilSpec, now)
		if err != nil {
			return 0, 0, errors.WithMessage(err, "parse 'until'")
		}
		untilTs = ts
	}

	if untilTs < sinceTs {
		return 0, 0, errors.Errorf("'until' (%f) must not precede 'since' (%f)", untilTs, sinceTs)
	}

	return sinceTs, untilTs, nil
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
