package sampler

import (
	"time"

	"github.com/pkg/errors"
)

const (
	minInterval            = 250 * time.Millisecond
	minRetention           = time.Minute
	DefaultActiveThreshold = 0.005
	DefaultJanitorInterval = time.Minute
)

type Config struct {
	Interval        time.Duration
	ActiveThreshold float64
	Retention       time.Duration
	JanitorInterval time.Duration
}

func (c *Config) Valid() (bool, error) {
	if c.Interval <= 0 {
		return false, errors.New("uninitialized sampling interval")
	} else if c.Interval < minInterval {
		return false, errors.Errorf("below minimum allowed sampling interval (min: '%s')",
			minInterval.String())
	}

	if c.ActiveThreshold < 0 {
		return false, errors.New("negative active threshold")
	}

	if c.Retention <= 0 {
		return false, errors.New("uninitialized retention window")
	} else if c.Retention < minRetention {
		return false, errors.Errorf("below minimum allowed retention window (min: '%s')",
			minRetention.String())
	}

	if c.JanitorInterval <= 0 {
		return false, errors.New("uninitialized janitor interval")
	}

	return true, nil
}
