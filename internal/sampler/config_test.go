package sampler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Interval:        time.Second,
		ActiveThreshold: 0.005,
		Retention:       30 * 24 * time.Hour,
		JanitorInterval: time.Minute,
	}
}

func TestConfig_Valid(t *testing.T) {
	valid, err := validConfig().Valid()
	assert.True(t, valid)
	assert.NoError(t, err)
}

func TestConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.Interval = 0 }},
		{"interval below minimum", func(c *Config) { c.Interval = 100 * time.Millisecond }},
		{"negative threshold", func(c *Config) { c.ActiveThreshold = -0.1 }},
		{"zero retention", func(c *Config) { c.Retention = 0 }},
		{"retention below minimum", func(c *Config) { c.Retention = time.Second }},
		{"zero janitor interval", func(c *Config) { c.JanitorInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(config)
			valid, err := config.Valid()
			assert.False(t, valid)
			assert.Error(t, err)
		})
	}
}
