package enumerate

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/procpulse/agent/internal/types"
)

func TestSnapshot_IncludesOwnProcess(t *testing.T) {
	enumerator := NewProcessEnumerator(zap.NewNop(), &Config{CollectMemory: true, CollectIO: true})

	readings, err := enumerator.Snapshot()
	require.NoError(t, err)
	require.NotEmpty(t, readings)

	var self *Reading
	for i := range readings {
		if readings[i].Pid == types.Pid(os.Getpid()) {
			self = &readings[i]
			break
		}
	}
	require.NotNil(t, self, "own process missing from snapshot")

	assert.Greater(t, self.CreateTime, 0.0)
	assert.True(t, self.CPUTime.Valid)
	assert.GreaterOrEqual(t, self.CPUTime.Float64, 0.0)
	assert.True(t, self.Name.Valid)
	assert.True(t, self.RssBytes.Valid)
}

func TestSnapshot_CollectionToggles(t *testing.T) {
	enumerator := NewProcessEnumerator(zap.NewNop(), &Config{})

	readings, err := enumerator.Snapshot()
	require.NoError(t, err)

	for i := range readings {
		if readings[i].Pid == types.Pid(os.Getpid()) {
			assert.False(t, readings[i].RssBytes.Valid)
			assert.False(t, readings[i].IOReadBytes.Valid)
			return
		}
	}
	t.Fatal("own process missing from snapshot")
}

func TestReading_Key(t *testing.T) {
	reading := Reading{Pid: 100, CreateTime: 1234.5}
	assert.Equal(t, types.SessionKey{Pid: 100, CreateTime: 1234.5}, reading.Key())
	assert.Equal(t, "100@1234.500", reading.Key().String())
}
