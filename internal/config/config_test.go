package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cogtask/internal/taskerr"
)

func TestResolve_Defaults(t *testing.T) {
	c, err := Resolve(nil)
	require.NoError(t, err)

	assert.Equal(t, Config{
		Background:        "#000000",
		Volume:            1,
		InterruptKey:      "Escape",
		InterruptWindowMS: 300,
		BlocksPerRow:      2,
		FrameRate:         60,
		DB:                "cogtask.db",
	}, c)
	assert.Equal(t, 300*time.Millisecond, c.InterruptWindow())
}

func TestResolve_Overrides(t *testing.T) {
	c, err := Resolve(Raw{
		"background":     "#1a2B3c",
		"volume":         0.25,
		"blocks_per_row": 3,
		"db":             "/tmp/run.db",
	})
	require.NoError(t, err)

	assert.Equal(t, "#1a2B3c", c.Background)
	assert.InDelta(t, 0.25, c.Volume, 1e-6)
	assert.Equal(t, 3, c.BlocksPerRow)
	assert.Equal(t, "/tmp/run.db", c.DB)
	assert.Equal(t, "Escape", c.InterruptKey)
}

func TestResolve_IntegerVolume(t *testing.T) {
	c, err := Resolve(Raw{"volume": 0})
	require.NoError(t, err)
	assert.Equal(t, float32(0), c.Volume)
}

func TestResolve_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  Raw
	}{
		{"unknown key", Raw{"colour": "red"}},
		{"volume too high", Raw{"volume": 1.5}},
		{"negative volume", Raw{"volume": -0.1}},
		{"bad background", Raw{"background": "black"}},
		{"empty interrupt key", Raw{"interrupt_key": ""}},
		{"too many columns", Raw{"blocks_per_row": 9}},
		{"wrong type", Raw{"frame_rate": "fast"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.raw)
			require.Error(t, err)
			assert.True(t, taskerr.IsTaskDefinition(err), "got %v", err)
		})
	}
}

func TestMerge_OverrideWins(t *testing.T) {
	base := Raw{"volume": 0.5, "db": "a.db"}
	override := Raw{"volume": 0.1}

	merged := Merge(base, override)

	assert.Equal(t, Raw{"volume": 0.1, "db": "a.db"}, merged)
	assert.Equal(t, 0.5, base["volume"], "base must not change")
}

func TestResolveVolume(t *testing.T) {
	c := Default()
	c.Volume = 0.8

	assert.Equal(t, float32(0.8), c.ResolveVolume(nil))

	own := float32(0.2)
	assert.Equal(t, float32(0.2), c.ResolveVolume(&own))
}

func TestTickPeriod(t *testing.T) {
	c := Default()
	c.FrameRate = 50
	assert.Equal(t, 20*time.Millisecond, c.TickPeriod())
}
