package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.json")
	raw := `{
		"id": 2,
		"num_nodes": 4,
		"num_faulty": 1,
		"initial_value": 1,
		"ready_poll_interval": "25ms",
		"storage_type": "memory",
		"rate_limits": {"/message": 500}
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := LoadConfigFromFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2, cfg.ID)
	assert.Equal(t, 4, cfg.NumNodes)
	assert.Equal(t, 25*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultBasePort, cfg.BasePort)
	assert.Equal(t, WireFormatJSON, cfg.WireFormat)
	assert.Equal(t, 500, cfg.RateLimits["/message"])
	assert.Equal(t, "http://localhost:3002", cfg.PeerURL(2))
}

func TestLoadConfigFromFileErrors(t *testing.T) {
	_, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadConfigFromFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() NodeConfig {
		c := NodeConfig{NetworkConfig: NetworkConfig{NumNodes: 4, NumFaulty: 1}}
		c.ApplyDefaults()
		return c
	}

	c := base()
	assert.NoError(t, c.Validate())
	assert.True(t, c.Tolerates())

	c = base()
	c.NumNodes = 0
	assert.ErrorIs(t, c.Validate(), ErrInvalidNetwork)

	c = base()
	c.ID = 4
	assert.ErrorIs(t, c.Validate(), ErrInvalidNodeID)

	c = base()
	c.InitialValue = 2
	assert.ErrorIs(t, c.Validate(), ErrInvalidValue)

	c = base()
	c.InitialValue = 7
	c.Faulty = true
	assert.NoError(t, c.Validate())

	c = base()
	c.WireFormat = "xml"
	assert.ErrorIs(t, c.Validate(), ErrInvalidNetwork)

	c = base()
	c.NumFaulty = 2
	assert.NoError(t, c.Validate())
	assert.False(t, c.Tolerates())
}
