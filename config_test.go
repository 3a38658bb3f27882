package otsim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "OTdemo.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigSection(t *testing.T) {
	path := writeConfig(t, `{
  "modbus-plc1": {
    "snapshot_file": "sensors.tmp",   # shared state
    "listen_url": "tcp://0.0.0.0:5020",
    "status_cycle": 0.5,
    "loop_multiplier": 4,
    "aggressiveness": 0.6,
    "memory_view": true
  }
}`)

	config, err := LoadConfig(path, "modbus-plc1")
	require.NoError(t, err)
	assert.Equal(t, "sensors.tmp", config.SnapshotFile)
	assert.Equal(t, 4, config.LoopMultiplier)
	assert.Equal(t, 0.6, config.Aggressiveness)
	assert.True(t, config.MemoryView)
	assert.Equal(t, "500ms", config.StatusInterval().String())
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `{"modbus-plc1": {}}`)

	config, err := LoadConfig(path, "modbus-plc1")
	require.NoError(t, err)
	assert.Equal(t, "sensors.tmp", config.SnapshotFile)
	assert.Equal(t, "tcp://0.0.0.0:5020", config.ListenURL)
	assert.Equal(t, uint8(1), config.UnitID)
	assert.Equal(t, 5, config.LoopMultiplier)
	assert.Equal(t, 1.0, config.Aggressiveness)
	assert.Equal(t, "standard", config.Map().Name)
}

func TestLoadConfigMissingSection(t *testing.T) {
	path := writeConfig(t, `{"modbus-plc1": {}}`)

	_, err := LoadConfig(path, "modbus-plc2")
	assert.Error(t, err)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, `{"modbus-plc1": {"snapshot_file": "from-file.tmp"}}`)
	t.Setenv("OTSIM_SNAPSHOT_FILE", "from-env.tmp")

	config, err := LoadConfig(path, "modbus-plc1")
	require.NoError(t, err)
	assert.Equal(t, "from-env.tmp", config.SnapshotFile)
}
