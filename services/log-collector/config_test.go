package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "logs/#", cfg.LogTopic)
	assert.Equal(t, "/var/log/iot-app", cfg.LogDir)
	assert.Equal(t, 10, cfg.MaxSizeMB)
	assert.Equal(t, 5, cfg.MaxBackups)
	assert.Equal(t, 14, cfg.MaxAgeDays)
	assert.True(t, cfg.Compress)
}

func TestLoadConfig_RejectsZeroSize(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LOG_MAX_SIZE_MB", "0")

	_, err := LoadConfig()
	assert.Error(t, err)
}
