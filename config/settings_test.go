package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsDefaults(t *testing.T) {
	t.Parallel()

	settings, err := LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, "info", settings.Logging.Level)
	assert.Equal(t, 5*time.Second, settings.Grace())

	// a missing file is fine too
	settings, err = LoadSettings(filepath.Join(t.TempDir(), "snmpman.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)
}

func TestLoadSettingsFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "snmpman.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[logging]
level = "debug"
development = true

[shutdown]
grace_seconds = 11
`), 0o644))

	settings, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", settings.Logging.Level)
	assert.True(t, settings.Logging.Development)
	assert.Equal(t, 11*time.Second, settings.Grace())
}

func TestLoadSettingsMalformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "snmpman.toml")
	require.NoError(t, os.WriteFile(path, []byte("[logging\nlevel="), 0o644))
	_, err := LoadSettings(path)
	assert.Error(t, err)
}
