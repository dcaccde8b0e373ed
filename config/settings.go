package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Settings are optional process-wide knobs loaded from a TOML file.
// Everything has a working default; a missing file is not an error.
type Settings struct {
	Logging  LoggingSettings  `toml:"logging"`
	Shutdown ShutdownSettings `toml:"shutdown"`
}

// LoggingSettings selects the zap preset and level.
type LoggingSettings struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
	// Development switches to the console encoder with stacktraces.
	Development bool `toml:"development"`
}

// ShutdownSettings bounds how long stop waits for in-flight requests.
type ShutdownSettings struct {
	GraceSeconds int `toml:"grace_seconds"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		Logging:  LoggingSettings{Level: "info"},
		Shutdown: ShutdownSettings{GraceSeconds: 5},
	}
}

// Grace returns the shutdown grace period as a duration.
func (s Settings) Grace() time.Duration {
	return time.Duration(s.Shutdown.GraceSeconds) * time.Second
}

// LoadSettings reads the settings file at path. An empty path or a
// missing file yields the defaults; a malformed file is an error.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return settings, nil
	}
	if _, err := toml.DecodeFile(path, &settings); err != nil {
		return settings, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if settings.Shutdown.GraceSeconds <= 0 {
		settings.Shutdown.GraceSeconds = DefaultSettings().Shutdown.GraceSeconds
	}
	return settings, nil
}
