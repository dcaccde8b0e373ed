package engine

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// BootCounterFile returns the boot-counter path for an agent: beside
// the walk file, named after the RFC 3986 encoded agent name.
func BootCounterFile(walkPath, agentName string) string {
	return filepath.Join(filepath.Dir(walkPath), encodeName(agentName)+".BC.cfg")
}

// EngineConfigFile returns the engine-configuration path for an
// agent, beside the walk file.
func EngineConfigFile(walkPath, agentName string) string {
	return filepath.Join(filepath.Dir(walkPath), encodeName(agentName)+".Config.cfg")
}

// encodeName percent-encodes the agent name per RFC 3986 with UTF-8.
func encodeName(name string) string {
	return url.PathEscape(name)
}

// IncrementBootCounter reads, increments and rewrites the boot
// counter at path, returning the new count. A missing or corrupt file
// restarts the count at one.
func IncrementBootCounter(path string) (int, error) {
	count := 0
	if raw, err := os.ReadFile(path); err == nil {
		if parsed, err := strconv.Atoi(strings.TrimSpace(string(raw))); err == nil && parsed >= 0 {
			count = parsed
		}
	}
	count++
	if err := os.WriteFile(path, []byte(strconv.Itoa(count)+"\n"), 0o644); err != nil {
		return count, fmt.Errorf("write boot counter %s: %w", path, err)
	}
	return count, nil
}

// EngineConfig is the persisted engine identity.
type EngineConfig struct {
	EngineID string    `yaml:"engineId"`
	Created  time.Time `yaml:"created"`
}

// LoadOrCreateEngineConfig reads the engine configuration at path,
// generating and persisting a fresh engine ID on first boot. The ID
// is stable across restarts so managers see the same engine.
func LoadOrCreateEngineConfig(path string) (EngineConfig, error) {
	if raw, err := os.ReadFile(path); err == nil {
		var cfg EngineConfig
		if err := yaml.Unmarshal(raw, &cfg); err == nil && cfg.EngineID != "" {
			return cfg, nil
		}
	}

	cfg := EngineConfig{
		EngineID: newEngineID(),
		Created:  time.Now().UTC(),
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, fmt.Errorf("marshal engine config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return cfg, fmt.Errorf("write engine config %s: %w", path, err)
	}
	return cfg, nil
}

// newEngineID derives a local engine ID from a random UUID, rendered
// in the conventional hex form with the local-engine format octet.
func newEngineID() string {
	id := uuid.New()
	return "8000000004" + strings.ReplaceAll(id.String(), "-", "")[:22]
}
