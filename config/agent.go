package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// AgentConfiguration describes one virtual agent: where it binds,
// which walk seeds it, which device shapes it and the community it
// answers to.
type AgentConfiguration struct {
	Name      string
	IP        string
	Port      int
	Walk      string
	Community string
	Device    *Device
}

// Address renders the transport address in `<ip>/<port>` form.
func (c *AgentConfiguration) Address() string {
	return fmt.Sprintf("%s/%d", c.IP, c.Port)
}

func (c *AgentConfiguration) String() string {
	return fmt.Sprintf("AgentConfiguration[name=%s, address=%s, walk=%s, device=%s]",
		c.Name, c.Address(), c.Walk, c.Device.Name)
}

type agentEntry struct {
	Name      string `yaml:"name"`
	Device    string `yaml:"device"`
	Walk      string `yaml:"walk"`
	IP        string `yaml:"ip"`
	Port      int    `yaml:"port"`
	Community string `yaml:"community"`
}

// LoadAgents reads the agents file: a YAML list of agent entries.
// Invalid entries are logged and skipped so one broken agent never
// stops the rest; an unreadable file is an error.
//
// Devices parse eagerly through the supplied factory, so every
// descriptor problem surfaces during startup rather than on the first
// request.
func LoadAgents(path string, factory *DeviceFactory, logger *zap.Logger) ([]*AgentConfiguration, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agents file: %w", err)
	}

	var entries []agentEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse agents file %s: %w", path, err)
	}

	agents := make([]*AgentConfiguration, 0, len(entries))
	for i, entry := range entries {
		if entry.Walk == "" || entry.IP == "" || entry.Port == 0 {
			logger.Error("skipping agent entry: walk, ip and port are required",
				zap.Int("index", i), zap.String("name", entry.Name))
			continue
		}
		agent := &AgentConfiguration{
			Name:      entry.Name,
			IP:        entry.IP,
			Port:      entry.Port,
			Walk:      entry.Walk,
			Community: entry.Community,
			Device:    factory.Device(entry.Device),
		}
		if agent.Name == "" {
			agent.Name = fmt.Sprintf("%s:%d", entry.IP, entry.Port)
		}
		if agent.Community == "" {
			agent.Community = "public"
		}
		agents = append(agents, agent)
	}
	return agents, nil
}
