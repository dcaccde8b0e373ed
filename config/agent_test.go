package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAgents(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "configuration.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoadAgents(t *testing.T) {
	t.Parallel()

	path := writeAgents(t, `
- name: example
  walk: /opt/walks/example.walk
  ip: 127.0.0.1
  port: 10161
  community: mycom
- walk: /opt/walks/second.walk
  ip: "::1"
  port: 10162
`)
	agents, err := LoadAgents(path, NewDeviceFactory(nil), nil)
	require.NoError(t, err)
	require.Len(t, agents, 2)

	assert.Equal(t, "example", agents[0].Name)
	assert.Equal(t, "mycom", agents[0].Community)
	assert.Equal(t, "127.0.0.1/10161", agents[0].Address())
	assert.Same(t, DefaultDevice, agents[0].Device)

	// defaults: name from endpoint, community public
	assert.Equal(t, "::1:10162", agents[1].Name)
	assert.Equal(t, "public", agents[1].Community)
	assert.Equal(t, "::1/10162", agents[1].Address())
}

func TestLoadAgentsSkipsIncompleteEntries(t *testing.T) {
	t.Parallel()

	path := writeAgents(t, `
- name: no-walk
  ip: 127.0.0.1
  port: 10161
- name: good
  walk: /opt/walks/example.walk
  ip: 127.0.0.1
  port: 10163
`)
	agents, err := LoadAgents(path, NewDeviceFactory(nil), nil)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "good", agents[0].Name)
}

func TestLoadAgentsMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadAgents(filepath.Join(t.TempDir(), "nope.yaml"), NewDeviceFactory(nil), nil)
	assert.Error(t, err)
}

func TestLoadAgentsBadYAML(t *testing.T) {
	t.Parallel()

	path := writeAgents(t, "agents: [not a list")
	_, err := LoadAgents(path, NewDeviceFactory(nil), nil)
	assert.Error(t, err)
}

func TestLoadAgentsResolvesDevice(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	devicePath := filepath.Join(dir, "cisco.yaml")
	require.NoError(t, os.WriteFile(devicePath, []byte("name: cisco\nvlans: [7]\n"), 0o644))

	configPath := filepath.Join(dir, "configuration.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
- walk: /opt/walks/example.walk
  ip: 127.0.0.1
  port: 10161
  device: `+devicePath+`
`), 0o644))

	agents, err := LoadAgents(configPath, NewDeviceFactory(nil), nil)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "cisco", agents[0].Device.Name)
	assert.Equal(t, []uint64{7}, agents[0].Device.Vlans)
}
