package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagetec-services/snmpman/config"
	"github.com/stagetec-services/snmpman/snmp"
)

const testWalk = `.1.3.6.1.2.1.1.1.0 = STRING: "x"
.1.3.6.1.2.1.1.9.0 = INTEGER: 5
.1.3.6.1.2.1.2.1.0 = INTEGER: 3
.1.3.6.1.2.1.17.1.4.1.2 = Gauge32: 0
`

const testDevice = `name: switch
vlans: [10, 20]
modifiers:
  - oid: 1.3.6.1.2.1.17.1.4.1.2
    class: CommunityContextModifier
    properties:
      "10": 10104
      "20": 10204
`

// startTestAgent brings a full agent up on an ephemeral loopback port
// and returns it with the bound port.
func startTestAgent(t *testing.T, community string, deviceYAML string) (*SnmpmanAgent, uint16) {
	t.Helper()

	dir := t.TempDir()
	walkPath := filepath.Join(dir, "switch.walk")
	require.NoError(t, os.WriteFile(walkPath, []byte(testWalk), 0o644))

	devicePath := ""
	if deviceYAML != "" {
		devicePath = filepath.Join(dir, "switch.yaml")
		require.NoError(t, os.WriteFile(devicePath, []byte(deviceYAML), 0o644))
	}

	factory := config.NewDeviceFactory(nil)
	configuration := &config.AgentConfiguration{
		Name:      "test-agent",
		IP:        "127.0.0.1",
		Port:      0,
		Walk:      walkPath,
		Community: community,
		Device:    factory.Device(devicePath),
	}

	a, err := New(configuration, nil)
	require.NoError(t, err)
	require.NoError(t, a.Execute())
	t.Cleanup(a.Stop)

	addr := a.Engine().LocalAddr()
	require.NotNil(t, addr)
	return a, uint16(addr.Port)
}

func testClient(t *testing.T, port uint16, community string) *gosnmp.GoSNMP {
	t.Helper()
	client := &gosnmp.GoSNMP{
		Target:    "127.0.0.1",
		Port:      port,
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   2 * time.Second,
		Retries:   1,
		MaxOids:   gosnmp.MaxOids,
	}
	require.NoError(t, client.Connect())
	t.Cleanup(func() { _ = client.Conn.Close() })
	return client
}

func TestAgentBasicGet(t *testing.T) {
	_, port := startTestAgent(t, "public", "")
	client := testClient(t, port, "public")

	result, err := client.Get([]string{"1.3.6.1.2.1.1.1.0"})
	require.NoError(t, err)
	require.Equal(t, gosnmp.NoError, result.Error)
	require.Len(t, result.Variables, 1)
	assert.Equal(t, gosnmp.OctetString, result.Variables[0].Type)
	assert.Equal(t, []byte("x"), result.Variables[0].Value)
}

func TestAgentGetMissingInstance(t *testing.T) {
	_, port := startTestAgent(t, "public", "")
	client := testClient(t, port, "public")

	result, err := client.Get([]string{"1.3.6.1.2.1.1.2.0"})
	require.NoError(t, err)
	require.Len(t, result.Variables, 1)
	assert.Equal(t, gosnmp.NoSuchInstance, result.Variables[0].Type)
}

func TestAgentGetNextAcrossSubtreeBoundary(t *testing.T) {
	_, port := startTestAgent(t, "public", "")
	client := testClient(t, port, "public")

	result, err := client.GetNext([]string{"1.3.6.1.2.1.1"})
	require.NoError(t, err)
	require.Len(t, result.Variables, 1)
	assert.Equal(t, ".1.3.6.1.2.1.1.1.0", result.Variables[0].Name)
	assert.Equal(t, []byte("x"), result.Variables[0].Value)

	// from the last OID of the system subtree into the next subtree
	result, err = client.GetNext([]string{"1.3.6.1.2.1.1.9.0"})
	require.NoError(t, err)
	assert.Equal(t, ".1.3.6.1.2.1.2.1.0", result.Variables[0].Name)
}

func TestAgentGetNextPastEnd(t *testing.T) {
	_, port := startTestAgent(t, "public", "")
	client := testClient(t, port, "public")

	result, err := client.GetNext([]string{"1.3.6.1.2.1.17.1.4.1.2"})
	require.NoError(t, err)
	require.Len(t, result.Variables, 1)
	assert.Equal(t, gosnmp.EndOfMibView, result.Variables[0].Type)
}

func TestAgentGetBulk(t *testing.T) {
	_, port := startTestAgent(t, "public", "")
	client := testClient(t, port, "public")

	result, err := client.GetBulk([]string{"1.3.6.1.2.1.1"}, 0, 3)
	require.NoError(t, err)
	require.Len(t, result.Variables, 3)
	assert.Equal(t, ".1.3.6.1.2.1.1.1.0", result.Variables[0].Name)
	assert.Equal(t, ".1.3.6.1.2.1.1.9.0", result.Variables[1].Name)
	assert.Equal(t, ".1.3.6.1.2.1.2.1.0", result.Variables[2].Name)
}

func TestAgentSetTwoPhaseCommit(t *testing.T) {
	_, port := startTestAgent(t, "public", "")
	client := testClient(t, port, "public")

	// type mismatch is rejected and leaves the value untouched
	result, err := client.Set([]gosnmp.SnmpPDU{
		{Name: "1.3.6.1.2.1.1.9.0", Type: gosnmp.OctetString, Value: []byte("hello")},
	})
	require.NoError(t, err)
	assert.Equal(t, gosnmp.InconsistentValue, result.Error)

	check, err := client.Get([]string{"1.3.6.1.2.1.1.9.0"})
	require.NoError(t, err)
	assert.Equal(t, 5, check.Variables[0].Value)

	// a matching type commits
	result, err = client.Set([]gosnmp.SnmpPDU{
		{Name: "1.3.6.1.2.1.1.9.0", Type: gosnmp.Integer, Value: 7},
	})
	require.NoError(t, err)
	assert.Equal(t, gosnmp.NoError, result.Error)

	check, err = client.Get([]string{"1.3.6.1.2.1.1.9.0"})
	require.NoError(t, err)
	assert.Equal(t, 7, check.Variables[0].Value)
}

func TestAgentSetOutsideAnyGroup(t *testing.T) {
	_, port := startTestAgent(t, "public", "")
	client := testClient(t, port, "public")

	result, err := client.Set([]gosnmp.SnmpPDU{
		{Name: "1.3.6.1.9.9.9.0", Type: gosnmp.Integer, Value: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, gosnmp.NoCreation, result.Error)
	assert.Equal(t, uint8(1), result.ErrorIndex)
}

func TestAgentPerVlanContexts(t *testing.T) {
	_, port := startTestAgent(t, "myCom", testDevice)

	portTable := "1.3.6.1.2.1.17.1.4.1.2"

	vlan10 := testClient(t, port, "myCom@10")
	result, err := vlan10.Get([]string{portTable})
	require.NoError(t, err)
	assert.EqualValues(t, 10104, result.Variables[0].Value)

	vlan20 := testClient(t, port, "myCom@20")
	result, err = vlan20.Get([]string{portTable})
	require.NoError(t, err)
	assert.EqualValues(t, 10204, result.Variables[0].Value)

	// the default context carries the per-VLAN rows instead
	def := testClient(t, port, "myCom")
	result, err = def.Get([]string{portTable + ".10", portTable + ".20"})
	require.NoError(t, err)
	assert.EqualValues(t, 10104, result.Variables[0].Value)
	assert.EqualValues(t, 10204, result.Variables[1].Value)

	// VLAN contexts still serve the shared walk
	result, err = vlan10.Get([]string{"1.3.6.1.2.1.1.1.0"})
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), result.Variables[0].Value)
}

func TestAgentUnknownCommunityGetsNoAnswer(t *testing.T) {
	_, port := startTestAgent(t, "public", "")

	client := &gosnmp.GoSNMP{
		Target:    "127.0.0.1",
		Port:      port,
		Community: "wrong",
		Version:   gosnmp.Version2c,
		Timeout:   500 * time.Millisecond,
		Retries:   0,
		MaxOids:   gosnmp.MaxOids,
	}
	require.NoError(t, client.Connect())
	defer client.Conn.Close()

	_, err := client.Get([]string{"1.3.6.1.2.1.1.1.0"})
	assert.Error(t, err, "request must time out")
}

func TestAgentModifierWiring(t *testing.T) {
	device := `name: router
modifiers:
  - oid: 1.3.6.1.2.1.2.1.0
    class: Integer32Modifier
    properties: {minimum: 0, maximum: 1000, minimumStep: 1, maximumStep: 1}
`
	_, port := startTestAgent(t, "public", device)
	client := testClient(t, port, "public")

	first, err := client.Get([]string{"1.3.6.1.2.1.2.1.0"})
	require.NoError(t, err)
	second, err := client.Get([]string{"1.3.6.1.2.1.2.1.0"})
	require.NoError(t, err)

	a := first.Variables[0].Value.(int)
	b := second.Variables[0].Value.(int)
	assert.Equal(t, a+1, b, "each read advances the counter")
}

func TestAgentRegistrationFallback(t *testing.T) {
	a, _ := startTestAgent(t, "public", "")
	server := a.Engine().Server()
	registered := server.Len()

	// a second registration of the same subtree collides and falls
	// back to per-OID groups, which all collide too
	bindings := []snmp.VariableBinding{
		{OID: snmp.MustParseOID("1.3.6.1.2.1.1.1.0"), Variable: snmp.NewOctetString("dup")},
	}
	group := snmp.NewMOGroup(snmp.MustParseOID("1.3.6.1.2.1"), bindings, nil)
	a.registerGroup(group, "", bindings)
	assert.Equal(t, registered, server.Len(), "colliding leaves are skipped")
}

func TestSnmpmanStartAndStop(t *testing.T) {
	dir := t.TempDir()
	walkPath := filepath.Join(dir, "a.walk")
	require.NoError(t, os.WriteFile(walkPath, []byte(testWalk), 0o644))

	factory := config.NewDeviceFactory(nil)
	var configurations []*config.AgentConfiguration
	for i := 0; i < 3; i++ {
		configurations = append(configurations, &config.AgentConfiguration{
			Name:      fmt.Sprintf("agent-%d", i),
			IP:        "127.0.0.1",
			Port:      0,
			Walk:      walkPath,
			Community: "public",
			Device:    factory.Device(""),
		})
	}

	s, err := Start(configurations, nil)
	require.NoError(t, err)
	assert.Len(t, s.Agents(), 3)
	assert.NotNil(t, s.Agent("agent-1"))
	assert.Nil(t, s.Agent("missing"))
	s.Stop()
	assert.Empty(t, s.Agents())
}

func TestSnmpmanSkipsAgentWithMissingWalk(t *testing.T) {
	dir := t.TempDir()
	walkPath := filepath.Join(dir, "a.walk")
	require.NoError(t, os.WriteFile(walkPath, []byte(testWalk), 0o644))

	factory := config.NewDeviceFactory(nil)
	good := &config.AgentConfiguration{
		Name: "good", IP: "127.0.0.1", Port: 0,
		Walk: walkPath, Community: "public", Device: factory.Device(""),
	}
	bad := &config.AgentConfiguration{
		Name: "bad", IP: "127.0.0.1", Port: 0,
		Walk: filepath.Join(dir, "missing.walk"), Community: "public", Device: factory.Device(""),
	}

	s, err := Start([]*config.AgentConfiguration{bad, good}, nil)
	require.NoError(t, err, "a broken agent never stops the others")
	defer s.Stop()
	require.Len(t, s.Agents(), 1)
	assert.Equal(t, "good", s.Agents()[0].Name())
}

func TestSnmpmanBindFailureStopsFleet(t *testing.T) {
	_, port := startTestAgent(t, "public", "")

	dir := t.TempDir()
	walkPath := filepath.Join(dir, "a.walk")
	require.NoError(t, os.WriteFile(walkPath, []byte(testWalk), 0o644))

	factory := config.NewDeviceFactory(nil)
	taken := &config.AgentConfiguration{
		Name: "taken", IP: "127.0.0.1", Port: int(port),
		Walk: walkPath, Community: "public", Device: factory.Device(""),
	}

	_, err := Start([]*config.AgentConfiguration{taken}, nil)
	require.Error(t, err)
}
