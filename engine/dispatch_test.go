package engine

import (
	"testing"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stagetec-services/snmpman/snmp"
)

// newDispatchFixture builds a registry with two subtrees, a VACM with
// full views for "public" and a v2c dispatch request.
func newDispatchFixture(t *testing.T) dispatchRequest {
	t.Helper()

	server := NewMOServer(nil)
	require.NoError(t, server.Register(snmp.NewMOGroup(snmp.MustParseOID("1.3.6.1.2.1.1"), []snmp.VariableBinding{
		{OID: snmp.MustParseOID("1.3.6.1.2.1.1.1.0"), Variable: snmp.NewOctetString("x")},
		{OID: snmp.MustParseOID("1.3.6.1.2.1.1.9.0"), Variable: snmp.Integer32(5)},
	}, nil), ""))
	require.NoError(t, server.Register(snmp.NewMOGroup(snmp.MustParseOID("1.3.6.1.2.1.2"), []snmp.VariableBinding{
		{OID: snmp.MustParseOID("1.3.6.1.2.1.2.1.0"), Variable: snmp.Integer32(3)},
	}, nil), ""))

	vacm := NewVACM()
	vacm.AddGroup(SecurityModelV2c, "public", "v1v2group")
	vacm.AddGroup(SecurityModelV1, "public", "v1v2group")
	vacm.AddAccess("v1v2group", "", SecurityModelAny, NoAuthNoPriv,
		"fullReadView", "fullWriteView", "fullNotifyView")
	vacm.AddViewTree("fullReadView", snmp.OID{1}, false)
	vacm.AddViewTree("fullWriteView", snmp.OID{1}, false)

	return dispatchRequest{
		server:        server,
		vacm:          vacm,
		stats:         &Stats{},
		logger:        zap.NewNop(),
		version:       gosnmp.Version2c,
		securityModel: SecurityModelV2c,
		securityName:  "public",
		context:       "",
	}
}

func TestDispatchGet(t *testing.T) {
	t.Parallel()

	r := newDispatchFixture(t)
	out, status, index := r.get([]gosnmp.SnmpPDU{
		{Name: "1.3.6.1.2.1.1.1.0", Type: gosnmp.Null},
		{Name: "1.3.6.1.2.1.1.2.0", Type: gosnmp.Null},
		{Name: "1.3.6.1.9.9", Type: gosnmp.Null},
	})
	require.Equal(t, gosnmp.NoError, status)
	assert.Zero(t, index)
	assert.Equal(t, []byte("x"), out[0].Value)
	assert.Equal(t, gosnmp.NoSuchInstance, out[1].Type, "in scope, no instance")
	assert.Equal(t, gosnmp.NoSuchObject, out[2].Type, "no object covers the OID")
}

func TestDispatchGetV1NoSuchName(t *testing.T) {
	t.Parallel()

	r := newDispatchFixture(t)
	r.version = gosnmp.Version1
	r.securityModel = SecurityModelV1

	_, status, index := r.get([]gosnmp.SnmpPDU{
		{Name: "1.3.6.1.2.1.1.1.0", Type: gosnmp.Null},
		{Name: "1.3.6.1.2.1.1.2.0", Type: gosnmp.Null},
	})
	assert.Equal(t, gosnmp.NoSuchName, status)
	assert.Equal(t, 2, index)
}

func TestDispatchGetNextWalksWholeTree(t *testing.T) {
	t.Parallel()

	r := newDispatchFixture(t)

	expect := []string{
		".1.3.6.1.2.1.1.1.0",
		".1.3.6.1.2.1.1.9.0",
		".1.3.6.1.2.1.2.1.0",
	}
	cursor := "1.3.6.1.2.1"
	for _, want := range expect {
		out, status, _ := r.getNext([]gosnmp.SnmpPDU{{Name: cursor, Type: gosnmp.Null}})
		require.Equal(t, gosnmp.NoError, status)
		require.Equal(t, want, out[0].Name)
		cursor = out[0].Name
	}

	out, status, _ := r.getNext([]gosnmp.SnmpPDU{{Name: cursor, Type: gosnmp.Null}})
	require.Equal(t, gosnmp.NoError, status)
	assert.Equal(t, gosnmp.EndOfMibView, out[0].Type)
}

func TestDispatchGetBulk(t *testing.T) {
	t.Parallel()

	r := newDispatchFixture(t)
	out, status, _ := r.getBulk([]gosnmp.SnmpPDU{
		{Name: "1.3.6.1.2.1.1.3.0", Type: gosnmp.Null}, // non-repeater
		{Name: "1.3.6.1.2.1", Type: gosnmp.Null},       // repeater
	}, 1, 5)

	require.Equal(t, gosnmp.NoError, status)
	require.Len(t, out, 5)
	assert.Equal(t, ".1.3.6.1.2.1.1.9.0", out[0].Name, "non-repeater answers one step")
	assert.Equal(t, ".1.3.6.1.2.1.1.1.0", out[1].Name)
	assert.Equal(t, ".1.3.6.1.2.1.1.9.0", out[2].Name)
	assert.Equal(t, ".1.3.6.1.2.1.2.1.0", out[3].Name)
	assert.Equal(t, gosnmp.EndOfMibView, out[4].Type)
}

func TestDispatchSetCommitsAcrossGroups(t *testing.T) {
	t.Parallel()

	r := newDispatchFixture(t)
	_, status, _ := r.set([]gosnmp.SnmpPDU{
		{Name: "1.3.6.1.2.1.1.9.0", Type: gosnmp.Integer, Value: 7},
		{Name: "1.3.6.1.2.1.2.1.0", Type: gosnmp.Integer, Value: 9},
	})
	require.Equal(t, gosnmp.NoError, status)

	out, _, _ := r.get([]gosnmp.SnmpPDU{
		{Name: "1.3.6.1.2.1.1.9.0", Type: gosnmp.Null},
		{Name: "1.3.6.1.2.1.2.1.0", Type: gosnmp.Null},
	})
	assert.Equal(t, 7, out[0].Value)
	assert.Equal(t, 9, out[1].Value)
}

func TestDispatchSetRollsBackOnMixedFailure(t *testing.T) {
	t.Parallel()

	r := newDispatchFixture(t)
	_, status, index := r.set([]gosnmp.SnmpPDU{
		{Name: "1.3.6.1.2.1.1.9.0", Type: gosnmp.Integer, Value: 7},
		{Name: "1.3.6.1.2.1.2.1.0", Type: gosnmp.OctetString, Value: []byte("bad")},
	})
	assert.Equal(t, gosnmp.InconsistentValue, status)
	assert.Equal(t, 2, index)

	// the clean first subrequest must have been undone
	out, _, _ := r.get([]gosnmp.SnmpPDU{{Name: "1.3.6.1.2.1.1.9.0", Type: gosnmp.Null}})
	assert.Equal(t, 5, out[0].Value)
}

func TestDispatchSetUnknownOID(t *testing.T) {
	t.Parallel()

	r := newDispatchFixture(t)
	_, status, index := r.set([]gosnmp.SnmpPDU{
		{Name: "1.3.6.1.9.9.9.0", Type: gosnmp.Integer, Value: 1},
	})
	assert.Equal(t, gosnmp.NoCreation, status)
	assert.Equal(t, 1, index)
}

func TestDispatchSetV1ErrorMapping(t *testing.T) {
	t.Parallel()

	r := newDispatchFixture(t)
	r.version = gosnmp.Version1
	r.securityModel = SecurityModelV1

	_, status, _ := r.set([]gosnmp.SnmpPDU{
		{Name: "1.3.6.1.2.1.1.9.0", Type: gosnmp.OctetString, Value: []byte("bad")},
	})
	assert.Equal(t, gosnmp.BadValue, status, "v2 InconsistentValue folds to v1 BadValue")
}

func TestDispatchDeniedReadIsInvisible(t *testing.T) {
	t.Parallel()

	r := newDispatchFixture(t)
	r.securityName = "stranger"

	out, status, _ := r.get([]gosnmp.SnmpPDU{{Name: "1.3.6.1.2.1.1.1.0", Type: gosnmp.Null}})
	require.Equal(t, gosnmp.NoError, status)
	assert.Equal(t, gosnmp.NoSuchObject, out[0].Type)

	next, status, _ := r.getNext([]gosnmp.SnmpPDU{{Name: "1.3.6.1.2.1", Type: gosnmp.Null}})
	require.Equal(t, gosnmp.NoError, status)
	assert.Equal(t, gosnmp.EndOfMibView, next[0].Type)
}
