package modifier

import (
	"sort"
	"strconv"

	"github.com/stagetec-services/snmpman/snmp"
)

// CommunityContextModifier expands one walk OID into per-VLAN
// community-context bindings instead of mutating a single value. Its
// properties map VLAN numbers to the unsigned value each VLAN's view
// exposes at the OID, the way bridge-MIB port tables differ per VLAN
// community (`community@vlan`).
//
// During assembly the agent asks the modifier for the bindings of one
// (context, oid) pair and drops the original binding.
type CommunityContextModifier struct {
	// values maps a VLAN to the value visible in that VLAN's context.
	values map[uint64]uint64
}

func (m *CommunityContextModifier) Init(properties Properties) error {
	m.values = make(map[uint64]uint64, len(properties))
	for _, key := range properties.Keys() {
		vlan, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			// non-numeric keys (seed, comments) are not VLAN rows
			continue
		}
		m.values[vlan] = properties.GetUnsignedLong(key, 0)
	}
	return nil
}

// Modify is the VariableModifier contract; a community context
// modifier never transforms a single variable in place.
func (m *CommunityContextModifier) Modify(v snmp.Variable) snmp.Variable { return v }

// VariableBindings returns the expanded bindings for oid in the given
// context. A VLAN context yields the VLAN's value at the OID itself;
// the default context yields one row per VLAN, indexed by appending
// the VLAN to the OID; any other context yields nothing.
func (m *CommunityContextModifier) VariableBindings(context string, oid snmp.OID) []snmp.VariableBinding {
	if context == "" {
		vlans := make([]uint64, 0, len(m.values))
		for vlan := range m.values {
			vlans = append(vlans, vlan)
		}
		sort.Slice(vlans, func(i, j int) bool { return vlans[i] < vlans[j] })

		bindings := make([]snmp.VariableBinding, 0, len(vlans))
		for _, vlan := range vlans {
			bindings = append(bindings, snmp.VariableBinding{
				OID:      oid.Append(uint32(vlan)),
				Variable: snmp.Gauge32(m.values[vlan]),
			})
		}
		return bindings
	}

	vlan, err := strconv.ParseUint(context, 10, 64)
	if err != nil {
		return nil
	}
	value, ok := m.values[vlan]
	if !ok {
		return nil
	}
	return []snmp.VariableBinding{{OID: oid.Clone(), Variable: snmp.Gauge32(value)}}
}
