package modifier

import (
	"fmt"
	"sync"

	"github.com/stagetec-services/snmpman/snmp"
)

// OctetStringModifier replaces an OCTET STRING with one of a
// configured list of values, either uniformly at random or rotating
// in order.
type OctetStringModifier struct {
	mu     sync.Mutex
	rng    *rng
	values []string
	rotate bool
	index  int
}

func (m *OctetStringModifier) Init(properties Properties) error {
	m.rng = newRNG(properties)
	m.values = properties.GetStringSlice("values")
	if len(m.values) == 0 {
		return fmt.Errorf("octet string modifier needs a values list")
	}
	switch mode := properties.GetString("mode", "random"); mode {
	case "random":
		m.rotate = false
	case "rotate":
		m.rotate = true
	default:
		return fmt.Errorf("unknown octet string mode %q", mode)
	}
	return nil
}

func (m *OctetStringModifier) Modify(v snmp.Variable) snmp.Variable {
	if _, ok := v.(snmp.OctetString); !ok {
		return v
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rotate {
		value := m.values[m.index%len(m.values)]
		m.index++
		return snmp.NewOctetString(value)
	}
	return snmp.NewOctetString(m.values[m.rng.intn(int64(len(m.values)-1))])
}
