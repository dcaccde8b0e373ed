package snmp

import (
	"fmt"

	"github.com/gosnmp/gosnmp"
)

// ToPDU renders a binding as a gosnmp PDU for the wire. ModifiedVariable
// wrappers must be resolved (cloned) before calling.
func ToPDU(oid OID, v Variable) gosnmp.SnmpPDU {
	pdu := gosnmp.SnmpPDU{
		Name: "." + oid.String(),
		Type: v.Syntax(),
	}
	switch value := v.(type) {
	case Integer32:
		pdu.Value = int(value)
	case Gauge32:
		pdu.Value = uint(value)
	case Counter32:
		pdu.Value = uint(value)
	case Counter64:
		pdu.Value = uint64(value)
	case TimeTicks:
		pdu.Value = uint32(value)
	case OctetString:
		pdu.Value = []byte(value)
	case ObjectIdentifier:
		pdu.Value = "." + value.Value.String()
	case IPAddress:
		pdu.Value = value.Value.String()
	case Opaque:
		pdu.Value = []byte(value)
	case BitString:
		pdu.Value = []byte(value)
	case Null:
		pdu.Value = nil
	default:
		// Wrappers answer through Clone; anything else is a bug in the
		// caller, surfaced as a NULL on the wire.
		pdu.Type = gosnmp.Null
		pdu.Value = nil
	}
	return pdu
}

// FromPDU converts a decoded gosnmp PDU into the Variable model. The
// payload shapes gosnmp produces vary by type and version, so numeric
// conversions are deliberately liberal.
func FromPDU(pdu gosnmp.SnmpPDU) (Variable, error) {
	switch pdu.Type {
	case gosnmp.Integer:
		n, err := toInt64(pdu.Value)
		if err != nil {
			return nil, err
		}
		return Integer32(n), nil
	case gosnmp.Gauge32, gosnmp.Uinteger32:
		n, err := toUint64(pdu.Value)
		if err != nil {
			return nil, err
		}
		return Gauge32(n), nil
	case gosnmp.Counter32:
		n, err := toUint64(pdu.Value)
		if err != nil {
			return nil, err
		}
		return Counter32(n), nil
	case gosnmp.Counter64:
		n, err := toUint64(pdu.Value)
		if err != nil {
			return nil, err
		}
		return Counter64(n), nil
	case gosnmp.TimeTicks:
		n, err := toUint64(pdu.Value)
		if err != nil {
			return nil, err
		}
		return TimeTicks(n), nil
	case gosnmp.OctetString:
		switch raw := pdu.Value.(type) {
		case []byte:
			return OctetString(raw).Clone(), nil
		case string:
			return OctetString(raw), nil
		default:
			return nil, fmt.Errorf("octet string payload %T", pdu.Value)
		}
	case gosnmp.ObjectIdentifier:
		raw, ok := pdu.Value.(string)
		if !ok {
			return nil, fmt.Errorf("object identifier payload %T", pdu.Value)
		}
		oid, err := ParseOID(raw)
		if err != nil {
			return nil, err
		}
		return ObjectIdentifier{Value: oid}, nil
	case gosnmp.IPAddress:
		raw, ok := pdu.Value.(string)
		if !ok {
			return nil, fmt.Errorf("ip address payload %T", pdu.Value)
		}
		return NewIPAddress(raw), nil
	case gosnmp.Opaque:
		raw, ok := pdu.Value.([]byte)
		if !ok {
			return nil, fmt.Errorf("opaque payload %T", pdu.Value)
		}
		return Opaque(raw).Clone(), nil
	case gosnmp.BitString:
		raw, ok := pdu.Value.([]byte)
		if !ok {
			return nil, fmt.Errorf("bit string payload %T", pdu.Value)
		}
		return BitString(raw).Clone(), nil
	case gosnmp.Null:
		return NullValue, nil
	case gosnmp.NoSuchObject:
		return NoSuchObject, nil
	case gosnmp.NoSuchInstance:
		return NoSuchInstance, nil
	case gosnmp.EndOfMibView:
		return EndOfMibView, nil
	default:
		return nil, fmt.Errorf("unsupported variable type %v", pdu.Type)
	}
}

func toInt64(value interface{}) (int64, error) {
	switch n := value.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("integer payload %T", value)
	}
}

func toUint64(value interface{}) (uint64, error) {
	switch n := value.(type) {
	case uint:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("negative unsigned payload %d", n)
		}
		return uint64(n), nil
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("negative unsigned payload %d", n)
		}
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("unsigned payload %T", value)
	}
}
