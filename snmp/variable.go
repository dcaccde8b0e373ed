package snmp

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"
)

// Variable is a tagged SNMP value. Implementations are immutable
// except for ModifiedVariable-style wrappers, which advance their
// value on Clone; callers that hand a Variable to the wire must
// therefore always operate on the result of Clone.
type Variable interface {
	// Syntax returns the BER tag identifying the value type.
	Syntax() gosnmp.Asn1BER
	// Clone returns a deep copy of the variable.
	Clone() Variable
	// Equal reports identity on (syntax, payload).
	Equal(other Variable) bool

	fmt.Stringer
}

// Integer32 is a signed 32-bit INTEGER value.
type Integer32 int32

func (v Integer32) Syntax() gosnmp.Asn1BER { return gosnmp.Integer }
func (v Integer32) Clone() Variable        { return v }
func (v Integer32) String() string         { return strconv.FormatInt(int64(v), 10) }

func (v Integer32) Equal(other Variable) bool {
	o, ok := other.(Integer32)
	return ok && o == v
}

// Gauge32 is an unsigned 32-bit gauge (SMI Unsigned32).
type Gauge32 uint32

func (v Gauge32) Syntax() gosnmp.Asn1BER { return gosnmp.Gauge32 }
func (v Gauge32) Clone() Variable        { return v }
func (v Gauge32) String() string         { return strconv.FormatUint(uint64(v), 10) }

func (v Gauge32) Equal(other Variable) bool {
	o, ok := other.(Gauge32)
	return ok && o == v
}

// Counter32 is an unsigned 32-bit monotonic counter.
type Counter32 uint32

func (v Counter32) Syntax() gosnmp.Asn1BER { return gosnmp.Counter32 }
func (v Counter32) Clone() Variable        { return v }
func (v Counter32) String() string         { return strconv.FormatUint(uint64(v), 10) }

func (v Counter32) Equal(other Variable) bool {
	o, ok := other.(Counter32)
	return ok && o == v
}

// Counter64 is an unsigned 64-bit monotonic counter.
type Counter64 uint64

func (v Counter64) Syntax() gosnmp.Asn1BER { return gosnmp.Counter64 }
func (v Counter64) Clone() Variable        { return v }
func (v Counter64) String() string         { return strconv.FormatUint(uint64(v), 10) }

func (v Counter64) Equal(other Variable) bool {
	o, ok := other.(Counter64)
	return ok && o == v
}

// TimeTicks counts hundredths of a second.
type TimeTicks uint32

func (v TimeTicks) Syntax() gosnmp.Asn1BER { return gosnmp.TimeTicks }
func (v TimeTicks) Clone() Variable        { return v }
func (v TimeTicks) String() string         { return strconv.FormatUint(uint64(v), 10) }

func (v TimeTicks) Equal(other Variable) bool {
	o, ok := other.(TimeTicks)
	return ok && o == v
}

// OctetString is an arbitrary byte string.
type OctetString []byte

// NewOctetString builds an OctetString from a Go string.
func NewOctetString(s string) OctetString { return OctetString(s) }

func (v OctetString) Syntax() gosnmp.Asn1BER { return gosnmp.OctetString }

func (v OctetString) Clone() Variable {
	dup := make(OctetString, len(v))
	copy(dup, v)
	return dup
}

func (v OctetString) String() string { return string(v) }

func (v OctetString) Equal(other Variable) bool {
	o, ok := other.(OctetString)
	return ok && bytes.Equal(o, v)
}

// ObjectIdentifier is an OID-valued variable.
type ObjectIdentifier struct {
	Value OID
}

func (v ObjectIdentifier) Syntax() gosnmp.Asn1BER { return gosnmp.ObjectIdentifier }
func (v ObjectIdentifier) Clone() Variable        { return ObjectIdentifier{Value: v.Value.Clone()} }
func (v ObjectIdentifier) String() string         { return v.Value.String() }

func (v ObjectIdentifier) Equal(other Variable) bool {
	o, ok := other.(ObjectIdentifier)
	return ok && o.Value.Equal(v.Value)
}

// IPAddress is an IPv4 application type.
type IPAddress struct {
	Value net.IP
}

// NewIPAddress parses a dotted-quad address; invalid input yields the
// zero address, matching the permissive walk parser policy.
func NewIPAddress(s string) IPAddress {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		ip = net.IPv4zero
	}
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	return IPAddress{Value: ip}
}

func (v IPAddress) Syntax() gosnmp.Asn1BER { return gosnmp.IPAddress }

func (v IPAddress) Clone() Variable {
	dup := make(net.IP, len(v.Value))
	copy(dup, v.Value)
	return IPAddress{Value: dup}
}

func (v IPAddress) String() string { return v.Value.String() }

func (v IPAddress) Equal(other Variable) bool {
	o, ok := other.(IPAddress)
	return ok && o.Value.Equal(v.Value)
}

// Opaque carries opaque BER-wrapped payloads verbatim.
type Opaque []byte

func (v Opaque) Syntax() gosnmp.Asn1BER { return gosnmp.Opaque }

func (v Opaque) Clone() Variable {
	dup := make(Opaque, len(v))
	copy(dup, v)
	return dup
}

func (v Opaque) String() string { return fmt.Sprintf("%x", []byte(v)) }

func (v Opaque) Equal(other Variable) bool {
	o, ok := other.(Opaque)
	return ok && bytes.Equal(o, v)
}

// BitString is the (obsolete) BITS construct, kept verbatim as bytes.
type BitString []byte

func (v BitString) Syntax() gosnmp.Asn1BER { return gosnmp.BitString }

func (v BitString) Clone() Variable {
	dup := make(BitString, len(v))
	copy(dup, v)
	return dup
}

func (v BitString) String() string { return fmt.Sprintf("%x", []byte(v)) }

func (v BitString) Equal(other Variable) bool {
	o, ok := other.(BitString)
	return ok && bytes.Equal(o, v)
}

// nullKind distinguishes plain NULL from the v2c exception markers.
type nullKind int

const (
	nullPlain nullKind = iota
	nullNoSuchObject
	nullNoSuchInstance
	nullEndOfMibView
)

// Null is the NULL value and the carrier of the three SNMPv2
// exception markers. Use the package singletons for the markers.
type Null struct {
	kind nullKind
}

// Distinguished Null singletons per SNMPv2c exception semantics.
var (
	NullValue      = Null{kind: nullPlain}
	NoSuchObject   = Null{kind: nullNoSuchObject}
	NoSuchInstance = Null{kind: nullNoSuchInstance}
	EndOfMibView   = Null{kind: nullEndOfMibView}
)

func (v Null) Syntax() gosnmp.Asn1BER {
	switch v.kind {
	case nullNoSuchObject:
		return gosnmp.NoSuchObject
	case nullNoSuchInstance:
		return gosnmp.NoSuchInstance
	case nullEndOfMibView:
		return gosnmp.EndOfMibView
	default:
		return gosnmp.Null
	}
}

func (v Null) Clone() Variable { return v }

func (v Null) String() string {
	switch v.kind {
	case nullNoSuchObject:
		return "noSuchObject"
	case nullNoSuchInstance:
		return "noSuchInstance"
	case nullEndOfMibView:
		return "endOfMibView"
	default:
		return "null"
	}
}

func (v Null) Equal(other Variable) bool {
	o, ok := other.(Null)
	return ok && o.kind == v.kind
}

// IsException reports whether v is one of the v2c exception markers
// rather than a data value.
func IsException(v Variable) bool {
	n, ok := v.(Null)
	return ok && n.kind != nullPlain
}

// VariableBinding pairs an OID with its Variable. An ordered slice of
// these is the in-memory form of a walk.
type VariableBinding struct {
	OID      OID
	Variable Variable
}
