package snmp

import (
	"fmt"
	"strconv"
	"strings"
)

// OID is an object identifier: an ordered sequence of non-negative
// 32-bit subidentifiers. Values are treated as immutable; operations
// that derive a new OID always allocate.
type OID []uint32

// ParseOID parses a dotted OID string. A leading dot is accepted.
func ParseOID(s string) (OID, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), ".")
	if trimmed == "" {
		return nil, fmt.Errorf("empty OID")
	}
	parts := strings.Split(trimmed, ".")
	oid := make(OID, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid OID %q: %w", s, err)
		}
		oid[i] = uint32(v)
	}
	return oid, nil
}

// MustParseOID parses a dotted OID string and panics on failure.
// Intended for constants and tests.
func MustParseOID(s string) OID {
	oid, err := ParseOID(s)
	if err != nil {
		panic(err)
	}
	return oid
}

// String renders the OID in dotted form without a leading dot.
func (o OID) String() string {
	if len(o) == 0 {
		return ""
	}
	var b strings.Builder
	for i, sub := range o {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.FormatUint(uint64(sub), 10))
	}
	return b.String()
}

// Len returns the number of subidentifiers.
func (o OID) Len() int { return len(o) }

// Clone returns a copy of the OID.
func (o OID) Clone() OID {
	if o == nil {
		return nil
	}
	dup := make(OID, len(o))
	copy(dup, o)
	return dup
}

// Compare orders OIDs lexicographically by subidentifier. A strict
// prefix sorts before any of its extensions.
func (o OID) Compare(other OID) int {
	n := min(len(o), len(other))
	for i := 0; i < n; i++ {
		switch {
		case o[i] < other[i]:
			return -1
		case o[i] > other[i]:
			return 1
		}
	}
	switch {
	case len(o) < len(other):
		return -1
	case len(o) > len(other):
		return 1
	}
	return 0
}

// Equal reports whether both OIDs have identical subidentifiers.
func (o OID) Equal(other OID) bool { return o.Compare(other) == 0 }

// LeftMostCompare compares the first n subidentifiers of both OIDs.
// If either OID is shorter than n, the comparison falls back to the
// common length and then to the length difference.
func (o OID) LeftMostCompare(n int, other OID) int {
	left := o
	if len(left) > n {
		left = left[:n]
	}
	right := other
	if len(right) > n {
		right = right[:n]
	}
	return left.Compare(right)
}

// HasPrefix reports whether prefix is a (non-strict) prefix of o.
func (o OID) HasPrefix(prefix OID) bool {
	if len(prefix) > len(o) {
		return false
	}
	return o.LeftMostCompare(len(prefix), prefix) == 0
}

// NextPeer returns the smallest OID of the same length that is
// strictly greater than o: the last subidentifier incremented by one.
func (o OID) NextPeer() OID {
	if len(o) == 0 {
		return nil
	}
	peer := o.Clone()
	peer[len(peer)-1]++
	return peer
}

// Append returns a new OID with the given subidentifiers appended.
func (o OID) Append(subs ...uint32) OID {
	dup := make(OID, len(o), len(o)+len(subs))
	copy(dup, o)
	return append(dup, subs...)
}

// Trim returns o without its last n subidentifiers.
func (o OID) Trim(n int) OID {
	if n >= len(o) {
		return OID{}
	}
	return o[:len(o)-n].Clone()
}
