package agent

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagetec-services/snmpman/snmp"
)

func oids(dotted ...string) []snmp.OID {
	out := make([]snmp.OID, len(dotted))
	for i, s := range dotted {
		out[i] = snmp.MustParseOID(s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}

func TestRootsCommonPrefixCollapse(t *testing.T) {
	t.Parallel()

	roots := Roots(oids(
		"1.3.6.1.2.1.1.1.0",
		"1.3.6.1.2.1.1.2.0",
		"1.3.6.1.4.1.9.1.0",
	))
	// the shared 1.3.6.1 prefix wins over the per-subtree candidates
	require.Len(t, roots, 1)
	assert.Equal(t, "1.3.6.1", roots[0].String())
}

func TestRootsSiblingSubtrees(t *testing.T) {
	t.Parallel()

	roots := Roots(oids(
		"1.3.6.1.2.1.1.1.0",
		"1.3.6.1.2.1.1.2.0",
		"2.16.840.1.113883.3.1",
		"2.16.840.1.113883.3.2",
	))
	require.Len(t, roots, 2)
	assert.Equal(t, "1.3.6.1.2.1.1", roots[0].String())
	assert.Equal(t, "2.16.840.1.113883.3", roots[1].String())
}

func TestRootsSingleOID(t *testing.T) {
	t.Parallel()

	roots := Roots(oids("1.3.6.1.2.1.1.1.0"))
	require.Len(t, roots, 1)
	assert.Equal(t, "1.3.6.1.2.1.1.1.0", roots[0].String())
}

func TestRootsNoSharedPrefix(t *testing.T) {
	t.Parallel()

	roots := Roots(oids("1.3.6.1.2.1.1.1.0", "2.2.2"))
	require.Len(t, roots, 2)
	assert.Equal(t, "1.3.6.1.2.1.1.1.0", roots[0].String())
	assert.Equal(t, "2.2.2", roots[1].String())
}

func TestRootsEmptyInput(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Roots(nil))
}

// checkRootInvariants asserts the §-level contract: sorted, pairwise
// prefix-free, and every input OID covered by exactly one root.
func checkRootInvariants(t *testing.T, input []snmp.OID, roots []snmp.OID) {
	t.Helper()

	for i := 1; i < len(roots); i++ {
		assert.Negative(t, roots[i-1].Compare(roots[i]), "roots must be sorted")
	}
	for i, a := range roots {
		for j, b := range roots {
			if i == j {
				continue
			}
			assert.False(t, b.HasPrefix(a), "roots %s and %s overlap", a, b)
		}
	}
	for _, oid := range input {
		covering := 0
		for _, root := range roots {
			if oid.HasPrefix(root) {
				covering++
			}
		}
		assert.Equal(t, 1, covering, "oid %s covered by %d roots", oid, covering)
	}
}

func TestRootsInvariantsOnRandomSets(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 50; round++ {
		count := 2 + rng.Intn(200)
		set := make(map[string]snmp.OID, count)
		for i := 0; i < count; i++ {
			length := 3 + rng.Intn(8)
			oid := make(snmp.OID, length)
			for j := range oid {
				oid[j] = uint32(rng.Intn(5))
			}
			set[oid.String()] = oid
		}
		input := make([]snmp.OID, 0, len(set))
		for _, oid := range set {
			input = append(input, oid)
		}
		sort.Slice(input, func(i, j int) bool { return input[i].Compare(input[j]) < 0 })

		checkRootInvariants(t, input, Roots(input))
	}
}
