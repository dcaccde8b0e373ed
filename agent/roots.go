package agent

import (
	"sort"

	"github.com/stagetec-services/snmpman/snmp"
)

// Roots computes the maximal non-overlapping subtree roots of a
// sorted OID set: a minimal, lexicographically sorted, pairwise
// prefix-free list in which every input OID has exactly one prefix.
//
// Candidates are the longest common prefixes of adjacent OIDs; a
// candidate survives when stripping subidentifiers never lands on a
// shorter candidate, meaning nothing above it covers it. OIDs sharing
// a prefix with no neighbour become their own roots, so single-entry
// walks still register.
func Roots(oids []snmp.OID) []snmp.OID {
	if len(oids) == 0 {
		return nil
	}

	candidates := make([]snmp.OID, 0, len(oids))
	var last snmp.OID
	for _, oid := range oids {
		if last != nil {
			for n := min(len(oid), len(last)); n > 0; n-- {
				if oid.LeftMostCompare(n, last) == 0 {
					candidates = append(candidates, last[:n].Clone())
					break
				}
			}
		}
		last = oid
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Compare(candidates[j]) < 0
	})

	var roots []snmp.OID
	for _, candidate := range candidates {
		if len(candidate) == 0 {
			continue
		}
		trimmed := candidate.Trim(1)
		for len(trimmed) > 0 && !containsOID(candidates, trimmed) {
			trimmed = trimmed.Trim(1)
		}
		if len(trimmed) == 0 && (len(roots) == 0 || !roots[len(roots)-1].Equal(candidate)) {
			roots = append(roots, candidate)
		}
	}

	// cover OIDs that shared a prefix with no neighbour
	for _, oid := range oids {
		if !coveredBy(roots, oid) {
			roots = append(roots, oid.Clone())
		}
	}
	sort.Slice(roots, func(i, j int) bool {
		return roots[i].Compare(roots[j]) < 0
	})
	return roots
}

// containsOID binary-searches a sorted OID slice for an exact match.
func containsOID(sorted []snmp.OID, oid snmp.OID) bool {
	i := sort.Search(len(sorted), func(i int) bool {
		return sorted[i].Compare(oid) >= 0
	})
	return i < len(sorted) && sorted[i].Equal(oid)
}

func coveredBy(roots []snmp.OID, oid snmp.OID) bool {
	for _, root := range roots {
		if oid.HasPrefix(root) {
			return true
		}
	}
	return false
}
