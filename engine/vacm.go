package engine

import (
	"github.com/stagetec-services/snmpman/snmp"
)

// Security models for VACM group membership.
const (
	SecurityModelAny = 0
	SecurityModelV1  = 1
	SecurityModelV2c = 2
	SecurityModelUSM = 3
)

// Security levels.
const (
	NoAuthNoPriv = 1
	AuthNoPriv   = 2
	AuthPriv     = 3
)

// ViewTree is one row of a view family: a subtree that is either
// included in or excluded from the view.
type ViewTree struct {
	Subtree  snmp.OID
	Excluded bool
}

type vacmGroup struct {
	securityModel int
	securityName  string
	groupName     string
}

type vacmAccess struct {
	groupName     string
	context       string
	securityModel int
	securityLevel int
	readView      string
	writeView     string
	notifyView    string
}

// VACM is the view-based access control model: group membership,
// access rows and view trees, consulted per request to decide
// whether a security name may read or write an OID in a context.
type VACM struct {
	groups   []vacmGroup
	accesses []vacmAccess
	views    map[string][]ViewTree
}

// NewVACM returns an empty model.
func NewVACM() *VACM {
	return &VACM{views: make(map[string][]ViewTree)}
}

// AddGroup maps a security name under a security model to a group.
func (v *VACM) AddGroup(securityModel int, securityName, groupName string) {
	v.groups = append(v.groups, vacmGroup{
		securityModel: securityModel,
		securityName:  securityName,
		groupName:     groupName,
	})
}

// AddAccess installs an access row for a group in a context.
func (v *VACM) AddAccess(groupName, context string, securityModel, securityLevel int, readView, writeView, notifyView string) {
	v.accesses = append(v.accesses, vacmAccess{
		groupName:     groupName,
		context:       context,
		securityModel: securityModel,
		securityLevel: securityLevel,
		readView:      readView,
		writeView:     writeView,
		notifyView:    notifyView,
	})
}

// AddViewTree appends a subtree row to the named view family.
func (v *VACM) AddViewTree(viewName string, subtree snmp.OID, excluded bool) {
	v.views[viewName] = append(v.views[viewName], ViewTree{Subtree: subtree, Excluded: excluded})
}

// groupOf resolves the group of a security name under a model.
func (v *VACM) groupOf(securityModel int, securityName string) (string, bool) {
	for _, g := range v.groups {
		if g.securityName != securityName {
			continue
		}
		if g.securityModel == securityModel || g.securityModel == SecurityModelAny {
			return g.groupName, true
		}
	}
	return "", false
}

// accessOf finds the access row for a group in a context. The engine
// serves communities at noAuthNoPriv, so rows demanding a stronger
// level do not match.
func (v *VACM) accessOf(groupName, context string, securityModel, securityLevel int) (vacmAccess, bool) {
	for _, a := range v.accesses {
		if a.groupName != groupName || a.context != context {
			continue
		}
		if a.securityModel != SecurityModelAny && a.securityModel != securityModel {
			continue
		}
		if a.securityLevel > securityLevel {
			continue
		}
		return a, true
	}
	return vacmAccess{}, false
}

// inView reports whether oid is included by the named view family.
// The longest matching subtree row wins, as RFC 3415 prescribes.
func (v *VACM) inView(viewName string, oid snmp.OID) bool {
	rows, ok := v.views[viewName]
	if !ok {
		return false
	}
	best := -1
	included := false
	for _, row := range rows {
		if !oid.HasPrefix(row.Subtree) {
			continue
		}
		if row.Subtree.Len() > best {
			best = row.Subtree.Len()
			included = !row.Excluded
		}
	}
	return best >= 0 && included
}

// CanRead reports whether the security name may read oid in context.
func (v *VACM) CanRead(securityModel int, securityName, context string, oid snmp.OID) bool {
	return v.check(securityModel, securityName, context, oid, false)
}

// CanWrite reports whether the security name may write oid in context.
func (v *VACM) CanWrite(securityModel int, securityName, context string, oid snmp.OID) bool {
	return v.check(securityModel, securityName, context, oid, true)
}

func (v *VACM) check(securityModel int, securityName, context string, oid snmp.OID, write bool) bool {
	group, ok := v.groupOf(securityModel, securityName)
	if !ok {
		return false
	}
	access, ok := v.accessOf(group, context, securityModel, NoAuthNoPriv)
	if !ok {
		return false
	}
	view := access.readView
	if write {
		view = access.writeView
	}
	return v.inView(view, oid)
}
