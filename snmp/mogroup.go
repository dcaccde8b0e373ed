package snmp

import (
	"fmt"
	"sync"

	"github.com/google/btree"
	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"
)

const btreeDegree = 32

type moEntry struct {
	oid      OID
	variable Variable
}

func moEntryLess(a, b moEntry) bool { return a.oid.Compare(b.oid) < 0 }

// MOGroup serves a subtree of variable bindings as one managed
// object. The binding map is sorted; the scope is
// [root, root.NextPeer()) with the lower bound included.
//
// Reads take the group lock in shared mode, the SET phases take it
// exclusively, so concurrent GET/GETNEXT stay safe against a commit
// mutating the map.
type MOGroup struct {
	mu sync.RWMutex

	root     OID
	scope    Scope
	bindings *btree.BTreeG[moEntry]

	// undo holds the pre-SET values stashed by prepare.
	undo map[string]moEntry

	logger *zap.Logger
}

// NewMOGroup builds a group from the bindings under root. Bindings
// outside the group's scope are ignored.
func NewMOGroup(root OID, bindings []VariableBinding, logger *zap.Logger) *MOGroup {
	group := newEmptyGroup(root, logger)
	for _, binding := range bindings {
		if group.scope.Covers(binding.OID) {
			group.bindings.ReplaceOrInsert(moEntry{oid: binding.OID, variable: binding.Variable})
		}
	}
	return group
}

// NewSingleMOGroup builds a group holding exactly one binding, used
// for the per-OID registration fallback.
func NewSingleMOGroup(root OID, oid OID, variable Variable, logger *zap.Logger) *MOGroup {
	group := newEmptyGroup(root, logger)
	group.bindings.ReplaceOrInsert(moEntry{oid: oid, variable: variable})
	return group
}

func newEmptyGroup(root OID, logger *zap.Logger) *MOGroup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MOGroup{
		root:     root,
		scope:    SubtreeScope(root),
		bindings: btree.NewG(btreeDegree, moEntryLess),
		undo:     make(map[string]moEntry),
		logger:   logger,
	}
}

// Root returns the group's root OID.
func (g *MOGroup) Root() OID { return g.root }

// Len returns the number of bindings held.
func (g *MOGroup) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.bindings.Len()
}

// Scope implements ManagedObject.
func (g *MOGroup) Scope() Scope { return g.scope }

// Find returns the smallest stored OID satisfying the range query:
// the first key >= query.LowerBound, advanced past it when the lower
// bound is exclusive. Nil when nothing in range remains.
func (g *MOGroup) Find(query Scope) OID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	first, second, found := g.tailKeys(query.LowerBound)
	if !found {
		return nil
	}
	candidate := first
	if first.Equal(query.LowerBound) && !query.LowerIncluded {
		if second == nil {
			return nil
		}
		candidate = second
	}
	if !query.Covers(candidate) {
		return nil
	}
	return candidate
}

// Get implements ManagedObject. A missing OID answers noSuchInstance;
// a present one answers a clone of the stored variable.
func (g *MOGroup) Get(sub *SubRequest) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	entry, ok := g.bindings.Get(moEntry{oid: sub.Binding.OID})
	if !ok {
		sub.Binding.Variable = NoSuchInstance
	} else {
		g.setReply(sub, entry.oid, entry.variable)
	}
	sub.Completed()
}

// Next implements ManagedObject. It resolves the query scope to the
// next stored binding and writes OID and value into the subrequest.
// False means the engine should move on (endOfMibView handling).
func (g *MOGroup) Next(sub *SubRequest) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	query := sub.Query.Scope
	first, second, found := g.tailKeys(query.LowerBound)
	if !found {
		return false
	}
	if first.Equal(query.LowerBound) && !query.LowerIncluded {
		if second == nil {
			return false
		}
		first = second
	}
	entry, ok := g.bindings.Get(moEntry{oid: first})
	if !ok {
		sub.Binding.Variable = NoSuchInstance
	} else {
		g.setReply(sub, entry.oid, entry.variable)
		sub.Binding.OID = first.Clone()
	}
	sub.Completed()
	return true
}

// setReply clones the stored variable into the reply binding. Clones
// of modified variables can come back with a foreign syntax when a
// modifier misbehaves; those replies are dropped with OID context so
// one bad OID cannot poison the PDU.
func (g *MOGroup) setReply(sub *SubRequest, oid OID, variable Variable) {
	clone := variable.Clone()
	if clone == nil || clone.Syntax() != variable.Syntax() {
		g.logger.Error("variable clone changed syntax",
			zap.String("oid", oid.String()),
			zap.String("group", g.root.String()))
		return
	}
	sub.Binding.Variable = clone
}

// Prepare implements the first SET phase: scope and syntax checks,
// then stashing the previous value for undo. Subrequests with index 0
// are row-status columns and are skipped.
func (g *MOGroup) Prepare(sub *SubRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if sub.Index > 0 {
		oid := sub.Binding.OID
		if g.scope.Covers(oid) {
			newValue := sub.Binding.Variable
			oldValue := newValue
			if entry, ok := g.bindings.Get(moEntry{oid: oid}); ok {
				oldValue = entry.variable
			}
			if newValue.Syntax() != oldValue.Syntax() {
				sub.Status.SetErrorStatus(gosnmp.InconsistentValue)
			} else {
				g.undo[oid.String()] = moEntry{oid: oid, variable: oldValue}
			}
		} else {
			sub.Status.SetErrorStatus(gosnmp.NoCreation)
		}
	}
	sub.Status.PhaseComplete = true
}

// Commit writes the new value, or flags COMMIT_FAILED when an earlier
// phase recorded an error on this subrequest.
func (g *MOGroup) Commit(sub *SubRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if sub.Index > 0 {
		if sub.Status.ErrorStatus != gosnmp.NoError {
			sub.Status.SetErrorStatus(gosnmp.CommitFailed)
		} else {
			g.bindings.ReplaceOrInsert(moEntry{
				oid:      sub.Binding.OID,
				variable: sub.Binding.Variable,
			})
		}
	}
	sub.Status.PhaseComplete = true
}

// Undo restores every stashed entry and moves the request to the
// cleanup phase. With an empty buffer this is a no-op.
func (g *MOGroup) Undo(sub *SubRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, entry := range g.undo {
		g.bindings.ReplaceOrInsert(entry)
	}
	clear(g.undo)
	sub.Request().SetPhase(Phase2PCCleanup)
}

// Cleanup drops the undo buffer.
func (g *MOGroup) Cleanup(sub *SubRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()

	clear(g.undo)
	sub.Status.PhaseComplete = true
}

// tailKeys returns the first two stored keys >= lower.
func (g *MOGroup) tailKeys(lower OID) (first, second OID, found bool) {
	g.bindings.AscendGreaterOrEqual(moEntry{oid: lower}, func(entry moEntry) bool {
		if first == nil {
			first = entry.oid
			return true
		}
		second = entry.oid
		return false
	})
	return first, second, first != nil
}

// Walk visits every binding in order with a shared lock held.
func (g *MOGroup) Walk(visit func(oid OID, variable Variable) bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	g.bindings.Ascend(func(entry moEntry) bool {
		return visit(entry.oid, entry.variable)
	})
}

func (g *MOGroup) String() string {
	return fmt.Sprintf("MOGroup[root=%s, bindings=%d]", g.root, g.Len())
}
