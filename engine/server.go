// Package engine is the per-agent SNMP engine: a context-aware
// registry of managed objects, a UDP transport with a small worker
// pool, community-to-context resolution with VACM-style access
// tables, and the boot-counter/engine-configuration persistence.
//
// The engine speaks SNMPv1 and v2c. Packet encoding and decoding is
// done by gosnmp; the engine owns dispatch and the managed-object
// callbacks.
package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/btree"
	"go.uber.org/zap"

	"github.com/stagetec-services/snmpman/snmp"
)

// ErrDuplicateRegistration is returned when a managed object's scope
// overlaps an existing registration in the same context.
var ErrDuplicateRegistration = errors.New("duplicate registration")

type registration struct {
	scope snmp.ContextScope
	mo    snmp.ManagedObject
}

func registrationLess(a, b registration) bool {
	if a.scope.Context != b.scope.Context {
		return a.scope.Context < b.scope.Context
	}
	if c := a.scope.LowerBound.Compare(b.scope.LowerBound); c != 0 {
		return c < 0
	}
	return a.scope.UpperBound.Compare(b.scope.UpperBound) < 0
}

// MOServer is the registry mapping context-qualified OID ranges to
// managed objects. It is mutated during startup and shutdown only;
// lookups run concurrently from the request workers.
type MOServer struct {
	mu       sync.RWMutex
	registry *btree.BTreeG[registration]
	contexts map[string]struct{}
	logger   *zap.Logger
}

// NewMOServer returns a registry with the default context present.
func NewMOServer(logger *zap.Logger) *MOServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MOServer{
		registry: btree.NewG(8, registrationLess),
		contexts: map[string]struct{}{"": {}},
		logger:   logger.Named("moserver"),
	}
}

// AddContext makes a context known to the server. Lookups for
// unknown contexts always miss.
func (s *MOServer) AddContext(context string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[context] = struct{}{}
}

// HasContext reports whether the context has been added.
func (s *MOServer) HasContext(context string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.contexts[context]
	return ok
}

// Register installs a managed object under the given context. The
// registration fails when an existing scope in the context overlaps
// the object's scope.
func (s *MOServer) Register(mo snmp.ManagedObject, context string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scope := snmp.ContextScope{Scope: mo.Scope(), Context: context}
	if existing := s.lookupLocked(scope); existing != nil {
		return fmt.Errorf("%w: %s overlaps existing object", ErrDuplicateRegistration, scope)
	}
	s.contexts[context] = struct{}{}
	s.registry.ReplaceOrInsert(registration{scope: scope, mo: mo})
	return nil
}

// RegisterOverride installs a managed object even when its scope
// overlaps an existing registration. Lookups prefer the registration
// with the smallest lower bound, so an override inside a larger
// registered scope shadows it only for exact-scope matches.
func (s *MOServer) RegisterOverride(mo snmp.ManagedObject, context string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scope := snmp.ContextScope{Scope: mo.Scope(), Context: context}
	s.contexts[context] = struct{}{}
	s.registry.ReplaceOrInsert(registration{scope: scope, mo: mo})
}

// Unregister removes the managed object from the context. A nil
// context removes it from every context.
func (s *MOServer) Unregister(mo snmp.ManagedObject, context *string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var victims []registration
	s.registry.Ascend(func(r registration) bool {
		if r.mo == mo && (context == nil || r.scope.Context == *context) {
			victims = append(victims, r)
		}
		return true
	})
	for _, victim := range victims {
		s.registry.Delete(victim)
	}
}

// UnregisterContext drops every registration in the context whose
// scope intersects the subtree below root.
func (s *MOServer) UnregisterContext(context string, root snmp.OID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := snmp.ContextSubtreeScope(context, root)
	var victims []registration
	s.registry.Ascend(func(r registration) bool {
		if r.scope.Context == context && r.scope.Intersects(query) {
			victims = append(victims, r)
		}
		return true
	})
	for _, victim := range victims {
		s.registry.Delete(victim)
	}
	return len(victims)
}

// Lookup returns the registered object with the smallest scope lower
// bound that intersects the query, or nil.
func (s *MOServer) Lookup(query snmp.ContextScope) snmp.ManagedObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupLocked(query)
}

func (s *MOServer) lookupLocked(query snmp.ContextScope) snmp.ManagedObject {
	var found snmp.ManagedObject
	visit := func(r registration) bool {
		if r.scope.Intersects(query) {
			found = r.mo
			return false
		}
		return true
	}
	if query.AnyContext {
		s.registry.Ascend(visit)
		return found
	}
	// entries sort by context first, so pivot to the context's range
	pivot := registration{scope: snmp.ContextScope{Context: query.Context}}
	s.registry.AscendGreaterOrEqual(pivot, func(r registration) bool {
		if r.scope.Context != query.Context {
			return false
		}
		return visit(r)
	})
	return found
}

// Registrations returns the context's registrations in scope order.
// The request workers walk this for GETNEXT traversal across group
// boundaries.
func (s *MOServer) Registrations(context string) []snmp.ManagedObject {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var objects []snmp.ManagedObject
	pivot := registration{scope: snmp.ContextScope{Context: context}}
	s.registry.AscendGreaterOrEqual(pivot, func(r registration) bool {
		if r.scope.Context != context {
			return false
		}
		objects = append(objects, r.mo)
		return true
	})
	return objects
}

// Len returns the number of registrations across all contexts.
func (s *MOServer) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Len()
}
