package engine

import (
	"sync"
)

// CommunityTable maps community strings to the context they select,
// the com2sec step of the engine: `<community>` selects the default
// context, `<community>@<vlan>` the VLAN's context.
type CommunityTable struct {
	mu       sync.RWMutex
	contexts map[string]string
}

// NewCommunityTable returns an empty table.
func NewCommunityTable() *CommunityTable {
	return &CommunityTable{contexts: make(map[string]string)}
}

// Add registers a community string selecting the given context. The
// community doubles as the security name for VACM checks.
func (t *CommunityTable) Add(community, context string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.contexts[community] = context
}

// Resolve returns the context selected by the community, and whether
// the community is known at all.
func (t *CommunityTable) Resolve(community string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	context, ok := t.contexts[community]
	return context, ok
}

// Len returns the number of registered communities.
func (t *CommunityTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.contexts)
}
