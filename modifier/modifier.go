// Package modifier mutates walk-seeded variables on each read so
// simulated devices produce plausible time-varying values: counters
// advance, uptime ticks, strings rotate. Modifiers are bound to OID
// prefixes by the device descriptor and applied lazily through
// ModifiedVariable wrappers.
package modifier

import (
	"fmt"

	"github.com/stagetec-services/snmpman/snmp"
)

// VariableModifier produces a new value from the current one. A
// modifier that receives a variable of a type it does not handle
// returns it unchanged; ModifiedVariable logs and skips results whose
// syntax diverges from the base.
type VariableModifier interface {
	// Init consumes the binding's configured properties.
	Init(properties Properties) error
	// Modify returns the next value derived from v.
	Modify(v snmp.Variable) snmp.Variable
}

// factories maps the class tag of the device descriptor to a
// constructor. Tags name the variable kind the modifier drives.
var factories = map[string]func() VariableModifier{
	"Integer32Modifier":        func() VariableModifier { return &Integer32Modifier{} },
	"Gauge32Modifier":          func() VariableModifier { return &Gauge32Modifier{} },
	"Counter32Modifier":        func() VariableModifier { return &Counter32Modifier{} },
	"Counter64Modifier":        func() VariableModifier { return &Counter64Modifier{} },
	"TimeTicksModifier":        func() VariableModifier { return &TimeTicksModifier{} },
	"SysUpTimeModifier":        func() VariableModifier { return &SysUpTimeModifier{} },
	"OctetStringModifier":      func() VariableModifier { return &OctetStringModifier{} },
	"CommunityContextModifier": func() VariableModifier { return &CommunityContextModifier{} },
}

// New instantiates and initializes the modifier registered under the
// class tag. Unknown tags are an error the caller logs and tolerates.
func New(class string, properties Properties) (VariableModifier, error) {
	factory, ok := factories[class]
	if !ok {
		return nil, fmt.Errorf("unknown modifier class %q", class)
	}
	m := factory()
	if err := m.Init(properties); err != nil {
		return nil, fmt.Errorf("init modifier %s: %w", class, err)
	}
	return m, nil
}

// Classes returns the registered class tags.
func Classes() []string {
	classes := make([]string, 0, len(factories))
	for class := range factories {
		classes = append(classes, class)
	}
	return classes
}

// Binding ties a modifier to the OID prefix it applies to.
type Binding struct {
	prefix   snmp.OID
	class    string
	modifier VariableModifier
}

// NewBinding builds a binding for the dotted prefix and class tag.
func NewBinding(prefix string, class string, properties Properties) (Binding, error) {
	oid, err := snmp.ParseOID(prefix)
	if err != nil {
		return Binding{}, fmt.Errorf("modifier prefix: %w", err)
	}
	m, err := New(class, properties)
	if err != nil {
		return Binding{}, err
	}
	return Binding{prefix: oid, class: class, modifier: m}, nil
}

// IsApplicable reports whether oid lies under the binding's prefix.
func (b Binding) IsApplicable(oid snmp.OID) bool { return oid.HasPrefix(b.prefix) }

// Prefix returns the bound OID prefix.
func (b Binding) Prefix() snmp.OID { return b.prefix }

// Class returns the bound class tag.
func (b Binding) Class() string { return b.class }

// Modifier returns the initialized modifier instance. The instance is
// shared by every OID the binding applies to, as the step state of a
// counter is per-binding, not per-OID.
func (b Binding) Modifier() VariableModifier { return b.modifier }

func (b Binding) String() string {
	return fmt.Sprintf("%s@%s", b.class, b.prefix)
}
