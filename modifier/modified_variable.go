package modifier

import (
	"sync"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/stagetec-services/snmpman/snmp"
)

// ModifiedVariable wraps a walk variable with the ordered modifiers
// applicable to its OID. The engine obtains reply values by cloning,
// so every read advances the value through the modifier chain. The
// syntax tag never changes from the base's; a modifier result with a
// foreign tag is skipped and logged.
type ModifiedVariable struct {
	mu sync.Mutex

	current   snmp.Variable
	syntax    gosnmp.Asn1BER
	modifiers []VariableModifier
	logger    *zap.Logger
}

// NewModifiedVariable wraps base with the given modifier chain.
func NewModifiedVariable(base snmp.Variable, modifiers []VariableModifier, logger *zap.Logger) *ModifiedVariable {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModifiedVariable{
		current:   base,
		syntax:    base.Syntax(),
		modifiers: modifiers,
		logger:    logger,
	}
}

// Syntax always reports the base variable's tag.
func (v *ModifiedVariable) Syntax() gosnmp.Asn1BER { return v.syntax }

// Clone advances the stored value through the modifier chain and
// returns the new value. This is the read path: the engine clones the
// stored variable to build each reply.
func (v *ModifiedVariable) Clone() snmp.Variable {
	v.mu.Lock()
	defer v.mu.Unlock()

	value := v.current
	for _, m := range v.modifiers {
		next := m.Modify(value)
		if next == nil || next.Syntax() != v.syntax {
			v.logger.Warn("modifier returned unexpected syntax, skipped",
				zap.String("value", value.String()))
			continue
		}
		value = next
	}
	v.current = value
	return value.Clone()
}

// String renders the current value without advancing it.
func (v *ModifiedVariable) String() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current.String()
}

// Equal compares the current value without advancing it.
func (v *ModifiedVariable) Equal(other snmp.Variable) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current.Equal(other)
}
