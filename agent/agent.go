// Package agent assembles virtual SNMP agents: it reads the walk,
// applies the device's modifiers per community context, extracts the
// subtree roots and registers managed-object groups with the agent's
// SNMP engine.
package agent

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/stagetec-services/snmpman/config"
	"github.com/stagetec-services/snmpman/engine"
	"github.com/stagetec-services/snmpman/modifier"
	"github.com/stagetec-services/snmpman/snmp"
	"github.com/stagetec-services/snmpman/walk"
)

// SnmpmanAgent simulates one SNMP-capable device on one UDP endpoint.
type SnmpmanAgent struct {
	configuration *config.AgentConfiguration
	engine        *engine.Engine

	// groups tracks only the managed objects actually registered, so
	// shutdown unregisters exactly what registration installed.
	groups []snmp.ManagedObject

	logger *zap.Logger
}

// New builds the agent and its engine. The UDP socket stays closed
// until Execute.
func New(configuration *config.AgentConfiguration, logger *zap.Logger) (*SnmpmanAgent, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	eng, err := engine.New(configuration.Name, configuration.Address(), logger)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", configuration.Name, err)
	}
	return &SnmpmanAgent{
		configuration: configuration,
		engine:        eng,
		logger:        logger.Named("agent").With(zap.String("agent", configuration.Name)),
	}, nil
}

// Name returns the agent's configured name.
func (a *SnmpmanAgent) Name() string { return a.configuration.Name }

// Engine exposes the agent's SNMP engine.
func (a *SnmpmanAgent) Engine() *engine.Engine { return a.engine }

// Execute initializes persistence, builds and registers the managed
// objects for every context and starts serving. A walk that cannot be
// read or an endpoint that cannot bind fails this agent.
func (a *SnmpmanAgent) Execute() error {
	if err := a.engine.InitPersistence(a.configuration.Walk); err != nil {
		return fmt.Errorf("agent %s: %w", a.configuration.Name, err)
	}

	rawBindings, err := walk.Read(a.configuration.Walk, a.logger)
	if err != nil {
		return fmt.Errorf("agent %s: %w", a.configuration.Name, err)
	}

	a.registerManagedObjects(rawBindings)
	a.registerCommunities()
	a.registerViews()

	if err := a.engine.Start(); err != nil {
		return fmt.Errorf("agent %s: %w", a.configuration.Name, err)
	}
	return nil
}

// Stop shuts the engine down and unregisters this agent's groups.
func (a *SnmpmanAgent) Stop() {
	a.engine.Stop()
	for _, group := range a.groups {
		a.engine.Server().Unregister(group, nil)
	}
	a.groups = nil
}

// registerManagedObjects builds the per-context binding maps and
// installs one MO group per extracted root, falling back to per-OID
// groups when a subtree registration collides.
func (a *SnmpmanAgent) registerManagedObjects(rawBindings []snmp.VariableBinding) {
	server := a.engine.Server()
	device := a.configuration.Device

	contexts := device.Contexts()
	for _, context := range contexts {
		server.AddContext(context)
	}

	// drop whatever defaults the engine installed for our contexts
	for _, context := range contexts {
		if n := server.UnregisterContext(context, snmp.OID{1}); n > 0 {
			a.logger.Debug("unregistered default managed objects",
				zap.String("context", context), zap.Int("count", n))
		}
	}

	if len(rawBindings) == 0 {
		a.logger.Warn("walk is empty, nothing to register")
		return
	}

	for _, context := range contexts {
		bindings := a.variableBindings(device, rawBindings, context)
		oids := make([]snmp.OID, len(bindings))
		for i, binding := range bindings {
			oids[i] = binding.OID
		}
		for _, root := range Roots(oids) {
			group := snmp.NewMOGroup(root, bindings, a.logger)
			a.registerGroup(group, context, bindings)
		}
	}
}

// variableBindings applies the device's modifiers to the raw walk for
// one context. Community-context modifiers expand their OID into
// context-qualified bindings and swallow the original; every other
// modifier chain wraps the value in a ModifiedVariable.
func (a *SnmpmanAgent) variableBindings(device *config.Device, rawBindings []snmp.VariableBinding, context string) []snmp.VariableBinding {
	byOID := make(map[string]snmp.VariableBinding, len(rawBindings))

	for _, binding := range rawBindings {
		applicable := device.ModifiersFor(binding.OID)
		if len(applicable) == 0 {
			byOID[binding.OID.String()] = binding
			continue
		}

		var contextModifiers []*modifier.CommunityContextModifier
		for _, b := range applicable {
			if ccm, ok := b.Modifier().(*modifier.CommunityContextModifier); ok {
				contextModifiers = append(contextModifiers, ccm)
			}
		}

		if len(contextModifiers) > 0 {
			for _, ccm := range contextModifiers {
				for _, expanded := range ccm.VariableBindings(context, binding.OID) {
					byOID[expanded.OID.String()] = expanded
				}
			}
			continue
		}

		modifiers := make([]modifier.VariableModifier, len(applicable))
		for i, b := range applicable {
			modifiers[i] = b.Modifier()
		}
		byOID[binding.OID.String()] = snmp.VariableBinding{
			OID:      binding.OID,
			Variable: modifier.NewModifiedVariable(binding.Variable, modifiers, a.logger),
		}
	}

	bindings := make([]snmp.VariableBinding, 0, len(byOID))
	for _, binding := range byOID {
		bindings = append(bindings, binding)
	}
	sort.Slice(bindings, func(i, j int) bool {
		return bindings[i].OID.Compare(bindings[j].OID) < 0
	})
	return bindings
}

// registerGroup installs a whole-subtree group, or falls back to
// per-OID single-entry groups when the scope collides with an
// existing registration. The default context additionally shadows
// any-context registrations through the override API.
func (a *SnmpmanAgent) registerGroup(group *snmp.MOGroup, context string, bindings []snmp.VariableBinding) {
	server := a.engine.Server()
	scope := snmp.ContextScope{Scope: group.Scope(), Context: context}

	if context == "" {
		if server.Lookup(scope) != nil {
			a.perOIDFallback(group, context, bindings)
			return
		}
		anyScope := snmp.ContextScope{Scope: group.Scope(), AnyContext: true}
		if server.Lookup(anyScope) != nil {
			// an object registered under another context shadows this
			// scope; force-install rather than reflect into the registry
			server.RegisterOverride(group, context)
			a.groups = append(a.groups, group)
			return
		}
	}

	if err := server.Register(group, context); err != nil {
		a.perOIDFallback(group, context, bindings)
		return
	}
	a.groups = append(a.groups, group)
}

// perOIDFallback registers every leaf of the colliding subtree as its
// own single-entry group; leaves that still collide are logged and
// skipped.
func (a *SnmpmanAgent) perOIDFallback(group *snmp.MOGroup, context string, bindings []snmp.VariableBinding) {
	server := a.engine.Server()
	root := group.Root()

	for _, binding := range bindings {
		if !binding.OID.HasPrefix(root) {
			continue
		}
		single := snmp.NewSingleMOGroup(binding.OID, binding.OID, binding.Variable, a.logger)
		if err := server.Register(single, context); err != nil {
			a.logger.Warn("could not register single OID, already owned",
				zap.String("oid", binding.OID.String()),
				zap.String("context", context))
			continue
		}
		a.groups = append(a.groups, single)
	}
}

// registerCommunities installs the community-to-context rows: the
// base community selects the default context, `<community>@<vlan>`
// selects the VLAN's context.
func (a *SnmpmanAgent) registerCommunities() {
	communities := a.engine.Communities()
	base := a.configuration.Community
	communities.Add(base, "")
	for _, vlan := range a.configuration.Device.Vlans {
		communities.Add(fmt.Sprintf("%s@%d", base, vlan), fmt.Sprintf("%d", vlan))
	}
}

// registerViews assembles the VACM tables: full read/write for the
// community group in every served context, plus the documented
// SNMPv3 user rows with their restricted and test view trees.
func (a *SnmpmanAgent) registerViews() {
	vacm := a.engine.VACM()
	base := a.configuration.Community

	vacm.AddGroup(engine.SecurityModelV1, base, "v1v2group")
	vacm.AddGroup(engine.SecurityModelV2c, base, "v1v2group")
	vacm.AddGroup(engine.SecurityModelUSM, "SHADES", "v3group")
	vacm.AddGroup(engine.SecurityModelUSM, "TEST", "v3test")
	vacm.AddGroup(engine.SecurityModelUSM, "SHA", "v3restricted")
	vacm.AddGroup(engine.SecurityModelUSM, "v3notify", "v3restricted")

	for _, vlan := range a.configuration.Device.Vlans {
		community := fmt.Sprintf("%s@%d", base, vlan)
		context := fmt.Sprintf("%d", vlan)
		vacm.AddGroup(engine.SecurityModelV1, community, "v1v2group")
		vacm.AddGroup(engine.SecurityModelV2c, community, "v1v2group")
		vacm.AddAccess("v1v2group", context, engine.SecurityModelAny, engine.NoAuthNoPriv,
			"fullReadView", "fullWriteView", "fullNotifyView")
	}

	vacm.AddAccess("v1v2group", "", engine.SecurityModelAny, engine.NoAuthNoPriv,
		"fullReadView", "fullWriteView", "fullNotifyView")
	vacm.AddAccess("v3group", "", engine.SecurityModelUSM, engine.AuthPriv,
		"fullReadView", "fullWriteView", "fullNotifyView")
	vacm.AddAccess("v3restricted", "", engine.SecurityModelUSM, engine.NoAuthNoPriv,
		"restrictedReadView", "restrictedWriteView", "restrictedNotifyView")
	vacm.AddAccess("v3test", "", engine.SecurityModelUSM, engine.AuthPriv,
		"testReadView", "testWriteView", "testNotifyView")

	one := snmp.OID{1}
	vacm.AddViewTree("fullReadView", one, false)
	vacm.AddViewTree("fullWriteView", one, false)
	vacm.AddViewTree("fullNotifyView", one, false)

	vacm.AddViewTree("restrictedReadView", snmp.MustParseOID("1.3.6.1.2"), false)
	vacm.AddViewTree("restrictedWriteView", snmp.MustParseOID("1.3.6.1.2.1"), false)
	vacm.AddViewTree("restrictedNotifyView", snmp.MustParseOID("1.3.6.1.2"), false)
	vacm.AddViewTree("restrictedNotifyView", snmp.MustParseOID("1.3.6.1.6.3.1"), false)

	vacm.AddViewTree("testReadView", snmp.MustParseOID("1.3.6.1.2"), false)
	vacm.AddViewTree("testReadView", snmp.MustParseOID("1.3.6.1.2.1.1"), true)
	vacm.AddViewTree("testWriteView", snmp.MustParseOID("1.3.6.1.2.1"), false)
	vacm.AddViewTree("testNotifyView", snmp.MustParseOID("1.3.6.1.2"), false)
}
