// Package config loads the agents file, device descriptors and
// process settings. Loading is permissive: a broken device descriptor
// degrades to the default device, an unknown modifier class is
// dropped, and one bad agent entry never stops the others.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/stagetec-services/snmpman/modifier"
	"github.com/stagetec-services/snmpman/snmp"
)

// Device is the parsed device descriptor: the modifier bindings and
// VLAN list that shape an agent's answers.
type Device struct {
	Name      string
	Modifiers []modifier.Binding
	Vlans     []uint64
}

// DefaultDevice carries no modifiers and no VLANs; agents without a
// device descriptor answer their walk verbatim.
var DefaultDevice = &Device{Name: "default"}

// ModifiersFor returns the bindings applicable to oid, in descriptor
// order.
func (d *Device) ModifiersFor(oid snmp.OID) []modifier.Binding {
	var applicable []modifier.Binding
	for _, binding := range d.Modifiers {
		if binding.IsApplicable(oid) {
			applicable = append(applicable, binding)
		}
	}
	return applicable
}

// Contexts returns the community contexts this device serves: the
// default context plus one per VLAN.
func (d *Device) Contexts() []string {
	contexts := make([]string, 0, len(d.Vlans)+1)
	contexts = append(contexts, "")
	for _, vlan := range d.Vlans {
		contexts = append(contexts, fmt.Sprintf("%d", vlan))
	}
	return contexts
}

func (d *Device) String() string {
	return fmt.Sprintf("Device[name=%s, modifiers=%d, vlans=%v]", d.Name, len(d.Modifiers), d.Vlans)
}

type deviceDescriptor struct {
	Name      string               `yaml:"name"`
	Vlans     []uint64             `yaml:"vlans"`
	Modifiers []modifierDescriptor `yaml:"modifiers"`
}

type modifierDescriptor struct {
	OID        string              `yaml:"oid"`
	Class      string              `yaml:"class"`
	Properties modifier.Properties `yaml:"properties"`
}

// DeviceFactory parses and caches device descriptors. Each Snmpman
// instance owns one; the cache is populated during configuration
// loading and read concurrently afterwards.
type DeviceFactory struct {
	mu      sync.RWMutex
	devices map[string]*Device
	logger  *zap.Logger
}

// NewDeviceFactory returns an empty factory.
func NewDeviceFactory(logger *zap.Logger) *DeviceFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceFactory{
		devices: make(map[string]*Device),
		logger:  logger.Named("device"),
	}
}

// Device returns the parsed descriptor at path, caching by cleaned
// path. An empty path yields the default device; a descriptor that
// cannot be read or parsed logs and degrades to the default device.
func (f *DeviceFactory) Device(path string) *Device {
	if path == "" {
		return DefaultDevice
	}
	key := filepath.Clean(path)

	f.mu.RLock()
	device, ok := f.devices[key]
	f.mu.RUnlock()
	if ok {
		return device
	}

	device = f.parse(key)

	f.mu.Lock()
	if cached, ok := f.devices[key]; ok {
		device = cached
	} else {
		f.devices[key] = device
	}
	f.mu.Unlock()
	return device
}

func (f *DeviceFactory) parse(path string) *Device {
	raw, err := os.ReadFile(path)
	if err != nil {
		f.logger.Error("could not load device descriptor, using default device",
			zap.String("path", path), zap.Error(err))
		return DefaultDevice
	}

	var descriptor deviceDescriptor
	if err := yaml.Unmarshal(raw, &descriptor); err != nil {
		f.logger.Error("could not parse device descriptor, using default device",
			zap.String("path", path), zap.Error(err))
		return DefaultDevice
	}

	device := &Device{Name: descriptor.Name, Vlans: descriptor.Vlans}
	if device.Name == "" {
		device.Name = filepath.Base(path)
	}
	for _, md := range descriptor.Modifiers {
		binding, err := modifier.NewBinding(md.OID, md.Class, md.Properties)
		if err != nil {
			// unknown classes and bad prefixes drop just this modifier
			f.logger.Warn("dropping modifier",
				zap.String("device", device.Name),
				zap.String("class", md.Class),
				zap.Error(err))
			continue
		}
		device.Modifiers = append(device.Modifiers, binding)
	}
	return device
}
