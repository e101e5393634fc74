// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"fmt"
	"sort"
)

// Registry maps wire module ids to vehicle subsystems.
//
// The numbering is configuration: a deployment may renumber modules, but each
// id maps to exactly one subsystem and each subsystem to exactly one id.
type Registry struct {
	byID     map[byte]Module
	byModule map[Module]byte
}

// NewRegistry builds a registry from an id -> module table
func NewRegistry(ids map[byte]Module) (*Registry, error) {
	r := &Registry{
		byID:     make(map[byte]Module, len(ids)),
		byModule: make(map[Module]byte, len(ids)),
	}
	for id, m := range ids {
		if !m.Valid() {
			return nil, fmt.Errorf("module id 0x%02X maps to unknown module %d", id, m)
		}
		if prev, ok := r.byModule[m]; ok {
			return nil, fmt.Errorf("module %s registered twice (0x%02X and 0x%02X)", m, prev, id)
		}
		r.byID[id] = m
		r.byModule[m] = id
	}
	return r, nil
}

// DefaultRegistry returns the standard numbering: 0x0 ballast,
// 0x1 propulsion, 0x2 light
func DefaultRegistry() *Registry {
	r, err := NewRegistry(map[byte]Module{
		ModuleIDBallast:    ModuleBallast,
		ModuleIDPropulsion: ModulePropulsion,
		ModuleIDLight:      ModuleLight,
	})
	if err != nil {
		panic(fmt.Sprintf("protocol: default registry: %v", err))
	}
	return r
}

// Lookup returns the module registered for id
func (r *Registry) Lookup(id byte) (Module, bool) {
	m, ok := r.byID[id]
	return m, ok
}

// ID returns the wire id registered for module m
func (r *Registry) ID(m Module) (byte, bool) {
	id, ok := r.byModule[m]
	return id, ok
}

// IDs returns the registered module ids in ascending order
func (r *Registry) IDs() []byte {
	ids := make([]byte, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ParseModule converts a module name (as used in configuration) to a Module
func ParseModule(name string) (Module, error) {
	switch name {
	case "ballast":
		return ModuleBallast, nil
	case "propulsion":
		return ModulePropulsion, nil
	case "light":
		return ModuleLight, nil
	default:
		return 0, fmt.Errorf("unknown module %q", name)
	}
}

// Valid reports whether m is a known subsystem
func (m Module) Valid() bool {
	return m >= ModuleBallast && m <= ModuleLight
}

// String returns the configuration name of the module
func (m Module) String() string {
	switch m {
	case ModuleBallast:
		return "ballast"
	case ModulePropulsion:
		return "propulsion"
	case ModuleLight:
		return "light"
	default:
		return fmt.Sprintf("module(%d)", int(m))
	}
}
