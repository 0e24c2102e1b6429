// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package plugin

import (
	"context"
	"fmt"
	"os"

	"github.com/tomtom215/hivekeeper/internal/schema"
)

// Loader resolves installed manifests against the Catalog.
type Loader struct {
	catalog *Catalog
}

// NewLoader returns a loader backed by catalog.
func NewLoader(catalog *Catalog) *Loader {
	return &Loader{catalog: catalog}
}

// Load reads the manifest at path, checks that it declares name, resolves
// its implementation, and verifies a probe instance satisfies family's
// contract. Every failure is a *LoaderError.
func (l *Loader) Load(family Family, name, path string) (*Handle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newLoaderError(ImportFailure, name, "manifest could not be read", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, newLoaderError(SyntaxInvalid, name, "manifest is not valid", err)
	}
	if m.Name != name {
		return nil, newLoaderError(SyntaxInvalid, name,
			fmt.Sprintf("manifest declares name %q, artifact is named %q", m.Name, name), nil)
	}

	factory, ok := l.catalog.Lookup(m.Implementation)
	if !ok {
		return nil, newLoaderError(ImportFailure, name,
			fmt.Sprintf("implementation %q is not available", m.Implementation), nil)
	}

	h := &Handle{Name: name, Family: family, Manifest: m, Path: path, factory: factory}
	probe, err := h.instantiate(nil)
	if err != nil {
		return nil, newLoaderError(ImportFailure, name, "implementation failed to initialize", err)
	}

	switch family {
	case FamilyService:
		svc, ok := probe.(Service)
		if !ok {
			return nil, newLoaderError(CapabilityMissing, name,
				fmt.Sprintf("%T does not implement the service contract", probe), nil)
		}
		for _, rt := range svc.RecordTypes() {
			if err := rt.Validate(); err != nil {
				return nil, newLoaderError(SyntaxInvalid, name, "record type is not valid", err)
			}
		}
	case FamilyNotification:
		if _, ok := probe.(Notification); !ok {
			return nil, newLoaderError(CapabilityMissing, name,
				fmt.Sprintf("%T does not implement the notification contract", probe), nil)
		}
	default:
		return nil, newLoaderError(CapabilityMissing, name, fmt.Sprintf("unknown family %q", family), nil)
	}

	h.probe = probe
	return h, nil
}

// Handle is a loaded plugin ready to be instantiated per use.
type Handle struct {
	Name     string
	Family   Family
	Manifest *Manifest
	Path     string

	factory Factory
	probe   any
}

// instantiate merges cfg over the manifest defaults and runs the factory,
// converting a panic into an error.
func (h *Handle) instantiate(cfg map[string]any) (inst any, err error) {
	merged := make(map[string]any, len(h.Manifest.Config)+len(cfg))
	for k, v := range h.Manifest.Config {
		merged[k] = v
	}
	for k, v := range cfg {
		merged[k] = v
	}
	defer func() {
		if r := recover(); r != nil {
			inst, err = nil, fmt.Errorf("panic in %s factory: %v", h.Manifest.Implementation, r)
		}
	}()
	return h.factory(merged)
}

// NewService creates a service instance configured with cfg.
func (h *Handle) NewService(cfg map[string]any) (Service, error) {
	inst, err := h.instantiate(cfg)
	if err != nil {
		return nil, err
	}
	svc, ok := inst.(Service)
	if !ok {
		return nil, fmt.Errorf("plugin %s: %T is not a service", h.Name, inst)
	}
	return svc, nil
}

// NewNotification creates a notification instance configured with cfg.
func (h *Handle) NewNotification(cfg map[string]any) (Notification, error) {
	inst, err := h.instantiate(cfg)
	if err != nil {
		return nil, err
	}
	n, ok := inst.(Notification)
	if !ok {
		return nil, fmt.Errorf("plugin %s: %T is not a notification", h.Name, inst)
	}
	return n, nil
}

// Description is the manifest description.
func (h *Handle) Description() string {
	return h.Manifest.Description
}

// RecordTypes lists a service plugin's record types; nil for notifications.
func (h *Handle) RecordTypes() []schema.RecordType {
	if svc, ok := h.probe.(Service); ok {
		return svc.RecordTypes()
	}
	return nil
}

// RecordTypeNames lists the names returned by RecordTypes.
func (h *Handle) RecordTypeNames() []string {
	types := h.RecordTypes()
	names := make([]string, len(types))
	for i, rt := range types {
		names[i] = rt.Name
	}
	return names
}

// Dependencies merges the manifest's dependencies with those the
// implementation declares, grouped by manager with duplicates removed.
func (h *Handle) Dependencies() []Dependency {
	var all []Dependency
	all = append(all, h.Manifest.Dependencies...)
	if inst, ok := h.probe.(Installable); ok {
		all = append(all, inst.Dependencies()...)
	}
	if len(all) == 0 {
		return nil
	}

	var order []string
	byManager := make(map[string][]string)
	seen := make(map[string]bool)
	for _, d := range all {
		if _, ok := byManager[d.Manager]; !ok {
			order = append(order, d.Manager)
			byManager[d.Manager] = nil
		}
		for _, p := range d.Packages {
			key := d.Manager + "/" + p
			if seen[key] {
				continue
			}
			seen[key] = true
			byManager[d.Manager] = append(byManager[d.Manager], p)
		}
	}
	out := make([]Dependency, 0, len(order))
	for _, m := range order {
		out = append(out, Dependency{Manager: m, Packages: byManager[m]})
	}
	return out
}

// AfterInstall runs the implementation's post-install hook, if it has one.
func (h *Handle) AfterInstall(ctx context.Context) error {
	if inst, ok := h.probe.(Installable); ok {
		return inst.AfterInstall(ctx)
	}
	return nil
}
