// SPDX-License-Identifier: MPL-2.0

package project

import (
	"context"

	"github.com/resmerge/resmerge/internal/discovery"
	"github.com/resmerge/resmerge/internal/registry"
	"github.com/resmerge/resmerge/internal/storage"
)

// loadEngine feeds the types and bindings of every enabled package to the
// engine, root first, then runs one full reload. Snapshot writes are held
// back until that final reload.
func (p *Project) loadEngine() {
	p.loading = true
	p.addPackage(p.registry.Root())
	for _, pkg := range p.registry.All(registry.WithState(registry.StateEnabled)) {
		if !pkg.IsRoot() {
			p.addPackage(pkg)
		}
	}
	p.loading = false

	p.engine.Reload(discovery.AllScope())
}

// addPackage registers the declarations of one package. Binding UUIDs were
// checked when the descriptor was parsed, and a package with a bad UUID never
// reaches the enabled state.
func (p *Project) addPackage(pkg *registry.Package) {
	if pkg == nil || !pkg.IsEnabled() || pkg.File == nil {
		return
	}
	for _, d := range pkg.File.BindingTypes {
		p.engine.RegisterType(discovery.TypeFromDescriptor(d, pkg.Name))
	}
	for _, d := range pkg.File.Bindings {
		b, err := discovery.BindingFromDescriptor(d, pkg.Name)
		if err != nil {
			p.logger.Error("Descriptor bypassed validation", "package", pkg.Name, "error", err)
			continue
		}
		p.engine.Bind(b)
	}
}

// sync keeps the engine in line with registry membership.
func (p *Project) sync(c registry.Change) {
	switch c.Kind {
	case registry.ChangeInstalled:
		p.addPackage(c.Package)
		p.engine.Reload(discovery.PackageScope(c.Package.Name))
	case registry.ChangeRemoved:
		p.engine.RemovePackage(c.Package.Name)
		// Flushes the snapshot when the package declared bindings only.
		p.engine.Reload(discovery.PackageScope(c.Package.Name))
	}
}

// persistSnapshot runs after every reload pass and writes the engine state to
// the discovery store. Failures are logged; reloads never fail.
func (p *Project) persistSnapshot(scope discovery.Scope, _ discovery.ReloadResult) {
	if p.loading {
		return
	}
	data, err := p.engine.Snapshot().Marshal()
	if err == nil {
		err = storage.WriteFileAtomic(p.storePath, data)
	}
	if err != nil {
		p.logger.Warn("Could not persist binding state", "path", p.storePath, "scope", scope, "error", err)
	}
}

// regenerate runs the factory after a saved change.
func (p *Project) regenerate(ctx context.Context) {
	if p.generator == nil {
		return
	}
	if err := p.generator.Regenerate(ctx, p.engine.Snapshot()); err != nil {
		p.logger.Warn("Factory regeneration failed", "error", err)
	}
}
