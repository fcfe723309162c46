// SPDX-License-Identifier: MPL-2.0

package project

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/resmerge/resmerge/internal/discovery"
	"github.com/resmerge/resmerge/internal/issue"
	"github.com/resmerge/resmerge/internal/registry"
	"github.com/resmerge/resmerge/internal/repository"
	"github.com/resmerge/resmerge/pkg/pkgfile"
)

// InstallPackage installs the package at path and loads its declarations.
func (p *Project) InstallPackage(ctx context.Context, path, name, installer string) (*registry.Package, error) {
	pkg, err := p.registry.Install(path, name, installer)
	if err != nil {
		return nil, packageError("install package", path, err)
	}
	p.regenerate(ctx)
	return pkg, nil
}

// RemovePackage removes the package named name and everything it declared.
// Removing an absent package is a no-op.
func (p *Project) RemovePackage(ctx context.Context, name string) error {
	if err := p.registry.Remove(name); err != nil {
		return packageError("remove package", name, err)
	}
	p.regenerate(ctx)
	return nil
}

// AddBindingType declares a binding type in the root package. The name must
// not be defined by any package.
func (p *Project) AddBindingType(ctx context.Context, d pkgfile.BindingTypeDescriptor) (*discovery.BindingType, error) {
	if err := p.engine.CheckType(d.Name); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("add binding type").
			WithResource(d.Name).
			WithSuggestion("Pick a different type name").
			WithIssue(issue.DuplicateBindingTypeId).
			Wrap(err).
			BuildError()
	}

	if err := p.updateRoot(func(f *pkgfile.PackageFile) { f.AddBindingType(d) }); err != nil {
		return nil, rootError("add binding type", d.Name, err)
	}

	t := discovery.TypeFromDescriptor(d, p.registry.Root().Name)
	p.engine.RegisterType(t)
	p.regenerate(ctx)
	return t, nil
}

// RemoveBindingType removes a binding type declared by the root package.
// Bindings of the type lose their type. Removing an undeclared type is a
// no-op.
func (p *Project) RemoveBindingType(ctx context.Context, name string) error {
	root := p.registry.Root()
	if root.File == nil || !root.File.HasBindingType(name) {
		return nil
	}

	if err := p.updateRoot(func(f *pkgfile.PackageFile) { f.RemoveBindingType(name) }); err != nil {
		return rootError("remove binding type", name, err)
	}

	p.engine.UnregisterTypeOf(name, root.Name)
	p.regenerate(ctx)
	return nil
}

// AddBinding declares a binding in the root package. A descriptor without a
// UUID gets a new one. The returned binding carries its computed state, which
// may be degraded; that is not an error.
func (p *Project) AddBinding(ctx context.Context, d pkgfile.BindingDescriptor) (*discovery.Binding, error) {
	if d.UUID == "" {
		d.UUID = uuid.NewString()
	}
	b, err := discovery.BindingFromDescriptor(d, p.registry.Root().Name)
	if err != nil {
		return nil, rootError("add binding", d.UUID, err)
	}
	d.UUID = b.UUID.String()

	if err := p.updateRoot(func(f *pkgfile.PackageFile) { f.AddBinding(d) }); err != nil {
		return nil, rootError("add binding", d.UUID, err)
	}

	p.engine.Bind(b)
	p.engine.Reload(discovery.PackageScope(b.Owner))
	p.regenerate(ctx)
	return b, nil
}

// RemoveBinding removes the root package's instance of the binding id.
// Instances declared by other packages stay. Removing an undeclared binding
// is a no-op.
func (p *Project) RemoveBinding(ctx context.Context, id uuid.UUID) error {
	root := p.registry.Root()
	if root.File == nil || !root.File.HasBinding(id) {
		return nil
	}

	if err := p.updateRoot(func(f *pkgfile.PackageFile) { f.RemoveBinding(id) }); err != nil {
		return rootError("remove binding", id.String(), err)
	}

	p.engine.UnbindFrom(id, root.Name)
	p.engine.Reload(discovery.PackageScope(root.Name))
	p.regenerate(ctx)
	return nil
}

// SetOverrideOrder replaces the root package's override order, lowest
// precedence first. An empty list clears it.
func (p *Project) SetOverrideOrder(ctx context.Context, names []string) error {
	if err := p.updateRoot(func(f *pkgfile.PackageFile) { f.OverrideOrder = names }); err != nil {
		return rootError("set override order", "", err)
	}
	p.regenerate(ctx)
	return nil
}

// Build merges the enabled packages and materializes the repository. Unless
// force is set, an up-to-date repository is not rewritten.
func (p *Project) Build(ctx context.Context, force bool) (repository.Result, error) {
	p.force = force
	defer func() { p.force = false }()
	return p.coordinator.Build(ctx)
}

// View returns the merged repository view without building it.
func (p *Project) View() (*repository.View, error) {
	return repository.NewView(p.registry)
}

// Conflicts returns every unresolved path conflict.
func (p *Project) Conflicts() []error {
	return p.registry.Conflicts()
}

// Diagnostics returns the disabled types and degraded bindings.
func (p *Project) Diagnostics() []discovery.Diagnostic {
	return p.engine.Diagnostics()
}

// updateRoot applies fn to the root descriptor and saves it, rejecting
// changes the descriptor schema would not read back.
func (p *Project) updateRoot(fn func(f *pkgfile.PackageFile)) error {
	return p.registry.UpdateRoot(func(f *pkgfile.PackageFile) error {
		fn(f)
		src, err := f.Encode()
		if err != nil {
			return err
		}
		_, err = pkgfile.ParseRoot(src, f.Path)
		return err
	})
}

func packageError(op, resource string, err error) error {
	ctx := issue.NewErrorContext().WithOperation(op).WithResource(resource).Wrap(err)
	switch {
	case errors.Is(err, registry.ErrNameConflict):
		ctx.WithIssue(issue.NameConflictId).
			WithSuggestion("Install the package under a different name with --name")
	case errors.Is(err, pkgfile.ErrNotFound), errors.Is(err, pkgfile.ErrNotADirectory):
		ctx.WithIssue(issue.PackageNotFoundId).
			WithSuggestion("Check that the path points at the package directory")
	case errors.Is(err, pkgfile.ErrUnsupportedVersion):
		ctx.WithIssue(issue.UnsupportedVersionId)
	case errors.Is(err, pkgfile.ErrInvalidConfig):
		ctx.WithIssue(issue.DescriptorParseErrorId).
			WithSuggestion(fmt.Sprintf("Fix the %s file of the package", pkgfile.FileName))
	case errors.Is(err, registry.ErrRootPackage):
		ctx.WithSuggestion("The root package cannot be removed")
	}
	return ctx.BuildError()
}

func rootError(op, resource string, err error) error {
	ctx := issue.NewErrorContext().WithOperation(op).WithResource(resource).Wrap(err)
	if errors.Is(err, pkgfile.ErrInvalidConfig) {
		ctx.WithIssue(issue.DescriptorParseErrorId).
			WithSuggestion("Names and parameters must match the descriptor schema")
	}
	return ctx.BuildError()
}
