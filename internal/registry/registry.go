// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/resmerge/resmerge/internal/override"
	"github.com/resmerge/resmerge/internal/storage"
	"github.com/resmerge/resmerge/internal/store"
	"github.com/resmerge/resmerge/pkg/pkgfile"
)

// DefaultRootName names the root package when its descriptor declares none.
const DefaultRootName = "__root__"

const (
	// ChangeLoaded follows LoadAll.
	ChangeLoaded ChangeKind = iota
	// ChangeInstalled follows a successful Install.
	ChangeInstalled
	// ChangeRemoved follows a successful Remove.
	ChangeRemoved
	// ChangeRootUpdated follows a successful UpdateRoot.
	ChangeRootUpdated
)

var (
	// ErrNameConflict is the sentinel error wrapped by NameConflictError.
	ErrNameConflict = errors.New("package name conflict")
	// ErrRootPackage is returned when removing the root package.
	ErrRootPackage = errors.New("the root package cannot be removed")
)

type (
	// ChangeKind tells listeners what changed.
	ChangeKind int

	// Change is passed to listeners after every successful mutation.
	// Package is nil for ChangeLoaded.
	Change struct {
		Kind    ChangeKind
		Package *Package
	}

	// NameConflictError reports an install whose name is already taken.
	NameConflictError struct {
		Name         string
		Path         string
		ExistingPath string
	}

	// Options configures a Registry.
	Options struct {
		// RootDir is the absolute project root.
		RootDir string
		// RootFile is the root descriptor path. Defaults to RootDir/resmerge.cue.
		RootFile string
		// InstallFile is the install metadata path.
		InstallFile string
		// PackageStorage reads package descriptors.
		PackageStorage storage.PackageFileStorage
		// InstallStorage reads and writes install metadata.
		InstallStorage storage.InstallFileStorage
		// Logger receives debug and warning output.
		Logger *log.Logger
	}

	// Contribution is one resource mapping declared by an enabled package.
	Contribution struct {
		Path    string
		Package string
		Target  string
	}

	// Registry holds at most one package per name. Packages whose name was
	// already taken during LoadAll are kept aside as duplicates.
	// Not safe for concurrent use.
	Registry struct {
		rootDir         string
		rootFilePath    string
		installFilePath string

		pkgStorage     storage.PackageFileStorage
		installStorage storage.InstallFileStorage

		packages   *store.Collection[string, *Package]
		duplicates []*Package
		root       *Package
		install    *pkgfile.InstallFile

		resolver  *override.Resolver
		listeners []func(Change)
		logger    *log.Logger
	}
)

var _ override.Source = (*Registry)(nil)

// Error implements the error interface.
func (e *NameConflictError) Error() string {
	return fmt.Sprintf("Cannot load package %q at %s: The package at %s has the same name.", e.Name, e.Path, e.ExistingPath)
}

// Unwrap returns ErrNameConflict for errors.Is() compatibility.
func (e *NameConflictError) Unwrap() error { return ErrNameConflict }

// New creates an empty registry holding only a root package. Call LoadAll to
// read the persisted state.
func New(opts Options) *Registry {
	rootFile := opts.RootFile
	if rootFile == "" {
		rootFile = filepath.Join(opts.RootDir, pkgfile.FileName)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	r := &Registry{
		rootDir:         filepath.Clean(opts.RootDir),
		rootFilePath:    rootFile,
		installFilePath: opts.InstallFile,
		pkgStorage:      opts.PackageStorage,
		installStorage:  opts.InstallStorage,
		packages:        store.NewCollection[string, *Package](),
		install:         pkgfile.NewInstallFile(opts.InstallFile),
		logger:          logger,
	}
	r.resolver = override.NewResolver(r, override.WithLogger(logger))
	r.setRoot(pkgfile.New(rootFile), nil)
	return r
}

// OnChange registers fn to run after every successful mutation.
func (r *Registry) OnChange(fn func(Change)) {
	r.listeners = append(r.listeners, fn)
}

// LoadAll recreates the root package and loads every package recorded in the
// install metadata. A package that fails to load is kept with its error and a
// NOT_FOUND or NOT_LOADABLE state. Only unreadable install metadata fails.
func (r *Registry) LoadAll() error {
	install, err := r.installStorage.LoadInstallFile(r.installFilePath)
	switch {
	case errors.Is(err, pkgfile.ErrNotFound):
		install = pkgfile.NewInstallFile(r.installFilePath)
	case err != nil:
		return fmt.Errorf("failed to load install metadata: %w", err)
	}

	r.packages.Clear()
	r.duplicates = nil
	r.install = install

	rootFile, rootErr := r.pkgStorage.LoadRootPackageFile(r.rootFilePath)
	if rootErr != nil {
		r.logger.Warn("Root package could not be loaded", "path", r.rootFilePath, "error", rootErr)
		rootFile = nil
	}
	r.setRoot(rootFile, rootErr)

	for _, info := range install.Packages {
		pkg := r.load(info)
		if existing, taken := r.packages.Get(pkg.Name); taken {
			pkg.State = StateDuplicate
			pkg.LoadErr = &NameConflictError{Name: pkg.Name, Path: pkg.InstallPath, ExistingPath: existing.InstallPath}
			r.duplicates = append(r.duplicates, pkg)
			r.logger.Warn("Duplicate package name", "package", pkg.Name, "path", pkg.InstallPath)
			continue
		}
		r.packages.Set(pkg.Name, pkg)
		if pkg.LoadErr != nil {
			r.logger.Warn("Package could not be loaded", "package", pkg.Name, "state", pkg.State, "error", pkg.LoadErr)
		}
	}

	r.logger.Debug("Loaded packages", "count", r.packages.Len(), "duplicates", len(r.duplicates))
	r.changed(Change{Kind: ChangeLoaded})
	return nil
}

// Install adds the package at path. A path that is already installed is a
// no-op returning the existing package. When name is empty it is read from
// the package descriptor; an empty installer defaults to "user".
func (r *Registry) Install(path, name, installer string) (*Package, error) {
	installPath := r.abs(path)
	if existing := r.byPath(installPath); existing != nil {
		return existing, nil
	}

	file, err := r.pkgStorage.LoadPackageFile(installPath)
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = file.Name
	}
	if name == "" {
		return nil, &pkgfile.InvalidConfigError{
			Path: installPath,
			Reason: fmt.Sprintf("Could not find a name for the package at %s. The name should either be passed to the installer or be set in the \"name\" property of %s",
				installPath, filepath.Join(installPath, pkgfile.FileName)),
		}
	}
	if err := pkgfile.ValidateName(name); err != nil {
		return nil, err
	}
	if existing, taken := r.packages.Get(name); taken {
		return nil, &NameConflictError{Name: name, Path: installPath, ExistingPath: existing.InstallPath}
	}

	if installer == "" {
		installer = pkgfile.DefaultInstallerName
	}
	info := pkgfile.InstallInfo{Name: name, InstallPath: r.rel(installPath), Installer: installer}

	next := r.install.Clone()
	next.Add(info)
	if err := r.installStorage.SaveInstallFile(next); err != nil {
		return nil, fmt.Errorf("failed to save install metadata: %w", err)
	}
	r.install = next

	pkg := &Package{Name: name, InstallPath: installPath, InstallInfo: &info, File: file, State: StateEnabled}
	r.packages.Set(name, pkg)
	r.logger.Debug("Installed package", "package", name, "path", installPath, "installer", installer)
	r.changed(Change{Kind: ChangeInstalled, Package: pkg})
	return pkg, nil
}

// Remove detaches the package named name. Removing an absent package is a
// no-op. Install metadata is only rewritten when it lists the package.
func (r *Registry) Remove(name string) error {
	if name == r.root.Name {
		return ErrRootPackage
	}
	pkg, ok := r.packages.Get(name)
	dupes := slices.ContainsFunc(r.duplicates, func(p *Package) bool { return p.Name == name })
	if !ok && !dupes {
		return nil
	}

	if r.install.Has(name) {
		next := r.install.Clone()
		next.Remove(name)
		if err := r.installStorage.SaveInstallFile(next); err != nil {
			return fmt.Errorf("failed to save install metadata: %w", err)
		}
		r.install = next
	}

	r.packages.Remove(name)
	r.duplicates = slices.DeleteFunc(r.duplicates, func(p *Package) bool { return p.Name == name })
	if pkg == nil {
		return nil
	}
	r.logger.Debug("Removed package", "package", name)
	r.changed(Change{Kind: ChangeRemoved, Package: pkg})
	return nil
}

// UpdateRoot applies fn to a copy of the root descriptor and saves it. The
// registry keeps the old descriptor when fn or the save fails.
func (r *Registry) UpdateRoot(fn func(f *pkgfile.PackageFile) error) error {
	current := r.root.File
	if current == nil {
		return fmt.Errorf("root package is not loadable: %w", r.root.LoadErr)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := r.pkgStorage.SaveRootPackageFile(next); err != nil {
		return fmt.Errorf("failed to save root package: %w", err)
	}

	r.root.File = next
	r.changed(Change{Kind: ChangeRootUpdated, Package: r.root})
	return nil
}

// Get returns the package named name.
func (r *Registry) Get(name string) (*Package, bool) {
	return r.packages.Get(name)
}

// Has reports whether a package named name is registered.
func (r *Registry) Has(name string) bool {
	return r.packages.Contains(name)
}

// Root returns the root package.
func (r *Registry) Root() *Package {
	return r.root
}

// RootDir returns the absolute project root.
func (r *Registry) RootDir() string {
	return r.rootDir
}

// All returns the registered packages matching every filter, root first.
func (r *Registry) All(filters ...Filter) []*Package {
	var out []*Package
	for _, pkg := range r.packages.Values() {
		if matches(pkg, filters) {
			out = append(out, pkg)
		}
	}
	return out
}

// Duplicates returns the packages rejected by LoadAll because their name was taken.
func (r *Registry) Duplicates() []*Package {
	return slices.Clone(r.duplicates)
}

// ByInstaller returns the packages installed by installer that are in state.
func (r *Registry) ByInstaller(installer string, state State) []*Package {
	return r.All(WithState(state), func(p *Package) bool { return p.Installer() == installer })
}

// IsInstalled reports whether a package, duplicates included, is installed at path.
func (r *Registry) IsInstalled(path string) bool {
	return r.byPath(r.abs(path)) != nil
}

// Resolver returns the override resolver fed by this registry.
func (r *Registry) Resolver() *override.Resolver {
	return r.resolver
}

// Contributions returns the resource mappings of every enabled package,
// sorted by path and then package name.
func (r *Registry) Contributions() []Contribution {
	var out []Contribution
	for _, pkg := range r.All(WithState(StateEnabled)) {
		for _, path := range pkg.File.ResourcePaths() {
			out = append(out, Contribution{Path: path, Package: pkg.Name, Target: pkg.File.Resources[path]})
		}
	}
	slices.SortFunc(out, func(a, b Contribution) int {
		return cmp.Or(cmp.Compare(a.Path, b.Path), cmp.Compare(a.Package, b.Package))
	})
	return out
}

// Conflicts returns every path contributed by several enabled packages that
// the override graph cannot resolve, as *override.ConflictError values.
func (r *Registry) Conflicts() []error {
	var out []error
	contributions := r.Contributions()
	for start := 0; start < len(contributions); {
		end := start + 1
		for end < len(contributions) && contributions[end].Path == contributions[start].Path {
			end++
		}
		if end-start > 1 {
			names := make([]string, 0, end-start)
			for _, c := range contributions[start:end] {
				names = append(names, c.Package)
			}
			if _, err := r.resolver.Resolve(contributions[start].Path, names); err != nil {
				out = append(out, err)
			}
		}
		start = end
	}
	return out
}

// OverrideDeclarations implements override.Source.
func (r *Registry) OverrideDeclarations() []override.Declaration {
	var out []override.Declaration
	for _, pkg := range r.All(WithState(StateEnabled)) {
		out = append(out, override.Declaration{Package: pkg.Name, Overrides: slices.Clone(pkg.File.Override)})
	}
	return out
}

// OverrideOrder implements override.Source.
func (r *Registry) OverrideOrder() []string {
	if r.root.File == nil {
		return nil
	}
	return slices.Clone(r.root.File.OverrideOrder)
}

func (r *Registry) setRoot(file *pkgfile.PackageFile, err error) {
	name := DefaultRootName
	if file != nil && file.Name != "" {
		name = file.Name
	}
	r.root = &Package{Name: name, InstallPath: r.rootDir, File: file, LoadErr: err, State: stateFromError(err), root: true}
	r.packages.Set(name, r.root)
}

func (r *Registry) load(info pkgfile.InstallInfo) *Package {
	pkg := &Package{Name: info.Name, InstallPath: r.abs(info.InstallPath), InstallInfo: &info, State: StateLoading}
	pkg.File, pkg.LoadErr = r.pkgStorage.LoadPackageFile(pkg.InstallPath)
	pkg.State = stateFromError(pkg.LoadErr)
	if pkg.LoadErr != nil {
		pkg.File = nil
	}
	return pkg
}

func (r *Registry) byPath(installPath string) *Package {
	for _, pkg := range r.packages.Values() {
		if pkg.InstallPath == installPath {
			return pkg
		}
	}
	for _, pkg := range r.duplicates {
		if pkg.InstallPath == installPath {
			return pkg
		}
	}
	return nil
}

func (r *Registry) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(r.rootDir, path)
}

func (r *Registry) rel(installPath string) string {
	if rel, err := filepath.Rel(r.rootDir, installPath); err == nil {
		return filepath.ToSlash(rel)
	}
	return installPath
}

func (r *Registry) changed(c Change) {
	r.resolver.Invalidate()
	for _, fn := range r.listeners {
		fn(c)
	}
}

func matches(p *Package, filters []Filter) bool {
	for _, f := range filters {
		if !f(p) {
			return false
		}
	}
	return true
}
