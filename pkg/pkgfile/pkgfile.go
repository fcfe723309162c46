// SPDX-License-Identifier: MPL-2.0

package pkgfile

import (
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"

	"github.com/google/uuid"

	"github.com/resmerge/resmerge/internal/cueutil"
)

const (
	// FileName is the descriptor file name inside every package directory.
	FileName = "resmerge.cue"
	// InstallFileName is the install metadata file name inside the state directory.
	InstallFileName = "install.cue"
	// CurrentVersion is the descriptor format version written by this tool.
	CurrentVersion = "1.0"
	// DefaultInstallerName is recorded when a package is installed by hand.
	DefaultInstallerName = "user"
)

var (
	//go:embed pkgfile_schema.cue
	schema string

	// ErrNotFound is returned when a package directory or descriptor does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotADirectory is returned when an install path points at a file.
	ErrNotADirectory = errors.New("not a directory")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrUnsupportedVersion is the sentinel error wrapped by UnsupportedVersionError.
	ErrUnsupportedVersion = errors.New("unsupported version")

	supportedVersions = []string{CurrentVersion}

	namePattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._/-]*[A-Za-z0-9])?$`)
)

type (
	// InvalidConfigError reports a descriptor that cannot be used.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		Path   string
		Reason string
		Cause  error
	}

	// UnsupportedVersionError reports a descriptor written in a format
	// version this build cannot read.
	UnsupportedVersionError struct {
		Path    string
		Version string
	}

	// ParameterDescriptor declares one parameter of a binding type.
	ParameterDescriptor struct {
		Name        string `json:"name"`
		Required    bool   `json:"required,omitempty"`
		Default     string `json:"default,omitempty"`
		Description string `json:"description,omitempty"`
	}

	// BindingTypeDescriptor declares a binding type schema.
	BindingTypeDescriptor struct {
		Name        string                `json:"name"`
		Description string                `json:"description,omitempty"`
		Parameters  []ParameterDescriptor `json:"parameters,omitempty"`
	}

	// BindingDescriptor declares a binding of a resource query to a type.
	// The same UUID may appear in several packages.
	BindingDescriptor struct {
		UUID       string            `json:"uuid"`
		Query      string            `json:"query"`
		Type       string            `json:"type"`
		Parameters map[string]string `json:"parameters,omitempty"`
	}

	// PackageFile is the parsed content of a resmerge.cue file.
	// OverrideOrder is only accepted in the root package file.
	PackageFile struct {
		Version       string                  `json:"version,omitempty"`
		Name          string                  `json:"name,omitempty"`
		Resources     map[string]string       `json:"resources,omitempty"`
		Override      []string                `json:"override,omitempty"`
		OverrideOrder []string                `json:"override-order,omitempty"`
		BindingTypes  []BindingTypeDescriptor `json:"binding-types,omitempty"`
		Bindings      []BindingDescriptor     `json:"bindings,omitempty"`

		// Path is the file the descriptor was read from or will be written to.
		Path string `json:"-"`
	}

	// InstallInfo records how one package was installed.
	InstallInfo struct {
		Name        string `json:"name"`
		InstallPath string `json:"install-path"`
		Installer   string `json:"installer,omitempty"`
	}

	// InstallFile is the parsed content of install.cue.
	InstallFile struct {
		Version  string        `json:"version,omitempty"`
		Packages []InstallInfo `json:"packages,omitempty"`

		Path string `json:"-"`
	}
)

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msg := e.Reason
	if e.Cause != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Cause.Error()
	}
	if e.Path == "" {
		return "invalid config: " + msg
	}
	return fmt.Sprintf("invalid config in %s: %s", e.Path, msg)
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrInvalidConfig, e.Cause}
	}
	return []error{ErrInvalidConfig}
}

// Error implements the error interface.
func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("%s: format version %q is not supported (supported: %v)", e.Path, e.Version, supportedVersions)
}

// Unwrap returns ErrUnsupportedVersion for errors.Is() compatibility.
func (e *UnsupportedVersionError) Unwrap() error { return ErrUnsupportedVersion }

// ValidateName reports whether name is usable as a package name.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return &InvalidConfigError{Reason: fmt.Sprintf("invalid package name %q", name)}
	}
	return nil
}

// New returns an empty descriptor bound to path.
func New(path string) *PackageFile {
	return &PackageFile{Version: CurrentVersion, Path: path}
}

// Parse reads a package descriptor.
func Parse(data []byte, path string) (*PackageFile, error) {
	return parse(data, path, "#PackageFile")
}

// ParseRoot reads the root package descriptor, which may carry an override order.
func ParseRoot(data []byte, path string) (*PackageFile, error) {
	return parse(data, path, "#RootPackageFile")
}

func parse(data []byte, path, definition string) (*PackageFile, error) {
	if err := peekVersion(data, path); err != nil {
		return nil, err
	}

	result, err := cueutil.ParseAndDecodeString[PackageFile](schema, data, definition, cueutil.WithFilename(path))
	if err != nil {
		return nil, &InvalidConfigError{Path: path, Cause: err}
	}

	f := result.Value
	f.Path = path
	if f.Version == "" {
		f.Version = CurrentVersion
	}

	// UUIDs are stored in canonical lowercase form so lookups by uuid.UUID
	// match however the descriptor spelled them.
	for i, b := range f.Bindings {
		id, err := uuid.Parse(b.UUID)
		if err != nil {
			return nil, &InvalidConfigError{Path: path, Reason: fmt.Sprintf("bindings[%d].uuid: %q is not a UUID", i, b.UUID)}
		}
		f.Bindings[i].UUID = id.String()
	}

	return f, nil
}

// Encode renders the descriptor as CUE source.
func (f *PackageFile) Encode() ([]byte, error) {
	return cueutil.Encode(f)
}

// ResourcePaths returns the mapped resource paths in sorted order.
func (f *PackageFile) ResourcePaths() []string {
	return slices.Sorted(maps.Keys(f.Resources))
}

// HasBindingType reports whether the file declares a binding type named name.
func (f *PackageFile) HasBindingType(name string) bool {
	return slices.ContainsFunc(f.BindingTypes, func(t BindingTypeDescriptor) bool { return t.Name == name })
}

// AddBindingType appends a binding type declaration.
func (f *PackageFile) AddBindingType(t BindingTypeDescriptor) {
	f.BindingTypes = append(f.BindingTypes, t)
}

// RemoveBindingType drops the declaration named name and reports whether one existed.
func (f *PackageFile) RemoveBindingType(name string) bool {
	n := len(f.BindingTypes)
	f.BindingTypes = slices.DeleteFunc(f.BindingTypes, func(t BindingTypeDescriptor) bool { return t.Name == name })
	return len(f.BindingTypes) != n
}

// AddBinding appends a binding declaration.
func (f *PackageFile) AddBinding(b BindingDescriptor) {
	f.Bindings = append(f.Bindings, b)
}

// HasBinding reports whether the file declares a binding with the given UUID.
func (f *PackageFile) HasBinding(id uuid.UUID) bool {
	return slices.ContainsFunc(f.Bindings, func(b BindingDescriptor) bool { return b.Is(id) })
}

// RemoveBinding drops every declaration with the given UUID and reports whether one existed.
func (f *PackageFile) RemoveBinding(id uuid.UUID) bool {
	n := len(f.Bindings)
	f.Bindings = slices.DeleteFunc(f.Bindings, func(b BindingDescriptor) bool { return b.Is(id) })
	return len(f.Bindings) != n
}

// Is reports whether the descriptor's UUID denotes id, in any spelling
// uuid.Parse accepts.
func (b BindingDescriptor) Is(id uuid.UUID) bool {
	parsed, err := uuid.Parse(b.UUID)
	return err == nil && parsed == id
}

// Clone returns a deep copy, used to roll back failed saves.
func (f *PackageFile) Clone() *PackageFile {
	c := *f
	c.Resources = maps.Clone(f.Resources)
	c.Override = slices.Clone(f.Override)
	c.OverrideOrder = slices.Clone(f.OverrideOrder)
	c.BindingTypes = slices.Clone(f.BindingTypes)
	for i := range c.BindingTypes {
		c.BindingTypes[i].Parameters = slices.Clone(c.BindingTypes[i].Parameters)
	}
	c.Bindings = slices.Clone(f.Bindings)
	for i := range c.Bindings {
		c.Bindings[i].Parameters = maps.Clone(c.Bindings[i].Parameters)
	}
	return &c
}

// NewInstallFile returns an empty install file bound to path.
func NewInstallFile(path string) *InstallFile {
	return &InstallFile{Version: CurrentVersion, Path: path}
}

// ParseInstallFile reads install metadata.
func ParseInstallFile(data []byte, path string) (*InstallFile, error) {
	if err := peekVersion(data, path); err != nil {
		return nil, err
	}

	result, err := cueutil.ParseAndDecodeString[InstallFile](schema, data, "#InstallFile", cueutil.WithFilename(path))
	if err != nil {
		return nil, &InvalidConfigError{Path: path, Cause: err}
	}

	f := result.Value
	f.Path = path
	if f.Version == "" {
		f.Version = CurrentVersion
	}
	for i := range f.Packages {
		if f.Packages[i].Installer == "" {
			f.Packages[i].Installer = DefaultInstallerName
		}
	}
	return f, nil
}

// Encode renders the install file as CUE source.
func (f *InstallFile) Encode() ([]byte, error) {
	return cueutil.Encode(f)
}

// Get returns the install info for the package named name.
func (f *InstallFile) Get(name string) (InstallInfo, bool) {
	i := slices.IndexFunc(f.Packages, func(info InstallInfo) bool { return info.Name == name })
	if i < 0 {
		return InstallInfo{}, false
	}
	return f.Packages[i], true
}

// Has reports whether install info exists for name.
func (f *InstallFile) Has(name string) bool {
	_, ok := f.Get(name)
	return ok
}

// Add appends install info.
func (f *InstallFile) Add(info InstallInfo) {
	f.Packages = append(f.Packages, info)
}

// Remove deletes the install info for name and reports whether it existed.
func (f *InstallFile) Remove(name string) bool {
	n := len(f.Packages)
	f.Packages = slices.DeleteFunc(f.Packages, func(info InstallInfo) bool { return info.Name == name })
	return len(f.Packages) != n
}

// Clone returns a copy with its own package slice.
func (f *InstallFile) Clone() *InstallFile {
	c := *f
	c.Packages = slices.Clone(f.Packages)
	return &c
}

// peekVersion rejects unknown format versions before schema validation so a
// newer file is reported as unsupported rather than malformed.
func peekVersion(data []byte, path string) error {
	version, ok, err := cueutil.LookupString(data, "version", path)
	if err != nil {
		return &InvalidConfigError{Path: path, Cause: err}
	}
	if !ok || slices.Contains(supportedVersions, version) {
		return nil
	}
	return &UnsupportedVersionError{Path: path, Version: version}
}
