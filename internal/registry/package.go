// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"errors"
	"fmt"

	"github.com/resmerge/resmerge/pkg/pkgfile"
)

const (
	// StateLoading is the state of a package whose descriptor is being read.
	StateLoading State = iota
	// StateEnabled marks a package that loaded successfully.
	StateEnabled
	// StateNotFound marks a package whose install path does not exist.
	StateNotFound
	// StateNotLoadable marks a package whose descriptor could not be used.
	StateNotLoadable
	// StateDuplicate marks a package whose name is already taken by another
	// package loaded earlier.
	StateDuplicate
)

// ErrInvalidState is returned by ParseState for unknown names.
var ErrInvalidState = errors.New("invalid package state")

type (
	// State is the load state of a package.
	State int

	// Package is an installed package or the root package.
	Package struct {
		Name string
		// InstallPath is absolute and cleaned.
		InstallPath string
		// InstallInfo is nil for the root package.
		InstallInfo *pkgfile.InstallInfo
		// File is nil when the descriptor could not be loaded.
		File    *pkgfile.PackageFile
		LoadErr error
		State   State

		root bool
	}

	// Filter selects packages in queries.
	Filter func(*Package) bool
)

var stateNames = map[State]string{
	StateLoading:     "loading",
	StateEnabled:     "enabled",
	StateNotFound:    "not-found",
	StateNotLoadable: "not-loadable",
	StateDuplicate:   "duplicate",
}

// String returns the state name used in CLI output and flags.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ParseState converts a state name back into a State.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidState, name)
}

// IsRoot reports whether p is the project's own package.
func (p *Package) IsRoot() bool { return p.root }

// IsEnabled reports whether p loaded successfully.
func (p *Package) IsEnabled() bool { return p.State == StateEnabled }

// Installer returns the name of the installer, or "" for the root package.
func (p *Package) Installer() string {
	if p.InstallInfo == nil {
		return ""
	}
	return p.InstallInfo.Installer
}

// WithState selects packages in state s.
func WithState(s State) Filter {
	return func(p *Package) bool { return p.State == s }
}

// stateFromError derives the terminal load state from a load error.
func stateFromError(err error) State {
	switch {
	case err == nil:
		return StateEnabled
	case errors.Is(err, pkgfile.ErrNotFound):
		return StateNotFound
	default:
		return StateNotLoadable
	}
}
