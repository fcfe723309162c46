// SPDX-License-Identifier: MPL-2.0

// Package pkgfile defines the descriptor files a resmerge project is made of
// and converts them to and from CUE.
//
// # Files
//
//   - resmerge.cue in every package directory: the [PackageFile] with the
//     package name, resource mappings, override declarations, binding types
//     and bindings
//   - resmerge.cue in the project root: the same file plus the project-wide
//     override-order list ([PackageFile.OverrideOrder])
//   - install.cue in the state directory: the [InstallFile] listing every
//     installed package with its install path and installer name
//
// Failures are classified by the sentinel errors [ErrNotFound],
// [ErrNotADirectory], [ErrInvalidConfig] and [ErrUnsupportedVersion] so callers
// can decide whether to surface them or record them on the package.
package pkgfile
