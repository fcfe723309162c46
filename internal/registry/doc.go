// SPDX-License-Identifier: MPL-2.0

// Package registry owns the packages of a project: the root package and every
// installed package recorded in the install metadata.
//
// Explicit operations (Install, Remove, UpdateRoot) fail fast and leave the
// registry unchanged on error. LoadAll never fails because of a single
// package: load errors are recorded on the package as its State.
package registry
