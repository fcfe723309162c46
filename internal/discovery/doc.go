// SPDX-License-Identifier: MPL-2.0

// Package discovery keeps bindings consistent with the binding types they
// reference.
//
// A binding type is a named parameter schema; a binding attaches a resource
// query to a type with parameter values. Several packages may contribute the
// same binding (same UUID); every instance is kept and reloaded together.
// Validation problems are never returned as errors: they are recorded in the
// State of the binding and reported through Diagnostics.
//
// Reload is scoped. Reloading the bindings of one type never touches the
// bindings of another type.
package discovery
