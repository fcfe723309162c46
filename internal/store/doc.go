// SPDX-License-Identifier: MPL-2.0

// Package store provides the in-memory collections that own every package,
// binding type and binding of a project.
//
// Collections iterate in insertion order so that anything derived from them
// (diagnostics, merged views, generated files) is deterministic. They are
// mutated in place and are not safe for concurrent use; callers serialize
// access.
package store
