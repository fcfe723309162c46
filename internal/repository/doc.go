// SPDX-License-Identifier: MPL-2.0

// Package repository merges the resource mappings of all enabled packages
// into one view and hands it to a materializer when a build runs.
//
// A build first resolves every conflicting path through the override graph.
// A resolution failure aborts the build without touching the registry.
// Listeners then receive a BuildEvent and may skip the build, for example
// when the materialized output is already up to date.
package repository
