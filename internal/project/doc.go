// SPDX-License-Identifier: MPL-2.0

// Package project wires one resmerge project together: configuration, the
// package registry, the binding engine and the build coordinator.
//
// A Project owns all of its state. Two projects opened in one process never
// share anything, and a Project is not safe for concurrent use.
package project
