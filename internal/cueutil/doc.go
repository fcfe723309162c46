// SPDX-License-Identifier: MPL-2.0

// Package cueutil holds the CUE plumbing shared by descriptor files and the
// project configuration.
//
// Reading follows a 3-step flow:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify with the schema definition
//  3. Validate and decode to a Go struct
//
// Writing goes the other way: a Go value is encoded into a CUE value and
// formatted as CUE source, so generated files always round-trip through the
// same schema.
package cueutil
