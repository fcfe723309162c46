// SPDX-License-Identifier: MPL-2.0

// Package storage implements the durable ports the registry reads and writes:
// package descriptors (resmerge.cue) and install metadata (install.cue).
//
// Every load returns a fresh snapshot and every save atomically replaces the
// file on disk. Concurrent external edits between a load and a save are not
// detected.
package storage
