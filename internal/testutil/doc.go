// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by package tests: filesystem
// helpers that fail the test on error (MustMkdirAll, MustWriteFile,
// WritePackage) and MemoryStorage, an in-memory implementation of the storage
// ports with save-failure injection.
package testutil
