// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// remediation hints. The markdown issue catalog holds the long-form help shown
// by the CLI for well-known failures such as package conflicts.
package issue
