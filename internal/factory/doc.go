// SPDX-License-Identifier: MPL-2.0

// Package factory regenerates derived artifacts from the binding state.
//
// The CUE generator writes a manifest of the enabled binding types and
// bindings. Projects call it after each reload when factory.auto_generate
// is set.
package factory
