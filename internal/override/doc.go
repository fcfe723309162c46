// SPDX-License-Identifier: MPL-2.0

// Package override decides which package wins when several packages map the
// same resource path.
//
// Precedence is an explicit graph: an edge X -> Y reads "X is overridden by
// Y". Edges come from the override declarations of each package and from the
// root package's override-order list, where every entry is overridden by all
// entries that follow it. The graph is rebuilt from scratch after every
// invalidation and never patched in place.
package override
