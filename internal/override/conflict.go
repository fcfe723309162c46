// SPDX-License-Identifier: MPL-2.0

package override

import (
	"errors"
	"fmt"
	"strings"

	"github.com/resmerge/resmerge/internal/dag"
)

// ErrPackageConflict is the sentinel error wrapped by ConflictError.
var ErrPackageConflict = errors.New("package conflict")

type (
	// PackageConflict is a resource path claimed by several packages.
	// PackageNames is sorted. Conflicts are computed on demand and never stored.
	PackageConflict struct {
		Path         string
		PackageNames []string
	}

	// ConflictError reports a conflict without a unique winner. Cycle is set
	// when the override declarations between the packages form a cycle.
	ConflictError struct {
		Conflict PackageConflict
		Cycle    *dag.CycleError
	}
)

// Error implements the error interface.
func (e *ConflictError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "The packages %s add resources for the same path %q, ", quoteNames(e.Conflict.PackageNames), e.Conflict.Path)
	if e.Cycle != nil {
		fmt.Fprintf(&b, "but their override order contains a cycle (%s).", strings.Join(e.Cycle.Cycle, " -> "))
	} else {
		b.WriteString("but have no override order defined between them.")
	}

	b.WriteString("\n\nResolutions:\n\n")
	b.WriteString(`(1) Add the key "override" to the descriptor of one package and set its value to the other package name.`)
	b.WriteString("\n")
	b.WriteString(`(2) Add the key "override-order" to the descriptor of the root package and define the order of the packages there.`)

	return b.String()
}

// Unwrap returns ErrPackageConflict and, for cycles, the *dag.CycleError.
func (e *ConflictError) Unwrap() []error {
	if e.Cycle != nil {
		return []error{ErrPackageConflict, e.Cycle}
	}
	return []error{ErrPackageConflict}
}

// quoteNames renders names as "A", "B" and "C".
func quoteNames(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	if len(quoted) < 2 {
		return strings.Join(quoted, "")
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + " and " + quoted[len(quoted)-1]
}
