// SPDX-License-Identifier: MPL-2.0

package discovery

const (
	// ScopeAll selects every binding.
	ScopeAll ScopeKind = iota
	// ScopeType selects the bindings referencing one type name.
	ScopeType
	// ScopePackage selects the bindings declared by one package.
	ScopePackage
)

type (
	// ScopeKind selects how a Scope matches bindings.
	ScopeKind int

	// Scope selects the bindings a reload recomputes.
	Scope struct {
		Kind ScopeKind
		// Name is the type name or package name; empty for ScopeAll.
		Name string
	}
)

// AllScope selects every binding.
func AllScope() Scope { return Scope{Kind: ScopeAll} }

// TypeScope selects the bindings referencing the type typeName.
func TypeScope(typeName string) Scope { return Scope{Kind: ScopeType, Name: typeName} }

// PackageScope selects the bindings declared by the package owner.
func PackageScope(owner string) Scope { return Scope{Kind: ScopePackage, Name: owner} }

// Matches reports whether b is in the scope.
func (s Scope) Matches(b *Binding) bool {
	switch s.Kind {
	case ScopeType:
		return b.TypeName == s.Name
	case ScopePackage:
		return b.Owner == s.Name
	default:
		return true
	}
}

func (s Scope) String() string {
	switch s.Kind {
	case ScopeType:
		return "type " + s.Name
	case ScopePackage:
		return "package " + s.Name
	default:
		return "all"
	}
}
