// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"slices"

	"github.com/resmerge/resmerge/internal/override"
	"github.com/resmerge/resmerge/internal/registry"
)

type (
	// Mapping is the effective target of one resource path.
	Mapping struct {
		Path    string `yaml:"path" toml:"path"`
		Package string `yaml:"package" toml:"package"`
		Target  string `yaml:"target" toml:"target"`
	}

	// Source provides the contributions and the resolver a view is built
	// from. *registry.Registry implements it.
	Source interface {
		Contributions() []registry.Contribution
		Resolver() *override.Resolver
	}

	// View is the merged repository: one mapping per path, sorted by path.
	View struct {
		mappings []Mapping
	}
)

// NewView merges the contributions of src. Paths contributed by one package
// map directly; shared paths go to the package the resolver picks. The first
// unresolvable path, in path order, fails the whole view.
func NewView(src Source) (*View, error) {
	contributions := src.Contributions()
	resolver := src.Resolver()
	v := &View{}

	for start := 0; start < len(contributions); {
		end := start + 1
		for end < len(contributions) && contributions[end].Path == contributions[start].Path {
			end++
		}
		group := contributions[start:end]
		start = end

		if len(group) == 1 {
			v.mappings = append(v.mappings, Mapping(group[0]))
			continue
		}

		names := make([]string, 0, len(group))
		for _, c := range group {
			names = append(names, c.Package)
		}
		winner, err := resolver.Resolve(group[0].Path, names)
		if err != nil {
			return nil, err
		}
		i := slices.IndexFunc(group, func(c registry.Contribution) bool { return c.Package == winner })
		v.mappings = append(v.mappings, Mapping(group[i]))
	}

	return v, nil
}

// Mappings returns a copy of the mappings sorted by path.
func (v *View) Mappings() []Mapping {
	return slices.Clone(v.mappings)
}

// Get returns the mapping of path.
func (v *View) Get(path string) (Mapping, bool) {
	i, ok := slices.BinarySearchFunc(v.mappings, path, func(m Mapping, p string) int {
		switch {
		case m.Path < p:
			return -1
		case m.Path > p:
			return 1
		default:
			return 0
		}
	})
	if !ok {
		return Mapping{}, false
	}
	return v.mappings[i], true
}

// Len returns the number of mapped paths.
func (v *View) Len() int {
	return len(v.mappings)
}
