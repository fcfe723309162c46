// SPDX-License-Identifier: MPL-2.0

package override

import (
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	gocache "github.com/patrickmn/go-cache"

	"github.com/resmerge/resmerge/internal/dag"
)

type (
	// Declaration lists the packages one package overrides.
	Declaration struct {
		Package   string
		Overrides []string
	}

	// Source provides the inputs of the override graph.
	Source interface {
		// OverrideDeclarations returns the declarations of every enabled package.
		OverrideDeclarations() []Declaration
		// OverrideOrder returns the root package's override-order list,
		// lowest precedence first.
		OverrideOrder() []string
	}

	// Option configures a Resolver.
	Option func(*Resolver)

	// Resolver answers which package wins a conflicting path. The graph and
	// the resolution results are cached until Invalidate is called.
	Resolver struct {
		source Source
		logger *log.Logger

		graph  *dag.Graph
		cycles [][]string

		// results caches outcomes per sorted conflict set. Outcomes do not
		// depend on the path, which is only part of the error message.
		results *gocache.Cache
	}

	outcome struct {
		winner string
		cycle  []string
	}
)

// WithLogger sets the logger used for debug output.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver creates a resolver reading declarations from source.
func NewResolver(source Source, opts ...Option) *Resolver {
	r := &Resolver{
		source:  source,
		logger:  log.New(io.Discard),
		results: gocache.New(gocache.NoExpiration, 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Invalidate drops the cached graph and all cached resolutions. Call it
// whenever package membership or any override declaration changes.
func (r *Resolver) Invalidate() {
	r.graph = nil
	r.cycles = nil
	r.results.Flush()
}

// Graph returns the override graph, building it if needed.
func (r *Resolver) Graph() *dag.Graph {
	if r.graph != nil {
		return r.graph
	}

	g := dag.New()
	for _, decl := range r.source.OverrideDeclarations() {
		g.AddNode(decl.Package)
		for _, overridden := range decl.Overrides {
			g.AddEdge(overridden, decl.Package)
		}
	}

	order := r.source.OverrideOrder()
	for i, lower := range order {
		g.AddNode(lower)
		for _, higher := range order[i+1:] {
			if higher != lower {
				g.AddEdge(lower, higher)
			}
		}
	}

	r.graph = g
	r.cycles = g.Cycles()
	r.logger.Debug("Built override graph", "nodes", g.Len(), "cycles", len(r.cycles))
	return g
}

// Resolve returns the package among names whose contribution to path takes
// effect. It fails with a *ConflictError when no single package overrides all
// others, or when a cycle lies between them.
func (r *Resolver) Resolve(path string, names []string) (string, error) {
	members := slices.Compact(slices.Sorted(slices.Values(names)))
	switch len(members) {
	case 0:
		return "", nil
	case 1:
		return members[0], nil
	}

	key := strings.Join(members, "\x00")
	var out outcome
	if cached, ok := r.results.Get(key); ok {
		out = cached.(outcome)
	} else {
		out = r.resolve(members)
		r.results.Set(key, out, gocache.NoExpiration)
	}

	if out.winner != "" {
		return out.winner, nil
	}

	err := &ConflictError{Conflict: PackageConflict{Path: path, PackageNames: members}}
	if out.cycle != nil {
		err.Cycle = &dag.CycleError{Cycle: out.cycle}
	}
	return "", err
}

func (r *Resolver) resolve(members []string) outcome {
	g := r.Graph()

	reach := make(map[string]map[string]bool, len(members))
	for _, m := range members {
		reach[m] = g.Reachable(m)
	}

	if cycle := r.cycleBetween(members, reach); cycle != nil {
		return outcome{cycle: cycle}
	}

	winner := ""
	for _, candidate := range members {
		beatsAll := true
		for _, other := range members {
			if other != candidate && !reach[other][candidate] {
				beatsAll = false
				break
			}
		}
		if beatsAll {
			winner = candidate
			break
		}
	}
	return outcome{winner: winner}
}

// cycleBetween returns a cycle that a member lies on or that sits on a path
// from one member to another. Members are sorted by name and the first one is
// repeated at the end; among several cycles the one with the smallest name wins.
func (r *Resolver) cycleBetween(members []string, reach map[string]map[string]bool) []string {
	var found []string
	isMember := make(map[string]bool, len(members))
	for _, m := range members {
		isMember[m] = true
	}

	for _, cycle := range r.cycles {
		touches := false
		for _, node := range cycle {
			if isMember[node] {
				touches = true
				break
			}
			fromNode := r.graph.Reachable(node)
			fromMember, toMember := false, false
			for _, m := range members {
				fromMember = fromMember || reach[m][node]
				toMember = toMember || fromNode[m]
			}
			if fromMember && toMember {
				touches = true
				break
			}
		}
		if !touches {
			continue
		}
		sorted := slices.Sorted(slices.Values(cycle))
		if found == nil || sorted[0] < found[0] {
			found = sorted
		}
	}
	if found == nil {
		return nil
	}
	return append(found, found[0])
}
