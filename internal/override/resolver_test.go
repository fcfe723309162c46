// SPDX-License-Identifier: MPL-2.0

package override

import (
	"errors"
	"slices"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/resmerge/resmerge/internal/dag"
)

type fakeSource struct {
	decls []Declaration
	order []string
	calls int
}

func (s *fakeSource) OverrideDeclarations() []Declaration {
	s.calls++
	return s.decls
}

func (s *fakeSource) OverrideOrder() []string { return s.order }

func TestResolve_NoDeclarations(t *testing.T) {
	t.Parallel()

	r := NewResolver(&fakeSource{decls: []Declaration{{Package: "A"}, {Package: "B"}}})

	_, err := r.Resolve("/app/blog", []string{"B", "A"})
	require.ErrorIs(t, err, ErrPackageConflict)

	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, "/app/blog", conflictErr.Conflict.Path)
	assert.Equal(t, []string{"A", "B"}, conflictErr.Conflict.PackageNames)
	assert.Nil(t, conflictErr.Cycle)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "conflict_two_packages", []byte(err.Error()))
}

func TestResolve_OverrideOrder(t *testing.T) {
	t.Parallel()

	r := NewResolver(&fakeSource{
		decls: []Declaration{{Package: "A"}, {Package: "B"}},
		order: []string{"B", "A"},
	})

	winner, err := r.Resolve("/app/blog", []string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, "A", winner)
}

func TestResolve_OverrideDeclaration(t *testing.T) {
	t.Parallel()

	r := NewResolver(&fakeSource{decls: []Declaration{
		{Package: "acme/base"},
		{Package: "acme/theme", Overrides: []string{"acme/base"}},
		{Package: "acme/site", Overrides: []string{"acme/theme"}},
	}})

	winner, err := r.Resolve("/app/css", []string{"acme/base", "acme/site", "acme/theme"})
	require.NoError(t, err)
	assert.Equal(t, "acme/site", winner, "precedence is transitive")

	winner, err = r.Resolve("/app/js", []string{"acme/base", "acme/theme"})
	require.NoError(t, err)
	assert.Equal(t, "acme/theme", winner)
}

func TestResolve_OverrideOrderChainIsTransitive(t *testing.T) {
	t.Parallel()

	r := NewResolver(&fakeSource{order: []string{"A", "B", "C"}})

	winner, err := r.Resolve("/x", []string{"A", "C"})
	require.NoError(t, err)
	assert.Equal(t, "C", winner)
}

func TestResolve_PartialOrderFails(t *testing.T) {
	t.Parallel()

	// B and C both override A but nothing orders B against C.
	r := NewResolver(&fakeSource{decls: []Declaration{
		{Package: "B", Overrides: []string{"A"}},
		{Package: "C", Overrides: []string{"A"}},
	}})

	_, err := r.Resolve("/x", []string{"A", "B", "C"})
	require.ErrorIs(t, err, ErrPackageConflict)

	winner, err := r.Resolve("/x", []string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, "B", winner)
}

func TestResolve_CycleRejected(t *testing.T) {
	t.Parallel()

	r := NewResolver(&fakeSource{decls: []Declaration{
		{Package: "A", Overrides: []string{"B"}},
		{Package: "B", Overrides: []string{"A"}},
	}})

	_, err := r.Resolve("/app/blog", []string{"A", "B"})
	require.ErrorIs(t, err, ErrPackageConflict)

	var cycleErr *dag.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"A", "B", "A"}, cycleErr.Cycle)
}

func TestResolve_CycleBetweenMembers(t *testing.T) {
	t.Parallel()

	// acme/theme and acme/base override each other; acme/blog overrides both.
	r := NewResolver(&fakeSource{decls: []Declaration{
		{Package: "acme/theme", Overrides: []string{"acme/base"}},
		{Package: "acme/base", Overrides: []string{"acme/theme"}},
		{Package: "acme/blog", Overrides: []string{"acme/theme", "acme/base"}},
	}})

	_, err := r.Resolve("/app/css", []string{"acme/theme", "acme/blog", "acme/base"})
	require.Error(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "conflict_cycle", []byte(err.Error()))
}

func TestResolve_CycleOnPathBetweenMembers(t *testing.T) {
	t.Parallel()

	// A -> X <-> Y -> B: the only route from A to B passes through a cycle.
	r := NewResolver(&fakeSource{decls: []Declaration{
		{Package: "X", Overrides: []string{"A", "Y"}},
		{Package: "Y", Overrides: []string{"X"}},
		{Package: "B", Overrides: []string{"Y"}},
	}})

	_, err := r.Resolve("/x", []string{"A", "B"})
	var cycleErr *dag.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"X", "Y", "X"}, cycleErr.Cycle)
}

func TestResolve_UnrelatedCycleIgnored(t *testing.T) {
	t.Parallel()

	r := NewResolver(&fakeSource{decls: []Declaration{
		{Package: "B", Overrides: []string{"A"}},
		{Package: "X", Overrides: []string{"Y"}},
		{Package: "Y", Overrides: []string{"X"}},
	}})

	winner, err := r.Resolve("/x", []string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, "B", winner)
}

func TestResolve_SingleAndDuplicateNames(t *testing.T) {
	t.Parallel()

	r := NewResolver(&fakeSource{})

	winner, err := r.Resolve("/x", []string{"A", "A"})
	require.NoError(t, err)
	assert.Equal(t, "A", winner)

	winner, err = r.Resolve("/x", nil)
	require.NoError(t, err)
	assert.Empty(t, winner)
}

func TestResolver_CachesUntilInvalidated(t *testing.T) {
	t.Parallel()

	src := &fakeSource{decls: []Declaration{{Package: "A"}, {Package: "B"}}}
	r := NewResolver(src)

	_, err := r.Resolve("/a", []string{"A", "B"})
	require.Error(t, err)
	_, err = r.Resolve("/b", []string{"B", "A"})
	require.Error(t, err)
	assert.Equal(t, 1, src.calls)

	src.decls = []Declaration{{Package: "A"}, {Package: "B", Overrides: []string{"A"}}}
	winner, err := r.Resolve("/a", []string{"A", "B"})
	require.Error(t, err, "stale cache is expected before Invalidate")
	assert.Empty(t, winner)

	r.Invalidate()
	winner, err = r.Resolve("/a", []string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, "B", winner)
	assert.Equal(t, 2, src.calls)
}

func TestQuoteNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		names []string
		want  string
	}{
		{[]string{"A"}, `"A"`},
		{[]string{"A", "B"}, `"A" and "B"`},
		{[]string{"A", "B", "C"}, `"A", "B" and "C"`},
	}
	for _, tt := range tests {
		if got := quoteNames(tt.names); got != tt.want {
			t.Errorf("quoteNames(%v) = %q, want %q", tt.names, got, tt.want)
		}
	}
}

// Resolution must not depend on the order packages were registered in or the
// order conflicting names are passed.
func TestResolve_Deterministic(t *testing.T) {
	t.Parallel()

	packages := []string{"A", "B", "C", "D", "E"}

	rapid.Check(t, func(rt *rapid.T) {
		var decls []Declaration
		for _, p := range packages {
			var overrides []string
			for _, q := range packages {
				if q != p && rapid.IntRange(0, 3).Draw(rt, "edge-"+p+q) == 0 {
					overrides = append(overrides, q)
				}
			}
			decls = append(decls, Declaration{Package: p, Overrides: overrides})
		}
		members := rapid.SliceOfNDistinct(rapid.SampledFrom(packages), 2, 5, rapid.ID[string]).Draw(rt, "members")

		reversedDecls := slices.Clone(decls)
		slices.Reverse(reversedDecls)
		reversedMembers := slices.Clone(members)
		slices.Reverse(reversedMembers)

		w1, err1 := NewResolver(&fakeSource{decls: decls}).Resolve("/p", members)
		w2, err2 := NewResolver(&fakeSource{decls: reversedDecls}).Resolve("/p", reversedMembers)

		if w1 != w2 {
			rt.Fatalf("winner depends on order: %q vs %q", w1, w2)
		}
		if (err1 == nil) != (err2 == nil) {
			rt.Fatalf("error depends on order: %v vs %v", err1, err2)
		}
		if err1 != nil && err1.Error() != err2.Error() {
			rt.Fatalf("message depends on order:\n%s\n%s", err1, err2)
		}
		if err1 == nil && !slices.Contains(members, w1) {
			rt.Fatalf("winner %q is not a member of %v", w1, members)
		}
		if errors.Is(err1, ErrPackageConflict) && w1 != "" {
			rt.Fatalf("conflict must not report a winner")
		}
	})
}
