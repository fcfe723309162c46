// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resmerge/resmerge/internal/config"
	"github.com/resmerge/resmerge/internal/dag"
	"github.com/resmerge/resmerge/internal/issue"
	"github.com/resmerge/resmerge/internal/override"
	"github.com/resmerge/resmerge/internal/registry"
	"github.com/resmerge/resmerge/internal/testutil"
	"github.com/resmerge/resmerge/pkg/pkgfile"
)

const rootDir = "/srv/site"

type recordingMaterializer struct {
	views []*View
	err   error
}

func (m *recordingMaterializer) Materialize(_ context.Context, v *View) error {
	if m.err != nil {
		return m.err
	}
	m.views = append(m.views, v)
	return nil
}

func newRegistry(t *testing.T, packages map[string]*pkgfile.PackageFile, order ...string) *registry.Registry {
	t.Helper()
	mem := testutil.NewMemoryStorage()
	r := registry.New(registry.Options{
		RootDir:        rootDir,
		InstallFile:    rootDir + "/.resmerge/install.cue",
		PackageStorage: mem,
		InstallStorage: mem,
	})
	require.NoError(t, r.LoadAll())

	for _, dir := range []string{"vendor/a", "vendor/b", "vendor/c"} {
		f, ok := packages[dir]
		if !ok {
			continue
		}
		mem.AddPackage(filepath.Join(rootDir, dir), f)
		_, err := r.Install(dir, "", "")
		require.NoError(t, err)
	}

	if len(order) > 0 {
		require.NoError(t, r.UpdateRoot(func(f *pkgfile.PackageFile) error {
			f.OverrideOrder = order
			return nil
		}))
	}
	return r
}

func descriptor(name string, resources map[string]string, overrides ...string) *pkgfile.PackageFile {
	f := pkgfile.New("")
	f.Name = name
	f.Resources = resources
	f.Override = overrides
	return f
}

func blogPackages() map[string]*pkgfile.PackageFile {
	return map[string]*pkgfile.PackageFile{
		"vendor/a": descriptor("A", map[string]string{"/app/blog": "res/a", "/app/about": "res/about"}),
		"vendor/b": descriptor("B", map[string]string{"/app/blog": "res/b"}),
	}
}

func TestNewView_UnresolvedConflict(t *testing.T) {
	t.Parallel()

	_, err := NewView(newRegistry(t, blogPackages()))
	require.ErrorIs(t, err, override.ErrPackageConflict)

	var conflict *override.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "/app/blog", conflict.Conflict.Path)
	assert.Equal(t, []string{"A", "B"}, conflict.Conflict.PackageNames)
}

func TestNewView_OverrideOrder(t *testing.T) {
	t.Parallel()

	v, err := NewView(newRegistry(t, blogPackages(), "B", "A"))
	require.NoError(t, err)

	m, ok := v.Get("/app/blog")
	require.True(t, ok)
	assert.Equal(t, Mapping{Path: "/app/blog", Package: "A", Target: "res/a"}, m)
	assert.Equal(t, 2, v.Len())
	assert.Equal(t, "/app/about", v.Mappings()[0].Path)

	_, ok = v.Get("/app/missing")
	assert.False(t, ok)
}

func TestNewView_PackageOverride(t *testing.T) {
	t.Parallel()

	pkgs := blogPackages()
	pkgs["vendor/b"] = descriptor("B", map[string]string{"/app/blog": "res/b"}, "A")

	v, err := NewView(newRegistry(t, pkgs))
	require.NoError(t, err)
	m, _ := v.Get("/app/blog")
	assert.Equal(t, "B", m.Package)
}

func TestNewView_Cycle(t *testing.T) {
	t.Parallel()

	pkgs := map[string]*pkgfile.PackageFile{
		"vendor/a": descriptor("A", map[string]string{"/app/blog": "res/a"}, "B"),
		"vendor/b": descriptor("B", map[string]string{"/app/blog": "res/b"}, "A"),
	}

	_, err := NewView(newRegistry(t, pkgs))
	require.ErrorIs(t, err, override.ErrPackageConflict)
	var cycle *dag.CycleError
	assert.ErrorAs(t, err, &cycle)
}

func TestBuild_Materializes(t *testing.T) {
	t.Parallel()

	m := &recordingMaterializer{}
	c := NewCoordinator(newRegistry(t, blogPackages(), "B", "A"), m)

	res, err := c.Build(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	require.Len(t, m.views, 1)
	assert.Same(t, res.View, m.views[0])
}

func TestBuild_ListenerSkips(t *testing.T) {
	t.Parallel()

	m := &recordingMaterializer{}
	var seen []*View
	c := NewCoordinator(newRegistry(t, blogPackages(), "B", "A"), m,
		WithListener(func(e *BuildEvent) { e.SkipBuild() }))
	c.OnBeforeBuild(func(e *BuildEvent) {
		assert.True(t, e.IsSkipped())
		seen = append(seen, e.View())
	})

	res, err := c.Build(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, m.views)
	require.Len(t, seen, 1)
	assert.Equal(t, 2, seen[0].Len())
}

func TestBuild_ConflictLeavesRegistryUsable(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t, blogPackages())
	m := &recordingMaterializer{}
	called := false
	c := NewCoordinator(reg, m, WithListener(func(*BuildEvent) { called = true }))

	_, err := c.Build(context.Background())
	require.Error(t, err)
	assert.False(t, called)
	assert.Empty(t, m.views)

	var ae *issue.ActionableError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, issue.PackageConflictId, ae.IssueId)
	assert.Equal(t, "/app/blog", ae.Resource)

	assert.True(t, reg.Has("A"))
	assert.True(t, reg.Has("B"))
	assert.Len(t, reg.Conflicts(), 1)
}

func TestBuild_MaterializeFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	c := NewCoordinator(newRegistry(t, blogPackages(), "B", "A"), &recordingMaterializer{err: boom})

	_, err := c.Build(context.Background())
	require.ErrorIs(t, err, boom)
	var ae *issue.ActionableError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, issue.BuildFailedId, ae.IssueId)
}

func TestFileMaterializer_Golden(t *testing.T) {
	t.Parallel()

	v, err := NewView(newRegistry(t, blogPackages(), "B", "A"))
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	for _, format := range []config.RepositoryFormat{config.FormatYAML, config.FormatTOML} {
		dir := t.TempDir()
		m := NewFileMaterializer(dir, format, nil)
		require.NoError(t, m.Materialize(context.Background(), v))

		data, err := os.ReadFile(m.OutputPath())
		require.NoError(t, err)
		g.Assert(t, "mappings_"+string(format), data)
	}
}

func TestFileMaterializer_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	m := NewFileMaterializer(dir, config.FormatYAML, nil)
	err := m.Materialize(ctx, &View{})
	require.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, m.OutputPath())
}

func TestSkipIfUnchanged(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t, blogPackages(), "B", "A")
	m := NewFileMaterializer(t.TempDir(), config.FormatYAML, nil)
	c := NewCoordinator(reg, m, WithListener(SkipIfUnchanged(m)))

	first, err := c.Build(context.Background())
	require.NoError(t, err)
	assert.False(t, first.Skipped)

	second, err := c.Build(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Skipped)

	require.NoError(t, reg.UpdateRoot(func(f *pkgfile.PackageFile) error {
		f.OverrideOrder = []string{"A", "B"}
		return nil
	}))
	third, err := c.Build(context.Background())
	require.NoError(t, err)
	assert.False(t, third.Skipped)
	m3, _ := third.View.Get("/app/blog")
	assert.Equal(t, "B", m3.Package)
}
