// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/resmerge/resmerge/internal/dag"
	"github.com/resmerge/resmerge/internal/override"
	"github.com/resmerge/resmerge/internal/testutil"
	"github.com/resmerge/resmerge/pkg/pkgfile"
)

const (
	rootDir     = "/srv/site"
	installPath = "/srv/site/.resmerge/install.cue"
)

func newRegistry(t *testing.T) (*Registry, *testutil.MemoryStorage) {
	t.Helper()
	mem := testutil.NewMemoryStorage()
	r := New(Options{
		RootDir:        rootDir,
		InstallFile:    installPath,
		PackageStorage: mem,
		InstallStorage: mem,
	})
	require.NoError(t, r.LoadAll())
	return r, mem
}

func descriptor(name string, resources map[string]string, overrides ...string) *pkgfile.PackageFile {
	f := pkgfile.New("")
	f.Name = name
	f.Resources = resources
	f.Override = overrides
	return f
}

func TestInstall(t *testing.T) {
	t.Parallel()

	r, mem := newRegistry(t)
	mem.AddPackage("/srv/site/vendor/a", descriptor("A", nil))

	pkg, err := r.Install("vendor/a", "", "")
	require.NoError(t, err)

	assert.Equal(t, "A", pkg.Name)
	assert.Equal(t, "/srv/site/vendor/a", pkg.InstallPath)
	assert.Equal(t, StateEnabled, pkg.State)
	assert.Equal(t, pkgfile.DefaultInstallerName, pkg.Installer())
	assert.True(t, r.Has("A"))
	assert.True(t, r.IsInstalled("/srv/site/vendor/./a"))

	info, ok := mem.Install.Get("A")
	require.True(t, ok)
	assert.Equal(t, "vendor/a", info.InstallPath)
	assert.Equal(t, 1, mem.InstallSaves)
}

func TestInstall_ExplicitNameAndInstaller(t *testing.T) {
	t.Parallel()

	r, mem := newRegistry(t)
	mem.AddPackage("/opt/shared/b", descriptor("ignored", nil))

	pkg, err := r.Install("/opt/shared/b", "B", "composer")
	require.NoError(t, err)
	assert.Equal(t, "B", pkg.Name)
	assert.Equal(t, "composer", pkg.Installer())
	assert.Len(t, r.ByInstaller("composer", StateEnabled), 1)
	assert.Empty(t, r.ByInstaller(pkgfile.DefaultInstallerName, StateEnabled))
}

func TestInstall_SamePathIsNoop(t *testing.T) {
	t.Parallel()

	r, mem := newRegistry(t)
	mem.AddPackage("/srv/site/vendor/a", descriptor("A", nil))

	first, err := r.Install("vendor/a", "", "")
	require.NoError(t, err)
	second, err := r.Install("/srv/site/vendor/a/", "Other", "")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, mem.InstallSaves)
	assert.False(t, r.Has("Other"))
}

func TestInstall_NameConflict(t *testing.T) {
	t.Parallel()

	r, mem := newRegistry(t)
	mem.AddPackage("/srv/site/vendor/a", descriptor("A", nil))
	mem.AddPackage("/srv/site/vendor/a2", descriptor("A", nil))

	_, err := r.Install("vendor/a", "", "")
	require.NoError(t, err)
	before := len(r.All())

	_, err = r.Install("vendor/a2", "", "")
	require.ErrorIs(t, err, ErrNameConflict)

	var conflictErr *NameConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, `Cannot load package "A" at /srv/site/vendor/a2: The package at /srv/site/vendor/a has the same name.`, err.Error())

	assert.Len(t, r.All(), before)
	assert.Equal(t, 1, mem.InstallSaves)
	assert.False(t, r.IsInstalled("vendor/a2"))
}

func TestInstall_RootNameConflict(t *testing.T) {
	t.Parallel()

	r, mem := newRegistry(t)
	mem.AddPackage("/srv/site/vendor/x", descriptor(DefaultRootName, nil))

	_, err := r.Install("vendor/x", "", "")
	assert.ErrorIs(t, err, ErrNameConflict)
}

func TestInstall_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(mem *testutil.MemoryStorage)
		pkgName string
		want    error
	}{
		{
			name: "missing directory",
			want: pkgfile.ErrNotFound,
		},
		{
			name: "not a directory",
			setup: func(mem *testutil.MemoryStorage) {
				mem.LoadErrors["/srv/site/vendor/p"] = fmt.Errorf("%w: file", pkgfile.ErrNotADirectory)
			},
			want: pkgfile.ErrNotADirectory,
		},
		{
			name: "malformed descriptor",
			setup: func(mem *testutil.MemoryStorage) {
				mem.LoadErrors["/srv/site/vendor/p"] = &pkgfile.InvalidConfigError{Reason: "syntax"}
			},
			want: pkgfile.ErrInvalidConfig,
		},
		{
			name: "unsupported version",
			setup: func(mem *testutil.MemoryStorage) {
				mem.LoadErrors["/srv/site/vendor/p"] = &pkgfile.UnsupportedVersionError{Version: "9.0"}
			},
			want: pkgfile.ErrUnsupportedVersion,
		},
		{
			name: "no name",
			setup: func(mem *testutil.MemoryStorage) {
				mem.AddPackage("/srv/site/vendor/p", descriptor("", nil))
			},
			want: pkgfile.ErrInvalidConfig,
		},
		{
			name: "invalid name",
			setup: func(mem *testutil.MemoryStorage) {
				mem.AddPackage("/srv/site/vendor/p", descriptor("", nil))
			},
			pkgName: "bad name",
			want:    pkgfile.ErrInvalidConfig,
		},
		{
			name: "save fails",
			setup: func(mem *testutil.MemoryStorage) {
				mem.AddPackage("/srv/site/vendor/p", descriptor("P", nil))
				mem.SaveErr = errors.New("disk full")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, mem := newRegistry(t)
			if tt.setup != nil {
				tt.setup(mem)
			}

			_, err := r.Install("vendor/p", tt.pkgName, "")
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			assert.Len(t, r.All(), 1, "only the root package remains")
			assert.False(t, r.IsInstalled("vendor/p"))
		})
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()

	r, mem := newRegistry(t)
	mem.AddPackage("/srv/site/vendor/a", descriptor("A", nil))
	_, err := r.Install("vendor/a", "", "")
	require.NoError(t, err)

	require.NoError(t, r.Remove("A"))
	assert.False(t, r.Has("A"))
	assert.False(t, mem.Install.Has("A"))
	assert.Equal(t, 2, mem.InstallSaves)

	require.NoError(t, r.Remove("A"), "removing an absent package is a no-op")
	assert.Equal(t, 2, mem.InstallSaves)

	assert.ErrorIs(t, r.Remove(DefaultRootName), ErrRootPackage)
}

func TestRemove_SaveFailureKeepsPackage(t *testing.T) {
	t.Parallel()

	r, mem := newRegistry(t)
	mem.AddPackage("/srv/site/vendor/a", descriptor("A", nil))
	_, err := r.Install("vendor/a", "", "")
	require.NoError(t, err)

	mem.SaveErr = errors.New("read-only filesystem")
	require.Error(t, r.Remove("A"))
	assert.True(t, r.Has("A"))
	assert.True(t, mem.Install.Has("A"))
}

func TestLoadAll_PartialFailureIsolation(t *testing.T) {
	t.Parallel()

	mem := testutil.NewMemoryStorage()
	mem.Install = pkgfile.NewInstallFile(installPath)
	for _, name := range []string{"A", "B", "C", "D"} {
		mem.Install.Add(pkgfile.InstallInfo{Name: name, InstallPath: "vendor/" + name, Installer: "user"})
	}
	mem.AddPackage("/srv/site/vendor/A", descriptor("A", nil))
	mem.LoadErrors["/srv/site/vendor/B"] = &pkgfile.InvalidConfigError{Reason: "syntax error"}
	mem.AddPackage("/srv/site/vendor/D", descriptor("D", nil))

	r := New(Options{RootDir: rootDir, InstallFile: installPath, PackageStorage: mem, InstallStorage: mem})
	require.NoError(t, r.LoadAll())

	states := map[string]State{}
	for _, pkg := range r.All() {
		states[pkg.Name] = pkg.State
	}
	assert.Equal(t, map[string]State{
		DefaultRootName: StateEnabled,
		"A":             StateEnabled,
		"B":             StateNotLoadable,
		"C":             StateNotFound,
		"D":             StateEnabled,
	}, states)

	b, _ := r.Get("B")
	assert.ErrorIs(t, b.LoadErr, pkgfile.ErrInvalidConfig)
	assert.Nil(t, b.File)
	assert.Len(t, r.All(WithState(StateEnabled)), 3)
}

func TestLoadAll_DuplicateNames(t *testing.T) {
	t.Parallel()

	mem := testutil.NewMemoryStorage()
	mem.Install = pkgfile.NewInstallFile(installPath)
	mem.Install.Add(pkgfile.InstallInfo{Name: "A", InstallPath: "vendor/a1", Installer: "user"})
	mem.Install.Add(pkgfile.InstallInfo{Name: "A", InstallPath: "vendor/a2", Installer: "user"})
	mem.AddPackage("/srv/site/vendor/a1", descriptor("A", nil))
	mem.AddPackage("/srv/site/vendor/a2", descriptor("A", nil))

	r := New(Options{RootDir: rootDir, InstallFile: installPath, PackageStorage: mem, InstallStorage: mem})
	require.NoError(t, r.LoadAll())

	a, ok := r.Get("A")
	require.True(t, ok)
	assert.Equal(t, "/srv/site/vendor/a1", a.InstallPath)

	dupes := r.Duplicates()
	require.Len(t, dupes, 1)
	assert.Equal(t, StateDuplicate, dupes[0].State)
	assert.ErrorIs(t, dupes[0].LoadErr, ErrNameConflict)
	assert.True(t, r.IsInstalled("vendor/a2"))

	require.NoError(t, r.Remove("A"))
	assert.Empty(t, r.Duplicates())
	assert.Empty(t, mem.Install.Packages)
}

func TestLoadAll_RootName(t *testing.T) {
	t.Parallel()

	mem := testutil.NewMemoryStorage()
	mem.Root = descriptor("acme/site", map[string]string{"/app": "res"})

	r := New(Options{RootDir: rootDir, InstallFile: installPath, PackageStorage: mem, InstallStorage: mem})
	require.NoError(t, r.LoadAll())

	assert.Equal(t, "acme/site", r.Root().Name)
	assert.True(t, r.Root().IsRoot())
	assert.Equal(t, rootDir, r.Root().InstallPath)
	assert.Empty(t, r.Root().Installer())
}

func TestUpdateRoot(t *testing.T) {
	t.Parallel()

	r, mem := newRegistry(t)

	var changes []ChangeKind
	r.OnChange(func(c Change) { changes = append(changes, c.Kind) })

	require.NoError(t, r.UpdateRoot(func(f *pkgfile.PackageFile) error {
		f.OverrideOrder = []string{"B", "A"}
		return nil
	}))
	assert.Equal(t, []string{"B", "A"}, r.OverrideOrder())
	assert.Equal(t, []string{"B", "A"}, mem.Root.OverrideOrder)

	failing := errors.New("rejected")
	require.ErrorIs(t, r.UpdateRoot(func(f *pkgfile.PackageFile) error {
		f.OverrideOrder = nil
		return failing
	}), failing)
	assert.Equal(t, []string{"B", "A"}, r.OverrideOrder())

	mem.SaveErr = errors.New("disk full")
	require.Error(t, r.UpdateRoot(func(f *pkgfile.PackageFile) error {
		f.OverrideOrder = []string{"A", "B"}
		return nil
	}))
	assert.Equal(t, []string{"B", "A"}, r.OverrideOrder())
	assert.Equal(t, []ChangeKind{ChangeRootUpdated}, changes)
}

func installAB(t *testing.T, r *Registry, mem *testutil.MemoryStorage, order []string, aOverrides, bOverrides []string) {
	t.Helper()
	mem.AddPackage("/srv/site/vendor/a", descriptor("A", map[string]string{"/app/blog": "res/a"}, aOverrides...))
	mem.AddPackage("/srv/site/vendor/b", descriptor("B", map[string]string{"/app/blog": "res/b"}, bOverrides...))
	for _, name := range order {
		_, err := r.Install("vendor/"+map[string]string{"A": "a", "B": "b"}[name], "", "")
		require.NoError(t, err)
	}
}

func TestConflicts_DeterministicAcrossLoadOrder(t *testing.T) {
	t.Parallel()

	var messages []string
	for _, order := range [][]string{{"A", "B"}, {"B", "A"}} {
		r, mem := newRegistry(t)
		installAB(t, r, mem, order, nil, nil)

		conflicts := r.Conflicts()
		require.Len(t, conflicts, 1)

		var conflictErr *override.ConflictError
		require.ErrorAs(t, conflicts[0], &conflictErr)
		assert.Equal(t, "/app/blog", conflictErr.Conflict.Path)
		assert.Equal(t, []string{"A", "B"}, conflictErr.Conflict.PackageNames)
		messages = append(messages, conflicts[0].Error())
	}
	assert.Equal(t, messages[0], messages[1])
}

func TestConflicts_ResolvedByOverrideOrder(t *testing.T) {
	t.Parallel()

	r, mem := newRegistry(t)
	installAB(t, r, mem, []string{"A", "B"}, nil, nil)
	require.Len(t, r.Conflicts(), 1)

	require.NoError(t, r.UpdateRoot(func(f *pkgfile.PackageFile) error {
		f.OverrideOrder = []string{"B", "A"}
		return nil
	}))
	assert.Empty(t, r.Conflicts(), "UpdateRoot must invalidate the resolver")

	winner, err := r.Resolver().Resolve("/app/blog", []string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, "A", winner)
}

func TestConflicts_CycleRejected(t *testing.T) {
	t.Parallel()

	r, mem := newRegistry(t)
	installAB(t, r, mem, []string{"A", "B"}, []string{"B"}, []string{"A"})

	conflicts := r.Conflicts()
	require.Len(t, conflicts, 1)
	var cycleErr *dag.CycleError
	assert.ErrorAs(t, conflicts[0], &cycleErr)
}

func TestConflicts_BrokenPackagesIgnored(t *testing.T) {
	t.Parallel()

	r, mem := newRegistry(t)
	installAB(t, r, mem, []string{"A", "B"}, nil, nil)
	mem.LoadErrors["/srv/site/vendor/b"] = &pkgfile.InvalidConfigError{Reason: "broken"}
	require.NoError(t, r.LoadAll())

	assert.Empty(t, r.Conflicts())
	assert.Equal(t, []Contribution{{Path: "/app/blog", Package: "A", Target: "res/a"}}, r.Contributions())
}

func TestOnChange(t *testing.T) {
	t.Parallel()

	r, mem := newRegistry(t)
	var changes []Change
	r.OnChange(func(c Change) { changes = append(changes, c) })

	mem.AddPackage("/srv/site/vendor/a", descriptor("A", nil))
	_, err := r.Install("vendor/a", "", "")
	require.NoError(t, err)
	require.NoError(t, r.Remove("A"))
	require.NoError(t, r.LoadAll())

	require.Len(t, changes, 3)
	assert.Equal(t, ChangeInstalled, changes[0].Kind)
	assert.Equal(t, "A", changes[0].Package.Name)
	assert.Equal(t, ChangeRemoved, changes[1].Kind)
	assert.Equal(t, ChangeLoaded, changes[2].Kind)
}

func TestParseState(t *testing.T) {
	t.Parallel()

	for _, s := range []State{StateLoading, StateEnabled, StateNotFound, StateNotLoadable, StateDuplicate} {
		got, err := ParseState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseState("broken")
	assert.ErrorIs(t, err, ErrInvalidState)
}

// No sequence of installs ever registers two packages with the same name,
// and rejected installs leave the registry unchanged.
func TestInstall_NamesStayUnique(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		mem := testutil.NewMemoryStorage()
		r := New(Options{RootDir: rootDir, InstallFile: installPath, PackageStorage: mem, InstallStorage: mem})
		if err := r.LoadAll(); err != nil {
			rt.Fatal(err)
		}

		n := rapid.IntRange(1, 20).Draw(rt, "installs")
		for i := range n {
			dir := fmt.Sprintf("vendor/p%d", rapid.IntRange(0, 8).Draw(rt, "dir"))
			name := rapid.SampledFrom([]string{"A", "B", "C", DefaultRootName}).Draw(rt, "name")
			if _, ok := mem.Packages[rootDir+"/"+dir]; !ok {
				mem.AddPackage(rootDir+"/"+dir, descriptor(name, nil))
			}

			before := len(r.All())
			saves := mem.InstallSaves
			_, err := r.Install(dir, "", "")
			if errors.Is(err, ErrNameConflict) {
				if len(r.All()) != before || mem.InstallSaves != saves {
					rt.Fatalf("install %d: rejected install changed the registry", i)
				}
			} else if err != nil {
				rt.Fatalf("install %d: unexpected error %v", i, err)
			}

			seen := map[string]bool{}
			for _, pkg := range r.All() {
				if seen[pkg.Name] {
					rt.Fatalf("install %d: duplicate package name %q", i, pkg.Name)
				}
				seen[pkg.Name] = true
			}
			if mem.Install != nil && len(mem.Install.Packages)+1 != len(r.All()) {
				rt.Fatalf("install %d: metadata lists %d packages, registry has %d", i, len(mem.Install.Packages), len(r.All())-1)
			}
		}
	})
}
