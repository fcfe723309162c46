// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"fmt"

	"github.com/resmerge/resmerge/pkg/pkgfile"
)

// MemoryStorage implements the package descriptor and install metadata
// storage ports in memory. Loads return copies so callers cannot mutate the
// stored state; SaveErr makes every save fail.
type MemoryStorage struct {
	// Packages maps install paths to descriptors.
	Packages map[string]*pkgfile.PackageFile
	// LoadErrors maps install paths to the error LoadPackageFile returns.
	LoadErrors map[string]error
	// Root is the saved root descriptor, nil until saved.
	Root *pkgfile.PackageFile
	// Install is the saved install metadata, nil until saved.
	Install *pkgfile.InstallFile
	// SaveErr is returned by every save when set.
	SaveErr error

	RootSaves    int
	InstallSaves int
}

// NewMemoryStorage returns empty storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Packages:   make(map[string]*pkgfile.PackageFile),
		LoadErrors: make(map[string]error),
	}
}

// AddPackage stores a descriptor for installPath.
func (s *MemoryStorage) AddPackage(installPath string, f *pkgfile.PackageFile) {
	s.Packages[installPath] = f
}

// LoadPackageFile implements storage.PackageFileStorage.
func (s *MemoryStorage) LoadPackageFile(installPath string) (*pkgfile.PackageFile, error) {
	if err, ok := s.LoadErrors[installPath]; ok {
		return nil, err
	}
	f, ok := s.Packages[installPath]
	if !ok {
		return nil, fmt.Errorf("%w: the directory %s does not exist", pkgfile.ErrNotFound, installPath)
	}
	return f.Clone(), nil
}

// LoadRootPackageFile implements storage.PackageFileStorage.
func (s *MemoryStorage) LoadRootPackageFile(path string) (*pkgfile.PackageFile, error) {
	if s.Root == nil {
		return pkgfile.New(path), nil
	}
	return s.Root.Clone(), nil
}

// SaveRootPackageFile implements storage.PackageFileStorage.
func (s *MemoryStorage) SaveRootPackageFile(f *pkgfile.PackageFile) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.Root = f.Clone()
	s.RootSaves++
	return nil
}

// LoadInstallFile implements storage.InstallFileStorage.
func (s *MemoryStorage) LoadInstallFile(path string) (*pkgfile.InstallFile, error) {
	if s.Install == nil {
		return nil, fmt.Errorf("%w: %s", pkgfile.ErrNotFound, path)
	}
	return s.Install.Clone(), nil
}

// SaveInstallFile implements storage.InstallFileStorage.
func (s *MemoryStorage) SaveInstallFile(f *pkgfile.InstallFile) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.Install = f.Clone()
	s.InstallSaves++
	return nil
}
