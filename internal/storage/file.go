// SPDX-License-Identifier: MPL-2.0

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/resmerge/resmerge/pkg/pkgfile"
)

type (
	// FileStorage implements PackageFileStorage and InstallFileStorage on the
	// local filesystem.
	FileStorage struct{}
)

var (
	_ PackageFileStorage = (*FileStorage)(nil)
	_ InstallFileStorage = (*FileStorage)(nil)
)

// NewFileStorage returns filesystem-backed storage.
func NewFileStorage() *FileStorage {
	return &FileStorage{}
}

// LoadPackageFile implements PackageFileStorage.
func (s *FileStorage) LoadPackageFile(installPath string) (*pkgfile.PackageFile, error) {
	info, err := os.Stat(installPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("%w: the directory %s does not exist", pkgfile.ErrNotFound, installPath)
	case err != nil:
		return nil, fmt.Errorf("failed to stat %s: %w", installPath, err)
	case !info.IsDir():
		return nil, fmt.Errorf("%w: the path %s is a file, expected a directory", pkgfile.ErrNotADirectory, installPath)
	}

	path := filepath.Join(installPath, pkgfile.FileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return pkgfile.New(path), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return pkgfile.Parse(data, path)
}

// LoadRootPackageFile implements PackageFileStorage.
func (s *FileStorage) LoadRootPackageFile(path string) (*pkgfile.PackageFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return pkgfile.New(path), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return pkgfile.ParseRoot(data, path)
}

// SaveRootPackageFile implements PackageFileStorage.
func (s *FileStorage) SaveRootPackageFile(f *pkgfile.PackageFile) error {
	src, err := f.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", f.Path, err)
	}
	return WriteFileAtomic(f.Path, src)
}

// LoadInstallFile implements InstallFileStorage.
func (s *FileStorage) LoadInstallFile(path string) (*pkgfile.InstallFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", pkgfile.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return pkgfile.ParseInstallFile(data, path)
}

// SaveInstallFile implements InstallFileStorage.
func (s *FileStorage) SaveInstallFile(f *pkgfile.InstallFile) error {
	src, err := f.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", f.Path, err)
	}
	return WriteFileAtomic(f.Path, src)
}

// WriteFileAtomic writes data to a temp file next to path and renames it into
// place, creating the parent directory when needed.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	temp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0o644); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("setting permissions on temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
