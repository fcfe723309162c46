// SPDX-License-Identifier: MPL-2.0

package storage

import (
	"github.com/resmerge/resmerge/pkg/pkgfile"
)

type (
	// PackageFileStorage loads package descriptors and saves the root descriptor.
	PackageFileStorage interface {
		// LoadPackageFile reads the descriptor inside installPath. A missing
		// directory is pkgfile.ErrNotFound, a regular file is
		// pkgfile.ErrNotADirectory. A directory without a descriptor yields an
		// empty descriptor.
		LoadPackageFile(installPath string) (*pkgfile.PackageFile, error)
		// LoadRootPackageFile reads the root descriptor at path, or returns an
		// empty one when the file does not exist yet.
		LoadRootPackageFile(path string) (*pkgfile.PackageFile, error)
		// SaveRootPackageFile replaces the root descriptor at f.Path.
		SaveRootPackageFile(f *pkgfile.PackageFile) error
	}

	// InstallFileStorage loads and saves install metadata.
	InstallFileStorage interface {
		// LoadInstallFile fails with pkgfile.ErrNotFound when path does not exist.
		LoadInstallFile(path string) (*pkgfile.InstallFile, error)
		// SaveInstallFile replaces the install file at f.Path.
		SaveInstallFile(f *pkgfile.InstallFile) error
	}
)
