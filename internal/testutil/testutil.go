// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/resmerge/resmerge/pkg/pkgfile"
)

// MustMkdirAll creates a directory along with any necessary parents.
// The test fails immediately if the operation fails.
func MustMkdirAll(t testing.TB, path string, perm os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(path, perm); err != nil {
		t.Fatalf("failed to create directory %s: %v", path, err)
	}
}

// MustWriteFile writes content to path, creating parent directories.
// The test fails immediately if the operation fails.
func MustWriteFile(t testing.TB, path, content string) {
	t.Helper()
	MustMkdirAll(t, filepath.Dir(path), 0o755)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// WritePackage creates the package directory dir under root with the given
// descriptor content and returns the package's absolute path.
func WritePackage(t testing.TB, root, dir, descriptor string) string {
	t.Helper()
	pkgDir := filepath.Join(root, dir)
	MustWriteFile(t, filepath.Join(pkgDir, pkgfile.FileName), descriptor)
	return pkgDir
}
