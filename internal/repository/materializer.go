// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/resmerge/resmerge/internal/config"
	"github.com/resmerge/resmerge/internal/storage"
)

// OutputBaseName is the file name, without extension, of the materialized
// repository inside the repository directory.
const OutputBaseName = "mappings"

type (
	// Materializer persists a merged view.
	Materializer interface {
		Materialize(ctx context.Context, v *View) error
	}

	// FileMaterializer writes the view as one YAML or TOML document inside
	// Dir, replacing the previous output atomically.
	FileMaterializer struct {
		Dir    string
		Format config.RepositoryFormat
		logger *log.Logger
	}

	document struct {
		Mappings []Mapping `yaml:"mappings" toml:"mappings"`
	}
)

// NewFileMaterializer creates a materializer writing to dir in format.
func NewFileMaterializer(dir string, format config.RepositoryFormat, logger *log.Logger) *FileMaterializer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &FileMaterializer{Dir: dir, Format: format, logger: logger}
}

// OutputPath returns the file the view is written to.
func (m *FileMaterializer) OutputPath() string {
	ext := ".yaml"
	if m.Format == config.FormatTOML {
		ext = ".toml"
	}
	return filepath.Join(m.Dir, OutputBaseName+ext)
}

// Encode renders v in the configured format.
func (m *FileMaterializer) Encode(v *View) ([]byte, error) {
	doc := document{Mappings: v.Mappings()}
	if doc.Mappings == nil {
		doc.Mappings = []Mapping{}
	}

	switch m.Format {
	case config.FormatTOML:
		return toml.Marshal(doc)
	case config.FormatYAML, "":
		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("unsupported repository format %q", m.Format)
	}
}

// Materialize implements Materializer.
func (m *FileMaterializer) Materialize(ctx context.Context, v *View) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("materialize repository canceled: %w", err)
	}

	data, err := m.Encode(v)
	if err != nil {
		return err
	}
	path := m.OutputPath()
	if err := storage.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write repository %s: %w", path, err)
	}

	m.logger.Debug("Materialized repository", "path", path, "mappings", v.Len())
	return nil
}
