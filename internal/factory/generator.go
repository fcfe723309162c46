// SPDX-License-Identifier: MPL-2.0

package factory

import (
	"context"
	_ "embed"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/resmerge/resmerge/internal/cueutil"
	"github.com/resmerge/resmerge/internal/discovery"
	"github.com/resmerge/resmerge/internal/storage"
)

const header = "// Code generated by resmerge. DO NOT EDIT.\n\n"

//go:embed manifest_schema.cue
var manifestSchema string

type (
	// Generator rebuilds derived artifacts from a discovery snapshot.
	Generator interface {
		Regenerate(ctx context.Context, s discovery.Snapshot) error
	}

	// Manifest is the generated document.
	Manifest struct {
		Types    []ManifestType    `json:"types"`
		Bindings []ManifestBinding `json:"bindings"`
	}

	// ManifestType is one enabled binding type.
	ManifestType struct {
		Name       string              `json:"name"`
		Package    string              `json:"package"`
		Parameters []ManifestParameter `json:"parameters,omitempty"`
	}

	// ManifestParameter is one parameter of a ManifestType.
	ManifestParameter struct {
		Name     string `json:"name"`
		Required bool   `json:"required"`
		Default  string `json:"default,omitempty"`
	}

	// ManifestBinding is one enabled binding with defaults applied.
	ManifestBinding struct {
		UUID       string            `json:"uuid"`
		Query      string            `json:"query"`
		Type       string            `json:"type"`
		Package    string            `json:"package"`
		Parameters map[string]string `json:"parameters,omitempty"`
	}

	// CUEGenerator writes the manifest as CUE to OutFile.
	CUEGenerator struct {
		OutFile string
		logger  *log.Logger
	}
)

// NewCUEGenerator creates a generator writing to outFile.
func NewCUEGenerator(outFile string, logger *log.Logger) *CUEGenerator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &CUEGenerator{OutFile: outFile, logger: logger}
}

// BuildManifest keeps the enabled entries of s.
func BuildManifest(s discovery.Snapshot) Manifest {
	m := Manifest{Types: []ManifestType{}, Bindings: []ManifestBinding{}}
	for _, t := range s.Types {
		if t.State != discovery.TypeEnabled.String() {
			continue
		}
		mt := ManifestType{Name: t.Name, Package: t.Package}
		for _, p := range t.Parameters {
			mt.Parameters = append(mt.Parameters, ManifestParameter(p))
		}
		m.Types = append(m.Types, mt)
	}
	for _, b := range s.EnabledBindings() {
		m.Bindings = append(m.Bindings, ManifestBinding{
			UUID: b.UUID, Query: b.Query, Type: b.Type, Package: b.Package, Parameters: b.Parameters,
		})
	}
	return m
}

// Render encodes the manifest of s as CUE and checks it against the
// manifest schema.
func Render(s discovery.Snapshot) ([]byte, error) {
	src, err := cueutil.Encode(BuildManifest(s))
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if _, err := cueutil.ParseAndDecodeString[Manifest](manifestSchema, src, "#Manifest",
		cueutil.WithFilename("manifest.gen.cue")); err != nil {
		return nil, fmt.Errorf("generated manifest is invalid: %w", err)
	}
	return append([]byte(header), src...), nil
}

// Regenerate implements Generator.
func (g *CUEGenerator) Regenerate(ctx context.Context, s discovery.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("regenerate manifest canceled: %w", err)
	}

	data, err := Render(s)
	if err != nil {
		return err
	}
	if err := storage.WriteFileAtomic(g.OutFile, data); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", g.OutFile, err)
	}

	g.logger.Debug("Regenerated manifest", "path", g.OutFile, "types", len(s.Types), "bindings", len(s.Bindings))
	return nil
}
