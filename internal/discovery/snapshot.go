// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"cmp"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

type (
	// Snapshot is a serializable view of the engine state. It is persisted
	// after every reload and read by the factory generator.
	Snapshot struct {
		Types    []TypeRecord    `yaml:"types"`
		Bindings []BindingRecord `yaml:"bindings"`
	}

	// TypeRecord is one binding type definition in a Snapshot.
	TypeRecord struct {
		Name        string            `yaml:"name"`
		Package     string            `yaml:"package"`
		State       string            `yaml:"state"`
		Description string            `yaml:"description,omitempty"`
		Parameters  []ParameterRecord `yaml:"parameters,omitempty"`
	}

	// ParameterRecord is one declared parameter in a TypeRecord.
	ParameterRecord struct {
		Name     string `yaml:"name"`
		Required bool   `yaml:"required,omitempty"`
		Default  string `yaml:"default,omitempty"`
	}

	// BindingRecord is one binding instance in a Snapshot.
	BindingRecord struct {
		UUID       string            `yaml:"uuid"`
		Query      string            `yaml:"query"`
		Type       string            `yaml:"type"`
		Package    string            `yaml:"package"`
		State      string            `yaml:"state"`
		Parameters map[string]string `yaml:"parameters,omitempty"`
	}
)

// Snapshot captures the current types and bindings, sorted by name and UUID
// so equal states produce equal output.
func (e *Engine) Snapshot() Snapshot {
	var s Snapshot

	for _, t := range e.types.All() {
		rec := TypeRecord{Name: t.Name, Package: t.Owner, State: t.State.String(), Description: t.Description}
		for _, p := range t.Parameters {
			rec.Parameters = append(rec.Parameters, ParameterRecord{Name: p.Name, Required: p.Required, Default: p.Default})
		}
		s.Types = append(s.Types, rec)
	}
	slices.SortStableFunc(s.Types, func(a, b TypeRecord) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Package, b.Package))
	})

	for _, b := range e.bindings.All() {
		params := b.Parameters
		if t, ok := e.Type(b.TypeName); ok && b.State == BindingEnabled {
			params = t.Values(b.Parameters)
		}
		s.Bindings = append(s.Bindings, BindingRecord{
			UUID:       b.UUID.String(),
			Query:      b.Query,
			Type:       b.TypeName,
			Package:    b.Owner,
			State:      b.State.String(),
			Parameters: params,
		})
	}
	slices.SortStableFunc(s.Bindings, func(a, b BindingRecord) int {
		return cmp.Or(cmp.Compare(a.UUID, b.UUID), cmp.Compare(a.Package, b.Package))
	})

	return s
}

// EnabledBindings returns the enabled binding records.
func (s Snapshot) EnabledBindings() []BindingRecord {
	var out []BindingRecord
	for _, b := range s.Bindings {
		if b.State == BindingEnabled.String() {
			out = append(out, b)
		}
	}
	return out
}

// Marshal encodes s as YAML.
func (s Snapshot) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode discovery snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot decodes a YAML snapshot.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode discovery snapshot: %w", err)
	}
	return s, nil
}
