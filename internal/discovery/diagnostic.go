// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"fmt"
	"strings"
)

const (
	// SeverityWarning indicates a degraded but tolerated declaration.
	SeverityWarning Severity = "warning"
	// SeverityError indicates a declaration that has no effect.
	SeverityError Severity = "error"
)

type (
	// Severity represents diagnostic severity.
	Severity string

	// Diagnostic describes one type or binding that is not enabled. The CLI
	// renders diagnostics; the engine never writes to stderr.
	Diagnostic struct {
		Severity Severity
		// Code is a machine-readable identifier (e.g., "binding_type_not_found").
		Code string
		// Message is the human-readable description.
		Message string
		// Package is the package that declared the entity.
		Package string
	}
)

// Diagnostics reports every duplicate type definition and every binding
// instance that is not enabled, in store order.
func (e *Engine) Diagnostics() []Diagnostic {
	var out []Diagnostic

	for _, t := range e.types.All() {
		if t.State != TypeDuplicate {
			continue
		}
		out = append(out, Diagnostic{
			Severity: SeverityWarning,
			Code:     "binding_type_duplicate",
			Message:  fmt.Sprintf("binding type %q is defined more than once and is disabled", t.Name),
			Package:  t.Owner,
		})
	}

	for _, b := range e.bindings.All() {
		d := Diagnostic{Severity: SeverityError, Package: b.Owner}
		switch b.State {
		case BindingEnabled:
			continue
		case BindingTypeNotFound:
			d.Code = "binding_type_not_found"
			d.Message = fmt.Sprintf("binding %s references the undefined type %q", b.UUID, b.TypeName)
		case BindingTypeNotEnabled:
			d.Code = "binding_type_not_enabled"
			d.Message = fmt.Sprintf("binding %s references the disabled type %q", b.UUID, b.TypeName)
		case BindingInvalidParameters:
			d.Code = "binding_invalid_parameters"
			d.Message = fmt.Sprintf("binding %s has parameters that do not match type %q: %s",
				b.UUID, b.TypeName, e.describeParameterProblems(b))
		}
		out = append(out, d)
	}

	return out
}

func (e *Engine) describeParameterProblems(b *Binding) string {
	t, ok := e.Type(b.TypeName)
	if !ok {
		return "type unavailable"
	}
	var problems []string
	for _, name := range sortedKeys(b.Parameters) {
		if _, declared := t.Parameter(name); !declared {
			problems = append(problems, fmt.Sprintf("undeclared %q", name))
		}
	}
	for _, p := range t.Parameters {
		if _, set := b.Parameters[p.Name]; p.Required && !set {
			problems = append(problems, fmt.Sprintf("missing %q", p.Name))
		}
	}
	return strings.Join(problems, ", ")
}
