// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/resmerge/resmerge/pkg/pkgfile"
)

const (
	// TypeEnabled marks the only definition of a type name.
	TypeEnabled TypeState = iota
	// TypeDuplicate marks a type name defined more than once. No definition
	// of a duplicate name is usable.
	TypeDuplicate
)

const (
	// BindingEnabled marks a binding that matches its type.
	BindingEnabled BindingState = iota
	// BindingTypeNotFound marks a binding whose type is not defined.
	BindingTypeNotFound
	// BindingTypeNotEnabled marks a binding whose type is a duplicate.
	BindingTypeNotEnabled
	// BindingInvalidParameters marks a binding with an undeclared parameter or
	// a missing required one.
	BindingInvalidParameters
)

var (
	// ErrDuplicateType is the sentinel error wrapped by DuplicateTypeError.
	ErrDuplicateType = errors.New("duplicate binding type")
	// ErrInvalidBinding is returned when a binding descriptor cannot be converted.
	ErrInvalidBinding = errors.New("invalid binding")
)

type (
	// TypeState is the state of a binding type definition.
	TypeState int

	// BindingState is the validation state of a binding instance.
	BindingState int

	// Parameter declares one parameter of a binding type.
	Parameter struct {
		Name        string
		Required    bool
		Default     string
		Description string
	}

	// BindingType is one definition of a binding type, owned by the package
	// that declared it.
	BindingType struct {
		Name        string
		Description string
		Parameters  []Parameter
		Owner       string
		State       TypeState
	}

	// Binding is one instance of a binding declared by Owner. Instances with
	// the same UUID are contributed by different packages.
	Binding struct {
		UUID       uuid.UUID
		Query      string
		TypeName   string
		Parameters map[string]string
		Owner      string
		State      BindingState
	}

	// DuplicateTypeError rejects an explicit declaration of a type name that
	// is already defined.
	DuplicateTypeError struct {
		Name  string
		Owner string
	}
)

var typeStateNames = map[TypeState]string{
	TypeEnabled:   "enabled",
	TypeDuplicate: "duplicate",
}

var bindingStateNames = map[BindingState]string{
	BindingEnabled:           "enabled",
	BindingTypeNotFound:      "type-not-found",
	BindingTypeNotEnabled:    "type-not-enabled",
	BindingInvalidParameters: "invalid-parameters",
}

func (s TypeState) String() string {
	if name, ok := typeStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("type-state(%d)", int(s))
}

func (s BindingState) String() string {
	if name, ok := bindingStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("binding-state(%d)", int(s))
}

// Error implements the error interface.
func (e *DuplicateTypeError) Error() string {
	return fmt.Sprintf("the binding type %q is already defined by package %q", e.Name, e.Owner)
}

// Unwrap returns ErrDuplicateType for errors.Is() compatibility.
func (e *DuplicateTypeError) Unwrap() error { return ErrDuplicateType }

// Parameter returns the declared parameter named name.
func (t *BindingType) Parameter(name string) (Parameter, bool) {
	i := slices.IndexFunc(t.Parameters, func(p Parameter) bool { return p.Name == name })
	if i < 0 {
		return Parameter{}, false
	}
	return t.Parameters[i], true
}

// Validate reports whether params satisfy t: every key is declared and every
// required parameter is present.
func (t *BindingType) Validate(params map[string]string) bool {
	for name := range params {
		if _, ok := t.Parameter(name); !ok {
			return false
		}
	}
	for _, p := range t.Parameters {
		if _, ok := params[p.Name]; p.Required && !ok {
			return false
		}
	}
	return true
}

// Values returns params completed with the defaults of t.
func (t *BindingType) Values(params map[string]string) map[string]string {
	out := maps.Clone(params)
	if out == nil {
		out = make(map[string]string)
	}
	for _, p := range t.Parameters {
		if _, ok := out[p.Name]; !ok && p.Default != "" {
			out[p.Name] = p.Default
		}
	}
	return out
}

// Descriptor converts t back to its descriptor form.
func (t *BindingType) Descriptor() pkgfile.BindingTypeDescriptor {
	d := pkgfile.BindingTypeDescriptor{Name: t.Name, Description: t.Description}
	for _, p := range t.Parameters {
		d.Parameters = append(d.Parameters, pkgfile.ParameterDescriptor{
			Name: p.Name, Required: p.Required, Default: p.Default, Description: p.Description,
		})
	}
	return d
}

// Descriptor converts b back to its descriptor form.
func (b *Binding) Descriptor() pkgfile.BindingDescriptor {
	return pkgfile.BindingDescriptor{
		UUID:       b.UUID.String(),
		Query:      b.Query,
		Type:       b.TypeName,
		Parameters: maps.Clone(b.Parameters),
	}
}

// TypeFromDescriptor builds a binding type declared by owner.
func TypeFromDescriptor(d pkgfile.BindingTypeDescriptor, owner string) *BindingType {
	t := &BindingType{Name: d.Name, Description: d.Description, Owner: owner}
	for _, p := range d.Parameters {
		t.Parameters = append(t.Parameters, Parameter{
			Name: p.Name, Required: p.Required, Default: p.Default, Description: p.Description,
		})
	}
	return t
}

// BindingFromDescriptor builds a binding declared by owner. An empty UUID is
// left as uuid.Nil so the engine assigns one.
func BindingFromDescriptor(d pkgfile.BindingDescriptor, owner string) (*Binding, error) {
	b := &Binding{Query: d.Query, TypeName: d.Type, Parameters: maps.Clone(d.Parameters), Owner: owner}
	if d.UUID != "" {
		id, err := uuid.Parse(d.UUID)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a UUID: %w", ErrInvalidBinding, d.UUID, err)
		}
		b.UUID = id
	}
	return b, nil
}
