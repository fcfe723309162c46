// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"io"
	"maps"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/resmerge/resmerge/internal/store"
)

type (
	// ReloadResult summarizes one reload pass.
	ReloadResult struct {
		// Reloaded counts the binding instances in scope.
		Reloaded int
		// Changed counts the instances whose state changed.
		Changed int
	}

	// Hooks run once around every reload pass so callers can batch side
	// effects such as persisting a snapshot.
	Hooks struct {
		Before func(Scope)
		After  func(Scope, ReloadResult)
	}

	// Option configures an Engine.
	Option func(*Engine)

	// Engine owns binding types and bindings. Not safe for concurrent use.
	Engine struct {
		types    *store.MultiCollection[string, *BindingType]
		bindings *store.MultiCollection[uuid.UUID, *Binding]
		hooks    []Hooks
		logger   *log.Logger
	}
)

// WithLogger sets the logger used for debug output.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithHooks registers reload hooks.
func WithHooks(h Hooks) Option {
	return func(e *Engine) {
		e.hooks = append(e.hooks, h)
	}
}

// New creates an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		types:    store.NewMultiCollection[string, *BindingType](),
		bindings: store.NewMultiCollection[uuid.UUID, *Binding](),
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddHooks registers reload hooks after construction.
func (e *Engine) AddHooks(h Hooks) {
	e.hooks = append(e.hooks, h)
}

// RegisterType adds a type definition. When the name is already defined,
// every definition of the name becomes TypeDuplicate. The bindings of the
// type are reloaded.
func (e *Engine) RegisterType(t *BindingType) {
	existing := e.types.List(t.Name)
	if len(existing) == 0 {
		t.State = TypeEnabled
	} else {
		t.State = TypeDuplicate
		for _, other := range existing {
			other.State = TypeDuplicate
		}
		e.logger.Debug("Duplicate binding type", "type", t.Name, "package", t.Owner)
	}
	e.types.Add(t.Name, t)
	e.Reload(TypeScope(t.Name))
}

// CheckType returns a *DuplicateTypeError when name is already defined.
// Callers use it before explicitly declaring a new type.
func (e *Engine) CheckType(name string) error {
	if first, ok := e.types.First(name); ok {
		return &DuplicateTypeError{Name: name, Owner: first.Owner}
	}
	return nil
}

// UnregisterType removes every definition of name and reloads its bindings,
// which become BindingTypeNotFound.
func (e *Engine) UnregisterType(name string) []*BindingType {
	removed := e.types.RemoveAll(name)
	if len(removed) > 0 {
		e.Reload(TypeScope(name))
	}
	return removed
}

// UnregisterTypeOf removes the definitions of name declared by owner. A
// single surviving definition is enabled again.
func (e *Engine) UnregisterTypeOf(name, owner string) []*BindingType {
	removed := e.types.RemoveFunc(name, func(t *BindingType) bool { return t.Owner == owner })
	if len(removed) == 0 {
		return nil
	}
	e.settleType(name)
	e.Reload(TypeScope(name))
	return removed
}

// Bind adds a binding instance and computes its state. A binding without a
// UUID gets a new random one.
func (e *Engine) Bind(b *Binding) *Binding {
	if b.UUID == uuid.Nil {
		b.UUID = uuid.New()
	}
	e.bindings.Add(b.UUID, b)
	b.State = e.evaluate(b)
	return b
}

// Unbind removes every instance of the binding id.
func (e *Engine) Unbind(id uuid.UUID) []*Binding {
	return e.bindings.RemoveAll(id)
}

// UnbindFrom removes the instances of the binding id declared by owner.
func (e *Engine) UnbindFrom(id uuid.UUID, owner string) []*Binding {
	return e.bindings.RemoveFunc(id, func(b *Binding) bool { return b.Owner == owner })
}

// RemovePackage drops the types and bindings declared by owner and reloads
// the bindings of every type owner had defined.
func (e *Engine) RemovePackage(owner string) {
	for _, id := range e.bindings.Keys() {
		e.bindings.RemoveFunc(id, func(b *Binding) bool { return b.Owner == owner })
	}

	var affected []string
	for _, name := range e.types.Keys() {
		if len(e.types.RemoveFunc(name, func(t *BindingType) bool { return t.Owner == owner })) > 0 {
			e.settleType(name)
			affected = append(affected, name)
		}
	}

	for _, name := range affected {
		e.Reload(TypeScope(name))
	}
	e.logger.Debug("Removed package from engine", "package", owner, "types", len(affected))
}

// Reload recomputes the state of every binding instance in scope, across all
// instances sharing a UUID. It never fails; problems become binding states.
// Bindings out of scope are not touched.
func (e *Engine) Reload(scope Scope) ReloadResult {
	for _, h := range e.hooks {
		if h.Before != nil {
			h.Before(scope)
		}
	}

	var result ReloadResult
	for _, id := range e.bindings.Keys() {
		for _, b := range e.bindings.List(id) {
			if !scope.Matches(b) {
				continue
			}
			result.Reloaded++
			if state := e.evaluate(b); state != b.State {
				b.State = state
				result.Changed++
			}
		}
	}

	e.logger.Debug("Reloaded bindings", "scope", scope, "reloaded", result.Reloaded, "changed", result.Changed)
	for _, h := range e.hooks {
		if h.After != nil {
			h.After(scope, result)
		}
	}
	return result
}

// Type returns the enabled definition of name.
func (e *Engine) Type(name string) (*BindingType, bool) {
	defs := e.types.List(name)
	if len(defs) != 1 || defs[0].State != TypeEnabled {
		return nil, false
	}
	return defs[0], true
}

// TypeDefinitions returns every definition of name, duplicates included.
func (e *Engine) TypeDefinitions(name string) []*BindingType {
	return e.types.List(name)
}

// Types returns every type definition in registration order.
func (e *Engine) Types() []*BindingType {
	return e.types.All()
}

// Bindings returns every binding instance in registration order.
func (e *Engine) Bindings() []*Binding {
	return e.bindings.All()
}

// BindingsByUUID returns every instance of the binding id.
func (e *Engine) BindingsByUUID(id uuid.UUID) []*Binding {
	return e.bindings.List(id)
}

// BindingsInScope returns the binding instances matched by scope.
func (e *Engine) BindingsInScope(scope Scope) []*Binding {
	var out []*Binding
	for _, b := range e.bindings.All() {
		if scope.Matches(b) {
			out = append(out, b)
		}
	}
	return out
}

// settleType enables the last remaining definition of name.
func (e *Engine) settleType(name string) {
	if defs := e.types.List(name); len(defs) == 1 {
		defs[0].State = TypeEnabled
	}
}

func (e *Engine) evaluate(b *Binding) BindingState {
	defs := e.types.List(b.TypeName)
	switch {
	case len(defs) == 0:
		return BindingTypeNotFound
	case len(defs) > 1 || defs[0].State != TypeEnabled:
		return BindingTypeNotEnabled
	case !defs[0].Validate(b.Parameters):
		return BindingInvalidParameters
	default:
		return BindingEnabled
	}
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
