// Package property implements lazily evaluated, dirty-propagating attributes.
//
// A property produces a raw value (a constant for Stored, a formula for
// Derived), runs it through its modifier pipeline and caches the result until
// it is marked dirty. Marking a property dirty synchronously marks its declared
// parents dirty as well; recomputation only happens when Value is called.
//
// Properties are owned by a Handler and are not safe for concurrent use: one
// owner goroutine drives one Handler.
package property

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/udisondev/statgraph/internal/arith"
)

var (
	// ErrUnsupportedModifier is returned when an Additive or Multiplicative
	// modifier is attached to a Derived property.
	ErrUnsupportedModifier = errors.New("property: unsupported modifier kind")
	// ErrEmptyName is returned by constructors for an empty property name.
	ErrEmptyName = errors.New("property: empty name")
	// ErrNilFormula is returned by NewDerived for a nil formula.
	ErrNilFormula = errors.New("property: nil formula")
)

// Node is the type-erased view of a property stored in a Handler.
type Node interface {
	Name() string
	Dirty() bool
	SetDirty()
	NotifyParentOnDirty(parent string)
	OnDirty(fn func())
	Parents() []string
	ModifierCount() int
	AnyValue() any

	bind(h *Handler)
}

// Property is a typed property.
type Property[V any] interface {
	Node
	Value() V
	Getter() func() V
	AddModifier(m *Modifier[V]) error
	RemoveModifier(m *Modifier[V]) bool
	Modifiers() []*Modifier[V]
}

// core is the state shared by Stored and Derived.
type core[V any] struct {
	name      string
	ops       arith.Ops[V]
	handler   *Handler
	dirty     bool
	notifying bool
	cached    V
	mods      []*Modifier[V]
	parents   []string
	observers []func()
}

func newCore[V any](reg *arith.Registry, name string) (core[V], error) {
	if name == "" {
		return core[V]{}, ErrEmptyName
	}
	ops, err := arith.Require[V](reg)
	if err != nil {
		return core[V]{}, fmt.Errorf("creating property %q: %w", name, err)
	}
	return core[V]{name: name, ops: ops, dirty: true}, nil
}

// Name returns the property name, unique within its Handler.
func (c *core[V]) Name() string { return c.name }

// Dirty reports whether the cached value is stale.
func (c *core[V]) Dirty() bool { return c.dirty }

// Parents returns the names notified when this property turns dirty.
func (c *core[V]) Parents() []string { return slices.Clone(c.parents) }

// ModifierCount returns the number of attached modifiers.
func (c *core[V]) ModifierCount() int { return len(c.mods) }

// Modifiers returns a copy of the modifier list in insertion order.
func (c *core[V]) Modifiers() []*Modifier[V] { return slices.Clone(c.mods) }

func (c *core[V]) bind(h *Handler) { c.handler = h }

func (c *core[V]) logger() *slog.Logger {
	if c.handler != nil {
		return c.handler.logger
	}
	return slog.Default()
}

// SetDirty marks the property stale, then marks every parent dirty before
// returning (depth first) and finally runs the OnDirty observers.
func (c *core[V]) SetDirty() {
	c.dirty = true
	if c.notifying {
		// Re-entered through a cyclic notify chain; Handler.Finalize reports it.
		c.logger().Warn("dirty propagation re-entered", "property", c.name)
		return
	}

	c.notifying = true
	defer func() { c.notifying = false }()

	for _, parent := range c.parents {
		if c.handler == nil {
			c.logger().Warn("parent notified before registration", "property", c.name, "parent", parent)
			continue
		}
		n, ok := c.handler.Get(parent)
		if !ok {
			c.logger().Warn("parent property not found", "property", c.name, "parent", parent)
			continue
		}
		n.SetDirty()
	}
	for _, fn := range c.observers {
		fn()
	}
}

// NotifyParentOnDirty makes SetDirty on this property also dirty parent.
// The parent is resolved by name each time, so it may be registered later.
// Repeated calls with the same parent are ignored.
func (c *core[V]) NotifyParentOnDirty(parent string) {
	if parent == "" || slices.Contains(c.parents, parent) {
		return
	}
	c.parents = append(c.parents, parent)
}

// OnDirty registers an observer run after each SetDirty.
func (c *core[V]) OnDirty(fn func()) {
	if fn != nil {
		c.observers = append(c.observers, fn)
	}
}

func (c *core[V]) addModifier(m *Modifier[V]) {
	c.mods = append(c.mods, m)
	c.SetDirty()
}

// RemoveModifier detaches m (by identity) and marks the property dirty.
// It reports whether m was attached.
func (c *core[V]) RemoveModifier(m *Modifier[V]) bool {
	i := slices.Index(c.mods, m)
	if i >= 0 {
		c.mods = slices.Delete(c.mods, i, i+1)
	}
	c.SetDirty()
	return i >= 0
}

// Stored is a property with a constant base value.
type Stored[V any] struct {
	core[V]
	base V
}

// NewStored creates a Stored property. It fails with *arith.ConfigError when
// reg has no operations for V.
func NewStored[V any](reg *arith.Registry, name string, base V) (*Stored[V], error) {
	c, err := newCore[V](reg, name)
	if err != nil {
		return nil, err
	}
	return &Stored[V]{core: c, base: base}, nil
}

// Base returns the immutable base value.
func (p *Stored[V]) Base() V { return p.base }

// Value returns the cached value or recomputes it: base, then Additive,
// Multiplicative, Clamp and Override modifiers.
func (p *Stored[V]) Value() V {
	if !p.dirty {
		return p.cached
	}
	p.cached = applyPipeline(p.ops, p.mods, p.base, allStages)
	p.dirty = false
	return p.cached
}

// Getter returns Value as a func, for use in formulas and modifiers.
func (p *Stored[V]) Getter() func() V { return p.Value }

// AnyValue returns Value boxed.
func (p *Stored[V]) AnyValue() any { return p.Value() }

// AddModifier attaches m and marks the property dirty.
func (p *Stored[V]) AddModifier(m *Modifier[V]) error {
	if m == nil {
		return nil
	}
	p.addModifier(m)
	return nil
}

// Derived is a property computed by a formula. Only Clamp and Override
// modifiers apply: there is no raw value to add to or scale.
type Derived[V any] struct {
	core[V]
	formula   func() V
	deps      []string
	computing bool
}

// NewDerived creates a Derived property. deps names the properties the
// formula reads; when registered in a Handler, each of them is wired to mark
// this property dirty.
func NewDerived[V any](reg *arith.Registry, name string, formula func() V, deps ...string) (*Derived[V], error) {
	if formula == nil {
		return nil, fmt.Errorf("creating property %q: %w", name, ErrNilFormula)
	}
	c, err := newCore[V](reg, name)
	if err != nil {
		return nil, err
	}
	return &Derived[V]{core: c, formula: formula, deps: slices.Clone(deps)}, nil
}

// Dependencies returns the declared read-set.
func (p *Derived[V]) Dependencies() []string { return slices.Clone(p.deps) }

// Value returns the cached value or recomputes it: formula, then Clamp and
// Override modifiers. A formula that reads its own property gets the last
// cached value.
func (p *Derived[V]) Value() V {
	if !p.dirty {
		return p.cached
	}
	if p.computing {
		p.logger().Warn("property read while computing", "property", p.name)
		return p.cached
	}

	raw := p.compute()
	p.cached = applyPipeline(p.ops, p.mods, raw, derivedStages)
	p.dirty = false
	return p.cached
}

func (p *Derived[V]) compute() V {
	p.computing = true
	defer func() { p.computing = false }()
	return p.formula()
}

// Getter returns Value as a func.
func (p *Derived[V]) Getter() func() V { return p.Value }

// AnyValue returns Value boxed.
func (p *Derived[V]) AnyValue() any { return p.Value() }

// AddModifier attaches a Clamp or Override modifier. Additive and
// Multiplicative modifiers are rejected with a warning and the list is left
// unchanged.
func (p *Derived[V]) AddModifier(m *Modifier[V]) error {
	if m == nil {
		return nil
	}
	if !derivedStages(m.kind) {
		p.logger().Warn("modifier kind not supported on derived property",
			"property", p.name,
			"kind", m.kind.String())
		return fmt.Errorf("%w: %s on derived property %q", ErrUnsupportedModifier, m.kind, p.name)
	}
	p.addModifier(m)
	return nil
}

func allStages(Kind) bool { return true }

func derivedStages(k Kind) bool { return k == Clamp || k == Override }
