// Package group wires conventional multi-property groups into a Handler.
//
// A group named "MoveSpeed" is a set of float64 properties whose names are
// the group name plus a suffix ("MoveSpeed-Value-Buff", "MoveSpeed-Mul", and
// the group name itself for the empty suffix). The Builder registers them,
// declares their dependencies and attaches clamps; Apply does the same from a
// declarative Config loaded from YAML, HCL or the database.
package group

import (
	"errors"
	"fmt"

	"github.com/udisondev/statgraph/internal/property"
)

// ErrUnresolved is returned by Build when a suffix does not name a
// registered property.
var ErrUnresolved = errors.New("group: unresolved property reference")

// Builder collects steps and runs them on Build: first every step is checked,
// then every property is created, then parents and clamps are wired.
type Builder struct {
	h       *property.Handler
	name    string
	checks  []func() error
	creates []func() error
	wires   []func() error
}

// NewBuilder returns a Builder for the group name.
func NewBuilder(h *property.Handler, name string) *Builder {
	return &Builder{h: h, name: name}
}

// ID returns the full property name for suffix.
func (b *Builder) ID(suffix string) string {
	return ID(b.name, suffix)
}

// ID composes a property name from a group name and a suffix. The empty
// suffix names the group's root property.
func ID(group, suffix string) string {
	if suffix == "" {
		return group
	}
	return group + suffix
}

func (b *Builder) ids(suffixes []string) []string {
	out := make([]string, len(suffixes))
	for i, s := range suffixes {
		out[i] = b.ID(s)
	}
	return out
}

// Stored adds a stored property. parentSuffix, when not empty, is notified
// whenever the property turns dirty.
func (b *Builder) Stored(suffix string, base float64, parentSuffix string) *Builder {
	id := b.ID(suffix)
	b.creates = append(b.creates, func() error {
		_, err := property.RegisterStored(b.h, id, base)
		return err
	})
	b.parent(id, parentSuffix)
	return b
}

// Sum adds a derived property: deps[0] + deps[1] + ...
func (b *Builder) Sum(suffix, parentSuffix string, depSuffixes ...string) *Builder {
	deps := b.ids(depSuffixes)
	return b.derived(suffix, parentSuffix, deps, func() float64 {
		sum := 0.0
		for _, id := range deps {
			sum += property.Ref(b.h, id, 0.0)()
		}
		return sum
	})
}

// Product adds a derived property: deps[0] * deps[1] * ...
func (b *Builder) Product(suffix, parentSuffix string, depSuffixes ...string) *Builder {
	deps := b.ids(depSuffixes)
	return b.derived(suffix, parentSuffix, deps, func() float64 {
		product := 1.0
		for _, id := range deps {
			product *= property.Ref(b.h, id, 1.0)()
		}
		return product
	})
}

// BuffMul adds a derived multiplier: (1 + buff) * mul.
func (b *Builder) BuffMul(suffix, buffSuffix, mulSuffix, parentSuffix string) *Builder {
	buffID, mulID := b.ID(buffSuffix), b.ID(mulSuffix)
	return b.derived(suffix, parentSuffix, []string{buffID, mulID}, func() float64 {
		return (1 + property.Ref(b.h, buffID, 0.0)()) * property.Ref(b.h, mulID, 1.0)()
	})
}

func (b *Builder) derived(suffix, parentSuffix string, deps []string, formula func() float64) *Builder {
	id := b.ID(suffix)
	b.checks = append(b.checks, func() error {
		if len(deps) == 0 {
			return fmt.Errorf("derived property %q: %w", id, ErrNoDependencies)
		}
		return nil
	})
	b.creates = append(b.creates, func() error {
		_, err := property.RegisterDerived(b.h, id, formula, deps...)
		return err
	})
	b.wires = append(b.wires, func() error {
		var errs []error
		for _, dep := range deps {
			if _, ok := b.h.Get(dep); !ok {
				errs = append(errs, b.unresolved(id, "dependency", dep))
			}
		}
		return errors.Join(errs...)
	})
	b.parent(id, parentSuffix)
	return b
}

func (b *Builder) parent(id, parentSuffix string) {
	if parentSuffix == "" {
		return
	}
	parentID := b.ID(parentSuffix)
	b.wires = append(b.wires, func() error {
		n, ok := b.h.Get(id)
		if !ok {
			return b.unresolved(id, "property", id)
		}
		if _, ok := b.h.Get(parentID); !ok {
			return b.unresolved(id, "parent", parentID)
		}
		n.NotifyParentOnDirty(parentID)
		return nil
	})
}

// Clamp bounds the property to [lo, hi].
func (b *Builder) Clamp(suffix string, lo, hi float64) *Builder {
	id := b.ID(suffix)
	b.wires = append(b.wires, func() error {
		p, ok := property.Lookup[float64](b.h, id)
		if !ok {
			return b.unresolved(id, "clamp target", id)
		}
		return p.AddModifier(property.NewClamp(lo, hi, 0))
	})
	return b
}

// ClampDynamic bounds the property to [lo, ref*mul], where ref is read at
// recompute time. ref is wired to mark the property dirty.
func (b *Builder) ClampDynamic(suffix string, lo float64, refSuffix string, mul float64) *Builder {
	id, refID := b.ID(suffix), b.ID(refSuffix)
	b.wires = append(b.wires, func() error {
		p, ok := property.Lookup[float64](b.h, id)
		if !ok {
			return b.unresolved(id, "clamp target", id)
		}
		ref, ok := b.h.Get(refID)
		if !ok {
			return b.unresolved(id, "clamp reference", refID)
		}
		ref.NotifyParentOnDirty(id)

		maxFn := property.Ref(b.h, refID, 0.0)
		return p.AddModifier(property.NewClampFunc(
			func() float64 { return lo },
			func() float64 { return maxFn() * mul },
			0,
		))
	})
	return b
}

func (b *Builder) unresolved(id, role, ref string) error {
	b.h.Logger().Warn("group reference not resolved",
		"group", b.name,
		"property", id,
		"role", role,
		"ref", ref)
	return fmt.Errorf("%w: %s %q of %q", ErrUnresolved, role, ref, id)
}

// Build creates all properties, wires parents and clamps and finalizes the
// Handler. Every unresolved reference is reported in the returned error.
//
// A failed check leaves the Handler untouched. Once creation starts, the
// properties registered before a failing step or a failed wiring stay in
// the Handler.
func (b *Builder) Build() error {
	var errs []error
	for _, check := range b.checks {
		if err := check(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("building group %q: %w", b.name, err)
	}

	for _, step := range b.creates {
		if err := step(); err != nil {
			return fmt.Errorf("building group %q: %w", b.name, err)
		}
	}

	for _, step := range b.wires {
		if err := step(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("building group %q: %w", b.name, err)
	}

	if err := b.h.Finalize(); err != nil {
		return fmt.Errorf("building group %q: %w", b.name, err)
	}
	return nil
}
