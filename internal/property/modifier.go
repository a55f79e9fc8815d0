package property

import "fmt"

// Kind selects the pipeline stage a modifier belongs to.
type Kind int8

const (
	Additive       Kind = iota // flat bonus, folded with Add
	Multiplicative             // scaling bonus, folded with Mul
	Clamp                      // hard bounds, applied in sequence
	Override                   // absolute value, highest priority wins
)

// stages is the fixed pipeline order.
var stages = [...]Kind{Additive, Multiplicative, Clamp, Override}

func (k Kind) String() string {
	switch k {
	case Additive:
		return "additive"
	case Multiplicative:
		return "multiplicative"
	case Clamp:
		return "clamp"
	case Override:
		return "override"
	default:
		return fmt.Sprintf("Kind(%d)", int8(k))
	}
}

// Modifier is one prioritized adjustment of a property. Modifiers are
// compared by pointer: two modifiers with equal fields are separate entries,
// so keep the pointer around to remove it later.
type Modifier[V any] struct {
	kind     Kind
	priority int
	value    func() V
	min      func() V
	max      func() V
}

// Kind returns the pipeline stage.
func (m *Modifier[V]) Kind() Kind { return m.kind }

// Priority orders modifiers of the same kind; lower runs first.
func (m *Modifier[V]) Priority() int { return m.priority }

// Value evaluates the producer of an Additive, Multiplicative or Override
// modifier. For Clamp it returns the zero value.
func (m *Modifier[V]) Value() V {
	if m.value == nil {
		var zero V
		return zero
	}
	return m.value()
}

// Bounds evaluates the bounds of a Clamp modifier.
func (m *Modifier[V]) Bounds() (lo, hi V) {
	if m.min != nil {
		lo = m.min()
	}
	if m.max != nil {
		hi = m.max()
	}
	return lo, hi
}

func (m *Modifier[V]) String() string {
	return fmt.Sprintf("%s(priority=%d)", m.kind, m.priority)
}

func constant[V any](v V) func() V {
	return func() V { return v }
}

// NewAdditive adds v during the Additive stage.
func NewAdditive[V any](v V, priority int) *Modifier[V] {
	return &Modifier[V]{kind: Additive, priority: priority, value: constant(v)}
}

// NewAdditiveFunc adds the value produced by fn at recompute time.
func NewAdditiveFunc[V any](fn func() V, priority int) *Modifier[V] {
	return &Modifier[V]{kind: Additive, priority: priority, value: fn}
}

// NewMultiplicative multiplies by v during the Multiplicative stage.
func NewMultiplicative[V any](v V, priority int) *Modifier[V] {
	return &Modifier[V]{kind: Multiplicative, priority: priority, value: constant(v)}
}

// NewMultiplicativeFunc multiplies by the value produced by fn.
func NewMultiplicativeFunc[V any](fn func() V, priority int) *Modifier[V] {
	return &Modifier[V]{kind: Multiplicative, priority: priority, value: fn}
}

// NewClamp bounds the value to [lo, hi] during the Clamp stage.
func NewClamp[V any](lo, hi V, priority int) *Modifier[V] {
	return &Modifier[V]{kind: Clamp, priority: priority, min: constant(lo), max: constant(hi)}
}

// NewClampFunc bounds the value with limits evaluated at recompute time,
// typically read from another property.
func NewClampFunc[V any](lo, hi func() V, priority int) *Modifier[V] {
	return &Modifier[V]{kind: Clamp, priority: priority, min: lo, max: hi}
}

// NewOverride replaces the value with v during the Override stage.
func NewOverride[V any](v V, priority int) *Modifier[V] {
	return &Modifier[V]{kind: Override, priority: priority, value: constant(v)}
}

// NewOverrideFunc replaces the value with the one produced by fn.
func NewOverrideFunc[V any](fn func() V, priority int) *Modifier[V] {
	return &Modifier[V]{kind: Override, priority: priority, value: fn}
}
