package property

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/udisondev/statgraph/internal/arith"
	"github.com/udisondev/statgraph/internal/graph"
)

// Handler is the per-owner registry of named properties.
type Handler struct {
	reg    *arith.Registry
	logger *slog.Logger
	nodes  map[string]Node
	order  []string

	// pending holds parent edges declared by Derived properties whose
	// dependency is not registered yet, keyed by dependency name.
	pending map[string][]string
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger used for lookup misses and rejected modifiers.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates an empty Handler backed by reg.
func NewHandler(reg *arith.Registry, opts ...Option) *Handler {
	h := &Handler{
		reg:     reg,
		logger:  slog.Default(),
		nodes:   make(map[string]Node),
		pending: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Registry returns the arithmetic registry shared by this Handler's properties.
func (h *Handler) Registry() *arith.Registry { return h.reg }

// Logger returns the Handler's logger.
func (h *Handler) Logger() *slog.Logger { return h.logger }

// Register adds n under its name. A previous property with the same name is
// replaced and its parent edges move to n. Dependencies declared by a Derived
// property are wired so that each dependency marks n dirty, now or when the
// dependency registers.
func (h *Handler) Register(n Node) {
	name := n.Name()
	if old, ok := h.nodes[name]; ok {
		if old == n {
			return
		}
		h.logger.Warn("property replaced", "property", name)
		for _, parent := range old.Parents() {
			n.NotifyParentOnDirty(parent)
		}
	} else {
		h.order = append(h.order, name)
	}

	n.bind(h)
	h.nodes[name] = n

	if d, ok := n.(interface{ Dependencies() []string }); ok {
		for _, dep := range d.Dependencies() {
			h.link(dep, name)
		}
	}
	for _, parent := range h.pending[name] {
		n.NotifyParentOnDirty(parent)
	}
	delete(h.pending, name)

	// Anything already computed from the old property is stale.
	n.SetDirty()
}

func (h *Handler) link(child, parent string) {
	if c, ok := h.nodes[child]; ok {
		c.NotifyParentOnDirty(parent)
		return
	}
	if !slices.Contains(h.pending[child], parent) {
		h.pending[child] = append(h.pending[child], parent)
	}
}

// Get returns the property registered under name.
func (h *Handler) Get(name string) (Node, bool) {
	n, ok := h.nodes[name]
	return n, ok
}

// Len returns the number of registered properties.
func (h *Handler) Len() int { return len(h.nodes) }

// Names returns property names in registration order.
func (h *Handler) Names() []string { return slices.Clone(h.order) }

// Snapshot evaluates every property and returns name -> value.
func (h *Handler) Snapshot() map[string]any {
	out := make(map[string]any, len(h.nodes))
	for _, name := range h.order {
		out[name] = h.nodes[name].AnyValue()
	}
	return out
}

// Finalize checks the notify chain for cycles and logs parents and pending
// dependencies that never resolved. Call it once the owner is set up.
func (h *Handler) Finalize() error {
	g := graph.New()
	for _, name := range h.order {
		g.AddNode(name)
		for _, parent := range h.nodes[name].Parents() {
			if _, ok := h.nodes[parent]; !ok {
				h.logger.Warn("parent property not registered", "property", name, "parent", parent)
			}
			if err := g.AddEdge(name, parent); err != nil {
				return fmt.Errorf("finalizing properties: %w", err)
			}
		}
	}
	for dep, parents := range h.pending {
		h.logger.Warn("dependency property not registered", "dependency", dep, "dependents", parents)
	}

	if err := g.DetectCycles(); err != nil {
		return fmt.Errorf("finalizing properties: %w", err)
	}
	return nil
}

// Lookup returns the property registered under name as a Property[V]. It
// returns false when the name is unknown or the value type differs; both
// cases are logged.
func Lookup[V any](h *Handler, name string) (Property[V], bool) {
	n, ok := h.nodes[name]
	if !ok {
		h.logger.Warn("property not found", "property", name)
		return nil, false
	}
	p, ok := n.(Property[V])
	if !ok {
		var zero V
		h.logger.Warn("property type mismatch",
			"property", name,
			"want", fmt.Sprintf("%T", zero),
			"got", fmt.Sprintf("%T", n))
		return nil, false
	}
	return p, true
}

// Ref returns a getter that resolves name on each call and returns fallback
// when the property is missing or has another type.
func Ref[V any](h *Handler, name string, fallback V) func() V {
	return func() V {
		p, ok := Lookup[V](h, name)
		if !ok {
			return fallback
		}
		return p.Value()
	}
}

// RegisterStored creates a Stored property with h's registry and registers it.
func RegisterStored[V any](h *Handler, name string, base V) (*Stored[V], error) {
	p, err := NewStored(h.reg, name, base)
	if err != nil {
		return nil, err
	}
	h.Register(p)
	return p, nil
}

// RegisterDerived creates a Derived property with h's registry and registers it.
func RegisterDerived[V any](h *Handler, name string, formula func() V, deps ...string) (*Derived[V], error) {
	p, err := NewDerived(h.reg, name, formula, deps...)
	if err != nil {
		return nil, err
	}
	h.Register(p)
	return p, nil
}
