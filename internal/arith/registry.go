// Package arith holds the per-type arithmetic used by property pipelines.
//
// The engine is generic over the value type of a property, but it still has to
// add, multiply and clamp values. A Registry maps each value type to an Ops
// triple. One Registry is built at startup and injected into every Handler.
package arith

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrNotRegistered is wrapped by ConfigError.
var ErrNotRegistered = errors.New("arith: operations not registered")

// ErrIncompleteOps is returned by Register when any of the three funcs is nil.
var ErrIncompleteOps = errors.New("arith: incomplete operations")

// ConfigError reports a value type without registered operations.
type ConfigError struct {
	Type reflect.Type
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("arith: no operations registered for %s; register them at startup", e.Type)
}

func (e *ConfigError) Unwrap() error { return ErrNotRegistered }

// Ops is the arithmetic capability of a value type V.
type Ops[V any] struct {
	Add   func(a, b V) V
	Mul   func(a, b V) V
	Clamp func(v, lo, hi V) V
}

func (o Ops[V]) complete() bool {
	return o.Add != nil && o.Mul != nil && o.Clamp != nil
}

// Registry stores Ops per value type. Safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	ops          map[reflect.Type]any
	bootstrapped bool
}

// NewRegistry returns an empty Registry. Builtin types are bootstrapped lazily
// on the first miss.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[reflect.Type]any)}
}

// Register stores ops for V, replacing any previous entry.
func Register[V any](r *Registry, ops Ops[V]) error {
	t := reflect.TypeFor[V]()
	if !ops.complete() {
		return fmt.Errorf("registering %s: %w", t, ErrIncompleteOps)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[t] = ops
	return nil
}

// Require returns the ops registered for V. On a miss the builtin types are
// registered once and the lookup is retried; if V is still unknown a
// *ConfigError is returned.
func Require[V any](r *Registry) (Ops[V], error) {
	t := reflect.TypeFor[V]()
	if ops, ok := r.lookup(t); ok {
		return ops.(Ops[V]), nil
	}

	r.bootstrap()

	if ops, ok := r.lookup(t); ok {
		return ops.(Ops[V]), nil
	}
	return Ops[V]{}, &ConfigError{Type: t}
}

// Registered reports whether ops for V are present without bootstrapping.
func Registered[V any](r *Registry) bool {
	_, ok := r.lookup(reflect.TypeFor[V]())
	return ok
}

func (r *Registry) lookup(t reflect.Type) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ops, ok := r.ops[t]
	return ops, ok
}

// bootstrap registers builtins that the caller has not registered already.
func (r *Registry) bootstrap() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bootstrapped {
		return
	}
	r.bootstrapped = true

	for t, ops := range builtins() {
		if _, ok := r.ops[t]; !ok {
			r.ops[t] = ops
		}
	}
}

func builtins() map[reflect.Type]any {
	return map[reflect.Type]any{
		reflect.TypeFor[int]():     NumberOps[int](),
		reflect.TypeFor[int32]():   NumberOps[int32](),
		reflect.TypeFor[int64]():   NumberOps[int64](),
		reflect.TypeFor[float32](): NumberOps[float32](),
		reflect.TypeFor[float64](): NumberOps[float64](),
		reflect.TypeFor[Vec3]():    Vec3Ops(),
	}
}
