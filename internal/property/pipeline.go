package property

import (
	"cmp"
	"slices"

	"github.com/udisondev/statgraph/internal/arith"
)

// applyStage runs one pipeline stage over v. Modifiers of the stage are stable
// sorted by ascending priority, so equal priorities keep insertion order.
func applyStage[V any](ops arith.Ops[V], mods []*Modifier[V], kind Kind, v V) V {
	stage := make([]*Modifier[V], 0, len(mods))
	for _, m := range mods {
		if m.kind == kind {
			stage = append(stage, m)
		}
	}
	if len(stage) == 0 {
		return v
	}
	slices.SortStableFunc(stage, func(a, b *Modifier[V]) int {
		return cmp.Compare(a.priority, b.priority)
	})

	switch kind {
	case Additive:
		for _, m := range stage {
			v = ops.Add(v, m.Value())
		}
	case Multiplicative:
		for _, m := range stage {
			v = ops.Mul(v, m.Value())
		}
	case Clamp:
		// Sequential narrowing: a later clamp cannot widen past its own bounds.
		for _, m := range stage {
			lo, hi := m.Bounds()
			v = ops.Clamp(v, lo, hi)
		}
	case Override:
		v = stage[len(stage)-1].Value()
	}
	return v
}

// applyPipeline runs the given stages in the fixed Additive, Multiplicative,
// Clamp, Override order, skipping stages not listed in allowed.
func applyPipeline[V any](ops arith.Ops[V], mods []*Modifier[V], v V, allowed func(Kind) bool) V {
	if len(mods) == 0 {
		return v
	}
	for _, kind := range stages {
		if allowed(kind) {
			v = applyStage(ops, mods, kind, v)
		}
	}
	return v
}
