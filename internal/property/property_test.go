package property

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/statgraph/internal/arith"
	"github.com/udisondev/statgraph/internal/testutil"
)

func newTestHandler(t *testing.T) (*Handler, *testutil.LogRecorder) {
	t.Helper()
	logger, rec := testutil.NewLogger()
	return NewHandler(arith.NewRegistry(), WithLogger(logger)), rec
}

func mustStored(t *testing.T, h *Handler, name string, base float64) *Stored[float64] {
	t.Helper()
	p, err := RegisterStored(h, name, base)
	require.NoError(t, err)
	return p
}

func TestStored_ValueWithoutModifiers(t *testing.T) {
	h, _ := newTestHandler(t)
	p := mustStored(t, h, "Attack", 50)

	assert.True(t, p.Dirty())
	assert.Equal(t, 50.0, p.Value())
	assert.False(t, p.Dirty())
	assert.Equal(t, 50.0, p.Base())
}

func TestDerived_CachesUntilDirty(t *testing.T) {
	h, _ := newTestHandler(t)

	calls := 0
	p, err := RegisterDerived(h, "Speed", func() float64 {
		calls++
		return 42
	})
	require.NoError(t, err)

	first := p.Value()
	second := p.Value()
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls, "formula must run once while clean")

	p.SetDirty()
	p.Value()
	assert.Equal(t, 2, calls)
}

func TestSetDirty_PropagatesThroughDeclaredParents(t *testing.T) {
	h, _ := newTestHandler(t)

	a := mustStored(t, h, "A", 1)

	var bCalls, cCalls int
	b, err := RegisterDerived(h, "B", func() float64 {
		bCalls++
		return a.Value() * 10
	})
	require.NoError(t, err)

	c, err := RegisterDerived(h, "C", func() float64 {
		cCalls++
		return b.Value() + 1
	})
	require.NoError(t, err)

	a.NotifyParentOnDirty("B")
	b.NotifyParentOnDirty("C")

	assert.Equal(t, 11.0, c.Value())
	assert.False(t, b.Dirty())
	assert.False(t, c.Dirty())

	add := NewAdditive(4.0, 0)
	require.NoError(t, a.AddModifier(add))

	assert.True(t, b.Dirty())
	assert.True(t, c.Dirty())
	assert.Equal(t, 51.0, c.Value())
	assert.Equal(t, 2, bCalls)
	assert.Equal(t, 2, cCalls)
}

func TestSetDirty_RunsObservers(t *testing.T) {
	h, _ := newTestHandler(t)
	p := mustStored(t, h, "HP", 100)

	fired := 0
	p.OnDirty(func() { fired++ })
	p.SetDirty()
	require.NoError(t, p.AddModifier(NewAdditive(1.0, 0)))

	assert.Equal(t, 2, fired)
}

func TestNotifyParentOnDirty_UnknownParentIsNoop(t *testing.T) {
	h, rec := newTestHandler(t)
	p := mustStored(t, h, "A", 1)

	p.NotifyParentOnDirty("Missing")
	assert.NotPanics(t, p.SetDirty)
	assert.True(t, rec.Has(slog.LevelWarn, "parent property not found"))

	parent, ok := rec.Attr("parent property not found", "parent")
	require.True(t, ok)
	assert.Equal(t, "Missing", parent)
}

func TestNotifyParentOnDirty_Deduplicates(t *testing.T) {
	h, _ := newTestHandler(t)
	p := mustStored(t, h, "A", 1)

	p.NotifyParentOnDirty("B")
	p.NotifyParentOnDirty("B")
	p.NotifyParentOnDirty("")

	assert.Equal(t, []string{"B"}, p.Parents())
}

func TestAdditive_OrderIndependent(t *testing.T) {
	values := []float64{1.5, -3, 10, 0.25, 7}
	perms := [][]int{
		{0, 1, 2, 3, 4},
		{4, 3, 2, 1, 0},
		{2, 0, 4, 1, 3},
		{1, 4, 0, 3, 2},
	}

	var want float64
	for i, perm := range perms {
		h, _ := newTestHandler(t)
		p := mustStored(t, h, "Value", 100)
		for _, idx := range perm {
			require.NoError(t, p.AddModifier(NewAdditive(values[idx], 0)))
		}
		got := p.Value()
		if i == 0 {
			want = got
			continue
		}
		assert.InDelta(t, want, got, 1e-9, "permutation %v", perm)
	}
	assert.InDelta(t, 115.75, want, 1e-9)
}

func TestPipeline_StageOrder(t *testing.T) {
	h, _ := newTestHandler(t)
	p := mustStored(t, h, "Value", 10)

	// Added in reverse stage order on purpose.
	require.NoError(t, p.AddModifier(NewClamp(0.0, 100.0, 0)))
	require.NoError(t, p.AddModifier(NewMultiplicative(3.0, 0)))
	require.NoError(t, p.AddModifier(NewAdditive(30.0, 0)))

	// (10 + 30) * 3 = 120, clamped to 100.
	assert.Equal(t, 100.0, p.Value())
}

func TestOverride_HighestPriorityWins(t *testing.T) {
	h, _ := newTestHandler(t)
	p := mustStored(t, h, "MoveSpeed-Value-Buff", 0)

	normal := NewOverride(10.0, 100)
	super := NewOverride(30.0, 200)
	require.NoError(t, p.AddModifier(super))
	require.NoError(t, p.AddModifier(normal))

	assert.Equal(t, 30.0, p.Value())

	assert.True(t, p.RemoveModifier(super))
	assert.Equal(t, 10.0, p.Value())

	assert.True(t, p.RemoveModifier(normal))
	assert.Equal(t, 0.0, p.Value())
}

func TestOverride_TieGoesToMostRecent(t *testing.T) {
	h, _ := newTestHandler(t)
	p := mustStored(t, h, "X", 0)

	require.NoError(t, p.AddModifier(NewOverride(1.0, 5)))
	require.NoError(t, p.AddModifier(NewOverride(2.0, 5)))

	assert.Equal(t, 2.0, p.Value())
}

func TestClamp_SequentialNarrowing(t *testing.T) {
	h, _ := newTestHandler(t)
	p := mustStored(t, h, "X", 60)

	require.NoError(t, p.AddModifier(NewClamp(0.0, 1.5, 10)))
	require.NoError(t, p.AddModifier(NewClamp(-999.0, 50.0, 0)))

	// 60 -> 50 (priority 0) -> 1.5 (priority 10).
	assert.Equal(t, 1.5, p.Value())
}

func TestClamp_DynamicBounds(t *testing.T) {
	h, _ := newTestHandler(t)
	limit := mustStored(t, h, "Limit", 20)
	p := mustStored(t, h, "X", 100)

	require.NoError(t, p.AddModifier(NewClampFunc(
		func() float64 { return 0 },
		func() float64 { return limit.Value() * 2 },
		0,
	)))
	limit.NotifyParentOnDirty("X")

	assert.Equal(t, 40.0, p.Value())

	require.NoError(t, limit.AddModifier(NewAdditive(5.0, 0)))
	assert.Equal(t, 50.0, p.Value())
}

func TestModifier_ProducerEvaluatedOnRecompute(t *testing.T) {
	h, _ := newTestHandler(t)
	p := mustStored(t, h, "X", 1)

	bonus := 2.0
	require.NoError(t, p.AddModifier(NewAdditiveFunc(func() float64 { return bonus }, 0)))
	assert.Equal(t, 3.0, p.Value())

	bonus = 5
	assert.Equal(t, 3.0, p.Value(), "clean cache must not re-run producers")

	p.SetDirty()
	assert.Equal(t, 6.0, p.Value())
}

func TestRemoveModifier_ByIdentity(t *testing.T) {
	h, _ := newTestHandler(t)
	p := mustStored(t, h, "X", 0)

	m1 := NewAdditive(1.0, 0)
	m2 := NewAdditive(1.0, 0)
	require.NoError(t, p.AddModifier(m1))
	require.NoError(t, p.AddModifier(m2))

	assert.True(t, p.RemoveModifier(m1))
	assert.Equal(t, []*Modifier[float64]{m2}, p.Modifiers())
	assert.False(t, p.RemoveModifier(m1))
	assert.Equal(t, 1.0, p.Value())
}

func TestDerived_RejectsAdditiveAndMultiplicative(t *testing.T) {
	h, rec := newTestHandler(t)
	p, err := RegisterDerived(h, "MoveSpeed", func() float64 { return 100 })
	require.NoError(t, err)

	err = p.AddModifier(NewAdditive(20.0, 0))
	assert.ErrorIs(t, err, ErrUnsupportedModifier)
	err = p.AddModifier(NewMultiplicative(2.0, 0))
	assert.ErrorIs(t, err, ErrUnsupportedModifier)

	assert.Empty(t, p.Modifiers())
	assert.Len(t, rec.Messages(slog.LevelWarn), 2)
	assert.Equal(t, 100.0, p.Value())

	require.NoError(t, p.AddModifier(NewClamp(0.0, 80.0, 0)))
	assert.Equal(t, 80.0, p.Value())

	boots := NewOverrideFunc(func() float64 { return 200 }, 9999)
	require.NoError(t, p.AddModifier(boots))
	assert.Equal(t, 200.0, p.Value())
	assert.Equal(t, 2, p.ModifierCount())
}

func TestDerived_SelfReadReturnsCached(t *testing.T) {
	h, rec := newTestHandler(t)

	var self *Derived[float64]
	self, err := RegisterDerived(h, "Loop", func() float64 { return self.Value() + 1 })
	require.NoError(t, err)

	assert.Equal(t, 1.0, self.Value())
	assert.True(t, rec.Has(slog.LevelWarn, "property read while computing"))
}

func TestDerived_RecomputesAfterFormulaPanic(t *testing.T) {
	h, rec := newTestHandler(t)

	fail := true
	p, err := RegisterDerived(h, "Flaky", func() float64 {
		if fail {
			panic("formula failed")
		}
		return 7
	})
	require.NoError(t, err)

	assert.Panics(t, func() { p.Value() })
	assert.True(t, p.Dirty())

	fail = false
	assert.Equal(t, 7.0, p.Value())
	assert.False(t, rec.Has(slog.LevelWarn, "property read while computing"))
}

func TestNewStored_Errors(t *testing.T) {
	type unknown struct{ n int }

	_, err := NewStored(arith.NewRegistry(), "X", unknown{})
	assert.ErrorIs(t, err, arith.ErrNotRegistered)

	_, err = NewStored(arith.NewRegistry(), "", 1.0)
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = NewDerived[float64](arith.NewRegistry(), "X", nil)
	assert.ErrorIs(t, err, ErrNilFormula)
}

func TestStored_IntAndVec3(t *testing.T) {
	h, _ := newTestHandler(t)

	hp, err := RegisterStored(h, "HP", 100)
	require.NoError(t, err)
	require.NoError(t, hp.AddModifier(NewAdditive(25, 0)))
	require.NoError(t, hp.AddModifier(NewClamp(0, 120, 0)))
	assert.Equal(t, 120, hp.Value())

	scale, err := RegisterStored(h, "Scale", arith.Vec3{X: 1, Y: 1, Z: 1})
	require.NoError(t, err)
	require.NoError(t, scale.AddModifier(NewMultiplicative(arith.Vec3{X: 2, Y: 3, Z: 4}, 0)))
	assert.Equal(t, arith.Vec3{X: 2, Y: 3, Z: 4}, scale.Value())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "additive", Additive.String())
	assert.Equal(t, "override", Override.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
	assert.Equal(t, "clamp(priority=3)", NewClamp(0, 1, 3).String())
}
