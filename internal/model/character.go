package model

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/udisondev/statgraph/internal/arith"
	"github.com/udisondev/statgraph/internal/group"
	"github.com/udisondev/statgraph/internal/property"
)

// ErrUnknownStat is returned when a character has no float64 property
// with the requested name.
var ErrUnknownStat = errors.New("model: unknown stat")

// Character owns one property Handler. The mutex serializes every access
// to the Handler, which itself does no locking.
type Character struct {
	mu       sync.Mutex
	objectID uint32
	name     string
	handler  *property.Handler
	logger   *slog.Logger

	timed []*timedModifier
}

// timedModifier is a modifier removed once its remaining time runs out.
type timedModifier struct {
	stat        string
	mod         *property.Modifier[float64]
	remainingMs int32
}

// tick advances the timer and reports whether the modifier is still active.
func (t *timedModifier) tick(deltaMs int32) bool {
	t.remainingMs -= deltaMs
	return t.remainingMs > 0
}

// NewCharacter creates a character whose stats are built from groups.
// overrides maps full property IDs to base values.
func NewCharacter(reg *arith.Registry, logger *slog.Logger, objectID uint32, name string,
	groups []group.Config, overrides map[string]float64) (*Character, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("character", name, "object_id", objectID)

	h := property.NewHandler(reg, property.WithLogger(logger))
	for i := range groups {
		if err := group.Apply(h, &groups[i], overrides); err != nil {
			return nil, fmt.Errorf("building character %q: %w", name, err)
		}
	}

	return &Character{
		objectID: objectID,
		name:     name,
		handler:  h,
		logger:   logger,
	}, nil
}

// ObjectID returns the character's object ID.
func (c *Character) ObjectID() uint32 { return c.objectID }

// Name returns the character's name.
func (c *Character) Name() string { return c.name }

// Stat returns the current value of a float64 stat.
func (c *Character) Stat(name string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := property.Lookup[float64](c.handler, name)
	if !ok {
		return 0, false
	}
	return p.Value(), true
}

// Stats evaluates every stat and returns name -> value.
func (c *Character) Stats() map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]float64, c.handler.Len())
	for name, v := range c.handler.Snapshot() {
		if f, ok := v.(float64); ok {
			out[name] = f
		}
	}
	return out
}

// StatNames returns stat names in registration order.
func (c *Character) StatNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Names()
}

func (c *Character) lookup(name string) (property.Property[float64], error) {
	p, ok := property.Lookup[float64](c.handler, name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStat, name)
	}
	return p, nil
}

// AddModifier attaches mod to stat until it is removed.
func (c *Character) AddModifier(stat string, mod *property.Modifier[float64]) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.lookup(stat)
	if err != nil {
		return err
	}
	return p.AddModifier(mod)
}

// RemoveModifier detaches mod from stat. It also cancels a pending timer
// for mod.
func (c *Character) RemoveModifier(stat string, mod *property.Modifier[float64]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, t := range c.timed {
		if t.mod == mod && t.stat == stat {
			c.timed = append(c.timed[:i], c.timed[i+1:]...)
			break
		}
	}

	p, err := c.lookup(stat)
	if err != nil {
		return false
	}
	return p.RemoveModifier(mod)
}

// ApplyTimed attaches mod to stat and removes it after durationMs of Tick
// time.
func (c *Character) ApplyTimed(stat string, mod *property.Modifier[float64], durationMs int32) error {
	if durationMs <= 0 {
		return fmt.Errorf("applying timed modifier to %q: duration must be positive, got %d", stat, durationMs)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.lookup(stat)
	if err != nil {
		return err
	}
	if err := p.AddModifier(mod); err != nil {
		return err
	}
	c.timed = append(c.timed, &timedModifier{stat: stat, mod: mod, remainingMs: durationMs})
	return nil
}

// Tick advances timed modifiers by deltaMs and removes the expired ones.
// It returns how many expired.
func (c *Character) Tick(deltaMs int32) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	expired := 0
	n := 0
	for _, t := range c.timed {
		if t.tick(deltaMs) {
			c.timed[n] = t
			n++
			continue
		}
		if p, ok := property.Lookup[float64](c.handler, t.stat); ok {
			p.RemoveModifier(t.mod)
		}
		c.logger.Debug("timed modifier expired", "stat", t.stat, "modifier", t.mod.String())
		expired++
	}
	clear(c.timed[n:])
	c.timed = c.timed[:n]
	return expired
}

// ActiveTimed returns the number of timed modifiers still running.
func (c *Character) ActiveTimed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timed)
}
