package group

import (
	"fmt"

	"github.com/udisondev/statgraph/internal/property"
)

// Apply validates cfg and registers its properties into h. overrides maps a
// full property ID to a base value replacing the configured one for stored
// nodes and presets.
func Apply(h *property.Handler, cfg *Config, overrides map[string]float64) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Preset != "" {
		base := cfg.Base
		if v, ok := overrides[presetBaseID(cfg)]; ok {
			base = v
		}
		if err := presets[cfg.Preset](h, cfg.Name, base); err != nil {
			return fmt.Errorf("applying preset %q: %w", cfg.Preset, err)
		}
		return nil
	}

	b := NewBuilder(h, cfg.Name)
	for _, n := range cfg.Nodes {
		if !n.Computed {
			base := n.BaseValue
			if v, ok := overrides[b.ID(n.Suffix)]; ok {
				base = v
			}
			b.Stored(n.Suffix, base, n.Parent)
			continue
		}
		switch n.Formula {
		case FormulaProduct:
			b.Product(n.Suffix, n.Parent, n.Dependencies...)
		case FormulaBuffMul:
			b.BuffMul(n.Suffix, n.Dependencies[0], n.Dependencies[1], n.Parent)
		default:
			b.Sum(n.Suffix, n.Parent, n.Dependencies...)
		}
	}
	for _, n := range cfg.Nodes {
		cl := n.Clamp
		if cl == nil {
			continue
		}
		if cl.DynamicMax != "" {
			b.ClampDynamic(n.Suffix, cl.Min, cl.DynamicMax, cl.Multiplier())
		} else {
			b.Clamp(n.Suffix, cl.Min, cl.Max)
		}
	}
	return b.Build()
}

// presetBaseID names the stored property holding a preset's base value.
func presetBaseID(cfg *Config) string {
	switch cfg.Preset {
	case "standard":
		return ID(cfg.Name, SuffixValueConfig)
	case "single":
		return cfg.Name
	default:
		return ID(cfg.Name, SuffixBase)
	}
}
