package group

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when a group definition fails validation.
	ErrInvalidConfig = errors.New("group: invalid config")
	// ErrNoDependencies is returned for a computed node without dependencies.
	ErrNoDependencies = errors.New("group: computed property has no dependencies")
)

// Formula selects how a computed node combines its dependencies.
type Formula string

// The empty Formula is treated as FormulaSum.
const (
	FormulaSum     Formula = "sum"
	FormulaProduct Formula = "product"
	// FormulaBuffMul computes (1 + deps[0]) * deps[1].
	FormulaBuffMul Formula = "buff_mul"
)

func (f Formula) valid() bool {
	switch f {
	case "", FormulaSum, FormulaProduct, FormulaBuffMul:
		return true
	}
	return false
}

// Config describes one property group. Either Preset or Nodes is set.
type Config struct {
	Name   string       `yaml:"name" hcl:"name,label"`
	Preset string       `yaml:"preset,omitempty" hcl:"preset,optional"`
	Base   float64      `yaml:"base,omitempty" hcl:"base,optional"`
	Nodes  []NodeConfig `yaml:"nodes,omitempty" hcl:"node,block"`
}

// NodeConfig describes a single property of a group.
type NodeConfig struct {
	Suffix       string       `yaml:"suffix" hcl:"suffix,label"`
	Computed     bool         `yaml:"computed,omitempty" hcl:"computed,optional"`
	BaseValue    float64      `yaml:"base_value,omitempty" hcl:"base_value,optional"`
	Formula      Formula      `yaml:"formula,omitempty" hcl:"formula,optional"`
	Dependencies []string     `yaml:"dependencies,omitempty" hcl:"dependencies,optional"`
	Parent       string       `yaml:"parent,omitempty" hcl:"parent,optional"`
	Clamp        *ClampConfig `yaml:"clamp,omitempty" hcl:"clamp,block"`
}

// ClampConfig bounds a node. With DynamicMax set the upper bound is the
// current value of that sibling times DynamicMaxMultiplier.
type ClampConfig struct {
	Min                  float64 `yaml:"min" hcl:"min,optional"`
	Max                  float64 `yaml:"max" hcl:"max,optional"`
	DynamicMax           string  `yaml:"dynamic_max,omitempty" hcl:"dynamic_max,optional"`
	DynamicMaxMultiplier float64 `yaml:"dynamic_max_multiplier,omitempty" hcl:"dynamic_max_multiplier,optional"`
}

// Multiplier returns DynamicMaxMultiplier, treating zero as 1.
func (c *ClampConfig) Multiplier() float64 {
	if c.DynamicMaxMultiplier == 0 {
		return 1
	}
	return c.DynamicMaxMultiplier
}

// Validate checks the group for problems that do not need a Handler:
// naming, formulas, references between suffixes of the same group.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: group name is empty", ErrInvalidConfig)
	}
	if c.Preset != "" {
		if _, ok := presets[c.Preset]; !ok {
			return fmt.Errorf("%w: group %q: unknown preset %q", ErrInvalidConfig, c.Name, c.Preset)
		}
		if len(c.Nodes) > 0 {
			return fmt.Errorf("%w: group %q: preset and nodes are mutually exclusive", ErrInvalidConfig, c.Name)
		}
		return nil
	}
	if len(c.Nodes) == 0 {
		return fmt.Errorf("%w: group %q has no nodes", ErrInvalidConfig, c.Name)
	}

	suffixes := make(map[string]struct{}, len(c.Nodes))
	for _, n := range c.Nodes {
		if _, dup := suffixes[n.Suffix]; dup {
			return fmt.Errorf("%w: group %q: duplicate suffix %q", ErrInvalidConfig, c.Name, n.Suffix)
		}
		suffixes[n.Suffix] = struct{}{}
	}

	var errs []error
	ref := func(n NodeConfig, role, s string) {
		if _, ok := suffixes[s]; !ok {
			errs = append(errs, fmt.Errorf("%w: group %q node %q: %s %q is not defined",
				ErrInvalidConfig, c.Name, n.Suffix, role, s))
		}
	}
	for _, n := range c.Nodes {
		if n.Computed {
			if !n.Formula.valid() {
				errs = append(errs, fmt.Errorf("%w: group %q node %q: unknown formula %q",
					ErrInvalidConfig, c.Name, n.Suffix, n.Formula))
			}
			if len(n.Dependencies) == 0 {
				errs = append(errs, fmt.Errorf("group %q node %q: %w", c.Name, n.Suffix, ErrNoDependencies))
			}
			if n.Formula == FormulaBuffMul && len(n.Dependencies) != 2 {
				errs = append(errs, fmt.Errorf("%w: group %q node %q: buff_mul takes exactly two dependencies",
					ErrInvalidConfig, c.Name, n.Suffix))
			}
			for _, d := range n.Dependencies {
				ref(n, "dependency", d)
			}
		}
		if n.Parent != "" {
			ref(n, "parent", n.Parent)
		}
		if cl := n.Clamp; cl != nil {
			if cl.DynamicMax != "" {
				ref(n, "dynamic max", cl.DynamicMax)
			} else if cl.Min > cl.Max {
				errs = append(errs, fmt.Errorf("%w: group %q node %q: clamp min %g > max %g",
					ErrInvalidConfig, c.Name, n.Suffix, cl.Min, cl.Max))
			}
		}
	}
	return errors.Join(errs...)
}
