package group

import (
	"github.com/udisondev/statgraph/internal/property"
)

// Suffixes used by the Standard preset.
const (
	SuffixValue       = "-Value"
	SuffixValueConfig = "-Value-Config"
	SuffixValueBuff   = "-Value-Buff"
	SuffixValueOther  = "-Value-Other"
	SuffixMul         = "-Mul"
	SuffixMulBuff     = "-Mul-Buff"
	SuffixMulOther    = "-Mul-Other"
)

// Suffixes used by the Simple and Percent presets.
const (
	SuffixBase  = "-Base"
	SuffixBuff  = "-Buff"
	SuffixBonus = "-Bonus"
)

// StandardLimits are the clamp bounds of a Standard group.
type StandardLimits struct {
	OtherMax    float64 `yaml:"other_max"`
	MulBuffMax  float64 `yaml:"mul_buff_max"`
	MulOtherMax float64 `yaml:"mul_other_max"`
}

// DefaultStandardLimits returns the bounds used when none are given.
func DefaultStandardLimits() StandardLimits {
	return StandardLimits{
		OtherMax:    50,
		MulBuffMax:  0.5,
		MulOtherMax: 1.5,
	}
}

// Standard registers the full structure:
//
//	name-Value = Config + Buff + Other, clamped to [0, 2*Config]
//	name-Mul   = (1 + Mul-Buff) * Mul-Other
//	name       = name-Value * name-Mul
func Standard(h *property.Handler, name string, base float64, limits StandardLimits) error {
	return NewBuilder(h, name).
		Stored(SuffixValueConfig, base, SuffixValue).
		Stored(SuffixValueBuff, 0, SuffixValue).
		Stored(SuffixValueOther, 0, SuffixValue).
		Stored(SuffixMulBuff, 0, SuffixMul).
		Stored(SuffixMulOther, 1, SuffixMul).
		Sum(SuffixValue, "", SuffixValueConfig, SuffixValueBuff, SuffixValueOther).
		BuffMul(SuffixMul, SuffixMulBuff, SuffixMulOther, "").
		Product("", "", SuffixValue, SuffixMul).
		Clamp(SuffixValueOther, -999, limits.OtherMax).
		Clamp(SuffixMulBuff, -1, limits.MulBuffMax).
		Clamp(SuffixMulOther, 0, limits.MulOtherMax).
		ClampDynamic(SuffixValue, 0, SuffixValueConfig, 2).
		Build()
}

// Simple registers name = name-Base + name-Buff clamped to [lo, hi].
func Simple(h *property.Handler, name string, base, lo, hi float64) error {
	return NewBuilder(h, name).
		Stored(SuffixBase, base, "").
		Stored(SuffixBuff, 0, "").
		Sum("", "", SuffixBase, SuffixBuff).
		Clamp("", lo, hi).
		Build()
}

// Percent registers name = name-Base + name-Bonus clamped to [0, 100].
func Percent(h *property.Handler, name string, base float64) error {
	return NewBuilder(h, name).
		Stored(SuffixBase, base, "").
		Stored(SuffixBonus, 0, "").
		Sum("", "", SuffixBase, SuffixBonus).
		Clamp("", 0, 100).
		Build()
}

// Single registers one stored property called name.
func Single(h *property.Handler, name string, base float64) error {
	return NewBuilder(h, name).
		Stored("", base, "").
		Build()
}

var presets = map[string]func(h *property.Handler, name string, base float64) error{
	"standard": func(h *property.Handler, name string, base float64) error {
		return Standard(h, name, base, DefaultStandardLimits())
	},
	"simple": func(h *property.Handler, name string, base float64) error {
		return Simple(h, name, base, 0, 999)
	},
	"percent": Percent,
	"single":  Single,
}
