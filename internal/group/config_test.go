package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/statgraph/internal/property"
)

// moveSpeedConfig is the Standard preset spelled out node by node.
func moveSpeedConfig() *Config {
	return &Config{
		Name: "MoveSpeed",
		Nodes: []NodeConfig{
			{Suffix: "-Value-Config", BaseValue: 100, Parent: "-Value"},
			{Suffix: "-Value-Buff", Parent: "-Value"},
			{Suffix: "-Value-Other", Parent: "-Value", Clamp: &ClampConfig{Min: -999, Max: 50}},
			{Suffix: "-Mul-Buff", Parent: "-Mul", Clamp: &ClampConfig{Min: -1, Max: 0.5}},
			{Suffix: "-Mul-Other", BaseValue: 1, Parent: "-Mul", Clamp: &ClampConfig{Min: 0, Max: 1.5}},
			{
				Suffix:       "-Value",
				Computed:     true,
				Formula:      FormulaSum,
				Dependencies: []string{"-Value-Config", "-Value-Buff", "-Value-Other"},
				Clamp:        &ClampConfig{DynamicMax: "-Value-Config", DynamicMaxMultiplier: 2},
			},
			{
				Suffix:       "-Mul",
				Computed:     true,
				Formula:      FormulaBuffMul,
				Dependencies: []string{"-Mul-Buff", "-Mul-Other"},
			},
			{
				Suffix:       "",
				Computed:     true,
				Formula:      FormulaProduct,
				Dependencies: []string{"-Value", "-Mul"},
			},
		},
	}
}

func TestApply_MatchesStandardPreset(t *testing.T) {
	fromConfig, _ := newTestHandler(t)
	require.NoError(t, Apply(fromConfig, moveSpeedConfig(), nil))
	fromPreset := newMoveSpeed(t)

	assert.ElementsMatch(t, fromPreset.Names(), fromConfig.Names())

	mods := map[string]*property.Modifier[float64]{
		"MoveSpeed-Value-Buff":  property.NewOverride(20.0, 100),
		"MoveSpeed-Value-Other": property.NewAdditive(80.0, 0),
		"MoveSpeed-Mul-Buff":    property.NewOverride(0.2, 100),
	}
	for name, mod := range mods {
		require.NoError(t, lookup(t, fromConfig, name).AddModifier(mod))
		require.NoError(t, lookup(t, fromPreset, name).AddModifier(mod))
	}

	// (100 + 20 + 50) * 1.2
	assert.InDelta(t, 204.0, lookup(t, fromConfig, "MoveSpeed").Value(), 1e-9)
	assert.Equal(t, fromPreset.Snapshot(), fromConfig.Snapshot())
}

func TestApply_Overrides(t *testing.T) {
	h, _ := newTestHandler(t)
	require.NoError(t, Apply(h, moveSpeedConfig(), map[string]float64{
		"MoveSpeed-Value-Config": 150,
	}))
	assert.Equal(t, 150.0, lookup(t, h, "MoveSpeed").Value())

	require.NoError(t, Apply(h, &Config{Name: "Crit", Preset: "percent", Base: 5}, map[string]float64{
		"Crit-Base": 12,
	}))
	assert.Equal(t, 12.0, lookup(t, h, "Crit").Value())

	require.NoError(t, Apply(h, &Config{Name: "Level", Preset: "single", Base: 1}, map[string]float64{
		"Level": 40,
	}))
	assert.Equal(t, 40.0, lookup(t, h, "Level").Value())
}

func TestApply_Presets(t *testing.T) {
	h, _ := newTestHandler(t)
	require.NoError(t, Apply(h, &Config{Name: "Attack", Preset: "standard", Base: 80}, nil))
	require.NoError(t, Apply(h, &Config{Name: "Defence", Preset: "simple", Base: 20}, nil))

	assert.Equal(t, 80.0, lookup(t, h, "Attack").Value())
	assert.Equal(t, 20.0, lookup(t, h, "Defence").Value())
	assert.Equal(t, 11, h.Len())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
		msg     string
	}{
		{
			name:    "empty name",
			cfg:     Config{Nodes: []NodeConfig{{Suffix: "-A"}}},
			wantErr: ErrInvalidConfig,
			msg:     "group name is empty",
		},
		{
			name:    "no nodes",
			cfg:     Config{Name: "G"},
			wantErr: ErrInvalidConfig,
			msg:     "has no nodes",
		},
		{
			name:    "unknown preset",
			cfg:     Config{Name: "G", Preset: "fancy"},
			wantErr: ErrInvalidConfig,
			msg:     `unknown preset "fancy"`,
		},
		{
			name:    "preset with nodes",
			cfg:     Config{Name: "G", Preset: "single", Nodes: []NodeConfig{{Suffix: "-A"}}},
			wantErr: ErrInvalidConfig,
			msg:     "mutually exclusive",
		},
		{
			name:    "duplicate suffix",
			cfg:     Config{Name: "G", Nodes: []NodeConfig{{Suffix: "-A"}, {Suffix: "-A"}}},
			wantErr: ErrInvalidConfig,
			msg:     `duplicate suffix "-A"`,
		},
		{
			name: "unknown formula",
			cfg: Config{Name: "G", Nodes: []NodeConfig{
				{Suffix: "-A"},
				{Suffix: "", Computed: true, Formula: "max", Dependencies: []string{"-A"}},
			}},
			wantErr: ErrInvalidConfig,
			msg:     `unknown formula "max"`,
		},
		{
			name:    "computed without dependencies",
			cfg:     Config{Name: "G", Nodes: []NodeConfig{{Suffix: "", Computed: true}}},
			wantErr: ErrNoDependencies,
		},
		{
			name: "buff_mul arity",
			cfg: Config{Name: "G", Nodes: []NodeConfig{
				{Suffix: "-A"},
				{Suffix: "", Computed: true, Formula: FormulaBuffMul, Dependencies: []string{"-A"}},
			}},
			wantErr: ErrInvalidConfig,
			msg:     "exactly two dependencies",
		},
		{
			name: "undefined dependency",
			cfg: Config{Name: "G", Nodes: []NodeConfig{
				{Suffix: "", Computed: true, Dependencies: []string{"-Missing"}},
			}},
			wantErr: ErrInvalidConfig,
			msg:     `dependency "-Missing" is not defined`,
		},
		{
			name:    "undefined parent",
			cfg:     Config{Name: "G", Nodes: []NodeConfig{{Suffix: "-A", Parent: "-B"}}},
			wantErr: ErrInvalidConfig,
			msg:     `parent "-B" is not defined`,
		},
		{
			name: "inverted clamp",
			cfg: Config{Name: "G", Nodes: []NodeConfig{
				{Suffix: "-A", Clamp: &ClampConfig{Min: 5, Max: 1}},
			}},
			wantErr: ErrInvalidConfig,
			msg:     "clamp min 5 > max 1",
		},
		{
			name: "undefined dynamic max",
			cfg: Config{Name: "G", Nodes: []NodeConfig{
				{Suffix: "-A", Clamp: &ClampConfig{DynamicMax: "-Cap"}},
			}},
			wantErr: ErrInvalidConfig,
			msg:     `dynamic max "-Cap" is not defined`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}

	valid := moveSpeedConfig()
	assert.NoError(t, valid.Validate())
}

func TestClampConfig_Multiplier(t *testing.T) {
	assert.Equal(t, 1.0, (&ClampConfig{}).Multiplier())
	assert.Equal(t, 2.5, (&ClampConfig{DynamicMaxMultiplier: 2.5}).Multiplier())
}
