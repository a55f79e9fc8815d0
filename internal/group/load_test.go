package group

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const moveSpeedYAML = `
groups:
  - name: MoveSpeed
    nodes:
      - suffix: -Value-Config
        base_value: 100
        parent: -Value
      - suffix: -Value-Buff
        parent: -Value
      - suffix: -Value
        computed: true
        formula: sum
        dependencies: [-Value-Config, -Value-Buff]
        clamp:
          min: 0
          dynamic_max: -Value-Config
          dynamic_max_multiplier: 2
  - name: Crit
    preset: percent
    base: 5
`

const attackHCL = `
group "Attack" {
  node "-Base" {
    base_value = 40
  }
  node "-Buff" {}
  node "" {
    computed     = true
    formula      = "sum"
    dependencies = ["-Base", "-Buff"]
    clamp {
      min = 0
      max = 999
    }
  }
}

group "Level" {
  preset = "single"
  base   = 3
}
`

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestParse_YAML(t *testing.T) {
	groups, err := Parse("stats.yaml", []byte(moveSpeedYAML))
	require.NoError(t, err)
	require.Len(t, groups, 2)

	ms := groups[0]
	assert.Equal(t, "MoveSpeed", ms.Name)
	require.Len(t, ms.Nodes, 3)
	assert.Equal(t, 100.0, ms.Nodes[0].BaseValue)
	assert.Equal(t, FormulaSum, ms.Nodes[2].Formula)
	require.NotNil(t, ms.Nodes[2].Clamp)
	assert.Equal(t, "-Value-Config", ms.Nodes[2].Clamp.DynamicMax)
	assert.Equal(t, 2.0, ms.Nodes[2].Clamp.Multiplier())

	assert.Equal(t, "percent", groups[1].Preset)
	assert.Equal(t, 5.0, groups[1].Base)
}

func TestParse_HCL(t *testing.T) {
	groups, err := Parse("stats.hcl", []byte(attackHCL))
	require.NoError(t, err)
	require.Len(t, groups, 2)

	attack := groups[0]
	assert.Equal(t, "Attack", attack.Name)
	require.Len(t, attack.Nodes, 3)
	assert.Equal(t, "-Base", attack.Nodes[0].Suffix)
	assert.Equal(t, 40.0, attack.Nodes[0].BaseValue)
	assert.Equal(t, "", attack.Nodes[2].Suffix)
	assert.True(t, attack.Nodes[2].Computed)
	assert.Equal(t, []string{"-Base", "-Buff"}, attack.Nodes[2].Dependencies)
	require.NotNil(t, attack.Nodes[2].Clamp)
	assert.Equal(t, 999.0, attack.Nodes[2].Clamp.Max)
	assert.Nil(t, attack.Nodes[0].Clamp)

	assert.Equal(t, "single", groups[1].Preset)

	h, _ := newTestHandler(t)
	for i := range groups {
		require.NoError(t, Apply(h, &groups[i], nil))
	}
	assert.Equal(t, 40.0, lookup(t, h, "Attack").Value())
	assert.Equal(t, 3.0, lookup(t, h, "Level").Value())
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("stats.json", []byte(`{}`))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Parse("bad.yaml", []byte("groups: [\n"))
	assert.Error(t, err)

	_, err = Parse("bad.hcl", []byte(`group "X" {`))
	assert.Error(t, err)

	_, err = Parse("invalid.yaml", []byte("groups:\n  - name: X\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_move.yaml", moveSpeedYAML)
	writeFile(t, dir, "nested/b_attack.hcl", attackHCL)
	writeFile(t, dir, "README.md", "ignored")

	groups, err := LoadDir(context.Background(), dir)
	require.NoError(t, err)

	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	assert.Equal(t, []string{"MoveSpeed", "Crit", "Attack", "Level"}, names)
}

func TestLoadDir_DuplicateGroup(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.yaml", moveSpeedYAML)
	writeFile(t, dir, "two.yml", moveSpeedYAML)

	_, err := LoadDir(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), `group "MoveSpeed" defined in`)
}

func TestLoadDir_CanceledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", moveSpeedYAML)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := LoadDir(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsGroupFile(t *testing.T) {
	assert.True(t, IsGroupFile("a.YAML"))
	assert.True(t, IsGroupFile("a.yml"))
	assert.True(t, IsGroupFile("dir/a.hcl"))
	assert.False(t, IsGroupFile("a.json"))
}
