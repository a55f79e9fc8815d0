package db

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"

	"github.com/udisondev/statgraph/internal/group"
)

// ErrGroupNotFound is returned when no group with the given name is stored.
var ErrGroupNotFound = errors.New("db: group not found")

// GroupStore persists property group definitions.
type GroupStore interface {
	// SaveGroup stores cfg, replacing any previous definition with the same
	// name. It reports false when the stored checksum already matches.
	SaveGroup(ctx context.Context, cfg *group.Config) (bool, error)
	LoadGroup(ctx context.Context, name string) (*group.Config, error)
	// LoadGroups returns every stored group ordered by name.
	LoadGroups(ctx context.Context) ([]group.Config, error)
	DeleteGroup(ctx context.Context, name string) error
}

// Checksum returns a stable digest of cfg's definition.
func Checksum(cfg *group.Config) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding group %q: %w", cfg.Name, err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// nodeRow is the flattened form of a NodeConfig in property_nodes.
type nodeRow struct {
	Suffix    string
	Computed  bool
	BaseValue float64
	Formula   string
	// Dependencies is a YAML list; "" means none.
	Dependencies         string
	Parent               string
	HasClamp             bool
	ClampMin             float64
	ClampMax             float64
	DynamicMax           string
	DynamicMaxMultiplier float64
}

func toRow(n group.NodeConfig) (nodeRow, error) {
	r := nodeRow{
		Suffix:    n.Suffix,
		Computed:  n.Computed,
		BaseValue: n.BaseValue,
		Formula:   string(n.Formula),
		Parent:    n.Parent,
	}
	if len(n.Dependencies) > 0 {
		deps, err := yaml.Marshal(n.Dependencies)
		if err != nil {
			return r, fmt.Errorf("encoding dependencies of node %q: %w", n.Suffix, err)
		}
		r.Dependencies = string(deps)
	}
	if c := n.Clamp; c != nil {
		r.HasClamp = true
		r.ClampMin = c.Min
		r.ClampMax = c.Max
		r.DynamicMax = c.DynamicMax
		r.DynamicMaxMultiplier = c.DynamicMaxMultiplier
	}
	return r, nil
}

func (r nodeRow) config() (group.NodeConfig, error) {
	n := group.NodeConfig{
		Suffix:    r.Suffix,
		Computed:  r.Computed,
		BaseValue: r.BaseValue,
		Formula:   group.Formula(r.Formula),
		Parent:    r.Parent,
	}
	if r.Dependencies != "" {
		if err := yaml.Unmarshal([]byte(r.Dependencies), &n.Dependencies); err != nil {
			return n, fmt.Errorf("decoding dependencies of node %q: %w", r.Suffix, err)
		}
	}
	if r.HasClamp {
		n.Clamp = &group.ClampConfig{
			Min:                  r.ClampMin,
			Max:                  r.ClampMax,
			DynamicMax:           r.DynamicMax,
			DynamicMaxMultiplier: r.DynamicMaxMultiplier,
		}
	}
	return n, nil
}

// prepareSave validates cfg and computes its checksum.
func prepareSave(cfg *group.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("saving group: %w", err)
	}
	return Checksum(cfg)
}
