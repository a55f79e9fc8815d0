package group

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// yamlFile is the top-level layout of a YAML group file.
type yamlFile struct {
	Groups []Config `yaml:"groups"`
}

// hclFile is the top-level layout of an HCL group file:
//
//	group "MoveSpeed" {
//	  node "-Value-Config" {
//	    base_value = 100
//	    parent     = "-Value"
//	  }
//	}
type hclFile struct {
	Groups []Config `hcl:"group,block"`
}

// IsGroupFile reports whether path has an extension LoadFile understands.
func IsGroupFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".hcl":
		return true
	}
	return false
}

// LoadFile reads and validates the groups defined in path.
func LoadFile(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading group file %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes data as YAML or HCL depending on the extension of filename
// and validates every group.
func Parse(filename string, data []byte) ([]Config, error) {
	var groups []Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		var f yamlFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing group file %s: %w", filename, err)
		}
		groups = f.Groups
	case ".hcl":
		file, diags := hclparse.NewParser().ParseHCL(data, filename)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parsing group file %s: %w", filename, diags)
		}
		var f hclFile
		if diags := gohcl.DecodeBody(file.Body, nil, &f); diags.HasErrors() {
			return nil, fmt.Errorf("decoding group file %s: %w", filename, diags)
		}
		groups = f.Groups
	default:
		return nil, fmt.Errorf("%w: unsupported group file %s", ErrInvalidConfig, filename)
	}

	for i := range groups {
		if err := groups[i].Validate(); err != nil {
			return nil, fmt.Errorf("group file %s: %w", filename, err)
		}
	}
	return groups, nil
}

// LoadDir loads every group file under dir, parsing files concurrently.
// Groups are returned ordered by file path, then by position in the file.
// A group name defined twice is an error.
func LoadDir(ctx context.Context, dir string) ([]Config, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsGroupFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking group dir %s: %w", dir, err)
	}
	slices.Sort(paths)

	results := make([][]Config, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			groups, err := LoadFile(path)
			if err != nil {
				return err
			}
			results[i] = groups
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Config
	seen := make(map[string]string)
	for i, groups := range results {
		for _, cfg := range groups {
			if prev, dup := seen[cfg.Name]; dup {
				return nil, fmt.Errorf("%w: group %q defined in %s and %s",
					ErrInvalidConfig, cfg.Name, prev, paths[i])
			}
			seen[cfg.Name] = paths[i]
			out = append(out, cfg)
		}
	}
	return out, nil
}
