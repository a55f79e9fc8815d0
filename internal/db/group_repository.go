package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/statgraph/internal/group"
)

// GroupRepository stores property groups in PostgreSQL.
type GroupRepository struct {
	db *pgxpool.Pool
}

var _ GroupStore = (*GroupRepository)(nil)

// NewGroupRepository creates a new GroupRepository.
func NewGroupRepository(db *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{db: db}
}

// SaveGroup replaces the stored definition of cfg.Name in one transaction.
func (r *GroupRepository) SaveGroup(ctx context.Context, cfg *group.Config) (bool, error) {
	sum, err := prepareSave(cfg)
	if err != nil {
		return false, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		// Rollback after commit is expected to fail.
		_ = tx.Rollback(ctx)
	}()

	var stored string
	err = tx.QueryRow(ctx,
		`SELECT checksum FROM property_groups WHERE name = $1 FOR UPDATE`, cfg.Name,
	).Scan(&stored)
	switch {
	case err == nil && stored == sum:
		return false, nil
	case err != nil && !errors.Is(err, pgx.ErrNoRows):
		return false, fmt.Errorf("querying group %q: %w", cfg.Name, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO property_groups (name, preset, base, checksum, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name)
		DO UPDATE SET preset = $2, base = $3, checksum = $4, updated_at = $5
	`, cfg.Name, cfg.Preset, cfg.Base, sum, time.Now().UnixMilli()); err != nil {
		return false, fmt.Errorf("upserting group %q: %w", cfg.Name, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM property_nodes WHERE group_name = $1`, cfg.Name); err != nil {
		return false, fmt.Errorf("deleting nodes of group %q: %w", cfg.Name, err)
	}

	batch := &pgx.Batch{}
	for i, n := range cfg.Nodes {
		row, err := toRow(n)
		if err != nil {
			return false, err
		}
		batch.Queue(`
			INSERT INTO property_nodes (
				group_name, position, suffix, computed, base_value, formula, dependencies,
				parent, has_clamp, clamp_min, clamp_max, dynamic_max, dynamic_max_multiplier
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, cfg.Name, i, row.Suffix, row.Computed, row.BaseValue, row.Formula, row.Dependencies,
			row.Parent, row.HasClamp, row.ClampMin, row.ClampMax, row.DynamicMax, row.DynamicMaxMultiplier)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return false, fmt.Errorf("inserting nodes of group %q: %w", cfg.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing group save: %w", err)
	}
	return true, nil
}

// LoadGroup loads a single group definition.
func (r *GroupRepository) LoadGroup(ctx context.Context, name string) (*group.Config, error) {
	cfg := group.Config{Name: name}
	err := r.db.QueryRow(ctx,
		`SELECT preset, base FROM property_groups WHERE name = $1`, name,
	).Scan(&cfg.Preset, &cfg.Base)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("loading group %q: %w", name, ErrGroupNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying group %q: %w", name, err)
	}

	nodes, err := r.loadNodes(ctx, name)
	if err != nil {
		return nil, err
	}
	cfg.Nodes = nodes
	return &cfg, nil
}

func (r *GroupRepository) loadNodes(ctx context.Context, name string) ([]group.NodeConfig, error) {
	rows, err := r.db.Query(ctx, `
		SELECT suffix, computed, base_value, formula, dependencies, parent,
		       has_clamp, clamp_min, clamp_max, dynamic_max, dynamic_max_multiplier
		FROM property_nodes
		WHERE group_name = $1
		ORDER BY position
	`, name)
	if err != nil {
		return nil, fmt.Errorf("querying nodes of group %q: %w", name, err)
	}
	defer rows.Close()

	var nodes []group.NodeConfig
	for rows.Next() {
		var row nodeRow
		if err := rows.Scan(&row.Suffix, &row.Computed, &row.BaseValue, &row.Formula, &row.Dependencies,
			&row.Parent, &row.HasClamp, &row.ClampMin, &row.ClampMax, &row.DynamicMax, &row.DynamicMaxMultiplier,
		); err != nil {
			return nil, fmt.Errorf("scanning node row: %w", err)
		}
		n, err := row.config()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating node rows: %w", err)
	}
	return nodes, nil
}

// LoadGroups loads every stored group ordered by name.
func (r *GroupRepository) LoadGroups(ctx context.Context) ([]group.Config, error) {
	rows, err := r.db.Query(ctx, `SELECT name FROM property_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning group names: %w", err)
	}

	groups := make([]group.Config, 0, len(names))
	for _, name := range names {
		cfg, err := r.LoadGroup(ctx, name)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *cfg)
	}
	return groups, nil
}

// DeleteGroup removes a group and its nodes.
func (r *GroupRepository) DeleteGroup(ctx context.Context, name string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM property_groups WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("deleting group %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting group %q: %w", name, ErrGroupNotFound)
	}
	return nil
}
