package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/udisondev/statgraph/internal/group"
)

// SQLiteGroupRepository stores property groups in a SQLite file.
type SQLiteGroupRepository struct {
	sqlDB *sql.DB
}

var _ GroupStore = (*SQLiteGroupRepository)(nil)

// OpenSQLite opens (creating if needed) the SQLite database at path and
// applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteGroupRepository, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("pinging sqlite %s: %w", path, err)
	}
	if err := migrate(ctx, sqlDB, goose.DialectSQLite3); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &SQLiteGroupRepository{sqlDB: sqlDB}, nil
}

// Close closes the underlying database.
func (r *SQLiteGroupRepository) Close() error {
	return r.sqlDB.Close()
}

// SaveGroup replaces the stored definition of cfg.Name in one transaction.
func (r *SQLiteGroupRepository) SaveGroup(ctx context.Context, cfg *group.Config) (bool, error) {
	sum, err := prepareSave(cfg)
	if err != nil {
		return false, err
	}

	tx, err := r.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var stored string
	err = tx.QueryRowContext(ctx,
		`SELECT checksum FROM property_groups WHERE name = ?`, cfg.Name,
	).Scan(&stored)
	switch {
	case err == nil && stored == sum:
		return false, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("querying group %q: %w", cfg.Name, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO property_groups (name, preset, base, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name)
		DO UPDATE SET preset = excluded.preset, base = excluded.base,
		              checksum = excluded.checksum, updated_at = excluded.updated_at
	`, cfg.Name, cfg.Preset, cfg.Base, sum, time.Now().UnixMilli()); err != nil {
		return false, fmt.Errorf("upserting group %q: %w", cfg.Name, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM property_nodes WHERE group_name = ?`, cfg.Name); err != nil {
		return false, fmt.Errorf("deleting nodes of group %q: %w", cfg.Name, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO property_nodes (
			group_name, position, suffix, computed, base_value, formula, dependencies,
			parent, has_clamp, clamp_min, clamp_max, dynamic_max, dynamic_max_multiplier
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return false, fmt.Errorf("preparing node insert: %w", err)
	}
	defer stmt.Close()

	for i, n := range cfg.Nodes {
		row, err := toRow(n)
		if err != nil {
			return false, err
		}
		if _, err := stmt.ExecContext(ctx, cfg.Name, i, row.Suffix, row.Computed, row.BaseValue, row.Formula,
			row.Dependencies, row.Parent, row.HasClamp, row.ClampMin, row.ClampMax, row.DynamicMax,
			row.DynamicMaxMultiplier,
		); err != nil {
			return false, fmt.Errorf("inserting node %q of group %q: %w", n.Suffix, cfg.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing group save: %w", err)
	}
	return true, nil
}

// LoadGroup loads a single group definition.
func (r *SQLiteGroupRepository) LoadGroup(ctx context.Context, name string) (*group.Config, error) {
	cfg := group.Config{Name: name}
	err := r.sqlDB.QueryRowContext(ctx,
		`SELECT preset, base FROM property_groups WHERE name = ?`, name,
	).Scan(&cfg.Preset, &cfg.Base)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loading group %q: %w", name, ErrGroupNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying group %q: %w", name, err)
	}

	rows, err := r.sqlDB.QueryContext(ctx, `
		SELECT suffix, computed, base_value, formula, dependencies, parent,
		       has_clamp, clamp_min, clamp_max, dynamic_max, dynamic_max_multiplier
		FROM property_nodes
		WHERE group_name = ?
		ORDER BY position
	`, name)
	if err != nil {
		return nil, fmt.Errorf("querying nodes of group %q: %w", name, err)
	}
	defer rows.Close()

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
		cfg.Nodes = append(cfg.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating node rows: %w", err)
	}
	return &cfg, nil
}

// LoadGroups loads every stored group ordered by name.
func (r *SQLiteGroupRepository) LoadGroups(ctx context.Context) ([]group.Config, error) {
	rows, err := r.sqlDB.QueryContext(ctx, `SELECT name FROM property_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning group name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating group rows: %w", err)
	}
	// Release the single connection before the per-group queries.
	rows.Close()

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
func (r *SQLiteGroupRepository) DeleteGroup(ctx context.Context, name string) error {
	tx, err := r.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM property_nodes WHERE group_name = ?`, name); err != nil {
		return fmt.Errorf("deleting nodes of group %q: %w", name, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM property_groups WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting group %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("deleting group %q: %w", name, ErrGroupNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing group delete: %w", err)
	}
	return nil
}
