package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/statgraph/internal/arith"
	"github.com/udisondev/statgraph/internal/config"
	"github.com/udisondev/statgraph/internal/db"
	"github.com/udisondev/statgraph/internal/group"
	"github.com/udisondev/statgraph/internal/model"
)

const DefaultConfigPath = "config/statgraph.yaml"

func main() {
	cfgPath := flag.String("config", DefaultConfigPath, "path to the YAML config")
	importGroups := flag.Bool("import", false, "save group files into the configured store")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, *cfgPath, *importGroups, os.Stdout); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string, importGroups bool, out io.Writer) error {
	if p := os.Getenv("STATGRAPH_CONFIG"); p != "" && cfgPath == DefaultConfigPath {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("statgraph starting", "log_level", cfg.LogLevel, "store", cfg.Store.Driver)

	fileGroups, err := loadFileGroups(ctx, cfg.GroupsDir)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	groups := fileGroups
	if store != nil {
		if importGroups {
			if err := importFileGroups(ctx, store, fileGroups); err != nil {
				return err
			}
		}
		stored, err := store.LoadGroups(ctx)
		if err != nil {
			return fmt.Errorf("loading stored groups: %w", err)
		}
		groups = mergeGroups(stored, fileGroups)
	} else if importGroups {
		slog.Warn("import requested but no store is configured")
	}
	slog.Info("groups ready", "count", len(groups))

	chars, err := buildCharacters(ctx, cfg.Owners, groups)
	if err != nil {
		return err
	}
	for _, c := range chars {
		printStats(out, c)
	}
	return nil
}

func loadFileGroups(ctx context.Context, dir string) ([]group.Config, error) {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Warn("groups dir not found", "dir", dir)
		return nil, nil
	}
	groups, err := group.LoadDir(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("loading group files: %w", err)
	}
	slog.Info("group files loaded", "dir", dir, "groups", len(groups))
	return groups, nil
}

// openStore returns nil when the driver is "none".
func openStore(ctx context.Context, cfg config.StoreConfig) (db.GroupStore, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		dsn := cfg.Database.DSN()
		if err := db.RunMigrations(ctx, dsn); err != nil {
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		database, err := db.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		slog.Info("database connected")
		return database.Groups(), database.Close, nil

	case config.DriverSQLite:
		repo, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("sqlite store opened", "path", cfg.SQLitePath)
		return repo, func() { _ = repo.Close() }, nil
	}
	return nil, func() {}, nil
}

func importFileGroups(ctx context.Context, store db.GroupStore, groups []group.Config) error {
	for i := range groups {
		saved, err := store.SaveGroup(ctx, &groups[i])
		if err != nil {
			return fmt.Errorf("importing group %q: %w", groups[i].Name, err)
		}
		slog.Info("group imported", "group", groups[i].Name, "changed", saved)
	}
	return nil
}

// mergeGroups returns stored groups with file groups of the same name
// replacing them; file-only groups are appended.
func mergeGroups(stored, files []group.Config) []group.Config {
	out := slices.Clone(stored)
	for _, f := range files {
		i := slices.IndexFunc(out, func(g group.Config) bool { return g.Name == f.Name })
		if i >= 0 {
			out[i] = f
			continue
		}
		out = append(out, f)
	}
	return out
}

// selectGroups picks groups by name; no names selects all.
func selectGroups(all []group.Config, names []string) ([]group.Config, error) {
	if len(names) == 0 {
		return all, nil
	}
	out := make([]group.Config, 0, len(names))
	for _, name := range names {
		i := slices.IndexFunc(all, func(g group.Config) bool { return g.Name == name })
		if i < 0 {
			return nil, fmt.Errorf("group %q is not defined", name)
		}
		out = append(out, all[i])
	}
	return out, nil
}

// buildCharacters builds every owner in parallel. Owners share only the
// arithmetic registry.
func buildCharacters(ctx context.Context, owners []config.OwnerConfig, groups []group.Config) ([]*model.Character, error) {
	if len(owners) == 0 {
		owners = []config.OwnerConfig{{ID: 1, Name: "default"}}
	}

	reg := arith.NewRegistry()
	chars := make([]*model.Character, len(owners))

	g, gctx := errgroup.WithContext(ctx)
	for i, o := range owners {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			selected, err := selectGroups(groups, o.Groups)
			if err != nil {
				return fmt.Errorf("owner %q: %w", o.Name, err)
			}
			c, err := model.NewCharacter(reg, slog.Default(), o.ID, o.Name, selected, o.Overrides)
			if err != nil {
				return err
			}
			chars[i] = c
			slog.Debug("character built", "name", o.Name, "stats", len(c.StatNames()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return chars, nil
}

func printStats(w io.Writer, c *model.Character) {
	fmt.Fprintf(w, "%s (#%d)\n", c.Name(), c.ObjectID())
	stats := c.Stats()
	for _, name := range c.StatNames() {
		if v, ok := stats[name]; ok {
			fmt.Fprintf(w, "  %-32s %g\n", name, v)
		}
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
