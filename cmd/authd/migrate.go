package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/nexaerp/authd/internal/config"
	"github.com/nexaerp/authd/internal/observability/logger"
	migrations "github.com/nexaerp/authd/migrations/postgres"
)

// newMigrateCmd aplica las migraciones embebidas.
// Uso: authd migrate [up|down] [steps]
func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down] [steps]",
		Short: "Aplica las migraciones del esquema (embebidas en el binario)",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			steps := 0
			if len(args) >= 1 && args[0] != "" {
				action = strings.ToLower(args[0])
			}
			if len(args) >= 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n <= 0 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[1])
				}
				steps = n
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("config load: %w", err)
			}
			logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
			defer logger.Sync()

			if cfg.Storage.Driver != "postgres" {
				return fmt.Errorf("migrate requires the postgres storage driver, got %q", cfg.Storage.Driver)
			}

			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
			if err != nil {
				return fmt.Errorf("pgxpool: %w", err)
			}
			defer pool.Close()

			switch action {
			case "up":
				return runMigrations(ctx, pool, "_up.sql", false, steps)
			case "down":
				return runMigrations(ctx, pool, "_down.sql", true, steps)
			default:
				return fmt.Errorf("unknown action %q. Use: up | down [steps]", action)
			}
		},
	}
}

// migrateUp aplica todas las migraciones pendientes. Lo usa `serve`
// cuando FLAGS_MIGRATE está activo.
func migrateUp(ctx context.Context, cfg *config.Config) error {
	pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("pgxpool: %w", err)
	}
	defer pool.Close()
	return runMigrations(ctx, pool, "_up.sql", false, 0)
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool, suffix string, reverse bool, steps int) error {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), suffix) {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		logger.L().Info("no migrations to apply")
		return nil
	}
	sort.Strings(files)
	if reverse {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}
	if steps > 0 && steps < len(files) {
		files = files[:steps]
	}

	logger.L().Info("applying migrations", logger.Count(len(files)))
	for _, name := range files {
		sql, err := migrations.FS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		start := time.Now()
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("exec %s: %w", name, err)
		}
		logger.L().Info("migration applied",
			logger.String("file", name),
			logger.DurationMs(time.Since(start).Milliseconds()),
		)
	}
	return nil
}
