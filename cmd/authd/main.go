package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nexaerp/authd/internal/app"
	"github.com/nexaerp/authd/internal/config"
	httpserver "github.com/nexaerp/authd/internal/http"
	"github.com/nexaerp/authd/internal/observability/logger"
)

func main() {
	// .env es opcional: en producción todo llega por el entorno real.
	_ = godotenv.Load()

	var configPath string

	root := &cobra.Command{
		Use:   "authd",
		Short: "Servicio de autenticación y autorización multi-tenant de NexaERP",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path al YAML de configuración")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config load: %w", err)
			}
			logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// FLAGS_MIGRATE=true aplica las migraciones pendientes antes
			// de levantar el servidor (útil en despliegues de un solo nodo).
			if cfg.Flags.Migrate && cfg.Storage.Driver == "postgres" {
				if err := migrateUp(ctx, cfg); err != nil {
					return fmt.Errorf("startup migrations: %w", err)
				}
			}

			application, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			logger.L().Info("authd starting",
				logger.String("guard", application.Guard.Name()),
				logger.String("storage", cfg.Storage.Driver),
				logger.String("cache", cfg.Cache.Kind),
			)

			srv := httpserver.NewServer(cfg.Server.Addr, application.Handler,
				config.Dur(cfg.Server.ShutdownTimeout, 15*time.Second))
			return srv.Run(ctx)
		},
	}

	root.AddCommand(serveCmd)
	root.AddCommand(newMigrateCmd(&configPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
