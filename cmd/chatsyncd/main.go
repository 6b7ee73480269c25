// Command chatsyncd runs the Discord chat-sync bridge: the gateway
// consumer, the outbound fan-out worker, and the periodic backfill sweep.
package main

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	migrations "github.com/memohai/chatsync/db"
	"github.com/memohai/chatsync/cmd/chatsyncd/modules"
	"github.com/memohai/chatsync/internal/config"
	"github.com/memohai/chatsync/internal/db"
	"github.com/memohai/chatsync/internal/logger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "chatsyncd",
		Short: "Discord chat-sync bridge",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml (default: config.toml)")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if configPath != "" {
			os.Setenv("CHATSYNC_CONFIG_PATH", configPath)
		}
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the gateway consumer, fan-out worker, backfill sweep, and health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			fx.New(
				modules.InfraModule,
				modules.SyncModule,
				modules.GatewayModule,
				modules.SchedulerModule,
				modules.HealthModule,
			).Run()
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	var command string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply or roll back database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := os.Getenv("CHATSYNC_CONFIG_PATH")
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.Init(cfg.Log.Level, cfg.Log.Format)

			migrationsFS, err := fs.Sub(migrations.MigrationsFS, "migrations")
			if err != nil {
				return fmt.Errorf("migrations fs: %w", err)
			}
			return db.RunMigrate(logger.L, cfg.Postgres, migrationsFS, command, args)
		},
	}
	cmd.Flags().StringVar(&command, "command", "up", "migrate command: up, down, version, force")
	return cmd
}
