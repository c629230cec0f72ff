package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"goalsplit-backend/internal/config"
	"goalsplit-backend/internal/db"
	"goalsplit-backend/internal/logging"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "api",
	Short: "Goal decomposition backend",
	Long: `Breaks a free-text goal into concrete sub-goals using external chat
models with an offline heuristic fallback, and stores every decomposition
per user so sub-goals can be edited, scheduled and completed later.

Configuration comes from the environment (a .env file is read when present)
and optionally from a YAML/TOML/JSON file given with --config.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file (env vars still take precedence)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(decomposeCmd)
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat), nil
}

func openDB(cfg *config.Config, log *slog.Logger) (*db.DB, error) {
	database, err := db.Connect(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.DBDriver, err)
	}
	log.Info("database connected", "driver", cfg.DBDriver)
	return database, nil
}
