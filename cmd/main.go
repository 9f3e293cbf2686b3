package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/victornm/turntally/internal/config"
	"github.com/victornm/turntally/internal/server"
	"github.com/victornm/turntally/internal/telemetry"
)

var (
	configPath string
	envFile    string

	cfg server.Config
)

var rootCmd = &cobra.Command{
	Use:   "turntally",
	Short: "Turn timer and play statistics for board game sessions",
	Long: `TurnTally times each player's turn during a board game, flags turns that run
long, and keeps per-player history, statistics and leaderboards.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnv(envFile); err != nil {
			return err
		}

		c, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		return telemetry.SetupLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "Path to the config file (defaults to $CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional .env file to load before reading config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "turntally: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (server.Config, error) {
	c := server.DefaultConfig()

	if configPath == "" {
		return c, fmt.Errorf("no config file, set --config or CONFIG_PATH")
	}

	if err := config.Load(configPath, &c); err != nil {
		return c, err
	}

	return c, nil
}
