package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/victornm/turntally/internal/leaderboard"
	"github.com/victornm/turntally/internal/server"
	"github.com/victornm/turntally/internal/stats"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(statsCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and gRPC servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)

		s, err := server.Init(cfg)
		if err != nil {
			return fmt.Errorf("init server: %w", err)
		}

		go s.Start()

		<-shutdown
		s.Shutdown()
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending store migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		infra, err := server.Connect(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer infra.Close()

		slog.InfoContext(cmd.Context(), "migrate: store is up to date", "driver", cfg.Store.Driver)
		return nil
	},
}

var leaderboardCmd = &cobra.Command{
	Use:       "leaderboard [category]",
	Short:     "Print one leaderboard, or list the categories",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: categoryKeys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		defer w.Flush()

		if len(args) == 0 {
			for _, c := range leaderboard.Categories {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.Key, c.Label, c.Description)
			}
			return nil
		}

		if _, ok := leaderboard.Lookup(args[0]); !ok {
			return fmt.Errorf("unknown category %q", args[0])
		}

		infra, err := server.Connect(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer infra.Close()

		players, err := infra.Store.Players(cmd.Context())
		if err != nil {
			return err
		}

		for _, e := range leaderboard.Build(players, time.Now())[args[0]] {
			fmt.Fprintf(w, "%d\t%s %s\t%g\n", e.Rank, e.PlayerAvatar, e.PlayerName, e.Value)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print overall play statistics as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		infra, err := server.Connect(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer infra.Close()

		o, err := stats.NewService(stats.Config{Store: infra.Store}).Overview(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(o)
	},
}

func categoryKeys() []string {
	keys := make([]string, 0, len(leaderboard.Categories))
	for _, c := range leaderboard.Categories {
		keys = append(keys, c.Key)
	}
	return keys
}
