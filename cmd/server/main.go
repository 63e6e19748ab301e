package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configEnv string

var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "Media server orchestration core",
	Long:  `Conductor hosts media rooms on a cluster of nodes, placing each new room on the least loaded node and supervising the rooms it hosts.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context(), configEnv)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the room coordinator",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context(), configEnv)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configEnv, "env", "", "config environment, selects config/config.<env>.yaml (default $CONFIG_ENV or dev)")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	rootCmd.SilenceUsage = true
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("conductor failed")
		os.Exit(1)
	}
}
