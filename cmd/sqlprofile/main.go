package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "sqlprofile",
		Short: "Profile captured SQL statements",
		Long: `sqlprofile groups captured SQL statements by their normalized text and ranks
the groups by total or execution count, so that repeated (N+1) and expensive
queries stand out.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(debug)
		},
	}
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging (also DEBUG env var)")

	cmd.AddCommand(
		analyzeCmd(),
		serveCmd(),
		explainCmd(),
		demoCmd(),
	)
	return cmd
}

func setupLogging(debug bool) {
	logLevel := slog.LevelInfo
	if debug || os.Getenv("DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}
