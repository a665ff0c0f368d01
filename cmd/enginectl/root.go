package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ai-plugin-engine/internal/bootstrap"
	"ai-plugin-engine/internal/config"
	"ai-plugin-engine/internal/pkg/logger"
	"ai-plugin-engine/pkg/database"
	"ai-plugin-engine/pkg/stream"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	verbose    bool
	streamFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "enginectl",
	Short: "Operate the plugin reasoning engine",
	Long: `enginectl runs engine operations directly against the configured
database and model providers, without going through the HTTP API.

Configuration is read from .env and the environment, like the server.`,
	SilenceUsage: true,
}

// Execute runs the root command. Ctrl-C cancels the running operation.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log engine activity to stderr and the log file")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(deleteChunksCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(collaborateCmd)
}

func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		return nil, fmt.Errorf("DB_CONNECTION_STRING is not set")
	}
	return cfg, nil
}

// setup builds the same dependency graph as the server.
func setup() (*bootstrap.Container, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	var log logger.ILogger = logger.NewNopLogger()
	if verbose {
		log = logger.NewZapLogger(cfg.App.LogFilePath, false)
	}

	db, err := database.NewGormDB(database.GormConfig{
		DSN:          cfg.Database.Connection,
		MaxOpenConns: 5,
		LogSQL:       verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return bootstrap.NewContainer(db, cfg, log)
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// printStream runs fn and prints each event as one JSON line. It returns
// the run's error after the terminal event was printed.
func printStream(ctx context.Context, fn func(ctx context.Context, sink stream.Sink) error) error {
	sink := stream.NewChannelSink(8)
	var runErr error
	stream.Run(ctx, sink, func(ctx context.Context, s stream.Sink) error {
		runErr = fn(ctx, s)
		return runErr
	})
	for ev := range sink.Events() {
		line, err := stream.Encode(ev)
		if err != nil {
			return err
		}
		fmt.Println(string(line))
	}
	return runErr
}
