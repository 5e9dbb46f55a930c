// Package main provides projindex, which assigns initiative indices to
// Linear projects and records them in a local project database.
//
// Usage:
//
//	LINEAR_API_KEY=lin_api_xxx \
//	INITIATIVES=ENG,OPS \
//	./projindex --config ~/.config/projindex/config.yaml
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projindex/internal/config"
	"github.com/fyrsmithlabs/projindex/internal/indexer"
	"github.com/fyrsmithlabs/projindex/internal/linear"
	"github.com/fyrsmithlabs/projindex/internal/logging"
	"github.com/fyrsmithlabs/projindex/internal/registry"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "projindex",
		Short: "Assign initiative indices to Linear projects",
		Long: `projindex fetches all Linear projects, gives every active project that
starts with a configured initiative code the next free index for that
initiative, renames it to "<CODE>-<###> <title>", and appends the renamed
projects to the project database file.

Projects that already carry an index are left alone, so runs are idempotent.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, configPath, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default ~/.config/projindex/config.yaml)")
	return cmd
}

func run(ctx context.Context, configPath string, out io.Writer) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logCfg, err := logging.FromAppConfig(cfg.Log)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx = logging.WithRunID(ctx, logging.NewRunID())

	logger.Info(ctx, "projindex starting",
		zap.String("version", version),
		zap.Strings("initiatives", cfg.Initiatives),
		zap.String("database", cfg.Database.Path),
	)
	if !cfg.Linear.APIKey.IsSet() {
		logger.Warn(ctx, "linear api key is not set; requests will be rejected")
	}

	client, err := linear.NewClient(ctx, cfg.Linear, logger)
	if err != nil {
		return fmt.Errorf("creating linear client: %w", err)
	}
	defer client.Close()

	store := registry.NewStore(cfg.Database.Path, logger)
	idx := indexer.New(client, store, cfg.Initiatives, logger)

	result, err := idx.Run(ctx)
	if result != nil {
		fmt.Fprintf(out, "renamed %d of %d matching projects (%d fetched, %d failed)\n",
			result.Renamed, result.Matched, result.Fetched, result.Failed)
	}
	return err
}
