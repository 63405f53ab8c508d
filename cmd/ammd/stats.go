package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abdulrahman305/qenex-defi-sub000/internal/config"
	"github.com/abdulrahman305/qenex-defi-sub000/internal/stats"
	"github.com/abdulrahman305/qenex-defi-sub000/internal/storage/postgres"
)

func runStats(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadStats(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		sink       stats.MetricsSink
		stateStore stats.StateStore
	)
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN, logger)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sink = store
		if cfg.StateFile != "" {
			stateStore = &stats.FileStateStore{Path: cfg.StateFile}
		} else {
			stateStore = &stats.DBStateStore{Store: store, Name: "stats"}
		}
	} else {
		// Stdout keeps no metric history to resume from, so every run
		// folds the whole log.
		sink = stats.NewWriterSink(os.Stdout)
		if cfg.StateFile != "" {
			logger.Warn("state-file ignored without pg-dsn")
		}
	}

	collector := stats.NewCollector(stats.Config{
		BatchSize:  cfg.BatchSize,
		StateStore: stateStore,
	}, sink, logger)

	logger.Info("stats start",
		zap.String("input", cfg.Input),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Int("batch_size", cfg.BatchSize),
	)

	return collector.Run(ctx, cfg.Input)
}
