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
	"github.com/abdulrahman305/qenex-defi-sub000/internal/engine"
	"github.com/abdulrahman305/qenex-defi-sub000/internal/replay"
	"github.com/abdulrahman305/qenex-defi-sub000/internal/storage"
	"github.com/abdulrahman305/qenex-defi-sub000/internal/storage/postgres"
)

func runRun(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadRun(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Ops == "" {
		return fmt.Errorf("ops path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("out path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engCfg := engine.Config{
		FeeRateCeilingBps: cfg.FeeCeilingBps,
		Logger:            logger,
	}

	var store *postgres.Store
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN, logger)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		engCfg.Sink = store
	}

	eng := engine.New(engCfg)

	if store != nil {
		pools, err := store.LoadPools(ctx)
		if err != nil {
			return err
		}
		positions, err := store.LoadPositions(ctx)
		if err != nil {
			return err
		}
		lastSeq, err := store.LoadLastSeq(ctx)
		if err != nil {
			return err
		}
		if err := eng.Restore(pools, positions, lastSeq); err != nil {
			return fmt.Errorf("restore state: %w", err)
		}
		if len(pools) > 0 || lastSeq > 0 {
			logger.Info("state restored",
				zap.Int("pools", len(pools)),
				zap.Int("positions", len(positions)),
				zap.Uint64("last_seq", lastSeq))
		}
	}

	var errSink storage.ErrorSink
	if cfg.Errors != "" {
		errSink = storage.NewJsonlErrorLog(cfg.Errors)
	}

	runner, err := replay.NewRunner(replay.RunConfig{
		OpsPath:        cfg.Ops,
		CheckpointPath: cfg.Checkpoint,
	}, eng, storage.NewJsonlJournal(cfg.Out), errSink, logger)
	if err != nil {
		return err
	}

	logger.Info("replay start",
		zap.String("ops", cfg.Ops),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
		zap.String("checkpoint", cfg.Checkpoint),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Uint16("fee_ceiling_bps", cfg.FeeCeilingBps),
	)

	return runner.Run(ctx)
}
