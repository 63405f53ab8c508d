package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "ammd",
		Short:        "Constant-product AMM engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Replay an operation log through the engine",
		RunE:  runRun,
	}

	runCmd.Flags().String("ops", "", "input operations JSONL")
	runCmd.Flags().String("out", "./data/events.jsonl", "output events JSONL")
	runCmd.Flags().String("errors", "./data/errors.jsonl", "rejected operations JSONL")
	runCmd.Flags().String("checkpoint", "", "optional checkpoint file path")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	runCmd.Flags().Uint16("fee-ceiling-bps", 10000, "maximum pool fee rate in basis points")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Fold an event log into per-pool metrics",
		RunE:  runStats,
	}

	statsCmd.Flags().String("in", "", "input events JSONL")
	statsCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	statsCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	statsCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	statsCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(statsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
