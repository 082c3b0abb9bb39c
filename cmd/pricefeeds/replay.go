package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"priceRegistry/internal/config"
	"priceRegistry/internal/replay"
	"priceRegistry/internal/storage"
	"priceRegistry/internal/storage/postgres"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	sinks := storage.Multi{storage.NewJsonlStorage(cfg.Out)}
	var (
		store     *postgres.Store
		stateSink replay.StateSink
	)
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, store)
		stateSink = store
	}

	runner := replay.NewRunner(replay.RunConfig{
		ChainID:           cfg.ChainID,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, sinks, stateSink, logger)

	logger.Info("replay start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.Uint64("chain_id", cfg.ChainID),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	summary, err := runner.Run(ctx, inputFile)
	if err != nil {
		return err
	}

	if store != nil {
		if err := store.SaveState(ctx, cfg.StateName, postgres.Progress{
			LastProcessedOp: summary.LastOp,
			RunID:           summary.RunID,
			State:           summary.State,
		}); err != nil {
			return fmt.Errorf("save replay state: %w", err)
		}
	}

	logger.Info("replay complete",
		zap.String("run_id", summary.RunID.String()),
		zap.Int("applied", summary.Applied),
		zap.Int("reverted", summary.Reverted),
		zap.Int("logs", summary.Logs),
		zap.Uint64("last_op", summary.LastOp),
	)
	return nil
}
