package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"priceRegistry/internal/replay"
	"priceRegistry/internal/storage/postgres"
)

type statusReport struct {
	Source          string `json:"source"`
	LastProcessedOp uint64 `json:"last_processed_op"`
	RunID           string `json:"run_id"`
	BlockNumber     uint64 `json:"block_number"`
	Feeds           int    `json:"feeds"`
	Factories       int    `json:"factories"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	checkpointPath, _ := cmd.Flags().GetString("checkpoint")
	dsn, _ := cmd.Flags().GetString("pg-dsn")
	stateName, _ := cmd.Flags().GetString("state-name")
	logLevel, _ := cmd.Flags().GetString("log-level")

	logger, err := newLogger(logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var report statusReport
	if dsn != "" {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		store, err := postgres.NewStore(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()

		progress, ok, err := store.LoadState(ctx, stateName)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no replay state named %q", stateName)
		}
		report = statusReport{
			Source:          "postgres",
			LastProcessedOp: progress.LastProcessedOp,
			RunID:           progress.RunID.String(),
			BlockNumber:     progress.State.BlockNumber,
			Feeds:           len(progress.State.Feeds),
			Factories:       len(progress.State.Factories),
		}
	} else {
		cp, ok, err := replay.NewCheckpointStore(checkpointPath, true).Load()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no checkpoint at %s", checkpointPath)
		}
		report = statusReport{
			Source:          checkpointPath,
			LastProcessedOp: cp.LastProcessedOp,
			RunID:           cp.RunID,
			BlockNumber:     cp.State.BlockNumber,
			Feeds:           len(cp.State.Feeds),
			Factories:       len(cp.State.Factories),
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
