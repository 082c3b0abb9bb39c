package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"priceRegistry/internal/host"
	"priceRegistry/internal/model"
	"priceRegistry/internal/storage"
)

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	ChainID           uint64
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	// Clock stamps ops without an explicit timestamp.
	Clock func() time.Time
}

// StateSink persists host snapshots after every batch.
type StateSink interface {
	SaveSnapshot(ctx context.Context, runID uuid.UUID, state model.HostState) error
}

// Summary reports what a run did.
type Summary struct {
	RunID    uuid.UUID
	Applied  int
	Reverted int
	Logs     int
	LastOp   uint64
	// State is the host snapshot after LastOp.
	State model.HostState
}

// Runner applies an operations stream to a host and writes the emitted logs to storage.
type Runner struct {
	cfg        RunConfig
	storage    storage.Storage
	state      StateSink
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies. stateSink may be nil.
func NewRunner(cfg RunConfig, storageSink storage.Storage, stateSink StateSink, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Runner{
		cfg:        cfg,
		storage:    storageSink,
		state:      stateSink,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run replays every op of input not covered by the checkpoint.
func (r *Runner) Run(ctx context.Context, input io.Reader) (Summary, error) {
	if r.storage == nil {
		return Summary{}, fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return Summary{}, fmt.Errorf("batch size must be greater than zero")
	}

	ops, err := ReadOps(input)
	if err != nil {
		return Summary{}, err
	}

	h, from, runID, err := r.resume()
	if err != nil {
		return Summary{}, err
	}
	// checkpoints are only written after a batch, so from == 1 means a new run
	if from == 1 {
		if err := r.resetStorage(ctx); err != nil {
			return Summary{}, err
		}
	}
	summary := Summary{RunID: runID, LastOp: from - 1}

	total := uint64(len(ops))
	if from > total {
		summary.State = h.Snapshot()
		r.logger.Info("nothing to replay", zap.Uint64("from", from), zap.Uint64("ops", total))
		return summary, nil
	}

	ranges, err := SplitRange(from, total, r.cfg.BatchSize)
	if err != nil {
		return summary, err
	}

	for _, opRange := range ranges {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		records := make([]model.LogRecord, 0)
		for n := opRange.From; n <= opRange.To; n++ {
			receipt, err := apply(h, ops[n-1])
			if errors.Is(err, ErrInvalidOp) {
				return summary, fmt.Errorf("op %d: %w", n, err)
			}
			if err != nil {
				summary.Reverted++
				r.logger.Warn("op reverted",
					zap.Uint64("op", n),
					zap.String("method", receipt.Method),
					zap.String("to", receipt.To.Hex()),
					zap.Error(err),
				)
				continue
			}
			summary.Applied++
			records = append(records, receipt.Logs...)
		}

		if err := r.putLogsWithRetry(ctx, records); err != nil {
			return summary, fmt.Errorf("store logs: %w", err)
		}

		snapshot := h.Snapshot()
		if r.state != nil {
			if err := r.saveSnapshotWithRetry(ctx, runID, snapshot); err != nil {
				return summary, fmt.Errorf("store snapshot: %w", err)
			}
		}
		if err := r.checkpoint.Save(Checkpoint{
			LastProcessedOp: opRange.To,
			RunID:           runID.String(),
			State:           snapshot,
		}); err != nil {
			return summary, err
		}

		summary.Logs += len(records)
		summary.LastOp = opRange.To
		summary.State = snapshot
		r.logger.Info("batch complete",
			zap.Int("logs", len(records)),
			zap.Uint64("from", opRange.From),
			zap.Uint64("to", opRange.To),
			zap.Uint64("block", snapshot.BlockNumber),
		)
	}

	return summary, nil
}

// resume restores the host from the checkpoint, or starts a fresh one.
func (r *Runner) resume() (*host.Host, uint64, uuid.UUID, error) {
	hostCfg := host.Config{ChainID: r.cfg.ChainID, Clock: r.cfg.Clock, Logger: r.logger}

	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return nil, 0, uuid.Nil, err
	}
	if !ok {
		h, err := host.New(hostCfg)
		if err != nil {
			return nil, 0, uuid.Nil, err
		}
		return h, 1, uuid.New(), nil
	}

	if cp.State.ChainID != r.cfg.ChainID {
		return nil, 0, uuid.Nil, fmt.Errorf("checkpoint chain id %d does not match %d", cp.State.ChainID, r.cfg.ChainID)
	}
	runID, err := uuid.Parse(cp.RunID)
	if err != nil {
		return nil, 0, uuid.Nil, fmt.Errorf("checkpoint run id: %w", err)
	}
	h, err := host.Restore(cp.State, hostCfg)
	if err != nil {
		return nil, 0, uuid.Nil, fmt.Errorf("restore checkpoint: %w", err)
	}
	r.logger.Info("resume from checkpoint",
		zap.Uint64("last_processed", cp.LastProcessedOp),
		zap.String("run_id", cp.RunID),
	)
	return h, cp.LastProcessedOp + 1, runID, nil
}

// resetStorage clears sinks that keep output of earlier runs, so a fresh run does not
// write its logs after theirs.
func (r *Runner) resetStorage(ctx context.Context) error {
	resetter, ok := r.storage.(storage.Resetter)
	if !ok {
		return nil
	}
	if err := resetter.Reset(ctx); err != nil {
		return fmt.Errorf("reset storage: %w", err)
	}
	r.logger.Info("storage reset for new run")
	return nil
}

func apply(h *host.Host, op Op) (host.Receipt, error) {
	if op.IsDeploy() {
		from, args, err := op.DeployArgs()
		if err != nil {
			return host.Receipt{}, err
		}
		return h.Deploy(from, args)
	}
	tx, err := op.Tx()
	if err != nil {
		return host.Receipt{}, err
	}
	return h.Call(tx)
}

func (r *Runner) putLogsWithRetry(ctx context.Context, records []model.LogRecord) error {
	return withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, r.retryLogger("store logs"), func(ctx context.Context) error {
		return r.storage.PutLogBatch(ctx, records)
	})
}

func (r *Runner) saveSnapshotWithRetry(ctx context.Context, runID uuid.UUID, snapshot model.HostState) error {
	return withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, r.retryLogger("store snapshot"), func(ctx context.Context) error {
		return r.state.SaveSnapshot(ctx, runID, snapshot)
	})
}

func (r *Runner) retryLogger(operation string) func(int, error) {
	return func(attempt int, err error) {
		r.logger.Warn(operation+" failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
	}
}
