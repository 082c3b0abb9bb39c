package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"priceRegistry/internal/model"
)

// Schema creates every table the store writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS registry_logs (
	chain_id      BIGINT NOT NULL,
	block_number  BIGINT NOT NULL,
	log_index     BIGINT NOT NULL,
	block_hash    TEXT NOT NULL,
	tx_hash       TEXT NOT NULL,
	tx_index      BIGINT NOT NULL,
	address       TEXT NOT NULL,
	topics        TEXT[] NOT NULL,
	data          TEXT NOT NULL,
	block_ts      BIGINT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, block_number, log_index)
);

CREATE TABLE IF NOT EXISTS feed_states (
	chain_id      BIGINT NOT NULL,
	address       TEXT NOT NULL,
	kind          TEXT NOT NULL,
	description   TEXT NOT NULL,
	owner         TEXT NOT NULL,
	admins        TEXT[] NOT NULL,
	round_id      BIGINT NOT NULL,
	round_ts      BIGINT NOT NULL,
	value         TEXT,
	call_prices   TEXT[],
	put_prices    TEXT[],
	run_id        UUID NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, address)
);

CREATE TABLE IF NOT EXISTS factory_pricefeeds (
	chain_id      BIGINT NOT NULL,
	factory       TEXT NOT NULL,
	pricefeed     TEXT NOT NULL,
	creation_idx  BIGINT NOT NULL,
	creator       TEXT NOT NULL,
	description   TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, pricefeed)
);

CREATE TABLE IF NOT EXISTS replay_state (
	name               TEXT PRIMARY KEY,
	last_processed_op  BIGINT NOT NULL,
	run_id             UUID NOT NULL,
	snapshot           JSONB NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Progress is the replay position persisted under a name.
type Progress struct {
	LastProcessedOp uint64
	RunID           uuid.UUID
	State           model.HostState
	UpdatedAt       time.Time
}

// Store provides Postgres persistence for registry logs and state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutLogBatch inserts log records. Logs already stored are left untouched.
func (s *Store) PutLogBatch(ctx context.Context, logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, record := range logs {
		batch.Queue(`
			INSERT INTO registry_logs (
				chain_id, block_number, log_index, block_hash, tx_hash, tx_index, address, topics, data, block_ts
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (chain_id, block_number, log_index) DO NOTHING
		`,
			int64(record.ChainID),
			int64(record.BlockNumber),
			int64(record.LogIndex),
			record.BlockHash,
			record.TxHash,
			int64(record.TxIndex),
			record.Address,
			record.Topics,
			record.Data,
			int64(record.Timestamp),
		)
	}
	return sendBatch(ctx, s.pool, batch)
}

// SaveSnapshot writes feed states and factory creations of state in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, runID uuid.UUID, state model.HostState) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := upsertFeedStates(ctx, tx, state.ChainID, runID, state.Feeds); err != nil {
			return fmt.Errorf("upsert feed states: %w", err)
		}
		if err := insertCreations(ctx, tx, state.ChainID, state.Factories); err != nil {
			return fmt.Errorf("insert creations: %w", err)
		}
		return nil
	})
}

// LoadState returns the replay progress stored under name.
func (s *Store) LoadState(ctx context.Context, name string) (Progress, bool, error) {
	if name == "" {
		return Progress{}, false, fmt.Errorf("state name required")
	}
	var (
		progress Progress
		lastOp   int64
		snapshot []byte
	)
	row := s.pool.QueryRow(ctx, `SELECT last_processed_op, run_id, snapshot, updated_at FROM replay_state WHERE name=$1`, name)
	if err := row.Scan(&lastOp, &progress.RunID, &snapshot, &progress.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Progress{}, false, nil
		}
		return Progress{}, false, err
	}
	if err := json.Unmarshal(snapshot, &progress.State); err != nil {
		return Progress{}, false, fmt.Errorf("parse snapshot: %w", err)
	}
	progress.LastProcessedOp = uint64(lastOp)
	return progress, true, nil
}

// SaveState upserts the replay progress for name.
func (s *Store) SaveState(ctx context.Context, name string, progress Progress) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	snapshot, err := json.Marshal(progress.State)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO replay_state (name, last_processed_op, run_id, snapshot, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_op = EXCLUDED.last_processed_op,
			run_id = EXCLUDED.run_id,
			snapshot = EXCLUDED.snapshot,
			updated_at = now()
	`, name, int64(progress.LastProcessedOp), progress.RunID, snapshot)
	return err
}

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func sendBatch(ctx context.Context, db batchSender, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	br := db.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func upsertFeedStates(ctx context.Context, db batchSender, chainID uint64, runID uuid.UUID, feeds []model.FeedState) error {
	batch := &pgx.Batch{}
	for _, feed := range feeds {
		batch.Queue(`
			INSERT INTO feed_states (
				chain_id, address, kind, description, owner, admins, round_id, round_ts,
				value, call_prices, put_prices, run_id, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
			ON CONFLICT (chain_id, address)
			DO UPDATE SET
				owner = EXCLUDED.owner,
				admins = EXCLUDED.admins,
				round_id = EXCLUDED.round_id,
				round_ts = EXCLUDED.round_ts,
				value = EXCLUDED.value,
				call_prices = EXCLUDED.call_prices,
				put_prices = EXCLUDED.put_prices,
				run_id = EXCLUDED.run_id,
				updated_at = now()
			WHERE feed_states.round_id <= EXCLUDED.round_id
		`,
			int64(chainID),
			feed.Address,
			feed.Kind,
			feed.Description,
			feed.Owner,
			feed.Admins,
			int64(feed.RoundID),
			int64(feed.UpdatedAt),
			nullableString(feed.Value),
			feed.CallPrices,
			feed.PutPrices,
			runID,
		)
	}
	return sendBatch(ctx, db, batch)
}

func insertCreations(ctx context.Context, db batchSender, chainID uint64, factories []model.FactoryState) error {
	batch := &pgx.Batch{}
	for _, factory := range factories {
		for _, entry := range factory.Pricefeeds {
			batch.Queue(`
				INSERT INTO factory_pricefeeds (
					chain_id, factory, pricefeed, creation_idx, creator, description
				) VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (chain_id, pricefeed) DO NOTHING
			`,
				int64(chainID),
				factory.Address,
				entry.Pricefeed,
				int64(entry.Index),
				entry.Creator,
				entry.Description,
			)
		}
	}
	return sendBatch(ctx, db, batch)
}

func nullableString(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
