package storage

import (
	"context"

	"priceRegistry/internal/model"
)

// Storage defines a sink for log records.
type Storage interface {
	PutLogBatch(ctx context.Context, logs []model.LogRecord) error
}

// Resetter is implemented by sinks that can discard what earlier runs wrote.
type Resetter interface {
	Reset(ctx context.Context) error
}
