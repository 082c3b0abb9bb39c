package storage

import (
	"context"
	"fmt"

	"priceRegistry/internal/model"
)

// Multi writes every batch to each sink in order.
type Multi []Storage

func (m Multi) PutLogBatch(ctx context.Context, logs []model.LogRecord) error {
	for i, sink := range m {
		if err := sink.PutLogBatch(ctx, logs); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}

// Reset resets every sink that supports it. Other sinks are left alone.
func (m Multi) Reset(ctx context.Context) error {
	for i, sink := range m {
		resetter, ok := sink.(Resetter)
		if !ok {
			continue
		}
		if err := resetter.Reset(ctx); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}
