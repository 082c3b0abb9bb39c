package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"priceRegistry/internal/model"
)

// newTestStore connects to the database named by PRICEFEEDS_TEST_PG_DSN.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("PRICEFEEDS_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("PRICEFEEDS_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func TestNewStoreRequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	require.Error(t, err)
}

func TestReplayStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	name := "test:" + uuid.NewString()

	_, ok, err := store.LoadState(ctx, name)
	require.NoError(t, err)
	require.False(t, ok)

	progress := Progress{
		LastProcessedOp: 42,
		RunID:           uuid.New(),
		State: model.HostState{
			ChainID:     31337,
			BlockNumber: 40,
			Nonces:      map[string]uint64{"0x00000000000000000000000000000000000000d1": 3},
		},
	}
	require.NoError(t, store.SaveState(ctx, name, progress))

	loaded, ok, err := store.LoadState(ctx, name)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, progress.LastProcessedOp, loaded.LastProcessedOp)
	require.Equal(t, progress.RunID, loaded.RunID)
	require.Equal(t, progress.State.Nonces, loaded.State.Nonces)
}

func TestSaveSnapshotIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	factory := "0x" + uuid.New().String()[:8] + "00000000000000000000000000000000"
	state := model.HostState{
		ChainID: 31337,
		Feeds: []model.FeedState{{
			Address: factory,
			Kind:    "answer",
			Owner:   "0x00000000000000000000000000000000000000a0",
			Admins:  []string{"0x00000000000000000000000000000000000000a0"},
			RoundID: 1,
			Value:   "-5",
		}},
		Factories: []model.FactoryState{{
			Address: factory,
			Pricefeeds: []model.FactoryEntry{{
				Index:     1,
				Pricefeed: factory,
				Creator:   "0x00000000000000000000000000000000000000a0",
			}},
		}},
	}
	runID := uuid.New()
	require.NoError(t, store.SaveSnapshot(ctx, runID, state))
	require.NoError(t, store.SaveSnapshot(ctx, runID, state))
}
