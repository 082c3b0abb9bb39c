package factory

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"priceRegistry/internal/access"
	"priceRegistry/internal/events"
	"priceRegistry/internal/feed"
	"priceRegistry/internal/model"
)

var (
	factoryAddr = common.HexToAddress("0x00000000000000000000000000000000000fac01")
	owner       = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	admin       = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	stranger    = common.HexToAddress("0x00000000000000000000000000000000000000ff")
)

func fixedClock() time.Time {
	return time.Unix(1700000000, 0)
}

func newTestFactory(t *testing.T, variant feed.Kind, emitter events.Emitter) *Factory {
	t.Helper()
	f, err := New(owner, Config{Address: factoryAddr, Variant: variant, Clock: fixedClock, Emitter: emitter})
	require.NoError(t, err)
	return f
}

func TestCreateTracksCreators(t *testing.T) {
	bus := events.NewBus()
	var created []model.PriceFeedCreated
	bus.Subscribe(func(ev model.Event) {
		if c, ok := ev.(model.PriceFeedCreated); ok {
			created = append(created, c)
		}
	})
	f := newTestFactory(t, "", bus)
	require.Equal(t, feed.KindAnswer, f.Variant())

	first, err := f.Create(owner, "ETH / USD", nil)
	require.NoError(t, err)
	second, err := f.Create(owner, "BTC / USD", []common.Address{admin})
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.Equal(t, crypto.CreateAddress(factoryAddr, 1), first)
	require.Equal(t, crypto.CreateAddress(factoryAddr, 2), second)
	require.Equal(t, uint64(2), f.NumPricefeeds())
	require.Equal(t, owner, f.PricefeedOwner(first))
	require.Equal(t, owner, f.PricefeedOwner(second))
	require.Equal(t, common.Address{}, f.PricefeedOwner(stranger))
	require.Equal(t, []common.Address{first, second}, f.Pricefeeds())

	require.Equal(t, []model.PriceFeedCreated{
		{Factory: factoryAddr, Pricefeed: first, Creator: owner, Description: "ETH / USD"},
		{Factory: factoryAddr, Pricefeed: second, Creator: owner, Description: "BTC / USD"},
	}, created)
}

func TestCreatedFeedAccess(t *testing.T) {
	f := newTestFactory(t, feed.KindAnswer, nil)
	address, err := f.Create(owner, "ETH / USD", []common.Address{admin})
	require.NoError(t, err)

	created, ok := f.Feed(address)
	require.True(t, ok)
	answer, ok := created.(*feed.AnswerFeed)
	require.True(t, ok)

	require.Equal(t, owner, answer.Owner())
	require.Equal(t, "ETH / USD", answer.Description())
	require.True(t, answer.IsAdmin(factoryAddr))
	require.True(t, answer.IsAdmin(owner))
	require.True(t, answer.IsAdmin(admin))
	require.False(t, answer.IsAdmin(stranger))

	require.NoError(t, answer.SetLatestAnswer(admin, big.NewInt(3)))
	require.Equal(t, uint64(1), answer.Latest().RoundID)
	require.Equal(t, uint64(1700000000), answer.Latest().UpdatedAt)
}

func TestCreateRejectsNonOwner(t *testing.T) {
	f := newTestFactory(t, feed.KindSpot, nil)

	_, err := f.Create(stranger, "ETH / USD", nil)
	require.ErrorIs(t, err, access.ErrUnauthorized)
	require.Zero(t, f.NumPricefeeds())

	require.NoError(t, f.TransferOwnership(owner, stranger))
	address, err := f.Create(stranger, "ETH spot", nil)
	require.NoError(t, err)
	require.Equal(t, stranger, f.PricefeedOwner(address))

	created, _ := f.Feed(address)
	require.Equal(t, feed.KindSpot, created.Kind())

	_, err = f.Create(owner, "ETH / USD", nil)
	require.ErrorIs(t, err, access.ErrUnauthorized)
}

func TestNewRejectsMarkVariant(t *testing.T) {
	_, err := New(owner, Config{Address: factoryAddr, Variant: feed.KindMark})
	require.Error(t, err)
}

func TestRestoreKeepsBookkeeping(t *testing.T) {
	f := newTestFactory(t, feed.KindSpot, nil)
	first, err := f.Create(owner, "a", nil)
	require.NoError(t, err)
	second, err := f.Create(owner, "b", nil)
	require.NoError(t, err)

	feeds := make(map[common.Address]feed.Scalar)
	for _, address := range f.Pricefeeds() {
		original, _ := f.Feed(address)
		restored, err := feed.Restore(original.State(), feed.Options{Clock: fixedClock})
		require.NoError(t, err)
		feeds[address] = restored.(feed.Scalar)
	}

	restored, err := Restore(f.State(), feeds, Config{Clock: fixedClock})
	require.NoError(t, err)
	require.Equal(t, f.State(), restored.State())
	require.Equal(t, owner, restored.PricefeedOwner(first))

	third, err := restored.Create(owner, "c", nil)
	require.NoError(t, err)
	require.Equal(t, crypto.CreateAddress(factoryAddr, 3), third)
	require.NotEqual(t, second, third)
	require.Equal(t, uint64(3), restored.NumPricefeeds())

	delete(feeds, first)
	_, err = Restore(f.State(), feeds, Config{})
	require.Error(t, err)
}

func TestCreateUsesAllocator(t *testing.T) {
	errTaken := errors.New("taken")
	next := []common.Address{stranger, stranger}
	var calls int
	allocate := func(from common.Address) (common.Address, error) {
		require.Equal(t, factoryAddr, from)
		calls++
		if calls == 1 {
			return common.Address{}, errTaken
		}
		return next[calls-2], nil
	}
	f, err := New(owner, Config{Address: factoryAddr, Clock: fixedClock, Allocate: allocate})
	require.NoError(t, err)

	_, err = f.Create(stranger, "ignored", nil)
	require.ErrorIs(t, err, access.ErrUnauthorized)
	require.Zero(t, calls)

	_, err = f.Create(owner, "ETH / USD", nil)
	require.ErrorIs(t, err, errTaken)
	require.Zero(t, f.NumPricefeeds())

	created, err := f.Create(owner, "ETH / USD", nil)
	require.NoError(t, err)
	require.Equal(t, stranger, created)

	// an address handed out twice is refused rather than overwritten
	_, err = f.Create(owner, "BTC / USD", nil)
	require.Error(t, err)
	require.Equal(t, uint64(1), f.NumPricefeeds())
	feedAt, ok := f.Feed(stranger)
	require.True(t, ok)
	require.Equal(t, "ETH / USD", feedAt.Description())
}
