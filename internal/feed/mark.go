package feed

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"priceRegistry/internal/access"
	"priceRegistry/internal/model"
)

// StrikeLevels is the number of strikes in a mark grid.
const StrikeLevels = model.StrikeLevels

// MarkFeed publishes call and put mark prices for every strike level. Both sides of
// the grid always belong to the same round.
type MarkFeed struct {
	base
	callPrices [StrikeLevels]uint256.Int
	putPrices  [StrikeLevels]uint256.Int
}

// NewMarkFeed deploys a mark feed owned by deployer. The deployer and admins may publish.
func NewMarkFeed(deployer common.Address, description string, admins []common.Address, opts Options) *MarkFeed {
	f := &MarkFeed{}
	f.init(access.New(deployer, deployer, admins...), description, opts)
	return f
}

func (f *MarkFeed) Kind() Kind {
	return KindMark
}

// SetLatestPrices replaces the whole grid as a new round. Admin only.
func (f *MarkFeed) SetLatestPrices(caller common.Address, callPrices, putPrices [StrikeLevels]uint256.Int) error {
	f.mu.Lock()
	if err := f.acl.CheckAdmin(caller); err != nil {
		f.mu.Unlock()
		return f.rejectPublish(caller, err)
	}
	roundID, updatedAt := f.advanceRound()
	f.callPrices = callPrices
	f.putPrices = putPrices
	f.mu.Unlock()

	f.logger.Debug("mark prices published",
		zap.Uint64("round_id", roundID),
		zap.String("caller", caller.Hex()),
	)
	f.emitter.Emit(model.PricesUpdated{
		Feed:       f.address,
		CallPrices: callPrices,
		PutPrices:  putPrices,
		RoundID:    roundID,
		UpdatedAt:  updatedAt,
	})
	return nil
}

// LatestRoundData returns the call or put mark at strikeLevel with the feed's round
// metadata.
func (f *MarkFeed) LatestRoundData(isCall bool, strikeLevel uint8) (roundID uint64, mark *uint256.Int, updatedAt uint64, err error) {
	if strikeLevel >= StrikeLevels {
		return 0, nil, 0, fmt.Errorf("%w: %d", ErrInvalidStrikeLevel, strikeLevel)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if isCall {
		mark = f.callPrices[strikeLevel].Clone()
	} else {
		mark = f.putPrices[strikeLevel].Clone()
	}
	return f.roundID, mark, f.updatedAt, nil
}

// LatestGrid returns the full grid of the latest round.
func (f *MarkFeed) LatestGrid() (roundID uint64, callPrices, putPrices [StrikeLevels]uint256.Int, updatedAt uint64) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.roundID, f.callPrices, f.putPrices, f.updatedAt
}

func (f *MarkFeed) State() model.FeedState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	state := f.stateHeader(KindMark)
	state.CallPrices = FormatGrid(f.callPrices)
	state.PutPrices = FormatGrid(f.putPrices)
	return state
}
