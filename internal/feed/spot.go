package feed

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"priceRegistry/internal/access"
	"priceRegistry/internal/model"
)

// SpotFeed publishes the unsigned reference price of an underlying.
type SpotFeed struct {
	base
	price uint256.Int
}

// NewSpotFeed deploys a spot feed. The deployer, owner and admins may publish.
func NewSpotFeed(deployer, owner common.Address, description string, admins []common.Address, opts Options) *SpotFeed {
	f := &SpotFeed{}
	f.init(access.New(deployer, owner, append([]common.Address{owner}, admins...)...), description, opts)
	return f
}

func (f *SpotFeed) Kind() Kind {
	return KindSpot
}

// SetLatestPrice publishes price as a new round. Admin only.
func (f *SpotFeed) SetLatestPrice(caller common.Address, price *uint256.Int) error {
	f.mu.Lock()
	if err := f.acl.CheckAdmin(caller); err != nil {
		f.mu.Unlock()
		return f.rejectPublish(caller, err)
	}
	if price == nil {
		f.mu.Unlock()
		return f.rejectPublish(caller, fmt.Errorf("%w: nil price", ErrValueRange))
	}
	roundID, updatedAt := f.advanceRound()
	f.price = *price
	ev := model.PriceUpdated{
		Feed:      f.address,
		Price:     *price,
		RoundID:   roundID,
		UpdatedAt: updatedAt,
	}
	f.mu.Unlock()

	f.logger.Debug("price published",
		zap.Uint64("round_id", roundID),
		zap.Stringer("price", price.ToBig()),
		zap.String("caller", caller.Hex()),
	)
	f.emitter.Emit(ev)
	return nil
}

// LatestRoundData returns the latest round id, price and its timestamp.
func (f *SpotFeed) LatestRoundData() (roundID uint64, price *uint256.Int, updatedAt uint64) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.roundID, f.price.Clone(), f.updatedAt
}

func (f *SpotFeed) Latest() model.RoundData {
	roundID, price, updatedAt := f.LatestRoundData()
	return model.RoundData{
		RoundID:         roundID,
		Value:           price.ToBig().String(),
		StartedAt:       updatedAt,
		UpdatedAt:       updatedAt,
		AnsweredInRound: roundID,
	}
}

func (f *SpotFeed) State() model.FeedState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	state := f.stateHeader(KindSpot)
	state.Value = f.price.ToBig().String()
	return state
}
