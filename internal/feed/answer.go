package feed

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"priceRegistry/internal/access"
	"priceRegistry/internal/model"
)

// AnswerFeed publishes a signed answer per round and serves the legacy five-tuple
// read used by aggregator-style consumers.
type AnswerFeed struct {
	base
	answer *big.Int
}

// NewAnswerFeed deploys an answer feed. The deployer, owner and admins may publish.
func NewAnswerFeed(deployer, owner common.Address, description string, admins []common.Address, opts Options) *AnswerFeed {
	f := &AnswerFeed{answer: new(big.Int)}
	f.init(access.New(deployer, owner, append([]common.Address{owner}, admins...)...), description, opts)
	return f
}

func (f *AnswerFeed) Kind() Kind {
	return KindAnswer
}

// SetLatestAnswer publishes answer as a new round. Admin only.
func (f *AnswerFeed) SetLatestAnswer(caller common.Address, answer *big.Int) error {
	f.mu.Lock()
	if err := f.acl.CheckAdmin(caller); err != nil {
		f.mu.Unlock()
		return f.rejectPublish(caller, err)
	}
	if err := checkInt256(answer); err != nil {
		f.mu.Unlock()
		return f.rejectPublish(caller, err)
	}
	roundID, updatedAt := f.advanceRound()
	f.answer = new(big.Int).Set(answer)
	ev := model.AnswerUpdated{
		Feed:      f.address,
		Current:   new(big.Int).Set(answer),
		RoundID:   roundID,
		UpdatedAt: updatedAt,
	}
	f.mu.Unlock()

	f.logger.Debug("answer published",
		zap.Uint64("round_id", roundID),
		zap.String("answer", answer.String()),
		zap.String("caller", caller.Hex()),
	)
	f.emitter.Emit(ev)
	return nil
}

// LatestRoundData returns the latest round id, answer and its timestamp.
func (f *AnswerFeed) LatestRoundData() (roundID uint64, answer *big.Int, updatedAt uint64) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.roundID, new(big.Int).Set(f.answer), f.updatedAt
}

// LatestRoundData5 returns the five-tuple form. Rounds complete in the call that starts
// them, so startedAt equals updatedAt and answeredInRound equals roundID.
func (f *AnswerFeed) LatestRoundData5() (roundID uint64, answer *big.Int, startedAt, updatedAt, answeredInRound uint64) {
	roundID, answer, updatedAt = f.LatestRoundData()
	return roundID, answer, updatedAt, updatedAt, roundID
}

func (f *AnswerFeed) Latest() model.RoundData {
	roundID, answer, startedAt, updatedAt, answeredInRound := f.LatestRoundData5()
	return model.RoundData{
		RoundID:         roundID,
		Value:           answer.String(),
		StartedAt:       startedAt,
		UpdatedAt:       updatedAt,
		AnsweredInRound: answeredInRound,
	}
}

func (f *AnswerFeed) State() model.FeedState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	state := f.stateHeader(KindAnswer)
	state.Value = f.answer.String()
	return state
}
