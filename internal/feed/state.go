package feed

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"priceRegistry/internal/access"
	"priceRegistry/internal/model"
)

// Restore rebuilds a feed from its persisted state. opts.Address is taken from state.
func Restore(state model.FeedState, opts Options) (Contract, error) {
	kind, err := ParseKind(state.Kind)
	if err != nil {
		return nil, err
	}
	address, err := parseAddress(state.Address)
	if err != nil {
		return nil, fmt.Errorf("feed address: %w", err)
	}
	owner, err := parseAddress(state.Owner)
	if err != nil {
		return nil, fmt.Errorf("feed owner: %w", err)
	}
	admins := make([]common.Address, 0, len(state.Admins))
	for _, input := range state.Admins {
		admin, err := parseAddress(input)
		if err != nil {
			return nil, fmt.Errorf("feed admin: %w", err)
		}
		admins = append(admins, admin)
	}

	opts.Address = address
	acl := access.Restore(owner, admins)

	switch kind {
	case KindAnswer:
		answer, err := ParseAnswer(state.Value)
		if err != nil {
			return nil, err
		}
		f := &AnswerFeed{answer: answer}
		f.init(acl, state.Description, opts)
		f.roundID, f.updatedAt = state.RoundID, state.UpdatedAt
		return f, nil
	case KindSpot:
		price, err := ParsePrice(state.Value)
		if err != nil {
			return nil, err
		}
		f := &SpotFeed{price: *price}
		f.init(acl, state.Description, opts)
		f.roundID, f.updatedAt = state.RoundID, state.UpdatedAt
		return f, nil
	default:
		callPrices, err := ParseGrid(state.CallPrices)
		if err != nil {
			return nil, fmt.Errorf("call prices: %w", err)
		}
		putPrices, err := ParseGrid(state.PutPrices)
		if err != nil {
			return nil, fmt.Errorf("put prices: %w", err)
		}
		f := &MarkFeed{callPrices: callPrices, putPrices: putPrices}
		f.init(acl, state.Description, opts)
		f.roundID, f.updatedAt = state.RoundID, state.UpdatedAt
		return f, nil
	}
}

func parseAddress(input string) (common.Address, error) {
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %s", input)
	}
	return common.HexToAddress(input), nil
}
