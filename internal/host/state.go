package host

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"priceRegistry/internal/factory"
	"priceRegistry/internal/feed"
	"priceRegistry/internal/model"
)

// Snapshot captures every hosted contract and the chain position.
func (h *Host) Snapshot() model.HostState {
	h.mu.Lock()
	defer h.mu.Unlock()

	state := model.HostState{
		ChainID:     h.cfg.ChainID,
		BlockNumber: h.block,
		BlockHash:   h.blockHash.Hex(),
		Timestamp:   h.blockTime.Load(),
		Nonces:      make(map[string]uint64, len(h.nonces)),
		Feeds:       make([]model.FeedState, 0, len(h.feedOrder)),
		Factories:   make([]model.FactoryState, 0, len(h.factOrder)),
	}
	for account, nonce := range h.nonces {
		state.Nonces[account.Hex()] = nonce
	}
	for _, address := range h.feedOrder {
		state.Feeds = append(state.Feeds, h.feeds[address].State())
	}
	for _, address := range h.factOrder {
		state.Factories = append(state.Factories, h.factories[address].State())
	}
	return state
}

// Restore rebuilds a host from a snapshot. cfg.ChainID is taken from state.
func Restore(state model.HostState, cfg Config) (*Host, error) {
	cfg.ChainID = state.ChainID
	h, err := New(cfg)
	if err != nil {
		return nil, err
	}

	h.block = state.BlockNumber
	if state.BlockHash != "" {
		h.blockHash = common.HexToHash(state.BlockHash)
	}
	h.blockTime.Store(state.Timestamp)
	for account, nonce := range state.Nonces {
		if !common.IsHexAddress(account) {
			return nil, fmt.Errorf("invalid nonce account: %s", account)
		}
		h.nonces[common.HexToAddress(account)] = nonce
	}

	scalars := make(map[common.Address]feed.Scalar)
	for _, fs := range state.Feeds {
		restored, err := feed.Restore(fs, h.contractOptions(common.Address{}))
		if err != nil {
			return nil, fmt.Errorf("restore feed %s: %w", fs.Address, err)
		}
		if h.deployed(restored.Address()) {
			return nil, fmt.Errorf("duplicate feed %s", fs.Address)
		}
		h.registerFeed(restored)
		if scalar, ok := restored.(feed.Scalar); ok {
			scalars[restored.Address()] = scalar
		}
	}

	for _, fs := range state.Factories {
		restored, err := factory.Restore(fs, scalars, h.factoryConfig(common.Address{}, ""))
		if err != nil {
			return nil, fmt.Errorf("restore factory %s: %w", fs.Address, err)
		}
		if h.deployed(restored.Address()) {
			return nil, fmt.Errorf("duplicate factory %s", fs.Address)
		}
		h.factories[restored.Address()] = restored
		h.factOrder = append(h.factOrder, restored.Address())
	}
	return h, nil
}
