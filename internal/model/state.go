package model

// FeedState is the persisted layout of a single feed.
type FeedState struct {
	Address     string   `json:"address"`
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
	Owner       string   `json:"owner"`
	Admins      []string `json:"admins"`
	RoundID     uint64   `json:"round_id"`
	UpdatedAt   uint64   `json:"updated_at"`
	Value       string   `json:"value,omitempty"`
	CallPrices  []string `json:"call_prices,omitempty"`
	PutPrices   []string `json:"put_prices,omitempty"`
}

// FactoryEntry records one feed created by a factory.
type FactoryEntry struct {
	Index       uint64 `json:"index"`
	Pricefeed   string `json:"pricefeed"`
	Creator     string `json:"creator"`
	Description string `json:"description"`
}

// FactoryState is the persisted layout of a factory.
type FactoryState struct {
	Address    string         `json:"address"`
	Owner      string         `json:"owner"`
	Admins     []string       `json:"admins"`
	Variant    string         `json:"variant"`
	Pricefeeds []FactoryEntry `json:"pricefeeds"`
}

// HostState is a full snapshot of every contract known to a host.
type HostState struct {
	ChainID     uint64            `json:"chain_id"`
	BlockNumber uint64            `json:"block_number"`
	BlockHash   string            `json:"block_hash"`
	Timestamp   uint64            `json:"timestamp"`
	Nonces      map[string]uint64 `json:"nonces"`
	Feeds       []FeedState       `json:"feeds"`
	Factories   []FactoryState    `json:"factories"`
}

// RoundData is the read view of a feed's latest round.
// StartedAt and AnsweredInRound mirror UpdatedAt and RoundID.
type RoundData struct {
	RoundID         uint64 `json:"round_id"`
	Value           string `json:"value"`
	StartedAt       uint64 `json:"started_at"`
	UpdatedAt       uint64 `json:"updated_at"`
	AnsweredInRound uint64 `json:"answered_in_round"`
}
