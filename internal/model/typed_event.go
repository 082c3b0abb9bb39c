package model

// TypedEvent is a decoded registry log keyed by the emitting contract.
type TypedEvent struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Contract    string `json:"contract"`
	EventName   string `json:"event"`
	Timestamp   uint64 `json:"timestamp"`
	// RoundID is set for publish events only.
	RoundID *uint64     `json:"round_id,omitempty"`
	Decoded interface{} `json:"decoded"`
	Topic0  string      `json:"topic0"`
}
