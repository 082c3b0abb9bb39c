package model

// PriceFeedCreatedData is the decoded PriceFeedCreated payload.
type PriceFeedCreatedData struct {
	Pricefeed   string `json:"pricefeed"`
	Creator     string `json:"creator"`
	Description string `json:"description"`
}

// AnswerUpdatedData is the decoded AnswerUpdated payload.
type AnswerUpdatedData struct {
	Current   string `json:"current"`
	RoundID   uint64 `json:"round_id"`
	UpdatedAt uint64 `json:"updated_at"`
}

// PriceUpdatedData is the decoded PriceUpdated payload.
type PriceUpdatedData struct {
	Price     string `json:"price"`
	RoundID   uint64 `json:"round_id"`
	UpdatedAt uint64 `json:"updated_at"`
}

// PricesUpdatedData is the decoded PricesUpdated payload.
type PricesUpdatedData struct {
	CallPrices []string `json:"call_prices"`
	PutPrices  []string `json:"put_prices"`
	RoundID    uint64   `json:"round_id"`
	UpdatedAt  uint64   `json:"updated_at"`
}

// AdminSetData is the decoded AdminSet payload.
type AdminSetData struct {
	Account string `json:"account"`
	Enabled bool   `json:"enabled"`
}

// OwnershipTransferredData is the decoded OwnershipTransferred payload.
type OwnershipTransferredData struct {
	PreviousOwner string `json:"previous_owner"`
	NewOwner      string `json:"new_owner"`
}
