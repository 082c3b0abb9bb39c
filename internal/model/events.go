package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// StrikeLevels is the number of strikes carried by a mark price grid.
const StrikeLevels = 11

// Event is a notification emitted by a contract after a call commits.
type Event interface {
	EventName() string
	Source() common.Address
}

// PriceFeedCreated is emitted by a factory for every feed it creates.
type PriceFeedCreated struct {
	Factory     common.Address
	Pricefeed   common.Address
	Creator     common.Address
	Description string
}

func (e PriceFeedCreated) EventName() string      { return "PriceFeedCreated" }
func (e PriceFeedCreated) Source() common.Address { return e.Factory }

// AnswerUpdated is emitted when a signed answer feed publishes a round.
type AnswerUpdated struct {
	Feed      common.Address
	Current   *big.Int
	RoundID   uint64
	UpdatedAt uint64
}

func (e AnswerUpdated) EventName() string      { return "AnswerUpdated" }
func (e AnswerUpdated) Source() common.Address { return e.Feed }

// PriceUpdated is emitted when a spot feed publishes a round.
type PriceUpdated struct {
	Feed      common.Address
	Price     uint256.Int
	RoundID   uint64
	UpdatedAt uint64
}

func (e PriceUpdated) EventName() string      { return "PriceUpdated" }
func (e PriceUpdated) Source() common.Address { return e.Feed }

// PricesUpdated is emitted when a mark feed publishes a full grid.
type PricesUpdated struct {
	Feed       common.Address
	CallPrices [StrikeLevels]uint256.Int
	PutPrices  [StrikeLevels]uint256.Int
	RoundID    uint64
	UpdatedAt  uint64
}

func (e PricesUpdated) EventName() string      { return "PricesUpdated" }
func (e PricesUpdated) Source() common.Address { return e.Feed }

// AdminSet is emitted when the owner changes admin membership.
type AdminSet struct {
	Contract common.Address
	Account  common.Address
	Enabled  bool
}

func (e AdminSet) EventName() string      { return "AdminSet" }
func (e AdminSet) Source() common.Address { return e.Contract }

// OwnershipTransferred is emitted when a contract changes owner.
type OwnershipTransferred struct {
	Contract      common.Address
	PreviousOwner common.Address
	NewOwner      common.Address
}

func (e OwnershipTransferred) EventName() string      { return "OwnershipTransferred" }
func (e OwnershipTransferred) Source() common.Address { return e.Contract }
