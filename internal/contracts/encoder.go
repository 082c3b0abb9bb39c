package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/holiman/uint256"

	"priceRegistry/internal/model"
)

// LogContext carries the block and transaction position of an emitted log.
type LogContext struct {
	ChainID     uint64
	BlockNumber uint64
	BlockHash   common.Hash
	TxHash      common.Hash
	TxIndex     uint64
	LogIndex    uint64
	Timestamp   uint64
}

// Encoder turns contract notifications into EVM-style logs.
type Encoder struct {
	registryABI abi.ABI
}

func NewEncoder() (*Encoder, error) {
	registryABI, err := RegistryABI()
	if err != nil {
		return nil, err
	}
	return &Encoder{registryABI: registryABI}, nil
}

// Encode ABI-encodes ev. Indexed arguments become topics, the rest is packed as data.
func (e *Encoder) Encode(ev model.Event, ctx LogContext) (model.LogRecord, error) {
	event, ok := e.registryABI.Events[ev.EventName()]
	if !ok {
		return model.LogRecord{}, fmt.Errorf("unsupported event: %s", ev.EventName())
	}

	var (
		topics []common.Hash
		values []interface{}
	)
	switch v := ev.(type) {
	case model.PriceFeedCreated:
		topics = []common.Hash{addressTopic(v.Pricefeed), addressTopic(v.Creator)}
		values = []interface{}{v.Description}
	case model.AnswerUpdated:
		if v.Current == nil {
			return model.LogRecord{}, fmt.Errorf("AnswerUpdated: nil answer")
		}
		topics = []common.Hash{int256Topic(v.Current), uint64Topic(v.RoundID)}
		values = []interface{}{new(big.Int).SetUint64(v.UpdatedAt)}
	case model.PriceUpdated:
		topics = []common.Hash{uint256Topic(&v.Price), uint64Topic(v.RoundID)}
		values = []interface{}{new(big.Int).SetUint64(v.UpdatedAt)}
	case model.PricesUpdated:
		topics = []common.Hash{uint64Topic(v.RoundID)}
		values = []interface{}{
			bigGrid(v.CallPrices),
			bigGrid(v.PutPrices),
			new(big.Int).SetUint64(v.UpdatedAt),
		}
	case model.AdminSet:
		topics = []common.Hash{addressTopic(v.Account)}
		values = []interface{}{v.Enabled}
	case model.OwnershipTransferred:
		topics = []common.Hash{addressTopic(v.PreviousOwner), addressTopic(v.NewOwner)}
	default:
		return model.LogRecord{}, fmt.Errorf("unsupported event type %T", ev)
	}

	data, err := event.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("pack %s: %w", event.Name, err)
	}

	hexTopics := make([]string, 0, len(topics)+1)
	hexTopics = append(hexTopics, event.ID.Hex())
	for _, topic := range topics {
		hexTopics = append(hexTopics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     ctx.ChainID,
		BlockNumber: ctx.BlockNumber,
		BlockHash:   ctx.BlockHash.Hex(),
		TxHash:      ctx.TxHash.Hex(),
		TxIndex:     ctx.TxIndex,
		LogIndex:    ctx.LogIndex,
		Address:     ev.Source().Hex(),
		Topics:      hexTopics,
		Data:        hexutil.Encode(data),
		Timestamp:   ctx.Timestamp,
	}, nil
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// int256Topic encodes value as a 256-bit two's complement word.
func int256Topic(value *big.Int) common.Hash {
	return common.BytesToHash(math.U256Bytes(new(big.Int).Set(value)))
}

func uint256Topic(value *uint256.Int) common.Hash {
	return common.Hash(value.Bytes32())
}

func uint64Topic(value uint64) common.Hash {
	return common.Hash(uint256.NewInt(value).Bytes32())
}

func bigGrid(grid [model.StrikeLevels]uint256.Int) [model.StrikeLevels]*big.Int {
	var out [model.StrikeLevels]*big.Int
	for i := range grid {
		out[i] = grid[i].ToBig()
	}
	return out
}
