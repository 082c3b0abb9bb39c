package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"priceRegistry/internal/model"
)

// Decoder decodes registry logs back into typed events.
type Decoder struct {
	registryABI abi.ABI
	topicToName map[string]string
}

func NewDecoder() (*Decoder, error) {
	registryABI, err := RegistryABI()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[string]string, len(EventNames))
	for _, name := range EventNames {
		topicToName[strings.ToLower(registryABI.Events[name].ID.Hex())] = name
	}
	return &Decoder{
		registryABI: registryABI,
		topicToName: topicToName,
	}, nil
}

// CanDecode checks if the topic0 is supported.
func (d *Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *Decoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid contract address: %s", log.Address)
	}

	var (
		decoded interface{}
		err     error
	)
	switch name {
	case "PriceFeedCreated":
		decoded, err = d.decodePriceFeedCreated(log)
	case "AnswerUpdated":
		decoded, err = d.decodeAnswerUpdated(log)
	case "PriceUpdated":
		decoded, err = d.decodePriceUpdated(log)
	case "PricesUpdated":
		decoded, err = d.decodePricesUpdated(log)
	case "AdminSet":
		decoded, err = d.decodeAdminSet(log)
	case "OwnershipTransferred":
		decoded, err = d.decodeOwnershipTransferred(log)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, err
	}
	return buildTypedEvent(log, name, decoded), nil
}

func buildTypedEvent(log model.LogRecord, name string, decoded interface{}) *model.TypedEvent {
	event := &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Contract:    common.HexToAddress(log.Address).Hex(),
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		Topic0:      log.Topics[0],
	}
	switch data := decoded.(type) {
	case model.AnswerUpdatedData:
		event.RoundID = &data.RoundID
	case model.PriceUpdatedData:
		event.RoundID = &data.RoundID
	case model.PricesUpdatedData:
		event.RoundID = &data.RoundID
	}
	return event
}

func (d *Decoder) decodePriceFeedCreated(log model.LogRecord) (model.PriceFeedCreatedData, error) {
	event := d.registryABI.Events["PriceFeedCreated"]
	var indexed struct {
		Pricefeed common.Address
		Creator   common.Address
	}
	if err := parseTopics(event, log.Topics, &indexed); err != nil {
		return model.PriceFeedCreatedData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data, 1)
	if err != nil {
		return model.PriceFeedCreatedData{}, err
	}
	description, ok := values[0].(string)
	if !ok {
		return model.PriceFeedCreatedData{}, fmt.Errorf("unsupported description type %T", values[0])
	}

	return model.PriceFeedCreatedData{
		Pricefeed:   indexed.Pricefeed.Hex(),
		Creator:     indexed.Creator.Hex(),
		Description: description,
	}, nil
}

func (d *Decoder) decodeAnswerUpdated(log model.LogRecord) (model.AnswerUpdatedData, error) {
	event := d.registryABI.Events["AnswerUpdated"]
	var indexed struct {
		Current *big.Int
		RoundId *big.Int
	}
	if err := parseTopics(event, log.Topics, &indexed); err != nil {
		return model.AnswerUpdatedData{}, err
	}
	roundID, err := uint64FromBig(indexed.RoundId)
	if err != nil {
		return model.AnswerUpdatedData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data, 1)
	if err != nil {
		return model.AnswerUpdatedData{}, err
	}
	updatedAt, err := asUint64(values[0])
	if err != nil {
		return model.AnswerUpdatedData{}, err
	}

	return model.AnswerUpdatedData{
		Current:   indexed.Current.String(),
		RoundID:   roundID,
		UpdatedAt: updatedAt,
	}, nil
}

func (d *Decoder) decodePriceUpdated(log model.LogRecord) (model.PriceUpdatedData, error) {
	event := d.registryABI.Events["PriceUpdated"]
	var indexed struct {
		Price   *big.Int
		RoundId *big.Int
	}
	if err := parseTopics(event, log.Topics, &indexed); err != nil {
		return model.PriceUpdatedData{}, err
	}
	roundID, err := uint64FromBig(indexed.RoundId)
	if err != nil {
		return model.PriceUpdatedData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data, 1)
	if err != nil {
		return model.PriceUpdatedData{}, err
	}
	updatedAt, err := asUint64(values[0])
	if err != nil {
		return model.PriceUpdatedData{}, err
	}

	return model.PriceUpdatedData{
		Price:     indexed.Price.String(),
		RoundID:   roundID,
		UpdatedAt: updatedAt,
	}, nil
}

func (d *Decoder) decodePricesUpdated(log model.LogRecord) (model.PricesUpdatedData, error) {
	event := d.registryABI.Events["PricesUpdated"]
	var indexed struct {
		RoundId *big.Int
	}
	if err := parseTopics(event, log.Topics, &indexed); err != nil {
		return model.PricesUpdatedData{}, err
	}
	roundID, err := uint64FromBig(indexed.RoundId)
	if err != nil {
		return model.PricesUpdatedData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data, 3)
	if err != nil {
		return model.PricesUpdatedData{}, err
	}
	callPrices, err := asGrid(values[0])
	if err != nil {
		return model.PricesUpdatedData{}, fmt.Errorf("call prices: %w", err)
	}
	putPrices, err := asGrid(values[1])
	if err != nil {
		return model.PricesUpdatedData{}, fmt.Errorf("put prices: %w", err)
	}
	updatedAt, err := asUint64(values[2])
	if err != nil {
		return model.PricesUpdatedData{}, err
	}

	return model.PricesUpdatedData{
		CallPrices: callPrices,
		PutPrices:  putPrices,
		RoundID:    roundID,
		UpdatedAt:  updatedAt,
	}, nil
}

func (d *Decoder) decodeAdminSet(log model.LogRecord) (model.AdminSetData, error) {
	event := d.registryABI.Events["AdminSet"]
	var indexed struct {
		Account common.Address
	}
	if err := parseTopics(event, log.Topics, &indexed); err != nil {
		return model.AdminSetData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data, 1)
	if err != nil {
		return model.AdminSetData{}, err
	}
	enabled, ok := values[0].(bool)
	if !ok {
		return model.AdminSetData{}, fmt.Errorf("unsupported enabled type %T", values[0])
	}

	return model.AdminSetData{
		Account: indexed.Account.Hex(),
		Enabled: enabled,
	}, nil
}

func (d *Decoder) decodeOwnershipTransferred(log model.LogRecord) (model.OwnershipTransferredData, error) {
	event := d.registryABI.Events["OwnershipTransferred"]
	var indexed struct {
		PreviousOwner common.Address
		NewOwner      common.Address
	}
	if err := parseTopics(event, log.Topics, &indexed); err != nil {
		return model.OwnershipTransferredData{}, err
	}
	if _, err := unpackNonIndexed(event, log.Data, 0); err != nil {
		return model.OwnershipTransferredData{}, err
	}

	return model.OwnershipTransferredData{
		PreviousOwner: indexed.PreviousOwner.Hex(),
		NewOwner:      indexed.NewOwner.Hex(),
	}, nil
}

func parseTopics(event abi.Event, topics []string, out interface{}) error {
	indexedTopics, err := parseIndexedTopics(event, topics)
	if err != nil {
		return err
	}
	if err := abi.ParseTopics(out, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}
	return nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string, want int) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	if len(values) != want {
		return nil, fmt.Errorf("unexpected %s values: %d", event.Name, len(values))
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint64(value interface{}) (uint64, error) {
	v, err := asBigInt(value)
	if err != nil {
		return 0, err
	}
	return uint64FromBig(v)
}

func uint64FromBig(value *big.Int) (uint64, error) {
	if value == nil || !value.IsUint64() {
		return 0, fmt.Errorf("uint64 overflow: %v", value)
	}
	return value.Uint64(), nil
}

func asGrid(value interface{}) ([]string, error) {
	grid, ok := value.([model.StrikeLevels]*big.Int)
	if !ok {
		return nil, fmt.Errorf("unsupported grid type %T", value)
	}
	out := make([]string, 0, len(grid))
	for _, price := range grid {
		out = append(out, price.String())
	}
	return out, nil
}
