package host

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"go.uber.org/zap"

	"priceRegistry/internal/contracts"
	"priceRegistry/internal/events"
	"priceRegistry/internal/factory"
	"priceRegistry/internal/feed"
	"priceRegistry/internal/model"
)

var (
	// ErrUnknownContract is returned for calls to an address without a contract.
	ErrUnknownContract = errors.New("unknown contract")
	// ErrUnknownMethod is returned for methods the target contract does not expose.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrInvalidArgs is returned when call arguments cannot be parsed.
	ErrInvalidArgs = errors.New("invalid arguments")
	// ErrAddressInUse is returned when a new contract would land on an occupied address.
	ErrAddressInUse = errors.New("address already in use")
	// ErrLogEncoding is returned when an emitted event cannot be turned into a log.
	ErrLogEncoding = errors.New("log encoding failed")
)

// KindFactory deploys a feed factory.
const KindFactory = "factory"

// Config configures a host.
type Config struct {
	ChainID uint64
	// Clock stamps blocks for transactions without an explicit timestamp.
	Clock  func() time.Time
	Logger *zap.Logger
}

// Tx is a call against a deployed contract.
type Tx struct {
	From   common.Address
	To     common.Address
	Method string
	Args   []string
	// CallPrices and PutPrices carry the grid of setLatestPrices.
	CallPrices []string
	PutPrices  []string
	// Timestamp overrides the block time when non-zero. Block time never decreases.
	Timestamp uint64
}

// DeployArgs describes a contract deployment.
type DeployArgs struct {
	// Kind is answer, spot, mark or factory.
	Kind        string
	Owner       common.Address
	Description string
	Admins      []common.Address
	// Variant is the feed kind a factory creates.
	Variant   string
	Timestamp uint64
}

// Receipt is the outcome of a deployment or call.
type Receipt struct {
	TxHash          common.Hash       `json:"tx_hash"`
	BlockNumber     uint64            `json:"block_number"`
	BlockHash       common.Hash       `json:"block_hash"`
	Timestamp       uint64            `json:"timestamp"`
	From            common.Address    `json:"from"`
	To              common.Address    `json:"to"`
	Method          string            `json:"method"`
	ContractAddress common.Address    `json:"contract_address"`
	Status          uint64            `json:"status"`
	Err             error             `json:"-"`
	Error           string            `json:"error,omitempty"`
	Output          []string          `json:"output,omitempty"`
	Logs            []model.LogRecord `json:"logs"`
}

func (r *Receipt) fail(err error) {
	r.Status = types.ReceiptStatusFailed
	r.Err = err
	r.Error = err.Error()
	r.Logs = nil
}

// Succeeded reports whether the call committed.
func (r Receipt) Succeeded() bool {
	return r.Status == types.ReceiptStatusSuccessful
}

// Host executes registry contracts in process. Calls are serialized; every state
// changing call is mined in its own block.
type Host struct {
	mu        sync.Mutex
	cfg       Config
	logger    *zap.Logger
	encoder   *contracts.Encoder
	bus       *events.Bus
	block     uint64
	blockHash common.Hash
	blockTime atomic.Uint64
	nonces    map[common.Address]uint64
	feeds     map[common.Address]feed.Contract
	feedOrder []common.Address
	factories map[common.Address]*factory.Factory
	factOrder []common.Address
	pending   []model.Event
}

// New returns an empty host at block zero.
func New(cfg Config) (*Host, error) {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	encoder, err := contracts.NewEncoder()
	if err != nil {
		return nil, err
	}

	h := &Host{
		cfg:       cfg,
		logger:    cfg.Logger,
		encoder:   encoder,
		bus:       events.NewBus(),
		nonces:    make(map[common.Address]uint64),
		feeds:     make(map[common.Address]feed.Contract),
		factories: make(map[common.Address]*factory.Factory),
	}
	h.bus.Subscribe(func(ev model.Event) {
		h.pending = append(h.pending, ev)
	})
	return h, nil
}

// Subscribe registers fn for every event emitted by hosted contracts. fn runs while
// the host executes a call and must not call back into the host.
func (h *Host) Subscribe(fn func(model.Event)) func() {
	return h.bus.Subscribe(fn)
}

func (h *Host) BlockNumber() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.block
}

// Feed returns a hosted feed, including feeds created by factories.
func (h *Host) Feed(address common.Address) (feed.Contract, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.feeds[address]
	return f, ok
}

// Factory returns a hosted factory. Creations must go through Call so the factory
// draws addresses under the host lock.
func (h *Host) Factory(address common.Address) (*factory.Factory, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.factories[address]
	return f, ok
}

func (h *Host) clock() time.Time {
	return time.Unix(int64(h.blockTime.Load()), 0)
}

func (h *Host) contractOptions(address common.Address) feed.Options {
	return feed.Options{
		Address: address,
		Clock:   h.clock,
		Emitter: h.bus,
		Logger:  h.logger,
	}
}

func (h *Host) factoryConfig(address common.Address, variant feed.Kind) factory.Config {
	return factory.Config{
		Address:  address,
		Variant:  variant,
		Clock:    h.clock,
		Emitter:  h.bus,
		Logger:   h.logger,
		Allocate: h.allocateFeed,
	}
}

// allocateFeed derives the next address created by a factory from the nonce of the
// factory account, the same counter deployments sent from that address use. The nonce
// is consumed even when the address is occupied. Must be called with mu held.
func (h *Host) allocateFeed(factoryAddr common.Address) (common.Address, error) {
	nonce := h.nonces[factoryAddr]
	if nonce == 0 {
		// contract accounts start at nonce one
		nonce = 1
	}
	h.nonces[factoryAddr] = nonce + 1
	address := crypto.CreateAddress(factoryAddr, nonce)
	if h.deployed(address) {
		return common.Address{}, fmt.Errorf("%w: %s", ErrAddressInUse, address.Hex())
	}
	return address, nil
}

// Deploy creates a contract at the address derived from the sender and its nonce.
func (h *Host) Deploy(from common.Address, args DeployArgs) (Receipt, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	nonce := h.nonces[from]
	address := crypto.CreateAddress(from, nonce)
	receipt := h.beginBlock(from, common.Address{}, "deploy", nonce, args.Timestamp, []string{args.Kind, args.Description})
	receipt.ContractAddress = address

	err := h.finishBlock(&receipt, h.deploy(from, address, args))
	if err != nil {
		receipt.ContractAddress = common.Address{}
		h.logger.Warn("deploy failed", zap.String("from", from.Hex()), zap.String("kind", args.Kind), zap.Error(err))
		return receipt, err
	}

	h.logger.Info("contract deployed",
		zap.String("address", address.Hex()),
		zap.String("kind", args.Kind),
		zap.String("from", from.Hex()),
		zap.Uint64("block", receipt.BlockNumber),
	)
	return receipt, nil
}

func (h *Host) deploy(from, address common.Address, args DeployArgs) error {
	if h.deployed(address) {
		return fmt.Errorf("%w: %s", ErrAddressInUse, address.Hex())
	}
	owner := args.Owner
	if owner == (common.Address{}) {
		owner = from
	}

	if args.Kind == KindFactory {
		variant := feed.KindAnswer
		if args.Variant != "" {
			parsed, err := feed.ParseKind(args.Variant)
			if err != nil {
				return err
			}
			variant = parsed
		}
		f, err := factory.New(from, h.factoryConfig(address, variant))
		if err != nil {
			return err
		}
		if owner != from {
			if err := f.TransferOwnership(from, owner); err != nil {
				return err
			}
		}
		h.factories[address] = f
		h.factOrder = append(h.factOrder, address)
		return nil
	}

	kind, err := feed.ParseKind(args.Kind)
	if err != nil {
		return err
	}
	opts := h.contractOptions(address)
	var created feed.Contract
	switch kind {
	case feed.KindAnswer:
		created = feed.NewAnswerFeed(from, owner, args.Description, args.Admins, opts)
	case feed.KindSpot:
		created = feed.NewSpotFeed(from, owner, args.Description, args.Admins, opts)
	case feed.KindMark:
		created = feed.NewMarkFeed(from, args.Description, args.Admins, opts)
	}
	h.registerFeed(created)
	return nil
}

func (h *Host) deployed(address common.Address) bool {
	_, isFeed := h.feeds[address]
	_, isFactory := h.factories[address]
	return isFeed || isFactory
}

func (h *Host) registerFeed(f feed.Contract) {
	h.feeds[f.Address()] = f
	h.feedOrder = append(h.feedOrder, f.Address())
}

// Call executes tx. State changing methods are mined in a new block and their
// receipt carries the emitted logs; read methods run against the current block.
// A failed call still returns a receipt, with a failed status and no logs.
func (h *Host) Call(tx Tx) (Receipt, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, target, err := h.resolve(tx.To, tx.Method)
	if err != nil {
		receipt := Receipt{
			BlockNumber: h.block,
			BlockHash:   h.blockHash,
			Timestamp:   h.blockTime.Load(),
			From:        tx.From,
			To:          tx.To,
			Method:      tx.Method,
			Status:      types.ReceiptStatusFailed,
			Err:         err,
			Error:       err.Error(),
		}
		return receipt, err
	}

	if m.view {
		receipt := Receipt{
			BlockNumber: h.block,
			BlockHash:   h.blockHash,
			Timestamp:   h.blockTime.Load(),
			From:        tx.From,
			To:          tx.To,
			Method:      tx.Method,
			Status:      types.ReceiptStatusSuccessful,
		}
		output, err := m.run(h, target, tx)
		if err != nil {
			receipt.Status = types.ReceiptStatusFailed
			receipt.Err = err
			receipt.Error = err.Error()
			return receipt, err
		}
		receipt.Output = output
		return receipt, nil
	}

	nonce := h.nonces[tx.From]
	receipt := h.beginBlock(tx.From, tx.To, tx.Method, nonce, tx.Timestamp, txPayload(tx))
	output, err := m.run(h, target, tx)
	if err := h.finishBlock(&receipt, err); err != nil {
		return receipt, err
	}
	receipt.Output = output

	h.logger.Debug("call mined",
		zap.String("to", tx.To.Hex()),
		zap.String("method", tx.Method),
		zap.Uint64("block", receipt.BlockNumber),
		zap.Int("logs", len(receipt.Logs)),
	)
	return receipt, nil
}

func txPayload(tx Tx) []string {
	payload := make([]string, 0, len(tx.Args)+len(tx.CallPrices)+len(tx.PutPrices))
	payload = append(payload, tx.Args...)
	payload = append(payload, tx.CallPrices...)
	return append(payload, tx.PutPrices...)
}

type txEnvelope struct {
	ChainID uint64
	From    common.Address
	Nonce   uint64
	To      common.Address
	Method  string
	Payload []string
}

type blockHeader struct {
	ParentHash common.Hash
	Number     uint64
	Time       uint64
	TxHash     common.Hash
}

// beginBlock mines the block that carries one transaction. Must be called with mu held.
func (h *Host) beginBlock(from, to common.Address, method string, nonce, timestamp uint64, payload []string) Receipt {
	h.nonces[from] = nonce + 1
	h.block++
	blockTime := h.blockTime.Load()
	if timestamp == 0 {
		timestamp = unixSeconds(h.cfg.Clock())
	}
	if timestamp > blockTime {
		blockTime = timestamp
	}
	h.blockTime.Store(blockTime)

	txHash := rlpHash(txEnvelope{
		ChainID: h.cfg.ChainID,
		From:    from,
		Nonce:   nonce,
		To:      to,
		Method:  method,
		Payload: payload,
	})
	h.blockHash = rlpHash(blockHeader{
		ParentHash: h.blockHash,
		Number:     h.block,
		Time:       blockTime,
		TxHash:     txHash,
	})
	h.pending = h.pending[:0]

	return Receipt{
		TxHash:      txHash,
		BlockNumber: h.block,
		BlockHash:   h.blockHash,
		Timestamp:   blockTime,
		From:        from,
		To:          to,
		Method:      method,
		Status:      types.ReceiptStatusSuccessful,
	}
}

// finishBlock turns the events of the call into logs, or marks the receipt failed.
// It returns callErr, or the encoding error when an event cannot be logged.
func (h *Host) finishBlock(receipt *Receipt, callErr error) error {
	pending := h.pending
	h.pending = nil
	if callErr != nil {
		receipt.fail(callErr)
		return callErr
	}

	logs := make([]model.LogRecord, 0, len(pending))
	for i, ev := range pending {
		record, err := h.encoder.Encode(ev, contracts.LogContext{
			ChainID:     h.cfg.ChainID,
			BlockNumber: receipt.BlockNumber,
			BlockHash:   receipt.BlockHash,
			TxHash:      receipt.TxHash,
			LogIndex:    uint64(i),
			Timestamp:   receipt.Timestamp,
		})
		if err != nil {
			err = fmt.Errorf("%w: %s: %v", ErrLogEncoding, ev.EventName(), err)
			h.logger.Error("encode log failed", zap.String("event", ev.EventName()), zap.Error(err))
			receipt.fail(err)
			return err
		}
		logs = append(logs, record)
	}
	receipt.Logs = logs
	return nil
}

func rlpHash(v interface{}) common.Hash {
	encoded, err := rlp.EncodeToBytes(v)
	if err != nil {
		panic(fmt.Sprintf("rlp encode %T: %v", v, err))
	}
	return crypto.Keccak256Hash(encoded)
}

func unixSeconds(t time.Time) uint64 {
	sec := t.Unix()
	if sec < 0 {
		return 0
	}
	return uint64(sec)
}
