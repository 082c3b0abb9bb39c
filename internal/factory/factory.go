package factory

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"priceRegistry/internal/access"
	"priceRegistry/internal/events"
	"priceRegistry/internal/feed"
	"priceRegistry/internal/model"
)

// Config configures a factory and every feed it creates.
type Config struct {
	// Address is the factory identity. Created feed addresses derive from it.
	Address common.Address
	// Variant selects the scalar feed kind to create. Defaults to answer.
	Variant feed.Kind
	Clock   func() time.Time
	Emitter events.Emitter
	Logger  *zap.Logger
	// Allocate returns the address of the next feed created by factory. It runs after
	// the owner check and before any state change; an error aborts the creation.
	// Defaults to deriving from the factory address and its creation count.
	Allocate func(factory common.Address) (common.Address, error)
}

type entry struct {
	feed        feed.Scalar
	creator     common.Address
	description string
}

// Factory creates scalar feeds on behalf of its owner and remembers who created each.
type Factory struct {
	mu      sync.RWMutex
	acl     *access.Control
	entries map[common.Address]entry
	order   []common.Address
	cfg     Config
	logger  *zap.Logger
}

// New deploys a factory owned by deployer.
func New(deployer common.Address, cfg Config) (*Factory, error) {
	cfg, err := normalize(cfg)
	if err != nil {
		return nil, err
	}
	return newFactory(access.New(deployer, deployer), cfg), nil
}

func normalize(cfg Config) (Config, error) {
	switch cfg.Variant {
	case "":
		cfg.Variant = feed.KindAnswer
	case feed.KindAnswer, feed.KindSpot:
	default:
		return cfg, fmt.Errorf("factory cannot create %q feeds", cfg.Variant)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Emitter == nil {
		cfg.Emitter = events.Nop
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg, nil
}

// allocate must be called with mu held.
func (f *Factory) allocate() (common.Address, error) {
	if f.cfg.Allocate != nil {
		return f.cfg.Allocate(f.cfg.Address)
	}
	return crypto.CreateAddress(f.cfg.Address, uint64(len(f.order))+1), nil
}

func newFactory(acl *access.Control, cfg Config) *Factory {
	return &Factory{
		acl:     acl,
		entries: make(map[common.Address]entry),
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("factory", cfg.Address.Hex())),
	}
}

func (f *Factory) Address() common.Address {
	return f.cfg.Address
}

func (f *Factory) Variant() feed.Kind {
	return f.cfg.Variant
}

func (f *Factory) Owner() common.Address {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.acl.Owner()
}

func (f *Factory) IsAdmin(account common.Address) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.acl.IsAdmin(account)
}

// SetAdmin sets the admin membership of account. Owner only.
func (f *Factory) SetAdmin(caller, account common.Address, enabled bool) error {
	f.mu.Lock()
	err := f.acl.SetAdmin(caller, account, enabled)
	f.mu.Unlock()
	if err != nil {
		f.logger.Warn("set admin rejected", zap.String("caller", caller.Hex()), zap.Error(err))
		return err
	}
	f.cfg.Emitter.Emit(model.AdminSet{Contract: f.cfg.Address, Account: account, Enabled: enabled})
	return nil
}

// TransferOwnership hands the create capability to newOwner. Owner only.
func (f *Factory) TransferOwnership(caller, newOwner common.Address) error {
	f.mu.Lock()
	previous, err := f.acl.TransferOwnership(caller, newOwner)
	f.mu.Unlock()
	if err != nil {
		f.logger.Warn("transfer ownership rejected", zap.String("caller", caller.Hex()), zap.Error(err))
		return err
	}
	f.logger.Info("ownership transferred", zap.String("from", previous.Hex()), zap.String("to", newOwner.Hex()))
	f.cfg.Emitter.Emit(model.OwnershipTransferred{Contract: f.cfg.Address, PreviousOwner: previous, NewOwner: newOwner})
	return nil
}

// Create deploys a new scalar feed owned by caller with admins as its initial admins.
// Owner only.
func (f *Factory) Create(caller common.Address, description string, admins []common.Address) (common.Address, error) {
	f.mu.Lock()
	if err := f.acl.CheckOwner(caller); err != nil {
		f.mu.Unlock()
		f.logger.Warn("create rejected", zap.String("caller", caller.Hex()), zap.Error(err))
		return common.Address{}, err
	}

	address, err := f.allocate()
	if err != nil {
		f.mu.Unlock()
		f.logger.Warn("create rejected", zap.String("caller", caller.Hex()), zap.Error(err))
		return common.Address{}, err
	}
	if _, taken := f.entries[address]; taken {
		f.mu.Unlock()
		return common.Address{}, fmt.Errorf("pricefeed %s already created", address.Hex())
	}
	index := uint64(len(f.order)) + 1
	opts := feed.Options{
		Address: address,
		Clock:   f.cfg.Clock,
		Emitter: f.cfg.Emitter,
		Logger:  f.cfg.Logger,
	}
	var created feed.Scalar
	if f.cfg.Variant == feed.KindSpot {
		created = feed.NewSpotFeed(f.cfg.Address, caller, description, admins, opts)
	} else {
		created = feed.NewAnswerFeed(f.cfg.Address, caller, description, admins, opts)
	}
	f.entries[address] = entry{feed: created, creator: caller, description: description}
	f.order = append(f.order, address)
	f.mu.Unlock()

	f.logger.Info("feed created",
		zap.String("pricefeed", address.Hex()),
		zap.String("creator", caller.Hex()),
		zap.String("variant", string(f.cfg.Variant)),
		zap.Uint64("index", index),
	)
	f.cfg.Emitter.Emit(model.PriceFeedCreated{
		Factory:     f.cfg.Address,
		Pricefeed:   address,
		Creator:     caller,
		Description: description,
	})
	return address, nil
}

// NumPricefeeds returns how many feeds the factory has created.
func (f *Factory) NumPricefeeds() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return uint64(len(f.order))
}

// PricefeedOwner returns the creator of pricefeed, or the zero address if the
// factory did not create it.
func (f *Factory) PricefeedOwner(pricefeed common.Address) common.Address {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.entries[pricefeed].creator
}

// Feed returns a feed created by the factory.
func (f *Factory) Feed(pricefeed common.Address) (feed.Scalar, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.entries[pricefeed]
	return e.feed, ok
}

// Pricefeeds returns created feed addresses in creation order.
func (f *Factory) Pricefeeds() []common.Address {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]common.Address, len(f.order))
	copy(out, f.order)
	return out
}

func (f *Factory) State() model.FactoryState {
	f.mu.RLock()
	defer f.mu.RUnlock()

	admins := f.acl.Admins()
	state := model.FactoryState{
		Address:    f.cfg.Address.Hex(),
		Owner:      f.acl.Owner().Hex(),
		Admins:     make([]string, 0, len(admins)),
		Variant:    string(f.cfg.Variant),
		Pricefeeds: make([]model.FactoryEntry, 0, len(f.order)),
	}
	for _, admin := range admins {
		state.Admins = append(state.Admins, admin.Hex())
	}
	for i, address := range f.order {
		e := f.entries[address]
		state.Pricefeeds = append(state.Pricefeeds, model.FactoryEntry{
			Index:       uint64(i) + 1,
			Pricefeed:   address.Hex(),
			Creator:     e.creator.Hex(),
			Description: e.description,
		})
	}
	return state
}

// Restore rebuilds a factory from its persisted state. feeds must hold every feed the
// factory created, keyed by address. cfg.Address and cfg.Variant are taken from state.
func Restore(state model.FactoryState, feeds map[common.Address]feed.Scalar, cfg Config) (*Factory, error) {
	address, err := parseAddress(state.Address)
	if err != nil {
		return nil, fmt.Errorf("factory address: %w", err)
	}
	owner, err := parseAddress(state.Owner)
	if err != nil {
		return nil, fmt.Errorf("factory owner: %w", err)
	}
	admins := make([]common.Address, 0, len(state.Admins))
	for _, input := range state.Admins {
		admin, err := parseAddress(input)
		if err != nil {
			return nil, fmt.Errorf("factory admin: %w", err)
		}
		admins = append(admins, admin)
	}

	variant, err := feed.ParseKind(state.Variant)
	if err != nil {
		return nil, err
	}
	cfg.Address = address
	cfg.Variant = variant
	cfg, err = normalize(cfg)
	if err != nil {
		return nil, err
	}

	f := newFactory(access.Restore(owner, admins), cfg)
	for _, record := range state.Pricefeeds {
		pricefeed, err := parseAddress(record.Pricefeed)
		if err != nil {
			return nil, fmt.Errorf("pricefeed %d: %w", record.Index, err)
		}
		creator, err := parseAddress(record.Creator)
		if err != nil {
			return nil, fmt.Errorf("pricefeed %d creator: %w", record.Index, err)
		}
		created, ok := feeds[pricefeed]
		if !ok {
			return nil, fmt.Errorf("pricefeed %s missing from restored feeds", pricefeed.Hex())
		}
		f.entries[pricefeed] = entry{feed: created, creator: creator, description: record.Description}
		f.order = append(f.order, pricefeed)
	}
	return f, nil
}

func parseAddress(input string) (common.Address, error) {
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %s", input)
	}
	return common.HexToAddress(input), nil
}
