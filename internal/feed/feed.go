package feed

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"priceRegistry/internal/access"
	"priceRegistry/internal/events"
	"priceRegistry/internal/model"
)

// Kind names a feed variant.
type Kind string

const (
	// KindAnswer publishes a signed answer and serves the legacy five-tuple.
	KindAnswer Kind = "answer"
	// KindSpot publishes an unsigned spot price.
	KindSpot Kind = "spot"
	// KindMark publishes a call/put grid per strike level.
	KindMark Kind = "mark"
)

// ParseKind converts a variant name into a Kind.
func ParseKind(input string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(input))) {
	case KindAnswer:
		return KindAnswer, nil
	case KindSpot:
		return KindSpot, nil
	case KindMark:
		return KindMark, nil
	default:
		return "", fmt.Errorf("unknown feed kind: %q", input)
	}
}

// Options configures a feed instance.
type Options struct {
	// Address is the identity of the instance.
	Address common.Address
	Clock   func() time.Time
	Emitter events.Emitter
	Logger  *zap.Logger
}

// Contract is the surface every feed variant shares.
type Contract interface {
	Address() common.Address
	Kind() Kind
	Description() string
	Owner() common.Address
	IsAdmin(account common.Address) bool
	SetAdmin(caller, account common.Address, enabled bool) error
	TransferOwnership(caller, newOwner common.Address) error
	State() model.FeedState
}

// Scalar is a feed publishing one value per round.
type Scalar interface {
	Contract
	Latest() model.RoundData
}

var (
	_ Scalar   = (*AnswerFeed)(nil)
	_ Scalar   = (*SpotFeed)(nil)
	_ Contract = (*MarkFeed)(nil)
)

// base carries access control and round metadata. mu guards every field below it,
// including the access control, and the variant payload of the embedding feed.
type base struct {
	mu          sync.RWMutex
	acl         *access.Control
	roundID     uint64
	updatedAt   uint64
	address     common.Address
	description string
	clock       func() time.Time
	emitter     events.Emitter
	logger      *zap.Logger
}

func (b *base) init(acl *access.Control, description string, opts Options) {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Emitter == nil {
		opts.Emitter = events.Nop
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	b.acl = acl
	b.address = opts.Address
	b.description = description
	b.clock = opts.Clock
	b.emitter = opts.Emitter
	b.logger = opts.Logger.With(zap.String("feed", opts.Address.Hex()))
}

func (b *base) Address() common.Address {
	return b.address
}

func (b *base) Description() string {
	return b.description
}

func (b *base) Owner() common.Address {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.acl.Owner()
}

func (b *base) IsAdmin(account common.Address) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.acl.IsAdmin(account)
}

// SetAdmin sets the admin membership of account. Owner only.
func (b *base) SetAdmin(caller, account common.Address, enabled bool) error {
	b.mu.Lock()
	err := b.acl.SetAdmin(caller, account, enabled)
	b.mu.Unlock()
	if err != nil {
		b.logger.Warn("set admin rejected", zap.String("caller", caller.Hex()), zap.Error(err))
		return err
	}

	b.emitter.Emit(model.AdminSet{Contract: b.address, Account: account, Enabled: enabled})
	return nil
}

// TransferOwnership hands the owner capability to newOwner. Owner only.
func (b *base) TransferOwnership(caller, newOwner common.Address) error {
	b.mu.Lock()
	previous, err := b.acl.TransferOwnership(caller, newOwner)
	b.mu.Unlock()
	if err != nil {
		b.logger.Warn("transfer ownership rejected", zap.String("caller", caller.Hex()), zap.Error(err))
		return err
	}

	b.logger.Info("ownership transferred", zap.String("from", previous.Hex()), zap.String("to", newOwner.Hex()))
	b.emitter.Emit(model.OwnershipTransferred{Contract: b.address, PreviousOwner: previous, NewOwner: newOwner})
	return nil
}

// advanceRound bumps the round id and stamps it. Must be called with mu held for
// writing, after every check of the call has passed.
func (b *base) advanceRound() (uint64, uint64) {
	b.roundID++
	b.updatedAt = unixSeconds(b.clock())
	return b.roundID, b.updatedAt
}

func (b *base) rejectPublish(caller common.Address, err error) error {
	b.logger.Warn("publish rejected", zap.String("caller", caller.Hex()), zap.Error(err))
	return err
}

// stateHeader fills the metadata part of a FeedState. Must be called with mu held.
func (b *base) stateHeader(kind Kind) model.FeedState {
	admins := b.acl.Admins()
	hexAdmins := make([]string, 0, len(admins))
	for _, admin := range admins {
		hexAdmins = append(hexAdmins, admin.Hex())
	}
	return model.FeedState{
		Address:     b.address.Hex(),
		Kind:        string(kind),
		Description: b.description,
		Owner:       b.acl.Owner().Hex(),
		Admins:      hexAdmins,
		RoundID:     b.roundID,
		UpdatedAt:   b.updatedAt,
	}
}

func unixSeconds(t time.Time) uint64 {
	sec := t.Unix()
	if sec < 0 {
		return 0
	}
	return uint64(sec)
}
