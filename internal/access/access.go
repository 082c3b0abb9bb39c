package access

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrUnauthorized is returned when the caller lacks the capability a call requires.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrZeroAddress is returned when ownership would move to the zero address.
	ErrZeroAddress = errors.New("zero address")
)

// Control holds a single owner and a set of admins.
//
// Control is not safe for concurrent use. Contracts embedding it guard it with the
// same lock that covers the state it protects, so a capability check and the write it
// admits happen in one critical section.
type Control struct {
	owner  common.Address
	admins map[common.Address]struct{}
}

// New returns a Control owned by owner. The deployer and every entry of admins are
// admins; owner is an admin only if it is listed or is the deployer.
func New(deployer, owner common.Address, admins ...common.Address) *Control {
	c := &Control{
		owner:  owner,
		admins: make(map[common.Address]struct{}, len(admins)+1),
	}
	c.admins[deployer] = struct{}{}
	for _, admin := range admins {
		c.admins[admin] = struct{}{}
	}
	return c
}

// Restore rebuilds a Control from persisted owner and admin set.
func Restore(owner common.Address, admins []common.Address) *Control {
	c := &Control{
		owner:  owner,
		admins: make(map[common.Address]struct{}, len(admins)),
	}
	for _, admin := range admins {
		c.admins[admin] = struct{}{}
	}
	return c
}

func (c *Control) Owner() common.Address {
	return c.owner
}

func (c *Control) IsAdmin(account common.Address) bool {
	_, ok := c.admins[account]
	return ok
}

// Admins returns the admin set sorted by address.
func (c *Control) Admins() []common.Address {
	out := make([]common.Address, 0, len(c.admins))
	for admin := range c.admins {
		out = append(out, admin)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

// CheckOwner fails with ErrUnauthorized unless caller is the owner.
func (c *Control) CheckOwner(caller common.Address) error {
	if caller != c.owner {
		return fmt.Errorf("%w: %s is not the owner", ErrUnauthorized, caller.Hex())
	}
	return nil
}

// CheckAdmin fails with ErrUnauthorized unless caller is an admin.
func (c *Control) CheckAdmin(caller common.Address) error {
	if !c.IsAdmin(caller) {
		return fmt.Errorf("%w: %s is not an admin", ErrUnauthorized, caller.Hex())
	}
	return nil
}

// SetAdmin sets the admin membership of account. Owner only.
func (c *Control) SetAdmin(caller, account common.Address, enabled bool) error {
	if err := c.CheckOwner(caller); err != nil {
		return err
	}
	if enabled {
		c.admins[account] = struct{}{}
	} else {
		delete(c.admins, account)
	}
	return nil
}

// TransferOwnership replaces the owner and returns the previous one. Owner only.
func (c *Control) TransferOwnership(caller, newOwner common.Address) (common.Address, error) {
	if err := c.CheckOwner(caller); err != nil {
		return common.Address{}, err
	}
	if newOwner == (common.Address{}) {
		return common.Address{}, fmt.Errorf("transfer ownership: %w", ErrZeroAddress)
	}
	previous := c.owner
	c.owner = newOwner
	return previous, nil
}
