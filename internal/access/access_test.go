package access

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	deployer = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000ff")
)

func TestNewGrantsDeployerAndListedAdmins(t *testing.T) {
	c := New(deployer, owner, admin)

	require.Equal(t, owner, c.Owner())
	require.True(t, c.IsAdmin(deployer))
	require.True(t, c.IsAdmin(admin))
	require.False(t, c.IsAdmin(owner), "owner is not implicitly an admin")
	require.False(t, c.IsAdmin(stranger))
}

func TestSetAdminOwnerOnly(t *testing.T) {
	c := New(deployer, owner)

	err := c.SetAdmin(stranger, stranger, true)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.False(t, c.IsAdmin(stranger))

	// Admins are not owners.
	err = c.SetAdmin(deployer, stranger, true)
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, c.SetAdmin(owner, stranger, true))
	require.True(t, c.IsAdmin(stranger))
}

func TestSetAdminIdempotent(t *testing.T) {
	c := New(deployer, owner)

	require.NoError(t, c.SetAdmin(owner, admin, true))
	once := c.Admins()
	require.NoError(t, c.SetAdmin(owner, admin, true))
	require.Equal(t, once, c.Admins())

	require.NoError(t, c.SetAdmin(owner, admin, false))
	require.NoError(t, c.SetAdmin(owner, admin, false))
	require.False(t, c.IsAdmin(admin))
	require.Equal(t, []common.Address{deployer}, c.Admins())
}

func TestTransferOwnership(t *testing.T) {
	c := New(deployer, owner)

	_, err := c.TransferOwnership(stranger, stranger)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, owner, c.Owner())

	_, err = c.TransferOwnership(owner, common.Address{})
	require.True(t, errors.Is(err, ErrZeroAddress))
	require.Equal(t, owner, c.Owner())

	previous, err := c.TransferOwnership(owner, stranger)
	require.NoError(t, err)
	require.Equal(t, owner, previous)
	require.Equal(t, stranger, c.Owner())
	require.False(t, c.IsAdmin(stranger), "ownership does not grant admin")

	err = c.SetAdmin(owner, admin, true)
	require.ErrorIs(t, err, ErrUnauthorized, "previous owner lost its capability")
}

func TestAdminsSorted(t *testing.T) {
	c := Restore(owner, []common.Address{stranger, admin, deployer})
	require.Equal(t, []common.Address{admin, deployer, stranger}, c.Admins())
}
