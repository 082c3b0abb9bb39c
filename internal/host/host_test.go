package host

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"priceRegistry/internal/access"
	"priceRegistry/internal/contracts"
	"priceRegistry/internal/feed"
	"priceRegistry/internal/model"
)

var (
	deployer = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000ff")
)

func newTestHost(t *testing.T) *Host {
	t.Helper()
	h, err := New(Config{
		ChainID: 31337,
		Clock:   func() time.Time { return time.Unix(1700000000, 0) },
	})
	require.NoError(t, err)
	return h
}

func deploy(t *testing.T, h *Host, args DeployArgs) common.Address {
	t.Helper()
	receipt, err := h.Deploy(deployer, args)
	require.NoError(t, err)
	require.True(t, receipt.Succeeded())
	return receipt.ContractAddress
}

func TestDeployDerivesAddressesFromNonce(t *testing.T) {
	h := newTestHost(t)

	first := deploy(t, h, DeployArgs{Kind: "answer", Owner: owner, Description: "ETH / USD"})
	second := deploy(t, h, DeployArgs{Kind: "mark", Description: "ETH marks"})

	require.Equal(t, crypto.CreateAddress(deployer, 0), first)
	require.Equal(t, crypto.CreateAddress(deployer, 1), second)
	require.Equal(t, uint64(2), h.BlockNumber())

	markFeed, ok := h.Feed(second)
	require.True(t, ok)
	require.Equal(t, deployer, markFeed.Owner())

	_, err := h.Deploy(deployer, DeployArgs{Kind: "token"})
	require.Error(t, err)
}

func TestAnswerFeedThroughCalls(t *testing.T) {
	h := newTestHost(t)
	address := deploy(t, h, DeployArgs{
		Kind:        "answer",
		Owner:       owner,
		Description: "ETH / USD",
		Admins:      []common.Address{admin},
	})

	receipt, err := h.Call(Tx{From: owner, To: address, Method: "setLatestAnswer", Args: []string{"1000000000000000000"}, Timestamp: 1700000100})
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	require.Len(t, receipt.Logs, 1)
	require.Equal(t, uint64(1700000100), receipt.Timestamp)

	decoder, err := contracts.NewDecoder()
	require.NoError(t, err)
	typed, err := decoder.Decode(receipt.Logs[0])
	require.NoError(t, err)
	require.Equal(t, model.AnswerUpdatedData{Current: "1000000000000000000", RoundID: 1, UpdatedAt: 1700000100}, typed.Decoded)

	receipt, err = h.Call(Tx{From: stranger, To: address, Method: "setLatestAnswer", Args: []string{"5"}})
	require.ErrorIs(t, err, access.ErrUnauthorized)
	require.Equal(t, types.ReceiptStatusFailed, receipt.Status)
	require.Empty(t, receipt.Logs)

	receipt, err = h.Call(Tx{From: stranger, To: address, Method: "latestRoundData"})
	require.NoError(t, err)
	require.Equal(t, []string{"1", "1000000000000000000", "1700000100", "1700000100", "1"}, receipt.Output)
	require.Equal(t, common.Hash{}, receipt.TxHash)
}

func TestBlockTimeNeverDecreases(t *testing.T) {
	h := newTestHost(t)
	address := deploy(t, h, DeployArgs{Kind: "spot", Description: "BTC spot"})

	first, err := h.Call(Tx{From: deployer, To: address, Method: "setLatestPrice", Args: []string{"10"}, Timestamp: 1700000500})
	require.NoError(t, err)
	second, err := h.Call(Tx{From: deployer, To: address, Method: "setLatestPrice", Args: []string{"11"}, Timestamp: 1700000400})
	require.NoError(t, err)

	require.Equal(t, first.Timestamp, second.Timestamp)
	require.NotEqual(t, first.TxHash, second.TxHash)
	require.NotEqual(t, first.BlockHash, second.BlockHash)
}

func TestMarkFeedThroughCalls(t *testing.T) {
	h := newTestHost(t)
	address := deploy(t, h, DeployArgs{Kind: "mark", Description: "ETH marks"})

	calls := []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}
	puts := []string{"20", "21", "22", "23", "24", "25", "26", "27", "28", "29", "30"}

	_, err := h.Call(Tx{From: deployer, To: address, Method: "setLatestPrices", CallPrices: calls, PutPrices: puts[:10]})
	require.ErrorIs(t, err, feed.ErrGridSize)

	receipt, err := h.Call(Tx{From: deployer, To: address, Method: "setLatestPrices", CallPrices: calls, PutPrices: puts})
	require.NoError(t, err)
	require.Len(t, receipt.Logs, 1)

	receipt, err = h.Call(Tx{To: address, Method: "latestRoundData", Args: []string{"false", "10"}})
	require.NoError(t, err)
	require.Equal(t, "30", receipt.Output[1])
	require.Equal(t, "1", receipt.Output[0])

	_, err = h.Call(Tx{To: address, Method: "latestRoundData", Args: []string{"true", "11"}})
	require.ErrorIs(t, err, feed.ErrInvalidStrikeLevel)
}

func TestFactoryThroughCalls(t *testing.T) {
	h := newTestHost(t)
	factoryAddr := deploy(t, h, DeployArgs{Kind: KindFactory, Owner: owner, Variant: "spot"})

	_, err := h.Call(Tx{From: stranger, To: factoryAddr, Method: "create", Args: []string{"ETH spot"}})
	require.ErrorIs(t, err, access.ErrUnauthorized)

	var created []common.Address
	for _, description := range []string{"ETH spot", "BTC spot"} {
		receipt, err := h.Call(Tx{From: owner, To: factoryAddr, Method: "create", Args: []string{description, admin.Hex()}})
		require.NoError(t, err)
		require.Len(t, receipt.Logs, 1)
		require.Equal(t, factoryAddr.Hex(), receipt.Logs[0].Address)
		created = append(created, common.HexToAddress(receipt.Output[0]))
	}
	require.NotEqual(t, created[0], created[1])

	receipt, err := h.Call(Tx{To: factoryAddr, Method: "numPricefeeds"})
	require.NoError(t, err)
	require.Equal(t, []string{"2"}, receipt.Output)

	receipt, err = h.Call(Tx{To: factoryAddr, Method: "pricefeedOwners", Args: []string{created[1].Hex()}})
	require.NoError(t, err)
	require.Equal(t, []string{owner.Hex()}, receipt.Output)

	_, err = h.Call(Tx{From: admin, To: created[0], Method: "setLatestPrice", Args: []string{"3000"}})
	require.NoError(t, err)
	receipt, err = h.Call(Tx{To: created[0], Method: "latestRoundData"})
	require.NoError(t, err)
	require.Equal(t, "3000", receipt.Output[1])
}

func TestCallErrors(t *testing.T) {
	h := newTestHost(t)
	address := deploy(t, h, DeployArgs{Kind: "spot"})

	_, err := h.Call(Tx{To: stranger, Method: "owner"})
	require.ErrorIs(t, err, ErrUnknownContract)

	_, err = h.Call(Tx{To: address, Method: "selfdestruct"})
	require.ErrorIs(t, err, ErrUnknownMethod)

	receipt, err := h.Call(Tx{From: deployer, To: address, Method: "setLatestAnswer", Args: []string{"1"}})
	require.ErrorIs(t, err, ErrUnknownMethod)
	require.False(t, receipt.Succeeded())

	_, err = h.Call(Tx{From: deployer, To: address, Method: "setAdmin", Args: []string{"nope", "true"}})
	require.ErrorIs(t, err, ErrInvalidArgs)

	_, err = h.Call(Tx{From: deployer, To: address, Method: "transferOwnership", Args: []string{common.Address{}.Hex()}})
	require.ErrorIs(t, err, access.ErrZeroAddress)
}

func TestSnapshotRestore(t *testing.T) {
	h := newTestHost(t)
	answerAddr := deploy(t, h, DeployArgs{Kind: "answer", Owner: owner})
	factoryAddr := deploy(t, h, DeployArgs{Kind: KindFactory})
	_, err := h.Call(Tx{From: owner, To: answerAddr, Method: "setLatestAnswer", Args: []string{"-7"}})
	require.NoError(t, err)
	receipt, err := h.Call(Tx{From: deployer, To: factoryAddr, Method: "create", Args: []string{"child"}})
	require.NoError(t, err)
	child := common.HexToAddress(receipt.Output[0])

	snapshot := h.Snapshot()
	encoded, err := json.Marshal(snapshot)
	require.NoError(t, err)
	var decoded model.HostState
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	restored, err := Restore(decoded, Config{Clock: func() time.Time { return time.Unix(1700000000, 0) }})
	require.NoError(t, err)
	require.Equal(t, snapshot, restored.Snapshot())

	receipt, err = restored.Call(Tx{To: factoryAddr, Method: "pricefeedOwners", Args: []string{child.Hex()}})
	require.NoError(t, err)
	require.Equal(t, []string{deployer.Hex()}, receipt.Output)

	next, err := restored.Deploy(deployer, DeployArgs{Kind: "spot"})
	require.NoError(t, err)
	require.Equal(t, crypto.CreateAddress(deployer, 3), next.ContractAddress)
}

func TestFactoryAndDeploySenderShareNonce(t *testing.T) {
	h := newTestHost(t)
	factoryAddr := deploy(t, h, DeployArgs{Kind: KindFactory, Owner: owner})

	// deployments sent from the factory address walk the same nonce sequence
	var deployed []common.Address
	for i := 0; i < 2; i++ {
		receipt, err := h.Deploy(factoryAddr, DeployArgs{Kind: "spot", Description: "direct"})
		require.NoError(t, err)
		deployed = append(deployed, receipt.ContractAddress)
	}

	receipt, err := h.Call(Tx{From: owner, To: factoryAddr, Method: "create", Args: []string{"child"}})
	require.NoError(t, err)
	child := common.HexToAddress(receipt.Output[0])
	require.NotContains(t, deployed, child)
	require.Equal(t, crypto.CreateAddress(factoryAddr, 2), child)

	direct, ok := h.Feed(deployed[1])
	require.True(t, ok)
	require.Equal(t, "direct", direct.Description())
	created, ok := h.Feed(child)
	require.True(t, ok)
	require.Equal(t, "child", created.Description())

	next, err := h.Deploy(factoryAddr, DeployArgs{Kind: "spot"})
	require.NoError(t, err)
	require.Equal(t, crypto.CreateAddress(factoryAddr, 3), next.ContractAddress)

	restored, err := Restore(h.Snapshot(), Config{Clock: func() time.Time { return time.Unix(1700000000, 0) }})
	require.NoError(t, err)
	require.Len(t, restored.Snapshot().Feeds, 4)
}

func TestFactoryCreateRejectsOccupiedAddress(t *testing.T) {
	h := newTestHost(t)
	factoryAddr := deploy(t, h, DeployArgs{Kind: KindFactory, Owner: owner})
	f, ok := h.Factory(factoryAddr)
	require.True(t, ok)

	// a feed already sitting where the factory would create next
	taken := crypto.CreateAddress(factoryAddr, 1)
	h.registerFeed(feed.NewSpotFeed(deployer, deployer, "occupant", nil, h.contractOptions(taken)))

	receipt, err := h.Call(Tx{From: owner, To: factoryAddr, Method: "create", Args: []string{"child"}})
	require.ErrorIs(t, err, ErrAddressInUse)
	require.False(t, receipt.Succeeded())
	require.Equal(t, uint64(0), f.NumPricefeeds())

	occupant, ok := h.Feed(taken)
	require.True(t, ok)
	require.Equal(t, "occupant", occupant.Description())

	receipt, err = h.Call(Tx{From: owner, To: factoryAddr, Method: "create", Args: []string{"child"}})
	require.NoError(t, err)
	require.Equal(t, crypto.CreateAddress(factoryAddr, 2).Hex(), receipt.Output[0])
	require.Equal(t, uint64(1), f.NumPricefeeds())
}

type unknownEvent struct{ contract common.Address }

func (e unknownEvent) EventName() string      { return "Unknown" }
func (e unknownEvent) Source() common.Address { return e.contract }

func TestFinishBlockFailsOnUnencodableEvent(t *testing.T) {
	h := newTestHost(t)
	address := deploy(t, h, DeployArgs{Kind: "spot"})

	receipt := h.beginBlock(deployer, address, "setLatestPrice", 1, 0, nil)
	h.pending = append(h.pending,
		model.AdminSet{Contract: address, Account: admin, Enabled: true},
		unknownEvent{contract: address},
	)
	err := h.finishBlock(&receipt, nil)
	require.ErrorIs(t, err, ErrLogEncoding)
	require.False(t, receipt.Succeeded())
	require.Empty(t, receipt.Logs)
	require.Contains(t, receipt.Error, "Unknown")
}
