package host

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"priceRegistry/internal/factory"
	"priceRegistry/internal/feed"
)

type method struct {
	view bool
	run  func(h *Host, target interface{}, tx Tx) ([]string, error)
}

// ownable is the access surface shared by feeds and factories.
type ownable interface {
	Owner() common.Address
	IsAdmin(account common.Address) bool
	SetAdmin(caller, account common.Address, enabled bool) error
	TransferOwnership(caller, newOwner common.Address) error
}

var methods = map[string]method{
	"setAdmin":          {run: callSetAdmin},
	"transferOwnership": {run: callTransferOwnership},
	"setLatestAnswer":   {run: callSetLatestAnswer},
	"setLatestPrice":    {run: callSetLatestPrice},
	"setLatestPrices":   {run: callSetLatestPrices},
	"create":            {run: callCreate},
	"latestRoundData":   {view: true, run: callLatestRoundData},
	"numPricefeeds":     {view: true, run: callNumPricefeeds},
	"pricefeedOwners":   {view: true, run: callPricefeedOwners},
	"owner":             {view: true, run: callOwner},
	"isAdmin":           {view: true, run: callIsAdmin},
	"description":       {view: true, run: callDescription},
}

// IsView reports whether name is a read-only method.
func IsView(name string) bool {
	m, ok := methods[name]
	return ok && m.view
}

// resolve finds the method and the contract it runs against. Must be called with mu held.
func (h *Host) resolve(to common.Address, name string) (method, interface{}, error) {
	var target interface{}
	if f, ok := h.feeds[to]; ok {
		target = f
	} else if f, ok := h.factories[to]; ok {
		target = f
	} else {
		return method{}, nil, fmt.Errorf("%w: %s", ErrUnknownContract, to.Hex())
	}
	m, ok := methods[name]
	if !ok {
		return method{}, nil, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	return m, target, nil
}

func unsupported(target interface{}, name string) error {
	return fmt.Errorf("%w: %s on %T", ErrUnknownMethod, name, target)
}

func wantArgs(tx Tx, n int) error {
	if len(tx.Args) != n {
		return fmt.Errorf("%w: %s takes %d arguments, got %d", ErrInvalidArgs, tx.Method, n, len(tx.Args))
	}
	return nil
}

func parseAddressArg(input string) (common.Address, error) {
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("%w: invalid address %q", ErrInvalidArgs, input)
	}
	return common.HexToAddress(input), nil
}

func parseBoolArg(input string) (bool, error) {
	value, err := strconv.ParseBool(input)
	if err != nil {
		return false, fmt.Errorf("%w: invalid bool %q", ErrInvalidArgs, input)
	}
	return value, nil
}

func callSetAdmin(_ *Host, target interface{}, tx Tx) ([]string, error) {
	c, ok := target.(ownable)
	if !ok {
		return nil, unsupported(target, tx.Method)
	}
	if err := wantArgs(tx, 2); err != nil {
		return nil, err
	}
	account, err := parseAddressArg(tx.Args[0])
	if err != nil {
		return nil, err
	}
	enabled, err := parseBoolArg(tx.Args[1])
	if err != nil {
		return nil, err
	}
	return nil, c.SetAdmin(tx.From, account, enabled)
}

func callTransferOwnership(_ *Host, target interface{}, tx Tx) ([]string, error) {
	c, ok := target.(ownable)
	if !ok {
		return nil, unsupported(target, tx.Method)
	}
	if err := wantArgs(tx, 1); err != nil {
		return nil, err
	}
	newOwner, err := parseAddressArg(tx.Args[0])
	if err != nil {
		return nil, err
	}
	return nil, c.TransferOwnership(tx.From, newOwner)
}

func callSetLatestAnswer(_ *Host, target interface{}, tx Tx) ([]string, error) {
	f, ok := target.(*feed.AnswerFeed)
	if !ok {
		return nil, unsupported(target, tx.Method)
	}
	if err := wantArgs(tx, 1); err != nil {
		return nil, err
	}
	answer, err := feed.ParseAnswer(tx.Args[0])
	if err != nil {
		return nil, err
	}
	return nil, f.SetLatestAnswer(tx.From, answer)
}

func callSetLatestPrice(_ *Host, target interface{}, tx Tx) ([]string, error) {
	f, ok := target.(*feed.SpotFeed)
	if !ok {
		return nil, unsupported(target, tx.Method)
	}
	if err := wantArgs(tx, 1); err != nil {
		return nil, err
	}
	price, err := feed.ParsePrice(tx.Args[0])
	if err != nil {
		return nil, err
	}
	return nil, f.SetLatestPrice(tx.From, price)
}

func callSetLatestPrices(_ *Host, target interface{}, tx Tx) ([]string, error) {
	f, ok := target.(*feed.MarkFeed)
	if !ok {
		return nil, unsupported(target, tx.Method)
	}
	callPrices, err := feed.ParseGrid(tx.CallPrices)
	if err != nil {
		return nil, fmt.Errorf("call prices: %w", err)
	}
	putPrices, err := feed.ParseGrid(tx.PutPrices)
	if err != nil {
		return nil, fmt.Errorf("put prices: %w", err)
	}
	return nil, f.SetLatestPrices(tx.From, callPrices, putPrices)
}

// callCreate takes the description followed by the initial admins.
func callCreate(h *Host, target interface{}, tx Tx) ([]string, error) {
	f, ok := target.(*factory.Factory)
	if !ok {
		return nil, unsupported(target, tx.Method)
	}
	if len(tx.Args) == 0 {
		return nil, fmt.Errorf("%w: create takes a description", ErrInvalidArgs)
	}
	admins := make([]common.Address, 0, len(tx.Args)-1)
	for _, input := range tx.Args[1:] {
		admin, err := parseAddressArg(input)
		if err != nil {
			return nil, err
		}
		admins = append(admins, admin)
	}

	address, err := f.Create(tx.From, tx.Args[0], admins)
	if err != nil {
		return nil, err
	}
	created, ok := f.Feed(address)
	if !ok {
		return nil, fmt.Errorf("factory %s lost feed %s", f.Address().Hex(), address.Hex())
	}
	h.registerFeed(created)
	return []string{address.Hex()}, nil
}

func callLatestRoundData(_ *Host, target interface{}, tx Tx) ([]string, error) {
	switch f := target.(type) {
	case *feed.AnswerFeed:
		if err := wantArgs(tx, 0); err != nil {
			return nil, err
		}
		roundID, answer, startedAt, updatedAt, answeredInRound := f.LatestRoundData5()
		return []string{
			formatUint(roundID),
			answer.String(),
			formatUint(startedAt),
			formatUint(updatedAt),
			formatUint(answeredInRound),
		}, nil
	case *feed.SpotFeed:
		if err := wantArgs(tx, 0); err != nil {
			return nil, err
		}
		roundID, price, updatedAt := f.LatestRoundData()
		return []string{formatUint(roundID), price.ToBig().String(), formatUint(updatedAt)}, nil
	case *feed.MarkFeed:
		if err := wantArgs(tx, 2); err != nil {
			return nil, err
		}
		isCall, err := parseBoolArg(tx.Args[0])
		if err != nil {
			return nil, err
		}
		strikeLevel, err := strconv.ParseUint(tx.Args[1], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid strike level %q", ErrInvalidArgs, tx.Args[1])
		}
		roundID, mark, updatedAt, err := f.LatestRoundData(isCall, uint8(strikeLevel))
		if err != nil {
			return nil, err
		}
		return []string{formatUint(roundID), mark.ToBig().String(), formatUint(updatedAt)}, nil
	default:
		return nil, unsupported(target, tx.Method)
	}
}

func callNumPricefeeds(_ *Host, target interface{}, tx Tx) ([]string, error) {
	f, ok := target.(*factory.Factory)
	if !ok {
		return nil, unsupported(target, tx.Method)
	}
	return []string{formatUint(f.NumPricefeeds())}, nil
}

func callPricefeedOwners(_ *Host, target interface{}, tx Tx) ([]string, error) {
	f, ok := target.(*factory.Factory)
	if !ok {
		return nil, unsupported(target, tx.Method)
	}
	if err := wantArgs(tx, 1); err != nil {
		return nil, err
	}
	pricefeed, err := parseAddressArg(tx.Args[0])
	if err != nil {
		return nil, err
	}
	return []string{f.PricefeedOwner(pricefeed).Hex()}, nil
}

func callOwner(_ *Host, target interface{}, tx Tx) ([]string, error) {
	c, ok := target.(ownable)
	if !ok {
		return nil, unsupported(target, tx.Method)
	}
	return []string{c.Owner().Hex()}, nil
}

func callIsAdmin(_ *Host, target interface{}, tx Tx) ([]string, error) {
	c, ok := target.(ownable)
	if !ok {
		return nil, unsupported(target, tx.Method)
	}
	if err := wantArgs(tx, 1); err != nil {
		return nil, err
	}
	account, err := parseAddressArg(tx.Args[0])
	if err != nil {
		return nil, err
	}
	return []string{strconv.FormatBool(c.IsAdmin(account))}, nil
}

func callDescription(_ *Host, target interface{}, tx Tx) ([]string, error) {
	f, ok := target.(feed.Contract)
	if !ok {
		return nil, unsupported(target, tx.Method)
	}
	return []string{f.Description()}, nil
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
