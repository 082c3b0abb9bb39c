package feed

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

var (
	// ErrInvalidStrikeLevel is returned for strike levels outside [0, StrikeLevels).
	ErrInvalidStrikeLevel = errors.New("invalid strike level")
	// ErrValueRange is returned for answers that do not fit in int256.
	ErrValueRange = errors.New("value out of range")
	// ErrGridSize is returned when a grid does not carry exactly StrikeLevels prices.
	ErrGridSize = errors.New("invalid grid size")
)

var (
	maxInt256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
	minInt256 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255))
)

func checkInt256(value *big.Int) error {
	if value == nil {
		return fmt.Errorf("%w: nil answer", ErrValueRange)
	}
	if value.Cmp(minInt256) < 0 || value.Cmp(maxInt256) > 0 {
		return fmt.Errorf("%w: %s does not fit int256", ErrValueRange, value.String())
	}
	return nil
}

// ParseAnswer parses a signed decimal or 0x-prefixed hex answer.
func ParseAnswer(input string) (*big.Int, error) {
	input = strings.TrimSpace(input)
	negative := strings.HasPrefix(input, "-")
	digits := strings.TrimPrefix(input, "-")

	var value *big.Int
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		parsed, err := hexutil.DecodeBig(digits)
		if err != nil {
			return nil, fmt.Errorf("invalid answer %q: %w", input, err)
		}
		value = parsed
	} else {
		parsed, ok := new(big.Int).SetString(digits, 10)
		if !ok {
			return nil, fmt.Errorf("invalid answer %q", input)
		}
		value = parsed
	}
	if negative {
		value.Neg(value)
	}
	if err := checkInt256(value); err != nil {
		return nil, err
	}
	return value, nil
}

// ParsePrice parses an unsigned decimal or 0x-prefixed hex price.
func ParsePrice(input string) (*uint256.Int, error) {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "0x") || strings.HasPrefix(input, "0X") {
		value, err := uint256.FromHex(input)
		if err != nil {
			return nil, fmt.Errorf("invalid price %q: %w", input, err)
		}
		return value, nil
	}

	parsed, ok := new(big.Int).SetString(input, 10)
	if !ok {
		return nil, fmt.Errorf("invalid price %q", input)
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative price %s", ErrValueRange, input)
	}
	value, overflow := uint256.FromBig(parsed)
	if overflow {
		return nil, fmt.Errorf("%w: %s does not fit uint256", ErrValueRange, input)
	}
	return value, nil
}

// ParseGrid parses exactly StrikeLevels prices.
func ParseGrid(inputs []string) ([StrikeLevels]uint256.Int, error) {
	var grid [StrikeLevels]uint256.Int
	if len(inputs) != StrikeLevels {
		return grid, fmt.Errorf("%w: got %d prices, want %d", ErrGridSize, len(inputs), StrikeLevels)
	}
	for i, input := range inputs {
		price, err := ParsePrice(input)
		if err != nil {
			return grid, fmt.Errorf("strike %d: %w", i, err)
		}
		grid[i] = *price
	}
	return grid, nil
}

// FormatGrid renders grid prices as decimal strings.
func FormatGrid(grid [StrikeLevels]uint256.Int) []string {
	out := make([]string, 0, StrikeLevels)
	for i := range grid {
		out = append(out, grid[i].ToBig().String())
	}
	return out
}
