package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"priceRegistry/internal/host"
)

// MethodDeploy marks an op that deploys a contract instead of calling one.
const MethodDeploy = "deploy"

// ErrInvalidOp is returned for ops that cannot be turned into a deployment or call.
var ErrInvalidOp = errors.New("invalid op")

// Op is one line of an operations file.
type Op struct {
	From       string   `json:"from"`
	To         string   `json:"to,omitempty"`
	Method     string   `json:"method"`
	Args       []string `json:"args,omitempty"`
	CallPrices []string `json:"call_prices,omitempty"`
	PutPrices  []string `json:"put_prices,omitempty"`
	Timestamp  uint64   `json:"timestamp,omitempty"`

	Kind        string   `json:"kind,omitempty"`
	Owner       string   `json:"owner,omitempty"`
	Description string   `json:"description,omitempty"`
	Admins      []string `json:"admins,omitempty"`
	Variant     string   `json:"variant,omitempty"`
}

// ReadOps parses a JSONL operations stream. Blank lines are skipped.
func ReadOps(r io.Reader) ([]Op, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var ops []Op
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var op Op
		if err := json.Unmarshal(line, &op); err != nil {
			return nil, fmt.Errorf("line %d: %w: %v", lineNo, ErrInvalidOp, err)
		}
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ops: %w", err)
	}
	return ops, nil
}

// IsDeploy reports whether op deploys a contract.
func (op Op) IsDeploy() bool {
	return strings.EqualFold(op.Method, MethodDeploy)
}

// DeployArgs converts a deploy op.
func (op Op) DeployArgs() (common.Address, host.DeployArgs, error) {
	from, err := parseAddress("from", op.From)
	if err != nil {
		return common.Address{}, host.DeployArgs{}, err
	}
	if op.Kind == "" {
		return common.Address{}, host.DeployArgs{}, fmt.Errorf("%w: deploy without kind", ErrInvalidOp)
	}
	var owner common.Address
	if op.Owner != "" {
		owner, err = parseAddress("owner", op.Owner)
		if err != nil {
			return common.Address{}, host.DeployArgs{}, err
		}
	}
	admins, err := ParseAddresses(op.Admins)
	if err != nil {
		return common.Address{}, host.DeployArgs{}, fmt.Errorf("%w: %v", ErrInvalidOp, err)
	}
	return from, host.DeployArgs{
		Kind:        strings.ToLower(op.Kind),
		Owner:       owner,
		Description: op.Description,
		Admins:      admins,
		Variant:     op.Variant,
		Timestamp:   op.Timestamp,
	}, nil
}

// Tx converts a call op.
func (op Op) Tx() (host.Tx, error) {
	if op.Method == "" {
		return host.Tx{}, fmt.Errorf("%w: missing method", ErrInvalidOp)
	}
	to, err := parseAddress("to", op.To)
	if err != nil {
		return host.Tx{}, err
	}
	var from common.Address
	if op.From != "" {
		from, err = parseAddress("from", op.From)
		if err != nil {
			return host.Tx{}, err
		}
	}
	return host.Tx{
		From:       from,
		To:         to,
		Method:     op.Method,
		Args:       op.Args,
		CallPrices: op.CallPrices,
		PutPrices:  op.PutPrices,
		Timestamp:  op.Timestamp,
	}, nil
}

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}

func parseAddress(field, input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("%w: invalid %s address %q", ErrInvalidOp, field, input)
	}
	return common.HexToAddress(input), nil
}
