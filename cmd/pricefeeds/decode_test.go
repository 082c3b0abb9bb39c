package main

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"priceRegistry/internal/contracts"
	"priceRegistry/internal/model"
)

type memoryWriter struct {
	values []interface{}
}

func (m *memoryWriter) Write(value interface{}) error {
	m.values = append(m.values, value)
	return nil
}

func TestDecodeStream(t *testing.T) {
	encoder, err := contracts.NewEncoder()
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	decoder, err := contracts.NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	feedAddr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	answer, err := encoder.Encode(model.AnswerUpdated{Feed: feedAddr, Current: big.NewInt(5), RoundID: 1, UpdatedAt: 10}, contracts.LogContext{BlockNumber: 1})
	if err != nil {
		t.Fatalf("encode answer: %v", err)
	}
	admin, err := encoder.Encode(model.AdminSet{Contract: feedAddr, Account: feedAddr, Enabled: true}, contracts.LogContext{BlockNumber: 2})
	if err != nil {
		t.Fatalf("encode admin: %v", err)
	}

	var lines []string
	for _, record := range []model.LogRecord{answer, admin} {
		line, err := json.Marshal(record)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		lines = append(lines, string(line))
	}
	lines = append(lines,
		"",
		"{broken",
		`{"topics":["0x0000000000000000000000000000000000000000000000000000000000000001"]}`,
		`{"topics":[]}`,
	)

	out := &memoryWriter{}
	errs := &memoryWriter{}
	stats, err := decodeStream(strings.NewReader(strings.Join(lines, "\n")), decoder, eventFilter([]string{"answerupdated"}), out, errs)
	if err != nil {
		t.Fatalf("decode stream: %v", err)
	}

	if stats.total != 5 || stats.decoded != 1 || stats.skipped != 2 || stats.failed != 2 {
		t.Fatalf("stats mismatch: %+v", stats)
	}
	event, ok := out.values[0].(*model.TypedEvent)
	if !ok || event.EventName != "AnswerUpdated" {
		t.Fatalf("unexpected output: %+v", out.values)
	}
	if len(errs.values) != 2 || errs.values[0].(model.DecodeError).Line != 4 {
		t.Fatalf("unexpected errors: %+v", errs.values)
	}
}
