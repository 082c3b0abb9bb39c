package events

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"priceRegistry/internal/model"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus()
	var got []string

	bus.Subscribe(func(ev model.Event) { got = append(got, "first:"+ev.EventName()) })
	bus.Subscribe(func(ev model.Event) { got = append(got, "second:"+ev.EventName()) })

	bus.Emit(model.AdminSet{Contract: common.HexToAddress("0x01"), Enabled: true})

	require.Equal(t, []string{"first:AdminSet", "second:AdminSet"}, got)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	var count int

	unsubscribe := bus.Subscribe(func(model.Event) { count++ })
	bus.Emit(model.AdminSet{})
	unsubscribe()
	unsubscribe()
	bus.Emit(model.AdminSet{})

	require.Equal(t, 1, count)
}

func TestBusUnsubscribeDuringEmit(t *testing.T) {
	bus := NewBus()
	var calls int
	var unsubscribe func()
	unsubscribe = bus.Subscribe(func(model.Event) {
		calls++
		unsubscribe()
	})

	bus.Emit(model.AdminSet{})
	bus.Emit(model.AdminSet{})

	require.Equal(t, 1, calls)
}
