package events

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestEmitDispatchesInRegistrationOrder(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var order []int
	bus.Subscribe(EventAlertMessage, func(Event) { order = append(order, 1) })
	bus.Subscribe(EventAlertMessage, func(Event) { order = append(order, 2) })
	bus.Subscribe(EventAlertMessage, func(Event) { order = append(order, 3) })

	bus.Emit(AlertMessageEvent{Title: "test", At: time.Now()})

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestEmitIsolatesPanickingHandler(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	secondRan := false
	bus.Subscribe(EventStopLossHit, func(Event) { panic("handler failure") })
	bus.Subscribe(EventStopLossHit, func(Event) { secondRan = true })

	assert.NotPanics(t, func() {
		bus.Emit(StopLossHitEvent{Symbol: "RELIANCE", Strategy: "orb", PnL: -500})
	})
	assert.True(t, secondRan, "handler after a panicking one should still run")
}

func TestHandlerCountTracksSubscribeUnsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	assert.Equal(t, 0, bus.HandlerCount(EventTradeExited))

	t1 := bus.Subscribe(EventTradeExited, func(Event) {})
	t2 := bus.Subscribe(EventTradeExited, func(Event) {})
	assert.Equal(t, 2, bus.HandlerCount(EventTradeExited))

	bus.Unsubscribe(EventTradeExited, t1)
	assert.Equal(t, 1, bus.HandlerCount(EventTradeExited))

	bus.Unsubscribe(EventTradeExited, t2)
	assert.Equal(t, 0, bus.HandlerCount(EventTradeExited))

	// Unknown token is a no-op
	bus.Unsubscribe(EventTradeExited, 999)
	assert.Equal(t, 0, bus.HandlerCount(EventTradeExited))
}

func TestEmitOnlyReachesMatchingType(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var exits, alerts int
	bus.Subscribe(EventTradeExited, func(Event) { exits++ })
	bus.Subscribe(EventAlertMessage, func(Event) { alerts++ })

	bus.Emit(TradeExitedEvent{Symbol: "TCS", Strategy: "vwap_reversion", PnL: 120})

	assert.Equal(t, 1, exits)
	assert.Equal(t, 0, alerts)
}

func TestHandlerReceivesTypedEvent(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got StopLossHitEvent
	bus.Subscribe(EventStopLossHit, func(e Event) {
		got = e.(StopLossHitEvent)
	})

	bus.Emit(StopLossHitEvent{Symbol: "INFY", Strategy: "momentum", PnL: -750})

	assert.Equal(t, "INFY", got.Symbol)
	assert.Equal(t, -750.0, got.PnL)
}
