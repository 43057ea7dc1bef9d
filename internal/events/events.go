package events

import (
	"time"

	"market-scanner-bot/internal/models"
)

// EventType keys handler registration on the bus
type EventType string

const (
	EventStopLossHit  EventType = "STOP_LOSS_HIT"
	EventTradeExited  EventType = "TRADE_EXITED"
	EventExitAlert    EventType = "EXIT_ALERT"
	EventAlertMessage EventType = "ALERT_MESSAGE"
)

// Event is any immutable value dispatched through the bus
type Event interface {
	Type() EventType
}

// StopLossHitEvent is published when a trade exits at its stop loss
type StopLossHitEvent struct {
	Symbol   string    `json:"symbol"`
	Strategy string    `json:"strategy"`
	PnL      float64   `json:"pnl"`
	ExitedAt time.Time `json:"exited_at"`
}

func (StopLossHitEvent) Type() EventType { return EventStopLossHit }

// TradeExitedEvent is published on every trade exit, win or loss
type TradeExitedEvent struct {
	Symbol     string    `json:"symbol"`
	Strategy   string    `json:"strategy"`
	PnL        float64   `json:"pnl"`
	ExitReason string    `json:"exit_reason"` // "stop_loss", "target", "eod", "manual"
	ExitedAt   time.Time `json:"exited_at"`
}

func (TradeExitedEvent) Type() EventType { return EventTradeExited }

// ExitAlertEvent signals that an open position crossed its stop or target
type ExitAlertEvent struct {
	Position  models.OpenPosition `json:"position"`
	LastPrice float64             `json:"last_price"`
	Trigger   string              `json:"trigger"` // "stop_loss" or "target"
	At        time.Time           `json:"at"`
}

func (ExitAlertEvent) Type() EventType { return EventExitAlert }

// AlertMessageEvent carries a human-readable alert for outbound delivery
type AlertMessageEvent struct {
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Severity string    `json:"severity"` // "info", "warning", "critical"
	At       time.Time `json:"at"`
}

func (AlertMessageEvent) Type() EventType { return EventAlertMessage }
