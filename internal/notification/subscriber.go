package notification

import (
	"github.com/rs/zerolog"

	"market-scanner-bot/internal/events"
)

// Subscriber bridges bus events to outbound notifications
type Subscriber struct {
	manager *Manager
	logger  zerolog.Logger
}

// NewSubscriber creates a bus-to-notification bridge
func NewSubscriber(manager *Manager, logger zerolog.Logger) *Subscriber {
	return &Subscriber{
		manager: manager,
		logger:  logger.With().Str("component", "NotificationSubscriber").Logger(),
	}
}

// Register attaches the subscriber's handlers to the bus
func (s *Subscriber) Register(bus *events.Bus) {
	bus.Subscribe(events.EventAlertMessage, s.onAlert)
	bus.Subscribe(events.EventExitAlert, s.onExitAlert)
	bus.Subscribe(events.EventTradeExited, s.onTradeExited)
}

func (s *Subscriber) onAlert(e events.Event) {
	alert, ok := e.(events.AlertMessageEvent)
	if !ok {
		return
	}
	if err := s.manager.SendAlert(alert.Title, alert.Message, alert.Severity); err != nil {
		s.logger.Error().Err(err).Str("title", alert.Title).Msg("Failed to deliver alert")
	}
}

func (s *Subscriber) onExitAlert(e events.Event) {
	alert, ok := e.(events.ExitAlertEvent)
	if !ok {
		return
	}
	if err := s.manager.SendExitAlert(alert.Position.Symbol, alert.Trigger, alert.LastPrice); err != nil {
		s.logger.Error().Err(err).Str("symbol", alert.Position.Symbol).Msg("Failed to deliver exit alert")
	}
}

func (s *Subscriber) onTradeExited(e events.Event) {
	exit, ok := e.(events.TradeExitedEvent)
	if !ok {
		return
	}
	severity := "info"
	if exit.PnL < 0 {
		severity = "warning"
	}
	msg := exit.Symbol + " (" + exit.Strategy + ") exited via " + exit.ExitReason
	if err := s.manager.SendAlert("Trade exited", msg, severity); err != nil {
		s.logger.Error().Err(err).Str("symbol", exit.Symbol).Msg("Failed to deliver exit notification")
	}
}
