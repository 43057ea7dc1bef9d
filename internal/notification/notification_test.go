package notification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-scanner-bot/internal/events"
	"market-scanner-bot/internal/models"
)

type captureNotifier struct {
	name     string
	enabled  bool
	received []*Notification
	err      error
}

func (n *captureNotifier) Send(notification *Notification) error {
	n.received = append(n.received, notification)
	return n.err
}

func (n *captureNotifier) Name() string    { return n.name }
func (n *captureNotifier) IsEnabled() bool { return n.enabled }

func TestManagerFansOutToEnabledNotifiers(t *testing.T) {
	m := NewManager()
	on := &captureNotifier{name: "on", enabled: true}
	off := &captureNotifier{name: "off", enabled: false}
	m.AddNotifier(on)
	m.AddNotifier(off)

	require.NoError(t, m.SendAlert("Test", "hello", "info"))

	assert.Len(t, on.received, 1)
	assert.Empty(t, off.received)
}

func TestManagerReturnsLastErrorButDeliversToAll(t *testing.T) {
	m := NewManager()
	failing := &captureNotifier{name: "failing", enabled: true, err: assert.AnError}
	working := &captureNotifier{name: "working", enabled: true}
	m.AddNotifier(failing)
	m.AddNotifier(working)

	err := m.SendAlert("Test", "hello", "info")
	assert.Error(t, err)
	assert.Len(t, working.received, 1)
}

func TestSendSignalFormatsDirection(t *testing.T) {
	m := NewManager()
	sink := &captureNotifier{name: "sink", enabled: true}
	m.AddNotifier(sink)

	require.NoError(t, m.SendSignal("RELIANCE", "SHORT", "orb", "breakdown", 2850, 2865, 2820, 7))

	require.Len(t, sink.received, 1)
	n := sink.received[0]
	assert.Equal(t, NotifySignal, n.Type)
	assert.Contains(t, n.Title, "RELIANCE")
	assert.Contains(t, n.Message, "SHORT")
	assert.Contains(t, n.Message, "7★")
}

func TestTelegramNotifierPostsMessage(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegramNotifier(TelegramConfig{BotToken: "token", ChatID: "42", Enabled: true})
	n.baseURL = srv.URL

	require.NoError(t, n.Send(&Notification{Title: "Alert", Message: "hello", Timestamp: time.Now()}))

	assert.Equal(t, "42", got["chat_id"])
	assert.Contains(t, got["text"], "Alert")
}

func TestTelegramNotifierDisabledWithoutCredentials(t *testing.T) {
	n := NewTelegramNotifier(TelegramConfig{Enabled: true})
	assert.False(t, n.IsEnabled())
	assert.NoError(t, n.Send(&Notification{Title: "dropped"}))
}

func TestDiscordNotifierSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n := NewDiscordNotifier(DiscordConfig{WebhookURL: srv.URL, Enabled: true})
	err := n.Send(&Notification{Title: "Alert", Timestamp: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestSubscriberForwardsBusAlerts(t *testing.T) {
	m := NewManager()
	sink := &captureNotifier{name: "sink", enabled: true}
	m.AddNotifier(sink)

	bus := events.NewBus(zerolog.Nop())
	NewSubscriber(m, zerolog.Nop()).Register(bus)

	bus.Emit(events.AlertMessageEvent{Title: "Circuit Breaker Tripped", Message: "halt", Severity: "critical", At: time.Now()})
	bus.Emit(events.ExitAlertEvent{
		Position:  models.OpenPosition{Symbol: "TCS"},
		LastPrice: 3800,
		Trigger:   "target",
		At:        time.Now(),
	})

	require.Len(t, sink.received, 2)
	assert.Equal(t, NotifyAlert, sink.received[0].Type)
	assert.Contains(t, sink.received[0].Title, "Circuit Breaker Tripped")
	assert.Equal(t, NotifyExit, sink.received[1].Type)
	assert.Equal(t, "TCS", sink.received[1].Symbol)
}
