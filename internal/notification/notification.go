package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifySignal NotificationType = "signal"
	NotifyExit   NotificationType = "exit"
	NotifyAlert  NotificationType = "alert"
	NotifyError  NotificationType = "error"
)

// Notification represents an outbound message
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Symbol    string
	Severity  string // "info", "warning", "critical"
	Timestamp time.Time
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager fans a notification out to all enabled providers
type Manager struct {
	notifiers []Notifier
	enabled   bool
}

// NewManager creates a new notification manager
func NewManager() *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
		enabled:   true,
	}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send sends a notification to all enabled providers
func (m *Manager) Send(notification *Notification) error {
	if !m.enabled {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			if err := n.Send(notification); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// SendSignal sends a scan signal notification
func (m *Manager) SendSignal(symbol, direction, strategy, reason string, entry, stopLoss, target float64, stars int) error {
	emoji := "🟢"
	if direction == "SHORT" {
		emoji = "🔴"
	}

	return m.Send(&Notification{
		Type:  NotifySignal,
		Title: fmt.Sprintf("%s %s signal: %s", emoji, strategy, symbol),
		Message: fmt.Sprintf("%s %s @ %.2f\nSL: %.2f | Target: %.2f | %d★\nReason: %s",
			direction, symbol, entry, stopLoss, target, stars, reason),
		Symbol:    symbol,
		Severity:  "info",
		Timestamp: time.Now(),
	})
}

// SendExitAlert sends a stop/target crossing alert
func (m *Manager) SendExitAlert(symbol, trigger string, lastPrice float64) error {
	emoji := "✅"
	if trigger == "stop_loss" {
		emoji = "❌"
	}

	return m.Send(&Notification{
		Type:      NotifyExit,
		Title:     fmt.Sprintf("%s Exit level crossed: %s", emoji, symbol),
		Message:   fmt.Sprintf("%s crossed its %s at %.2f", symbol, trigger, lastPrice),
		Symbol:    symbol,
		Severity:  "warning",
		Timestamp: time.Now(),
	})
}

// SendAlert forwards a risk-control alert
func (m *Manager) SendAlert(title, message, severity string) error {
	emoji := "ℹ️"
	switch severity {
	case "warning":
		emoji = "⚠️"
	case "critical":
		emoji = "🚨"
	}

	return m.Send(&Notification{
		Type:      NotifyAlert,
		Title:     fmt.Sprintf("%s %s", emoji, title),
		Message:   message,
		Severity:  severity,
		Timestamp: time.Now(),
	})
}

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

// TelegramNotifier sends notifications via Telegram
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
	baseURL  string
}

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
	Enabled  bool   `json:"enabled"`
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: config.BotToken,
		chatID:   config.ChatID,
		enabled:  config.Enabled && config.BotToken != "" && config.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURL:  "https://api.telegram.org",
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(notification *Notification) error {
	if !t.enabled {
		return nil
	}

	message := fmt.Sprintf("*%s*\n\n%s", notification.Title, notification.Message)

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       message,
		"parse_mode": "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// =============================================================================
// DISCORD NOTIFIER
// =============================================================================

// DiscordNotifier sends notifications via Discord webhook
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// DiscordConfig holds Discord configuration
type DiscordConfig struct {
	WebhookURL string `json:"webhook_url"`
	Enabled    bool   `json:"enabled"`
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: config.WebhookURL,
		enabled:    config.Enabled && config.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) IsEnabled() bool {
	return d.enabled
}

func (d *DiscordNotifier) Send(notification *Notification) error {
	if !d.enabled {
		return nil
	}

	color := 0x00FF00
	switch notification.Severity {
	case "warning":
		color = 0xFFA500
	case "critical":
		color = 0xFF0000
	}

	embed := map[string]interface{}{
		"title":       notification.Title,
		"description": notification.Message,
		"color":       color,
		"timestamp":   notification.Timestamp.Format(time.RFC3339),
	}
	if notification.Symbol != "" {
		embed["fields"] = []map[string]interface{}{
			{"name": "Symbol", "value": notification.Symbol, "inline": true},
		}
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}

	return nil
}
