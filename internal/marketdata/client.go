package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"market-scanner-bot/internal/models"
	"market-scanner-bot/internal/ratelimit"
	"market-scanner-bot/internal/strategy"
)

// Client fetches quotes and intraday candles from an HTTP market data
// vendor. Every request passes through the rate limiter first.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	logger     zerolog.Logger

	mu    sync.RWMutex
	cache map[string]cachedSnapshot
	ttl   time.Duration
}

type cachedSnapshot struct {
	data      strategy.MarketData
	fetchedAt time.Time
}

type quoteResponse struct {
	Symbol    string  `json:"symbol"`
	LastPrice float64 `json:"last_price"`
	DayOpen   float64 `json:"day_open"`
	PrevClose float64 `json:"prev_close"`
	VWAP      float64 `json:"vwap"`
}

type candleResponse struct {
	Candles []struct {
		OpenTime int64   `json:"open_time"` // unix millis
		Open     float64 `json:"open"`
		High     float64 `json:"high"`
		Low      float64 `json:"low"`
		Close    float64 `json:"close"`
		Volume   float64 `json:"volume"`
	} `json:"candles"`
}

// NewClient creates a market data client. The limiter is required; the
// vendor enforces both per-second and per-minute quotas.
func NewClient(baseURL string, limiter *ratelimit.Limiter, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: limiter,
		logger:  logger.With().Str("component", "MarketData").Logger(),
		cache:   make(map[string]cachedSnapshot),
		ttl:     5 * time.Second,
	}
}

// Snapshot returns the current market view for one symbol. Snapshots
// are cached briefly so the exit monitor and strategy stages within a
// cycle do not double-fetch.
func (c *Client) Snapshot(ctx context.Context, symbol string) (strategy.MarketData, error) {
	c.mu.RLock()
	if cached, ok := c.cache[symbol]; ok && time.Since(cached.fetchedAt) < c.ttl {
		c.mu.RUnlock()
		return cached.data, nil
	}
	c.mu.RUnlock()

	quote, err := c.fetchQuote(ctx, symbol)
	if err != nil {
		return strategy.MarketData{}, err
	}
	candles, err := c.fetchCandles(ctx, symbol, "5m")
	if err != nil {
		return strategy.MarketData{}, err
	}

	data := strategy.MarketData{
		Symbol:    symbol,
		LastPrice: quote.LastPrice,
		DayOpen:   quote.DayOpen,
		PrevClose: quote.PrevClose,
		VWAP:      quote.VWAP,
		Candles:   candles,
	}

	c.mu.Lock()
	c.cache[symbol] = cachedSnapshot{data: data, fetchedAt: time.Now()}
	c.mu.Unlock()
	return data, nil
}

func (c *Client) fetchQuote(ctx context.Context, symbol string) (*quoteResponse, error) {
	var quote quoteResponse
	endpoint := fmt.Sprintf("%s/v1/quote?symbol=%s", c.baseURL, url.QueryEscape(symbol))
	if err := c.getJSON(ctx, endpoint, &quote); err != nil {
		return nil, fmt.Errorf("fetch quote %s: %w", symbol, err)
	}
	return &quote, nil
}

func (c *Client) fetchCandles(ctx context.Context, symbol, interval string) ([]models.Candle, error) {
	var resp candleResponse
	endpoint := fmt.Sprintf("%s/v1/candles?symbol=%s&interval=%s", c.baseURL, url.QueryEscape(symbol), interval)
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("fetch candles %s: %w", symbol, err)
	}

	candles := make([]models.Candle, 0, len(resp.Candles))
	for _, rc := range resp.Candles {
		candles = append(candles, models.Candle{
			OpenTime: time.UnixMilli(rc.OpenTime),
			Open:     rc.Open,
			High:     rc.High,
			Low:      rc.Low,
			Close:    rc.Close,
			Volume:   rc.Volume,
		})
	}
	return candles, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
