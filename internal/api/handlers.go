package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"market-scanner-bot/internal/circuit"
	"market-scanner-bot/internal/events"
)

// handleStatus reports scanner, breaker and adaptive state
func (s *Server) handleStatus(c *gin.Context) {
	cfg := s.store.Snapshot()

	status := gin.H{
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"scanner": gin.H{
			"enabled":       cfg.ScannerConfig.Enabled,
			"scan_interval": cfg.ScannerConfig.ScanInterval,
			"watchlist":     cfg.ScannerConfig.Watchlist,
		},
		"trading": gin.H{
			"total_capital":      cfg.TradingConfig.TotalCapital,
			"max_positions":      cfg.TradingConfig.MaxPositions,
			"enabled_strategies": cfg.TradingConfig.EnabledStrategies,
		},
	}

	if s.breaker != nil {
		status["circuit_breaker"] = s.breaker.Snapshot()
	}
	if s.adaptive != nil {
		status["adaptive_levels"] = s.adaptive.Levels()
	}
	if s.scheduler != nil {
		if latest := s.scheduler.Latest(); latest != nil {
			status["last_cycle"] = gin.H{
				"cycle_id":          latest.CycleID,
				"timestamp":         latest.Timestamp,
				"phase":             latest.Phase,
				"accepting_signals": latest.AcceptingSignals,
				"candidates":        len(latest.Candidates),
				"ranked":            len(latest.Ranked),
			}
		}
	}

	c.JSON(http.StatusOK, status)
}

// handleLatestSignals returns recently persisted signals
func (s *Server) handleLatestSignals(c *gin.Context) {
	if s.signals == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal persistence is disabled"})
		return
	}

	records, err := s.signals.LatestSignals(c.Request.Context(), 50)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load latest signals")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load signals"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": records, "count": len(records)})
}

// handleBreakerOverride disables a tripped breaker for the day
func (s *Server) handleBreakerOverride(c *gin.Context) {
	if s.breaker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "circuit breaker is disabled"})
		return
	}

	err := s.breaker.Override(c.Request.Context())
	switch {
	case errors.Is(err, circuit.ErrNotTripped):
		c.JSON(http.StatusConflict, gin.H{"error": "circuit breaker is not tripped"})
	case err != nil:
		s.logger.Error().Err(err).Msg("Breaker override failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "overridden", "breaker": s.breaker.Snapshot()})
	}
}

type tradeExitRequest struct {
	Symbol     string  `json:"symbol" binding:"required"`
	Strategy   string  `json:"strategy" binding:"required"`
	PnL        float64 `json:"pnl"`
	ExitReason string  `json:"exit_reason" binding:"required"`
}

// handleTradeExit feeds an externally executed trade exit into the
// risk controls via the event bus.
func (s *Server) handleTradeExit(c *gin.Context) {
	var req tradeExitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	s.bus.Emit(events.TradeExitedEvent{
		Symbol:     req.Symbol,
		Strategy:   req.Strategy,
		PnL:        req.PnL,
		ExitReason: req.ExitReason,
		ExitedAt:   now,
	})
	if req.ExitReason == "stop_loss" {
		s.bus.Emit(events.StopLossHitEvent{
			Symbol:   req.Symbol,
			Strategy: req.Strategy,
			PnL:      req.PnL,
			ExitedAt: now,
		})
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}

type capitalRequest struct {
	TotalCapital float64 `json:"total_capital" binding:"required"`
	MaxPositions int     `json:"max_positions"`
}

// handleSetCapital mutates the capital settings; the next cycle picks
// them up.
func (s *Server) handleSetCapital(c *gin.Context) {
	var req capitalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.TotalCapital <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "total_capital must be positive"})
		return
	}

	s.store.SetTotalCapital(req.TotalCapital)
	if req.MaxPositions > 0 {
		s.store.SetMaxPositions(req.MaxPositions)
	}

	cfg := s.store.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"total_capital": cfg.TradingConfig.TotalCapital,
		"max_positions": cfg.TradingConfig.MaxPositions,
	})
}

type strategiesRequest struct {
	Enabled []string `json:"enabled"`
}

// handleSetStrategies replaces the enabled strategy list
func (s *Server) handleSetStrategies(c *gin.Context) {
	var req strategiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.store.SetEnabledStrategies(req.Enabled)
	c.JSON(http.StatusOK, gin.H{"enabled_strategies": s.store.Snapshot().TradingConfig.EnabledStrategies})
}
