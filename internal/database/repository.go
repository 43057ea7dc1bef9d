package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-scanner-bot/internal/adaptive"
	"market-scanner-bot/internal/circuit"
	"market-scanner-bot/internal/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// CIRCUIT BREAKER ACTIVATIONS
// ============================================================================

// LogActivation records a breaker trip for the trading day. Re-trips
// after an override update the same row.
func (r *Repository) LogActivation(ctx context.Context, day time.Time, hits []circuit.SLHit, totalLoss float64) error {
	query := `
		INSERT INTO circuit_breaker_activations (trading_day, sl_hits, total_loss)
		VALUES ($1, $2, $3)
		ON CONFLICT (trading_day)
		DO UPDATE SET sl_hits = EXCLUDED.sl_hits, total_loss = EXCLUDED.total_loss
	`
	if _, err := r.db.Pool.Exec(ctx, query, day, len(hits), totalLoss); err != nil {
		return fmt.Errorf("log breaker activation: %w", err)
	}
	return nil
}

// LogOverride marks the day's activation as manually overridden.
// Returns ErrNotFound when no activation row exists for the day.
func (r *Repository) LogOverride(ctx context.Context, day time.Time) error {
	query := `
		UPDATE circuit_breaker_activations
		SET overridden = TRUE, overridden_at = CURRENT_TIMESTAMP
		WHERE trading_day = $1
	`
	tag, err := r.db.Pool.Exec(ctx, query, day)
	if err != nil {
		return fmt.Errorf("log breaker override: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no activation for %s: %w", day.Format("2006-01-02"), ErrNotFound)
	}
	return nil
}

// LogResume stamps the previous day's activation as resumed. Days
// without an activation are a no-op.
func (r *Repository) LogResume(ctx context.Context, day time.Time) error {
	query := `
		UPDATE circuit_breaker_activations
		SET resumed_at = CURRENT_TIMESTAMP
		WHERE trading_day = $1 AND resumed_at IS NULL
	`
	if _, err := r.db.Pool.Exec(ctx, query, day); err != nil {
		return fmt.Errorf("log breaker resume: %w", err)
	}
	return nil
}

// ============================================================================
// ADAPTATION LOG
// ============================================================================

// LogAdaptation records a strategy level transition
func (r *Repository) LogAdaptation(ctx context.Context, strategy string, oldLevel, newLevel adaptive.Level, losses int, reason string) error {
	query := `
		INSERT INTO adaptation_log (strategy, old_level, new_level, consecutive_losses, reason)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.Pool.Exec(ctx, query, strategy, string(oldLevel), string(newLevel), losses, reason); err != nil {
		return fmt.Errorf("log adaptation: %w", err)
	}
	return nil
}

// ============================================================================
// SIGNALS
// ============================================================================

// SignalRecord is a persisted scan signal
type SignalRecord struct {
	ID             int64     `json:"id"`
	CycleID        string    `json:"cycle_id"`
	Strategy       string    `json:"strategy"`
	Symbol         string    `json:"symbol"`
	Direction      string    `json:"direction"`
	EntryPrice     float64   `json:"entry_price"`
	StopLoss       float64   `json:"stop_loss"`
	Target         float64   `json:"target"`
	StarRating     int       `json:"star_rating"`
	CompositeScore float64   `json:"composite_score"`
	Confirmation   string    `json:"confirmation"`
	Reason         string    `json:"reason"`
	SignalledAt    time.Time `json:"signalled_at"`
}

// InsertSignal persists one ranked signal from a scan cycle
func (r *Repository) InsertSignal(ctx context.Context, cycleID string, sig models.RankedSignal, conf models.ConfirmationResult) error {
	query := `
		INSERT INTO signals (cycle_id, strategy, symbol, direction, entry_price, stop_loss, target,
			star_rating, composite_score, confirmation, reason, signalled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		cycleID, sig.Strategy, sig.Symbol, string(sig.Direction), sig.EntryPrice, sig.StopLoss,
		sig.Target, sig.StarRating, sig.CompositeScore, string(conf.Level), sig.Reason, sig.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// RecentStrategies returns the distinct strategies that signalled a
// symbol since the cutoff, feeding confidence classification.
func (r *Repository) RecentStrategies(ctx context.Context, symbol string, since time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT strategy FROM signals
		WHERE symbol = $1 AND signalled_at >= $2
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol, since)
	if err != nil {
		return nil, fmt.Errorf("query recent strategies: %w", err)
	}
	defer rows.Close()

	var strategies []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}
	return strategies, rows.Err()
}

// IsDuplicate reports whether the same symbol/strategy/direction was
// already signalled on the candidate's trading day.
func (r *Repository) IsDuplicate(ctx context.Context, c models.CandidateSignal) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM signals
			WHERE symbol = $1 AND strategy = $2 AND direction = $3
			  AND signalled_at::date = $4::date
		)
	`
	var exists bool
	err := r.db.Pool.QueryRow(ctx, query, c.Symbol, c.Strategy, string(c.Direction), c.Timestamp).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("duplicate check: %w", err)
	}
	return exists, nil
}

// LatestSignals returns the most recent persisted signals
func (r *Repository) LatestSignals(ctx context.Context, limit int) ([]SignalRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, cycle_id, strategy, symbol, direction, entry_price,
			COALESCE(stop_loss, 0), COALESCE(target, 0), star_rating,
			COALESCE(composite_score, 0), COALESCE(confirmation, ''), COALESCE(reason, ''), signalled_at
		FROM signals
		ORDER BY signalled_at DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query latest signals: %w", err)
	}
	defer rows.Close()

	var records []SignalRecord
	for rows.Next() {
		var rec SignalRecord
		if err := rows.Scan(&rec.ID, &rec.CycleID, &rec.Strategy, &rec.Symbol, &rec.Direction,
			&rec.EntryPrice, &rec.StopLoss, &rec.Target, &rec.StarRating,
			&rec.CompositeScore, &rec.Confirmation, &rec.Reason, &rec.SignalledAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ============================================================================
// STRATEGY PERFORMANCE
// ============================================================================

// StrategyPerformance aggregates one strategy's results for a day
type StrategyPerformance struct {
	TradingDay time.Time `json:"trading_day"`
	Strategy   string    `json:"strategy"`
	Wins       int       `json:"wins"`
	Losses     int       `json:"losses"`
	TotalPnL   float64   `json:"total_pnl"`
}

// RecordTradeResult folds one trade exit into the day's aggregates
func (r *Repository) RecordTradeResult(ctx context.Context, day time.Time, strategy string, pnl float64) error {
	win, loss := 0, 0
	if pnl >= 0 {
		win = 1
	} else {
		loss = 1
	}
	query := `
		INSERT INTO strategy_performance (trading_day, strategy, wins, losses, total_pnl)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (trading_day, strategy)
		DO UPDATE SET
			wins = strategy_performance.wins + EXCLUDED.wins,
			losses = strategy_performance.losses + EXCLUDED.losses,
			total_pnl = strategy_performance.total_pnl + EXCLUDED.total_pnl,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.Pool.Exec(ctx, query, day, strategy, win, loss, pnl); err != nil {
		return fmt.Errorf("record trade result: %w", err)
	}
	return nil
}

// PerformanceForDay returns per-strategy aggregates for one trading day
func (r *Repository) PerformanceForDay(ctx context.Context, day time.Time) ([]StrategyPerformance, error) {
	query := `
		SELECT trading_day, strategy, wins, losses, total_pnl
		FROM strategy_performance
		WHERE trading_day = $1
		ORDER BY strategy
	`
	rows, err := r.db.Pool.Query(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("query strategy performance: %w", err)
	}
	defer rows.Close()

	var results []StrategyPerformance
	for rows.Next() {
		var p StrategyPerformance
		if err := rows.Scan(&p.TradingDay, &p.Strategy, &p.Wins, &p.Losses, &p.TotalPnL); err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}
