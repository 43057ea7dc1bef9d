package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"market-scanner-bot/config"
	"market-scanner-bot/internal/adaptive"
	"market-scanner-bot/internal/cache"
	"market-scanner-bot/internal/circuit"
	"market-scanner-bot/internal/models"
	"market-scanner-bot/internal/pipeline"
	"market-scanner-bot/internal/strategy"
)

// SignalSink receives the ranked output of a completed cycle
type SignalSink interface {
	PublishSignals(ctx context.Context, cycleID string, ranked []models.RankedSignal, confirmations map[string]models.ConfirmationResult) error
}

// ResumeLogger stamps the previous day's breaker activation as resumed
type ResumeLogger interface {
	LogResume(ctx context.Context, day time.Time) error
}

// Scheduler drives scan cycles on a fixed interval during market
// hours. Cycles run strictly sequentially; a slow cycle delays the
// next tick rather than overlapping it.
type Scheduler struct {
	store    *config.Store
	pipeline *pipeline.Pipeline
	breaker  *circuit.Breaker
	adaptive *adaptive.Manager
	sink     SignalSink
	resume   ResumeLogger

	cooldown      *strategy.CooldownTracker
	cooldownStore *cache.CooldownStore

	location *time.Location
	now      func() time.Time
	lastDay  time.Time

	mu     sync.Mutex
	latest *pipeline.ScanContext

	logger zerolog.Logger
}

// NewScheduler creates a scheduler. sink, resume, cooldown and
// cooldownStore may be nil; the corresponding step is skipped.
func NewScheduler(
	store *config.Store,
	p *pipeline.Pipeline,
	breaker *circuit.Breaker,
	manager *adaptive.Manager,
	sink SignalSink,
	resume ResumeLogger,
	cooldown *strategy.CooldownTracker,
	cooldownStore *cache.CooldownStore,
	logger zerolog.Logger,
) *Scheduler {
	cfg := store.Snapshot()
	loc, err := time.LoadLocation(cfg.ScannerConfig.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Scheduler{
		store:         store,
		pipeline:      p,
		breaker:       breaker,
		adaptive:      manager,
		sink:          sink,
		resume:        resume,
		cooldown:      cooldown,
		cooldownStore: cooldownStore,
		location:      loc,
		now:           time.Now,
		logger:        logger.With().Str("component", "Scheduler").Logger(),
	}
}

// Run loops until the context is cancelled. The scan interval is read
// fresh from the config store so runtime changes apply immediately.
func (s *Scheduler) Run(ctx context.Context) {
	s.restoreCooldownState(ctx)
	s.logger.Info().Msg("Scheduler started")

	for {
		interval := time.Duration(s.store.Snapshot().ScannerConfig.ScanInterval) * time.Second

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Scheduler stopped")
			return
		case <-time.After(interval):
			s.RunCycle(ctx)
		}
	}
}

// RunCycle executes one scan cycle. Errors are logged; the scheduler
// always proceeds to the next cycle.
func (s *Scheduler) RunCycle(ctx context.Context) {
	now := s.now().In(s.location)
	s.maybeDailyReset(ctx, now)

	phase := models.PhaseAt(now)
	if phase == models.PhaseClosed {
		s.logger.Debug().Msg("Market closed, skipping cycle")
		return
	}

	cfg := s.store.Snapshot()
	sc := pipeline.NewScanContext(now, phase)
	sc.EnabledStrategies = enabledSet(cfg.TradingConfig.EnabledStrategies)

	if err := s.pipeline.Process(ctx, sc); err != nil {
		s.logger.Error().Err(err).Str("cycle_id", sc.CycleID).Msg("Scan cycle failed")
		return
	}
	s.mu.Lock()
	s.latest = sc
	s.mu.Unlock()

	if s.sink != nil && len(sc.Ranked) > 0 {
		if err := s.sink.PublishSignals(ctx, sc.CycleID, sc.Ranked, sc.Confirmations); err != nil {
			s.logger.Error().Err(err).Str("cycle_id", sc.CycleID).Msg("Failed to publish signals")
		}
	}

	s.saveCooldownState(ctx)
}

// Latest returns the most recent completed scan context, or nil
func (s *Scheduler) Latest() *pipeline.ScanContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// maybeDailyReset clears day-scoped state on the first cycle of a new
// trading day.
func (s *Scheduler) maybeDailyReset(ctx context.Context, now time.Time) {
	y, m, d := now.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	if !day.After(s.lastDay) {
		return
	}

	first := s.lastDay.IsZero()
	prev := s.lastDay
	s.lastDay = day
	if first {
		return
	}

	s.logger.Info().Str("day", day.Format("2006-01-02")).Msg("New trading day, resetting day-scoped state")
	if s.breaker != nil {
		s.breaker.ResetDaily()
	}
	if s.adaptive != nil {
		s.adaptive.ResetDaily()
	}
	if s.cooldown != nil {
		s.cooldown.Reset()
	}
	if s.cooldownStore != nil {
		s.cooldownStore.Clear(ctx)
	}
	if s.resume != nil {
		if err := s.resume.LogResume(ctx, prev); err != nil {
			s.logger.Error().Err(err).Msg("Failed to log resume")
		}
	}
}

func (s *Scheduler) restoreCooldownState(ctx context.Context) {
	if s.cooldown == nil || s.cooldownStore == nil {
		return
	}
	data, err := s.cooldownStore.Load(ctx)
	if err != nil || data == nil {
		return
	}
	if err := s.cooldown.Restore(data); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to restore cooldown state, starting fresh")
		return
	}
	s.logger.Info().Msg("Cooldown state restored")
}

func (s *Scheduler) saveCooldownState(ctx context.Context) {
	if s.cooldown == nil || s.cooldownStore == nil {
		return
	}
	data, err := s.cooldown.Serialize()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to serialize cooldown state")
		return
	}
	if err := s.cooldownStore.Save(ctx, data); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist cooldown state")
	}
}

func enabledSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
