package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-scanner-bot/config"
	"market-scanner-bot/internal/adaptive"
	"market-scanner-bot/internal/cache"
	"market-scanner-bot/internal/circuit"
	"market-scanner-bot/internal/models"
	"market-scanner-bot/internal/pipeline"
	"market-scanner-bot/internal/strategy"
)

type countingStage struct {
	runs int
	err  error
	seen *pipeline.ScanContext
}

func (s *countingStage) Name() string { return "counting" }

func (s *countingStage) Process(ctx context.Context, sc *pipeline.ScanContext) error {
	s.runs++
	s.seen = sc
	return s.err
}

type capturingSink struct {
	published int
	err       error
}

func (s *capturingSink) PublishSignals(ctx context.Context, cycleID string, ranked []models.RankedSignal, confirmations map[string]models.ConfirmationResult) error {
	s.published++
	return s.err
}

type recordingResume struct {
	days []time.Time
}

func (r *recordingResume) LogResume(ctx context.Context, day time.Time) error {
	r.days = append(r.days, day)
	return nil
}

func testStore(t *testing.T) *config.Store {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.ScannerConfig.Timezone = "UTC"
	return config.NewStore(cfg)
}

func newTestScheduler(t *testing.T, stage pipeline.Stage, sink SignalSink, resume ResumeLogger) *Scheduler {
	t.Helper()
	p := pipeline.New(zerolog.Nop())
	if stage != nil {
		p.AddStage(stage)
	}
	return NewScheduler(testStore(t), p, nil, nil, sink, resume, nil, nil, zerolog.Nop())
}

// tradingTime returns a weekday mid-morning timestamp
func tradingTime(day int) time.Time {
	return time.Date(2025, 3, 9+day, 10, 30, 0, 0, time.UTC) // Mar 10 2025 is a Monday
}

func TestRunCycleSkipsWhenMarketClosed(t *testing.T) {
	stage := &countingStage{}
	s := newTestScheduler(t, stage, nil, nil)
	s.now = func() time.Time { return time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC) }

	s.RunCycle(context.Background())
	assert.Zero(t, stage.runs)
	assert.Nil(t, s.Latest())
}

func TestRunCycleProcessesDuringMarketHours(t *testing.T) {
	stage := &countingStage{}
	s := newTestScheduler(t, stage, nil, nil)
	s.now = func() time.Time { return tradingTime(1) }

	s.RunCycle(context.Background())

	assert.Equal(t, 1, stage.runs)
	require.NotNil(t, s.Latest())
	assert.Equal(t, models.PhaseMorning, s.Latest().Phase)
}

func TestRunCycleSurvivesStageError(t *testing.T) {
	stage := &countingStage{err: errors.New("boom")}
	s := newTestScheduler(t, stage, nil, nil)
	s.now = func() time.Time { return tradingTime(1) }

	s.RunCycle(context.Background())
	assert.Nil(t, s.Latest())

	// Next cycle still runs
	stage.err = nil
	s.RunCycle(context.Background())
	assert.Equal(t, 2, stage.runs)
	assert.NotNil(t, s.Latest())
}

func TestRunCyclePassesEnabledStrategies(t *testing.T) {
	stage := &countingStage{}
	store := testStore(t)
	store.SetEnabledStrategies([]string{"orb"})

	p := pipeline.New(zerolog.Nop())
	p.AddStage(stage)
	s := NewScheduler(store, p, nil, nil, nil, nil, nil, nil, zerolog.Nop())
	s.now = func() time.Time { return tradingTime(1) }

	s.RunCycle(context.Background())

	require.NotNil(t, stage.seen)
	assert.Equal(t, map[string]bool{"orb": true}, stage.seen.EnabledStrategies)
}

func TestDailyResetOnDayChange(t *testing.T) {
	breaker := circuit.NewBreaker(2, nil, nil, zerolog.Nop())
	manager := adaptive.NewManager(adaptive.DefaultConfig(), nil, zerolog.Nop())
	resume := &recordingResume{}

	p := pipeline.New(zerolog.Nop())
	s := NewScheduler(testStore(t), p, breaker, manager, nil, resume, nil, nil, zerolog.Nop())

	// Trip the breaker and pause a strategy on day one
	s.now = func() time.Time { return tradingTime(1) }
	s.RunCycle(context.Background())
	breaker.OnSLHit(context.Background(), "TCS", "orb", -500)
	breaker.OnSLHit(context.Background(), "INFY", "orb", -500)
	require.True(t, breaker.IsActive())

	// First cycle of day two resets everything and logs resume
	s.now = func() time.Time { return tradingTime(2) }
	s.RunCycle(context.Background())

	assert.False(t, breaker.IsActive())
	require.Len(t, resume.days, 1)
	assert.Equal(t, 10, resume.days[0].Day())
}

func TestNoResetWithinSameDay(t *testing.T) {
	resume := &recordingResume{}
	s := newTestScheduler(t, &countingStage{}, nil, resume)

	s.now = func() time.Time { return tradingTime(1) }
	s.RunCycle(context.Background())
	s.RunCycle(context.Background())

	assert.Empty(t, resume.days, "first day start and same-day cycles must not log a resume")
}

func TestPublishesRankedSignals(t *testing.T) {
	sink := &capturingSink{}
	stage := &fillRankedStage{}
	s := newTestScheduler(t, stage, sink, nil)
	s.now = func() time.Time { return tradingTime(1) }

	s.RunCycle(context.Background())
	assert.Equal(t, 1, sink.published)
}

func TestNoPublishWithoutRankedSignals(t *testing.T) {
	sink := &capturingSink{}
	s := newTestScheduler(t, &countingStage{}, sink, nil)
	s.now = func() time.Time { return tradingTime(1) }

	s.RunCycle(context.Background())
	assert.Zero(t, sink.published)
}

type fillRankedStage struct{}

func (s *fillRankedStage) Name() string { return "fill" }

func (s *fillRankedStage) Process(ctx context.Context, sc *pipeline.ScanContext) error {
	sc.Ranked = []models.RankedSignal{{
		CandidateSignal: models.CandidateSignal{Symbol: "TCS", Strategy: "orb"},
		CompositeScore:  80,
		Rank:            1,
	}}
	return nil
}

func TestCooldownStatePersistedAcrossRestart(t *testing.T) {
	store := cache.NewCooldownStore(nil, zerolog.Nop())
	tracker := strategy.NewCooldownTracker()
	tracker.Record("RELIANCE", time.Now())

	p := pipeline.New(zerolog.Nop())
	s := NewScheduler(testStore(t), p, nil, nil, nil, nil, tracker, store, zerolog.Nop())
	s.now = func() time.Time { return tradingTime(1) }
	s.RunCycle(context.Background())

	// Fresh tracker restored from the shared store
	restored := strategy.NewCooldownTracker()
	s2 := NewScheduler(testStore(t), p, nil, nil, nil, nil, restored, store, zerolog.Nop())
	s2.restoreCooldownState(context.Background())

	assert.False(t, restored.Allow("RELIANCE", time.Now(), 1, time.Hour))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := newTestScheduler(t, &countingStage{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}
}
