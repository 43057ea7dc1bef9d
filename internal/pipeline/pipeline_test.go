package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-scanner-bot/internal/adaptive"
	"market-scanner-bot/internal/events"
	"market-scanner-bot/internal/models"
	"market-scanner-bot/internal/strategy"
)

type recordingStage struct {
	name string
	log  *[]string
	err  error
}

func (s *recordingStage) Name() string { return s.name }

func (s *recordingStage) Process(ctx context.Context, sc *ScanContext) error {
	*s.log = append(*s.log, s.name)
	return s.err
}

func TestPipelineRunsStagesInRegistrationOrder(t *testing.T) {
	var order []string
	p := New(zerolog.Nop())
	p.AddStage(&recordingStage{name: "first", log: &order})
	p.AddStage(&recordingStage{name: "second", log: &order})
	p.AddStage(&recordingStage{name: "third", log: &order})

	sc := NewScanContext(time.Now(), models.PhaseMorning)
	require.NoError(t, p.Process(context.Background(), sc))

	assert.Equal(t, []string{"first", "second", "third"}, order)
	assert.Equal(t, []string{"first", "second", "third"}, p.Stages())
}

func TestPipelineAbortsOnStageError(t *testing.T) {
	var order []string
	boom := errors.New("provider down")
	p := New(zerolog.Nop())
	p.AddStage(&recordingStage{name: "first", log: &order})
	p.AddStage(&recordingStage{name: "second", log: &order, err: boom})
	p.AddStage(&recordingStage{name: "third", log: &order})

	err := p.Process(context.Background(), NewScanContext(time.Now(), models.PhaseMorning))

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first", "second"}, order, "stages after the failure must not run")
}

func TestPipelineStopsOnCancelledContext(t *testing.T) {
	var order []string
	p := New(zerolog.Nop())
	p.AddStage(&recordingStage{name: "first", log: &order})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Process(ctx, NewScanContext(time.Now(), models.PhaseMorning))
	assert.Error(t, err)
	assert.Empty(t, order)
}

func TestNewScanContextDefaults(t *testing.T) {
	sc := NewScanContext(time.Now(), models.PhaseOpening)

	assert.NotEmpty(t, sc.CycleID)
	assert.True(t, sc.AcceptingSignals)
	assert.NotNil(t, sc.Confirmations)
	assert.NotNil(t, sc.Scores)
	assert.Nil(t, sc.Regime)
}

func TestGateStageBlocksOutsideTradingHours(t *testing.T) {
	s := NewGateStage(nil, zerolog.Nop())
	sc := NewScanContext(time.Now(), models.PhaseClosed)

	require.NoError(t, s.Process(context.Background(), sc))
	assert.False(t, sc.AcceptingSignals)
}

func TestGateStageWithoutBreakerAllowsTradablePhase(t *testing.T) {
	s := NewGateStage(nil, zerolog.Nop())
	sc := NewScanContext(time.Now(), models.PhaseMorning)

	require.NoError(t, s.Process(context.Background(), sc))
	assert.True(t, sc.AcceptingSignals)
}

type staticRegime struct {
	regime *models.RegimeModifiers
	err    error
}

func (c staticRegime) Classify(ctx context.Context, now time.Time) (*models.RegimeModifiers, error) {
	return c.regime, c.err
}

func TestRegimeStageNilClassifierIsNoOp(t *testing.T) {
	s := NewRegimeStage(nil, zerolog.Nop())
	sc := NewScanContext(time.Now(), models.PhaseMorning)

	require.NoError(t, s.Process(context.Background(), sc))
	assert.Nil(t, sc.Regime)
}

func TestRegimeStageAttachesModifiers(t *testing.T) {
	mods := &models.RegimeModifiers{Regime: "trending", MinStarRating: 6}
	s := NewRegimeStage(staticRegime{regime: mods}, zerolog.Nop())
	sc := NewScanContext(time.Now(), models.PhaseMorning)

	require.NoError(t, s.Process(context.Background(), sc))
	assert.Equal(t, mods, sc.Regime)
}

func TestRegimeStageErrorIsAdvisory(t *testing.T) {
	s := NewRegimeStage(staticRegime{err: errors.New("index feed down")}, zerolog.Nop())
	sc := NewScanContext(time.Now(), models.PhaseMorning)

	require.NoError(t, s.Process(context.Background(), sc))
	assert.Nil(t, sc.Regime)
}

type fixedStrategy struct {
	name    string
	phases  []models.MarketPhase
	signals []models.CandidateSignal
}

func (s fixedStrategy) Name() string                       { return s.name }
func (s fixedStrategy) ActivePhases() []models.MarketPhase { return s.phases }

func (s fixedStrategy) Evaluate(data strategy.MarketData, phase models.MarketPhase) []models.CandidateSignal {
	out := make([]models.CandidateSignal, 0, len(s.signals))
	for _, sig := range s.signals {
		sig.Symbol = data.Symbol
		out = append(out, sig)
	}
	return out
}

type staticData struct {
	err error
}

func (d staticData) Snapshot(ctx context.Context, symbol string) (strategy.MarketData, error) {
	if d.err != nil {
		return strategy.MarketData{}, d.err
	}
	return strategy.MarketData{Symbol: symbol, LastPrice: 100}, nil
}

func allPhases() []models.MarketPhase {
	return []models.MarketPhase{models.PhaseOpening, models.PhaseMorning, models.PhaseMidday, models.PhaseClosing}
}

func TestStrategyStageCollectsAndOrdersCandidates(t *testing.T) {
	strats := []strategy.Strategy{
		fixedStrategy{name: "momentum", phases: allPhases(), signals: []models.CandidateSignal{{Strategy: "momentum", StarRating: 6}}},
		fixedStrategy{name: "orb", phases: allPhases(), signals: []models.CandidateSignal{{Strategy: "orb", StarRating: 7}}},
	}
	s := NewStrategyStage(strats, staticData{}, nil, func() []string { return []string{"TCS", "RELIANCE"} }, zerolog.Nop())

	sc := NewScanContext(time.Now(), models.PhaseMorning)
	require.NoError(t, s.Process(context.Background(), sc))

	require.Len(t, sc.Candidates, 4)
	// Sorted by symbol then strategy regardless of goroutine timing
	assert.Equal(t, "RELIANCE", sc.Candidates[0].Symbol)
	assert.Equal(t, "momentum", sc.Candidates[0].Strategy)
	assert.Equal(t, "TCS", sc.Candidates[2].Symbol)
}

func TestStrategyStageSkipsWhenNotAcceptingSignals(t *testing.T) {
	strats := []strategy.Strategy{
		fixedStrategy{name: "orb", phases: allPhases(), signals: []models.CandidateSignal{{Strategy: "orb"}}},
	}
	s := NewStrategyStage(strats, staticData{}, nil, func() []string { return []string{"TCS"} }, zerolog.Nop())

	sc := NewScanContext(time.Now(), models.PhaseMorning)
	sc.AcceptingSignals = false
	require.NoError(t, s.Process(context.Background(), sc))
	assert.Empty(t, sc.Candidates)
}

func TestStrategyStageHonorsEnabledSet(t *testing.T) {
	strats := []strategy.Strategy{
		fixedStrategy{name: "orb", phases: allPhases(), signals: []models.CandidateSignal{{Strategy: "orb", StarRating: 7}}},
		fixedStrategy{name: "momentum", phases: allPhases(), signals: []models.CandidateSignal{{Strategy: "momentum", StarRating: 7}}},
	}
	s := NewStrategyStage(strats, staticData{}, nil, func() []string { return []string{"TCS"} }, zerolog.Nop())

	sc := NewScanContext(time.Now(), models.PhaseMorning)
	sc.EnabledStrategies = map[string]bool{"orb": true}
	require.NoError(t, s.Process(context.Background(), sc))

	require.Len(t, sc.Candidates, 1)
	assert.Equal(t, "orb", sc.Candidates[0].Strategy)
}

func TestStrategyStageAppliesAdaptiveFilter(t *testing.T) {
	manager := adaptive.NewManager(adaptive.DefaultConfig(), nil, zerolog.Nop())
	for i := 0; i < 3; i++ {
		manager.OnTradeExit(context.Background(), "orb", -500)
	}

	strats := []strategy.Strategy{
		fixedStrategy{name: "orb", phases: allPhases(), signals: []models.CandidateSignal{{Strategy: "orb", StarRating: 4}}},
	}
	s := NewStrategyStage(strats, staticData{}, manager, func() []string { return []string{"TCS"} }, zerolog.Nop())

	sc := NewScanContext(time.Now(), models.PhaseMorning)
	require.NoError(t, s.Process(context.Background(), sc))
	assert.Empty(t, sc.Candidates, "reduced level must block 4-star signals")
}

func TestStrategyStageAppliesRegimeMinStars(t *testing.T) {
	strats := []strategy.Strategy{
		fixedStrategy{name: "orb", phases: allPhases(), signals: []models.CandidateSignal{{Strategy: "orb", StarRating: 5}}},
	}
	s := NewStrategyStage(strats, staticData{}, nil, func() []string { return []string{"TCS"} }, zerolog.Nop())

	sc := NewScanContext(time.Now(), models.PhaseMorning)
	sc.Regime = &models.RegimeModifiers{Regime: "choppy", MinStarRating: 7}
	require.NoError(t, s.Process(context.Background(), sc))
	assert.Empty(t, sc.Candidates)
}

func TestStrategyStageSurvivesProviderError(t *testing.T) {
	strats := []strategy.Strategy{
		fixedStrategy{name: "orb", phases: allPhases(), signals: []models.CandidateSignal{{Strategy: "orb", StarRating: 7}}},
	}
	s := NewStrategyStage(strats, staticData{err: errors.New("feed down")}, nil, func() []string { return []string{"TCS"} }, zerolog.Nop())

	sc := NewScanContext(time.Now(), models.PhaseMorning)
	require.NoError(t, s.Process(context.Background(), sc))
	assert.Empty(t, sc.Candidates)
}

type fixedScorer struct{}

func (fixedScorer) Score(c models.CandidateSignal, conf models.ConfirmationResult, regime *models.RegimeModifiers) float64 {
	return float64(c.StarRating+conf.StarBoost) * 10
}

func TestScoringStageNilScorerIsNoOp(t *testing.T) {
	s := NewScoringStage(nil)
	sc := NewScanContext(time.Now(), models.PhaseMorning)
	sc.Candidates = []models.CandidateSignal{{Symbol: "TCS", Strategy: "orb", StarRating: 7}}

	require.NoError(t, s.Process(context.Background(), sc))
	assert.Empty(t, sc.Scores)
}

func TestScoringStageScoresEachCandidate(t *testing.T) {
	s := NewScoringStage(fixedScorer{})
	sc := NewScanContext(time.Now(), models.PhaseMorning)
	sc.Candidates = []models.CandidateSignal{{Symbol: "TCS", Strategy: "orb", StarRating: 7}}
	sc.Confirmations["TCS"] = models.ConfirmationResult{StarBoost: 1}

	require.NoError(t, s.Process(context.Background(), sc))
	assert.Equal(t, 80.0, sc.Scores["TCS|orb"])
}

type setChecker struct {
	dups map[string]bool
	err  error
}

func (c setChecker) IsDuplicate(ctx context.Context, sig models.CandidateSignal) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	return c.dups[sig.Symbol+"|"+sig.Strategy], nil
}

func TestDedupStageDropsKnownDuplicates(t *testing.T) {
	s := NewDedupStage(setChecker{dups: map[string]bool{"TCS|orb": true}}, zerolog.Nop())
	sc := NewScanContext(time.Now(), models.PhaseMorning)
	sc.Candidates = []models.CandidateSignal{
		{Symbol: "TCS", Strategy: "orb"},
		{Symbol: "RELIANCE", Strategy: "orb"},
	}

	require.NoError(t, s.Process(context.Background(), sc))
	require.Len(t, sc.Candidates, 1)
	assert.Equal(t, "RELIANCE", sc.Candidates[0].Symbol)
}

func TestDedupStageKeepsCandidateOnCheckerError(t *testing.T) {
	s := NewDedupStage(setChecker{err: errors.New("store down")}, zerolog.Nop())
	sc := NewScanContext(time.Now(), models.PhaseMorning)
	sc.Candidates = []models.CandidateSignal{{Symbol: "TCS", Strategy: "orb"}}

	require.NoError(t, s.Process(context.Background(), sc))
	assert.Len(t, sc.Candidates, 1)
}

func TestRankingStagePrefersScoresThenAssignsRanks(t *testing.T) {
	s := NewRankingStage()
	sc := NewScanContext(time.Now(), models.PhaseMorning)
	sc.Candidates = []models.CandidateSignal{
		{Symbol: "TCS", Strategy: "orb", StarRating: 6},
		{Symbol: "RELIANCE", Strategy: "momentum", StarRating: 8},
	}
	sc.Scores["TCS|orb"] = 90
	sc.Scores["RELIANCE|momentum"] = 70

	require.NoError(t, s.Process(context.Background(), sc))

	require.Len(t, sc.Ranked, 2)
	assert.Equal(t, "TCS", sc.Ranked[0].Symbol)
	assert.Equal(t, 1, sc.Ranked[0].Rank)
	assert.Equal(t, 2, sc.Ranked[1].Rank)
}

func TestRankingStageFallsBackToStarsPlusBoost(t *testing.T) {
	s := NewRankingStage()
	sc := NewScanContext(time.Now(), models.PhaseMorning)
	sc.Candidates = []models.CandidateSignal{
		{Symbol: "TCS", Strategy: "orb", StarRating: 6},
		{Symbol: "RELIANCE", Strategy: "momentum", StarRating: 6},
	}
	sc.Confirmations["RELIANCE"] = models.ConfirmationResult{StarBoost: 2}

	require.NoError(t, s.Process(context.Background(), sc))
	assert.Equal(t, "RELIANCE", sc.Ranked[0].Symbol)
}

type staticPositions struct {
	positions []models.OpenPosition
	err       error
}

func (p staticPositions) OpenPositions(ctx context.Context) ([]models.OpenPosition, error) {
	return p.positions, p.err
}

type pricedData struct {
	prices map[string]float64
}

func (d pricedData) Snapshot(ctx context.Context, symbol string) (strategy.MarketData, error) {
	return strategy.MarketData{Symbol: symbol, LastPrice: d.prices[symbol]}, nil
}

func TestExitMonitorStageAlertsOnStopCross(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	var alerts []events.ExitAlertEvent
	bus.Subscribe(events.EventExitAlert, func(e events.Event) {
		alerts = append(alerts, e.(events.ExitAlertEvent))
	})

	positions := staticPositions{positions: []models.OpenPosition{
		{Symbol: "TCS", Direction: models.DirectionLong, StopLoss: 95, Target: 110},
		{Symbol: "RELIANCE", Direction: models.DirectionShort, StopLoss: 105, Target: 90},
	}}
	data := pricedData{prices: map[string]float64{"TCS": 94.5, "RELIANCE": 100}}

	s := NewExitMonitorStage(positions, data, bus, zerolog.Nop())
	sc := NewScanContext(time.Now(), models.PhaseMidday)
	require.NoError(t, s.Process(context.Background(), sc))

	require.Len(t, alerts, 1)
	assert.Equal(t, "TCS", alerts[0].Position.Symbol)
	assert.Equal(t, "stop_loss", alerts[0].Trigger)
}

func TestExitMonitorStageAlertsOnShortTarget(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	var alerts []events.ExitAlertEvent
	bus.Subscribe(events.EventExitAlert, func(e events.Event) {
		alerts = append(alerts, e.(events.ExitAlertEvent))
	})

	positions := staticPositions{positions: []models.OpenPosition{
		{Symbol: "INFY", Direction: models.DirectionShort, StopLoss: 105, Target: 90},
	}}
	s := NewExitMonitorStage(positions, pricedData{prices: map[string]float64{"INFY": 89}}, bus, zerolog.Nop())

	require.NoError(t, s.Process(context.Background(), NewScanContext(time.Now(), models.PhaseMidday)))
	require.Len(t, alerts, 1)
	assert.Equal(t, "target", alerts[0].Trigger)
}

func TestExitMonitorStageNilProvidersAreNoOp(t *testing.T) {
	s := NewExitMonitorStage(nil, nil, nil, zerolog.Nop())
	require.NoError(t, s.Process(context.Background(), NewScanContext(time.Now(), models.PhaseMidday)))
}

func TestExitMonitorStagePropagatesPositionError(t *testing.T) {
	s := NewExitMonitorStage(staticPositions{err: errors.New("db down")}, pricedData{}, nil, zerolog.Nop())
	assert.Error(t, s.Process(context.Background(), NewScanContext(time.Now(), models.PhaseMidday)))
}
