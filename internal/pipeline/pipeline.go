package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Stage is one step of a scan cycle. Stages run sequentially in
// registration order against the shared ScanContext.
type Stage interface {
	Name() string
	Process(ctx context.Context, sc *ScanContext) error
}

// Pipeline runs registered stages in order. A stage error aborts the
// remainder of the cycle; the context is discarded by the caller.
type Pipeline struct {
	stages []Stage
	logger zerolog.Logger
}

// New creates an empty pipeline
func New(logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With().Str("component", "ScanPipeline").Logger(),
	}
}

// AddStage appends a stage. Order of calls is order of execution.
func (p *Pipeline) AddStage(s Stage) {
	p.stages = append(p.stages, s)
}

// Stages returns the registered stage names in execution order
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Process runs one full cycle over the given context
func (p *Pipeline) Process(ctx context.Context, sc *ScanContext) error {
	start := time.Now()

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cycle %s cancelled: %w", sc.CycleID, err)
		}

		stageStart := time.Now()
		if err := stage.Process(ctx, sc); err != nil {
			p.logger.Error().
				Err(err).
				Str("cycle_id", sc.CycleID).
				Str("stage", stage.Name()).
				Msg("Stage failed, aborting cycle")
			return fmt.Errorf("stage %s: %w", stage.Name(), err)
		}
		p.logger.Debug().
			Str("cycle_id", sc.CycleID).
			Str("stage", stage.Name()).
			Dur("took", time.Since(stageStart)).
			Msg("Stage complete")
	}

	p.logger.Info().
		Str("cycle_id", sc.CycleID).
		Str("phase", string(sc.Phase)).
		Int("candidates", len(sc.Candidates)).
		Int("ranked", len(sc.Ranked)).
		Dur("took", time.Since(start)).
		Msg("Scan cycle complete")
	return nil
}
