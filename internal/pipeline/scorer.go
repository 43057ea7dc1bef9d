package pipeline

import "market-scanner-bot/internal/models"

// CompositeScorer blends star quality, confirmation strength and the
// regime's per-strategy weight into one comparable number.
type CompositeScorer struct{}

// NewCompositeScorer creates the default scorer
func NewCompositeScorer() *CompositeScorer {
	return &CompositeScorer{}
}

// Score returns a composite in the 0-100 range for typical inputs.
// Boosted stars dominate; the confirmation multiplier breaks ties
// between equally rated setups.
func (s *CompositeScorer) Score(c models.CandidateSignal, conf models.ConfirmationResult, regime *models.RegimeModifiers) float64 {
	stars := c.StarRating + conf.StarBoost
	if stars > 10 {
		stars = 10
	}

	score := float64(stars) * 8.0

	if conf.SizeMultiplier > 1.0 {
		score += (conf.SizeMultiplier - 1.0) * 10.0
	}

	if regime != nil && regime.StrategyWeights != nil {
		if w, ok := regime.StrategyWeights[c.Strategy]; ok && w > 0 {
			score *= w
		}
	}
	return score
}
