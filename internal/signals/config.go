package signals

import (
	"fmt"
	"time"

	"github.com/corgi-recs/corgi/internal/models"
)

// Config holds the tunables of the signal profile.
// It is built once at startup and passed by value; replace it wholesale to change it.
type Config struct {
	// Weight added to each (dimension, value) pair per interaction
	Weights map[models.ActionType]float64

	// Promotion thresholds
	MinInteractions int64
	MinDistinctTags int
	RequiredActions []models.ActionType
	ReentryAfter    time.Duration

	// Blend of random-diversity and preference-weighted cold-start candidates
	RandomRatio      float64
	WeightedRatio    float64
	MinWeightedRatio float64
	MaxWeightedRatio float64
	EvolutionRate    float64 // weighted ratio gained per interaction

	// Profile snapshot cache lifetime; zero disables caching
	CacheTTL time.Duration
}

// DefaultConfig returns the reference values
func DefaultConfig() Config {
	return Config{
		Weights: map[models.ActionType]float64{
			models.ActionFavorite: 1.0,
			models.ActionReblog:   1.5,
			models.ActionBookmark: 1.2,
			models.ActionReply:    1.3,
		},
		MinInteractions:  5,
		MinDistinctTags:  3,
		RequiredActions:  []models.ActionType{models.ActionFavorite, models.ActionReblog, models.ActionReply},
		ReentryAfter:     14 * 24 * time.Hour,
		RandomRatio:      0.7,
		WeightedRatio:    0.3,
		MinWeightedRatio: 0.3,
		MaxWeightedRatio: 0.7,
		EvolutionRate:    0.02,
		CacheTTL:         5 * time.Minute,
	}
}

// Validate checks ratio bounds and thresholds
func (c Config) Validate() error {
	for action, w := range c.Weights {
		if w < 0 {
			return fmt.Errorf("signals: weight for %s must not be negative", action)
		}
	}
	if c.MinInteractions < 0 || c.MinDistinctTags < 0 {
		return fmt.Errorf("signals: promotion thresholds must not be negative")
	}
	if c.ReentryAfter <= 0 {
		return fmt.Errorf("signals: reentry window must be positive")
	}
	for name, r := range map[string]float64{
		"random_ratio":       c.RandomRatio,
		"weighted_ratio":     c.WeightedRatio,
		"min_weighted_ratio": c.MinWeightedRatio,
		"max_weighted_ratio": c.MaxWeightedRatio,
	} {
		if r < 0 || r > 1 {
			return fmt.Errorf("signals: %s must be within [0,1], got %v", name, r)
		}
	}
	if c.MinWeightedRatio > c.MaxWeightedRatio {
		return fmt.Errorf("signals: min_weighted_ratio exceeds max_weighted_ratio")
	}
	if c.EvolutionRate < 0 {
		return fmt.Errorf("signals: evolution_rate must not be negative")
	}
	return nil
}

// Weight returns the interaction weight for an action; unknown actions weigh nothing
func (c Config) Weight(action models.ActionType) float64 {
	return c.Weights[action]
}

// BlendRatios returns the (random, weighted) split for a user with the given engagement.
// The weighted share grows by EvolutionRate per interaction and is clamped to
// [MinWeightedRatio, MaxWeightedRatio]; the random share takes the rest.
func (c Config) BlendRatios(interactions int64) (random, weighted float64) {
	weighted = c.WeightedRatio + c.EvolutionRate*float64(interactions)
	if weighted < c.MinWeightedRatio {
		weighted = c.MinWeightedRatio
	}
	if weighted > c.MaxWeightedRatio {
		weighted = c.MaxWeightedRatio
	}
	random = 1 - weighted
	if random < 0 {
		random = 0
	}
	return random, weighted
}
