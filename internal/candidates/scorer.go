package candidates

import (
	"fmt"
	"math"
	"time"

	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/signals"
)

// Scorer ranks a post for a user. Scores are in [0,1].
type Scorer interface {
	Score(post models.Post, profile *signals.Profile) (float64, string)
}

// ScoreWeights are the contributions of each feature to a score; they should sum to 1
type ScoreWeights struct {
	Tag        float64
	Category   float64
	Style      float64 // vibe and tone
	Engagement float64
	Recency    float64
}

// DefaultScoreWeights favours topical overlap over popularity
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Tag: 0.4, Category: 0.2, Style: 0.15, Engagement: 0.15, Recency: 0.1}
}

// ProfileScorer scores posts by overlap with the user's accumulated signals
type ProfileScorer struct {
	Weights ScoreWeights
	// HalfLife is the age at which the recency feature halves
	HalfLife time.Duration
	Now      func() time.Time
}

// NewProfileScorer returns a scorer with default weights
func NewProfileScorer() *ProfileScorer {
	return &ProfileScorer{
		Weights:  DefaultScoreWeights(),
		HalfLife: 24 * time.Hour,
		Now:      time.Now,
	}
}

// Score implements Scorer
func (s *ProfileScorer) Score(post models.Post, profile *signals.Profile) (float64, string) {
	w := s.Weights

	tagScore, topTag := 0.0, ""
	for _, tag := range post.NormalizedTags() {
		if v := affinity(profile, models.DimensionTag, tag); v > tagScore {
			tagScore, topTag = v, tag
		}
	}
	category := affinity(profile, models.DimensionCategory, post.Metadata.Category)
	style := (affinity(profile, models.DimensionVibe, post.Metadata.Vibe) +
		affinity(profile, models.DimensionTone, post.Metadata.Tone)) / 2
	engagement := engagementScore(post)
	recency := s.recency(post.CreatedAt)

	score := w.Tag*tagScore + w.Category*category + w.Style*style + w.Engagement*engagement + w.Recency*recency
	score = math.Max(0, math.Min(1, score))

	var reason string
	switch {
	case topTag != "" && tagScore >= 0.5:
		reason = fmt.Sprintf("Because you engage with #%s", topTag)
	case category >= 0.5:
		reason = fmt.Sprintf("Popular in %s, a topic you follow", post.Metadata.Category)
	case style >= 0.5:
		reason = "Matches the kind of posts you enjoy"
	case engagement >= 0.5:
		reason = "Trending across the fediverse"
	case recency >= 0.5:
		reason = "Fresh from the community"
	default:
		reason = "Something new to explore"
	}
	return score, reason
}

func (s *ProfileScorer) recency(createdAt time.Time) float64 {
	if createdAt.IsZero() || s.HalfLife <= 0 {
		return 0
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	age := now().Sub(createdAt)
	if age < 0 {
		age = 0
	}
	return math.Pow(0.5, float64(age)/float64(s.HalfLife))
}

// affinity is the user's weight for a value relative to their strongest value in the dimension
func affinity(profile *signals.Profile, dimension, value string) float64 {
	if profile == nil || value == "" {
		return 0
	}
	values := profile.Weights[dimension]
	if len(values) == 0 {
		return 0
	}
	max := 0.0
	for _, w := range values {
		if w > max {
			max = w
		}
	}
	if max == 0 {
		return 0
	}
	return values[normalizeValue(dimension, value)] / max
}

func normalizeValue(dimension, value string) string {
	if dimension == models.DimensionTag {
		return models.NormalizeTag(value)
	}
	return value
}

// engagementScore saturates at a few hundred interactions
func engagementScore(post models.Post) float64 {
	total := float64(post.FavouritesCount) + 2*float64(post.ReblogsCount) + 1.5*float64(post.RepliesCount)
	if total <= 0 {
		return 0
	}
	return math.Min(1, math.Log1p(total)/math.Log1p(500))
}
