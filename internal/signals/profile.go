package signals

import (
	"sort"
	"time"

	"github.com/corgi-recs/corgi/internal/models"
)

// Status is the derived sourcing state of a user
type Status string

const (
	StatusNew       Status = "new"        // no profile yet
	StatusColdStart Status = "cold_start" // has history, not promoted
	StatusPromoted  Status = "promoted"   // personalized sourcing
	StatusReentry   Status = "reentry"    // promoted but inactive past the window
)

// Profile is a read-only snapshot of a user's accumulated signals
type Profile struct {
	UserAlias         string                        `json:"user_alias"`
	InteractionCount  int64                         `json:"interaction_count"`
	ActionCounts      map[models.ActionType]int64   `json:"action_counts"`
	LastInteractionAt *time.Time                    `json:"last_interaction_at,omitempty"`
	Weights           map[string]map[string]float64 `json:"weights"`
}

// Weight returns the accumulated weight of one (dimension, value) pair
func (p *Profile) Weight(dimension, value string) float64 {
	if p == nil {
		return 0
	}
	return p.Weights[dimension][value]
}

// DistinctTags counts tags the user has interacted with
func (p *Profile) DistinctTags() int {
	if p == nil {
		return 0
	}
	return len(p.Weights[models.DimensionTag])
}

// TopValues returns up to n values of a dimension ordered by weight descending
func (p *Profile) TopValues(dimension string, n int) []string {
	if p == nil {
		return nil
	}
	values := p.Weights[dimension]
	out := make([]string, 0, len(values))
	for v := range values {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if values[out[i]] == values[out[j]] {
			return out[i] < out[j]
		}
		return values[out[i]] > values[out[j]]
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// IsPromoted reports whether the profile has graduated from cold start.
// Counters never decrease outside Reset, so once true this stays true.
func (c Config) IsPromoted(p *Profile) bool {
	if p == nil {
		return false
	}
	if p.InteractionCount < c.MinInteractions {
		return false
	}
	if p.DistinctTags() < c.MinDistinctTags {
		return false
	}
	for _, action := range c.RequiredActions {
		if p.ActionCounts[action] < 1 {
			return false
		}
	}
	return true
}

// NeedsReentry reports whether a promoted user has been inactive for the reentry window
func (c Config) NeedsReentry(p *Profile, now time.Time) bool {
	if !c.IsPromoted(p) || p.LastInteractionAt == nil {
		return false
	}
	return now.Sub(*p.LastInteractionAt) >= c.ReentryAfter
}

// StatusOf derives the sourcing status of a profile
func (c Config) StatusOf(p *Profile, now time.Time) Status {
	switch {
	case p == nil:
		return StatusNew
	case c.NeedsReentry(p, now):
		return StatusReentry
	case c.IsPromoted(p):
		return StatusPromoted
	default:
		return StatusColdStart
	}
}

// signalPairs extracts every (dimension, value) pair present on a post
func signalPairs(post models.Post) [][2]string {
	pairs := make([][2]string, 0, len(post.Tags)+5)
	for _, tag := range post.NormalizedTags() {
		pairs = append(pairs, [2]string{models.DimensionTag, tag})
	}
	add := func(dim, value string) {
		if value != "" {
			pairs = append(pairs, [2]string{dim, value})
		}
	}
	add(models.DimensionCategory, post.Metadata.Category)
	add(models.DimensionVibe, post.Metadata.Vibe)
	add(models.DimensionTone, post.Metadata.Tone)
	add(models.DimensionAccountType, post.Metadata.AccountType)
	add(models.DimensionPostType, post.Metadata.PostType)
	return pairs
}
