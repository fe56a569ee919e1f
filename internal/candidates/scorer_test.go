package candidates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/signals"
	"github.com/corgi-recs/corgi/internal/testutil"
)

func fixedScorer(now time.Time) *ProfileScorer {
	s := NewProfileScorer()
	s.Now = func() time.Time { return now }
	return s
}

func TestProfileScorerPrefersMatchingTags(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := fixedScorer(now)
	profile := &signals.Profile{Weights: map[string]map[string]float64{
		models.DimensionTag: {"go": 4, "cats": 1},
	}}

	match, reason := s.Score(testutil.Post("a", "#Go"), profile)
	other, _ := s.Score(testutil.Post("b", "gardening"), profile)

	assert.Greater(t, match, other)
	assert.Equal(t, "Because you engage with #go", reason)
}

func TestProfileScorerBounds(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := fixedScorer(now)

	post := testutil.Post("a", "go")
	post.CreatedAt = now
	post.FavouritesCount = 100000
	post.ReblogsCount = 100000
	post.Metadata = models.PostMetadata{Category: "tech", Vibe: "calm", Tone: "warm"}
	profile := &signals.Profile{Weights: map[string]map[string]float64{
		models.DimensionTag:      {"go": 1},
		models.DimensionCategory: {"tech": 1},
		models.DimensionVibe:     {"calm": 1},
		models.DimensionTone:     {"warm": 1},
	}}
	score, _ := s.Score(post, profile)
	assert.InDelta(t, 1.0, score, 1e-9)

	empty := models.Post{ID: "x", Account: models.Account{ID: "1"}}
	score, reason := s.Score(empty, nil)
	assert.Equal(t, 0.0, score)
	assert.Equal(t, "Something new to explore", reason)
}

func TestProfileScorerRecencyDecays(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := fixedScorer(now)

	fresh := testutil.Post("fresh")
	fresh.CreatedAt = now
	stale := testutil.Post("stale")
	stale.CreatedAt = now.Add(-72 * time.Hour)

	a, reason := s.Score(fresh, nil)
	b, _ := s.Score(stale, nil)
	assert.Greater(t, a, b)
	assert.Equal(t, "Fresh from the community", reason)
}
