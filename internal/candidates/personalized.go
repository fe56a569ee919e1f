package candidates

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/corgi-recs/corgi/internal/models"
)

// StrategyProfileWeighted tags candidates scored against the signal profile
const StrategyProfileWeighted = "profile_weighted"

// Personalized draws candidates from cached public posts the user has not interacted with
// and ranks them with a Scorer.
type Personalized struct {
	db        *gorm.DB
	scorer    Scorer
	scanLimit int
	minScore  float64
}

// NewPersonalized creates a personalized source
func NewPersonalized(db *gorm.DB, scorer Scorer) *Personalized {
	return &Personalized{db: db, scorer: scorer, scanLimit: 500}
}

// WithScanLimit bounds how many recent posts are scored per request
func (p *Personalized) WithScanLimit(n int) *Personalized {
	if n > 0 {
		p.scanLimit = n
	}
	return p
}

// WithMinScore drops candidates scoring below min
func (p *Personalized) WithMinScore(min float64) *Personalized {
	p.minScore = min
	return p
}

// Candidates implements Source
func (p *Personalized) Candidates(ctx context.Context, req Request) ([]models.Candidate, error) {
	if req.Anonymous() || req.Profile == nil {
		return nil, ErrNoProfile
	}
	if req.Count <= 0 {
		return nil, nil
	}

	// seen_posts is kept at every level that applies signals; interactions only exist at full
	seen := p.db.Model(&models.SeenPost{}).Select("post_id").Where("user_alias = ?", req.UserAlias)
	interacted := p.db.Model(&models.Interaction{}).Select("post_id").Where("user_alias = ?", req.UserAlias)
	var rows []models.PostRecord
	err := p.db.WithContext(ctx).
		Where("visibility = ?", models.VisibilityPublic).
		Where("id NOT IN (?)", seen).
		Where("id NOT IN (?)", interacted).
		Order("posted_at DESC").
		Limit(p.scanLimit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate posts: %w", err)
	}

	out := make([]models.Candidate, 0, len(rows))
	for _, row := range rows {
		post := row.ToPost()
		score, reason := p.scorer.Score(post, req.Profile)
		if score < p.minScore {
			continue
		}
		out = append(out, models.Candidate{
			Post:     post,
			Score:    score,
			Reason:   reason,
			Source:   models.SourcePersonalized,
			Strategy: StrategyProfileWeighted,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > req.Count {
		out = out[:req.Count]
	}
	return out, nil
}
