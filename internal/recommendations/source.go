package recommendations

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/corgi-recs/corgi/internal/candidates"
	"github.com/corgi-recs/corgi/internal/models"
)

// StrategyCollaborative tags candidates ranked by Gorse
const StrategyCollaborative = "collaborative"

// GorseSource serves personalized candidates ranked by Gorse.
// Gorse only returns ids, so post content comes from the local post cache.
type GorseSource struct {
	client *GorseRESTClient
	db     *gorm.DB
}

// NewGorseSource creates a Gorse-backed candidate source
func NewGorseSource(client *GorseRESTClient, db *gorm.DB) *GorseSource {
	return &GorseSource{client: client, db: db}
}

// Candidates implements candidates.Source
func (s *GorseSource) Candidates(ctx context.Context, req candidates.Request) ([]models.Candidate, error) {
	if req.Anonymous() {
		return nil, candidates.ErrNoProfile
	}
	if req.Count <= 0 {
		return nil, nil
	}

	itemIDs, err := s.client.Recommend(ctx, req.UserAlias, req.Count)
	if err != nil {
		return nil, err
	}
	if len(itemIDs) == 0 {
		return []models.Candidate{}, nil
	}

	var rows []models.PostRecord
	if err := s.db.WithContext(ctx).Where("id IN ? AND visibility = ?", itemIDs, models.VisibilityPublic).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch posts: %w", err)
	}
	byID := make(map[string]models.PostRecord, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	// Keep Gorse's order; score decreases with rank
	out := make([]models.Candidate, 0, len(itemIDs))
	for i, id := range itemIDs {
		row, ok := byID[id]
		if !ok {
			continue
		}
		post := row.ToPost()
		out = append(out, models.Candidate{
			Post:     post,
			Score:    1 - float64(i)/float64(len(itemIDs)),
			Reason:   generateReason(post, req),
			Source:   models.SourcePersonalized,
			Strategy: StrategyCollaborative,
		})
	}
	return out, nil
}

// generateReason generates a human-readable reason for why a post was recommended
func generateReason(post models.Post, req candidates.Request) string {
	reasons := make([]string, 0)

	for _, tag := range post.NormalizedTags() {
		if req.Profile.Weight(models.DimensionTag, tag) > 0 {
			reasons = append(reasons, "matches #"+tag)
			break
		}
	}
	if post.Metadata.Category != "" && req.Profile.Weight(models.DimensionCategory, post.Metadata.Category) > 0 {
		reasons = append(reasons, "fits your interest in "+post.Metadata.Category)
	}
	if post.FavouritesCount+post.ReblogsCount > 10 {
		reasons = append(reasons, "popular with people like you")
	}
	if time.Since(post.CreatedAt).Hours() < 24 {
		reasons = append(reasons, "recently posted")
	}

	if len(reasons) == 0 {
		return "liked by people with similar taste"
	}
	if len(reasons) == 1 {
		return reasons[0]
	}
	return reasons[0] + " and " + reasons[1]
}
