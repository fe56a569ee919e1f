package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/corgi-recs/corgi/internal/logger"
	"github.com/corgi-recs/corgi/internal/models"
)

// Impression is one injected post shown in a timeline
type Impression struct {
	PostID   string
	Source   string
	Strategy string
	Position int
	Score    float64
	Reason   string
}

// ImpressionTracker records which injected posts users saw and which they acted on
type ImpressionTracker struct {
	db *gorm.DB
	wg sync.WaitGroup
}

// NewImpressionTracker creates a tracker
func NewImpressionTracker(db *gorm.DB) *ImpressionTracker {
	return &ImpressionTracker{db: db}
}

// Track stores impressions without blocking the caller
func (t *ImpressionTracker) Track(userAlias string, impressions []Impression) {
	if t == nil || userAlias == "" || len(impressions) == 0 {
		return
	}

	rows := make([]models.RecommendationImpression, 0, len(impressions))
	for _, imp := range impressions {
		score, reason := imp.Score, imp.Reason
		rows = append(rows, models.RecommendationImpression{
			UserAlias: userAlias,
			PostID:    imp.PostID,
			Source:    imp.Source,
			Strategy:  imp.Strategy,
			Position:  imp.Position,
			Score:     &score,
			Reason:    &reason,
		})
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := t.db.CreateInBatches(&rows, 100).Error; err != nil {
			logger.Log.Warn("Failed to track impressions",
				logger.WithUserAlias(userAlias),
				zap.Int("count", len(rows)),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until in-flight Track writes finish
func (t *ImpressionTracker) Wait() {
	t.wg.Wait()
}

// MarkClicked flags the user's unclicked impressions of a post as clicked.
// It returns the injection context of the newest one, or nil if the post was never injected.
func (t *ImpressionTracker) MarkClicked(ctx context.Context, userAlias, postID string) (*models.RecommendationImpression, error) {
	var latest models.RecommendationImpression
	err := t.db.WithContext(ctx).
		Where("user_alias = ? AND post_id = ?", userAlias, postID).
		Order("created_at DESC").
		Limit(1).
		Find(&latest).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load impression: %w", err)
	}
	if latest.ID == "" {
		return nil, nil
	}

	now := time.Now().UTC()
	err = t.db.WithContext(ctx).Model(&models.RecommendationImpression{}).
		Where("user_alias = ? AND post_id = ? AND clicked = ?", userAlias, postID, false).
		Updates(map[string]interface{}{"clicked": true, "clicked_at": now}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to mark impression clicked: %w", err)
	}
	latest.Clicked = true
	latest.ClickedAt = &now
	return &latest, nil
}

// Sources reported in CTR metrics
var ctrSources = []string{string(models.SourceColdStart), string(models.SourcePersonalized)}

// CTRMetric represents click-through rate for a candidate source
type CTRMetric struct {
	Source      string  `json:"source"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	CTR         float64 `json:"ctr"` // clicks/impressions * 100
}

// CalculateCTR calculates click-through rates for each candidate source since a time
func CalculateCTR(ctx context.Context, db *gorm.DB, since time.Time) ([]CTRMetric, error) {
	out := make([]CTRMetric, 0, len(ctrSources))
	for _, source := range ctrSources {
		var impressions, clicks int64
		base := db.WithContext(ctx).Model(&models.RecommendationImpression{}).
			Where("source = ? AND created_at >= ?", source, since)

		if err := base.Session(&gorm.Session{}).Count(&impressions).Error; err != nil {
			return nil, fmt.Errorf("failed to count impressions for %s: %w", source, err)
		}
		if err := base.Session(&gorm.Session{}).Where("clicked = ?", true).Count(&clicks).Error; err != nil {
			return nil, fmt.Errorf("failed to count clicks for %s: %w", source, err)
		}

		ctr := 0.0
		if impressions > 0 {
			ctr = float64(clicks) / float64(impressions) * 100
		}
		out = append(out, CTRMetric{Source: source, Impressions: impressions, Clicks: clicks, CTR: ctr})
	}
	return out, nil
}
