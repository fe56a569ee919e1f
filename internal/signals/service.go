// Package signals accumulates per-user preference weights from interactions and
// derives cold-start promotion and re-entry from them.
package signals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/corgi-recs/corgi/internal/logger"
	"github.com/corgi-recs/corgi/internal/models"
)

// ErrNoProfile is returned when a user has never interacted
var ErrNoProfile = errors.New("signal profile not found")

// SnapshotCache is the subset of the Redis client used to cache profile snapshots
type SnapshotCache interface {
	Get(ctx context.Context, key string) (string, error)
	SetEx(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Service owns the signal profile records.
// Only Update and Reset write; the timeline path only reads.
type Service struct {
	db    *gorm.DB
	cfg   Config
	cache SnapshotCache
	locks *keyedMutex
	now   func() time.Time
}

// NewService creates a signal profile service
func NewService(db *gorm.DB, cfg Config) *Service {
	return &Service{
		db:    db,
		cfg:   cfg,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

// WithCache enables snapshot caching
func (s *Service) WithCache(c SnapshotCache) *Service {
	s.cache = c
	return s
}

// WithClock overrides the time source
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Config returns the configuration the service was built with
func (s *Service) Config() Config {
	return s.cfg
}

// Update adds the weight of action to every signal pair on post and bumps the counters.
// Concurrent updates for one user are serialized; different users do not contend.
func (s *Service) Update(ctx context.Context, userAlias string, post models.Post, action models.ActionType) error {
	if userAlias == "" {
		return fmt.Errorf("signals: empty user alias")
	}
	weight := s.cfg.Weight(action)
	countColumn, err := actionColumn(action)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(userAlias)
	defer unlock()

	now := s.now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile := models.SignalProfile{
			UserAlias:         userAlias,
			InteractionCount:  1,
			LastInteractionAt: &now,
		}
		setActionCount(&profile, action)

		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_alias"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"interaction_count":   gorm.Expr("signal_profiles.interaction_count + 1"),
				countColumn:           gorm.Expr("signal_profiles." + countColumn + " + 1"),
				"last_interaction_at": now,
				"updated_at":          now,
			}),
		}).Create(&profile).Error
		if err != nil {
			return fmt.Errorf("failed to update signal profile: %w", err)
		}

		if post.ID != "" {
			seen := models.SeenPost{UserAlias: userAlias, PostID: post.ID, CreatedAt: now}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seen).Error; err != nil {
				return fmt.Errorf("failed to record seen post: %w", err)
			}
		}

		for _, pair := range signalPairs(post) {
			row := models.SignalWeight{
				UserAlias: userAlias,
				Dimension: pair[0],
				Value:     pair[1],
				Weight:    weight,
				UpdatedAt: now,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "user_alias"}, {Name: "dimension"}, {Name: "value"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"weight":     gorm.Expr("signal_weights.weight + ?", weight),
					"updated_at": now,
				}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("failed to update %s weight: %w", pair[0], err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, userAlias)
	logger.Log.Debug("Signal profile updated",
		logger.WithUserAlias(userAlias),
		logger.WithPostID(post.ID),
		zap.String("action", string(action)),
		zap.Float64("weight", weight),
	)
	return nil
}

// GetProfile returns a snapshot of the user's profile or ErrNoProfile
func (s *Service) GetProfile(ctx context.Context, userAlias string) (*Profile, error) {
	if !s.caching() {
		return s.load(ctx, userAlias)
	}
	if p, ok := s.cached(ctx, userAlias); ok {
		return p, nil
	}

	// Filling under the user's lock orders the read and the cache write against
	// Update's commit and invalidation, so a stale snapshot cannot be stored after them.
	unlock := s.locks.Lock(userAlias)
	defer unlock()
	if p, ok := s.cached(ctx, userAlias); ok {
		return p, nil
	}
	p, err := s.load(ctx, userAlias)
	if err != nil {
		return nil, err
	}
	s.store(ctx, p)
	return p, nil
}

func (s *Service) load(ctx context.Context, userAlias string) (*Profile, error) {
	var row models.SignalProfile
	err := s.db.WithContext(ctx).First(&row, "user_alias = ?", userAlias).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoProfile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load signal profile: %w", err)
	}

	var weights []models.SignalWeight
	if err := s.db.WithContext(ctx).Where("user_alias = ?", userAlias).Find(&weights).Error; err != nil {
		return nil, fmt.Errorf("failed to load signal weights: %w", err)
	}

	p := &Profile{
		UserAlias:        row.UserAlias,
		InteractionCount: row.InteractionCount,
		ActionCounts: map[models.ActionType]int64{
			models.ActionFavorite: row.FavoriteCount,
			models.ActionReblog:   row.ReblogCount,
			models.ActionBookmark: row.BookmarkCount,
			models.ActionReply:    row.ReplyCount,
		},
		LastInteractionAt: row.LastInteractionAt,
		Weights:           make(map[string]map[string]float64, len(models.Dimensions)),
	}
	for _, w := range weights {
		if p.Weights[w.Dimension] == nil {
			p.Weights[w.Dimension] = make(map[string]float64)
		}
		p.Weights[w.Dimension][w.Value] = w.Weight
	}
	return p, nil
}

// IsPromoted reports whether the user has graduated to personalized sourcing
func (s *Service) IsPromoted(ctx context.Context, userAlias string) (bool, error) {
	p, err := s.GetProfile(ctx, userAlias)
	if errors.Is(err, ErrNoProfile) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.cfg.IsPromoted(p), nil
}

// NeedsReentry reports whether a promoted user should fall back to cold start
func (s *Service) NeedsReentry(ctx context.Context, userAlias string) (bool, error) {
	p, err := s.GetProfile(ctx, userAlias)
	if errors.Is(err, ErrNoProfile) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.cfg.NeedsReentry(p, s.now()), nil
}

// Status loads the profile and derives its sourcing status.
// The returned profile is nil for users without history.
func (s *Service) Status(ctx context.Context, userAlias string) (Status, *Profile, error) {
	p, err := s.GetProfile(ctx, userAlias)
	if errors.Is(err, ErrNoProfile) {
		return StatusNew, nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	return s.cfg.StatusOf(p, s.now()), p, nil
}

// Reset deletes every signal the user has accumulated
func (s *Service) Reset(ctx context.Context, userAlias string) error {
	unlock := s.locks.Lock(userAlias)
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_alias = ?", userAlias).Delete(&models.SignalWeight{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_alias = ?", userAlias).Delete(&models.SeenPost{}).Error; err != nil {
			return err
		}
		return tx.Where("user_alias = ?", userAlias).Delete(&models.SignalProfile{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to reset signal profile: %w", err)
	}
	s.invalidate(ctx, userAlias)
	logger.Log.Info("Signal profile reset", logger.WithUserAlias(userAlias))
	return nil
}

func cacheKey(userAlias string) string {
	return "corgi:signals:profile:" + userAlias
}

func (s *Service) caching() bool {
	return s.cache != nil && s.cfg.CacheTTL > 0
}

func (s *Service) cached(ctx context.Context, userAlias string) (*Profile, bool) {
	if !s.caching() {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, cacheKey(userAlias))
	if err != nil {
		return nil, false
	}
	var p Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		logger.Log.Warn("Discarding unreadable profile snapshot", logger.WithUserAlias(userAlias), zap.Error(err))
		return nil, false
	}
	return &p, true
}

func (s *Service) store(ctx context.Context, p *Profile) {
	if !s.caching() {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.cache.SetEx(ctx, cacheKey(p.UserAlias), raw, s.cfg.CacheTTL); err != nil {
		logger.Log.Warn("Failed to cache profile snapshot", logger.WithUserAlias(p.UserAlias), zap.Error(err))
	}
}

func (s *Service) invalidate(ctx context.Context, userAlias string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(userAlias)); err != nil {
		logger.Log.Warn("Failed to invalidate profile snapshot", logger.WithUserAlias(userAlias), zap.Error(err))
	}
}

func actionColumn(action models.ActionType) (string, error) {
	switch action {
	case models.ActionFavorite:
		return "favorite_count", nil
	case models.ActionReblog:
		return "reblog_count", nil
	case models.ActionBookmark:
		return "bookmark_count", nil
	case models.ActionReply:
		return "reply_count", nil
	}
	return "", fmt.Errorf("signals: unknown action type %q", action)
}

func setActionCount(p *models.SignalProfile, action models.ActionType) {
	switch action {
	case models.ActionFavorite:
		p.FavoriteCount = 1
	case models.ActionReblog:
		p.ReblogCount = 1
	case models.ActionBookmark:
		p.BookmarkCount = 1
	case models.ActionReply:
		p.ReplyCount = 1
	}
}
