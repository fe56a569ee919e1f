// Package privacy decides how much a user's activity may be used for recommendations.
package privacy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/corgi-recs/corgi/internal/logger"
	"github.com/corgi-recs/corgi/internal/models"
)

// DefaultLevel applies to users who never chose a level
const DefaultLevel = models.PrivacyLimited

// lookupTimeout bounds a shared level lookup, which outlives any single caller's context
const lookupTimeout = 5 * time.Second

// Decision is the outcome of a privacy check
type Decision struct {
	Level                models.PrivacyLevel `json:"level"`
	AllowPersonalization bool                `json:"allow_personalization"`
	AllowDetailedStorage bool                `json:"allow_detailed_storage"`
}

// DecisionFor maps a level to its permissions
func DecisionFor(level models.PrivacyLevel) Decision {
	switch level {
	case models.PrivacyFull:
		return Decision{Level: level, AllowPersonalization: true, AllowDetailedStorage: true}
	case models.PrivacyNone:
		return Decision{Level: level}
	default:
		return Decision{Level: models.PrivacyLimited, AllowPersonalization: true}
	}
}

// Checker is consulted before any personalization happens
type Checker interface {
	Check(ctx context.Context, userAlias string) (Decision, error)
}

// Cache is the subset of the Redis client used to cache levels
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	SetEx(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Gate stores privacy levels and answers checks
type Gate struct {
	db           *gorm.DB
	defaultLevel models.PrivacyLevel
	cache        Cache
	cacheTTL     time.Duration
	group        singleflight.Group
}

// NewGate creates a gate; an empty default falls back to DefaultLevel
func NewGate(db *gorm.DB, defaultLevel models.PrivacyLevel) *Gate {
	if _, err := models.ParsePrivacyLevel(string(defaultLevel)); err != nil {
		defaultLevel = DefaultLevel
	}
	return &Gate{db: db, defaultLevel: defaultLevel}
}

// WithCache caches levels in Redis for ttl
func (g *Gate) WithCache(c Cache, ttl time.Duration) *Gate {
	g.cache = c
	g.cacheTTL = ttl
	return g
}

// Check returns the user's decision. Anonymous users get the default level.
func (g *Gate) Check(ctx context.Context, userAlias string) (Decision, error) {
	level, err := g.Level(ctx, userAlias)
	if err != nil {
		return Decision{}, err
	}
	return DecisionFor(level), nil
}

// Level returns the active level for a user
func (g *Gate) Level(ctx context.Context, userAlias string) (models.PrivacyLevel, error) {
	if userAlias == "" {
		return g.defaultLevel, nil
	}
	if level, ok := g.cached(ctx, userAlias); ok {
		return level, nil
	}

	// Callers joining the flight share its result, so the query must not die
	// with whichever caller happened to start it.
	ch := g.group.DoChan(userAlias, func() (interface{}, error) {
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()

		var row models.PrivacySetting
		err := g.db.WithContext(qctx).First(&row, "user_alias = ?", userAlias).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return g.defaultLevel, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load privacy setting: %w", err)
		}
		level, perr := models.ParsePrivacyLevel(string(row.Level))
		if perr != nil {
			logger.Log.Warn("Unknown stored privacy level, using default",
				logger.WithUserAlias(userAlias),
				zap.String("stored", string(row.Level)),
			)
			return g.defaultLevel, nil
		}
		g.store(qctx, userAlias, level)
		return level, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(models.PrivacyLevel), nil
	}
}

// Set replaces the user's level
func (g *Gate) Set(ctx context.Context, userAlias string, level models.PrivacyLevel) error {
	if userAlias == "" {
		return fmt.Errorf("privacy: empty user alias")
	}
	if _, err := models.ParsePrivacyLevel(string(level)); err != nil {
		return err
	}
	row := models.PrivacySetting{UserAlias: userAlias, Level: level, UpdatedAt: time.Now().UTC()}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_alias"}},
		DoUpdates: clause.AssignmentColumns([]string{"level", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save privacy setting: %w", err)
	}
	if g.cache != nil {
		if err := g.cache.Del(ctx, cacheKey(userAlias)); err != nil {
			logger.Log.Warn("Failed to invalidate privacy cache", logger.WithUserAlias(userAlias), zap.Error(err))
		}
	}
	logger.Log.Info("Privacy level changed", logger.WithUserAlias(userAlias), zap.String("level", string(level)))
	return nil
}

func cacheKey(userAlias string) string {
	return "corgi:privacy:" + userAlias
}

func (g *Gate) cached(ctx context.Context, userAlias string) (models.PrivacyLevel, bool) {
	if g.cache == nil || g.cacheTTL <= 0 {
		return "", false
	}
	raw, err := g.cache.Get(ctx, cacheKey(userAlias))
	if err != nil {
		return "", false
	}
	level, err := models.ParsePrivacyLevel(raw)
	if err != nil {
		return "", false
	}
	return level, true
}

func (g *Gate) store(ctx context.Context, userAlias string, level models.PrivacyLevel) {
	if g.cache == nil || g.cacheTTL <= 0 {
		return
	}
	if err := g.cache.SetEx(ctx, cacheKey(userAlias), string(level), g.cacheTTL); err != nil {
		logger.Log.Warn("Failed to cache privacy level", logger.WithUserAlias(userAlias), zap.Error(err))
	}
}
