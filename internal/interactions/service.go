// Package interactions logs user actions on posts and feeds them to the signal profile.
package interactions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/corgi-recs/corgi/internal/candidates"
	"github.com/corgi-recs/corgi/internal/logger"
	"github.com/corgi-recs/corgi/internal/metrics"
	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/privacy"
	"github.com/corgi-recs/corgi/internal/signals"
	"github.com/corgi-recs/corgi/internal/telemetry"
)

// Context is where the interaction happened, when the client knows
type Context struct {
	Source   string `json:"source,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	Position *int   `json:"position,omitempty"`
}

// Event is one user action on a post
type Event struct {
	UserAlias string
	PostID    string
	Action    models.ActionType
	// Post is the client's snapshot of the post. When nil the post cache is consulted.
	Post    *models.Post
	Context Context
}

// Result reports what logging an event changed
type Result struct {
	Stored   bool           `json:"stored"`
	Applied  bool           `json:"applied"`
	Promoted bool           `json:"is_promoted"`
	Status   signals.Status `json:"status"`
}

// SignalUpdater is the write side of the signal profile
type SignalUpdater interface {
	Update(ctx context.Context, userAlias string, post models.Post, action models.ActionType) error
	Status(ctx context.Context, userAlias string) (signals.Status, *signals.Profile, error)
}

// PostCache resolves post metadata for interactions that only carry an id
type PostCache interface {
	Get(ctx context.Context, id string) (*models.Post, error)
	Save(ctx context.Context, posts []models.Post) error
}

// ClickMarker attributes interactions to earlier injections
type ClickMarker interface {
	MarkClicked(ctx context.Context, userAlias, postID string) (*models.RecommendationImpression, error)
}

// FeedbackSink forwards interactions to an external recommender
type FeedbackSink interface {
	SyncFeedback(ctx context.Context, userAlias, postID string, action models.ActionType) error
}

// Service logs interactions
type Service struct {
	db       *gorm.DB
	privacy  privacy.Checker
	signals  SignalUpdater
	posts    PostCache
	clicks   ClickMarker
	feedback FeedbackSink
	wg       sync.WaitGroup
}

// NewService creates an interaction logger. posts and clicks may be nil.
func NewService(db *gorm.DB, checker privacy.Checker, updater SignalUpdater, posts PostCache, clicks ClickMarker) *Service {
	return &Service{
		db:      db,
		privacy: checker,
		signals: updater,
		posts:   posts,
		clicks:  clicks,
	}
}

// WithFeedback forwards interactions of fully consenting users to an external recommender
func (s *Service) WithFeedback(f FeedbackSink) *Service {
	s.feedback = f
	return s
}

// Log applies one interaction.
//
// Users at privacy level none are acknowledged without any state change. Raw
// interaction rows are only written when detailed storage is allowed.
func (s *Service) Log(ctx context.Context, e Event) (*Result, error) {
	ctx, span := telemetry.TraceInteraction(ctx, string(e.Action), e.PostID)
	result, err := s.log(ctx, e)
	if result != nil {
		telemetry.EndInteraction(span, result.Applied, result.Promoted, err)
	} else {
		telemetry.EndInteraction(span, false, false, err)
	}
	return result, err
}

func (s *Service) log(ctx context.Context, e Event) (*Result, error) {
	if e.UserAlias == "" {
		return nil, fmt.Errorf("interactions: empty user alias")
	}
	if e.PostID == "" && e.Post != nil {
		e.PostID = e.Post.ID
	}
	if e.PostID == "" {
		return nil, fmt.Errorf("interactions: empty post id")
	}
	action, err := models.ParseActionType(string(e.Action))
	if err != nil {
		return nil, err
	}
	e.Action = action

	decision, err := s.privacy.Check(ctx, e.UserAlias)
	if err != nil {
		logger.Log.Warn("Privacy check failed, dropping interaction", logger.WithUserAlias(e.UserAlias), zap.Error(err))
		decision = privacy.DecisionFor(models.PrivacyNone)
	}
	if !decision.AllowPersonalization {
		s.count(e.Action, false)
		return &Result{}, nil
	}

	before, _, err := s.signals.Status(ctx, e.UserAlias)
	if err != nil {
		return nil, fmt.Errorf("failed to read signal status: %w", err)
	}

	post := s.resolvePost(ctx, e)
	if err := s.signals.Update(ctx, e.UserAlias, post, e.Action); err != nil {
		return nil, err
	}

	if s.clicks != nil {
		imp, err := s.clicks.MarkClicked(ctx, e.UserAlias, e.PostID)
		if err != nil {
			logger.Log.Warn("Failed to attribute interaction to impression", logger.WithPostID(e.PostID), zap.Error(err))
		} else if imp != nil && e.Context.Source == "" {
			pos := imp.Position
			e.Context = Context{Source: imp.Source, Strategy: imp.Strategy, Position: &pos}
		}
	}

	result := &Result{Applied: true}
	if decision.AllowDetailedStorage {
		if err := s.store(ctx, e); err != nil {
			// the profile update already happened; losing the raw row is tolerable
			logger.Log.Error("Failed to store interaction", logger.WithUserAlias(e.UserAlias), logger.WithPostID(e.PostID), zap.Error(err))
		} else {
			result.Stored = true
		}
		s.forward(e)
	}
	s.count(e.Action, result.Stored)

	after, _, err := s.signals.Status(ctx, e.UserAlias)
	if err != nil {
		return nil, fmt.Errorf("failed to read signal status: %w", err)
	}
	result.Status = after
	result.Promoted = after == signals.StatusPromoted
	if result.Promoted && before != signals.StatusPromoted {
		metrics.Get().PromotionsTotal.Inc()
		logger.Log.Info("User promoted to personalized sourcing",
			logger.WithUserAlias(e.UserAlias),
			zap.String("previous_status", string(before)),
		)
	}
	return result, nil
}

// Wait blocks until in-flight feedback forwarding finishes
func (s *Service) Wait() {
	s.wg.Wait()
}

// Recent returns the user's newest stored interactions
func (s *Service) Recent(ctx context.Context, userAlias string, limit int) ([]models.Interaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []models.Interaction
	err := s.db.WithContext(ctx).
		Where("user_alias = ?", userAlias).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	return rows, nil
}

// Forget deletes every stored interaction of a user
func (s *Service) Forget(ctx context.Context, userAlias string) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_alias = ?", userAlias).Delete(&models.Interaction{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete interactions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Service) resolvePost(ctx context.Context, e Event) models.Post {
	if e.Post != nil {
		post := *e.Post
		post.ID = e.PostID
		// a snapshot without an author still carries tags for the profile, but is not cached
		if s.posts != nil && post.Validate() == nil {
			if err := s.posts.Save(ctx, []models.Post{post}); err != nil {
				logger.Log.Warn("Failed to cache interacted post", logger.WithPostID(post.ID), zap.Error(err))
			}
		}
		return post
	}
	if s.posts != nil {
		post, err := s.posts.Get(ctx, e.PostID)
		if err == nil {
			return *post
		}
		if !errors.Is(err, candidates.ErrPostNotFound) {
			logger.Log.Warn("Failed to load interacted post", logger.WithPostID(e.PostID), zap.Error(err))
		}
	}
	// unknown post: the interaction still counts toward promotion
	return models.Post{ID: e.PostID}
}

func (s *Service) store(ctx context.Context, e Event) error {
	row := models.Interaction{
		UserAlias:  e.UserAlias,
		PostID:     e.PostID,
		ActionType: e.Action,
		Source:     e.Context.Source,
		Strategy:   e.Context.Strategy,
		Position:   e.Context.Position,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Service) forward(e Event) {
	if s.feedback == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.feedback.SyncFeedback(ctx, e.UserAlias, e.PostID, e.Action); err != nil {
			logger.Log.Warn("Failed to forward feedback", logger.WithPostID(e.PostID), zap.Error(err))
		}
	}()
}

func (s *Service) count(action models.ActionType, stored bool) {
	metrics.Get().InteractionsTotal.WithLabelValues(string(action), strconv.FormatBool(stored)).Inc()
}
