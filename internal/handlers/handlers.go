// Package handlers exposes the timeline, interaction and privacy HTTP API.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/corgi-recs/corgi/internal/alerts"
	"github.com/corgi-recs/corgi/internal/injection"
	"github.com/corgi-recs/corgi/internal/interactions"
	"github.com/corgi-recs/corgi/internal/metrics"
	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/signals"
)

// TimelineBuilder builds merged home timelines
type TimelineBuilder interface {
	BuildTimeline(ctx context.Context, req injection.Request) (*injection.Response, error)
}

// InteractionLogger records user actions
type InteractionLogger interface {
	Log(ctx context.Context, e interactions.Event) (*interactions.Result, error)
	Forget(ctx context.Context, userAlias string) (int64, error)
}

// PrivacyStore reads and writes privacy levels
type PrivacyStore interface {
	Level(ctx context.Context, userAlias string) (models.PrivacyLevel, error)
	Set(ctx context.Context, userAlias string, level models.PrivacyLevel) error
}

// ProfileStore exposes the signal profile
type ProfileStore interface {
	Status(ctx context.Context, userAlias string) (signals.Status, *signals.Profile, error)
	Reset(ctx context.Context, userAlias string) error
	Config() signals.Config
}

// StatusWriter performs write-through actions on the upstream instance
type StatusWriter interface {
	Favourite(ctx context.Context, token, id string) (*models.Post, error)
	Reblog(ctx context.Context, token, id string) (*models.Post, error)
	Bookmark(ctx context.Context, token, id string) (*models.Post, error)
}

// AlertSource exposes injection health alerts
type AlertSource interface {
	GetActiveAlerts() []*alerts.Alert
	GetStats() alerts.Stats
}

// HealthCheck reports the state of one dependency
type HealthCheck func(ctx context.Context) error

// Deps are the services behind the handlers. DB and Stats feed the metrics endpoint.
type Deps struct {
	Timeline     TimelineBuilder
	Interactions InteractionLogger
	Privacy      PrivacyStore
	Profiles     ProfileStore
	Statuses     StatusWriter
	Stats        *metrics.InjectionStats
	Alerts       AlertSource
	DB           *gorm.DB
}

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	timeline     TimelineBuilder
	interactions InteractionLogger
	privacy      PrivacyStore
	profiles     ProfileStore
	statuses     StatusWriter
	stats        *metrics.InjectionStats
	alerts       AlertSource
	db           *gorm.DB
	checks       map[string]HealthCheck
	started      time.Time
}

// NewHandlers creates a new handlers instance
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{
		timeline:     deps.Timeline,
		interactions: deps.Interactions,
		privacy:      deps.Privacy,
		profiles:     deps.Profiles,
		statuses:     deps.Statuses,
		stats:        deps.Stats,
		alerts:       deps.Alerts,
		db:           deps.DB,
		checks:       make(map[string]HealthCheck),
		started:      time.Now(),
	}
}

// AddHealthCheck registers a dependency probe for GET /health
func (h *Handlers) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/timelines/home", h.GetHomeTimeline)

		v1.POST("/interactions", h.LogInteraction)
		v1.POST("/statuses/:id/favourite", h.StatusAction(models.ActionFavorite))
		v1.POST("/statuses/:id/reblog", h.StatusAction(models.ActionReblog))
		v1.POST("/statuses/:id/bookmark", h.StatusAction(models.ActionBookmark))

		v1.GET("/privacy", h.GetPrivacy)
		v1.PUT("/privacy", h.UpdatePrivacy)

		recs := v1.Group("/recommendations")
		recs.GET("/profile", h.GetProfile)
		recs.DELETE("/profile", h.DeleteProfile)
		recs.GET("/metrics", h.GetMetrics)
	}
}
