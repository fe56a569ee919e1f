package injection

import (
	"context"

	"github.com/corgi-recs/corgi/internal/metrics"
	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/placement"
	"github.com/corgi-recs/corgi/internal/signals"
	"github.com/corgi-recs/corgi/internal/upstream"
)

// Reasons reported when injection does not run
const (
	ReasonDisabled         = "disabled"
	ReasonSuppressed       = "suppressed"
	ReasonNoPostsAvailable = "no_posts_available"
)

// Request is the user context of one timeline build
type Request struct {
	UserAlias   string // empty for anonymous users
	AccessToken string

	Strategy       string            // placement strategy override
	StrategyParams *placement.Params // parameters for the override
	Limit          int
	MaxID          string
	SinceID        string

	ForceColdStart bool
	NewUser        bool  // client-declared onboarding state
	Inject         *bool // nil leaves the decision to privacy and profile
	MaxInjections  *int
}

// InjectionMetadata explains why a post was injected
type InjectionMetadata struct {
	Source      models.CandidateSource `json:"source"`
	Strategy    string                 `json:"strategy"`
	Explanation string                 `json:"explanation"`
	Score       float64                `json:"score"`
}

// AnnotatedPost is a timeline entry as returned to clients
type AnnotatedPost struct {
	models.Post
	Injected           bool               `json:"injected"`
	IsRealMastodonPost bool               `json:"is_real_mastodon_post"`
	IsSynthetic        bool               `json:"is_synthetic"`
	InjectionMetadata  *InjectionMetadata `json:"injection_metadata,omitempty"`
}

// Meta describes what the orchestrator did
type Meta struct {
	Performed        bool    `json:"performed"`
	Reason           string  `json:"reason,omitempty"`
	Strategy         string  `json:"strategy,omitempty"`
	Source           string  `json:"source,omitempty"`
	InjectedCount    int     `json:"injected_count"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
	UserStatus       string  `json:"user_status,omitempty"`
}

// Response is a merged timeline
type Response struct {
	Items []AnnotatedPost `json:"items"`
	Meta  Meta            `json:"injection"`
}

// TimelineFetcher returns the user's real posts in upstream order
type TimelineFetcher interface {
	HomeTimeline(ctx context.Context, token string, page upstream.Page) ([]models.Post, error)
}

// ProfileReader reads a user's sourcing status
type ProfileReader interface {
	Status(ctx context.Context, userAlias string) (signals.Status, *signals.Profile, error)
}

// ImpressionTracker records injected posts shown to users
type ImpressionTracker interface {
	Track(userAlias string, impressions []metrics.Impression)
}

// PostArchive caches fetched posts for later personalized sourcing
type PostArchive interface {
	Save(ctx context.Context, posts []models.Post) error
}
