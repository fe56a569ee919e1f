// Package injection builds home timelines with recommended posts merged in.
package injection

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/corgi-recs/corgi/internal/candidates"
	apierrors "github.com/corgi-recs/corgi/internal/errors"
	"github.com/corgi-recs/corgi/internal/logger"
	"github.com/corgi-recs/corgi/internal/metrics"
	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/placement"
	"github.com/corgi-recs/corgi/internal/privacy"
	"github.com/corgi-recs/corgi/internal/signals"
	"github.com/corgi-recs/corgi/internal/telemetry"
	"github.com/corgi-recs/corgi/internal/upstream"
)

// Service is the injection orchestrator
type Service struct {
	cfg          Config
	privacy      privacy.Checker
	profiles     ProfileReader
	upstream     TimelineFetcher
	coldStart    candidates.Source
	personalized candidates.Source

	recorder    metrics.Recorder
	impressions ImpressionTracker
	archive     PostArchive
	rand        *rand.Rand
}

// Deps are the collaborators of the orchestrator. Personalized, Recorder,
// Impressions and Archive are optional.
type Deps struct {
	Privacy      privacy.Checker
	Profiles     ProfileReader
	Upstream     TimelineFetcher
	ColdStart    candidates.Source
	Personalized candidates.Source
	Recorder     metrics.Recorder
	Impressions  ImpressionTracker
	Archive      PostArchive
}

// NewService creates an orchestrator
func NewService(cfg Config, deps Deps) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Privacy == nil || deps.Profiles == nil || deps.Upstream == nil || deps.ColdStart == nil {
		return nil, fmt.Errorf("injection: privacy, profiles, upstream and cold-start source are required")
	}
	return &Service{
		cfg:          cfg,
		privacy:      deps.Privacy,
		profiles:     deps.Profiles,
		upstream:     deps.Upstream,
		coldStart:    deps.ColdStart,
		personalized: deps.Personalized,
		recorder:     deps.Recorder,
		impressions:  deps.Impressions,
		archive:      deps.Archive,
	}, nil
}

// WithRand makes shuffling deterministic
func (s *Service) WithRand(r *rand.Rand) *Service {
	s.rand = r
	return s
}

// plan is the resolved sourcing decision for one request
type plan struct {
	source   candidates.Source
	name     models.CandidateSource
	strategy placement.Strategy
	status   signals.Status
	profile  *signals.Profile
	max      int
}

// BuildTimeline fetches real posts and candidates concurrently and merges them.
//
// Fetch failures degrade to an empty sequence for that side. The only errors
// returned are invalid placement overrides and cancellation by the caller.
func (s *Service) BuildTimeline(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	ctx, span := telemetry.TraceBuildTimeline(ctx, req.UserAlias == "")
	attrs := telemetry.TimelineAttrs{}
	defer func() { telemetry.EndBuildTimeline(span, attrs) }()

	override, maxInjections, err := s.resolveOverrides(req)
	if err != nil {
		return nil, err
	}
	limit := s.limit(req.Limit)
	page := upstream.Page{Limit: limit, MaxID: req.MaxID, SinceID: req.SinceID}

	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	decision, err := s.privacy.Check(ctx, req.UserAlias)
	if err != nil {
		// fail closed: without a decision nothing is personalized
		logger.Log.Warn("Privacy check failed, skipping injection", logger.WithUserAlias(req.UserAlias), zap.Error(err))
		decision = privacy.DecisionFor(models.PrivacyNone)
	}
	if !decision.AllowPersonalization {
		return s.passThrough(ctx, req, page, ReasonDisabled, start, &attrs)
	}
	if req.Inject != nil && !*req.Inject {
		return s.passThrough(ctx, req, page, ReasonSuppressed, start, &attrs)
	}

	p := s.resolvePlan(ctx, req, override, maxInjections)
	real, cands, upstreamErr, candidateErr := s.fetchBoth(ctx, req, page, p)
	if err := callerGone(ctx); err != nil {
		return nil, err
	}

	event := metrics.Event{
		UserAlias:      req.UserAlias,
		RealCount:      len(real),
		CandidateCount: len(cands),
		UpstreamError:  errString(upstreamErr),
		CandidateError: errString(candidateErr),
	}

	if len(real) == 0 && len(cands) == 0 {
		meta := Meta{Reason: ReasonNoPostsAvailable, UserStatus: string(p.status)}
		return s.finish(req, []AnnotatedPost{}, meta, event, start, &attrs), nil
	}

	items, err := placement.Merge(real, cands, placement.Config{
		Strategy:        p.strategy,
		MaxInjections:   p.max,
		ShuffleInjected: s.cfg.ShuffleInjected,
		Rand:            s.rand,
	})
	if err != nil {
		return nil, apierrors.InvalidPlacement("strategy", err)
	}

	annotated := annotate(items, string(p.strategy.Kind()))
	meta := Meta{
		Performed:     true,
		Strategy:      string(p.strategy.Kind()),
		Source:        string(p.name),
		InjectedCount: placement.InjectedCount(items),
		UserStatus:    string(p.status),
	}
	s.trackImpressions(req.UserAlias, annotated)
	s.archivePosts(real)
	return s.finish(req, annotated, meta, event, start, &attrs), nil
}

// resolveOverrides validates request overrides before anything is fetched
func (s *Service) resolveOverrides(req Request) (placement.Strategy, int, error) {
	max := s.cfg.MaxInjections
	if req.MaxInjections != nil {
		if *req.MaxInjections < 0 {
			return nil, 0, apierrors.InvalidPlacement("max_injections",
				fmt.Errorf("%w: max_injections must be >= 0", placement.ErrInvalidParameter))
		}
		max = *req.MaxInjections
	}
	if req.Strategy == "" {
		return nil, max, nil
	}
	params := s.cfg.Params
	if req.StrategyParams != nil {
		params = *req.StrategyParams
	}
	strategy, err := placement.ParseStrategy(req.Strategy, params)
	if err != nil {
		return nil, 0, apierrors.InvalidPlacement("strategy", err)
	}
	return strategy, max, nil
}

func (s *Service) limit(requested int) int {
	switch {
	case requested <= 0:
		return s.cfg.DefaultLimit
	case requested > s.cfg.MaxLimit:
		return s.cfg.MaxLimit
	}
	return requested
}

// resolvePlan picks the candidate source and placement strategy from the user's state
func (s *Service) resolvePlan(ctx context.Context, req Request, override placement.Strategy, max int) plan {
	p := plan{
		source: s.coldStart,
		name:   models.SourceColdStart,
		status: signals.StatusNew,
		max:    max,
	}
	kind := s.cfg.ColdStartStrategy

	if req.UserAlias != "" {
		status, profile, err := s.profiles.Status(ctx, req.UserAlias)
		if err != nil {
			logger.Log.Warn("Signal profile unavailable, using cold start", logger.WithUserAlias(req.UserAlias), zap.Error(err))
		} else {
			p.status, p.profile = status, profile
		}
	}

	switch {
	case req.ForceColdStart:
	case p.status == signals.StatusPromoted && s.personalized != nil:
		p.source = s.personalized
		p.name = models.SourcePersonalized
		kind = s.cfg.PersonalizedStrategy
	}
	if req.NewUser && p.name == models.SourceColdStart {
		kind = s.cfg.NewUserStrategy
	}

	if override != nil {
		p.strategy = override
		return p
	}
	// configured kinds are validated at construction
	p.strategy, _ = placement.ParseStrategy(string(kind), s.cfg.Params)
	return p
}

type fetchResult struct {
	stage string
	posts []models.Post
	cands []models.Candidate
	err   error
}

// fetchBoth runs the upstream and candidate fetches in parallel, each with its own timeout
func (s *Service) fetchBoth(ctx context.Context, req Request, page upstream.Page, p plan) ([]models.Post, []models.Candidate, error, error) {
	results := make(chan fetchResult, 2)

	go func() {
		posts, err := s.fetchReal(ctx, req.AccessToken, page)
		results <- fetchResult{stage: "upstream", posts: posts, err: err}
	}()

	go func() {
		count := p.max
		if p.strategy.Kind() == placement.KindTagMatch && s.cfg.TagMatchOverfetch > 1 {
			count *= s.cfg.TagMatchOverfetch
		}
		cands, err := s.fetchCandidates(ctx, p, candidates.Request{
			UserAlias: req.UserAlias,
			Count:     count,
			Profile:   p.profile,
		})
		results <- fetchResult{stage: "candidates", cands: cands, err: err}
	}()

	var (
		real                      []models.Post
		cands                     []models.Candidate
		upstreamErr, candidateErr error
	)
	for i := 0; i < 2; i++ {
		r := <-results
		if r.err != nil {
			// one side failing never blocks or invalidates the other
			logger.Log.Warn("Timeline fetch failed",
				zap.String("stage", r.stage),
				logger.WithUserAlias(req.UserAlias),
				zap.Error(r.err),
			)
		}
		switch r.stage {
		case "upstream":
			real, upstreamErr = r.posts, r.err
		case "candidates":
			cands, candidateErr = r.cands, r.err
		}
	}
	return real, cands, upstreamErr, candidateErr
}

func (s *Service) fetchReal(ctx context.Context, token string, page upstream.Page) ([]models.Post, error) {
	if token == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.UpstreamTimeout)
	defer cancel()
	ctx, span := telemetry.TraceFetch(ctx, "upstream")

	posts, err := s.upstream.HomeTimeline(ctx, token, page)
	if err != nil {
		telemetry.EndFetch(span, 0, err)
		return nil, err
	}
	posts = validPosts(posts)
	telemetry.EndFetch(span, len(posts), nil)
	return posts, nil
}

func (s *Service) fetchCandidates(ctx context.Context, p plan, req candidates.Request) ([]models.Candidate, error) {
	if req.Count <= 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CandidateTimeout)
	defer cancel()
	ctx, span := telemetry.TraceFetch(ctx, "candidates")

	cands, err := p.source.Candidates(ctx, req)
	if err == nil && ctx.Err() != nil {
		// a source that ignores its context must not outlive the timeout
		err = ctx.Err()
	}
	if err != nil {
		telemetry.EndFetch(span, 0, err)
		return nil, err
	}
	cands = validCandidates(cands)
	telemetry.EndFetch(span, len(cands), nil)
	return cands, nil
}

// passThrough serves real posts untouched, without consulting any candidate source
func (s *Service) passThrough(ctx context.Context, req Request, page upstream.Page, reason string, start time.Time, attrs *telemetry.TimelineAttrs) (*Response, error) {
	real, err := s.fetchReal(ctx, req.AccessToken, page)
	if err != nil {
		logger.Log.Warn("Timeline fetch failed",
			zap.String("stage", "upstream"),
			logger.WithUserAlias(req.UserAlias),
			zap.Error(err),
		)
	}
	if cerr := callerGone(ctx); cerr != nil {
		return nil, cerr
	}

	items := make([]AnnotatedPost, 0, len(real))
	for _, p := range real {
		items = append(items, realPost(p))
	}
	event := metrics.Event{
		UserAlias:     req.UserAlias,
		RealCount:     len(real),
		UpstreamError: errString(err),
	}
	return s.finish(req, items, Meta{Reason: reason}, event, start, attrs), nil
}

func (s *Service) finish(req Request, items []AnnotatedPost, meta Meta, event metrics.Event, start time.Time, attrs *telemetry.TimelineAttrs) *Response {
	elapsed := time.Since(start)
	meta.ProcessingTimeMs = float64(elapsed.Microseconds()) / 1000

	event.Performed = meta.Performed
	event.Reason = meta.Reason
	event.Strategy = meta.Strategy
	event.Source = meta.Source
	event.InjectedCount = meta.InjectedCount
	event.Duration = elapsed
	s.record(event)

	*attrs = telemetry.TimelineAttrs{
		Strategy:      meta.Strategy,
		Source:        meta.Source,
		Performed:     meta.Performed,
		Reason:        meta.Reason,
		RealCount:     event.RealCount,
		InjectedCount: meta.InjectedCount,
	}

	logger.Log.Debug("Timeline built",
		logger.WithUserAlias(req.UserAlias),
		logger.WithStrategy(meta.Strategy),
		logger.WithSource(meta.Source),
		zap.Bool("performed", meta.Performed),
		zap.String("reason", meta.Reason),
		zap.Int("items", len(items)),
		zap.Int("injected", meta.InjectedCount),
		logger.WithDuration(elapsed),
	)
	return &Response{Items: items, Meta: meta}
}

// record hands the event to the metrics sink; it can never fail the request
func (s *Service) record(e metrics.Event) {
	if s.recorder == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("Metrics recorder panicked", zap.Any("panic", r))
		}
	}()
	s.recorder.Record(e)
}

func (s *Service) trackImpressions(userAlias string, items []AnnotatedPost) {
	if s.impressions == nil || userAlias == "" {
		return
	}
	var impressions []metrics.Impression
	for i, item := range items {
		if !item.Injected {
			continue
		}
		impressions = append(impressions, metrics.Impression{
			PostID:   item.ID,
			Source:   string(item.InjectionMetadata.Source),
			Strategy: item.InjectionMetadata.Strategy,
			Position: i,
			Score:    item.InjectionMetadata.Score,
			Reason:   item.InjectionMetadata.Explanation,
		})
	}
	s.impressions.Track(userAlias, impressions)
}

func (s *Service) archivePosts(posts []models.Post) {
	if s.archive == nil || len(posts) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.archive.Save(ctx, posts); err != nil {
			logger.Log.Warn("Failed to archive timeline posts", zap.Int("count", len(posts)), zap.Error(err))
		}
	}()
}

// callerGone reports cancellation by the caller. Our own request timeout is
// not an error: it degrades the fetches instead.
func callerGone(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func validPosts(in []models.Post) []models.Post {
	out := make([]models.Post, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, p := range in {
		if p.Validate() != nil || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

func validCandidates(in []models.Candidate) []models.Candidate {
	out := make([]models.Candidate, 0, len(in))
	for _, c := range in {
		if c.Validate() != nil {
			continue
		}
		if c.Score < 0 {
			c.Score = 0
		} else if c.Score > 1 {
			c.Score = 1
		}
		out = append(out, c)
	}
	return out
}
