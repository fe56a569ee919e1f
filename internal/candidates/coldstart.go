package candidates

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/corgi-recs/corgi/internal/logger"
	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/signals"
)

// Scoring strategy tags carried on cold-start candidates
const (
	StrategyWeightedRandom     = "weighted_random"
	StrategyRandomDiversity    = "random_diversity"
	StrategyPreferenceWeighted = "preference_weighted"
)

// PoolEntry is one post of the cold-start pool with its sampling weight
type PoolEntry struct {
	models.Post
	Weight float64 `json:"weight"`
}

// ColdStartPool serves candidates from a curated JSON file of posts.
// The file is read once, on first use.
type ColdStartPool struct {
	path   string
	cfg    signals.Config
	scorer Scorer

	group   singleflight.Group
	mu      sync.RWMutex
	entries []PoolEntry

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewColdStartPool creates a pool backed by the JSON file at path
func NewColdStartPool(path string, cfg signals.Config, scorer Scorer) *ColdStartPool {
	return &ColdStartPool{
		path:   path,
		cfg:    cfg,
		scorer: scorer,
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// NewStaticPool creates a pool from entries already in memory
func NewStaticPool(entries []PoolEntry, cfg signals.Config, scorer Scorer) *ColdStartPool {
	p := NewColdStartPool("", cfg, scorer)
	p.entries = normalizeEntries(entries)
	return p
}

// WithRand makes sampling deterministic
func (p *ColdStartPool) WithRand(r *rand.Rand) *ColdStartPool {
	p.rng = r
	return p
}

// Load returns the pool entries, reading the file if it has not been read yet.
// Concurrent first calls share a single read; failures are not cached.
func (p *ColdStartPool) Load(ctx context.Context) ([]PoolEntry, error) {
	p.mu.RLock()
	entries := p.entries
	p.mu.RUnlock()
	if entries != nil {
		return entries, nil
	}

	v, err, _ := p.group.Do("pool", func() (interface{}, error) {
		loaded, err := ReadPoolFile(p.path)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.entries = loaded
		p.mu.Unlock()
		logger.Log.Info("Cold-start pool loaded", zap.String("path", p.path), zap.Int("posts", len(loaded)))
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]PoolEntry), nil
}

// ReadPoolFile parses a pool file, skipping malformed entries
func ReadPoolFile(path string) ([]PoolEntry, error) {
	if path == "" {
		return nil, fmt.Errorf("cold-start pool path not configured")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cold-start pool: %w", err)
	}
	var entries []PoolEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse cold-start pool: %w", err)
	}
	entries = normalizeEntries(entries)
	if len(entries) == 0 {
		return nil, fmt.Errorf("cold-start pool %s has no usable posts", path)
	}
	return entries, nil
}

func normalizeEntries(in []PoolEntry) []PoolEntry {
	out := make([]PoolEntry, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, e := range in {
		if err := e.Validate(); err != nil {
			logger.Log.Warn("Skipping invalid cold-start post", zap.Error(err))
			continue
		}
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		if e.Weight <= 0 {
			e.Weight = 1
		}
		out = append(out, e)
	}
	return out
}

// Candidates implements Source.
// Anonymous users and users without history get a weighted random sample. Known users
// get a blend of random picks and preference-weighted picks split by the blend ratios.
func (p *ColdStartPool) Candidates(ctx context.Context, req Request) ([]models.Candidate, error) {
	entries, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	n := req.Count
	if n > len(entries) {
		n = len(entries)
	}
	if n <= 0 {
		return nil, nil
	}

	var out []models.Candidate
	if req.Profile == nil {
		out = p.sampleAnonymous(entries, n)
	} else {
		out = p.sampleBlended(entries, n, req.Profile)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (p *ColdStartPool) sampleAnonymous(entries []PoolEntry, n int) []models.Candidate {
	maxWeight := 0.0
	for _, e := range entries {
		maxWeight = math.Max(maxWeight, e.Weight)
	}
	picks := p.weightedSample(entries, n)
	out := make([]models.Candidate, 0, len(picks))
	for _, e := range picks {
		out = append(out, models.Candidate{
			Post:     e.Post,
			Score:    e.Weight / maxWeight,
			Reason:   "Popular with people new to the fediverse",
			Source:   models.SourceColdStart,
			Strategy: StrategyWeightedRandom,
		})
	}
	return out
}

func (p *ColdStartPool) sampleBlended(entries []PoolEntry, n int, profile *signals.Profile) []models.Candidate {
	_, weightedRatio := p.cfg.BlendRatios(profile.InteractionCount)
	nWeighted := int(math.Round(float64(n) * weightedRatio))

	type scored struct {
		entry  PoolEntry
		score  float64
		reason string
	}
	ranked := make([]scored, 0, len(entries))
	for _, e := range entries {
		s, reason := p.scorer.Score(e.Post, profile)
		ranked = append(ranked, scored{e, s, reason})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]models.Candidate, 0, n)
	scores := make(map[string]scored, len(ranked))
	rest := make([]PoolEntry, 0, len(ranked))
	for i, r := range ranked {
		if i < nWeighted {
			out = append(out, models.Candidate{
				Post:     r.entry.Post,
				Score:    r.score,
				Reason:   r.reason,
				Source:   models.SourceColdStart,
				Strategy: StrategyPreferenceWeighted,
			})
			continue
		}
		scores[r.entry.ID] = r
		rest = append(rest, r.entry)
	}

	for _, e := range p.weightedSample(rest, n-len(out)) {
		out = append(out, models.Candidate{
			Post:     e.Post,
			Score:    scores[e.ID].score,
			Reason:   "Something outside your usual topics",
			Source:   models.SourceColdStart,
			Strategy: StrategyRandomDiversity,
		})
	}
	return out
}

// weightedSample draws n entries without replacement, each with probability
// proportional to its weight (Efraimidis-Spirakis keys).
func (p *ColdStartPool) weightedSample(entries []PoolEntry, n int) []PoolEntry {
	if n <= 0 || len(entries) == 0 {
		return nil
	}
	type keyed struct {
		entry PoolEntry
		key   float64
	}
	keys := make([]keyed, len(entries))
	p.rngMu.Lock()
	for i, e := range entries {
		keys[i] = keyed{e, math.Pow(p.rng.Float64(), 1/e.Weight)}
	}
	p.rngMu.Unlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].key > keys[j].key })
	if n > len(keys) {
		n = len(keys)
	}
	out := make([]PoolEntry, n)
	for i := range out {
		out[i] = keys[i].entry
	}
	return out
}
