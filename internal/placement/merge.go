package placement

import (
	"fmt"
	"math/rand/v2"

	"github.com/corgi-recs/corgi/internal/models"
)

// Item is one entry of a merged timeline.
// Candidate is set only for injected items.
type Item struct {
	Post      models.Post
	Injected  bool
	Candidate *models.Candidate
}

// Config describes how to merge real posts and candidates
type Config struct {
	Strategy        Strategy
	MaxInjections   int
	ShuffleInjected bool

	// Rand drives shuffling; nil uses the global source
	Rand *rand.Rand
}

// Validate checks the configuration before any merge happens
func (c Config) Validate() error {
	if c.Strategy == nil {
		return fmt.Errorf("%w: no strategy", ErrInvalidStrategy)
	}
	if c.MaxInjections < 0 {
		return fmt.Errorf("%w: max_injections must be >= 0, got %d", ErrInvalidParameter, c.MaxInjections)
	}
	if s, ok := c.Strategy.(AfterN); ok && s.N < 1 {
		return fmt.Errorf("%w: after_n requires n >= 1, got %d", ErrInvalidParameter, s.N)
	}
	if s, ok := c.Strategy.(TagMatch); ok && s.MinGap < 0 {
		return fmt.Errorf("%w: tag_match gap must not be negative", ErrInvalidParameter)
	}
	return nil
}

// Merge places candidates among real posts according to cfg.
//
// Real posts keep their relative order. With no real posts the result is the
// capped candidate list; with no candidates it is the real posts unchanged.
// Candidates whose id collides with a real post or an earlier candidate are dropped.
func Merge(real []models.Post, candidates []models.Candidate, cfg Config) ([]Item, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	candidates = dedupe(real, candidates)
	max := minInt(cfg.MaxInjections, len(candidates))

	if max == 0 {
		out := make([]Item, 0, len(real))
		for _, p := range real {
			out = append(out, realItem(p))
		}
		return out, nil
	}

	pool := candidates
	if _, isTagMatch := cfg.Strategy.(TagMatch); !isTagMatch || len(real) == 0 {
		pool = candidates[:max]
	}
	if cfg.ShuffleInjected {
		pool = shuffled(pool, cfg.Rand)
	}

	if len(real) == 0 {
		out := make([]Item, 0, max)
		for _, c := range pool[:max] {
			out = append(out, injectedItem(c))
		}
		return out, nil
	}

	return cfg.Strategy.place(real, pool, max), nil
}

// InjectedCount counts injected items in a merged timeline
func InjectedCount(items []Item) int {
	n := 0
	for _, it := range items {
		if it.Injected {
			n++
		}
	}
	return n
}

func dedupe(real []models.Post, candidates []models.Candidate) []models.Candidate {
	if len(candidates) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(real)+len(candidates))
	for _, p := range real {
		seen[p.ID] = true
	}
	out := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

func shuffled(in []models.Candidate, r *rand.Rand) []models.Candidate {
	out := make([]models.Candidate, len(in))
	copy(out, in)
	swap := func(i, j int) { out[i], out[j] = out[j], out[i] }
	if r != nil {
		r.Shuffle(len(out), swap)
	} else {
		rand.Shuffle(len(out), swap)
	}
	return out
}

func realItem(p models.Post) Item {
	return Item{Post: p}
}

func injectedItem(c models.Candidate) Item {
	cand := c
	return Item{Post: c.Post, Injected: true, Candidate: &cand}
}
