// Package placement merges a stream of real posts with injected candidates.
//
// Every strategy keeps the real posts in the order they were given and never
// reorders injected posts relative to each other unless shuffling is requested.
package placement

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/corgi-recs/corgi/internal/models"
)

// Kind names a placement strategy
type Kind string

const (
	KindUniform   Kind = "uniform"
	KindAfterN    Kind = "after_n"
	KindFirstOnly Kind = "first_only"
	KindTagMatch  Kind = "tag_match"
)

// DefaultAfterN is used when an after_n strategy is requested without n
const DefaultAfterN = 3

var (
	// ErrInvalidStrategy is returned for an unknown strategy kind
	ErrInvalidStrategy = errors.New("invalid placement strategy")
	// ErrInvalidParameter is returned for a malformed strategy parameter or cap
	ErrInvalidParameter = errors.New("invalid placement parameter")
)

// Strategy decides where candidates go among real posts.
// Implementations receive non-empty inputs and must place at most max candidates.
type Strategy interface {
	Kind() Kind
	place(real []models.Post, candidates []models.Candidate, max int) []Item
}

// Uniform spreads candidates evenly across the real posts
type Uniform struct{}

// AfterN inserts one candidate after every N real posts
type AfterN struct {
	N int
}

// FirstOnly puts every permitted candidate right after the first real post
type FirstOnly struct{}

// TagMatch inserts a candidate right after a real post it shares a tag with.
// When MinGap is set, a real post only qualifies if the time between it and
// the next real post exceeds MinGap.
type TagMatch struct {
	MinGap time.Duration
}

func (Uniform) Kind() Kind   { return KindUniform }
func (AfterN) Kind() Kind    { return KindAfterN }
func (FirstOnly) Kind() Kind { return KindFirstOnly }
func (TagMatch) Kind() Kind  { return KindTagMatch }

// Params carries the strategy-specific knobs accepted from requests and config
type Params struct {
	N      int
	MinGap time.Duration
}

// ParseStrategy builds a strategy variant from its name and parameters
func ParseStrategy(kind string, p Params) (Strategy, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(kind))) {
	case KindUniform:
		return Uniform{}, nil
	case KindAfterN:
		n := p.N
		if n == 0 {
			n = DefaultAfterN
		}
		if n < 1 {
			return nil, fmt.Errorf("%w: after_n requires n >= 1, got %d", ErrInvalidParameter, p.N)
		}
		return AfterN{N: n}, nil
	case KindFirstOnly:
		return FirstOnly{}, nil
	case KindTagMatch:
		if p.MinGap < 0 {
			return nil, fmt.Errorf("%w: tag_match gap must not be negative, got %s", ErrInvalidParameter, p.MinGap)
		}
		return TagMatch{MinGap: p.MinGap}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidStrategy, kind)
}

func (Uniform) place(real []models.Post, candidates []models.Candidate, max int) []Item {
	k := minInt(max, len(candidates))
	gap := ceilDiv(len(real)+1, k+1)

	out := make([]Item, 0, len(real)+k)
	placed := 0
	for i, post := range real {
		out = append(out, realItem(post))
		if placed < k && (i+1)%gap == 0 {
			out = append(out, injectedItem(candidates[placed]))
			placed++
		}
	}
	return out
}

func (s AfterN) place(real []models.Post, candidates []models.Candidate, max int) []Item {
	k := minInt(max, len(candidates))
	n := s.N
	if n < 1 {
		n = DefaultAfterN
	}

	out := make([]Item, 0, len(real)+k)
	placed := 0
	for i, post := range real {
		out = append(out, realItem(post))
		if placed < k && (i+1)%n == 0 {
			out = append(out, injectedItem(candidates[placed]))
			placed++
		}
	}
	return out
}

func (FirstOnly) place(real []models.Post, candidates []models.Candidate, max int) []Item {
	k := minInt(max, len(candidates))

	out := make([]Item, 0, len(real)+k)
	out = append(out, realItem(real[0]))
	for _, c := range candidates[:k] {
		out = append(out, injectedItem(c))
	}
	for _, post := range real[1:] {
		out = append(out, realItem(post))
	}
	return out
}

func (s TagMatch) place(real []models.Post, candidates []models.Candidate, max int) []Item {
	candTags := make([]map[string]bool, len(candidates))
	for i := range candidates {
		tags := candidates[i].NormalizedTags()
		set := make(map[string]bool, len(tags))
		for _, t := range tags {
			set[t] = true
		}
		candTags[i] = set
	}
	used := make([]bool, len(candidates))

	out := make([]Item, 0, len(real)+minInt(max, len(candidates)))
	placed := 0
	for i, post := range real {
		out = append(out, realItem(post))
		if placed >= max {
			continue
		}
		if s.MinGap > 0 && !gapExceeds(real, i, s.MinGap) {
			continue
		}
		if idx := matchCandidate(post, candTags, used); idx >= 0 {
			used[idx] = true
			out = append(out, injectedItem(candidates[idx]))
			placed++
		}
	}
	return out
}

// gapExceeds reports whether the time between real[i] and real[i+1] exceeds gap.
// The last real post has no successor and never qualifies.
func gapExceeds(real []models.Post, i int, gap time.Duration) bool {
	if i+1 >= len(real) {
		return false
	}
	d := real[i].CreatedAt.Sub(real[i+1].CreatedAt)
	if d < 0 {
		d = -d
	}
	return d > gap
}

// matchCandidate returns the first unused candidate sharing a tag with post, or -1
func matchCandidate(post models.Post, candTags []map[string]bool, used []bool) int {
	tags := post.NormalizedTags()
	if len(tags) == 0 {
		return -1
	}
	for idx, set := range candTags {
		if used[idx] || len(set) == 0 {
			continue
		}
		for _, t := range tags {
			if set[t] {
				return idx
			}
		}
	}
	return -1
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
