package injection

import (
	"fmt"
	"time"

	"github.com/corgi-recs/corgi/internal/placement"
)

// Config holds the orchestrator's defaults. Request fields override some of them.
type Config struct {
	DefaultLimit int
	MaxLimit     int

	MaxInjections   int
	ShuffleInjected bool

	// Strategy per sourcing state
	ColdStartStrategy    placement.Kind
	NewUserStrategy      placement.Kind
	PersonalizedStrategy placement.Kind
	Params               placement.Params

	// Candidates requested per permitted injection when placing by tag, so
	// there is something to match against
	TagMatchOverfetch int

	UpstreamTimeout  time.Duration
	CandidateTimeout time.Duration
	RequestTimeout   time.Duration
}

// DefaultConfig returns the reference orchestrator settings
func DefaultConfig() Config {
	return Config{
		DefaultLimit:         20,
		MaxLimit:             40,
		MaxInjections:        3,
		ColdStartStrategy:    placement.KindUniform,
		NewUserStrategy:      placement.KindFirstOnly,
		PersonalizedStrategy: placement.KindTagMatch,
		Params:               placement.Params{N: placement.DefaultAfterN},
		TagMatchOverfetch:    4,
		UpstreamTimeout:      3 * time.Second,
		CandidateTimeout:     2 * time.Second,
		RequestTimeout:       5 * time.Second,
	}
}

// Validate checks that every configured strategy can be built
func (c Config) Validate() error {
	for _, kind := range []placement.Kind{c.ColdStartStrategy, c.NewUserStrategy, c.PersonalizedStrategy} {
		if _, err := placement.ParseStrategy(string(kind), c.Params); err != nil {
			return err
		}
	}
	if c.MaxInjections < 0 {
		return fmt.Errorf("injection: max_injections must be >= 0")
	}
	if c.DefaultLimit <= 0 || c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("injection: limits must satisfy 0 < default_limit <= max_limit")
	}
	if c.UpstreamTimeout <= 0 || c.CandidateTimeout <= 0 {
		return fmt.Errorf("injection: fetch timeouts must be positive")
	}
	return nil
}
