// Package candidates provides the interchangeable sources of injectable posts.
package candidates

import (
	"context"
	"errors"

	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/signals"
)

// ErrNoProfile is returned by sources that need a signal profile when given none
var ErrNoProfile = errors.New("candidates: signal profile required")

// Request is the user context a source draws candidates for
type Request struct {
	UserAlias string           // empty for anonymous users
	Count     int              // maximum number of candidates wanted
	Profile   *signals.Profile // nil when the user has no history
}

// Anonymous reports whether the request carries no user identity
func (r Request) Anonymous() bool {
	return r.UserAlias == ""
}

// Source returns candidates ordered by score descending
type Source interface {
	Candidates(ctx context.Context, req Request) ([]models.Candidate, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context, req Request) ([]models.Candidate, error)

// Candidates calls f
func (f SourceFunc) Candidates(ctx context.Context, req Request) ([]models.Candidate, error) {
	return f(ctx, req)
}
