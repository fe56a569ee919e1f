package injection

import (
	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/placement"
)

func realPost(p models.Post) AnnotatedPost {
	return AnnotatedPost{Post: p, IsRealMastodonPost: true}
}

// annotate turns merged items into client-facing posts.
// Personalized candidates are real posts from the post cache; cold-start ones are curated.
func annotate(items []placement.Item, strategy string) []AnnotatedPost {
	out := make([]AnnotatedPost, 0, len(items))
	for _, item := range items {
		if !item.Injected || item.Candidate == nil {
			out = append(out, realPost(item.Post))
			continue
		}
		c := item.Candidate
		out = append(out, AnnotatedPost{
			Post:               item.Post,
			Injected:           true,
			IsRealMastodonPost: c.Source == models.SourcePersonalized,
			IsSynthetic:        c.Source != models.SourcePersonalized,
			InjectionMetadata: &InjectionMetadata{
				Source:      c.Source,
				Strategy:    strategy,
				Explanation: c.Reason,
				Score:       c.Score,
			},
		})
	}
	return out
}
