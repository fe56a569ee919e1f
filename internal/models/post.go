package models

import (
	"fmt"
	"strings"
	"time"
)

// Account is the author reference carried by a post
type Account struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Acct        string `json:"acct,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	URL         string `json:"url,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Bot         bool   `json:"bot"`
}

// PostMetadata holds the single-valued signal dimensions of a post plus a free-form bag.
// Tags live on the Post itself since they are multi-valued.
type PostMetadata struct {
	Category    string                 `json:"category,omitempty"`
	Vibe        string                 `json:"vibe,omitempty"`
	Tone        string                 `json:"tone,omitempty"`
	AccountType string                 `json:"account_type,omitempty"`
	PostType    string                 `json:"post_type,omitempty"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// Post is an item displayable in a timeline, either fetched from upstream or injected
type Post struct {
	ID              string       `json:"id"`
	Account         Account      `json:"account"`
	CreatedAt       time.Time    `json:"created_at"`
	Content         string       `json:"content"`
	URL             string       `json:"url,omitempty"`
	Language        string       `json:"language,omitempty"`
	Visibility      string       `json:"visibility,omitempty"`
	FavouritesCount int          `json:"favourites_count"`
	ReblogsCount    int          `json:"reblogs_count"`
	RepliesCount    int          `json:"replies_count"`
	Tags            []string     `json:"tags,omitempty"`
	Metadata        PostMetadata `json:"metadata"`
}

// Status visibilities as reported upstream
const (
	VisibilityPublic   = "public"
	VisibilityUnlisted = "unlisted"
	VisibilityPrivate  = "private"
	VisibilityDirect   = "direct"
)

// Shareable reports whether the post may be shown to users other than its original audience.
// Only public posts qualify; an unknown visibility counts as restricted.
func (p *Post) Shareable() bool {
	return p.Visibility == VisibilityPublic
}

// Validate rejects posts that cannot be placed in a timeline
func (p *Post) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("post has no id")
	}
	if strings.TrimSpace(p.Account.ID) == "" && strings.TrimSpace(p.Account.Username) == "" {
		return fmt.Errorf("post %s has no author", p.ID)
	}
	return nil
}

// NormalizedTags returns the post's tags lower-cased, trimmed and deduplicated
func (p *Post) NormalizedTags() []string {
	if len(p.Tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(p.Tags))
	out := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		t = NormalizeTag(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// NormalizeTag lower-cases a tag and strips a leading '#'
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
}

// CandidateSource identifies which adapter produced a candidate
type CandidateSource string

const (
	SourceColdStart    CandidateSource = "cold_start"
	SourcePersonalized CandidateSource = "personalized"
)

// Candidate is a post proposed for injection.
// Scores are only comparable within the list they were produced in.
type Candidate struct {
	Post
	Score    float64         `json:"score"`
	Reason   string          `json:"reason"`
	Source   CandidateSource `json:"source"`
	Strategy string          `json:"strategy,omitempty"` // scoring strategy that produced Score
}
