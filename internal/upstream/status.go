package upstream

import (
	"fmt"
	"time"

	"github.com/corgi-recs/corgi/internal/models"
)

// Status is the subset of the Mastodon status entity the middleware reads
type Status struct {
	ID              string        `json:"id"`
	CreatedAt       time.Time     `json:"created_at"`
	Content         string        `json:"content"`
	Visibility      string        `json:"visibility"`
	URL             *string       `json:"url"`
	Language        *string       `json:"language"`
	Account         StatusAccount `json:"account"`
	FavouritesCount int           `json:"favourites_count"`
	ReblogsCount    int           `json:"reblogs_count"`
	RepliesCount    int           `json:"replies_count"`
	Tags            []StatusTag   `json:"tags"`
	Reblog          *Status       `json:"reblog"`
}

// StatusAccount is the author of a status
type StatusAccount struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Acct        string `json:"acct"`
	DisplayName string `json:"display_name"`
	URL         string `json:"url"`
	Avatar      string `json:"avatar"`
	Bot         bool   `json:"bot"`
}

// StatusTag is a hashtag used in a status
type StatusTag struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (a StatusAccount) toAccount() models.Account {
	return models.Account{
		ID:          a.ID,
		Username:    a.Username,
		Acct:        a.Acct,
		DisplayName: a.DisplayName,
		URL:         a.URL,
		Avatar:      a.Avatar,
		Bot:         a.Bot,
	}
}

// ToPost converts a status into a timeline post, rejecting malformed payloads.
// A boost keeps the wrapper's id and time but carries the boosted status's
// author, content, tags and counts, since the wrapper itself has none.
func (s Status) ToPost() (models.Post, error) {
	src := s
	postType := "status"
	if s.Reblog != nil {
		src = *s.Reblog
		postType = "reblog"
	}

	post := models.Post{
		ID:              s.ID,
		Account:         src.Account.toAccount(),
		CreatedAt:       s.CreatedAt,
		Content:         src.Content,
		Visibility:      visibility(s, src),
		FavouritesCount: src.FavouritesCount,
		ReblogsCount:    src.ReblogsCount,
		RepliesCount:    src.RepliesCount,
	}
	if src.URL != nil {
		post.URL = *src.URL
	}
	if src.Language != nil {
		post.Language = *src.Language
	}
	for _, t := range src.Tags {
		if t.Name != "" {
			post.Tags = append(post.Tags, t.Name)
		}
	}
	if src.Account.Bot {
		post.Metadata.AccountType = "bot"
	} else {
		post.Metadata.AccountType = "person"
	}
	post.Metadata.PostType = postType
	if err := post.Validate(); err != nil {
		return models.Post{}, fmt.Errorf("invalid upstream status: %w", err)
	}
	return post, nil
}

// visibilityRank orders audiences from widest to narrowest
var visibilityRank = map[string]int{
	models.VisibilityPublic:   0,
	models.VisibilityUnlisted: 1,
	models.VisibilityPrivate:  2,
	models.VisibilityDirect:   3,
}

// visibility returns the narrowest audience among the given statuses.
// Missing or unknown values count as private.
func visibility(statuses ...Status) string {
	out := models.VisibilityPublic
	for _, st := range statuses {
		v := st.Visibility
		rank, ok := visibilityRank[v]
		if !ok {
			v, rank = models.VisibilityPrivate, visibilityRank[models.VisibilityPrivate]
		}
		if rank > visibilityRank[out] {
			out = v
		}
	}
	return out
}
