package models

import (
	"time"
)

// PostRecord is a cached copy of a post seen upstream or loaded into the cold-start pool.
// Personalized candidates are drawn from these rows; they are never written back upstream.
type PostRecord struct {
	ID              string      `gorm:"primaryKey" json:"id"`
	AuthorID        string      `gorm:"index" json:"author_id"`
	AuthorUsername  string      `json:"author_username"`
	AuthorName      string      `json:"author_name"`
	AuthorBot       bool        `json:"author_bot"`
	Content         string      `json:"content"`
	URL             string      `json:"url"`
	Language        string      `json:"language"`
	Tags            StringArray `gorm:"type:text" json:"tags"`
	Category        string      `gorm:"index" json:"category"`
	Vibe            string      `json:"vibe"`
	Tone            string      `json:"tone"`
	AccountType     string      `json:"account_type"`
	PostType        string      `json:"post_type"`
	Visibility      string      `gorm:"index;not null;default:'private'" json:"visibility"`
	FavouritesCount int         `json:"favourites_count"`
	ReblogsCount    int         `json:"reblogs_count"`
	RepliesCount    int         `json:"replies_count"`
	PostedAt        time.Time   `gorm:"index" json:"posted_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (PostRecord) TableName() string {
	return "post_records"
}

// NewPostRecord snapshots a post for storage
func NewPostRecord(p Post) PostRecord {
	return PostRecord{
		ID:              p.ID,
		AuthorID:        p.Account.ID,
		AuthorUsername:  p.Account.Username,
		AuthorName:      p.Account.DisplayName,
		AuthorBot:       p.Account.Bot,
		Content:         p.Content,
		URL:             p.URL,
		Language:        p.Language,
		Tags:            StringArray(p.NormalizedTags()),
		Category:        p.Metadata.Category,
		Vibe:            p.Metadata.Vibe,
		Tone:            p.Metadata.Tone,
		AccountType:     p.Metadata.AccountType,
		PostType:        p.Metadata.PostType,
		Visibility:      p.Visibility,
		FavouritesCount: p.FavouritesCount,
		ReblogsCount:    p.ReblogsCount,
		RepliesCount:    p.RepliesCount,
		PostedAt:        p.CreatedAt,
	}
}

// ToPost converts the stored row back into a timeline post
func (r PostRecord) ToPost() Post {
	return Post{
		ID: r.ID,
		Account: Account{
			ID:          r.AuthorID,
			Username:    r.AuthorUsername,
			DisplayName: r.AuthorName,
			Bot:         r.AuthorBot,
		},
		CreatedAt:       r.PostedAt,
		Content:         r.Content,
		URL:             r.URL,
		Language:        r.Language,
		Visibility:      r.Visibility,
		FavouritesCount: r.FavouritesCount,
		ReblogsCount:    r.ReblogsCount,
		RepliesCount:    r.RepliesCount,
		Tags:            []string(r.Tags),
		Metadata: PostMetadata{
			Category:    r.Category,
			Vibe:        r.Vibe,
			Tone:        r.Tone,
			AccountType: r.AccountType,
			PostType:    r.PostType,
		},
	}
}
