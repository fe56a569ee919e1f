package models

import (
	"time"
)

// Signal dimensions tracked per user
const (
	DimensionTag         = "tag"
	DimensionCategory    = "category"
	DimensionVibe        = "vibe"
	DimensionTone        = "tone"
	DimensionAccountType = "account_type"
	DimensionPostType    = "post_type"
)

// Dimensions lists every signal dimension in a stable order
var Dimensions = []string{
	DimensionTag,
	DimensionCategory,
	DimensionVibe,
	DimensionTone,
	DimensionAccountType,
	DimensionPostType,
}

// SignalProfile is the per-user summary row of the signal profile.
// Promotion state is derived from these counters and the weight rows, never stored.
type SignalProfile struct {
	UserAlias         string     `gorm:"primaryKey" json:"user_alias"`
	InteractionCount  int64      `gorm:"not null;default:0" json:"interaction_count"`
	FavoriteCount     int64      `gorm:"not null;default:0" json:"favorite_count"`
	ReblogCount       int64      `gorm:"not null;default:0" json:"reblog_count"`
	BookmarkCount     int64      `gorm:"not null;default:0" json:"bookmark_count"`
	ReplyCount        int64      `gorm:"not null;default:0" json:"reply_count"`
	LastInteractionAt *time.Time `json:"last_interaction_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (SignalProfile) TableName() string {
	return "signal_profiles"
}

// SignalWeight is one accumulated (dimension, value) weight for a user
type SignalWeight struct {
	UserAlias string    `gorm:"primaryKey" json:"user_alias"`
	Dimension string    `gorm:"primaryKey" json:"dimension"`
	Value     string    `gorm:"primaryKey" json:"value"`
	Weight    float64   `gorm:"not null;default:0" json:"weight"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (SignalWeight) TableName() string {
	return "signal_weights"
}

// SeenPost records that a user interacted with a post, without the action or its context.
// Kept at every privacy level that applies signals so personalized sourcing can skip the post.
type SeenPost struct {
	UserAlias string    `gorm:"primaryKey" json:"user_alias"`
	PostID    string    `gorm:"primaryKey" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name
func (SeenPost) TableName() string {
	return "seen_posts"
}
