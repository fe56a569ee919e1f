package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecommendationImpression tracks when an injected post is shown to a user.
// Used for CTR tracking per candidate source.
type RecommendationImpression struct {
	ID        string `gorm:"primaryKey" json:"id"`
	UserAlias string `gorm:"not null;index:idx_impression_user_timestamp" json:"user_alias"`
	PostID    string `gorm:"not null;index" json:"post_id"`

	// Recommendation context
	Source   string `gorm:"not null;index:idx_impression_source_timestamp" json:"source"` // "cold_start", "personalized"
	Strategy string `json:"strategy"`                                                     // placement strategy used
	Position int    `gorm:"not null" json:"position"`                                     // index in the merged timeline

	Clicked   bool       `gorm:"default:false;index" json:"clicked"`
	ClickedAt *time.Time `json:"clicked_at,omitempty"`

	Score  *float64 `json:"score,omitempty"`
	Reason *string  `json:"reason,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_impression_user_timestamp;index:idx_impression_source_timestamp" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (RecommendationImpression) TableName() string {
	return "recommendation_impressions"
}

// BeforeCreate assigns a UUID when none is set
func (r *RecommendationImpression) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// All returns every model managed by auto-migration
func All() []interface{} {
	return []interface{}{
		&PostRecord{},
		&Interaction{},
		&SignalProfile{},
		&SignalWeight{},
		&SeenPost{},
		&PrivacySetting{},
		&InjectionEvent{},
		&RecommendationImpression{},
	}
}
