package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Interaction is a single logged user action on a post.
// Rows are only written for users whose privacy level allows detailed storage.
type Interaction struct {
	ID         string     `gorm:"primaryKey" json:"id"`
	UserAlias  string     `gorm:"not null;index:idx_interactions_user_created" json:"user_alias"`
	PostID     string     `gorm:"not null;index" json:"post_id"`
	ActionType ActionType `gorm:"not null" json:"action_type"`

	// Context of the interaction, if it happened on an injected post
	Source   string `json:"source,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	Position *int   `json:"position,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_interactions_user_created" json:"created_at"`
}

// TableName specifies the table name
func (Interaction) TableName() string {
	return "interactions"
}

// BeforeCreate assigns a UUID so the table works on drivers without gen_random_uuid
func (i *Interaction) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}
