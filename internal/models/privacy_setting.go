package models

import "time"

// PrivacySetting is the single active tracking level for a user
type PrivacySetting struct {
	UserAlias string       `gorm:"primaryKey" json:"user_alias"`
	Level     PrivacyLevel `gorm:"not null" json:"level"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TableName specifies the table name
func (PrivacySetting) TableName() string {
	return "privacy_settings"
}
