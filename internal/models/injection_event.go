package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InjectionEvent records the outcome of one timeline build for dashboards
type InjectionEvent struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	UserAlias      string    `gorm:"index" json:"user_alias,omitempty"`
	Performed      bool      `json:"performed"`
	Reason         string    `json:"reason,omitempty"`
	Strategy       string    `gorm:"index" json:"strategy,omitempty"`
	Source         string    `gorm:"index" json:"source,omitempty"`
	RealCount      int       `json:"real_count"`
	CandidateCount int       `json:"candidate_count"`
	InjectedCount  int       `json:"injected_count"`
	DurationMs     float64   `json:"duration_ms"`
	UpstreamError  string    `json:"upstream_error,omitempty"`
	CandidateError string    `json:"candidate_error,omitempty"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name
func (InjectionEvent) TableName() string {
	return "injection_events"
}

// BeforeCreate assigns a UUID when none is set
func (e *InjectionEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}
