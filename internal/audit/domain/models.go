package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeAdmin  ActorType = "admin"
	ActorTypeSystem ActorType = "system"
)

// AuditLog is an append-only record of a state change.
type AuditLog struct {
	ID         snowflake.ID      `json:"id" gorm:"primaryKey"`
	ActorType  string            `json:"actor_type" gorm:"type:varchar(32);not null"`
	ActorID    *string           `json:"actor_id,omitempty" gorm:"type:varchar(64)"`
	Action     string            `json:"action" gorm:"type:varchar(128);not null;index"`
	TargetType string            `json:"target_type" gorm:"type:varchar(64);not null"`
	TargetID   *string           `json:"target_id,omitempty" gorm:"type:varchar(64)"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	IPAddress  *string           `json:"ip_address,omitempty" gorm:"type:varchar(64)"`
	UserAgent  *string           `json:"user_agent,omitempty"`
	CreatedAt  time.Time         `json:"created_at" gorm:"not null;index"`
}

func (AuditLog) TableName() string { return "audit_logs" }
