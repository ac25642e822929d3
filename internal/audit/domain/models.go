package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog is an append-only record of a completed write. Actor is the
// caller-supplied identity, never derived server-side.
type AuditLog struct {
	ID         snowflake.ID      `json:"id" gorm:"primaryKey"`
	Actor      string            `json:"actor" gorm:"index"`
	Action     string            `json:"action" gorm:"index"`
	TargetType string            `json:"target_type"`
	TargetID   string            `json:"target_id" gorm:"index"`
	Metadata   datatypes.JSONMap `json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
