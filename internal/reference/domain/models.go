package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// MembershipStatus is a small lookup row. GrantsRegisterNumber marks the
// status kind that makes a member eligible to hold a register number; there
// is no magic status id anywhere in the codebase.
type MembershipStatus struct {
	ID                   snowflake.ID `gorm:"primaryKey" json:"id"`
	Code                 string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Name                 string       `gorm:"type:text;not null" json:"name"`
	GrantsRegisterNumber bool         `gorm:"not null;default:false" json:"grants_register_number"`
	CreatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (MembershipStatus) TableName() string { return "membership_statuses" }

type RoleType struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Code      string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (RoleType) TableName() string { return "role_types" }

type District struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Code      string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (District) TableName() string { return "districts" }
