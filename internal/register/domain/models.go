package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Entry is one issued register number: at most one per member per year, and
// each number identifies exactly one member within a year. Both invariants
// are backed by unique indexes, not application logic alone.
//
// Number is stored as text: historical imports contain non-numeric values
// which must be tolerated on read, never crashed on.
type Entry struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	MemberID  snowflake.ID `gorm:"not null;uniqueIndex:ux_register_entries_member_year,priority:1" json:"member_id"`
	Year      int          `gorm:"not null;uniqueIndex:ux_register_entries_member_year,priority:2;uniqueIndex:ux_register_entries_year_number,priority:1" json:"year"`
	Number    string       `gorm:"type:text;not null;uniqueIndex:ux_register_entries_year_number,priority:2" json:"number"`
	CreatedBy string       `gorm:"type:text;not null" json:"created_by"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedBy string       `gorm:"type:text;not null" json:"updated_by"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Entry) TableName() string { return "register_entries" }

const (
	JobStatusPending   = "pending"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// AssignmentJob is the pending-number-assignment record written in the same
// transaction as member creation. The ad-hoc numbering step stays outside the
// creation transaction and non-fatal, but its failures land here instead of
// vanishing into a log line, and the scheduler retries them.
type AssignmentJob struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	MemberID        snowflake.ID `gorm:"not null;index" json:"member_id"`
	Year            int          `gorm:"not null" json:"year"`
	RequestedNumber *string      `gorm:"type:text" json:"requested_number,omitempty"`
	Status          string       `gorm:"type:text;not null;default:'pending';index" json:"status"`
	Attempts        int          `gorm:"not null;default:0" json:"attempts"`
	LastError       string       `gorm:"type:text;not null;default:''" json:"last_error,omitempty"`
	CreatedBy       string       `gorm:"type:text;not null" json:"created_by"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (AssignmentJob) TableName() string { return "register_assignment_jobs" }

// EligibleMember is the projection the numbering engine orders: members whose
// status grants a register number, sorted by join date then surname.
type EligibleMember struct {
	ID        snowflake.ID `gorm:"column:id" json:"id"`
	FirstName string       `gorm:"column:first_name" json:"first_name"`
	LastName  string       `gorm:"column:last_name" json:"last_name"`
	JoinDate  time.Time    `gorm:"column:join_date" json:"join_date"`
}
