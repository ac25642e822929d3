package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// PreviewItem is one row of the bulk preview: the ordinal the member would
// receive, annotated with the member's existing current-year number so an
// administrator can compare before committing.
type PreviewItem struct {
	Ordinal       int          `json:"ordinal"`
	MemberID      snowflake.ID `json:"member_id"`
	FirstName     string       `json:"first_name"`
	LastName      string       `json:"last_name"`
	JoinDate      time.Time    `json:"join_date"`
	CurrentNumber *string      `json:"current_number,omitempty"`
}

type Preview struct {
	TargetYear  int           `json:"target_year"`
	Total       int           `json:"total"`
	GeneratedAt time.Time     `json:"generated_at"`
	Items       []PreviewItem `json:"items"`
}

type GenerateResult struct {
	Year        int           `json:"year"`
	Total       int           `json:"total"`
	GeneratedBy string        `json:"generated_by"`
	GeneratedAt time.Time     `json:"generated_at"`
	Sample      []PreviewItem `json:"sample"`
}

type GenerationStatus struct {
	Year             int        `json:"year"`
	IsGenerated      bool       `json:"is_generated"`
	TotalAssignments int64      `json:"total_assignments"`
	GeneratedBy      *string    `json:"generated_by,omitempty"`
	GeneratedAt      *time.Time `json:"generated_at,omitempty"`
}

type Service interface {
	// NextAvailableNumber returns max(parseable numbers for year)+1, or 1
	// when none exist. Unparseable and non-positive values are skipped.
	NextAvailableNumber(ctx context.Context, year int) (int, error)

	// PreviewForYear computes ordinals without persisting anything.
	PreviewForYear(ctx context.Context, targetYear int) (Preview, error)

	// GenerateForYear persists ordinals 1..N for next year's register, at
	// most once per year.
	GenerateForYear(ctx context.Context, targetYear int) (GenerateResult, error)

	GenerationStatus(ctx context.Context, year int) (GenerationStatus, error)

	// ValidateNumberAvailable rejects a caller-supplied current-year number
	// already held by a different member.
	ValidateNumberAvailable(ctx context.Context, db *gorm.DB, number string, excludeMemberID snowflake.ID) error

	// EnqueueAssignment records a pending ad-hoc assignment inside the
	// caller's transaction.
	EnqueueAssignment(ctx context.Context, tx *gorm.DB, memberID snowflake.ID, requestedNumber *string) error

	// AssignForMember updates-or-creates the member's current-year entry
	// inside the caller's transaction (the update path).
	AssignForMember(ctx context.Context, tx *gorm.DB, memberID snowflake.ID, number string) (*Entry, error)

	// ProcessPendingForMember drains that member's pending assignment jobs;
	// the create path calls it best-effort right after commit.
	ProcessPendingForMember(ctx context.Context, memberID snowflake.ID) error

	// ProcessPending drains up to limit pending jobs; the scheduler's hook.
	ProcessPending(ctx context.Context, limit int) (int, error)

	// PurgeMember removes the member's entire number history and any queued
	// assignments inside the caller's transaction (member hard delete).
	PurgeMember(ctx context.Context, tx *gorm.DB, memberID snowflake.ID) error

	HistoryForMember(ctx context.Context, memberID snowflake.ID) ([]Entry, error)
	CurrentNumber(ctx context.Context, memberID snowflake.ID) (*Entry, error)
}

var (
	ErrInvalidYear       = errors.New("invalid_year")
	ErrInvalidTargetYear = errors.New("invalid_target_year")
	ErrInvalidNumber     = errors.New("invalid_register_number")
	ErrDuplicateNumber   = errors.New("duplicate_register_number")
	ErrAlreadyGenerated  = errors.New("register_already_generated")
	ErrNoEligibleMembers = errors.New("no_eligible_members")
)
