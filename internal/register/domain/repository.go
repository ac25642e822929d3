package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the ledger store. Every method takes the database handle so
// services decide the transaction boundary.
type Repository interface {
	NumbersForYear(ctx context.Context, db *gorm.DB, year int) ([]string, error)
	HasEntriesForYear(ctx context.Context, db *gorm.DB, year int) (bool, error)
	FirstEntryForYear(ctx context.Context, db *gorm.DB, year int) (*Entry, error)
	CountForYear(ctx context.Context, db *gorm.DB, year int) (int64, error)
	FindForMemberYear(ctx context.Context, db *gorm.DB, memberID snowflake.ID, year int) (*Entry, error)
	NumberInUse(ctx context.Context, db *gorm.DB, year int, number string, excludeMemberID snowflake.ID) (bool, error)
	InsertEntry(ctx context.Context, db *gorm.DB, entry *Entry) error
	InsertBatch(ctx context.Context, db *gorm.DB, entries []Entry) error
	UpdateEntryNumber(ctx context.Context, db *gorm.DB, entryID snowflake.ID, number, actor string) error
	ListForMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) ([]Entry, error)
	DeleteForMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) error

	EligibleMembers(ctx context.Context, db *gorm.DB) ([]EligibleMember, error)

	EnqueueAssignment(ctx context.Context, db *gorm.DB, job *AssignmentJob) error
	PendingAssignments(ctx context.Context, db *gorm.DB, limit int) ([]AssignmentJob, error)
	PendingAssignmentsForMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) ([]AssignmentJob, error)
	MarkAssignmentCompleted(ctx context.Context, db *gorm.DB, jobID snowflake.ID) error
	MarkAssignmentRetry(ctx context.Context, db *gorm.DB, jobID snowflake.ID, lastError string) error
	MarkAssignmentFailed(ctx context.Context, db *gorm.DB, jobID snowflake.ID, lastError string) error
	DeleteAssignmentsForMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) error
}
