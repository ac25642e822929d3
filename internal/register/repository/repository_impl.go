package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/parishkit/steward/internal/register/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) NumbersForYear(ctx context.Context, db *gorm.DB, year int) ([]string, error) {
	var numbers []string
	err := db.WithContext(ctx).
		Model(&domain.Entry{}).
		Where("year = ?", year).
		Pluck("number", &numbers).Error
	if err != nil {
		return nil, err
	}
	return numbers, nil
}

func (r *repo) HasEntriesForYear(ctx context.Context, db *gorm.DB, year int) (bool, error) {
	count, err := r.CountForYear(ctx, db, year)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) FirstEntryForYear(ctx context.Context, db *gorm.DB, year int) (*domain.Entry, error) {
	var entry domain.Entry
	err := db.WithContext(ctx).
		Where("year = ?", year).
		Order("created_at asc, id asc").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repo) CountForYear(ctx context.Context, db *gorm.DB, year int) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Entry{}).
		Where("year = ?", year).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) FindForMemberYear(ctx context.Context, db *gorm.DB, memberID snowflake.ID, year int) (*domain.Entry, error) {
	var entry domain.Entry
	err := db.WithContext(ctx).
		Where("member_id = ? AND year = ?", memberID, year).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repo) NumberInUse(ctx context.Context, db *gorm.DB, year int, number string, excludeMemberID snowflake.ID) (bool, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Entry{}).
		Where("year = ? AND number = ?", year, number)
	if excludeMemberID != 0 {
		stmt = stmt.Where("member_id <> ?", excludeMemberID)
	}

	var count int64
	if err := stmt.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) InsertEntry(ctx context.Context, db *gorm.DB, entry *domain.Entry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO register_entries (id, member_id, year, number, created_by, created_at, updated_by, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.MemberID,
		entry.Year,
		entry.Number,
		entry.CreatedBy,
		entry.CreatedAt,
		entry.UpdatedBy,
		entry.UpdatedAt,
	).Error
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, entries []domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&entries).Error
}

func (r *repo) UpdateEntryNumber(ctx context.Context, db *gorm.DB, entryID snowflake.ID, number, actor string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE register_entries SET number = ?, updated_by = ?, updated_at = ? WHERE id = ?`,
		number,
		actor,
		time.Now().UTC(),
		entryID,
	).Error
}

func (r *repo) ListForMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) ([]domain.Entry, error) {
	var entries []domain.Entry
	err := db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("year desc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) DeleteForMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM register_entries WHERE member_id = ?`, memberID,
	).Error
}

func (r *repo) EligibleMembers(ctx context.Context, db *gorm.DB) ([]domain.EligibleMember, error) {
	var members []domain.EligibleMember
	err := db.WithContext(ctx).Raw(
		`SELECT m.id, m.first_name, m.last_name, m.join_date
		 FROM members m
		 JOIN membership_statuses s ON s.id = m.status_id
		 WHERE s.grants_register_number
		 ORDER BY m.join_date ASC, m.last_name ASC`,
	).Scan(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repo) EnqueueAssignment(ctx context.Context, db *gorm.DB, job *domain.AssignmentJob) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO register_assignment_jobs (id, member_id, year, requested_number, status, attempts, last_error, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.MemberID,
		job.Year,
		job.RequestedNumber,
		job.Status,
		job.Attempts,
		job.LastError,
		job.CreatedBy,
		job.CreatedAt,
		job.UpdatedAt,
	).Error
}

func (r *repo) PendingAssignments(ctx context.Context, db *gorm.DB, limit int) ([]domain.AssignmentJob, error) {
	var jobs []domain.AssignmentJob
	stmt := db.WithContext(ctx).
		Where("status = ?", domain.JobStatusPending).
		Order("created_at asc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repo) PendingAssignmentsForMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) ([]domain.AssignmentJob, error) {
	var jobs []domain.AssignmentJob
	err := db.WithContext(ctx).
		Where("member_id = ? AND status = ?", memberID, domain.JobStatusPending).
		Order("created_at asc").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repo) MarkAssignmentCompleted(ctx context.Context, db *gorm.DB, jobID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE register_assignment_jobs
		 SET status = ?, attempts = attempts + 1, last_error = '', updated_at = ?
		 WHERE id = ?`,
		domain.JobStatusCompleted,
		time.Now().UTC(),
		jobID,
	).Error
}

func (r *repo) MarkAssignmentRetry(ctx context.Context, db *gorm.DB, jobID snowflake.ID, lastError string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE register_assignment_jobs
		 SET attempts = attempts + 1, last_error = ?, updated_at = ?
		 WHERE id = ?`,
		lastError,
		time.Now().UTC(),
		jobID,
	).Error
}

func (r *repo) MarkAssignmentFailed(ctx context.Context, db *gorm.DB, jobID snowflake.ID, lastError string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE register_assignment_jobs
		 SET status = ?, attempts = attempts + 1, last_error = ?, updated_at = ?
		 WHERE id = ?`,
		domain.JobStatusFailed,
		lastError,
		time.Now().UTC(),
		jobID,
	).Error
}

func (r *repo) DeleteAssignmentsForMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM register_assignment_jobs WHERE member_id = ?`, memberID,
	).Error
}
