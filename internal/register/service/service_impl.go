package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/parishkit/steward/internal/actorcontext"
	"github.com/parishkit/steward/internal/clock"
	obsmetrics "github.com/parishkit/steward/internal/observability/metrics"
	"github.com/parishkit/steward/internal/register/domain"
	"github.com/parishkit/steward/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// maxAssignRetries bounds the recompute-and-retry loop when a concurrent
	// writer takes the number we computed.
	maxAssignRetries = 3

	// maxJobAttempts is how often the scheduler retries a pending assignment
	// before parking it as failed.
	maxJobAttempts = 5

	sampleSize = 10
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	metrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("register.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) NextAvailableNumber(ctx context.Context, year int) (int, error) {
	if year <= 0 {
		return 0, domain.ErrInvalidYear
	}
	return s.nextAvailable(ctx, s.db, year)
}

func (s *Service) nextAvailable(ctx context.Context, conn *gorm.DB, year int) (int, error) {
	numbers, err := s.repo.NumbersForYear(ctx, conn, year)
	if err != nil {
		return 0, err
	}

	// Historical imports left non-numeric values in the ledger; skip them
	// instead of failing the whole computation.
	max := 0
	for _, raw := range numbers {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n <= 0 {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

func (s *Service) PreviewForYear(ctx context.Context, targetYear int) (domain.Preview, error) {
	if err := s.validateTargetYear(targetYear); err != nil {
		return domain.Preview{}, err
	}

	members, err := s.repo.EligibleMembers(ctx, s.db)
	if err != nil {
		return domain.Preview{}, err
	}

	items, err := s.annotatedItems(ctx, s.db, members)
	if err != nil {
		return domain.Preview{}, err
	}

	return domain.Preview{
		TargetYear:  targetYear,
		Total:       len(items),
		GeneratedAt: s.clock.Now(),
		Items:       items,
	}, nil
}

func (s *Service) GenerateForYear(ctx context.Context, targetYear int) (domain.GenerateResult, error) {
	if err := s.validateTargetYear(targetYear); err != nil {
		return domain.GenerateResult{}, err
	}

	actor := s.actor(ctx)
	now := s.clock.Now()

	var result domain.GenerateResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		generated, err := s.repo.HasEntriesForYear(ctx, tx, targetYear)
		if err != nil {
			return err
		}
		if generated {
			return domain.ErrAlreadyGenerated
		}

		members, err := s.repo.EligibleMembers(ctx, tx)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return domain.ErrNoEligibleMembers
		}

		entries := make([]domain.Entry, 0, len(members))
		for i, m := range members {
			entries = append(entries, domain.Entry{
				ID:        s.genID.Generate(),
				MemberID:  m.ID,
				Year:      targetYear,
				Number:    strconv.Itoa(i + 1),
				CreatedBy: actor,
				CreatedAt: now,
				UpdatedBy: actor,
				UpdatedAt: now,
			})
		}

		if err := s.repo.InsertBatch(ctx, tx, entries); err != nil {
			return err
		}

		sample, err := s.annotatedItems(ctx, tx, members)
		if err != nil {
			return err
		}
		if len(sample) > sampleSize {
			sample = sample[:sampleSize]
		}

		result = domain.GenerateResult{
			Year:        targetYear,
			Total:       len(entries),
			GeneratedBy: actor,
			GeneratedAt: now,
			Sample:      sample,
		}
		return nil
	})
	if err != nil {
		// A concurrent run that won the race trips the (year, number) unique
		// index; report it as the same conflict as the idempotency check.
		if db.IsDuplicateKeyErr(err) {
			err = domain.ErrAlreadyGenerated
		}
		s.recordBulk(ctx, "error")
		return domain.GenerateResult{}, err
	}

	s.recordBulk(ctx, "ok")
	s.log.Info("bulk register generation complete",
		zap.Int("year", result.Year),
		zap.Int("total", result.Total),
		zap.String("generated_by", result.GeneratedBy),
	)
	return result, nil
}

func (s *Service) GenerationStatus(ctx context.Context, year int) (domain.GenerationStatus, error) {
	if year <= 0 {
		return domain.GenerationStatus{}, domain.ErrInvalidYear
	}

	count, err := s.repo.CountForYear(ctx, s.db, year)
	if err != nil {
		return domain.GenerationStatus{}, err
	}

	status := domain.GenerationStatus{
		Year:             year,
		IsGenerated:      count > 0,
		TotalAssignments: count,
	}
	if count == 0 {
		return status, nil
	}

	// The first entry's audit fields stand in for "who/when generated". When
	// ad-hoc entries were written before a bulk run they reflect an
	// individual assignment instead; that approximation is intended.
	first, err := s.repo.FirstEntryForYear(ctx, s.db, year)
	if err != nil {
		return domain.GenerationStatus{}, err
	}
	if first != nil {
		by := first.CreatedBy
		at := first.CreatedAt
		status.GeneratedBy = &by
		status.GeneratedAt = &at
	}
	return status, nil
}

func (s *Service) ValidateNumberAvailable(ctx context.Context, conn *gorm.DB, number string, excludeMemberID snowflake.ID) error {
	number = strings.TrimSpace(number)
	if number == "" {
		return domain.ErrInvalidNumber
	}
	if conn == nil {
		conn = s.db
	}

	inUse, err := s.repo.NumberInUse(ctx, conn, s.currentYear(), number, excludeMemberID)
	if err != nil {
		return err
	}
	if inUse {
		return domain.ErrDuplicateNumber
	}
	return nil
}

func (s *Service) EnqueueAssignment(ctx context.Context, tx *gorm.DB, memberID snowflake.ID, requestedNumber *string) error {
	if requestedNumber != nil {
		trimmed := strings.TrimSpace(*requestedNumber)
		if trimmed == "" {
			requestedNumber = nil
		} else {
			requestedNumber = &trimmed
		}
	}

	now := s.clock.Now()
	return s.repo.EnqueueAssignment(ctx, tx, &domain.AssignmentJob{
		ID:              s.genID.Generate(),
		MemberID:        memberID,
		Year:            s.currentYear(),
		RequestedNumber: requestedNumber,
		Status:          domain.JobStatusPending,
		CreatedBy:       s.actor(ctx),
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

func (s *Service) AssignForMember(ctx context.Context, tx *gorm.DB, memberID snowflake.ID, number string) (*domain.Entry, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, domain.ErrInvalidNumber
	}

	year := s.currentYear()
	actor := s.actor(ctx)

	existing, err := s.repo.FindForMemberYear(ctx, tx, memberID, year)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Number == number {
			return existing, nil
		}
		if err := s.repo.UpdateEntryNumber(ctx, tx, existing.ID, number, actor); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return nil, domain.ErrDuplicateNumber
			}
			return nil, err
		}
		existing.Number = number
		existing.UpdatedBy = actor
		return existing, nil
	}

	now := s.clock.Now()
	entry := &domain.Entry{
		ID:        s.genID.Generate(),
		MemberID:  memberID,
		Year:      year,
		Number:    number,
		CreatedBy: actor,
		CreatedAt: now,
		UpdatedBy: actor,
		UpdatedAt: now,
	}
	if err := s.repo.InsertEntry(ctx, tx, entry); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateNumber
		}
		return nil, err
	}
	return entry, nil
}

func (s *Service) ProcessPendingForMember(ctx context.Context, memberID snowflake.ID) error {
	jobs, err := s.repo.PendingAssignmentsForMember(ctx, s.db, memberID)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if err := s.processJob(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ProcessPending(ctx context.Context, limit int) (int, error) {
	jobs, err := s.repo.PendingAssignments(ctx, s.db, limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, job := range jobs {
		if err := s.processJob(ctx, job); err != nil {
			s.log.Warn("pending assignment still failing",
				zap.String("job_id", job.ID.String()),
				zap.String("member_id", job.MemberID.String()),
				zap.Error(err),
			)
			continue
		}
		processed++
	}
	return processed, nil
}

// processJob attempts one pending assignment as its own transaction. Manual
// numbers are used as supplied; automatic ones recompute next-available and
// retry when a concurrent writer claims the same number first.
func (s *Service) processJob(ctx context.Context, job domain.AssignmentJob) error {
	var lastErr error
	for attempt := 0; attempt < maxAssignRetries; attempt++ {
		lastErr = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			existing, err := s.repo.FindForMemberYear(ctx, tx, job.MemberID, job.Year)
			if err != nil {
				return err
			}
			if existing != nil {
				// A number is already on file for the year; a later manual
				// value supersedes the auto one.
				if job.RequestedNumber != nil && existing.Number != *job.RequestedNumber {
					if err := s.repo.UpdateEntryNumber(ctx, tx, existing.ID, *job.RequestedNumber, job.CreatedBy); err != nil {
						return err
					}
				}
				return s.repo.MarkAssignmentCompleted(ctx, tx, job.ID)
			}

			number := ""
			if job.RequestedNumber != nil {
				number = *job.RequestedNumber
			} else {
				next, err := s.nextAvailable(ctx, tx, job.Year)
				if err != nil {
					return err
				}
				number = strconv.Itoa(next)
			}

			now := s.clock.Now()
			if err := s.repo.InsertEntry(ctx, tx, &domain.Entry{
				ID:        s.genID.Generate(),
				MemberID:  job.MemberID,
				Year:      job.Year,
				Number:    number,
				CreatedBy: job.CreatedBy,
				CreatedAt: now,
				UpdatedBy: job.CreatedBy,
				UpdatedAt: now,
			}); err != nil {
				return err
			}
			return s.repo.MarkAssignmentCompleted(ctx, tx, job.ID)
		})
		if lastErr == nil {
			s.recordAssignment(ctx, "ok")
			return nil
		}
		if db.IsDuplicateKeyErr(lastErr) && job.RequestedNumber == nil {
			// Lost the race for the computed number; recompute and try again.
			if s.metrics != nil {
				s.metrics.RecordAssignmentRetry(ctx)
			}
			continue
		}
		break
	}

	s.recordAssignment(ctx, "error")
	if job.Attempts+1 >= maxJobAttempts || (db.IsDuplicateKeyErr(lastErr) && job.RequestedNumber != nil) {
		if markErr := s.repo.MarkAssignmentFailed(ctx, s.db, job.ID, lastErr.Error()); markErr != nil {
			return markErr
		}
		return lastErr
	}
	if markErr := s.repo.MarkAssignmentRetry(ctx, s.db, job.ID, lastErr.Error()); markErr != nil {
		return markErr
	}
	return lastErr
}

func (s *Service) PurgeMember(ctx context.Context, tx *gorm.DB, memberID snowflake.ID) error {
	if err := s.repo.DeleteAssignmentsForMember(ctx, tx, memberID); err != nil {
		return err
	}
	return s.repo.DeleteForMember(ctx, tx, memberID)
}

func (s *Service) HistoryForMember(ctx context.Context, memberID snowflake.ID) ([]domain.Entry, error) {
	return s.repo.ListForMember(ctx, s.db, memberID)
}

func (s *Service) CurrentNumber(ctx context.Context, memberID snowflake.ID) (*domain.Entry, error) {
	return s.repo.FindForMemberYear(ctx, s.db, memberID, s.currentYear())
}

func (s *Service) annotatedItems(ctx context.Context, conn *gorm.DB, members []domain.EligibleMember) ([]domain.PreviewItem, error) {
	currentYear := s.currentYear()

	items := make([]domain.PreviewItem, 0, len(members))
	for i, m := range members {
		item := domain.PreviewItem{
			Ordinal:   i + 1,
			MemberID:  m.ID,
			FirstName: m.FirstName,
			LastName:  m.LastName,
			JoinDate:  m.JoinDate,
		}
		entry, err := s.repo.FindForMemberYear(ctx, conn, m.ID, currentYear)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			number := entry.Number
			item.CurrentNumber = &number
		}
		items = append(items, item)
	}
	return items, nil
}

// validateTargetYear restricts bulk operations to the upcoming register
// year: never the year members are actively transacting in, never a year so
// far out that the member composition is unknowable.
func (s *Service) validateTargetYear(targetYear int) error {
	if targetYear != s.currentYear()+1 {
		return domain.ErrInvalidTargetYear
	}
	return nil
}

func (s *Service) currentYear() int {
	return s.clock.Now().UTC().Year()
}

func (s *Service) actor(ctx context.Context) string {
	if actor, ok := actorcontext.ActorFromContext(ctx); ok {
		return actor
	}
	return "system"
}

func (s *Service) recordAssignment(ctx context.Context, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAssignment(ctx, outcome)
	}
}

func (s *Service) recordBulk(ctx context.Context, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordBulkGeneration(ctx, outcome)
	}
}
