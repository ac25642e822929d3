package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/parishkit/steward/internal/clock"
	memberdomain "github.com/parishkit/steward/internal/member/domain"
	referencedomain "github.com/parishkit/steward/internal/reference/domain"
	"github.com/parishkit/steward/internal/register/domain"
	"github.com/parishkit/steward/internal/register/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc      domain.Service
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	activeID snowflake.ID
}

func setup(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.AutoMigrate(
		&referencedomain.MembershipStatus{},
		&memberdomain.Member{},
		&domain.Entry{},
		&domain.AssignmentJob{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(testNow)

	active := referencedomain.MembershipStatus{
		ID:                   node.Generate(),
		Code:                 "active",
		Name:                 "Active",
		GrantsRegisterNumber: true,
		CreatedAt:            testNow,
	}
	require.NoError(t, db.Create(&active).Error)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fc,
		Repo:  repository.Provide(),
	})

	return &fixture{svc: svc, db: db, node: node, clock: fc, activeID: active.ID}
}

func (f *fixture) addMember(t *testing.T, firstName, lastName, joinDate string) snowflake.ID {
	t.Helper()
	join, err := time.Parse("2006-01-02", joinDate)
	require.NoError(t, err)
	member := memberdomain.Member{
		ID:        f.node.Generate(),
		FirstName: firstName,
		LastName:  lastName,
		JoinDate:  join,
		StatusID:  f.activeID,
		CreatedBy: "test",
		CreatedAt: testNow,
		UpdatedBy: "test",
		UpdatedAt: testNow,
	}
	require.NoError(t, f.db.Create(&member).Error)
	return member.ID
}

func (f *fixture) addEntry(t *testing.T, memberID snowflake.ID, year int, number string) {
	t.Helper()
	entry := domain.Entry{
		ID:        f.node.Generate(),
		MemberID:  memberID,
		Year:      year,
		Number:    number,
		CreatedBy: "test",
		CreatedAt: testNow,
		UpdatedBy: "test",
		UpdatedAt: testNow,
	}
	require.NoError(t, f.db.Create(&entry).Error)
}

func TestNextAvailableNumberEmptyYear(t *testing.T) {
	f := setup(t)

	next, err := f.svc.NextAvailableNumber(context.Background(), 2026)
	require.NoError(t, err)
	require.Equal(t, 1, next)
}

func TestNextAvailableNumberSkipsUnparseable(t *testing.T) {
	f := setup(t)

	for _, number := range []string{"3", "1", "x", "5"} {
		f.addEntry(t, f.node.Generate(), 2026, number)
	}

	next, err := f.svc.NextAvailableNumber(context.Background(), 2026)
	require.NoError(t, err)
	require.Equal(t, 6, next)
}

func TestNextAvailableNumberIgnoresOtherYears(t *testing.T) {
	f := setup(t)

	f.addEntry(t, f.node.Generate(), 2025, "40")
	f.addEntry(t, f.node.Generate(), 2026, "2")

	next, err := f.svc.NextAvailableNumber(context.Background(), 2026)
	require.NoError(t, err)
	require.Equal(t, 3, next)
}

func TestNextAvailableNumberRejectsInvalidYear(t *testing.T) {
	f := setup(t)

	_, err := f.svc.NextAvailableNumber(context.Background(), 0)
	require.ErrorIs(t, err, domain.ErrInvalidYear)
}

func TestPreviewOrdersByJoinDateThenSurname(t *testing.T) {
	f := setup(t)

	brown := f.addMember(t, "Bea", "Brown", "2023-01-01")
	zephyr := f.addMember(t, "Zed", "Zephyr", "2022-06-01")
	adams := f.addMember(t, "Ann", "Adams", "2023-01-01")

	preview, err := f.svc.PreviewForYear(context.Background(), 2027)
	require.NoError(t, err)
	require.Equal(t, 3, preview.Total)

	wantOrder := []snowflake.ID{zephyr, adams, brown}
	for i, item := range preview.Items {
		require.Equal(t, i+1, item.Ordinal)
		require.Equal(t, wantOrder[i], item.MemberID)
	}
}

func TestPreviewAnnotatesCurrentNumber(t *testing.T) {
	f := setup(t)

	memberID := f.addMember(t, "Ann", "Adams", "2023-01-01")
	f.addEntry(t, memberID, 2026, "12")

	preview, err := f.svc.PreviewForYear(context.Background(), 2027)
	require.NoError(t, err)
	require.Len(t, preview.Items, 1)
	require.NotNil(t, preview.Items[0].CurrentNumber)
	require.Equal(t, "12", *preview.Items[0].CurrentNumber)
}

func TestPreviewRejectsWrongTargetYear(t *testing.T) {
	f := setup(t)
	f.addMember(t, "Ann", "Adams", "2023-01-01")

	for _, year := range []int{2026, 2028, 1999} {
		_, err := f.svc.PreviewForYear(context.Background(), year)
		require.ErrorIs(t, err, domain.ErrInvalidTargetYear, "year %d", year)
	}
}

func TestGenerateForYearAssignsOrdinals(t *testing.T) {
	f := setup(t)

	zephyr := f.addMember(t, "Zed", "Zephyr", "2022-06-01")
	adams := f.addMember(t, "Ann", "Adams", "2023-01-01")
	brown := f.addMember(t, "Bea", "Brown", "2023-01-01")

	result, err := f.svc.GenerateForYear(context.Background(), 2027)
	require.NoError(t, err)
	require.Equal(t, 2027, result.Year)
	require.Equal(t, 3, result.Total)
	require.Equal(t, "system", result.GeneratedBy)

	want := map[snowflake.ID]string{zephyr: "1", adams: "2", brown: "3"}
	for memberID, number := range want {
		var entry domain.Entry
		require.NoError(t, f.db.Where("member_id = ? AND year = ?", memberID, 2027).First(&entry).Error)
		require.Equal(t, number, entry.Number)
	}
}

func TestGenerateForYearIsOncePerYear(t *testing.T) {
	f := setup(t)
	f.addMember(t, "Ann", "Adams", "2023-01-01")

	_, err := f.svc.GenerateForYear(context.Background(), 2027)
	require.NoError(t, err)

	_, err = f.svc.GenerateForYear(context.Background(), 2027)
	require.ErrorIs(t, err, domain.ErrAlreadyGenerated)

	var count int64
	require.NoError(t, f.db.Model(&domain.Entry{}).Where("year = ?", 2027).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestGenerateForYearNoEligibleMembers(t *testing.T) {
	f := setup(t)

	_, err := f.svc.GenerateForYear(context.Background(), 2027)
	require.ErrorIs(t, err, domain.ErrNoEligibleMembers)
}

func TestGenerationStatus(t *testing.T) {
	f := setup(t)

	status, err := f.svc.GenerationStatus(context.Background(), 2027)
	require.NoError(t, err)
	require.False(t, status.IsGenerated)
	require.EqualValues(t, 0, status.TotalAssignments)

	f.addMember(t, "Ann", "Adams", "2023-01-01")
	_, err = f.svc.GenerateForYear(context.Background(), 2027)
	require.NoError(t, err)

	status, err = f.svc.GenerationStatus(context.Background(), 2027)
	require.NoError(t, err)
	require.True(t, status.IsGenerated)
	require.EqualValues(t, 1, status.TotalAssignments)
	require.NotNil(t, status.GeneratedBy)
	require.Equal(t, "system", *status.GeneratedBy)
}

func TestValidateNumberAvailable(t *testing.T) {
	f := setup(t)

	holder := f.addMember(t, "Ann", "Adams", "2023-01-01")
	f.addEntry(t, holder, 2026, "7")

	err := f.svc.ValidateNumberAvailable(context.Background(), f.db, "7", 0)
	require.ErrorIs(t, err, domain.ErrDuplicateNumber)

	// The holder may keep its own number.
	require.NoError(t, f.svc.ValidateNumberAvailable(context.Background(), f.db, "7", holder))
	require.NoError(t, f.svc.ValidateNumberAvailable(context.Background(), f.db, "8", 0))

	err = f.svc.ValidateNumberAvailable(context.Background(), f.db, "  ", 0)
	require.ErrorIs(t, err, domain.ErrInvalidNumber)
}

func TestProcessPendingAssignsNextNumber(t *testing.T) {
	f := setup(t)

	other := f.addMember(t, "Ann", "Adams", "2023-01-01")
	f.addEntry(t, other, 2026, "4")

	memberID := f.addMember(t, "Bea", "Brown", "2024-01-01")
	require.NoError(t, f.svc.EnqueueAssignment(context.Background(), f.db, memberID, nil))

	require.NoError(t, f.svc.ProcessPendingForMember(context.Background(), memberID))

	entry, err := f.svc.CurrentNumber(context.Background(), memberID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "5", entry.Number)
	require.Equal(t, 2026, entry.Year)

	var job domain.AssignmentJob
	require.NoError(t, f.db.Where("member_id = ?", memberID).First(&job).Error)
	require.Equal(t, domain.JobStatusCompleted, job.Status)
}

func TestProcessPendingHonorsRequestedNumber(t *testing.T) {
	f := setup(t)

	memberID := f.addMember(t, "Bea", "Brown", "2024-01-01")
	requested := "42"
	require.NoError(t, f.svc.EnqueueAssignment(context.Background(), f.db, memberID, &requested))

	require.NoError(t, f.svc.ProcessPendingForMember(context.Background(), memberID))

	entry, err := f.svc.CurrentNumber(context.Background(), memberID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "42", entry.Number)
}

func TestProcessPendingManualDuplicateFailsJob(t *testing.T) {
	f := setup(t)

	holder := f.addMember(t, "Ann", "Adams", "2023-01-01")
	f.addEntry(t, holder, 2026, "7")

	memberID := f.addMember(t, "Bea", "Brown", "2024-01-01")
	requested := "7"
	require.NoError(t, f.svc.EnqueueAssignment(context.Background(), f.db, memberID, &requested))

	err := f.svc.ProcessPendingForMember(context.Background(), memberID)
	require.Error(t, err)

	var job domain.AssignmentJob
	require.NoError(t, f.db.Where("member_id = ?", memberID).First(&job).Error)
	require.Equal(t, domain.JobStatusFailed, job.Status)

	entry, err := f.svc.CurrentNumber(context.Background(), memberID)
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestProcessPendingDrainsBatch(t *testing.T) {
	f := setup(t)

	first := f.addMember(t, "Ann", "Adams", "2023-01-01")
	second := f.addMember(t, "Bea", "Brown", "2024-01-01")
	require.NoError(t, f.svc.EnqueueAssignment(context.Background(), f.db, first, nil))
	require.NoError(t, f.svc.EnqueueAssignment(context.Background(), f.db, second, nil))

	processed, err := f.svc.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, processed)

	firstEntry, err := f.svc.CurrentNumber(context.Background(), first)
	require.NoError(t, err)
	secondEntry, err := f.svc.CurrentNumber(context.Background(), second)
	require.NoError(t, err)
	require.NotNil(t, firstEntry)
	require.NotNil(t, secondEntry)
	require.NotEqual(t, firstEntry.Number, secondEntry.Number)
}

func TestProcessPendingIsIdempotentForExistingEntry(t *testing.T) {
	f := setup(t)

	memberID := f.addMember(t, "Ann", "Adams", "2023-01-01")
	f.addEntry(t, memberID, 2026, "9")
	require.NoError(t, f.svc.EnqueueAssignment(context.Background(), f.db, memberID, nil))

	require.NoError(t, f.svc.ProcessPendingForMember(context.Background(), memberID))

	entry, err := f.svc.CurrentNumber(context.Background(), memberID)
	require.NoError(t, err)
	require.Equal(t, "9", entry.Number)

	var count int64
	require.NoError(t, f.db.Model(&domain.Entry{}).Where("member_id = ?", memberID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestAssignForMemberUpdatesInPlace(t *testing.T) {
	f := setup(t)

	memberID := f.addMember(t, "Ann", "Adams", "2023-01-01")
	f.addEntry(t, memberID, 2026, "3")

	entry, err := f.svc.AssignForMember(context.Background(), f.db, memberID, "15")
	require.NoError(t, err)
	require.Equal(t, "15", entry.Number)

	var count int64
	require.NoError(t, f.db.Model(&domain.Entry{}).Where("member_id = ? AND year = ?", memberID, 2026).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestAssignForMemberRejectsTakenNumber(t *testing.T) {
	f := setup(t)

	holder := f.addMember(t, "Ann", "Adams", "2023-01-01")
	f.addEntry(t, holder, 2026, "7")
	memberID := f.addMember(t, "Bea", "Brown", "2024-01-01")

	_, err := f.svc.AssignForMember(context.Background(), f.db, memberID, "7")
	require.True(t, errors.Is(err, domain.ErrDuplicateNumber), "got %v", err)
}

func TestPurgeMemberRemovesHistoryAndJobs(t *testing.T) {
	f := setup(t)

	memberID := f.addMember(t, "Ann", "Adams", "2023-01-01")
	f.addEntry(t, memberID, 2025, "3")
	f.addEntry(t, memberID, 2026, "5")
	require.NoError(t, f.svc.EnqueueAssignment(context.Background(), f.db, memberID, nil))

	require.NoError(t, f.svc.PurgeMember(context.Background(), f.db, memberID))

	var entries, jobs int64
	require.NoError(t, f.db.Model(&domain.Entry{}).Where("member_id = ?", memberID).Count(&entries).Error)
	require.NoError(t, f.db.Model(&domain.AssignmentJob{}).Where("member_id = ?", memberID).Count(&jobs).Error)
	require.Zero(t, entries)
	require.Zero(t, jobs)
}

func TestHistoryForMemberNewestFirst(t *testing.T) {
	f := setup(t)

	memberID := f.addMember(t, "Ann", "Adams", "2023-01-01")
	f.addEntry(t, memberID, 2024, "2")
	f.addEntry(t, memberID, 2026, "5")
	f.addEntry(t, memberID, 2025, "3")

	history, err := f.svc.HistoryForMember(context.Background(), memberID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, []int{2026, 2025, 2024}, []int{history[0].Year, history[1].Year, history[2].Year})
}
