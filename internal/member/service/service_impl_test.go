package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/parishkit/steward/internal/clock"
	memberdomain "github.com/parishkit/steward/internal/member/domain"
	memberrepository "github.com/parishkit/steward/internal/member/repository"
	referencedomain "github.com/parishkit/steward/internal/reference/domain"
	referencerepo "github.com/parishkit/steward/internal/reference"
	registerdomain "github.com/parishkit/steward/internal/register/domain"
	registerrepository "github.com/parishkit/steward/internal/register/repository"
	registerservice "github.com/parishkit/steward/internal/register/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc        memberdomain.Service
	register   registerdomain.Service
	db         *gorm.DB
	node       *snowflake.Node
	activeID   snowflake.ID
	visitorID  snowflake.ID
	elderID    snowflake.ID
	deaconID   snowflake.ID
	districtID snowflake.ID
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
		&referencedomain.RoleType{},
		&referencedomain.District{},
		&memberdomain.Member{},
		&memberdomain.Address{},
		&memberdomain.RoleAssignment{},
		&memberdomain.DataProtectionProfile{},
		&registerdomain.Entry{},
		&registerdomain.AssignmentJob{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(testNow)

	active := referencedomain.MembershipStatus{ID: node.Generate(), Code: "active", Name: "Active", GrantsRegisterNumber: true, CreatedAt: testNow}
	visitor := referencedomain.MembershipStatus{ID: node.Generate(), Code: "visitor", Name: "Visitor", CreatedAt: testNow}
	elder := referencedomain.RoleType{ID: node.Generate(), Code: "elder", Name: "Elder", CreatedAt: testNow}
	deacon := referencedomain.RoleType{ID: node.Generate(), Code: "deacon", Name: "Deacon", CreatedAt: testNow}
	north := referencedomain.District{ID: node.Generate(), Code: "north", Name: "North", CreatedAt: testNow}
	for _, row := range []any{&active, &visitor, &elder, &deacon, &north} {
		require.NoError(t, db.Create(row).Error)
	}

	registerSvc := registerservice.New(registerservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fc,
		Repo:  registerrepository.Provide(),
	})

	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       fc,
		Repo:        memberrepository.Provide(),
		RefRepo:     referencerepo.NewRepository(),
		RegisterSvc: registerSvc,
	})

	return &fixture{
		svc:        svc,
		register:   registerSvc,
		db:         db,
		node:       node,
		activeID:   active.ID,
		visitorID:  visitor.ID,
		elderID:    elder.ID,
		deaconID:   deacon.ID,
		districtID: north.ID,
	}
}

func (f *fixture) createRequest(firstName, lastName string) memberdomain.CreateMemberRequest {
	return memberdomain.CreateMemberRequest{
		FirstName: firstName,
		LastName:  lastName,
		JoinDate:  time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC),
		StatusID:  f.activeID.String(),
	}
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(model).Count(&count).Error)
	return count
}

func TestCreateAssignsNextAvailableNumber(t *testing.T) {
	f := setup(t)

	first, err := f.svc.Create(context.Background(), f.createRequest("Ann", "Adams"))
	require.NoError(t, err)

	entry, err := f.register.CurrentNumber(context.Background(), first.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "1", entry.Number)
	require.Equal(t, 2026, entry.Year)

	second, err := f.svc.Create(context.Background(), f.createRequest("Bea", "Brown"))
	require.NoError(t, err)

	entry, err = f.register.CurrentNumber(context.Background(), second.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "2", entry.Number)

	var job registerdomain.AssignmentJob
	require.NoError(t, f.db.Where("member_id = ?", second.ID).First(&job).Error)
	require.Equal(t, registerdomain.JobStatusCompleted, job.Status)
}

func TestCreateWithManualNumber(t *testing.T) {
	f := setup(t)

	req := f.createRequest("Ann", "Adams")
	req.RegisterNumber = "27"

	view, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	entry, err := f.register.CurrentNumber(context.Background(), view.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "27", entry.Number)
}

func TestCreateRejectsTakenManualNumber(t *testing.T) {
	f := setup(t)

	req := f.createRequest("Ann", "Adams")
	req.RegisterNumber = "27"
	_, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	dup := f.createRequest("Bea", "Brown")
	dup.RegisterNumber = "27"
	_, err = f.svc.Create(context.Background(), dup)
	require.ErrorIs(t, err, registerdomain.ErrDuplicateNumber)
	require.EqualValues(t, 1, countRows(t, f.db, &memberdomain.Member{}))
}

func TestCreateVisitorGetsNoNumber(t *testing.T) {
	f := setup(t)

	req := f.createRequest("Ann", "Adams")
	req.StatusID = f.visitorID.String()

	view, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	entry, err := f.register.CurrentNumber(context.Background(), view.ID)
	require.NoError(t, err)
	require.Nil(t, entry)
	require.Zero(t, countRows(t, f.db, &registerdomain.AssignmentJob{}))
}

func TestCreateDuplicateGivingReference(t *testing.T) {
	f := setup(t)

	req := f.createRequest("Ann", "Adams")
	req.GivingReference = "ENV-12"
	_, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	dup := f.createRequest("Bea", "Brown")
	dup.GivingReference = "  env-12  "
	_, err = f.svc.Create(context.Background(), dup)
	require.ErrorIs(t, err, memberdomain.ErrDuplicateGivingReference)
	require.EqualValues(t, 1, countRows(t, f.db, &memberdomain.Member{}))
}

func TestCreateBlankGivingReferencesMayRepeat(t *testing.T) {
	f := setup(t)

	first := f.createRequest("Ann", "Adams")
	first.GivingReference = "   "
	_, err := f.svc.Create(context.Background(), first)
	require.NoError(t, err)

	second := f.createRequest("Bea", "Brown")
	_, err = f.svc.Create(context.Background(), second)
	require.NoError(t, err)
	require.EqualValues(t, 2, countRows(t, f.db, &memberdomain.Member{}))
}

func TestCreateInvalidRoleAbortsEverything(t *testing.T) {
	f := setup(t)

	req := f.createRequest("Ann", "Adams")
	req.RoleTypeIDs = []string{f.elderID.String(), f.node.Generate().String()}
	req.Address = memberdomain.AddressInput{Line1: "1 Chapel Lane", City: "Ambleside"}

	_, err := f.svc.Create(context.Background(), req)
	require.ErrorIs(t, err, referencedomain.ErrRoleTypeNotFound)

	require.Zero(t, countRows(t, f.db, &memberdomain.Member{}))
	require.Zero(t, countRows(t, f.db, &memberdomain.Address{}))
	require.Zero(t, countRows(t, f.db, &memberdomain.RoleAssignment{}))
}

func TestCreateUnknownStatus(t *testing.T) {
	f := setup(t)

	req := f.createRequest("Ann", "Adams")
	req.StatusID = f.node.Generate().String()

	_, err := f.svc.Create(context.Background(), req)
	require.ErrorIs(t, err, referencedomain.ErrStatusNotFound)
}

func TestCreateComposesFullView(t *testing.T) {
	f := setup(t)

	req := f.createRequest("Ann", "Adams")
	req.DistrictID = f.districtID.String()
	req.RoleTypeIDs = []string{f.elderID.String()}
	req.Address = memberdomain.AddressInput{Line1: "1 Chapel Lane", City: "Ambleside", Postcode: "LA22 9DT"}

	view, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, view.Address)
	require.Equal(t, "1 Chapel Lane", view.Address.Line1)
	require.Equal(t, []snowflake.ID{f.elderID}, view.RoleTypeIDs)
	require.NotNil(t, view.DataProtection)
	require.False(t, view.DataProtection.ConsentEmail)
	require.NotNil(t, view.DataProtectionID)
	require.Equal(t, *view.DataProtectionID, view.DataProtection.ID)
}

func TestUpdateReplacesRoleSet(t *testing.T) {
	f := setup(t)

	req := f.createRequest("Ann", "Adams")
	req.RoleTypeIDs = []string{f.elderID.String()}
	view, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	update := memberdomain.UpdateMemberRequest{
		FirstName:   "Ann",
		LastName:    "Adams",
		JoinDate:    view.JoinDate,
		StatusID:    f.activeID.String(),
		RoleTypeIDs: []string{f.deaconID.String()},
	}
	updated, err := f.svc.Update(context.Background(), view.ID.String(), update)
	require.NoError(t, err)
	require.Equal(t, []snowflake.ID{f.deaconID}, updated.RoleTypeIDs)
	require.EqualValues(t, 1, countRows(t, f.db, &memberdomain.RoleAssignment{}))
}

func TestUpdateManualNumberRewritesCurrentYear(t *testing.T) {
	f := setup(t)

	view, err := f.svc.Create(context.Background(), f.createRequest("Ann", "Adams"))
	require.NoError(t, err)

	update := memberdomain.UpdateMemberRequest{
		FirstName:      "Ann",
		LastName:       "Adams",
		JoinDate:       view.JoinDate,
		StatusID:       f.activeID.String(),
		RegisterNumber: "99",
	}
	_, err = f.svc.Update(context.Background(), view.ID.String(), update)
	require.NoError(t, err)

	entry, err := f.register.CurrentNumber(context.Background(), view.ID)
	require.NoError(t, err)
	require.Equal(t, "99", entry.Number)
	require.EqualValues(t, 1, countRows(t, f.db, &registerdomain.Entry{}))
}

func TestUpdateClearsAddressWhenBlank(t *testing.T) {
	f := setup(t)

	req := f.createRequest("Ann", "Adams")
	req.Address = memberdomain.AddressInput{Line1: "1 Chapel Lane"}
	view, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, view.Address)

	update := memberdomain.UpdateMemberRequest{
		FirstName: "Ann",
		LastName:  "Adams",
		JoinDate:  view.JoinDate,
		StatusID:  f.activeID.String(),
	}
	updated, err := f.svc.Update(context.Background(), view.ID.String(), update)
	require.NoError(t, err)
	require.Nil(t, updated.Address)
	require.Zero(t, countRows(t, f.db, &memberdomain.Address{}))
}

func TestUpdateUnknownMember(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Update(context.Background(), f.node.Generate().String(), memberdomain.UpdateMemberRequest{
		FirstName: "Ann",
		LastName:  "Adams",
		JoinDate:  testNow,
		StatusID:  f.activeID.String(),
	})
	require.ErrorIs(t, err, memberdomain.ErrNotFound)
}

func TestDeleteRemovesEverything(t *testing.T) {
	f := setup(t)

	req := f.createRequest("Ann", "Adams")
	req.RoleTypeIDs = []string{f.elderID.String()}
	req.Address = memberdomain.AddressInput{Line1: "1 Chapel Lane"}
	view, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), view.ID.String()))

	require.Zero(t, countRows(t, f.db, &memberdomain.Member{}))
	require.Zero(t, countRows(t, f.db, &memberdomain.Address{}))
	require.Zero(t, countRows(t, f.db, &memberdomain.RoleAssignment{}))
	require.Zero(t, countRows(t, f.db, &memberdomain.DataProtectionProfile{}))
	require.Zero(t, countRows(t, f.db, &registerdomain.Entry{}))
	require.Zero(t, countRows(t, f.db, &registerdomain.AssignmentJob{}))

	_, err = f.svc.GetByID(context.Background(), view.ID.String())
	require.ErrorIs(t, err, memberdomain.ErrNotFound)
}

func TestListFiltersByNameAndStatus(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Create(context.Background(), f.createRequest("Ann", "Adams"))
	require.NoError(t, err)

	visitor := f.createRequest("Vic", "Visitor")
	visitor.StatusID = f.visitorID.String()
	_, err = f.svc.Create(context.Background(), visitor)
	require.NoError(t, err)

	byName, err := f.svc.List(context.Background(), memberdomain.ListMemberRequest{Name: "ada"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	require.Equal(t, "Adams", byName[0].LastName)

	byStatus, err := f.svc.List(context.Background(), memberdomain.ListMemberRequest{StatusID: f.visitorID.String()})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	require.Equal(t, "Visitor", byStatus[0].LastName)

	all, err := f.svc.List(context.Background(), memberdomain.ListMemberRequest{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}
