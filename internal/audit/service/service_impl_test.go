package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/parishkit/steward/internal/actorcontext"
	"github.com/parishkit/steward/internal/audit/domain"
	"github.com/parishkit/steward/internal/audit/repository"
	"github.com/parishkit/steward/internal/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
	return svc, db
}

func TestRecordUsesActorFromContext(t *testing.T) {
	svc, db := setup(t)

	ctx := actorcontext.WithActor(context.Background(), "mwilson")
	require.NoError(t, svc.Record(ctx, domain.RecordRequest{
		Action:     "member.create",
		TargetType: "member",
		TargetID:   "42",
		Metadata:   map[string]interface{}{"last_name": "Adams"},
	}))

	var entry domain.AuditLog
	require.NoError(t, db.First(&entry).Error)
	require.Equal(t, "mwilson", entry.Actor)
	require.Equal(t, "member.create", entry.Action)
	require.Equal(t, "42", entry.TargetID)
}

func TestRecordDefaultsToSystemActor(t *testing.T) {
	svc, db := setup(t)

	require.NoError(t, svc.Record(context.Background(), domain.RecordRequest{
		Action:     "register.generate",
		TargetType: "register_year",
		TargetID:   "2027",
	}))

	var entry domain.AuditLog
	require.NoError(t, db.First(&entry).Error)
	require.Equal(t, "system", entry.Actor)
}

func TestListFiltersByActionAndTarget(t *testing.T) {
	svc, _ := setup(t)

	ctx := context.Background()
	require.NoError(t, svc.Record(ctx, domain.RecordRequest{Action: "member.create", TargetType: "member", TargetID: "1"}))
	require.NoError(t, svc.Record(ctx, domain.RecordRequest{Action: "member.delete", TargetType: "member", TargetID: "1"}))
	require.NoError(t, svc.Record(ctx, domain.RecordRequest{Action: "member.create", TargetType: "member", TargetID: "2"}))

	byAction, err := svc.List(ctx, domain.ListFilter{Action: "member.create"})
	require.NoError(t, err)
	require.Len(t, byAction, 2)

	byTarget, err := svc.List(ctx, domain.ListFilter{TargetID: "1"})
	require.NoError(t, err)
	require.Len(t, byTarget, 2)

	all, err := svc.List(ctx, domain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
}
