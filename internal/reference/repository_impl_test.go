package reference

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/parishkit/steward/internal/reference/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.MembershipStatus{},
		&domain.RoleType{},
		&domain.District{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return db, node
}

func TestFindStatus(t *testing.T) {
	db, node := setup(t)
	repo := NewRepository()
	ctx := context.Background()

	active := domain.MembershipStatus{
		ID:                   node.Generate(),
		Code:                 "active",
		Name:                 "Active",
		GrantsRegisterNumber: true,
		CreatedAt:            time.Now().UTC(),
	}
	require.NoError(t, db.Create(&active).Error)

	found, err := repo.FindStatus(ctx, db, active.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.True(t, found.GrantsRegisterNumber)

	missing, err := repo.FindStatus(ctx, db, node.Generate())
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestExistenceChecks(t *testing.T) {
	db, node := setup(t)
	repo := NewRepository()
	ctx := context.Background()

	role := domain.RoleType{ID: node.Generate(), Code: "elder", Name: "Elder", CreatedAt: time.Now().UTC()}
	district := domain.District{ID: node.Generate(), Code: "north", Name: "North", CreatedAt: time.Now().UTC()}
	require.NoError(t, db.Create(&role).Error)
	require.NoError(t, db.Create(&district).Error)

	ok, err := repo.RoleTypeExists(ctx, db, role.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.RoleTypeExists(ctx, db, node.Generate())
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = repo.DistrictExists(ctx, db, district.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.StatusExists(ctx, db, node.Generate())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListsOrderedByName(t *testing.T) {
	db, node := setup(t)
	repo := NewRepository()
	ctx := context.Background()

	for _, name := range []string{"Visitor", "Active", "Inactive"} {
		status := domain.MembershipStatus{ID: node.Generate(), Code: name, Name: name, CreatedAt: time.Now().UTC()}
		require.NoError(t, db.Create(&status).Error)
	}

	statuses, err := repo.ListStatuses(ctx, db)
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	require.Equal(t, "Active", statuses[0].Name)
	require.Equal(t, "Visitor", statuses[2].Name)
}
