package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	referencedomain "github.com/parishkit/steward/internal/reference/domain"
	"gorm.io/gorm"
)

type statusSeed struct {
	code   string
	name   string
	grants bool
}

type codeSeed struct {
	code string
	name string
}

var (
	defaultStatuses = []statusSeed{
		{code: "active", name: "Active", grants: true},
		{code: "inactive", name: "Inactive"},
		{code: "visitor", name: "Visitor"},
	}
	defaultRoleTypes = []codeSeed{
		{code: "elder", name: "Elder"},
		{code: "deacon", name: "Deacon"},
		{code: "treasurer", name: "Treasurer"},
		{code: "secretary", name: "Secretary"},
		{code: "sunday_school_teacher", name: "Sunday School Teacher"},
	}
	defaultDistricts = []codeSeed{
		{code: "north", name: "North"},
		{code: "south", name: "South"},
		{code: "east", name: "East"},
		{code: "west", name: "West"},
	}
)

// EnsureReferenceData seeds membership statuses, role types and districts
// when their tables are empty, so a fresh install has a working set of
// lookups. Existing rows are never modified.
func EnsureReferenceData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureStatuses(ctx, tx, node); err != nil {
			return err
		}
		if err := ensureRoleTypes(ctx, tx, node); err != nil {
			return err
		}
		return ensureDistricts(ctx, tx, node)
	})
}

func ensureStatuses(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&referencedomain.MembershipStatus{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, seed := range defaultStatuses {
		status := referencedomain.MembershipStatus{
			ID:                   node.Generate(),
			Code:                 seed.code,
			Name:                 seed.name,
			GrantsRegisterNumber: seed.grants,
			CreatedAt:            now,
		}
		if err := tx.WithContext(ctx).Create(&status).Error; err != nil {
			return err
		}
	}
	return nil
}

func ensureRoleTypes(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&referencedomain.RoleType{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, seed := range defaultRoleTypes {
		role := referencedomain.RoleType{
			ID:        node.Generate(),
			Code:      seed.code,
			Name:      seed.name,
			CreatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(&role).Error; err != nil {
			return err
		}
	}
	return nil
}

func ensureDistricts(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&referencedomain.District{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, seed := range defaultDistricts {
		district := referencedomain.District{
			ID:        node.Generate(),
			Code:      seed.code,
			Name:      seed.name,
			CreatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(&district).Error; err != nil {
			return err
		}
	}
	return nil
}
