package reference

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/parishkit/steward/internal/reference/domain"
	"gorm.io/gorm"
)

type repository struct{}

func NewRepository() domain.Repository {
	return &repository{}
}

func (r *repository) FindStatus(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.MembershipStatus, error) {
	var status domain.MembershipStatus
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&status).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &status, nil
}

func (r *repository) StatusExists(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	return exists(ctx, db, "membership_statuses", id)
}

func (r *repository) RoleTypeExists(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	return exists(ctx, db, "role_types", id)
}

func (r *repository) DistrictExists(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	return exists(ctx, db, "districts", id)
}

func (r *repository) ListStatuses(ctx context.Context, db *gorm.DB) ([]domain.MembershipStatus, error) {
	var statuses []domain.MembershipStatus
	err := db.WithContext(ctx).
		Order("name asc").
		Find(&statuses).Error
	if err != nil {
		return nil, err
	}
	return statuses, nil
}

func (r *repository) ListRoleTypes(ctx context.Context, db *gorm.DB) ([]domain.RoleType, error) {
	var roleTypes []domain.RoleType
	err := db.WithContext(ctx).
		Order("name asc").
		Find(&roleTypes).Error
	if err != nil {
		return nil, err
	}
	return roleTypes, nil
}

func (r *repository) ListDistricts(ctx context.Context, db *gorm.DB) ([]domain.District, error) {
	var districts []domain.District
	err := db.WithContext(ctx).
		Order("name asc").
		Find(&districts).Error
	if err != nil {
		return nil, err
	}
	return districts, nil
}

func exists(ctx context.Context, db *gorm.DB, table string, id snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Table(table).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
