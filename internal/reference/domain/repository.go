package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository answers existence checks against the lookup tables. A missing
// id rejects the whole operation; nothing substitutes a default.
type Repository interface {
	FindStatus(ctx context.Context, db *gorm.DB, id snowflake.ID) (*MembershipStatus, error)
	StatusExists(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	RoleTypeExists(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	DistrictExists(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)

	ListStatuses(ctx context.Context, db *gorm.DB) ([]MembershipStatus, error)
	ListRoleTypes(ctx context.Context, db *gorm.DB) ([]RoleType, error)
	ListDistricts(ctx context.Context, db *gorm.DB) ([]District, error)
}

var (
	ErrStatusNotFound   = errors.New("status_not_found")
	ErrRoleTypeNotFound = errors.New("role_type_not_found")
	ErrDistrictNotFound = errors.New("district_not_found")
)
