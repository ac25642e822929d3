package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListMemberFilter struct {
	Name       string
	StatusID   snowflake.ID
	DistrictID snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, member *Member) error
	Update(ctx context.Context, db *gorm.DB, member *Member) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Member, error)
	List(ctx context.Context, db *gorm.DB, filter ListMemberFilter) ([]*Member, error)

	// GivingReferenceInUse checks the trimmed value case-insensitively
	// against every other member's non-blank reference.
	GivingReferenceInUse(ctx context.Context, db *gorm.DB, reference string, excludeID snowflake.ID) (bool, error)

	InsertAddress(ctx context.Context, db *gorm.DB, address *Address) error
	UpdateAddress(ctx context.Context, db *gorm.DB, address *Address) error
	DeleteAddress(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindAddress(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Address, error)

	InsertRole(ctx context.Context, db *gorm.DB, role *RoleAssignment) error
	DeleteRolesForMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) error
	ListRoles(ctx context.Context, db *gorm.DB, memberID snowflake.ID) ([]RoleAssignment, error)

	InsertDataProtection(ctx context.Context, db *gorm.DB, profile *DataProtectionProfile) error
	LinkDataProtection(ctx context.Context, db *gorm.DB, memberID, profileID snowflake.ID) error
	SeverDataProtection(ctx context.Context, db *gorm.DB, memberID snowflake.ID) error
	DeleteDataProtectionForMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) error
	FindDataProtectionForMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) (*DataProtectionProfile, error)
}
