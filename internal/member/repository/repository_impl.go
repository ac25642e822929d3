package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/parishkit/steward/internal/member/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, member *domain.Member) error {
	return db.WithContext(ctx).Create(member).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, member *domain.Member) error {
	return db.WithContext(ctx).
		Model(&domain.Member{}).
		Where("id = ?", member.ID).
		Select("*").
		Omit("id", "created_by", "created_at").
		Updates(member).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM members WHERE id = ?`, id,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Member, error) {
	var member domain.Member
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListMemberFilter) ([]*domain.Member, error) {
	stmt := db.WithContext(ctx).Model(&domain.Member{})
	if name := strings.TrimSpace(filter.Name); name != "" {
		pattern := "%" + strings.ToLower(name) + "%"
		stmt = stmt.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", pattern, pattern)
	}
	if filter.StatusID != 0 {
		stmt = stmt.Where("status_id = ?", filter.StatusID)
	}
	if filter.DistrictID != 0 {
		stmt = stmt.Where("district_id = ?", filter.DistrictID)
	}

	var members []*domain.Member
	err := stmt.
		Order("last_name asc, first_name asc").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repo) GivingReferenceInUse(ctx context.Context, db *gorm.DB, reference string, excludeID snowflake.ID) (bool, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Member{}).
		Where("giving_reference IS NOT NULL AND LOWER(giving_reference) = LOWER(?)", strings.TrimSpace(reference))
	if excludeID != 0 {
		stmt = stmt.Where("id <> ?", excludeID)
	}

	var count int64
	if err := stmt.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) InsertAddress(ctx context.Context, db *gorm.DB, address *domain.Address) error {
	return db.WithContext(ctx).Create(address).Error
}

func (r *repo) UpdateAddress(ctx context.Context, db *gorm.DB, address *domain.Address) error {
	return db.WithContext(ctx).
		Model(&domain.Address{}).
		Where("id = ?", address.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(address).Error
}

func (r *repo) DeleteAddress(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM addresses WHERE id = ?`, id,
	).Error
}

func (r *repo) FindAddress(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Address, error) {
	var address domain.Address
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&address).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &address, nil
}

func (r *repo) InsertRole(ctx context.Context, db *gorm.DB, role *domain.RoleAssignment) error {
	return db.WithContext(ctx).Create(role).Error
}

func (r *repo) DeleteRolesForMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM member_roles WHERE member_id = ?`, memberID,
	).Error
}

func (r *repo) ListRoles(ctx context.Context, db *gorm.DB, memberID snowflake.ID) ([]domain.RoleAssignment, error) {
	var roles []domain.RoleAssignment
	err := db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("created_at asc").
		Find(&roles).Error
	if err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *repo) InsertDataProtection(ctx context.Context, db *gorm.DB, profile *domain.DataProtectionProfile) error {
	return db.WithContext(ctx).Create(profile).Error
}

func (r *repo) LinkDataProtection(ctx context.Context, db *gorm.DB, memberID, profileID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE members SET data_protection_id = ? WHERE id = ?`, profileID, memberID,
	).Error
}

func (r *repo) SeverDataProtection(ctx context.Context, db *gorm.DB, memberID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE members SET data_protection_id = NULL WHERE id = ?`, memberID,
	).Error
}

func (r *repo) DeleteDataProtectionForMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM data_protection_profiles WHERE member_id = ?`, memberID,
	).Error
}

func (r *repo) FindDataProtectionForMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) (*domain.DataProtectionProfile, error) {
	var profile domain.DataProtectionProfile
	err := db.WithContext(ctx).
		Where("member_id = ?", memberID).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}
