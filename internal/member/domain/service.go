package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateMemberRequest struct {
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	JoinDate    time.Time
	DateOfBirth *time.Time

	Baptised     bool
	GiftAid      bool
	PastoralCare bool

	StatusID   string
	DistrictID string
	RoleTypeIDs []string

	GivingReference string

	// RegisterNumber is an optional caller-supplied current-year number;
	// when empty and the status grants numbering, the next available number
	// is assigned automatically.
	RegisterNumber string

	Address AddressInput
}

type UpdateMemberRequest struct {
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	JoinDate    time.Time
	DateOfBirth *time.Time

	Baptised     bool
	GiftAid      bool
	PastoralCare bool

	StatusID   string
	DistrictID string
	RoleTypeIDs []string

	GivingReference string
	RegisterNumber  string

	Address AddressInput
}

type ListMemberRequest struct {
	Name       string
	StatusID   string
	DistrictID string
}

// MemberView is the composed read model handed to the HTTP surface.
type MemberView struct {
	Member
	Address        *Address               `json:"address,omitempty"`
	RoleTypeIDs    []snowflake.ID         `json:"role_type_ids"`
	DataProtection *DataProtectionProfile `json:"data_protection,omitempty"`
}

type Service interface {
	Create(ctx context.Context, req CreateMemberRequest) (MemberView, error)
	Update(ctx context.Context, id string, req UpdateMemberRequest) (MemberView, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (MemberView, error)
	List(ctx context.Context, req ListMemberRequest) ([]MemberView, error)
}

var (
	ErrInvalidID                = errors.New("invalid_member_id")
	ErrInvalidName              = errors.New("invalid_name")
	ErrInvalidJoinDate          = errors.New("invalid_join_date")
	ErrNotFound                 = errors.New("member_not_found")
	ErrDuplicateGivingReference = errors.New("duplicate_giving_reference")
)
