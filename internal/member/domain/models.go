package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Member struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	FirstName string       `gorm:"type:text;not null" json:"first_name"`
	LastName  string       `gorm:"type:text;not null;index" json:"last_name"`
	Email     string       `gorm:"type:text" json:"email,omitempty"`
	Phone     string       `gorm:"type:text" json:"phone,omitempty"`

	JoinDate    time.Time  `gorm:"not null;index" json:"join_date"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`

	Baptised     bool `gorm:"not null;default:false" json:"baptised"`
	GiftAid      bool `gorm:"not null;default:false" json:"gift_aid"`
	PastoralCare bool `gorm:"not null;default:false" json:"pastoral_care"`

	StatusID   snowflake.ID  `gorm:"not null;index" json:"status_id"`
	DistrictID *snowflake.ID `gorm:"index" json:"district_id,omitempty"`
	AddressID  *snowflake.ID `json:"address_id,omitempty"`

	// DataProtectionID is a nullable back-reference so member and profile do
	// not form a delete-cascade cycle; it is severed before a hard delete.
	DataProtectionID *snowflake.ID `json:"data_protection_id,omitempty"`

	// GivingReference matches giving records and contributions. Stored
	// trimmed; nil when blank so any number of members can have no
	// reference, while non-blank values are unique case-insensitively.
	GivingReference *string `gorm:"type:text" json:"giving_reference,omitempty"`

	CreatedBy string    `gorm:"type:text;not null" json:"created_by"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedBy string    `gorm:"type:text;not null" json:"updated_by"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Member) TableName() string { return "members" }

type Address struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Line1     string       `gorm:"type:text" json:"line1,omitempty"`
	Line2     string       `gorm:"type:text" json:"line2,omitempty"`
	City      string       `gorm:"type:text" json:"city,omitempty"`
	County    string       `gorm:"type:text" json:"county,omitempty"`
	Postcode  string       `gorm:"type:text" json:"postcode,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Address) TableName() string { return "addresses" }

type RoleAssignment struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	MemberID   snowflake.ID `gorm:"not null;index" json:"member_id"`
	RoleTypeID snowflake.ID `gorm:"not null;index" json:"role_type_id"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (RoleAssignment) TableName() string { return "member_roles" }

// DataProtectionProfile holds the member's consent flags. It is created once
// at member creation with every flag defaulted to false.
type DataProtectionProfile struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	MemberID       snowflake.ID `gorm:"not null;index" json:"member_id"`
	ConsentEmail   bool         `gorm:"not null;default:false" json:"consent_email"`
	ConsentPhone   bool         `gorm:"not null;default:false" json:"consent_phone"`
	ConsentPost    bool         `gorm:"not null;default:false" json:"consent_post"`
	ConsentPhotos  bool         `gorm:"not null;default:false" json:"consent_photos"`
	ConsentVisits  bool         `gorm:"not null;default:false" json:"consent_visits"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (DataProtectionProfile) TableName() string { return "data_protection_profiles" }

// AddressInput carries the optional postal address on create/update. The
// address row exists only while at least one field is non-blank.
type AddressInput struct {
	Line1    string `json:"line1"`
	Line2    string `json:"line2"`
	City     string `json:"city"`
	County   string `json:"county"`
	Postcode string `json:"postcode"`
}

func (a AddressInput) IsBlank() bool {
	return strings.TrimSpace(a.Line1) == "" &&
		strings.TrimSpace(a.Line2) == "" &&
		strings.TrimSpace(a.City) == "" &&
		strings.TrimSpace(a.County) == "" &&
		strings.TrimSpace(a.Postcode) == ""
}

// NormalizeGivingReference trims the raw value and maps blank to nil.
func NormalizeGivingReference(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
