package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/parishkit/steward/internal/actorcontext"
	"github.com/parishkit/steward/internal/clock"
	memberdomain "github.com/parishkit/steward/internal/member/domain"
	obsmetrics "github.com/parishkit/steward/internal/observability/metrics"
	referencedomain "github.com/parishkit/steward/internal/reference/domain"
	registerdomain "github.com/parishkit/steward/internal/register/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        memberdomain.Repository
	RefRepo     referencedomain.Repository
	RegisterSvc registerdomain.Service
	Metrics     *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        memberdomain.Repository
	refRepo     referencedomain.Repository
	registerSvc registerdomain.Service
	metrics     *obsmetrics.Metrics
}

func New(p Params) memberdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("member.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		refRepo:     p.RefRepo,
		registerSvc: p.RegisterSvc,
		metrics:     p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req memberdomain.CreateMemberRequest) (memberdomain.MemberView, error) {
	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	if firstName == "" || lastName == "" {
		return memberdomain.MemberView{}, memberdomain.ErrInvalidName
	}
	if req.JoinDate.IsZero() {
		return memberdomain.MemberView{}, memberdomain.ErrInvalidJoinDate
	}

	status, err := s.resolveStatus(ctx, req.StatusID)
	if err != nil {
		return memberdomain.MemberView{}, err
	}

	districtID, err := s.resolveDistrict(ctx, req.DistrictID)
	if err != nil {
		return memberdomain.MemberView{}, err
	}

	roleTypeIDs, err := s.resolveRoleTypes(ctx, req.RoleTypeIDs)
	if err != nil {
		return memberdomain.MemberView{}, err
	}

	givingReference := memberdomain.NormalizeGivingReference(req.GivingReference)
	if givingReference != nil {
		inUse, err := s.repo.GivingReferenceInUse(ctx, s.db, *givingReference, 0)
		if err != nil {
			return memberdomain.MemberView{}, err
		}
		if inUse {
			return memberdomain.MemberView{}, memberdomain.ErrDuplicateGivingReference
		}
	}

	manualNumber := strings.TrimSpace(req.RegisterNumber)
	if manualNumber != "" {
		if err := s.registerSvc.ValidateNumberAvailable(ctx, s.db, manualNumber, 0); err != nil {
			return memberdomain.MemberView{}, err
		}
	}

	actor := s.actor(ctx)
	now := s.clock.Now()
	member := &memberdomain.Member{
		ID:              s.genID.Generate(),
		FirstName:       firstName,
		LastName:        lastName,
		Email:           strings.TrimSpace(req.Email),
		Phone:           strings.TrimSpace(req.Phone),
		JoinDate:        req.JoinDate.UTC(),
		DateOfBirth:     req.DateOfBirth,
		Baptised:        req.Baptised,
		GiftAid:         req.GiftAid,
		PastoralCare:    req.PastoralCare,
		StatusID:        status.ID,
		DistrictID:      districtID,
		GivingReference: givingReference,
		CreatedBy:       actor,
		CreatedAt:       now,
		UpdatedBy:       actor,
		UpdatedAt:       now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !req.Address.IsBlank() {
			address := s.newAddress(req.Address, now)
			if err := s.repo.InsertAddress(ctx, tx, address); err != nil {
				return err
			}
			member.AddressID = &address.ID
		}

		if err := s.repo.Insert(ctx, tx, member); err != nil {
			return err
		}

		for _, roleTypeID := range roleTypeIDs {
			if err := s.repo.InsertRole(ctx, tx, &memberdomain.RoleAssignment{
				ID:         s.genID.Generate(),
				MemberID:   member.ID,
				RoleTypeID: roleTypeID,
				CreatedAt:  now,
			}); err != nil {
				return err
			}
		}

		if status.GrantsRegisterNumber {
			var requested *string
			if manualNumber != "" {
				requested = &manualNumber
			}
			if err := s.registerSvc.EnqueueAssignment(ctx, tx, member.ID, requested); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Error("member create failed", zap.Error(err))
		return memberdomain.MemberView{}, err
	}

	// The consent profile is linked by a nullable back-reference after the
	// commit so member and profile never form a cascade cycle.
	profile := &memberdomain.DataProtectionProfile{
		ID:        s.genID.Generate(),
		MemberID:  member.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertDataProtection(ctx, s.db, profile); err != nil {
		return memberdomain.MemberView{}, err
	}
	if err := s.repo.LinkDataProtection(ctx, s.db, member.ID, profile.ID); err != nil {
		return memberdomain.MemberView{}, err
	}
	member.DataProtectionID = &profile.ID

	// Number assignment stays outside the creation transaction and is
	// non-fatal: the member exists either way, the queued job keeps the
	// failure discoverable, and the scheduler retries it.
	if status.GrantsRegisterNumber {
		if err := s.registerSvc.ProcessPendingForMember(ctx, member.ID); err != nil {
			s.log.Warn("register number assignment deferred",
				zap.String("member_id", member.ID.String()),
				zap.Error(err),
			)
		}
	}

	s.recordWrite(ctx, "create")
	return s.view(ctx, member)
}

func (s *Service) Update(ctx context.Context, id string, req memberdomain.UpdateMemberRequest) (memberdomain.MemberView, error) {
	memberID, err := parseID(id)
	if err != nil {
		return memberdomain.MemberView{}, err
	}

	member, err := s.repo.FindByID(ctx, s.db, memberID)
	if err != nil {
		return memberdomain.MemberView{}, err
	}
	if member == nil {
		return memberdomain.MemberView{}, memberdomain.ErrNotFound
	}

	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	if firstName == "" || lastName == "" {
		return memberdomain.MemberView{}, memberdomain.ErrInvalidName
	}
	if req.JoinDate.IsZero() {
		return memberdomain.MemberView{}, memberdomain.ErrInvalidJoinDate
	}

	status, err := s.resolveStatus(ctx, req.StatusID)
	if err != nil {
		return memberdomain.MemberView{}, err
	}

	districtID, err := s.resolveDistrict(ctx, req.DistrictID)
	if err != nil {
		return memberdomain.MemberView{}, err
	}

	roleTypeIDs, err := s.resolveRoleTypes(ctx, req.RoleTypeIDs)
	if err != nil {
		return memberdomain.MemberView{}, err
	}

	givingReference := memberdomain.NormalizeGivingReference(req.GivingReference)
	if givingReference != nil {
		inUse, err := s.repo.GivingReferenceInUse(ctx, s.db, *givingReference, member.ID)
		if err != nil {
			return memberdomain.MemberView{}, err
		}
		if inUse {
			return memberdomain.MemberView{}, memberdomain.ErrDuplicateGivingReference
		}
	}

	manualNumber := strings.TrimSpace(req.RegisterNumber)
	if manualNumber != "" {
		if err := s.registerSvc.ValidateNumberAvailable(ctx, s.db, manualNumber, member.ID); err != nil {
			return memberdomain.MemberView{}, err
		}
	}

	actor := s.actor(ctx)
	now := s.clock.Now()

	member.FirstName = firstName
	member.LastName = lastName
	member.Email = strings.TrimSpace(req.Email)
	member.Phone = strings.TrimSpace(req.Phone)
	member.JoinDate = req.JoinDate.UTC()
	member.DateOfBirth = req.DateOfBirth
	member.Baptised = req.Baptised
	member.GiftAid = req.GiftAid
	member.PastoralCare = req.PastoralCare
	member.StatusID = status.ID
	member.DistrictID = districtID
	member.GivingReference = givingReference
	member.UpdatedBy = actor
	member.UpdatedAt = now

	// Unlike create, the in-place number write belongs to the same save as
	// the member, address and role changes: everything lands or nothing
	// does.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.applyAddress(ctx, tx, member, req.Address, now); err != nil {
			return err
		}

		if err := s.repo.Update(ctx, tx, member); err != nil {
			return err
		}

		if err := s.repo.DeleteRolesForMember(ctx, tx, member.ID); err != nil {
			return err
		}
		for _, roleTypeID := range roleTypeIDs {
			if err := s.repo.InsertRole(ctx, tx, &memberdomain.RoleAssignment{
				ID:         s.genID.Generate(),
				MemberID:   member.ID,
				RoleTypeID: roleTypeID,
				CreatedAt:  now,
			}); err != nil {
				return err
			}
		}

		if status.GrantsRegisterNumber && manualNumber != "" {
			if _, err := s.registerSvc.AssignForMember(ctx, tx, member.ID, manualNumber); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Error("member update failed",
			zap.String("member_id", member.ID.String()),
			zap.Error(err),
		)
		return memberdomain.MemberView{}, err
	}

	s.recordWrite(ctx, "update")
	return s.view(ctx, member)
}

// Delete hard-deletes the member with its address, role links, consent
// profile and full register-number history. Irreversible.
func (s *Service) Delete(ctx context.Context, id string) error {
	memberID, err := parseID(id)
	if err != nil {
		return err
	}

	member, err := s.repo.FindByID(ctx, s.db, memberID)
	if err != nil {
		return err
	}
	if member == nil {
		return memberdomain.ErrNotFound
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Sever the back-reference first so the profile row can go without
		// tripping the foreign key from members.
		if err := s.repo.SeverDataProtection(ctx, tx, member.ID); err != nil {
			return err
		}
		if err := s.repo.DeleteDataProtectionForMember(ctx, tx, member.ID); err != nil {
			return err
		}
		if err := s.registerSvc.PurgeMember(ctx, tx, member.ID); err != nil {
			return err
		}
		if err := s.repo.DeleteRolesForMember(ctx, tx, member.ID); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tx, member.ID); err != nil {
			return err
		}
		if member.AddressID != nil {
			if err := s.repo.DeleteAddress(ctx, tx, *member.AddressID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Error("member delete failed",
			zap.String("member_id", member.ID.String()),
			zap.Error(err),
		)
		return err
	}

	s.recordWrite(ctx, "delete")
	return nil
}

func (s *Service) GetByID(ctx context.Context, id string) (memberdomain.MemberView, error) {
	memberID, err := parseID(id)
	if err != nil {
		return memberdomain.MemberView{}, err
	}

	member, err := s.repo.FindByID(ctx, s.db, memberID)
	if err != nil {
		return memberdomain.MemberView{}, err
	}
	if member == nil {
		return memberdomain.MemberView{}, memberdomain.ErrNotFound
	}
	return s.view(ctx, member)
}

func (s *Service) List(ctx context.Context, req memberdomain.ListMemberRequest) ([]memberdomain.MemberView, error) {
	filter := memberdomain.ListMemberFilter{Name: strings.TrimSpace(req.Name)}
	if strings.TrimSpace(req.StatusID) != "" {
		statusID, err := parseID(req.StatusID)
		if err != nil {
			return nil, err
		}
		filter.StatusID = statusID
	}
	if strings.TrimSpace(req.DistrictID) != "" {
		districtID, err := parseID(req.DistrictID)
		if err != nil {
			return nil, err
		}
		filter.DistrictID = districtID
	}

	members, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	views := make([]memberdomain.MemberView, 0, len(members))
	for _, member := range members {
		if member == nil {
			continue
		}
		views = append(views, memberdomain.MemberView{Member: *member})
	}
	return views, nil
}

func (s *Service) resolveStatus(ctx context.Context, raw string) (*referencedomain.MembershipStatus, error) {
	statusID, err := parseID(raw)
	if err != nil {
		return nil, referencedomain.ErrStatusNotFound
	}
	status, err := s.refRepo.FindStatus(ctx, s.db, statusID)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, referencedomain.ErrStatusNotFound
	}
	return status, nil
}

func (s *Service) resolveDistrict(ctx context.Context, raw string) (*snowflake.ID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	districtID, err := parseID(raw)
	if err != nil {
		return nil, referencedomain.ErrDistrictNotFound
	}
	exists, err := s.refRepo.DistrictExists(ctx, s.db, districtID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, referencedomain.ErrDistrictNotFound
	}
	return &districtID, nil
}

// resolveRoleTypes validates every requested role id up front; one invalid
// id aborts the whole operation before any role mutation.
func (s *Service) resolveRoleTypes(ctx context.Context, raw []string) ([]snowflake.ID, error) {
	seen := make(map[snowflake.ID]struct{}, len(raw))
	roleTypeIDs := make([]snowflake.ID, 0, len(raw))
	for _, value := range raw {
		roleTypeID, err := parseID(value)
		if err != nil {
			return nil, referencedomain.ErrRoleTypeNotFound
		}
		exists, err := s.refRepo.RoleTypeExists(ctx, s.db, roleTypeID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, referencedomain.ErrRoleTypeNotFound
		}
		if _, dup := seen[roleTypeID]; dup {
			continue
		}
		seen[roleTypeID] = struct{}{}
		roleTypeIDs = append(roleTypeIDs, roleTypeID)
	}
	return roleTypeIDs, nil
}

func (s *Service) applyAddress(ctx context.Context, tx *gorm.DB, member *memberdomain.Member, input memberdomain.AddressInput, now time.Time) error {
	switch {
	case input.IsBlank() && member.AddressID != nil:
		addressID := *member.AddressID
		member.AddressID = nil
		return s.repo.DeleteAddress(ctx, tx, addressID)
	case !input.IsBlank() && member.AddressID == nil:
		address := s.newAddress(input, now)
		if err := s.repo.InsertAddress(ctx, tx, address); err != nil {
			return err
		}
		member.AddressID = &address.ID
		return nil
	case !input.IsBlank():
		return s.repo.UpdateAddress(ctx, tx, &memberdomain.Address{
			ID:        *member.AddressID,
			Line1:     strings.TrimSpace(input.Line1),
			Line2:     strings.TrimSpace(input.Line2),
			City:      strings.TrimSpace(input.City),
			County:    strings.TrimSpace(input.County),
			Postcode:  strings.TrimSpace(input.Postcode),
			UpdatedAt: now,
		})
	default:
		return nil
	}
}

func (s *Service) newAddress(input memberdomain.AddressInput, now time.Time) *memberdomain.Address {
	return &memberdomain.Address{
		ID:        s.genID.Generate(),
		Line1:     strings.TrimSpace(input.Line1),
		Line2:     strings.TrimSpace(input.Line2),
		City:      strings.TrimSpace(input.City),
		County:    strings.TrimSpace(input.County),
		Postcode:  strings.TrimSpace(input.Postcode),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Service) view(ctx context.Context, member *memberdomain.Member) (memberdomain.MemberView, error) {
	view := memberdomain.MemberView{Member: *member}

	if member.AddressID != nil {
		address, err := s.repo.FindAddress(ctx, s.db, *member.AddressID)
		if err != nil {
			return memberdomain.MemberView{}, err
		}
		view.Address = address
	}

	roles, err := s.repo.ListRoles(ctx, s.db, member.ID)
	if err != nil {
		return memberdomain.MemberView{}, err
	}
	view.RoleTypeIDs = make([]snowflake.ID, 0, len(roles))
	for _, role := range roles {
		view.RoleTypeIDs = append(view.RoleTypeIDs, role.RoleTypeID)
	}

	profile, err := s.repo.FindDataProtectionForMember(ctx, s.db, member.ID)
	if err != nil {
		return memberdomain.MemberView{}, err
	}
	view.DataProtection = profile

	return view, nil
}

func (s *Service) actor(ctx context.Context) string {
	if actor, ok := actorcontext.ActorFromContext(ctx); ok {
		return actor
	}
	return "system"
}

func (s *Service) recordWrite(ctx context.Context, operation string) {
	if s.metrics != nil {
		s.metrics.RecordMemberWrite(ctx, operation)
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, memberdomain.ErrInvalidID
	}
	return id, nil
}
