package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/parishkit/steward/internal/actorcontext"
	"github.com/parishkit/steward/internal/audit/domain"
	"github.com/parishkit/steward/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, req domain.RecordRequest) error {
	actor := "system"
	if value, ok := actorcontext.ActorFromContext(ctx); ok {
		actor = value
	}

	entry := &domain.AuditLog{
		ID:         s.genID.Generate(),
		Actor:      actor,
		Action:     req.Action,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Metadata:   datatypes.JSONMap(req.Metadata),
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, entry); err != nil {
		s.log.Error("audit record failed",
			zap.String("action", req.Action),
			zap.String("target_id", req.TargetID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	return s.repo.List(ctx, s.db, filter)
}
