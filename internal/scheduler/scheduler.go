package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/parishkit/steward/internal/actorcontext"
	"github.com/parishkit/steward/internal/clock"
	registerdomain "github.com/parishkit/steward/internal/register/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log         *zap.Logger
	Clock       clock.Clock
	RegisterSvc registerdomain.Service
	Config      Config `optional:"true"`
}

// Scheduler drains pending register-number assignments so a member
// creation whose ad-hoc assignment failed still gets a number without
// operator intervention.
type Scheduler struct {
	log         *zap.Logger
	cfg         Config
	clock       clock.Clock
	registerSvc registerdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.RegisterSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         p.Config.withDefaults(),
		clock:       p.Clock,
		registerSvc: p.RegisterSvc,
	}, nil
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()
	ctx = actorcontext.WithActor(ctx, "scheduler")

	start := s.clock.Now()
	processed, err := s.registerSvc.ProcessPending(ctx, s.cfg.BatchSize)
	if processed > 0 {
		s.log.Info("assignment jobs drained",
			zap.Int("processed", processed),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("assignment drain timed out",
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
