package member

import (
	"github.com/parishkit/steward/internal/member/repository"
	"github.com/parishkit/steward/internal/member/service"
	"go.uber.org/fx"
)

var Module = fx.Module("member.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
