package audit

import (
	"github.com/parishkit/steward/internal/audit/repository"
	"github.com/parishkit/steward/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
