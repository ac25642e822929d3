package register

import (
	"github.com/parishkit/steward/internal/register/repository"
	"github.com/parishkit/steward/internal/register/service"
	"go.uber.org/fx"
)

var Module = fx.Module("register.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
