package plan

import (
	"github.com/brightpane/brightpane/internal/plan/repository"
	"github.com/brightpane/brightpane/internal/plan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
