package activity

import (
	"github.com/brightpane/brightpane/internal/activity/repository"
	"github.com/brightpane/brightpane/internal/activity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("activity.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
