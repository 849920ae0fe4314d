package subscription

import (
	"github.com/brightpane/brightpane/internal/subscription/repository"
	"github.com/brightpane/brightpane/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
