package coupon

import (
	"github.com/brightpane/brightpane/internal/coupon/repository"
	"github.com/brightpane/brightpane/internal/coupon/service"
	"go.uber.org/fx"
)

var Module = fx.Module("coupon.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
