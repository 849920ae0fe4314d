package customer

import (
	"github.com/brightpane/brightpane/internal/customer/repository"
	"github.com/brightpane/brightpane/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
