package invoice

import (
	"github.com/brightpane/brightpane/internal/invoice/repository"
	"github.com/brightpane/brightpane/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
