package observability

import (
	"go.uber.org/fx"

	"github.com/brightpane/brightpane/internal/observability/metrics"
	"github.com/brightpane/brightpane/internal/observability/tracing"
)

var Module = fx.Module("observability",
	fx.Provide(
		tracing.New,
		metrics.NewHTTPMetrics,
	),
	fx.Invoke(ensureTracingProvider),
)

func ensureTracingProvider(_ *tracing.Provider) {}
