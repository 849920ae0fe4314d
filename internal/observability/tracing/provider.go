// Package tracing wires the OpenTelemetry trace pipeline.
package tracing

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/fx"
	"go.uber.org/zap"

	appconfig "github.com/brightpane/brightpane/internal/config"
)

// Provider owns the tracer provider lifecycle.
type Provider struct {
	tp  *sdktrace.TracerProvider
	log *zap.Logger
}

// New configures an OTLP gRPC trace exporter when tracing is enabled.
// When disabled the provider is inert and Shutdown is a no-op.
func New(lc fx.Lifecycle, cfg appconfig.Config, log *zap.Logger) (*Provider, error) {
	p := &Provider{log: log.Named("tracing")}
	endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
	if !cfg.TracingEnabled || endpoint == "" {
		p.log.Info("tracing disabled")
		return p, nil
	}

	exporter, err := otlptracegrpc.New(
		context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.AppName),
			semconv.ServiceVersion(cfg.AppVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	p.tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(p.tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return p.Shutdown(ctx)
		},
	})

	p.log.Info("tracing enabled", zap.String("endpoint", endpoint))
	return p, nil
}

// Shutdown flushes pending spans. Safe to call when tracing is disabled.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.tp.Shutdown(ctx)
}
