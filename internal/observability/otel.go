package observability

import (
	"context"
	"time"

	"github.com/railzwaylabs/metron/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/fx"
)

// SetupOTel installs global trace and metric providers exporting over OTLP.
// When telemetry is disabled this is a no-op and the default (noop) providers
// stay in place.
func SetupOTel(lc fx.Lifecycle, cfg config.Config) error {
	if !cfg.Telemetry.Enabled {
		return nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.Telemetry.ServiceName),
	))
	if err != nil {
		return err
	}

	ctx := context.Background()

	var (
		tp *sdktrace.TracerProvider
		mp *sdkmetric.MeterProvider
	)

	switch cfg.Telemetry.OTLPProtocol {
	case "http":
		traceExp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Telemetry.OTLPEndpoint), otlptracehttp.WithInsecure())
		if err != nil {
			return err
		}
		metricExp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(cfg.Telemetry.OTLPEndpoint), otlpmetrichttp.WithInsecure())
		if err != nil {
			return err
		}
		tp = sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp), sdktrace.WithResource(res))
		mp = sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)), sdkmetric.WithResource(res))
	default:
		traceExp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Telemetry.OTLPEndpoint), otlptracegrpc.WithInsecure())
		if err != nil {
			return err
		}
		metricExp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(cfg.Telemetry.OTLPEndpoint), otlpmetricgrpc.WithInsecure())
		if err != nil {
			return err
		}
		tp = sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp), sdktrace.WithResource(res))
		mp = sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)), sdkmetric.WithResource(res))
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				return err
			}
			return mp.Shutdown(ctx)
		},
	})

	return nil
}
