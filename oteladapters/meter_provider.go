package oteladapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig describes where metrics are exported to.
type ProviderConfig struct {
	// Endpoint of the OTLP gRPC collector, e.g. localhost:4317. Empty disables the exporter.
	Endpoint       string
	Insecure       bool
	ServiceName    string
	ServiceVersion string
	Interval       time.Duration
}

// NewMeterProvider creates an SDK meter provider pushing to the configured OTLP endpoint
// every interval. Additional readers or views can be passed as options. The caller owns the
// provider and must call Shutdown to flush pending data points.
func NewMeterProvider(ctx context.Context, cfg ProviderConfig, opts ...sdkmetric.Option) (*sdkmetric.MeterProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	options := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if cfg.Endpoint != "" {
		exporterOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, err
		}

		interval := cfg.Interval
		if interval <= 0 {
			interval = 10 * time.Second
		}
		options = append(options, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(interval))))
	}

	return sdkmetric.NewMeterProvider(append(options, opts...)...), nil
}
