// Package metrics exposes OpenTelemetry counters for the annotation engine.
package metrics

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config holds OTel configuration.
type Config struct {
	Enabled        bool
	ServiceName    string
	ExportInterval time.Duration
	Writer         io.Writer // destination for exported metrics (required when enabled)
}

// Provider manages the OpenTelemetry meter provider lifecycle.
// When disabled it hands out a no-op provider.
type Provider struct {
	meterProvider metric.MeterProvider
	sdkProvider   *sdkmetric.MeterProvider
	config        Config
}

// New creates a new metrics provider with the given configuration.
func New(cfg Config) (*Provider, error) {
	p := &Provider{config: cfg}

	if !cfg.Enabled || cfg.Writer == nil {
		p.meterProvider = noop.NewMeterProvider()
		return p, nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.Writer))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	p.sdkProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(interval),
		)),
	)
	p.meterProvider = p.sdkProvider

	return p, nil
}

// MeterProvider returns the active meter provider.
func (p *Provider) MeterProvider() metric.MeterProvider {
	return p.meterProvider
}

// Shutdown flushes and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdkProvider != nil {
		return p.sdkProvider.Shutdown(ctx)
	}
	return nil
}
