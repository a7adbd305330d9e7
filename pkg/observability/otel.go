// Package observability wires OpenTelemetry tracing and metrics for the
// workflow engine. When no OTLP endpoint is configured the providers run
// locally and exports are skipped, which keeps tests and dev setups free
// of collector dependencies.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/sasya-arogya/engine/pkg/config"
)

// Provider owns the OTel SDK handles and the engine's instruments.
type Provider struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	NodeExecutions  metric.Int64Counter
	NodeErrors      metric.Int64Counter
	NodeDuration    metric.Float64Histogram
	ToolCalls       metric.Int64Counter
	ToolErrors      metric.Int64Counter
	OutOfScopeCount metric.Int64Counter

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// Setup initialises tracing and metrics. The returned Provider must be
// shut down on process exit.
func Setup(ctx context.Context, cfg config.ObservabilityConfig) (*Provider, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build otel resource: %w", err)
	}

	var traceOpts []sdktrace.TracerProviderOption
	traceOpts = append(traceOpts, sdktrace.WithResource(res))
	if cfg.OTLPEndpoint != "" {
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exporter))
		slog.Info("OTLP trace exporter enabled", "endpoint", cfg.OTLPEndpoint)
	}

	tp := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tp)

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	p := &Provider{
		Tracer: tp.Tracer("sasya-engine"),
		Meter:  mp.Meter("sasya-engine"),
		tp:     tp,
		mp:     mp,
	}
	if err := p.createInstruments(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) createInstruments() error {
	var err error
	if p.NodeExecutions, err = p.Meter.Int64Counter("workflow.node.executions",
		metric.WithDescription("Workflow node executions")); err != nil {
		return err
	}
	if p.NodeErrors, err = p.Meter.Int64Counter("workflow.node.errors",
		metric.WithDescription("Workflow node executions that took the error path")); err != nil {
		return err
	}
	if p.NodeDuration, err = p.Meter.Float64Histogram("workflow.node.duration",
		metric.WithDescription("Workflow node execution duration"),
		metric.WithUnit("s")); err != nil {
		return err
	}
	if p.ToolCalls, err = p.Meter.Int64Counter("workflow.tool.calls",
		metric.WithDescription("External tool invocations")); err != nil {
		return err
	}
	if p.ToolErrors, err = p.Meter.Int64Counter("workflow.tool.errors",
		metric.WithDescription("External tool invocations that failed")); err != nil {
		return err
	}
	if p.OutOfScopeCount, err = p.Meter.Int64Counter("workflow.out_of_scope",
		metric.WithDescription("User messages classified as out of scope")); err != nil {
		return err
	}
	return nil
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.tp.Shutdown(ctx); err != nil {
		slog.Error("Error shutting down tracer provider", "error", err)
	}
	if err := p.mp.Shutdown(ctx); err != nil {
		slog.Error("Error shutting down meter provider", "error", err)
	}
}

// NodeAttrs builds the standard attribute set for node instrumentation.
func NodeAttrs(node, sessionID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("node.name", node),
		attribute.String("session.id", sessionID),
	}
}
